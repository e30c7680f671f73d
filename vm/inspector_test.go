package vm

import (
	"strings"
	"testing"

	"github.com/chazu/stackvm/vm/stackitem"
)

func TestInspectPrimitives(t *testing.T) {
	tests := []struct {
		item stackitem.Item
		typ  string
		val  string
	}{
		{stackitem.NewInteger(42), "Integer", "Integer(42)"},
		{stackitem.NewByteString([]byte("hi")), "ByteString", `"hi"`},
		{stackitem.NewByteString([]byte{0x00, 0xff}), "ByteString", "0x00ff"},
		{stackitem.Null{}, "Any", "Null"},
	}
	for _, tc := range tests {
		r := Inspect(tc.item)
		if r.Type != tc.typ || r.Value != tc.val {
			t.Errorf("Inspect(%s) = %s %s, want %s %s", tc.item, r.Type, r.Value, tc.typ, tc.val)
		}
	}
}

func TestInspectNested(t *testing.T) {
	inner := stackitem.NewArray([]stackitem.Item{stackitem.NewInteger(1)})
	outer := stackitem.NewStruct([]stackitem.Item{inner, stackitem.NewInteger(2)})
	r := Inspect(outer)
	if r.Size != 2 || len(r.Elements) != 2 {
		t.Fatalf("outer = %+v", r)
	}
	if r.Elements[0].Size != 1 || r.Elements[0].Elements[0].Value != "Integer(1)" {
		t.Errorf("inner = %+v", r.Elements[0])
	}
	text := r.String()
	for _, want := range []string{"Struct (2)", "[0] Array (1)", "[0] Integer: Integer(1)"} {
		if !strings.Contains(text, want) {
			t.Errorf("String() lacks %q:\n%s", want, text)
		}
	}
}

func TestInspectCycle(t *testing.T) {
	a := stackitem.NewArray(nil)
	a.Append(a)
	r := InspectDepth(a, 10)
	if len(r.Elements) != 1 || !r.Elements[0].Cycle {
		t.Fatalf("self reference not marked: %+v", r.Elements)
	}
	if !strings.Contains(r.String(), "<cycle>") {
		t.Errorf("String() = %s", r.String())
	}
}

func TestInspectMapAndPreviewLimit(t *testing.T) {
	m := stackitem.NewMap()
	if err := m.Set(stackitem.NewByteString([]byte("k")), stackitem.NewInteger(7)); err != nil {
		t.Fatal(err)
	}
	r := Inspect(m)
	if len(r.Keys) != 1 || r.Keys[0].Value != `"k"` || r.Elements[0].Value != "Integer(7)" {
		t.Errorf("map = %+v", r)
	}

	items := make([]stackitem.Item, MaxElementPreview+5)
	for i := range items {
		items[i] = stackitem.NewInteger(int64(i))
	}
	r = Inspect(stackitem.NewArray(items))
	if len(r.Elements) != MaxElementPreview || !strings.Contains(r.String(), "... 5 more") {
		t.Errorf("preview = %d elements\n%s", len(r.Elements), r.String())
	}
}

func TestInspectDepthZero(t *testing.T) {
	r := InspectDepth(stackitem.NewArray([]stackitem.Item{stackitem.NewInteger(1)}), 0)
	if r.Size != 1 || len(r.Elements) != 0 {
		t.Errorf("depth 0 = %+v", r)
	}
}
