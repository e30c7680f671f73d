package stackitem

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/chazu/stackvm/pkg/script"
	"github.com/google/go-cmp/cmp"
)

// ============ Type Tests ============

func TestTypeTagsMatchScriptValidator(t *testing.T) {
	for b := 0; b < 256; b++ {
		if Type(b).IsValid() != script.IsDefinedType(byte(b)) {
			t.Errorf("tag 0x%02X: stackitem valid=%v, script defined=%v",
				b, Type(b).IsValid(), script.IsDefinedType(byte(b)))
		}
	}
}

func TestParseType(t *testing.T) {
	for _, typ := range []Type{AnyT, PointerT, BooleanT, IntegerT, ByteStringT, BufferT, ArrayT, StructT, MapT, InteropT} {
		got, ok := ParseType(typ.String())
		if !ok || got != typ {
			t.Errorf("ParseType(%q) = %v, %v", typ.String(), got, ok)
		}
	}
}

// ============ Truthiness Tests ============

func TestBool(t *testing.T) {
	tests := []struct {
		item Item
		want bool
	}{
		{Null{}, false},
		{Boolean(true), true},
		{NewInteger(0), false},
		{NewInteger(-5), true},
		{NewByteString(nil), false},
		{NewByteString([]byte{0, 0}), false},
		{NewByteString([]byte{0, 1}), true},
		{NewBuffer(nil), true},
		{NewArray(nil), true},
		{NewMap(), true},
	}
	for _, tc := range tests {
		got, err := tc.item.Bool()
		if err != nil {
			t.Errorf("%s: unexpected error %v", tc.item, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s.Bool() = %v, expected %v", tc.item, got, tc.want)
		}
	}

	if _, err := NewByteString(make([]byte, 33)).Bool(); !errors.Is(err, ErrInvalidCast) {
		t.Errorf("33-byte ByteString: expected ErrInvalidCast, got %v", err)
	}
}

// ============ Conversion Tests ============

func TestConvertPrimitives(t *testing.T) {
	i := NewInteger(256)

	bs, err := i.ConvertTo(ByteStringT)
	if err != nil {
		t.Fatalf("Integer to ByteString: %v", err)
	}
	if b, _ := bs.TryBytes(); string(b) != "\x00\x01" {
		t.Errorf("Integer(256) bytes = %x", b)
	}

	back, err := bs.ConvertTo(IntegerT)
	if err != nil {
		t.Fatalf("ByteString to Integer: %v", err)
	}
	if v, _ := back.TryInteger(); v.Int64() != 256 {
		t.Errorf("round trip gave %s", v)
	}

	buf, err := bs.ConvertTo(BufferT)
	if err != nil {
		t.Fatalf("ByteString to Buffer: %v", err)
	}
	buf.(*Buffer).Bytes()[0] = 0xFF
	if b, _ := bs.TryBytes(); b[0] != 0 {
		t.Error("Buffer conversion must copy")
	}

	if _, err := Boolean(true).ConvertTo(IntegerT); err != nil {
		t.Errorf("Boolean to Integer: %v", err)
	}
	if _, err := i.ConvertTo(ArrayT); !errors.Is(err, ErrInvalidCast) {
		t.Errorf("Integer to Array: expected ErrInvalidCast, got %v", err)
	}
}

func TestConvertBuffer(t *testing.T) {
	buf := NewBuffer([]byte{0x01, 0x02})
	it, err := buf.ConvertTo(IntegerT)
	if err != nil {
		t.Fatalf("Buffer to Integer: %v", err)
	}
	if v, _ := it.TryInteger(); v.Int64() != 0x0201 {
		t.Errorf("got %s", v)
	}
	if _, err := NewBuffer(make([]byte, 40)).ConvertTo(IntegerT); !errors.Is(err, ErrInvalidCast) {
		t.Errorf("oversized Buffer: expected ErrInvalidCast, got %v", err)
	}
	if _, err := buf.TryInteger(); !errors.Is(err, ErrInvalidCast) {
		t.Errorf("Buffer arithmetic value: expected ErrInvalidCast, got %v", err)
	}
}

func TestConvertNull(t *testing.T) {
	for _, typ := range []Type{BooleanT, IntegerT, ArrayT, MapT} {
		it, err := Null{}.ConvertTo(typ)
		if err != nil || !IsNull(it) {
			t.Errorf("Null to %s = %v, %v", typ, it, err)
		}
	}
	if _, err := (Null{}).ConvertTo(AnyT); !errors.Is(err, ErrInvalidCast) {
		t.Errorf("Null to Any: expected ErrInvalidCast, got %v", err)
	}
}

func TestConvertArrayStruct(t *testing.T) {
	arr := NewArray([]Item{NewInteger(1), NewInteger(2)})
	st, err := arr.ConvertTo(StructT)
	if err != nil {
		t.Fatalf("Array to Struct: %v", err)
	}
	if st.(*Struct).Len() != 2 {
		t.Errorf("expected 2 fields, got %d", st.(*Struct).Len())
	}
	arr.Append(NewInteger(3))
	if st.(*Struct).Len() != 2 {
		t.Error("converted struct must not alias the array's storage")
	}
	same, _ := arr.ConvertTo(ArrayT)
	if same != Item(arr) {
		t.Error("conversion to own type must return the item itself")
	}
}

// ============ Equality Tests ============

func TestEquals(t *testing.T) {
	buf := NewBuffer([]byte{1})
	arr := NewArray(nil)
	tests := []struct {
		name string
		a, b Item
		want bool
	}{
		{"integers", NewInteger(7), NewInteger(7), true},
		{"integer vs boolean", NewInteger(1), Boolean(true), false},
		{"bytestrings", NewByteString([]byte("ab")), NewByteString([]byte("ab")), true},
		{"bytestring vs integer", NewByteString([]byte{1}), NewInteger(1), false},
		{"same buffer", buf, buf, true},
		{"equal buffers", NewBuffer([]byte{1}), NewBuffer([]byte{1}), false},
		{"same array", arr, arr, true},
		{"equal arrays", NewArray(nil), NewArray(nil), false},
		{"nulls", Null{}, Null{}, true},
		{"structs", NewStruct([]Item{NewInteger(1)}), NewStruct([]Item{NewInteger(1)}), true},
		{"struct lengths", NewStruct([]Item{NewInteger(1)}), NewStruct(nil), false},
		{"struct fields", NewStruct([]Item{NewInteger(1)}), NewStruct([]Item{NewInteger(2)}), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.a.Equals(tc.b, DefaultLimits)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestEqualsComparableSizeLimit(t *testing.T) {
	big1 := NewByteString(make([]byte, MaxComparableSize+1))
	big2 := NewByteString(make([]byte, MaxComparableSize+1))
	if _, err := big1.Equals(big2, DefaultLimits); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("expected ErrInvalidOperation, got %v", err)
	}

	lim := Limits{MaxComparableSize: 4, MaxItems: 100}
	a := NewStruct([]Item{NewByteString([]byte("abc")), NewByteString([]byte("abc"))})
	b := NewStruct([]Item{NewByteString([]byte("abc")), NewByteString([]byte("abc"))})
	if _, err := a.Equals(b, lim); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("struct budget: expected ErrInvalidOperation, got %v", err)
	}
}

func TestStructEqualsItemLimit(t *testing.T) {
	items := make([]Item, 10)
	for i := range items {
		items[i] = NewInteger(int64(i))
	}
	a := NewStruct(items)
	b := NewStruct(append([]Item(nil), items...))
	if _, err := a.Equals(b, Limits{MaxComparableSize: MaxComparableSize, MaxItems: 5}); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("expected ErrInvalidOperation, got %v", err)
	}
	if eq, err := a.Equals(b, DefaultLimits); err != nil || !eq {
		t.Errorf("expected equal, got %v, %v", eq, err)
	}
}

// ============ Struct Clone Tests ============

func TestStructCloneSemantics(t *testing.T) {
	nested := NewStruct([]Item{NewInteger(1)})
	shared := NewArray([]Item{NewInteger(2)})
	orig := NewStruct([]Item{nested, shared, NewInteger(3)})

	clone, err := orig.Clone(DefaultLimits)
	if err != nil {
		t.Fatalf("Clone failed: %v", err)
	}

	// Mutating the nested struct of the clone leaves the original intact.
	clone.At(0).(*Struct).Set(0, NewInteger(100))
	if v, _ := nested.At(0).TryInteger(); v.Int64() != 1 {
		t.Errorf("original nested struct changed to %s", v)
	}

	// The nested array is shared.
	clone.At(1).(*Array).Append(NewInteger(200))
	if shared.Len() != 2 {
		t.Errorf("expected shared array to see the append, len=%d", shared.Len())
	}
	if clone.At(1) != Item(shared) {
		t.Error("array child should be the same object")
	}
}

func TestStructCloneLimit(t *testing.T) {
	inner := NewStruct([]Item{NewInteger(1), NewInteger(2)})
	s := NewStruct([]Item{inner, inner, inner})
	// 3 top-level + 3*2 nested = 9 items copied
	if _, err := s.Clone(Limits{MaxItems: 10}); err != nil {
		t.Errorf("9 items within limit 10: %v", err)
	}
	if _, err := s.Clone(Limits{MaxItems: 9}); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("expected ErrInvalidOperation, got %v", err)
	}
}

// ============ Map Tests ============

func TestMapInsertionOrder(t *testing.T) {
	m := NewMap()
	for _, k := range []string{"c", "a", "b"} {
		if err := m.Set(NewByteString([]byte(k)), NewInteger(int64(k[0]))); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	// overwrite keeps position
	_ = m.Set(NewByteString([]byte("c")), NewInteger(0))
	if err := m.Delete(NewByteString([]byte("a"))); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_ = m.Set(NewByteString([]byte("a")), NewInteger(1))

	var keys []string
	for _, k := range m.Keys() {
		s, _ := ToString(k)
		keys = append(keys, s)
	}
	if diff := cmp.Diff([]string{"c", "b", "a"}, keys); diff != "" {
		t.Errorf("key order mismatch (-want +got):\n%s", diff)
	}
	v, err := m.Get(NewByteString([]byte("c")))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if n, _ := ToInt64(v); n != 0 {
		t.Errorf("c = %d, expected 0", n)
	}
	if _, err := m.Get(NewByteString([]byte("zz"))); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestMapKeysAreTyped(t *testing.T) {
	m := NewMap()
	_ = m.Set(NewInteger(1), NewByteString([]byte("int")))
	_ = m.Set(Boolean(true), NewByteString([]byte("bool")))
	_ = m.Set(NewByteString([]byte{1}), NewByteString([]byte("bytes")))
	if m.Len() != 3 {
		t.Fatalf("expected 3 distinct keys, got %d", m.Len())
	}
	if err := m.Set(NewArray(nil), Null{}); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("array key: expected ErrInvalidOperation, got %v", err)
	}
	if err := m.Set(NewByteString(make([]byte, MaxKeySize+1)), Null{}); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("long key: expected ErrInvalidOperation, got %v", err)
	}
}

// ============ Make Tests ============

func TestMake(t *testing.T) {
	it := Make([]any{1, "two", true, nil, []byte{3}, map[string]any{"k": 4}})
	arr, ok := it.(*Array)
	if !ok {
		t.Fatalf("expected Array, got %T", it)
	}
	want := []Type{IntegerT, ByteStringT, BooleanT, AnyT, ByteStringT, MapT}
	var got []Type
	for _, sub := range arr.Items() {
		got = append(got, sub.Type())
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("types mismatch (-want +got):\n%s", diff)
	}
	if _, ok := Make(struct{}{}).(*Interop); !ok {
		t.Error("unsupported values should be wrapped as Interop")
	}
}

// ============ Serialization Tests ============

func TestJSONRoundTrip(t *testing.T) {
	m := NewMap()
	_ = m.Set(NewByteString([]byte("k")), NewBuffer([]byte{9}))
	item := NewArray([]Item{
		NewInteger(-42),
		Boolean(true),
		Null{},
		NewStruct([]Item{NewByteString([]byte("x"))}),
		m,
	})
	data, err := ToJSON(item)
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	if !strings.Contains(string(data), `{"type":"Integer","value":"-42"}`) {
		t.Errorf("unexpected JSON: %s", data)
	}
	back, err := FromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	again, err := ToJSON(back)
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	if string(again) != string(data) {
		t.Errorf("JSON round trip mismatch:\n%s\n%s", data, again)
	}
}

func TestSerializationRejectsCycles(t *testing.T) {
	a := NewArray(nil)
	a.Append(a)
	if _, err := ToJSON(a); !errors.Is(err, ErrCycle) {
		t.Errorf("ToJSON: expected ErrCycle, got %v", err)
	}
	if _, err := EncodeBinary(a); !errors.Is(err, ErrCycle) {
		t.Errorf("EncodeBinary: expected ErrCycle, got %v", err)
	}

	// A shared child that is not a cycle is fine.
	shared := NewArray([]Item{NewInteger(1)})
	if _, err := EncodeBinary(NewArray([]Item{shared, shared})); err != nil {
		t.Errorf("shared child: %v", err)
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	m := NewMap()
	_ = m.Set(NewInteger(5), NewStruct([]Item{Boolean(false), NewInteger(0)}))
	orig := NewArray([]Item{
		NewBigInteger(new(big.Int).Lsh(big.NewInt(1), 200)),
		NewByteString([]byte("hello")),
		NewBuffer([]byte{1, 2, 3}),
		Null{},
		m,
	})
	data, err := EncodeBinary(orig)
	if err != nil {
		t.Fatalf("EncodeBinary: %v", err)
	}
	back, err := DecodeBinary(data)
	if err != nil {
		t.Fatalf("DecodeBinary: %v", err)
	}
	want, _ := ToJSON(orig)
	got, _ := ToJSON(back)
	if diff := cmp.Diff(string(want), string(got)); diff != "" {
		t.Errorf("binary round trip mismatch (-want +got):\n%s", diff)
	}

	if _, err := EncodeBinary(NewInterop(1)); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("interop: expected ErrInvalidOperation, got %v", err)
	}
}

func sharedChain(depth int) Item {
	var item Item = NewInteger(1)
	for i := 0; i < depth; i++ {
		item = NewArray([]Item{item, item})
	}
	return item
}

func TestSerializationBoundsSharedGraphs(t *testing.T) {
	deep := sharedChain(60)
	if _, err := ToJSON(deep); !errors.Is(err, ErrTooBig) {
		t.Errorf("ToJSON: expected ErrTooBig, got %v", err)
	}
	if _, err := EncodeBinary(deep); !errors.Is(err, ErrTooBig) {
		t.Errorf("EncodeBinary: expected ErrTooBig, got %v", err)
	}

	// 2^11-1 nodes stays under the limit.
	small := sharedChain(10)
	data, err := EncodeBinary(small)
	if err != nil {
		t.Fatalf("EncodeBinary: %v", err)
	}
	if _, err := DecodeBinary(data); err != nil {
		t.Errorf("DecodeBinary: %v", err)
	}
	if _, err := ToJSON(small); err != nil {
		t.Errorf("ToJSON: %v", err)
	}
}

func TestBinaryItemLimitMatchesDecoder(t *testing.T) {
	tests := []struct {
		elements int
		ok       bool
	}{
		{MaxBinaryItems - 1, true},
		{MaxBinaryItems, false},
	}
	for _, tc := range tests {
		items := make([]Item, tc.elements)
		for i := range items {
			items[i] = NewInteger(int64(i))
		}
		data, err := EncodeBinary(NewArray(items))
		if !tc.ok {
			if !errors.Is(err, ErrTooBig) {
				t.Errorf("%d elements: expected ErrTooBig, got %v", tc.elements, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%d elements: %v", tc.elements, err)
		}
		back, err := DecodeBinary(data)
		if err != nil {
			t.Fatalf("%d elements: DecodeBinary: %v", tc.elements, err)
		}
		if back.(*Array).Len() != tc.elements {
			t.Errorf("decoded %d elements, want %d", back.(*Array).Len(), tc.elements)
		}
	}
}

type interopPayload struct {
	v any
}

func TestInteropEqualsNonComparablePayload(t *testing.T) {
	a := NewInterop(interopPayload{v: []int{1}})
	b := NewInterop(interopPayload{v: []int{1}})
	eq, err := a.Equals(b, DefaultLimits)
	if err != nil || eq {
		t.Errorf("Equals = %v, %v, want false", eq, err)
	}
	c := NewInterop(interopPayload{v: 1})
	d := NewInterop(interopPayload{v: 1})
	if eq, _ := c.Equals(d, DefaultLimits); !eq {
		t.Error("comparable payloads with equal values should be equal")
	}
}
