package vm

import (
	"errors"
	"testing"

	"github.com/chazu/stackvm/pkg/opcode"
	"github.com/chazu/stackvm/pkg/script"
	"github.com/chazu/stackvm/vm/stackitem"
)

// ---------------------------------------------------------------------------
// Reference counter Tests
// ---------------------------------------------------------------------------

func TestCountsPrimitivesAndElements(t *testing.T) {
	rc := NewReferenceCounter()
	s := NewEvaluationStack(rc)
	s.Push(stackitem.NewInteger(1))
	arr := stackitem.NewArray([]stackitem.Item{stackitem.NewInteger(2), stackitem.NewInteger(3)})
	s.Push(arr)
	if rc.Count() != 4 {
		t.Fatalf("Count = %d, want 4 (two stack entries, two elements)", rc.Count())
	}
	if !rc.IsTracked(arr) {
		t.Fatal("pushed array should be tracked")
	}
	if _, err := s.Pop(); err != nil {
		t.Fatal(err)
	}
	if rc.Count() != 3 {
		t.Errorf("Count after pop = %d, want 3", rc.Count())
	}
	if got := rc.CheckZeroReferred(); got != 1 {
		t.Errorf("CheckZeroReferred = %d, want 1", got)
	}
	if rc.IsTracked(arr) || rc.Tracked() != 0 {
		t.Error("unreachable array should be collected")
	}
}

func TestSelfReferenceCollected(t *testing.T) {
	rc := NewReferenceCounter()
	s := NewEvaluationStack(rc)
	a := stackitem.NewArray(nil)
	s.Push(a)
	a.Append(a)
	if rc.Count() != 2 {
		t.Fatalf("Count = %d, want 2", rc.Count())
	}
	if got := rc.CheckZeroReferred(); got != 2 {
		t.Fatalf("array still on the stack was collected: %d", got)
	}
	if _, err := s.Pop(); err != nil {
		t.Fatal(err)
	}
	if got := rc.CheckZeroReferred(); got != 0 {
		t.Errorf("CheckZeroReferred = %d, want 0", got)
	}
	if rc.Tracked() != 0 {
		t.Errorf("Tracked = %d, want 0", rc.Tracked())
	}
}

func TestCycleReachableFromStackSurvives(t *testing.T) {
	rc := NewReferenceCounter()
	s := NewEvaluationStack(rc)
	a := stackitem.NewArray(nil)
	b := stackitem.NewArray(nil)
	s.Push(a)
	s.Push(b)
	a.Append(b)
	b.Append(a)
	if _, err := s.Pop(); err != nil { // b now only held by a
		t.Fatal(err)
	}
	if got := rc.CheckZeroReferred(); got != 3 {
		t.Fatalf("CheckZeroReferred = %d, want 3", got)
	}
	if !rc.IsTracked(b) {
		t.Fatal("b is reachable through a and must survive")
	}
	if _, err := s.Pop(); err != nil {
		t.Fatal(err)
	}
	if got := rc.CheckZeroReferred(); got != 0 {
		t.Errorf("CheckZeroReferred = %d, want 0", got)
	}
}

func TestCollectionCascadesToChildren(t *testing.T) {
	rc := NewReferenceCounter()
	s := NewEvaluationStack(rc)
	inner := stackitem.NewArray([]stackitem.Item{stackitem.NewInteger(1)})
	outer := stackitem.NewArray([]stackitem.Item{inner})
	s.Push(outer)
	if rc.Tracked() != 2 {
		t.Fatalf("Tracked = %d, want 2", rc.Tracked())
	}
	if _, err := s.Pop(); err != nil {
		t.Fatal(err)
	}
	if got := rc.CheckZeroReferred(); got != 0 {
		t.Errorf("CheckZeroReferred = %d, want 0", got)
	}
	if rc.Tracked() != 0 {
		t.Errorf("Tracked = %d, want 0", rc.Tracked())
	}
}

func TestCompoundOwnedByAnotherEngine(t *testing.T) {
	e1, e2 := NewEngine(), NewEngine()
	load(t, e1, []byte{0x40})
	load(t, e2, []byte{0x40})
	arr := stackitem.NewArray(nil)
	if err := e1.Push(arr); err != nil {
		t.Fatal(err)
	}
	if err := e2.Push(arr); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("Push on second engine: %v, want ErrInvalidOperation", err)
	}
}

func TestScriptCycleCollected(t *testing.T) {
	// NEWARRAY0 DUP DUP APPEND DROP leaves a self-referencing array with no
	// stack reference.
	e := run(t, 0xC2, 0x4A, 0x4A, 0xCF, 0x45)
	expectHalt(t, e)
	if got := e.ReferenceCounter().CheckZeroReferred(); got != 0 {
		t.Errorf("CheckZeroReferred = %d, want 0", got)
	}
}

func TestCyclesDoNotExhaustStackSize(t *testing.T) {
	b := script.NewBuilder()
	loop := b.NewLabel()
	b.EmitPushInt(3000)
	b.Mark(loop)
	b.Emit(opcode.NEWARRAY0)
	b.Emit(opcode.DUP)
	b.Emit(opcode.DUP)
	b.Emit(opcode.APPEND)
	b.Emit(opcode.DROP)
	b.Emit(opcode.DEC)
	b.Emit(opcode.DUP)
	b.EmitJump(opcode.JMPIF, loop)
	b.Emit(opcode.RET)
	e := runScript(t, build(t, b))
	expectHalt(t, e, "Integer(0)")
}

func TestLiveItemsExhaustStackSize(t *testing.T) {
	b := script.NewBuilder()
	loop := b.NewLabel()
	b.Emit(opcode.NEWARRAY0)
	b.Mark(loop)
	b.Emit(opcode.DUP)
	b.EmitPushInt(1)
	b.Emit(opcode.APPEND)
	b.EmitJump(opcode.JMP, loop)
	e := runScript(t, build(t, b))
	expectFault(t, e, ErrLimitExceeded)
}

// ---------------------------------------------------------------------------
// Evaluation stack Tests
// ---------------------------------------------------------------------------

func ints(vs ...int64) []stackitem.Item {
	out := make([]stackitem.Item, len(vs))
	for i, v := range vs {
		out[i] = stackitem.NewInteger(v)
	}
	return out
}

func stackInts(t *testing.T, s *EvaluationStack) []int64 {
	t.Helper()
	var out []int64
	for _, item := range s.Items() {
		n, err := stackitem.ToInt64(item)
		if err != nil {
			t.Fatalf("non-integer %s on stack", item)
		}
		out = append(out, n)
	}
	return out
}

func TestEvaluationStackIndexing(t *testing.T) {
	rc := NewReferenceCounter()
	s := NewEvaluationStack(rc)
	for _, it := range ints(1, 2, 3, 4) {
		s.Push(it)
	}

	tests := []struct {
		n    int
		want int64
	}{
		{0, 4},
		{3, 1},
		{-1, 1},
		{-4, 4},
	}
	for _, tc := range tests {
		item, err := s.Peek(tc.n)
		if err != nil {
			t.Fatalf("Peek(%d): %v", tc.n, err)
		}
		if n, _ := stackitem.ToInt64(item); n != tc.want {
			t.Errorf("Peek(%d) = %d, want %d", tc.n, n, tc.want)
		}
	}
	for _, n := range []int{4, -5} {
		if _, err := s.Peek(n); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Peek(%d) error = %v, want ErrOutOfRange", n, err)
		}
	}
}

func TestEvaluationStackMutations(t *testing.T) {
	rc := NewReferenceCounter()
	s := NewEvaluationStack(rc)
	for _, it := range ints(1, 2, 3, 4) {
		s.Push(it)
	}
	if _, err := s.Remove(2); err != nil {
		t.Fatal(err)
	}
	if got := stackInts(t, s); len(got) != 3 || got[1] != 3 {
		t.Fatalf("after Remove(2): %v", got)
	}
	if err := s.Insert(3, stackitem.NewInteger(9)); err != nil {
		t.Fatal(err)
	}
	if got := stackInts(t, s); got[0] != 9 {
		t.Fatalf("after Insert(3): %v", got)
	}
	if err := s.Insert(5, stackitem.Null{}); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Insert past depth: %v", err)
	}
	if err := s.Reverse(2); err != nil {
		t.Fatal(err)
	}
	if got := stackInts(t, s); got[2] != 4 || got[3] != 3 {
		t.Fatalf("after Reverse(2): %v", got)
	}
	if rc.Count() != 4 {
		t.Errorf("Count = %d, want 4", rc.Count())
	}
	s.Clear()
	if s.Len() != 0 || rc.Count() != 0 {
		t.Errorf("after Clear: len %d, count %d", s.Len(), rc.Count())
	}
}

func TestMoveToKeepsOrderAndCount(t *testing.T) {
	rc := NewReferenceCounter()
	src, dst := NewEvaluationStack(rc), NewEvaluationStack(rc)
	for _, it := range ints(1, 2, 3) {
		src.Push(it)
	}
	src.MoveTo(dst, 2)
	if got := stackInts(t, dst); len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("dst = %v, want [2 3]", got)
	}
	if src.Len() != 1 || rc.Count() != 3 {
		t.Errorf("src len %d, count %d", src.Len(), rc.Count())
	}
}

// ---------------------------------------------------------------------------
// Slot Tests
// ---------------------------------------------------------------------------

func TestSlotReferences(t *testing.T) {
	rc := NewReferenceCounter()
	slot := NewSlot(2, rc)
	if rc.Count() != 2 {
		t.Fatalf("Count = %d, want 2", rc.Count())
	}
	arr := stackitem.NewArray(nil)
	if err := slot.Set(0, arr); err != nil {
		t.Fatal(err)
	}
	if rc.StackReferences(arr) != 1 {
		t.Errorf("StackReferences = %d, want 1", rc.StackReferences(arr))
	}
	if err := slot.Set(0, arr); err != nil {
		t.Fatal(err)
	}
	if rc.StackReferences(arr) != 1 {
		t.Errorf("re-storing the same value changed references: %d", rc.StackReferences(arr))
	}
	if _, err := slot.Get(2); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Get(2) error = %v", err)
	}
	slot.ClearReferences()
	if got := rc.CheckZeroReferred(); got != 0 {
		t.Errorf("CheckZeroReferred = %d, want 0", got)
	}
}
