package vm

import (
	"testing"

	"github.com/chazu/stackvm/pkg/opcode"
	"github.com/chazu/stackvm/pkg/script"
	"github.com/chazu/stackvm/vm/stackitem"
)

// ---------------------------------------------------------------------------
// Context Tests
// ---------------------------------------------------------------------------

func TestContextInstructions(t *testing.T) {
	ctx := newContext(script.New([]byte{0x0C, 0x01, 0xAA, 0x11}), -1, 0, NewReferenceCounter())
	cur, err := ctx.CurrentInstruction()
	if err != nil || cur.Opcode != opcode.PUSHDATA1 {
		t.Fatalf("CurrentInstruction = %v, %v", cur, err)
	}
	next, err := ctx.NextInstruction()
	if err != nil || next.Opcode != opcode.PUSH1 {
		t.Fatalf("NextInstruction = %v, %v", next, err)
	}
	if err := ctx.moveNext(); err != nil || ctx.IP() != 3 {
		t.Fatalf("moveNext: ip %d, %v", ctx.IP(), err)
	}
	if err := ctx.moveNext(); err != nil || ctx.IP() != 4 {
		t.Fatalf("moveNext: ip %d, %v", ctx.IP(), err)
	}
	ret, err := ctx.CurrentInstruction()
	if err != nil || ret.Opcode != opcode.RET {
		t.Errorf("past the end = %v, %v, want implicit RET", ret, err)
	}
}

func TestContextCloneSharesState(t *testing.T) {
	rc := NewReferenceCounter()
	ctx := newContext(script.New([]byte{0x40}), 2, 0, rc)
	ctx.locals = NewSlot(1, rc)
	clone := ctx.Clone(0)

	if clone.EvaluationStack() != ctx.EvaluationStack() {
		t.Error("clone must share the evaluation stack")
	}
	if clone.Script() != ctx.Script() {
		t.Error("clone must share the script")
	}
	if clone.LocalVariables() != nil {
		t.Error("clone must not share locals")
	}
	if clone.RVCount() != 0 {
		t.Errorf("clone RVCount = %d, want 0", clone.RVCount())
	}

	type counterKey struct{}
	calls := 0
	factory := func() any { calls++; return &calls }
	a := ctx.GetState(counterKey{}, factory)
	b := clone.GetState(counterKey{}, factory)
	if a != b || calls != 1 {
		t.Errorf("GetState not shared with clone: calls %d", calls)
	}
}

func TestContextTryStack(t *testing.T) {
	ctx := newContext(script.New(nil), -1, 0, NewReferenceCounter())
	if ctx.peekTry() != nil || ctx.popTry() != nil {
		t.Fatal("empty try stack should yield nil")
	}
	outer := newExceptionHandlingContext(10, -1)
	inner := newExceptionHandlingContext(-1, 20)
	ctx.pushTry(outer)
	ctx.pushTry(inner)
	if ctx.peekTry() != inner || len(ctx.TryStack()) != 2 {
		t.Fatal("peekTry should return the innermost entry")
	}
	if ctx.popTry() != inner || ctx.popTry() != outer {
		t.Error("popTry order")
	}
}

// ---------------------------------------------------------------------------
// Exception handling context Tests
// ---------------------------------------------------------------------------

func TestExceptionHandlingContext(t *testing.T) {
	tests := []struct {
		catch, finally   int
		hasCatch, hasFin bool
	}{
		{5, -1, true, false},
		{-1, 9, false, true},
		{0, 0, true, true},
	}
	for _, tc := range tests {
		ehc := newExceptionHandlingContext(tc.catch, tc.finally)
		if ehc.HasCatch() != tc.hasCatch || ehc.HasFinally() != tc.hasFin {
			t.Errorf("%v: HasCatch %t HasFinally %t", ehc, ehc.HasCatch(), ehc.HasFinally())
		}
		if ehc.State != Try || ehc.EndPointer != -1 {
			t.Errorf("%v: fresh entry state", ehc)
		}
	}
	if got := newExceptionHandlingContext(1, 2).String(); got != "Try catch=1 finally=2 end=-1" {
		t.Errorf("String() = %q", got)
	}
	if Finally.String() != "Finally" || TryState(9).String() != "TryState(9)" {
		t.Error("TryState names")
	}
}

func TestUnhandledErrorMessage(t *testing.T) {
	err := &UnhandledError{Item: stackitem.NewByteString([]byte("boom"))}
	if err.Error() != `unhandled exception: "boom"` {
		t.Errorf("Error() = %q", err.Error())
	}
}
