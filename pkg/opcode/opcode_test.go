package opcode

import "testing"

func TestOpcodeNames(t *testing.T) {
	tests := []struct {
		op   Opcode
		name string
	}{
		{PUSHINT8, "PUSHINT8"},
		{PUSH0, "PUSH0"},
		{PUSH16, "PUSH16"},
		{JMP_L, "JMP_L"},
		{ENDTRY_L, "ENDTRY_L"},
		{LDSFLD3, "LDSFLD3"},
		{STARG, "STARG"},
		{NEWARRAY_T, "NEWARRAY_T"},
		{ASSERTMSG, "ASSERTMSG"},
	}
	for _, tc := range tests {
		if got := tc.op.String(); got != tc.name {
			t.Errorf("0x%02X: expected %s, got %s", byte(tc.op), tc.name, got)
		}
		op, ok := Parse(tc.name)
		if !ok || op != tc.op {
			t.Errorf("Parse(%q) = 0x%02X, %v", tc.name, byte(op), ok)
		}
	}
}

func TestUndefinedOpcode(t *testing.T) {
	for _, b := range []byte{0x06, 0x07, 0x42, 0x44, 0x8A, 0xA7, 0xDA, 0xFF} {
		op := Opcode(b)
		if op.IsValid() {
			t.Errorf("0x%02X should be undefined", b)
		}
		if op.Category() != CategoryInvalid {
			t.Errorf("0x%02X should have invalid category", b)
		}
	}
}

func TestOperandSizes(t *testing.T) {
	tests := []struct {
		op     Opcode
		prefix int
		size   int
	}{
		{PUSHINT8, 0, 1},
		{PUSHINT256, 0, 32},
		{PUSHA, 0, 4},
		{PUSHDATA1, 1, 0},
		{PUSHDATA2, 2, 0},
		{PUSHDATA4, 4, 0},
		{JMP, 0, 1},
		{JMP_L, 0, 4},
		{TRY, 0, 2},
		{TRY_L, 0, 8},
		{CALLT, 0, 2},
		{SYSCALL, 0, 4},
		{INITSLOT, 0, 2},
		{LDLOC, 0, 1},
		{LDLOC0, 0, 0},
		{ADD, 0, 0},
	}
	for _, tc := range tests {
		if tc.op.SizePrefix() != tc.prefix || tc.op.OperandSize() != tc.size {
			t.Errorf("%s: expected prefix=%d size=%d, got prefix=%d size=%d",
				tc.op, tc.prefix, tc.size, tc.op.SizePrefix(), tc.op.OperandSize())
		}
	}
}

func TestCategories(t *testing.T) {
	tests := []struct {
		op  Opcode
		cat Category
	}{
		{PUSH5, CategoryPush},
		{SYSCALL, CategoryFlow},
		{ROLL, CategoryStack},
		{STLOC2, CategorySlot},
		{MEMCPY, CategorySplice},
		{EQUAL, CategoryBitwise},
		{WITHIN, CategoryArithmetic},
		{POPITEM, CategoryCompound},
		{CONVERT, CategoryType},
		{ABORTMSG, CategoryExtension},
	}
	for _, tc := range tests {
		if got := tc.op.Category(); got != tc.cat {
			t.Errorf("%s: expected category %s, got %s", tc.op, tc.cat, got)
		}
	}
}

func TestAllIsSortedAndComplete(t *testing.T) {
	ops := All()
	if len(ops) != len(byName) {
		t.Fatalf("All returned %d opcodes, table has %d names", len(ops), len(byName))
	}
	for i := 1; i < len(ops); i++ {
		if ops[i-1] >= ops[i] {
			t.Fatalf("All not sorted at %d: %s >= %s", i, ops[i-1], ops[i])
		}
	}
}

func TestHasTarget(t *testing.T) {
	for _, op := range []Opcode{JMP, JMPLE_L, CALL, CALL_L, ENDTRY, ENDTRY_L, PUSHA} {
		if !op.HasTarget() {
			t.Errorf("%s should carry a target", op)
		}
	}
	for _, op := range []Opcode{TRY, CALLA, RET, SYSCALL} {
		if op.HasTarget() {
			t.Errorf("%s should not carry a single target", op)
		}
	}
}
