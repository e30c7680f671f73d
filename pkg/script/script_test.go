package script

import (
	"bytes"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/chazu/stackvm/pkg/opcode"
	"github.com/google/go-cmp/cmp"
)

// ============ Decoding Tests ============

func TestDecodeRoundTrip(t *testing.T) {
	b := NewBuilder()
	loop := b.NewLabel()
	end := b.NewLabel()
	catch := b.NewLabel()

	b.EmitPushInt(3)
	b.EmitPushInt(1000)
	b.EmitPushData([]byte("hello"))
	b.EmitPushData(make([]byte, 300))
	b.Mark(loop)
	b.Emit(opcode.DEC)
	b.Emit(opcode.DUP)
	b.EmitJump(opcode.JMPIF, loop)
	b.EmitTry(catch, NoLabel)
	b.EmitSysCall(0xDEADBEEF)
	b.EmitJump(opcode.ENDTRY_L, end)
	b.Mark(catch)
	b.Emit(opcode.DROP)
	b.EmitJump(opcode.ENDTRY, end)
	b.Mark(end)
	b.Emit(opcode.INITSLOT, 2, 1)
	b.Emit(opcode.NEWARRAY_T, 0x21)
	b.Emit(opcode.RET)

	s, err := b.Script()
	if err != nil {
		t.Fatalf("Script failed: %v", err)
	}

	positions, err := s.Instructions()
	if err != nil {
		t.Fatalf("Instructions failed: %v", err)
	}
	var rebuilt []byte
	next := 0
	for _, p := range positions {
		if p.IP != next {
			t.Fatalf("instruction at %d, expected %d", p.IP, next)
		}
		rebuilt = append(rebuilt, p.Instruction.Bytes()...)
		next += p.Instruction.Size()
	}
	if next != s.Len() {
		t.Errorf("sizes sum to %d, script is %d bytes", next, s.Len())
	}
	if !bytes.Equal(rebuilt, s.Bytes()) {
		t.Errorf("re-encoding mismatch:\n%s", cmp.Diff(s.Bytes(), rebuilt))
	}
}

func TestGetInstructionPastEnd(t *testing.T) {
	s := New([]byte{byte(opcode.NOP)})
	for _, ip := range []int{1, 2, 100} {
		ins, err := s.GetInstruction(ip)
		if err != nil {
			t.Fatalf("GetInstruction(%d) failed: %v", ip, err)
		}
		if ins.Opcode != opcode.RET || ins.Size() != 1 {
			t.Errorf("GetInstruction(%d) = %s, expected RET", ip, ins)
		}
	}
}

func TestGetInstructionMemoized(t *testing.T) {
	s := New([]byte{byte(opcode.PUSHDATA1), 2, 0xAA, 0xBB})
	first, err := s.GetInstruction(0)
	if err != nil {
		t.Fatalf("GetInstruction failed: %v", err)
	}
	second, _ := s.GetInstruction(0)
	if &first.Operand[0] != &second.Operand[0] {
		t.Error("expected the cached instruction to share its operand")
	}
	if !bytes.Equal(first.Operand, []byte{0xAA, 0xBB}) {
		t.Errorf("operand = %x", first.Operand)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"undefined opcode", []byte{0x06}},
		{"truncated fixed operand", []byte{byte(opcode.PUSHINT32), 1, 2}},
		{"truncated prefix", []byte{byte(opcode.PUSHDATA2), 1}},
		{"truncated data", []byte{byte(opcode.PUSHDATA1), 5, 1, 2}},
		{"negative length", []byte{byte(opcode.PUSHDATA4), 0xFF, 0xFF, 0xFF, 0xFF}},
		{"truncated jump", []byte{byte(opcode.JMP_L), 0}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := New(tc.code)
			if _, err := s.GetInstruction(0); !errors.Is(err, ErrBadScript) {
				t.Errorf("expected ErrBadScript, got %v", err)
			}
			if _, err := NewStrict(tc.code); !errors.Is(err, ErrBadScript) {
				t.Errorf("strict: expected ErrBadScript, got %v", err)
			}
		})
	}
}

// ============ Strict Mode Tests ============

func TestStrictRejectsJumpIntoOperand(t *testing.T) {
	code := []byte{
		byte(opcode.PUSHINT16), 0x01, 0x00, // 0
		byte(opcode.JMP), 0xFE, // 3: target 1 is inside PUSHINT16
	}
	if _, err := NewStrict(code); !errors.Is(err, ErrBadScript) {
		t.Fatalf("expected ErrBadScript, got %v", err)
	}
	// Lenient construction succeeds; the bad target surfaces at execution.
	if _, err := New(code).GetInstruction(3); err != nil {
		t.Fatalf("lenient decode failed: %v", err)
	}
}

func TestStrictTargets(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		ok   bool
	}{
		{"jump to self", []byte{byte(opcode.JMP), 0x00}, true},
		{"jump past end", []byte{byte(opcode.JMP), 0x02}, false},
		{"jump before start", []byte{byte(opcode.JMP_L), 0xFF, 0xFF, 0xFF, 0xFF}, false},
		{"call forward", []byte{byte(opcode.CALL), 0x02, byte(opcode.RET)}, true},
		{"pusha to instruction", []byte{byte(opcode.PUSHA), 5, 0, 0, 0, byte(opcode.RET)}, true},
		{"pusha into operand", []byte{byte(opcode.PUSHA), 2, 0, 0, 0, byte(opcode.RET)}, false},
		{"try catch only", []byte{byte(opcode.TRY), 3, 0, byte(opcode.RET)}, true},
		{"try finally only", []byte{byte(opcode.TRY), 0, 3, byte(opcode.RET)}, true},
		{"try bad catch", []byte{byte(opcode.TRY), 2, 0, byte(opcode.RET)}, false},
		{"try bad finally", []byte{byte(opcode.TRY), 3, 9, byte(opcode.RET)}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewStrict(tc.code)
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrBadScript) {
				t.Errorf("expected ErrBadScript, got %v", err)
			}
		})
	}
}

func TestStrictTypeTags(t *testing.T) {
	for _, op := range []opcode.Opcode{opcode.NEWARRAY_T, opcode.ISTYPE, opcode.CONVERT} {
		if _, err := NewStrict([]byte{byte(op), 0x21}); err != nil {
			t.Errorf("%s Integer: unexpected error %v", op, err)
		}
		if _, err := NewStrict([]byte{byte(op), 0x00}); !errors.Is(err, ErrBadScript) {
			t.Errorf("%s Any: expected ErrBadScript, got %v", op, err)
		}
		if _, err := NewStrict([]byte{byte(op), 0x99}); !errors.Is(err, ErrBadScript) {
			t.Errorf("%s 0x99: expected ErrBadScript, got %v", op, err)
		}
	}
}

// ============ Builder Tests ============

func TestBuilderPushInt(t *testing.T) {
	tests := []struct {
		value int64
		code  []byte
	}{
		{-1, []byte{byte(opcode.PUSHM1)}},
		{0, []byte{byte(opcode.PUSH0)}},
		{16, []byte{byte(opcode.PUSH16)}},
		{17, []byte{byte(opcode.PUSHINT8), 17}},
		{-2, []byte{byte(opcode.PUSHINT8), 0xFE}},
		{200, []byte{byte(opcode.PUSHINT16), 0xC8, 0x00}},
		{-200, []byte{byte(opcode.PUSHINT16), 0x38, 0xFF}},
		{70000, []byte{byte(opcode.PUSHINT32), 0x70, 0x11, 0x01, 0x00}},
	}
	for _, tc := range tests {
		b := NewBuilder()
		b.EmitPushInt(tc.value)
		code, err := b.Bytes()
		if err != nil {
			t.Fatalf("Bytes failed: %v", err)
		}
		if diff := cmp.Diff(tc.code, code); diff != "" {
			t.Errorf("EmitPushInt(%d) mismatch (-want +got):\n%s", tc.value, diff)
		}
	}
}

func TestBuilderPushBigIntTooLarge(t *testing.T) {
	b := NewBuilder()
	huge := new(big.Int).Lsh(big.NewInt(1), 300)
	if _, err := b.EmitPushBigInt(huge); err == nil {
		t.Fatal("expected error for 300-bit integer")
	}
}

func TestBuilderShortJumpOutOfRange(t *testing.T) {
	b := NewBuilder()
	far := b.NewLabel()
	b.EmitJump(opcode.JMP, far)
	b.EmitPushData(make([]byte, 200))
	b.Mark(far)
	if _, err := b.Bytes(); !errors.Is(err, ErrBadScript) {
		t.Fatalf("expected ErrBadScript, got %v", err)
	}
}

func TestBuilderUnmarkedLabel(t *testing.T) {
	b := NewBuilder()
	b.EmitJump(opcode.JMP_L, b.NewLabel())
	if _, err := b.Bytes(); !errors.Is(err, ErrBadScript) {
		t.Fatalf("expected ErrBadScript, got %v", err)
	}
}

// ============ Disassembler Tests ============

func TestDisassemble(t *testing.T) {
	b := NewBuilder()
	end := b.NewLabel()
	b.EmitPushInt(1000)
	b.EmitPushData([]byte("hi"))
	b.EmitJump(opcode.JMP, end)
	b.Emit(opcode.NOP)
	b.Mark(end)
	b.Emit(opcode.RET)
	s, err := b.Script()
	if err != nil {
		t.Fatalf("Script failed: %v", err)
	}

	out := s.Disassemble()
	for _, want := range []string{
		"0000  PUSHINT16    1000",
		`0003  PUSHDATA1    "hi"`,
		"0007  JMP          000A",
		"0009  NOP",
		"000A  RET",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}
}

func TestHashDependsOnBytes(t *testing.T) {
	a := New([]byte{byte(opcode.PUSH1)})
	b := New([]byte{byte(opcode.PUSH1)})
	c := New([]byte{byte(opcode.PUSH2)})
	if a.Hash() != b.Hash() {
		t.Error("equal scripts should hash equally")
	}
	if a.Hash() == c.Hash() {
		t.Error("different scripts should hash differently")
	}
}
