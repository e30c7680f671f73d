package script

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/chazu/stackvm/pkg/bigint"
	"github.com/chazu/stackvm/pkg/opcode"
)

// Label names a position in a script under construction. Labels are
// created with NewLabel, placed with Mark, and referenced by jumps before
// or after they are placed.
type Label int

// NoLabel marks an absent TRY catch or finally target.
const NoLabel Label = -1

type fixup struct {
	at     int // instruction start
	field  int // offset of the patched field within the code
	wide   bool
	target Label
}

// Builder assembles bytecode. Forward references are patched when the
// script is finalized.
type Builder struct {
	code   []byte
	labels []int
	fixups []fixup
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{code: make([]byte, 0, 64)}
}

// Len returns the current offset.
func (b *Builder) Len() int {
	return len(b.code)
}

// Emit appends an opcode with raw operand bytes and returns its offset.
func (b *Builder) Emit(op opcode.Opcode, operand ...byte) int {
	offset := len(b.code)
	b.code = append(b.code, byte(op))
	b.code = append(b.code, operand...)
	return offset
}

// EmitPushInt emits the shortest push for n.
func (b *Builder) EmitPushInt(n int64) int {
	switch {
	case n == -1:
		return b.Emit(opcode.PUSHM1)
	case n >= 0 && n <= 16:
		return b.Emit(opcode.PUSH0 + opcode.Opcode(n))
	}
	offset, _ := b.EmitPushBigInt(big.NewInt(n))
	return offset
}

// EmitPushBigInt emits the shortest PUSHINT form that holds n. Values
// wider than 32 bytes cannot be encoded.
func (b *Builder) EmitPushBigInt(n *big.Int) (int, error) {
	if n.IsInt64() {
		if v := n.Int64(); v >= -1 && v <= 16 {
			return b.EmitPushInt(v), nil
		}
	}
	enc := bigint.ToBytes(n)
	var op opcode.Opcode
	var width int
	switch {
	case len(enc) <= 1:
		op, width = opcode.PUSHINT8, 1
	case len(enc) <= 2:
		op, width = opcode.PUSHINT16, 2
	case len(enc) <= 4:
		op, width = opcode.PUSHINT32, 4
	case len(enc) <= 8:
		op, width = opcode.PUSHINT64, 8
	case len(enc) <= 16:
		op, width = opcode.PUSHINT128, 16
	case len(enc) <= 32:
		op, width = opcode.PUSHINT256, 32
	default:
		return 0, fmt.Errorf("integer %s needs %d bytes, max is 32", n, len(enc))
	}
	pad := byte(0x00)
	if n.Sign() < 0 {
		pad = 0xFF
	}
	operand := make([]byte, width)
	copy(operand, enc)
	for i := len(enc); i < width; i++ {
		operand[i] = pad
	}
	return b.Emit(op, operand...), nil
}

// EmitPushBool emits PUSHT or PUSHF.
func (b *Builder) EmitPushBool(v bool) int {
	if v {
		return b.Emit(opcode.PUSHT)
	}
	return b.Emit(opcode.PUSHF)
}

// EmitPushData emits the shortest PUSHDATA form for data.
func (b *Builder) EmitPushData(data []byte) int {
	n := len(data)
	switch {
	case n < 0x100:
		return b.Emit(opcode.PUSHDATA1, append([]byte{byte(n)}, data...)...)
	case n < 0x10000:
		prefix := binary.LittleEndian.AppendUint16(nil, uint16(n))
		return b.Emit(opcode.PUSHDATA2, append(prefix, data...)...)
	default:
		prefix := binary.LittleEndian.AppendUint32(nil, uint32(n))
		return b.Emit(opcode.PUSHDATA4, append(prefix, data...)...)
	}
}

// EmitPush emits a push for a Go value: nil, bool, int, int64, *big.Int,
// []byte or string.
func (b *Builder) EmitPush(v any) (int, error) {
	switch x := v.(type) {
	case nil:
		return b.Emit(opcode.PUSHNULL), nil
	case bool:
		return b.EmitPushBool(x), nil
	case int:
		return b.EmitPushInt(int64(x)), nil
	case int64:
		return b.EmitPushInt(x), nil
	case *big.Int:
		return b.EmitPushBigInt(x)
	case []byte:
		return b.EmitPushData(x), nil
	case string:
		return b.EmitPushData([]byte(x)), nil
	default:
		return 0, fmt.Errorf("cannot emit push for %T", v)
	}
}

// NewLabel allocates an unplaced label.
func (b *Builder) NewLabel() Label {
	b.labels = append(b.labels, -1)
	return Label(len(b.labels) - 1)
}

// Mark places l at the current offset.
func (b *Builder) Mark(l Label) {
	b.labels[l] = len(b.code)
}

// EmitJump emits a jump, call, ENDTRY or PUSHA whose target is l. The
// offset width follows the opcode: short forms take one byte, long forms
// and PUSHA take four.
func (b *Builder) EmitJump(op opcode.Opcode, l Label) int {
	if !op.HasTarget() {
		panic(fmt.Sprintf("script: %s does not take a target", op))
	}
	offset := len(b.code)
	wide := op.IsLong() || op == opcode.PUSHA
	b.code = append(b.code, byte(op))
	b.fixups = append(b.fixups, fixup{at: offset, field: len(b.code), wide: wide, target: l})
	if wide {
		b.code = append(b.code, 0, 0, 0, 0)
	} else {
		b.code = append(b.code, 0)
	}
	return offset
}

// EmitCall emits CALL_L to l.
func (b *Builder) EmitCall(l Label) int {
	return b.EmitJump(opcode.CALL_L, l)
}

// EmitTry emits TRY_L with the given catch and finally labels. Pass
// NoLabel for an absent target.
func (b *Builder) EmitTry(catch, finally Label) int {
	offset := b.Emit(opcode.TRY_L, make([]byte, 8)...)
	if catch != NoLabel {
		b.fixups = append(b.fixups, fixup{at: offset, field: offset + 1, wide: true, target: catch})
	}
	if finally != NoLabel {
		b.fixups = append(b.fixups, fixup{at: offset, field: offset + 5, wide: true, target: finally})
	}
	return offset
}

// EmitSysCall emits SYSCALL with a host method identifier.
func (b *Builder) EmitSysCall(method uint32) int {
	return b.Emit(opcode.SYSCALL, binary.LittleEndian.AppendUint32(nil, method)...)
}

// EmitCallT emits CALLT with a method token.
func (b *Builder) EmitCallT(token uint16) int {
	return b.Emit(opcode.CALLT, binary.LittleEndian.AppendUint16(nil, token)...)
}

// Bytes resolves every label reference and returns the finished code.
func (b *Builder) Bytes() ([]byte, error) {
	code := make([]byte, len(b.code))
	copy(code, b.code)
	for _, f := range b.fixups {
		if int(f.target) < 0 || int(f.target) >= len(b.labels) {
			return nil, fmt.Errorf("%w: unknown label %d at %d", ErrBadScript, f.target, f.at)
		}
		pos := b.labels[f.target]
		if pos < 0 {
			return nil, fmt.Errorf("%w: label %d referenced at %d was never marked", ErrBadScript, f.target, f.at)
		}
		delta := pos - f.at
		if f.wide {
			binary.LittleEndian.PutUint32(code[f.field:], uint32(int32(delta)))
			continue
		}
		if delta < -128 || delta > 127 {
			return nil, fmt.Errorf("%w: offset %d at %d does not fit a short jump", ErrBadScript, delta, f.at)
		}
		code[f.field] = byte(int8(delta))
	}
	return code, nil
}

// Script finalizes the builder into a strictly validated Script.
func (b *Builder) Script() (*Script, error) {
	code, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	return NewStrict(code)
}
