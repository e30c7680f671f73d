package script

import (
	"encoding/binary"
	"fmt"

	"github.com/chazu/stackvm/pkg/opcode"
)

// Instruction is one decoded opcode together with its operand bytes.
type Instruction struct {
	Opcode  opcode.Opcode
	Operand []byte
}

// RetInstruction is returned for positions at or past the end of a script.
var RetInstruction = Instruction{Opcode: opcode.RET}

// Size returns the encoded size of the instruction.
func (i Instruction) Size() int {
	prefix := i.Opcode.SizePrefix()
	if prefix > 0 {
		return 1 + prefix + len(i.Operand)
	}
	return 1 + i.Opcode.OperandSize()
}

// Bytes re-encodes the instruction.
func (i Instruction) Bytes() []byte {
	buf := make([]byte, 0, i.Size())
	buf = append(buf, byte(i.Opcode))
	switch i.Opcode.SizePrefix() {
	case 1:
		buf = append(buf, byte(len(i.Operand)))
	case 2:
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(i.Operand)))
	case 4:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(i.Operand)))
	}
	return append(buf, i.Operand...)
}

// TokenI8 returns the first operand byte as a signed offset.
func (i Instruction) TokenI8() int { return int(int8(i.Operand[0])) }

// TokenI8_1 returns the second operand byte as a signed offset.
func (i Instruction) TokenI8_1() int { return int(int8(i.Operand[1])) }

// TokenI32 returns the first four operand bytes as a signed offset.
func (i Instruction) TokenI32() int {
	return int(int32(binary.LittleEndian.Uint32(i.Operand)))
}

// TokenI32_1 returns operand bytes 4..8 as a signed offset.
func (i Instruction) TokenI32_1() int {
	return int(int32(binary.LittleEndian.Uint32(i.Operand[4:])))
}

// TokenU8 returns the first operand byte.
func (i Instruction) TokenU8() int { return int(i.Operand[0]) }

// TokenU8_1 returns the second operand byte.
func (i Instruction) TokenU8_1() int { return int(i.Operand[1]) }

// TokenU16 returns the first two operand bytes as an unsigned value.
func (i Instruction) TokenU16() uint16 { return binary.LittleEndian.Uint16(i.Operand) }

// TokenU32 returns the first four operand bytes as an unsigned value.
func (i Instruction) TokenU32() uint32 { return binary.LittleEndian.Uint32(i.Operand) }

// Offset returns the single relative target carried by a jump, call,
// ENDTRY or PUSHA instruction.
func (i Instruction) Offset() int {
	if i.Opcode == opcode.PUSHA || i.Opcode.IsLong() {
		return i.TokenI32()
	}
	return i.TokenI8()
}

// TryOffsets returns the catch and finally offsets of a TRY or TRY_L.
func (i Instruction) TryOffsets() (catch, finally int) {
	if i.Opcode == opcode.TRY_L {
		return i.TokenI32(), i.TokenI32_1()
	}
	return i.TokenI8(), i.TokenI8_1()
}

func (i Instruction) String() string {
	if len(i.Operand) == 0 {
		return i.Opcode.String()
	}
	return fmt.Sprintf("%s %x", i.Opcode, i.Operand)
}

// decode reads one instruction at ip.
func decode(code []byte, ip int) (Instruction, error) {
	op := opcode.Opcode(code[ip])
	if !op.IsValid() {
		return Instruction{}, fmt.Errorf("%w: invalid opcode 0x%02X at %d", ErrBadScript, byte(op), ip)
	}
	ins := Instruction{Opcode: op}
	pos := ip + 1
	size := op.OperandSize()
	if prefix := op.SizePrefix(); prefix > 0 {
		if pos+prefix > len(code) {
			return Instruction{}, fmt.Errorf("%w: %s at %d: truncated length prefix", ErrBadScript, op, ip)
		}
		switch prefix {
		case 1:
			size = int(code[pos])
		case 2:
			size = int(binary.LittleEndian.Uint16(code[pos:]))
		case 4:
			n := int32(binary.LittleEndian.Uint32(code[pos:]))
			if n < 0 {
				return Instruction{}, fmt.Errorf("%w: %s at %d: negative operand length", ErrBadScript, op, ip)
			}
			size = int(n)
		}
		pos += prefix
	}
	if size > 0 {
		if pos+size > len(code) || pos+size < pos {
			return Instruction{}, fmt.Errorf("%w: %s at %d: operand exceeds script (%d bytes needed)", ErrBadScript, op, ip, size)
		}
		ins.Operand = code[pos : pos+size : pos+size]
	}
	return ins, nil
}
