package script

import (
	"fmt"
	"strings"

	"github.com/chazu/stackvm/pkg/bigint"
	"github.com/chazu/stackvm/pkg/opcode"
)

// Disassemble returns a human-readable listing of the script. Decoding
// stops at the first malformed instruction, which is reported inline.
func (s *Script) Disassemble() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("; %d bytes, hash %x\n", s.Len(), s.Hash()))
	if s.strict {
		sb.WriteString("; strict\n")
	}

	for ip := 0; ip < s.Len(); {
		ins, err := s.GetInstruction(ip)
		if err != nil {
			sb.WriteString(fmt.Sprintf("%04X  <%v>\n", ip, err))
			break
		}
		sb.WriteString(fmt.Sprintf("%04X  %s\n", ip, formatInstruction(ip, ins)))
		ip += ins.Size()
	}
	return sb.String()
}

// formatInstruction renders operands according to their meaning: integers
// in decimal, targets as absolute offsets, data as hex plus a printable
// preview.
func formatInstruction(ip int, ins Instruction) string {
	op := ins.Opcode
	switch {
	case op >= opcode.PUSHINT8 && op <= opcode.PUSHINT256:
		return fmt.Sprintf("%-12s %s", op, bigint.FromBytes(ins.Operand))
	case op == opcode.PUSHDATA1 || op == opcode.PUSHDATA2 || op == opcode.PUSHDATA4:
		return fmt.Sprintf("%-12s %s", op, formatData(ins.Operand))
	case op.HasTarget():
		return fmt.Sprintf("%-12s %04X", op, ip+ins.Offset())
	case op == opcode.TRY || op == opcode.TRY_L:
		catch, finally := ins.TryOffsets()
		return fmt.Sprintf("%-12s catch=%s finally=%s", op, formatTarget(ip, catch), formatTarget(ip, finally))
	case op == opcode.SYSCALL:
		return fmt.Sprintf("%-12s 0x%08X", op, ins.TokenU32())
	case op == opcode.CALLT:
		return fmt.Sprintf("%-12s %d", op, ins.TokenU16())
	case op == opcode.INITSLOT:
		return fmt.Sprintf("%-12s locals=%d args=%d", op, ins.TokenU8(), ins.TokenU8_1())
	case op == opcode.NEWARRAY_T || op == opcode.ISTYPE || op == opcode.CONVERT:
		return fmt.Sprintf("%-12s 0x%02X", op, ins.TokenU8())
	case len(ins.Operand) == 1:
		return fmt.Sprintf("%-12s %d", op, ins.TokenU8())
	}
	return ins.String()
}

func formatTarget(ip, offset int) string {
	if offset == 0 {
		return "-"
	}
	return fmt.Sprintf("%04X", ip+offset)
}

func formatData(data []byte) string {
	const preview = 32
	printable := len(data) > 0
	for _, c := range data {
		if c < 0x20 || c > 0x7E {
			printable = false
			break
		}
	}
	if printable {
		text := string(data)
		if len(text) > preview {
			text = text[:preview-3] + "..."
		}
		return fmt.Sprintf("%q", text)
	}
	if len(data) > preview {
		return fmt.Sprintf("0x%x... (%d bytes)", data[:preview], len(data))
	}
	return fmt.Sprintf("0x%x", data)
}
