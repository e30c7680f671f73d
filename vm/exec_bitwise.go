package vm

import (
	"math/big"

	"github.com/chazu/stackvm/pkg/opcode"
	"github.com/chazu/stackvm/pkg/script"
)

func (e *Engine) execBitwise(_ *Context, ins script.Instruction) stepOutcome {
	switch ins.Opcode {
	case opcode.INVERT:
		x := e.popInt()
		e.pushInt(new(big.Int).Not(x))
	case opcode.AND:
		x2, x1 := e.popInt(), e.popInt()
		e.pushInt(new(big.Int).And(x1, x2))
	case opcode.OR:
		x2, x1 := e.popInt(), e.popInt()
		e.pushInt(new(big.Int).Or(x1, x2))
	case opcode.XOR:
		x2, x1 := e.popInt(), e.popInt()
		e.pushInt(new(big.Int).Xor(x1, x2))
	case opcode.EQUAL, opcode.NOTEQUAL:
		x2, x1 := e.pop(), e.pop()
		eq, err := x1.Equals(x2, e.itemLimits)
		must(err)
		e.pushBool(eq == (ins.Opcode == opcode.EQUAL))
	default:
		throwf(ErrInvalidOperation, "opcode %s", ins.Opcode)
	}
	return advance
}
