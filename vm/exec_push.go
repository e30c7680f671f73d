package vm

import (
	"github.com/chazu/stackvm/pkg/bigint"
	"github.com/chazu/stackvm/pkg/opcode"
	"github.com/chazu/stackvm/pkg/script"
	"github.com/chazu/stackvm/vm/stackitem"
)

func (e *Engine) execPush(ctx *Context, ins script.Instruction) stepOutcome {
	switch op := ins.Opcode; {
	case op >= opcode.PUSHINT8 && op <= opcode.PUSHINT256:
		e.push(stackitem.NewBigInteger(bigint.FromBytes(ins.Operand)))
	case op == opcode.PUSHT:
		e.pushBool(true)
	case op == opcode.PUSHF:
		e.pushBool(false)
	case op == opcode.PUSHA:
		pos := ctx.ip + ins.TokenI32()
		if pos < 0 || pos > ctx.Script().Len() {
			throwf(ErrOutOfRange, "pointer position %d", pos)
		}
		e.push(stackitem.NewPointer(ctx.Script(), pos))
	case op == opcode.PUSHNULL:
		e.push(stackitem.Null{})
	case op == opcode.PUSHDATA1, op == opcode.PUSHDATA2, op == opcode.PUSHDATA4:
		if len(ins.Operand) > e.limits.MaxItemSize {
			throwf(ErrLimitExceeded, "push of %d bytes", len(ins.Operand))
		}
		e.push(stackitem.NewByteString(ins.Operand))
	case op >= opcode.PUSHM1 && op <= opcode.PUSH16:
		e.pushInt64(int64(op) - int64(opcode.PUSH0))
	default:
		throwf(ErrInvalidOperation, "opcode %s", op)
	}
	return advance
}
