package vm

import (
	"github.com/chazu/stackvm/pkg/opcode"
	"github.com/chazu/stackvm/pkg/script"
	"github.com/chazu/stackvm/vm/stackitem"
)

func (e *Engine) execType(_ *Context, ins script.Instruction) stepOutcome {
	switch ins.Opcode {
	case opcode.ISNULL:
		e.pushBool(stackitem.IsNull(e.pop()))
	case opcode.ISTYPE:
		t := stackitem.Type(ins.TokenU8())
		if t == stackitem.AnyT || !t.IsValid() {
			throwf(ErrInvalidOperation, "ISTYPE with type 0x%02X", byte(t))
		}
		e.pushBool(e.pop().Type() == t)
	case opcode.CONVERT:
		t := stackitem.Type(ins.TokenU8())
		if !t.IsValid() {
			throwf(ErrInvalidOperation, "CONVERT to type 0x%02X", byte(t))
		}
		v, err := e.pop().ConvertTo(t)
		must(err)
		e.push(v)
	default:
		throwf(ErrInvalidOperation, "opcode %s", ins.Opcode)
	}
	return advance
}
