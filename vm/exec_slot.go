package vm

import (
	"github.com/chazu/stackvm/pkg/opcode"
	"github.com/chazu/stackvm/pkg/script"
	"github.com/chazu/stackvm/vm/stackitem"
)

func (e *Engine) execSlot(ctx *Context, ins script.Instruction) stepOutcome {
	switch op := ins.Opcode; op {
	case opcode.INITSSLOT:
		if ctx.shared.statics != nil {
			throwf(ErrInvalidOperation, "static fields already initialized")
		}
		n := ins.TokenU8()
		if n == 0 {
			throwf(ErrInvalidOperation, "INITSSLOT with zero fields")
		}
		ctx.shared.statics = NewSlot(n, e.rc)
	case opcode.INITSLOT:
		if ctx.locals != nil || ctx.args != nil {
			throwf(ErrInvalidOperation, "slots already initialized")
		}
		if ins.TokenU16() == 0 {
			throwf(ErrInvalidOperation, "INITSLOT with zero locals and arguments")
		}
		if n := ins.TokenU8(); n > 0 {
			ctx.locals = NewSlot(n, e.rc)
		}
		if n := ins.TokenU8_1(); n > 0 {
			items := make([]stackitem.Item, n)
			for i := range items {
				items[i] = e.pop()
			}
			ctx.args = NewSlotWithItems(items, e.rc)
		}
	default:
		rel := int(op - opcode.LDSFLD0)
		if rel < 0 || rel >= 6*8 {
			throwf(ErrInvalidOperation, "opcode %s", op)
		}
		idx := rel % 8
		if idx == 7 {
			idx = ins.TokenU8()
		}
		var slot *Slot
		var name string
		switch rel / 8 {
		case 0, 1:
			slot, name = ctx.shared.statics, "static fields"
		case 2, 3:
			slot, name = ctx.locals, "local variables"
		default:
			slot, name = ctx.args, "arguments"
		}
		if slot == nil {
			throwf(ErrInvalidOperation, "%s not initialized", name)
		}
		if (rel/8)%2 == 0 {
			v, err := slot.Get(idx)
			must(err)
			e.push(v)
		} else {
			must(slot.Set(idx, e.pop()))
		}
	}
	return advance
}
