package vm

import (
	"bytes"

	"github.com/chazu/stackvm/pkg/opcode"
	"github.com/chazu/stackvm/pkg/script"
	"github.com/chazu/stackvm/vm/stackitem"
)

func (e *Engine) execSplice(_ *Context, ins script.Instruction) stepOutcome {
	switch ins.Opcode {
	case opcode.NEWBUFFER:
		n := e.popCount()
		if n < 0 || n > e.limits.MaxItemSize {
			throwf(ErrLimitExceeded, "buffer of %d bytes", n)
		}
		e.push(stackitem.NewBuffer(make([]byte, n)))
	case opcode.MEMCPY:
		count := e.popNonNegative("count")
		si := e.popNonNegative("source index")
		src := e.popBytes()
		if si+count > len(src) {
			throwf(ErrOutOfRange, "copy of %d bytes from %d in %d", count, si, len(src))
		}
		di := e.popNonNegative("destination index")
		dst, ok := e.pop().(*stackitem.Buffer)
		if !ok {
			throwf(stackitem.ErrInvalidCast, "MEMCPY destination must be a Buffer")
		}
		if di+count > dst.Len() {
			throwf(ErrOutOfRange, "copy of %d bytes to %d in %d", count, di, dst.Len())
		}
		copy(dst.Bytes()[di:di+count], src[si:si+count])
	case opcode.CAT:
		x2 := e.popBytes()
		x1 := e.popBytes()
		n := len(x1) + len(x2)
		if n > e.limits.MaxItemSize {
			throwf(ErrLimitExceeded, "concatenation of %d bytes", n)
		}
		out := make([]byte, 0, n)
		out = append(append(out, x1...), x2...)
		e.push(stackitem.NewBuffer(out))
	case opcode.SUBSTR:
		count := e.popNonNegative("count")
		index := e.popNonNegative("index")
		x := e.popBytes()
		if index+count > len(x) {
			throwf(ErrOutOfRange, "substring %d+%d of %d bytes", index, count, len(x))
		}
		e.push(stackitem.NewBuffer(bytes.Clone(x[index : index+count])))
	case opcode.LEFT:
		count := e.popNonNegative("count")
		x := e.popBytes()
		if count > len(x) {
			throwf(ErrOutOfRange, "left %d of %d bytes", count, len(x))
		}
		e.push(stackitem.NewBuffer(bytes.Clone(x[:count])))
	case opcode.RIGHT:
		count := e.popNonNegative("count")
		x := e.popBytes()
		if count > len(x) {
			throwf(ErrOutOfRange, "right %d of %d bytes", count, len(x))
		}
		e.push(stackitem.NewBuffer(bytes.Clone(x[len(x)-count:])))
	default:
		throwf(ErrInvalidOperation, "opcode %s", ins.Opcode)
	}
	return advance
}

func (e *Engine) popNonNegative(what string) int {
	n := e.popCount()
	if n < 0 {
		throwf(ErrOutOfRange, "negative %s %d", what, n)
	}
	return n
}
