package vm

import (
	"github.com/chazu/stackvm/pkg/opcode"
	"github.com/chazu/stackvm/pkg/script"
)

func (e *Engine) execStack(ctx *Context, ins script.Instruction) stepOutcome {
	s := ctx.EvaluationStack()
	switch ins.Opcode {
	case opcode.DEPTH:
		e.pushInt64(int64(s.Len()))
	case opcode.DROP:
		e.pop()
	case opcode.NIP:
		_, err := s.Remove(1)
		must(err)
	case opcode.XDROP:
		n := e.popCount()
		if n < 0 {
			throwf(ErrOutOfRange, "XDROP %d", n)
		}
		_, err := s.Remove(n)
		must(err)
	case opcode.CLEAR:
		s.Clear()
	case opcode.DUP:
		e.push(e.peek(0))
	case opcode.OVER:
		e.push(e.peek(1))
	case opcode.PICK:
		n := e.popCount()
		if n < 0 {
			throwf(ErrOutOfRange, "PICK %d", n)
		}
		e.push(e.peek(n))
	case opcode.TUCK:
		must(s.Insert(2, e.peek(0)))
	case opcode.SWAP:
		x, err := s.Remove(1)
		must(err)
		e.push(x)
	case opcode.ROT:
		x, err := s.Remove(2)
		must(err)
		e.push(x)
	case opcode.ROLL:
		n := e.popCount()
		if n < 0 {
			throwf(ErrOutOfRange, "ROLL %d", n)
		}
		if n == 0 {
			break
		}
		x, err := s.Remove(n)
		must(err)
		e.push(x)
	case opcode.REVERSE3:
		must(s.Reverse(3))
	case opcode.REVERSE4:
		must(s.Reverse(4))
	case opcode.REVERSEN:
		must(s.Reverse(e.popCount()))
	default:
		throwf(ErrInvalidOperation, "opcode %s", ins.Opcode)
	}
	return advance
}
