package vm

import (
	"errors"

	"github.com/chazu/stackvm/pkg/opcode"
	"github.com/chazu/stackvm/pkg/script"
	"github.com/chazu/stackvm/vm/stackitem"
)

func (e *Engine) execFlow(ctx *Context, ins script.Instruction) stepOutcome {
	switch op := ins.Opcode; op {
	case opcode.NOP:
		return advance
	case opcode.JMP, opcode.JMP_L:
		return e.jump(ctx, ins.Offset())
	case opcode.JMPIF, opcode.JMPIF_L:
		if e.popBool() {
			return e.jump(ctx, ins.Offset())
		}
		return advance
	case opcode.JMPIFNOT, opcode.JMPIFNOT_L:
		if !e.popBool() {
			return e.jump(ctx, ins.Offset())
		}
		return advance
	case opcode.JMPEQ, opcode.JMPEQ_L, opcode.JMPNE, opcode.JMPNE_L,
		opcode.JMPGT, opcode.JMPGT_L, opcode.JMPGE, opcode.JMPGE_L,
		opcode.JMPLT, opcode.JMPLT_L, opcode.JMPLE, opcode.JMPLE_L:
		x2 := e.popInt()
		x1 := e.popInt()
		if compareJump(op, x1.Cmp(x2)) {
			return e.jump(ctx, ins.Offset())
		}
		return advance
	case opcode.CALL, opcode.CALL_L:
		e.call(ctx, ctx.ip+ins.Offset())
		return advance
	case opcode.CALLA:
		p, ok := e.pop().(*stackitem.Pointer)
		if !ok {
			throwf(stackitem.ErrInvalidCast, "CALLA needs a Pointer")
		}
		if p.Script() != ctx.Script() {
			throwf(ErrInvalidOperation, "pointer belongs to another script")
		}
		e.call(ctx, p.Position())
		return advance
	case opcode.CALLT:
		if e.tokens == nil {
			throwf(ErrNotFound, "token %d: no token loader", ins.TokenU16())
		}
		return e.hostResult(e.tokens.LoadToken(e, ins.TokenU16()))
	case opcode.SYSCALL:
		if e.sysCalls == nil {
			throwf(ErrNotFound, "syscall 0x%08X: no handler", ins.TokenU32())
		}
		return e.hostResult(e.sysCalls.OnSysCall(e, ins.TokenU32()))
	case opcode.ABORT:
		throwf(ErrAborted, "ABORT")
	case opcode.ABORTMSG:
		msg := e.popBytes()
		throwf(ErrAborted, "ABORT: %s", msg)
	case opcode.ASSERT:
		if !e.popBool() {
			throwf(ErrAssertFailed, "ASSERT")
		}
		return advance
	case opcode.ASSERTMSG:
		msg := e.popBytes()
		if !e.popBool() {
			throwf(ErrAssertFailed, "ASSERT: %s", msg)
		}
		return advance
	case opcode.THROW:
		return e.throwItem(e.pop())
	case opcode.TRY, opcode.TRY_L:
		catch, finally := ins.TryOffsets()
		if catch == 0 && finally == 0 {
			throwf(ErrInvalidOperation, "TRY without catch or finally")
		}
		if len(ctx.tryStack) >= e.limits.MaxTryNestingDepth {
			throwf(ErrLimitExceeded, "try nesting depth %d", len(ctx.tryStack))
		}
		catchPtr, finallyPtr := -1, -1
		if catch != 0 {
			catchPtr = ctx.ip + catch
		}
		if finally != 0 {
			finallyPtr = ctx.ip + finally
		}
		ctx.pushTry(newExceptionHandlingContext(catchPtr, finallyPtr))
		return advance
	case opcode.ENDTRY, opcode.ENDTRY_L:
		t := ctx.peekTry()
		if t == nil {
			throwf(ErrInvalidOperation, "ENDTRY outside a try block")
		}
		if t.State == Finally {
			throwf(ErrInvalidOperation, "ENDTRY inside a finally block")
		}
		end := ctx.ip + ins.Offset()
		if t.HasFinally() {
			t.State = Finally
			t.EndPointer = end
			ctx.ip = t.FinallyPointer
		} else {
			ctx.popTry()
			ctx.ip = end
		}
		return jumped
	case opcode.ENDFINALLY:
		t := ctx.popTry()
		if t == nil {
			throwf(ErrInvalidOperation, "ENDFINALLY outside a try block")
		}
		if e.uncaught == nil {
			ctx.ip = t.EndPointer
			return jumped
		}
		return e.handleException()
	case opcode.RET:
		return e.ret()
	}
	throwf(ErrInvalidOperation, "opcode %s", ins.Opcode)
	return advance
}

func compareJump(op opcode.Opcode, cmp int) bool {
	switch op {
	case opcode.JMPEQ, opcode.JMPEQ_L:
		return cmp == 0
	case opcode.JMPNE, opcode.JMPNE_L:
		return cmp != 0
	case opcode.JMPGT, opcode.JMPGT_L:
		return cmp > 0
	case opcode.JMPGE, opcode.JMPGE_L:
		return cmp >= 0
	case opcode.JMPLT, opcode.JMPLT_L:
		return cmp < 0
	default:
		return cmp <= 0
	}
}

func (e *Engine) jump(ctx *Context, offset int) stepOutcome {
	pos := ctx.ip + offset
	if pos < 0 || pos >= ctx.Script().Len() {
		throwf(ErrOutOfRange, "jump target %d outside script of %d bytes", pos, ctx.Script().Len())
	}
	ctx.ip = pos
	return jumped
}

func (e *Engine) call(ctx *Context, pos int) {
	if pos < 0 || pos >= ctx.Script().Len() {
		throwf(ErrOutOfRange, "call target %d outside script of %d bytes", pos, ctx.Script().Len())
	}
	must(e.LoadContext(ctx.Clone(pos)))
}

// hostResult turns the error of a host callback into the step outcome. A
// CatchableError becomes a script exception.
func (e *Engine) hostResult(err error) stepOutcome {
	if err == nil {
		return advance
	}
	var ce *CatchableError
	if errors.As(err, &ce) {
		return e.throwItem(stackitem.NewByteString([]byte(ce.Message)))
	}
	panic(fault{err: err})
}

func (e *Engine) ret() stepOutcome {
	ctx := e.CurrentContext()
	dst := e.result
	if n := len(e.invocation); n > 1 {
		dst = e.invocation[n-2].EvaluationStack()
	}
	src := ctx.EvaluationStack()
	if src != dst {
		if ctx.rvcount >= 0 && src.Len() != ctx.rvcount {
			throwf(ErrInvalidOperation, "frame returns %d values, expected %d", src.Len(), ctx.rvcount)
		}
		src.MoveTo(dst, -1)
	}
	e.unloadTop()
	if len(e.invocation) == 0 {
		e.state = HALT
	}
	return returned
}

func (e *Engine) throwItem(item stackitem.Item) stepOutcome {
	e.uncaught = item
	return e.handleException()
}

// handleException unwinds to the innermost try entry able to handle the
// pending exception. Frames without one are unloaded on the way.
func (e *Engine) handleException() stepOutcome {
	for pop, i := 0, len(e.invocation)-1; i >= 0; pop, i = pop+1, i-1 {
		ctx := e.invocation[i]
		for t := ctx.peekTry(); t != nil; t = ctx.peekTry() {
			if t.State == Finally || (t.State == Catch && !t.HasFinally()) {
				ctx.popTry()
				continue
			}
			for range pop {
				e.unloadTop()
			}
			if t.State == Try && t.HasCatch() {
				t.State = Catch
				e.push(e.uncaught)
				ctx.ip = t.CatchPointer
				e.uncaught = nil
			} else {
				t.State = Finally
				ctx.ip = t.FinallyPointer
			}
			return jumped
		}
	}
	panic(fault{err: &UnhandledError{Item: e.uncaught}})
}
