package vm

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/tliron/commonlog"

	"github.com/chazu/stackvm/pkg/opcode"
	"github.com/chazu/stackvm/pkg/script"
	"github.com/chazu/stackvm/vm/stackitem"
)

// ---------------------------------------------------------------------------
// Host hooks
// ---------------------------------------------------------------------------

// SysCallHandler resolves SYSCALL method identifiers. Arguments and
// results are exchanged through Engine.Push and Engine.Pop.
type SysCallHandler interface {
	OnSysCall(e *Engine, method uint32) error
}

// SysCallFunc adapts a function to SysCallHandler.
type SysCallFunc func(e *Engine, method uint32) error

func (f SysCallFunc) OnSysCall(e *Engine, method uint32) error { return f(e, method) }

// TokenLoader resolves CALLT tokens, usually by loading a new context.
type TokenLoader interface {
	LoadToken(e *Engine, token uint16) error
}

// TokenLoaderFunc adapts a function to TokenLoader.
type TokenLoaderFunc func(e *Engine, token uint16) error

func (f TokenLoaderFunc) LoadToken(e *Engine, token uint16) error { return f(e, token) }

// InstructionHook observes every instruction. An error from either method
// faults the engine.
type InstructionHook interface {
	PreExecute(e *Engine, ctx *Context, ins script.Instruction) error
	PostExecute(e *Engine, ctx *Context, ins script.Instruction) error
}

// ContextUnloadedHook is called after a frame leaves the invocation stack.
type ContextUnloadedHook func(e *Engine, ctx *Context)

// CatchableError is returned by host handlers to raise a script exception
// instead of faulting. The message becomes the thrown ByteString.
type CatchableError struct {
	Message string
}

func (e *CatchableError) Error() string { return e.Message }

// ---------------------------------------------------------------------------
// Engine
// ---------------------------------------------------------------------------

// stepOutcome tells the step loop whether the handler repositioned the
// instruction pointer.
type stepOutcome uint8

const (
	advance stepOutcome = iota
	jumped
	returned
)

// Engine executes scripts. It is not safe for concurrent use.
type Engine struct {
	limits     Limits
	itemLimits stackitem.Limits
	rc         *ReferenceCounter

	invocation []*Context
	entry      *Context
	result     *EvaluationStack

	state    State
	uncaught stackitem.Item
	faultErr error

	sysCalls SysCallHandler
	tokens   TokenLoader
	hook     InstructionHook
	unloaded ContextUnloadedHook

	log   commonlog.Logger
	trace bool
}

// NewEngine creates an engine with DefaultLimits.
func NewEngine() *Engine {
	e, _ := NewEngineWithLimits(DefaultLimits())
	return e
}

// NewEngineWithLimits creates an engine with custom limits.
func NewEngineWithLimits(lim Limits) (*Engine, error) {
	if err := lim.Validate(); err != nil {
		return nil, err
	}
	rc := NewReferenceCounter()
	return &Engine{
		limits:     lim,
		itemLimits: lim.itemLimits(),
		rc:         rc,
		result:     NewEvaluationStack(rc),
		state:      BREAK,
		log:        commonlog.GetLogger("stackvm.vm"),
	}, nil
}

// SetSysCallHandler installs the SYSCALL resolver.
func (e *Engine) SetSysCallHandler(h SysCallHandler) { e.sysCalls = h }

// SetTokenLoader installs the CALLT resolver.
func (e *Engine) SetTokenLoader(l TokenLoader) { e.tokens = l }

// SetInstructionHook installs a hook run around every instruction.
func (e *Engine) SetInstructionHook(h InstructionHook) { e.hook = h }

// SetContextUnloadedHook installs a hook run when a frame is unloaded.
func (e *Engine) SetContextUnloadedHook(h ContextUnloadedHook) { e.unloaded = h }

// SetLogger replaces the engine logger.
func (e *Engine) SetLogger(l commonlog.Logger) { e.log = l }

// SetTrace enables per-instruction debug logging.
func (e *Engine) SetTrace(on bool) { e.trace = on }

// State returns the execution state.
func (e *Engine) State() State { return e.state }

// Limits returns the engine limits.
func (e *Engine) Limits() Limits { return e.limits }

// ReferenceCounter returns the engine's reference counter.
func (e *Engine) ReferenceCounter() *ReferenceCounter { return e.rc }

// ResultStack holds the values left by the entry frame after HALT.
func (e *Engine) ResultStack() *EvaluationStack { return e.result }

// UncaughtException returns the pending exception, if any. After a FAULT
// caused by an unhandled exception it holds the thrown item.
func (e *Engine) UncaughtException() stackitem.Item { return e.uncaught }

// FaultException returns the reason for FAULT as a *FaultError, or nil.
func (e *Engine) FaultException() error { return e.faultErr }

// InvocationStack returns the frames, innermost last.
func (e *Engine) InvocationStack() []*Context { return e.invocation }

// CurrentContext returns the innermost frame, or nil.
func (e *Engine) CurrentContext() *Context {
	if len(e.invocation) == 0 {
		return nil
	}
	return e.invocation[len(e.invocation)-1]
}

// EntryContext returns the first frame loaded, or nil once the invocation
// stack has emptied.
func (e *Engine) EntryContext() *Context { return e.entry }

// LoadScript pushes a new frame executing s from pos. rvcount is the number
// of values the frame must return, -1 for any.
func (e *Engine) LoadScript(s *script.Script, rvcount, pos int) (*Context, error) {
	ctx := newContext(s, rvcount, pos, e.rc)
	if err := e.LoadContext(ctx); err != nil {
		return nil, err
	}
	return ctx, nil
}

// LoadContext pushes ctx onto the invocation stack.
func (e *Engine) LoadContext(ctx *Context) error {
	if len(e.invocation) >= e.limits.MaxInvocationStackSize {
		return fmt.Errorf("%w: invocation stack depth %d", ErrLimitExceeded, len(e.invocation))
	}
	e.invocation = append(e.invocation, ctx)
	if e.entry == nil {
		e.entry = ctx
	}
	return nil
}

// unloadTop removes the innermost frame and releases what it owned.
func (e *Engine) unloadTop() *Context {
	n := len(e.invocation) - 1
	ctx := e.invocation[n]
	e.invocation[n] = nil
	e.invocation = e.invocation[:n]

	cur := e.CurrentContext()
	if cur == nil {
		e.entry = nil
	}
	if ctx.shared.statics != nil && (cur == nil || cur.shared.statics != ctx.shared.statics) {
		ctx.shared.statics.ClearReferences()
	}
	if ctx.locals != nil {
		ctx.locals.ClearReferences()
	}
	if ctx.args != nil {
		ctx.args.ClearReferences()
	}
	if cur == nil || cur.shared.estack != ctx.shared.estack {
		ctx.shared.estack.Clear()
	}
	if e.unloaded != nil {
		e.unloaded(e, ctx)
	}
	return ctx
}

// Push pushes item onto the current evaluation stack. A compound item
// already owned by another engine is rejected.
func (e *Engine) Push(item stackitem.Item) (err error) {
	ctx := e.CurrentContext()
	if ctx == nil {
		return ErrNoContext
	}
	defer func() {
		if r := recover(); r != nil {
			f, ok := r.(fault)
			if !ok {
				panic(r)
			}
			err = f.err
		}
	}()
	ctx.EvaluationStack().Push(item)
	return nil
}

// Pop removes the top of the current evaluation stack.
func (e *Engine) Pop() (stackitem.Item, error) {
	ctx := e.CurrentContext()
	if ctx == nil {
		return nil, ErrNoContext
	}
	return ctx.EvaluationStack().Pop()
}

// Peek returns the item n positions below the top of the current stack.
func (e *Engine) Peek(n int) (stackitem.Item, error) {
	ctx := e.CurrentContext()
	if ctx == nil {
		return nil, ErrNoContext
	}
	return ctx.EvaluationStack().Peek(n)
}

// ---------------------------------------------------------------------------
// Step loop
// ---------------------------------------------------------------------------

// Execute runs until HALT or FAULT and returns the final state.
func (e *Engine) Execute() State {
	if e.state == BREAK {
		e.state = NONE
	}
	for e.state != HALT && e.state != FAULT {
		e.ExecuteNext()
	}
	return e.state
}

// ExecuteNext executes a single instruction. With an empty invocation
// stack it moves the engine to HALT.
func (e *Engine) ExecuteNext() {
	if e.state == HALT || e.state == FAULT {
		return
	}
	ctx := e.CurrentContext()
	if ctx == nil {
		e.state = HALT
		return
	}
	ip := ctx.ip
	ins, err := ctx.CurrentInstruction()
	if err != nil {
		var op opcode.Opcode
		if code := ctx.Script().Bytes(); ip >= 0 && ip < len(code) {
			op = opcode.Opcode(code[ip])
		}
		e.onFault(ip, op, err)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			switch f := r.(type) {
			case fault:
				e.onFault(ip, ins.Opcode, f.err)
			case error:
				e.onFault(ip, ins.Opcode, f)
			default:
				e.onFault(ip, ins.Opcode, fmt.Errorf("%v", r))
			}
		}
	}()

	if e.trace {
		e.log.Debugf("%04X %-12s %s", ip, ins, ctx.EvaluationStack())
	}
	if e.hook != nil {
		must(e.hook.PreExecute(e, ctx, ins))
	}
	outcome := e.dispatch(ctx, ins)
	if e.hook != nil {
		must(e.hook.PostExecute(e, ctx, ins))
	}
	e.checkReferences()
	if outcome == advance {
		must(ctx.moveNext())
	}
}

func (e *Engine) checkReferences() {
	if e.rc.Count() < e.limits.MaxStackSize {
		return
	}
	if n := e.rc.CheckZeroReferred(); n > e.limits.MaxStackSize {
		throwf(ErrLimitExceeded, "stack size %d exceeds %d", n, e.limits.MaxStackSize)
	}
}

func (e *Engine) onFault(ip int, op opcode.Opcode, err error) {
	e.state = FAULT
	e.faultErr = &FaultError{IP: ip, Opcode: op, Err: err}
	var unhandled *UnhandledError
	if errors.As(err, &unhandled) {
		e.log.Errorf("%v", e.faultErr)
		return
	}
	e.log.Infof("FAULT: %v", e.faultErr)
}

func (e *Engine) dispatch(ctx *Context, ins script.Instruction) stepOutcome {
	switch ins.Opcode.Category() {
	case opcode.CategoryPush:
		return e.execPush(ctx, ins)
	case opcode.CategoryFlow, opcode.CategoryExtension:
		return e.execFlow(ctx, ins)
	case opcode.CategoryStack:
		return e.execStack(ctx, ins)
	case opcode.CategorySlot:
		return e.execSlot(ctx, ins)
	case opcode.CategorySplice:
		return e.execSplice(ctx, ins)
	case opcode.CategoryBitwise:
		return e.execBitwise(ctx, ins)
	case opcode.CategoryArithmetic:
		return e.execArith(ctx, ins)
	case opcode.CategoryCompound:
		return e.execCompound(ctx, ins)
	case opcode.CategoryType:
		return e.execType(ctx, ins)
	}
	throwf(ErrInvalidOperation, "opcode %s", ins.Opcode)
	return advance
}

// ---------------------------------------------------------------------------
// Operand helpers used by the handlers. They fault on error.
// ---------------------------------------------------------------------------

func (e *Engine) push(item stackitem.Item) {
	e.CurrentContext().EvaluationStack().Push(item)
}

func (e *Engine) pop() stackitem.Item {
	item, err := e.CurrentContext().EvaluationStack().Pop()
	must(err)
	return item
}

func (e *Engine) peek(n int) stackitem.Item {
	item, err := e.CurrentContext().EvaluationStack().Peek(n)
	must(err)
	return item
}

func (e *Engine) pushInt(v *big.Int) {
	must(stackitem.CheckIntegerSize(v))
	e.push(stackitem.NewBigInteger(v))
}

func (e *Engine) pushInt64(v int64) {
	e.push(stackitem.NewInteger(v))
}

func (e *Engine) pushBool(v bool) {
	e.push(stackitem.Boolean(v))
}

func (e *Engine) popInt() *big.Int {
	v, err := e.pop().TryInteger()
	must(err)
	return v
}

func (e *Engine) popBool() bool {
	v, err := e.pop().Bool()
	must(err)
	return v
}

func (e *Engine) popBytes() []byte {
	v, err := e.pop().TryBytes()
	must(err)
	return v
}

// popCount pops an integer that must fit in 32 bits.
func (e *Engine) popCount() int {
	return int32Value(e.popInt())
}

func int32Value(v *big.Int) int {
	if !v.IsInt64() {
		throwf(ErrInvalidOperation, "integer %s out of 32-bit range", v)
	}
	n := v.Int64()
	if n < -1<<31 || n > 1<<31-1 {
		throwf(ErrInvalidOperation, "integer %d out of 32-bit range", n)
	}
	return int(n)
}
