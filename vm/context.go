package vm

import (
	"github.com/chazu/stackvm/pkg/script"
)

// sharedState is the part of a frame that clones created by CALL and CALLA
// share with the frame they were cloned from.
type sharedState struct {
	script  *script.Script
	estack  *EvaluationStack
	statics *Slot
	states  map[any]any
}

// Context is one frame on the invocation stack.
type Context struct {
	ip      int
	rvcount int
	shared  *sharedState

	locals   *Slot
	args     *Slot
	tryStack []*ExceptionHandlingContext
}

func newContext(s *script.Script, rvcount, pos int, rc *ReferenceCounter) *Context {
	return &Context{
		ip:      pos,
		rvcount: rvcount,
		shared: &sharedState{
			script: s,
			estack: NewEvaluationStack(rc),
			states: make(map[any]any),
		},
	}
}

// IP returns the position of the current instruction.
func (c *Context) IP() int { return c.ip }

// Jump moves the instruction pointer. The target is checked when the
// instruction there is decoded.
func (c *Context) Jump(ip int) { c.ip = ip }

// RVCount returns the number of values the frame must leave on its stack
// when it returns to a caller with a different stack. -1 means any.
func (c *Context) RVCount() int { return c.rvcount }

// Script returns the script the frame executes.
func (c *Context) Script() *script.Script { return c.shared.script }

// EvaluationStack returns the operand stack, shared with clones.
func (c *Context) EvaluationStack() *EvaluationStack { return c.shared.estack }

// StaticFields returns the static slot, or nil before INITSSLOT.
func (c *Context) StaticFields() *Slot { return c.shared.statics }

// LocalVariables returns the local slot, or nil before INITSLOT.
func (c *Context) LocalVariables() *Slot { return c.locals }

// Arguments returns the argument slot, or nil before INITSLOT.
func (c *Context) Arguments() *Slot { return c.args }

// TryStack returns the active try entries, innermost last.
func (c *Context) TryStack() []*ExceptionHandlingContext { return c.tryStack }

// CurrentInstruction decodes the instruction at IP.
func (c *Context) CurrentInstruction() (script.Instruction, error) {
	return c.shared.script.GetInstruction(c.ip)
}

// NextInstruction decodes the instruction following the current one.
func (c *Context) NextInstruction() (script.Instruction, error) {
	cur, err := c.CurrentInstruction()
	if err != nil {
		return script.Instruction{}, err
	}
	return c.shared.script.GetInstruction(c.ip + cur.Size())
}

// Clone creates a frame at pos sharing the script, evaluation stack, static
// fields and states of c.
func (c *Context) Clone(pos int) *Context {
	return &Context{ip: pos, shared: c.shared}
}

// GetState returns the host value stored under key, creating it with
// factory on first use. States are shared with clones.
func (c *Context) GetState(key any, factory func() any) any {
	if v, ok := c.shared.states[key]; ok {
		return v
	}
	v := factory()
	c.shared.states[key] = v
	return v
}

func (c *Context) moveNext() error {
	ins, err := c.CurrentInstruction()
	if err != nil {
		return err
	}
	c.ip += ins.Size()
	return nil
}

func (c *Context) pushTry(t *ExceptionHandlingContext) {
	c.tryStack = append(c.tryStack, t)
}

func (c *Context) peekTry() *ExceptionHandlingContext {
	if len(c.tryStack) == 0 {
		return nil
	}
	return c.tryStack[len(c.tryStack)-1]
}

func (c *Context) popTry() *ExceptionHandlingContext {
	t := c.peekTry()
	if t != nil {
		c.tryStack[len(c.tryStack)-1] = nil
		c.tryStack = c.tryStack[:len(c.tryStack)-1]
	}
	return t
}
