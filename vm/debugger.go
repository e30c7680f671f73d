package vm

import (
	"fmt"
	"slices"
	"sync"

	"github.com/chazu/stackvm/pkg/script"
)

// ---------------------------------------------------------------------------
// Debugger: breakpoints and stepping on top of an Engine
// ---------------------------------------------------------------------------

// Debugger drives an engine instruction by instruction, stopping in BREAK
// at breakpoints and after steps.
type Debugger struct {
	engine      *Engine
	breakpoints map[breakpointKey]bool
	mu          sync.Mutex
}

// breakpointKey identifies a breakpoint location.
type breakpointKey struct {
	script   *script.Script
	position int
}

// Breakpoint describes a breakpoint for clients.
type Breakpoint struct {
	Script   *script.Script
	Position int
	Active   bool
}

// NewDebugger attaches a debugger to e.
func NewDebugger(e *Engine) *Debugger {
	return &Debugger{engine: e, breakpoints: make(map[breakpointKey]bool)}
}

// Engine returns the debugged engine.
func (d *Debugger) Engine() *Engine { return d.engine }

// AddBreakpoint stops execution before the instruction at position.
func (d *Debugger) AddBreakpoint(s *script.Script, position int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.breakpoints[breakpointKey{s, position}] = true
}

// RemoveBreakpoint deletes a breakpoint. It reports whether one existed.
func (d *Debugger) RemoveBreakpoint(s *script.Script, position int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := breakpointKey{s, position}
	if _, ok := d.breakpoints[key]; !ok {
		return false
	}
	delete(d.breakpoints, key)
	return true
}

// SetBreakpointActive enables or disables an existing breakpoint.
func (d *Debugger) SetBreakpointActive(s *script.Script, position int, active bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := breakpointKey{s, position}
	if _, ok := d.breakpoints[key]; !ok {
		return fmt.Errorf("no breakpoint at %04X", position)
	}
	d.breakpoints[key] = active
	return nil
}

// Breakpoints lists breakpoints ordered by position.
func (d *Debugger) Breakpoints() []Breakpoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Breakpoint, 0, len(d.breakpoints))
	for key, active := range d.breakpoints {
		out = append(out, Breakpoint{Script: key.script, Position: key.position, Active: active})
	}
	slices.SortFunc(out, func(a, b Breakpoint) int { return a.Position - b.Position })
	return out
}

func (d *Debugger) hit() bool {
	ctx := d.engine.CurrentContext()
	if ctx == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.breakpoints[breakpointKey{ctx.Script(), ctx.IP()}]
}

func (d *Debugger) executeAndCheck() {
	d.engine.ExecuteNext()
	if d.engine.state == NONE && d.hit() {
		d.engine.state = BREAK
	}
}

func (d *Debugger) terminal() bool {
	return d.engine.state == HALT || d.engine.state == FAULT
}

// Execute runs until a breakpoint, HALT or FAULT.
func (d *Debugger) Execute() State {
	if d.engine.state == BREAK {
		d.engine.state = NONE
	}
	for d.engine.state == NONE {
		d.executeAndCheck()
	}
	return d.engine.state
}

// StepInto executes one instruction.
func (d *Debugger) StepInto() State {
	if d.terminal() {
		return d.engine.state
	}
	d.engine.ExecuteNext()
	if !d.terminal() {
		d.engine.state = BREAK
	}
	return d.engine.state
}

// StepOver executes one instruction, running any call it makes to
// completion.
func (d *Debugger) StepOver() State {
	if d.terminal() {
		return d.engine.state
	}
	d.engine.state = NONE
	depth := len(d.engine.invocation)
	d.executeAndCheck()
	for d.engine.state == NONE && len(d.engine.invocation) > depth {
		d.executeAndCheck()
	}
	if d.engine.state == NONE {
		d.engine.state = BREAK
	}
	return d.engine.state
}

// StepOut runs until the current frame returns.
func (d *Debugger) StepOut() State {
	if d.engine.state == BREAK {
		d.engine.state = NONE
	}
	depth := len(d.engine.invocation)
	for d.engine.state == NONE && len(d.engine.invocation) >= depth {
		d.executeAndCheck()
	}
	if d.engine.state == NONE {
		d.engine.state = BREAK
	}
	return d.engine.state
}
