package vm

import (
	"context"
	"fmt"

	"github.com/chazu/stackvm/pkg/opcode"
)

// cancelCheckInterval is the number of instructions between checks of
// the context.
const cancelCheckInterval = 64

// ExecuteContext runs like Execute but stops with FAULT once ctx is done.
// The fault wraps both ErrCancelled and ctx.Err().
func (e *Engine) ExecuteContext(ctx context.Context) State {
	if e.state == BREAK {
		e.state = NONE
	}
	for n := 0; e.state != HALT && e.state != FAULT; n++ {
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				e.cancel(err)
				break
			}
		}
		e.ExecuteNext()
	}
	return e.state
}

// cancel faults the engine at the current instruction.
func (e *Engine) cancel(cause error) {
	ip, op := -1, opcode.Opcode(0)
	if c := e.CurrentContext(); c != nil {
		ip = c.IP()
		if ins, err := c.CurrentInstruction(); err == nil {
			op = ins.Opcode
		}
	}
	e.onFault(ip, op, fmt.Errorf("%w: %w", ErrCancelled, cause))
}
