package vm

import (
	"errors"
	"fmt"

	"github.com/chazu/stackvm/pkg/opcode"
	"github.com/chazu/stackvm/vm/stackitem"
)

var (
	// ErrOutOfRange is raised for slot and stack indices outside the live
	// size.
	ErrOutOfRange = errors.New("index out of range")
	// ErrInvalidOperation covers malformed operands and illegal states.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrLimitExceeded is raised when a resource limit is crossed.
	ErrLimitExceeded = errors.New("limit exceeded")
	// ErrNotFound is raised when a SYSCALL or CALLT cannot be resolved.
	ErrNotFound = errors.New("not found")
	// ErrAborted is raised by ABORT and ABORTMSG.
	ErrAborted = errors.New("aborted")
	// ErrAssertFailed is raised by ASSERT and ASSERTMSG.
	ErrAssertFailed = errors.New("assertion failed")
	// ErrNoContext is returned by host calls that need a current context.
	ErrNoContext = errors.New("no current context")
	// ErrCancelled is wrapped by the fault of a run stopped through its
	// context.Context.
	ErrCancelled = errors.New("execution cancelled")
)

// FaultError describes an engine-fatal condition and the instruction that
// raised it.
type FaultError struct {
	IP     int
	Opcode opcode.Opcode
	Err    error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("fault at %04X (%s): %v", e.IP, e.Opcode, e.Err)
}

func (e *FaultError) Unwrap() error { return e.Err }

// UnhandledError is the fault cause when a script exception propagates
// past the bottom of the invocation stack.
type UnhandledError struct {
	Item stackitem.Item
}

func (e *UnhandledError) Error() string {
	if s, err := stackitem.ToString(e.Item); err == nil {
		return fmt.Sprintf("unhandled exception: %q", s)
	}
	return fmt.Sprintf("unhandled exception: %s", e.Item)
}

// fault is the panic payload used inside a step. It is recovered at the
// step boundary and turned into a FaultError.
type fault struct {
	err error
}

// throwf aborts the current step with an engine-fatal condition.
func throwf(base error, format string, args ...any) {
	panic(fault{err: fmt.Errorf("%w: %s", base, fmt.Sprintf(format, args...))})
}

// must aborts the current step if err is non-nil.
func must(err error) {
	if err != nil {
		panic(fault{err: err})
	}
}
