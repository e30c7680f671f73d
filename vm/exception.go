package vm

import "fmt"

// TryState is the phase of an ExceptionHandlingContext.
type TryState uint8

const (
	// Try means execution is inside the protected block.
	Try TryState = iota
	// Catch means the catch block is running.
	Catch
	// Finally means the finally block is running.
	Finally
)

func (s TryState) String() string {
	switch s {
	case Try:
		return "Try"
	case Catch:
		return "Catch"
	case Finally:
		return "Finally"
	default:
		return fmt.Sprintf("TryState(%d)", uint8(s))
	}
}

// ExceptionHandlingContext is one entry of a context's try stack, pushed by
// TRY. Pointers are absolute positions; -1 marks an absent target.
type ExceptionHandlingContext struct {
	CatchPointer   int
	FinallyPointer int
	EndPointer     int
	State          TryState
}

func newExceptionHandlingContext(catch, finally int) *ExceptionHandlingContext {
	return &ExceptionHandlingContext{
		CatchPointer:   catch,
		FinallyPointer: finally,
		EndPointer:     -1,
		State:          Try,
	}
}

// HasCatch reports whether the entry has a catch block.
func (c *ExceptionHandlingContext) HasCatch() bool { return c.CatchPointer >= 0 }

// HasFinally reports whether the entry has a finally block.
func (c *ExceptionHandlingContext) HasFinally() bool { return c.FinallyPointer >= 0 }

func (c *ExceptionHandlingContext) String() string {
	return fmt.Sprintf("%s catch=%d finally=%d end=%d", c.State, c.CatchPointer, c.FinallyPointer, c.EndPointer)
}
