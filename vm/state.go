package vm

import "fmt"

// State is the execution state of an Engine.
type State uint8

const (
	// NONE means the engine is running.
	NONE State = iota
	// HALT means execution finished normally; the result stack is valid.
	HALT
	// FAULT means execution stopped on an engine-fatal condition or an
	// uncaught exception.
	FAULT
	// BREAK is the initial state and the state after a debugger stop.
	BREAK
)

func (s State) String() string {
	switch s {
	case NONE:
		return "NONE"
	case HALT:
		return "HALT"
	case FAULT:
		return "FAULT"
	case BREAK:
		return "BREAK"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// ParseState maps a state name back to its value.
func ParseState(name string) (State, bool) {
	for _, s := range []State{NONE, HALT, FAULT, BREAK} {
		if s.String() == name {
			return s, true
		}
	}
	return 0, false
}
