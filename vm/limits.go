package vm

import (
	"fmt"

	"github.com/chazu/stackvm/vm/stackitem"
)

// Limits are the hard resource bounds enforced by an Engine. Exceeding any
// of them faults the current instruction.
type Limits struct {
	// MaxShift is the largest shift amount for SHL and SHR.
	MaxShift int
	// MaxStackSize bounds the number of live items across all stacks and
	// slots, as counted by the reference counter.
	MaxStackSize int
	// MaxItemSize bounds the byte length of any pushed or built item.
	MaxItemSize int
	// MaxComparableSize bounds byte-by-byte comparisons.
	MaxComparableSize int
	// MaxInvocationStackSize bounds call depth.
	MaxInvocationStackSize int
	// MaxTryNestingDepth bounds the try-stack of one context.
	MaxTryNestingDepth int
}

// DefaultLimits returns the standard limits.
func DefaultLimits() Limits {
	return Limits{
		MaxShift:               256,
		MaxStackSize:           2 * 1024,
		MaxItemSize:            1024 * 1024,
		MaxComparableSize:      65535,
		MaxInvocationStackSize: 1024,
		MaxTryNestingDepth:     16,
	}
}

// Validate rejects non-positive limits.
func (l Limits) Validate() error {
	checks := []struct {
		name  string
		value int
	}{
		{"MaxShift", l.MaxShift},
		{"MaxStackSize", l.MaxStackSize},
		{"MaxItemSize", l.MaxItemSize},
		{"MaxComparableSize", l.MaxComparableSize},
		{"MaxInvocationStackSize", l.MaxInvocationStackSize},
		{"MaxTryNestingDepth", l.MaxTryNestingDepth},
	}
	for _, c := range checks {
		if c.value <= 0 {
			return fmt.Errorf("vm: limit %s must be positive, got %d", c.name, c.value)
		}
	}
	return nil
}

// itemLimits returns the subset of limits used by item comparison and
// cloning.
func (l Limits) itemLimits() stackitem.Limits {
	return stackitem.Limits{
		MaxComparableSize: l.MaxComparableSize,
		MaxItems:          l.MaxStackSize,
	}
}
