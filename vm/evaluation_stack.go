package vm

import (
	"fmt"
	"slices"
	"strings"

	"github.com/chazu/stackvm/vm/stackitem"
)

// EvaluationStack is the operand stack of one execution context. Every
// item entering the stack gains a stack reference; every item leaving it
// loses one.
type EvaluationStack struct {
	items []stackitem.Item
	rc    *ReferenceCounter
}

// NewEvaluationStack creates an empty stack registered with rc.
func NewEvaluationStack(rc *ReferenceCounter) *EvaluationStack {
	return &EvaluationStack{items: make([]stackitem.Item, 0, 16), rc: rc}
}

// Len returns the number of items.
func (s *EvaluationStack) Len() int { return len(s.items) }

// Push adds item on top.
func (s *EvaluationStack) Push(item stackitem.Item) {
	s.rc.AddStackReference(item, 1)
	s.items = append(s.items, item)
}

// normalize maps a top-relative index, negative values counting from the
// bottom, to a position in items.
func (s *EvaluationStack) normalize(n int) (int, error) {
	if n >= len(s.items) {
		return 0, fmt.Errorf("%w: index %d on stack of %d", ErrOutOfRange, n, len(s.items))
	}
	if n < 0 {
		n += len(s.items)
		if n < 0 {
			return 0, fmt.Errorf("%w: index %d on stack of %d", ErrOutOfRange, n-len(s.items), len(s.items))
		}
	}
	return len(s.items) - n - 1, nil
}

// Peek returns the item n positions below the top without removing it.
func (s *EvaluationStack) Peek(n int) (stackitem.Item, error) {
	i, err := s.normalize(n)
	if err != nil {
		return nil, err
	}
	return s.items[i], nil
}

// Pop removes and returns the top item.
func (s *EvaluationStack) Pop() (stackitem.Item, error) {
	return s.Remove(0)
}

// Remove removes and returns the item n positions below the top.
func (s *EvaluationStack) Remove(n int) (stackitem.Item, error) {
	i, err := s.normalize(n)
	if err != nil {
		return nil, err
	}
	item := s.items[i]
	s.items = slices.Delete(s.items, i, i+1)
	s.rc.RemoveStackReference(item)
	return item, nil
}

// Insert places item n positions below the top. Insert(0, x) is Push(x).
func (s *EvaluationStack) Insert(n int, item stackitem.Item) error {
	if n < 0 || n > len(s.items) {
		return fmt.Errorf("%w: insert at %d on stack of %d", ErrOutOfRange, n, len(s.items))
	}
	s.rc.AddStackReference(item, 1)
	s.items = slices.Insert(s.items, len(s.items)-n, item)
	return nil
}

// Reverse reverses the top n items.
func (s *EvaluationStack) Reverse(n int) error {
	if n < 0 || n > len(s.items) {
		return fmt.Errorf("%w: reverse %d on stack of %d", ErrOutOfRange, n, len(s.items))
	}
	if n > 1 {
		slices.Reverse(s.items[len(s.items)-n:])
	}
	return nil
}

// Clear removes every item.
func (s *EvaluationStack) Clear() {
	for _, item := range s.items {
		s.rc.RemoveStackReference(item)
	}
	s.items = s.items[:0]
}

// MoveTo transfers the top n items to dst, preserving their order. A
// negative n moves everything. Both stacks must share a reference
// counter; stack references move with the items.
func (s *EvaluationStack) MoveTo(dst *EvaluationStack, n int) {
	if n < 0 || n > len(s.items) {
		n = len(s.items)
	}
	if n == 0 {
		return
	}
	start := len(s.items) - n
	dst.items = append(dst.items, s.items[start:]...)
	clear(s.items[start:])
	s.items = s.items[:start]
}

// Items returns a copy of the stack contents, bottom first.
func (s *EvaluationStack) Items() []stackitem.Item {
	return slices.Clone(s.items)
}

func (s *EvaluationStack) String() string {
	parts := make([]string, len(s.items))
	for i, item := range s.items {
		parts[len(s.items)-1-i] = item.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
