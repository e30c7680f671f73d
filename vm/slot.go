package vm

import (
	"fmt"
	"slices"

	"github.com/chazu/stackvm/vm/stackitem"
)

// Slot is fixed-size variable storage: static fields, locals or
// arguments. Each element holds one stack reference.
type Slot struct {
	items []stackitem.Item
	rc    *ReferenceCounter
}

// NewSlot creates a slot of n Null elements.
func NewSlot(n int, rc *ReferenceCounter) *Slot {
	items := make([]stackitem.Item, n)
	for i := range items {
		items[i] = stackitem.Null{}
	}
	rc.AddStackReference(stackitem.Null{}, n)
	return &Slot{items: items, rc: rc}
}

// NewSlotWithItems creates a slot holding items.
func NewSlotWithItems(items []stackitem.Item, rc *ReferenceCounter) *Slot {
	for _, it := range items {
		rc.AddStackReference(it, 1)
	}
	return &Slot{items: items, rc: rc}
}

// Len returns the number of elements.
func (s *Slot) Len() int { return len(s.items) }

// Get returns element i.
func (s *Slot) Get(i int) (stackitem.Item, error) {
	if i < 0 || i >= len(s.items) {
		return nil, fmt.Errorf("%w: slot index %d of %d", ErrOutOfRange, i, len(s.items))
	}
	return s.items[i], nil
}

// Set stores v at i. The new value is registered before the old one is
// released.
func (s *Slot) Set(i int, v stackitem.Item) error {
	if i < 0 || i >= len(s.items) {
		return fmt.Errorf("%w: slot index %d of %d", ErrOutOfRange, i, len(s.items))
	}
	s.rc.AddStackReference(v, 1)
	old := s.items[i]
	s.items[i] = v
	s.rc.RemoveStackReference(old)
	return nil
}

// ClearReferences releases the stack reference of every element.
func (s *Slot) ClearReferences() {
	for _, it := range s.items {
		s.rc.RemoveStackReference(it)
	}
}

// Items returns a copy of the elements.
func (s *Slot) Items() []stackitem.Item {
	return slices.Clone(s.items)
}
