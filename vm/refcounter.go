package vm

import (
	"github.com/chazu/stackvm/vm/stackitem"
)

// ReferenceCounter counts every item held by evaluation stacks, slots and
// compound items, and reclaims compound graphs that are no longer
// reachable from any stack, including cyclic ones.
//
// Compound items are tracked in an arena keyed by the ID stored in their
// Handle. Each entry records direct stack references and the per-parent
// count of object references. Entries whose stack reference count drops
// to zero become collection candidates; CheckZeroReferred walks parent
// edges from each candidate and destroys the visited set when none of it
// is held by a stack.
type ReferenceCounter struct {
	entries map[uint32]*rcEntry
	zero    map[uint32]struct{}
	count   int
	nextID  uint32
}

type rcEntry struct {
	item      stackitem.Compound
	stackRefs int
	parents   map[uint32]int
}

// NewReferenceCounter creates an empty counter.
func NewReferenceCounter() *ReferenceCounter {
	return &ReferenceCounter{
		entries: make(map[uint32]*rcEntry),
		zero:    make(map[uint32]struct{}),
	}
}

// Count returns the number of live references: stack and slot references
// plus one for each element held by a tracked compound.
func (rc *ReferenceCounter) Count() int {
	return rc.count
}

// Tracked returns the number of compound items in the arena.
func (rc *ReferenceCounter) Tracked() int {
	return len(rc.entries)
}

// IsTracked reports whether c belongs to this counter.
func (rc *ReferenceCounter) IsTracked(c stackitem.Compound) bool {
	h := c.Handle()
	return h.ID != 0 && h.Tracker == stackitem.Tracker(rc) && rc.entries[h.ID] != nil
}

// StackReferences returns the direct stack references held on c.
func (rc *ReferenceCounter) StackReferences(c stackitem.Compound) int {
	if e := rc.lookup(c); e != nil {
		return e.stackRefs
	}
	return 0
}

func (rc *ReferenceCounter) lookup(c stackitem.Compound) *rcEntry {
	h := c.Handle()
	if h.ID == 0 || h.Tracker != stackitem.Tracker(rc) {
		return nil
	}
	return rc.entries[h.ID]
}

// track returns the entry of c, adopting it when it was built outside the
// engine. Adoption binds the compound to this counter and registers the
// edges to its children, adopting untracked children in turn.
func (rc *ReferenceCounter) track(c stackitem.Compound) *rcEntry {
	if e := rc.lookup(c); e != nil {
		return e
	}
	h := c.Handle()
	if h.Tracker != nil && h.Tracker != stackitem.Tracker(rc) {
		throwf(ErrInvalidOperation, "%s is owned by another engine", c.Type())
	}
	rc.nextID++
	e := &rcEntry{item: c, parents: make(map[uint32]int)}
	h.ID = rc.nextID
	h.Tracker = rc
	rc.entries[h.ID] = e
	rc.zero[h.ID] = struct{}{}
	for _, sub := range c.SubItems() {
		rc.AddReference(sub, c)
	}
	return e
}

// AddStackReference records n references to item from a stack or slot.
func (rc *ReferenceCounter) AddStackReference(item stackitem.Item, n int) {
	c, ok := item.(stackitem.Compound)
	if !ok {
		rc.count += n
		return
	}
	e := rc.track(c)
	rc.count += n
	e.stackRefs += n
	delete(rc.zero, c.Handle().ID)
}

// RemoveStackReference drops one stack or slot reference to item.
func (rc *ReferenceCounter) RemoveStackReference(item stackitem.Item) {
	rc.count--
	c, ok := item.(stackitem.Compound)
	if !ok {
		return
	}
	e := rc.lookup(c)
	if e == nil {
		return
	}
	e.stackRefs--
	if e.stackRefs == 0 {
		rc.zero[c.Handle().ID] = struct{}{}
	}
}

// AddReference records that parent holds item.
func (rc *ReferenceCounter) AddReference(item stackitem.Item, parent stackitem.Compound) {
	rc.count++
	c, ok := item.(stackitem.Compound)
	if !ok {
		return
	}
	e := rc.track(c)
	e.parents[parent.Handle().ID]++
}

// RemoveReference records that parent no longer holds item.
func (rc *ReferenceCounter) RemoveReference(item stackitem.Item, parent stackitem.Compound) {
	rc.count--
	c, ok := item.(stackitem.Compound)
	if !ok {
		return
	}
	e := rc.lookup(c)
	if e == nil {
		return
	}
	pid := parent.Handle().ID
	if e.parents[pid]--; e.parents[pid] <= 0 {
		delete(e.parents, pid)
	}
	if e.stackRefs == 0 {
		rc.zero[c.Handle().ID] = struct{}{}
	}
}

// AddZeroReferred marks c as a collection candidate.
func (rc *ReferenceCounter) AddZeroReferred(c stackitem.Compound) {
	rc.track(c)
	rc.zero[c.Handle().ID] = struct{}{}
}

// CheckZeroReferred collects every unreachable candidate and returns the
// remaining count.
func (rc *ReferenceCounter) CheckZeroReferred() int {
	for len(rc.zero) > 0 {
		destroy := make(map[uint32]struct{})
		for id := range rc.zero {
			for vid := range rc.unreachableFrom(id) {
				destroy[vid] = struct{}{}
			}
		}
		clear(rc.zero)

		for id := range destroy {
			e := rc.entries[id]
			subs := e.item.SubItems()
			rc.count -= len(subs)
			for _, sub := range subs {
				c, ok := sub.(stackitem.Compound)
				if !ok {
					continue
				}
				sid := c.Handle().ID
				if _, gone := destroy[sid]; gone {
					continue
				}
				se := rc.lookup(c)
				if se == nil {
					continue
				}
				delete(se.parents, id)
				if se.stackRefs == 0 {
					rc.zero[sid] = struct{}{}
				}
			}
		}
		for id := range destroy {
			h := rc.entries[id].item.Handle()
			h.ID = 0
			h.Tracker = nil
			delete(rc.entries, id)
		}
	}
	return rc.count
}

// unreachableFrom walks parent edges breadth first from the candidate. It
// returns the visited set, or nil if any visited compound is still held
// by a stack.
func (rc *ReferenceCounter) unreachableFrom(id uint32) map[uint32]struct{} {
	if rc.entries[id] == nil {
		return nil
	}
	visited := map[uint32]struct{}{id: {}}
	queue := []uint32{id}
	for len(queue) > 0 {
		cur := rc.entries[queue[0]]
		queue = queue[1:]
		if cur.stackRefs > 0 {
			return nil
		}
		for pid, n := range cur.parents {
			if n <= 0 {
				continue
			}
			if _, seen := visited[pid]; seen {
				continue
			}
			if rc.entries[pid] == nil {
				continue
			}
			visited[pid] = struct{}{}
			queue = append(queue, pid)
		}
	}
	return visited
}
