package stackitem

import (
	"fmt"
	"math/big"
	"slices"
	"strings"
)

// Tracker receives the object-to-object edges of compound items. It is
// implemented by the engine's reference counter.
type Tracker interface {
	AddReference(item Item, parent Compound)
	RemoveReference(item Item, parent Compound)
}

// Handle identifies a compound to the tracker that owns it. A zero ID
// means the compound is not tracked yet.
type Handle struct {
	ID      uint32
	Tracker Tracker
}

// Compound is implemented by Array, Struct and Map.
type Compound interface {
	Item
	Handle() *Handle
	// SubItems returns the direct children. For a Map these are keys and
	// values interleaved.
	SubItems() []Item
	Len() int
	Clear()
}

type tracked struct {
	handle Handle
}

func (t *tracked) Handle() *Handle { return &t.handle }

func (t *tracked) addRef(item Item, parent Compound) {
	if t.handle.Tracker != nil {
		t.handle.Tracker.AddReference(item, parent)
	}
}

func (t *tracked) removeRef(item Item, parent Compound) {
	if t.handle.Tracker != nil {
		t.handle.Tracker.RemoveReference(item, parent)
	}
}

func compoundBool() (bool, error) { return true, nil }

// brief renders scalars fully and compounds by type and length, so that
// cyclic graphs print.
func brief(item Item) string {
	if c, ok := item.(Compound); ok {
		return fmt.Sprintf("%s(%d)", c.Type(), c.Len())
	}
	return item.String()
}

func compoundString(name string, items []Item) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = brief(it)
	}
	return name + "[" + strings.Join(parts, ", ") + "]"
}

// ----------------------------------------------------------------------------
// Array
// ----------------------------------------------------------------------------

// Array is an ordered collection with reference semantics.
type Array struct {
	tracked
	items []Item
}

// NewArray creates an array holding items. The slice is owned by the array.
func NewArray(items []Item) *Array {
	if items == nil {
		items = []Item{}
	}
	return &Array{items: items}
}

func (a *Array) Type() Type                    { return ArrayT }
func (a *Array) Bool() (bool, error)           { return compoundBool() }
func (a *Array) TryInteger() (*big.Int, error) { return nil, castError(ArrayT, "an integer") }
func (a *Array) TryBytes() ([]byte, error)     { return nil, castError(ArrayT, "a byte sequence") }
func (a *Array) SubItems() []Item              { return a.items }
func (a *Array) Len() int                      { return len(a.items) }
func (a *Array) String() string                { return compoundString("Array", a.items) }

// Items returns the elements. The slice must not be modified.
func (a *Array) Items() []Item { return a.items }

// At returns the element at i.
func (a *Array) At(i int) Item { return a.items[i] }

func (a *Array) Equals(other Item, _ Limits) (bool, error) {
	return Item(a) == other, nil
}

// ConvertTo converts to a Struct holding the same elements.
func (a *Array) ConvertTo(t Type) (Item, error) {
	if t == StructT {
		return NewStruct(slices.Clone(a.items)), nil
	}
	return convertBase(a, t)
}

// Append adds item at the end.
func (a *Array) Append(item Item) {
	a.items = append(a.items, item)
	a.addRef(item, a)
}

// Set replaces the element at i.
func (a *Array) Set(i int, item Item) {
	old := a.items[i]
	a.items[i] = item
	a.addRef(item, a)
	a.removeRef(old, a)
}

// Remove deletes the element at i.
func (a *Array) Remove(i int) {
	old := a.items[i]
	a.items = slices.Delete(a.items, i, i+1)
	a.removeRef(old, a)
}

// Clear removes every element.
func (a *Array) Clear() {
	for _, it := range a.items {
		a.removeRef(it, a)
	}
	a.items = a.items[:0]
}

// Reverse reverses the elements in place.
func (a *Array) Reverse() { slices.Reverse(a.items) }

// ----------------------------------------------------------------------------
// Struct
// ----------------------------------------------------------------------------

// Struct is an ordered collection with value semantics: appending it to an
// array, storing it with SETITEM or listing it with VALUES copies it.
// Slot stores keep the reference.
type Struct struct {
	tracked
	items []Item
}

// NewStruct creates a struct holding items. The slice is owned by the
// struct.
func NewStruct(items []Item) *Struct {
	if items == nil {
		items = []Item{}
	}
	return &Struct{items: items}
}

func (s *Struct) Type() Type                    { return StructT }
func (s *Struct) Bool() (bool, error)           { return compoundBool() }
func (s *Struct) TryInteger() (*big.Int, error) { return nil, castError(StructT, "an integer") }
func (s *Struct) TryBytes() ([]byte, error)     { return nil, castError(StructT, "a byte sequence") }
func (s *Struct) SubItems() []Item              { return s.items }
func (s *Struct) Len() int                      { return len(s.items) }
func (s *Struct) String() string                { return compoundString("Struct", s.items) }

// Items returns the fields. The slice must not be modified.
func (s *Struct) Items() []Item { return s.items }

// At returns the field at i.
func (s *Struct) At(i int) Item { return s.items[i] }

// ConvertTo converts to an Array holding the same fields.
func (s *Struct) ConvertTo(t Type) (Item, error) {
	if t == ArrayT {
		return NewArray(slices.Clone(s.items)), nil
	}
	return convertBase(s, t)
}

// Append adds a field at the end.
func (s *Struct) Append(item Item) {
	s.items = append(s.items, item)
	s.addRef(item, s)
}

// Set replaces the field at i.
func (s *Struct) Set(i int, item Item) {
	old := s.items[i]
	s.items[i] = item
	s.addRef(item, s)
	s.removeRef(old, s)
}

// Remove deletes the field at i.
func (s *Struct) Remove(i int) {
	old := s.items[i]
	s.items = slices.Delete(s.items, i, i+1)
	s.removeRef(old, s)
}

// Clear removes every field.
func (s *Struct) Clear() {
	for _, it := range s.items {
		s.removeRef(it, s)
	}
	s.items = s.items[:0]
}

// Reverse reverses the fields in place.
func (s *Struct) Reverse() { slices.Reverse(s.items) }

// Clone deep-copies nested structs breadth first, sharing every other
// child. At most lim.MaxItems-1 items are copied.
func (s *Struct) Clone(lim Limits) (*Struct, error) {
	count := lim.MaxItems - 1
	result := NewStruct(make([]Item, 0, len(s.items)))
	dst := []*Struct{result}
	src := []*Struct{s}
	for len(dst) > 0 {
		a, b := dst[0], src[0]
		dst, src = dst[1:], src[1:]
		for _, item := range b.items {
			count--
			if count < 0 {
				return nil, fmt.Errorf("%w: struct clone exceeds %d items", ErrInvalidOperation, lim.MaxItems-1)
			}
			if sb, ok := item.(*Struct); ok {
				sa := NewStruct(make([]Item, 0, len(sb.items)))
				a.items = append(a.items, sa)
				dst = append(dst, sa)
				src = append(src, sb)
				continue
			}
			a.items = append(a.items, item)
		}
	}
	return result, nil
}

// Equals compares field by field without recursion. Nested structs compare
// by value; other compound fields compare by identity.
func (s *Struct) Equals(other Item, lim Limits) (bool, error) {
	if Item(s) == other {
		return true, nil
	}
	if _, ok := other.(*Struct); !ok {
		return false, nil
	}
	count := lim.MaxItems - 1
	budget := lim.MaxComparableSize
	left := []Item{s}
	right := []Item{other}
	for len(left) > 0 {
		if count == 0 {
			return false, fmt.Errorf("%w: too many struct items to compare", ErrInvalidOperation)
		}
		count--
		a, b := left[len(left)-1], right[len(right)-1]
		left, right = left[:len(left)-1], right[:len(right)-1]

		if bs, ok := a.(*ByteString); ok {
			eq, err := bs.equalsWithin(b, &budget)
			if err != nil || !eq {
				return false, err
			}
			continue
		}
		if budget == 0 {
			return false, fmt.Errorf("%w: operand exceeds the maximum comparable size", ErrInvalidOperation)
		}
		budget--
		if sa, ok := a.(*Struct); ok {
			if a == b {
				continue
			}
			sb, ok := b.(*Struct)
			if !ok || len(sa.items) != len(sb.items) {
				return false, nil
			}
			left = append(left, sa.items...)
			right = append(right, sb.items...)
			continue
		}
		eq, err := a.Equals(b, lim)
		if err != nil || !eq {
			return false, err
		}
	}
	return true, nil
}

// ----------------------------------------------------------------------------
// Map
// ----------------------------------------------------------------------------

// MapEntry is one key/value pair of a Map.
type MapEntry struct {
	Key   Item
	Value Item
}

// Map is an insertion-ordered dictionary keyed by primitive items.
type Map struct {
	tracked
	entries []MapEntry
	index   map[string]int
}

// NewMap creates an empty map.
func NewMap() *Map {
	return &Map{index: make(map[string]int)}
}

// MapKey returns the identity of a map key: its type tag and encoding.
// Only primitives no longer than MaxKeySize bytes are valid keys.
func MapKey(key Item) (string, error) {
	if !key.Type().IsPrimitive() {
		return "", fmt.Errorf("%w: %s cannot be a map key", ErrInvalidOperation, key.Type())
	}
	b, err := key.TryBytes()
	if err != nil {
		return "", err
	}
	if len(b) > MaxKeySize {
		return "", fmt.Errorf("%w: map key of %d bytes exceeds %d", ErrInvalidOperation, len(b), MaxKeySize)
	}
	return string(byte(key.Type())) + string(b), nil
}

func (m *Map) Type() Type                    { return MapT }
func (m *Map) Bool() (bool, error)           { return compoundBool() }
func (m *Map) TryInteger() (*big.Int, error) { return nil, castError(MapT, "an integer") }
func (m *Map) TryBytes() ([]byte, error)     { return nil, castError(MapT, "a byte sequence") }
func (m *Map) Len() int                      { return len(m.entries) }

func (m *Map) Equals(other Item, _ Limits) (bool, error) {
	return Item(m) == other, nil
}

func (m *Map) ConvertTo(t Type) (Item, error) { return convertBase(m, t) }

func (m *Map) SubItems() []Item {
	out := make([]Item, 0, 2*len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Key, e.Value)
	}
	return out
}

// Entries returns the pairs in insertion order. The slice must not be
// modified.
func (m *Map) Entries() []MapEntry { return m.entries }

// Keys returns the keys in insertion order.
func (m *Map) Keys() []Item {
	out := make([]Item, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Key
	}
	return out
}

// Values returns the values in insertion order.
func (m *Map) Values() []Item {
	out := make([]Item, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Value
	}
	return out
}

// Has reports whether key is present.
func (m *Map) Has(key Item) (bool, error) {
	k, err := MapKey(key)
	if err != nil {
		return false, err
	}
	_, ok := m.index[k]
	return ok, nil
}

// Get returns the value stored under key, or ErrKeyNotFound.
func (m *Map) Get(key Item) (Item, error) {
	k, err := MapKey(key)
	if err != nil {
		return nil, err
	}
	i, ok := m.index[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return m.entries[i].Value, nil
}

// Set stores value under key. A new key is appended; an existing key keeps
// its position.
func (m *Map) Set(key, value Item) error {
	k, err := MapKey(key)
	if err != nil {
		return err
	}
	if i, ok := m.index[k]; ok {
		old := m.entries[i].Value
		m.entries[i].Value = value
		m.removeRef(old, m)
		m.addRef(value, m)
		return nil
	}
	m.index[k] = len(m.entries)
	m.entries = append(m.entries, MapEntry{Key: key, Value: value})
	m.addRef(key, m)
	m.addRef(value, m)
	return nil
}

// Delete removes key if present.
func (m *Map) Delete(key Item) error {
	k, err := MapKey(key)
	if err != nil {
		return err
	}
	i, ok := m.index[k]
	if !ok {
		return nil
	}
	e := m.entries[i]
	m.entries = slices.Delete(m.entries, i, i+1)
	delete(m.index, k)
	for j := i; j < len(m.entries); j++ {
		kj, _ := MapKey(m.entries[j].Key)
		m.index[kj] = j
	}
	m.removeRef(e.Key, m)
	m.removeRef(e.Value, m)
	return nil
}

// Clear removes every entry.
func (m *Map) Clear() {
	for _, e := range m.entries {
		m.removeRef(e.Key, m)
		m.removeRef(e.Value, m)
	}
	m.entries = m.entries[:0]
	clear(m.index)
}

func (m *Map) String() string {
	parts := make([]string, len(m.entries))
	for i, e := range m.entries {
		parts[i] = brief(e.Key) + ": " + brief(e.Value)
	}
	return "Map{" + strings.Join(parts, ", ") + "}"
}
