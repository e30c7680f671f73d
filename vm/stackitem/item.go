package stackitem

import (
	"bytes"
	"fmt"
	"math/big"
	"reflect"

	"github.com/chazu/stackvm/pkg/bigint"
	"github.com/chazu/stackvm/pkg/script"
)

// Item is a value on the evaluation stack. The set of implementations is
// closed: Null, Boolean, *Integer, *ByteString, *Buffer, *Array, *Struct,
// *Map, *Pointer and *Interop.
type Item interface {
	Type() Type
	// Bool returns the truthiness of the item.
	Bool() (bool, error)
	// TryInteger returns the integer value of a primitive item.
	TryInteger() (*big.Int, error)
	// TryBytes returns the byte representation of a primitive item or
	// Buffer. The returned slice must not be modified unless the item is a
	// Buffer.
	TryBytes() ([]byte, error)
	Equals(other Item, lim Limits) (bool, error)
	ConvertTo(t Type) (Item, error)
	String() string
}

// Limits bounds the work done by deep comparison and cloning.
type Limits struct {
	MaxComparableSize int
	// MaxItems caps the number of items visited by Struct comparison and
	// cloning.
	MaxItems int
}

// DefaultLimits matches the default engine limits.
var DefaultLimits = Limits{MaxComparableSize: MaxComparableSize, MaxItems: 2048}

// convertBase implements the conversions every item supports: to its own
// type and to Boolean.
func convertBase(item Item, t Type) (Item, error) {
	if t == item.Type() {
		return item, nil
	}
	if t == BooleanT {
		b, err := item.Bool()
		if err != nil {
			return nil, err
		}
		return Boolean(b), nil
	}
	return nil, fmt.Errorf("%w: %s to %s", ErrInvalidCast, item.Type(), t)
}

// convertPrimitive adds Integer, ByteString and Buffer targets.
func convertPrimitive(item Item, t Type) (Item, error) {
	if t == item.Type() || t == BooleanT {
		return convertBase(item, t)
	}
	switch t {
	case IntegerT:
		v, err := item.TryInteger()
		if err != nil {
			return nil, err
		}
		return NewBigInteger(v), nil
	case ByteStringT:
		b, err := item.TryBytes()
		if err != nil {
			return nil, err
		}
		return NewByteString(b), nil
	case BufferT:
		b, err := item.TryBytes()
		if err != nil {
			return nil, err
		}
		return NewBuffer(bytes.Clone(b)), nil
	}
	return convertBase(item, t)
}

func castError(from Type, to string) error {
	return fmt.Errorf("%w: %s is not %s", ErrInvalidCast, from, to)
}

// ----------------------------------------------------------------------------
// Null
// ----------------------------------------------------------------------------

// Null is the absent value.
type Null struct{}

func (Null) Type() Type                    { return AnyT }
func (Null) Bool() (bool, error)           { return false, nil }
func (Null) TryInteger() (*big.Int, error) { return nil, castError(AnyT, "an integer") }
func (Null) TryBytes() ([]byte, error)     { return nil, castError(AnyT, "a byte sequence") }
func (Null) String() string                { return "Null" }
func (Null) Equals(other Item, _ Limits) (bool, error) {
	_, ok := other.(Null)
	return ok, nil
}

// ConvertTo returns Null for every defined target except Any.
func (n Null) ConvertTo(t Type) (Item, error) {
	if t == AnyT || !t.IsValid() {
		return nil, fmt.Errorf("%w: Null to %s", ErrInvalidCast, t)
	}
	return n, nil
}

// IsNull reports whether item is Null.
func IsNull(item Item) bool {
	_, ok := item.(Null)
	return ok
}

// ----------------------------------------------------------------------------
// Boolean
// ----------------------------------------------------------------------------

// Boolean is an immutable truth value.
type Boolean bool

func (b Boolean) Type() Type          { return BooleanT }
func (b Boolean) Bool() (bool, error) { return bool(b), nil }

func (b Boolean) TryInteger() (*big.Int, error) {
	if b {
		return big.NewInt(1), nil
	}
	return big.NewInt(0), nil
}

func (b Boolean) TryBytes() ([]byte, error) {
	if b {
		return []byte{1}, nil
	}
	return []byte{0}, nil
}

func (b Boolean) Equals(other Item, _ Limits) (bool, error) {
	o, ok := other.(Boolean)
	return ok && o == b, nil
}

func (b Boolean) ConvertTo(t Type) (Item, error) { return convertPrimitive(b, t) }

func (b Boolean) String() string { return fmt.Sprintf("Boolean(%t)", bool(b)) }

// ----------------------------------------------------------------------------
// Integer
// ----------------------------------------------------------------------------

// Integer is an immutable signed integer whose encoding fits in
// MaxIntegerSize bytes.
type Integer struct {
	value *big.Int
}

// NewInteger wraps a small integer.
func NewInteger(v int64) *Integer {
	return &Integer{value: big.NewInt(v)}
}

// NewBigInteger wraps v without copying. Callers producing values from
// untrusted input check the size with CheckIntegerSize first.
func NewBigInteger(v *big.Int) *Integer {
	return &Integer{value: v}
}

// CheckIntegerSize returns ErrTooBig if v does not fit in MaxIntegerSize
// bytes.
func CheckIntegerSize(v *big.Int) error {
	if v.BitLen() < MaxIntegerSize*8-8 {
		return nil
	}
	if n := bigint.Size(v); n > MaxIntegerSize {
		return fmt.Errorf("%w: integer of %d bytes", ErrTooBig, n)
	}
	return nil
}

// Value returns the integer. It must not be modified.
func (i *Integer) Value() *big.Int { return i.value }

func (i *Integer) Type() Type                    { return IntegerT }
func (i *Integer) Bool() (bool, error)           { return i.value.Sign() != 0, nil }
func (i *Integer) TryInteger() (*big.Int, error) { return i.value, nil }
func (i *Integer) TryBytes() ([]byte, error)     { return bigint.ToBytes(i.value), nil }

func (i *Integer) Equals(other Item, _ Limits) (bool, error) {
	if o, ok := other.(*Integer); ok {
		return i == o || i.value.Cmp(o.value) == 0, nil
	}
	return false, nil
}

func (i *Integer) ConvertTo(t Type) (Item, error) { return convertPrimitive(i, t) }

func (i *Integer) String() string { return fmt.Sprintf("Integer(%s)", i.value) }

// ----------------------------------------------------------------------------
// ByteString
// ----------------------------------------------------------------------------

// ByteString is an immutable byte sequence.
type ByteString struct {
	value []byte
}

// NewByteString wraps b without copying; b must not be modified afterwards.
func NewByteString(b []byte) *ByteString {
	return &ByteString{value: b}
}

// Len returns the length in bytes.
func (s *ByteString) Len() int { return len(s.value) }

func (s *ByteString) Type() Type { return ByteStringT }

// Bool is true when any byte is non-zero. Sequences longer than
// MaxIntegerSize cannot be interpreted.
func (s *ByteString) Bool() (bool, error) {
	if len(s.value) > MaxIntegerSize {
		return false, fmt.Errorf("%w: %d-byte ByteString to Boolean", ErrInvalidCast, len(s.value))
	}
	for _, c := range s.value {
		if c != 0 {
			return true, nil
		}
	}
	return false, nil
}

func (s *ByteString) TryInteger() (*big.Int, error) {
	if len(s.value) > MaxIntegerSize {
		return nil, fmt.Errorf("%w: %d-byte ByteString to Integer", ErrInvalidCast, len(s.value))
	}
	return bigint.FromBytes(s.value), nil
}

func (s *ByteString) TryBytes() ([]byte, error) { return s.value, nil }

func (s *ByteString) Equals(other Item, lim Limits) (bool, error) {
	budget := lim.MaxComparableSize
	return s.equalsWithin(other, &budget)
}

// equalsWithin compares against other, charging the compared size to
// budget.
func (s *ByteString) equalsWithin(other Item, budget *int) (bool, error) {
	if len(s.value) > *budget || *budget == 0 {
		return false, fmt.Errorf("%w: operand exceeds the maximum comparable size", ErrInvalidOperation)
	}
	cost := 1
	defer func() { *budget -= cost }()

	o, ok := other.(*ByteString)
	if !ok {
		return false, nil
	}
	cost = max(len(s.value), len(o.value), 1)
	if s == o {
		return true, nil
	}
	if len(o.value) > *budget {
		return false, fmt.Errorf("%w: operand exceeds the maximum comparable size", ErrInvalidOperation)
	}
	return bytes.Equal(s.value, o.value), nil
}

func (s *ByteString) ConvertTo(t Type) (Item, error) { return convertPrimitive(s, t) }

func (s *ByteString) String() string { return fmt.Sprintf("ByteString(%x)", s.value) }

// ----------------------------------------------------------------------------
// Buffer
// ----------------------------------------------------------------------------

// Buffer is a fixed-length mutable byte sequence. Equality is identity.
type Buffer struct {
	value []byte
}

// NewBuffer wraps b without copying.
func NewBuffer(b []byte) *Buffer {
	return &Buffer{value: b}
}

// Bytes returns the backing slice; writes are visible to every holder.
func (b *Buffer) Bytes() []byte { return b.value }

// Len returns the length in bytes.
func (b *Buffer) Len() int { return len(b.value) }

func (b *Buffer) Type() Type                    { return BufferT }
func (b *Buffer) Bool() (bool, error)           { return true, nil }
func (b *Buffer) TryInteger() (*big.Int, error) { return nil, castError(BufferT, "an integer") }
func (b *Buffer) TryBytes() ([]byte, error)     { return b.value, nil }

func (b *Buffer) Equals(other Item, _ Limits) (bool, error) {
	return Item(b) == other, nil
}

func (b *Buffer) ConvertTo(t Type) (Item, error) {
	switch t {
	case IntegerT:
		if len(b.value) > MaxIntegerSize {
			return nil, fmt.Errorf("%w: %d-byte Buffer to Integer", ErrInvalidCast, len(b.value))
		}
		return NewBigInteger(bigint.FromBytes(b.value)), nil
	case ByteStringT:
		return NewByteString(bytes.Clone(b.value)), nil
	}
	return convertBase(b, t)
}

func (b *Buffer) String() string { return fmt.Sprintf("Buffer(%x)", b.value) }

// ----------------------------------------------------------------------------
// Pointer
// ----------------------------------------------------------------------------

// Pointer references a position in a script. Two pointers are equal when
// they share the script and position.
type Pointer struct {
	script   *script.Script
	position int
}

// NewPointer creates a pointer to pos in s.
func NewPointer(s *script.Script, pos int) *Pointer {
	return &Pointer{script: s, position: pos}
}

func (p *Pointer) Script() *script.Script { return p.script }
func (p *Pointer) Position() int          { return p.position }

func (p *Pointer) Type() Type                    { return PointerT }
func (p *Pointer) Bool() (bool, error)           { return true, nil }
func (p *Pointer) TryInteger() (*big.Int, error) { return nil, castError(PointerT, "an integer") }
func (p *Pointer) TryBytes() ([]byte, error)     { return nil, castError(PointerT, "a byte sequence") }

func (p *Pointer) Equals(other Item, _ Limits) (bool, error) {
	o, ok := other.(*Pointer)
	return ok && (p == o || (p.script == o.script && p.position == o.position)), nil
}

func (p *Pointer) ConvertTo(t Type) (Item, error) { return convertBase(p, t) }

func (p *Pointer) String() string { return fmt.Sprintf("Pointer(%d)", p.position) }

// ----------------------------------------------------------------------------
// Interop
// ----------------------------------------------------------------------------

// Interop wraps an opaque host object.
type Interop struct {
	value any
}

// NewInterop wraps v.
func NewInterop(v any) *Interop {
	return &Interop{value: v}
}

// Value returns the wrapped host object.
func (i *Interop) Value() any { return i.value }

func (i *Interop) Type() Type                    { return InteropT }
func (i *Interop) Bool() (bool, error)           { return true, nil }
func (i *Interop) TryInteger() (*big.Int, error) { return nil, castError(InteropT, "an integer") }
func (i *Interop) TryBytes() ([]byte, error)     { return nil, castError(InteropT, "a byte sequence") }

// Equals compares the wrapped objects when they are comparable and falls
// back to identity otherwise.
func (i *Interop) Equals(other Item, _ Limits) (bool, error) {
	o, ok := other.(*Interop)
	if !ok {
		return false, nil
	}
	if i == o {
		return true, nil
	}
	if i.value == nil || o.value == nil {
		return i.value == nil && o.value == nil, nil
	}
	if !reflect.ValueOf(i.value).Comparable() || !reflect.ValueOf(o.value).Comparable() {
		return false, nil
	}
	return i.value == o.value, nil
}

func (i *Interop) ConvertTo(t Type) (Item, error) { return convertBase(i, t) }

func (i *Interop) String() string { return fmt.Sprintf("InteropInterface(%T)", i.value) }
