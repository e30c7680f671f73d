// Package stackitem implements the value model of the virtual machine:
// primitives, the mutable Buffer, compound collections, pointers and opaque
// host objects.
package stackitem

import (
	"errors"
	"fmt"
)

// Type is the one-byte tag identifying a stack item variant. The values are
// part of the bytecode format (ISTYPE, CONVERT and NEWARRAY_T operands).
type Type byte

const (
	AnyT        Type = 0x00
	PointerT    Type = 0x10
	BooleanT    Type = 0x20
	IntegerT    Type = 0x21
	ByteStringT Type = 0x28
	BufferT     Type = 0x30
	ArrayT      Type = 0x40
	StructT     Type = 0x41
	MapT        Type = 0x48
	InteropT    Type = 0x60
)

// Size limits shared by every item.
const (
	MaxIntegerSize    = 32
	MaxComparableSize = 65535
	MaxKeySize        = 64
)

var (
	ErrInvalidCast      = errors.New("invalid cast")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrTooBig           = errors.New("item too big")
	ErrKeyNotFound      = errors.New("key not found")
)

func (t Type) String() string {
	switch t {
	case AnyT:
		return "Any"
	case PointerT:
		return "Pointer"
	case BooleanT:
		return "Boolean"
	case IntegerT:
		return "Integer"
	case ByteStringT:
		return "ByteString"
	case BufferT:
		return "Buffer"
	case ArrayT:
		return "Array"
	case StructT:
		return "Struct"
	case MapT:
		return "Map"
	case InteropT:
		return "InteropInterface"
	default:
		return fmt.Sprintf("Type(0x%02X)", byte(t))
	}
}

// IsValid reports whether t is a defined tag.
func (t Type) IsValid() bool {
	switch t {
	case AnyT, PointerT, BooleanT, IntegerT, ByteStringT, BufferT, ArrayT, StructT, MapT, InteropT:
		return true
	}
	return false
}

// IsPrimitive reports whether t is Boolean, Integer or ByteString, the
// only types usable as map keys.
func (t Type) IsPrimitive() bool {
	return t == BooleanT || t == IntegerT || t == ByteStringT
}

// ParseType maps a type name back to its tag.
func ParseType(name string) (Type, bool) {
	for _, t := range []Type{AnyT, PointerT, BooleanT, IntegerT, ByteStringT, BufferT, ArrayT, StructT, MapT, InteropT} {
		if t.String() == name {
			return t, true
		}
	}
	return 0, false
}
