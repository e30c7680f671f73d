package vm

import (
	"slices"

	"github.com/chazu/stackvm/pkg/opcode"
	"github.com/chazu/stackvm/pkg/script"
	"github.com/chazu/stackvm/vm/stackitem"
)

// list is the common surface of Array and Struct.
type list interface {
	stackitem.Compound
	Items() []stackitem.Item
	At(i int) stackitem.Item
	Append(item stackitem.Item)
	Set(i int, item stackitem.Item)
	Remove(i int)
	Reverse()
}

func (e *Engine) execCompound(ctx *Context, ins script.Instruction) stepOutcome {
	switch op := ins.Opcode; op {
	case opcode.PACKMAP:
		size := e.popCount()
		if size < 0 || size*2 > ctx.EvaluationStack().Len() {
			throwf(ErrOutOfRange, "PACKMAP of %d entries", size)
		}
		m := stackitem.NewMap()
		for range size {
			key := e.pop()
			value := e.pop()
			must(m.Set(key, value))
		}
		e.push(m)
	case opcode.PACK, opcode.PACKSTRUCT:
		size := e.popCount()
		if size < 0 || size > ctx.EvaluationStack().Len() {
			throwf(ErrOutOfRange, "%s of %d items", op, size)
		}
		items := make([]stackitem.Item, size)
		for i := range items {
			items[i] = e.pop()
		}
		if op == opcode.PACK {
			e.push(stackitem.NewArray(items))
		} else {
			e.push(stackitem.NewStruct(items))
		}
	case opcode.UNPACK:
		switch x := e.pop().(type) {
		case *stackitem.Map:
			entries := x.Entries()
			for i := len(entries) - 1; i >= 0; i-- {
				e.push(entries[i].Value)
				e.push(entries[i].Key)
			}
			e.pushInt64(int64(len(entries)))
		case list:
			items := x.Items()
			for i := len(items) - 1; i >= 0; i-- {
				e.push(items[i])
			}
			e.pushInt64(int64(len(items)))
		default:
			throwf(stackitem.ErrInvalidCast, "UNPACK of %s", x.Type())
		}
	case opcode.NEWARRAY0:
		e.push(stackitem.NewArray(nil))
	case opcode.NEWSTRUCT0:
		e.push(stackitem.NewStruct(nil))
	case opcode.NEWARRAY, opcode.NEWSTRUCT:
		items := e.nullFilled(e.popCount(), stackitem.Null{})
		if op == opcode.NEWARRAY {
			e.push(stackitem.NewArray(items))
		} else {
			e.push(stackitem.NewStruct(items))
		}
	case opcode.NEWARRAY_T:
		n := e.popCount()
		t := stackitem.Type(ins.TokenU8())
		if !t.IsValid() {
			throwf(ErrInvalidOperation, "undefined item type 0x%02X", byte(t))
		}
		var fill stackitem.Item = stackitem.Null{}
		switch t {
		case stackitem.BooleanT:
			fill = stackitem.Boolean(false)
		case stackitem.IntegerT:
			fill = stackitem.NewInteger(0)
		case stackitem.ByteStringT:
			fill = stackitem.NewByteString(nil)
		}
		e.push(stackitem.NewArray(e.nullFilled(n, fill)))
	case opcode.NEWMAP:
		e.push(stackitem.NewMap())
	case opcode.SIZE:
		switch x := e.pop().(type) {
		case stackitem.Compound:
			e.pushInt64(int64(x.Len()))
		case *stackitem.Buffer:
			e.pushInt64(int64(x.Len()))
		default:
			if !x.Type().IsPrimitive() {
				throwf(stackitem.ErrInvalidCast, "SIZE of %s", x.Type())
			}
			b, err := x.TryBytes()
			must(err)
			e.pushInt64(int64(len(b)))
		}
	case opcode.HASKEY:
		key := e.pop()
		switch x := e.pop().(type) {
		case list:
			e.pushBool(e.index(key) < x.Len())
		case *stackitem.Map:
			ok, err := x.Has(key)
			must(err)
			e.pushBool(ok)
		case *stackitem.Buffer:
			e.pushBool(e.index(key) < x.Len())
		case *stackitem.ByteString:
			e.pushBool(e.index(key) < x.Len())
		default:
			throwf(stackitem.ErrInvalidCast, "HASKEY on %s", x.Type())
		}
	case opcode.KEYS:
		m, ok := e.pop().(*stackitem.Map)
		if !ok {
			throwf(stackitem.ErrInvalidCast, "KEYS needs a Map")
		}
		e.push(stackitem.NewArray(m.Keys()))
	case opcode.VALUES:
		var values []stackitem.Item
		switch x := e.pop().(type) {
		case list:
			values = slices.Clone(x.Items())
		case *stackitem.Map:
			values = x.Values()
		default:
			throwf(stackitem.ErrInvalidCast, "VALUES of %s", x.Type())
		}
		for i, v := range values {
			values[i] = e.copyValue(v)
		}
		e.push(stackitem.NewArray(values))
	case opcode.PICKITEM:
		key := e.pop()
		switch x := e.pop().(type) {
		case list:
			e.push(x.At(e.checkIndex(key, x.Len())))
		case *stackitem.Map:
			v, err := x.Get(key)
			must(err)
			e.push(v)
		case *stackitem.Buffer:
			e.pushInt64(int64(x.Bytes()[e.checkIndex(key, x.Len())]))
		default:
			if !x.Type().IsPrimitive() {
				throwf(stackitem.ErrInvalidCast, "PICKITEM on %s", x.Type())
			}
			b, err := x.TryBytes()
			must(err)
			e.pushInt64(int64(b[e.checkIndex(key, len(b))]))
		}
	case opcode.APPEND:
		item := e.copyValue(e.pop())
		x, ok := e.pop().(list)
		if !ok {
			throwf(stackitem.ErrInvalidCast, "APPEND needs an Array or Struct")
		}
		x.Append(item)
	case opcode.SETITEM:
		value := e.copyValue(e.pop())
		key := e.pop()
		switch x := e.pop().(type) {
		case list:
			x.Set(e.checkIndex(key, x.Len()), value)
		case *stackitem.Map:
			must(x.Set(key, value))
		case *stackitem.Buffer:
			i := e.checkIndex(key, x.Len())
			if !value.Type().IsPrimitive() {
				throwf(ErrInvalidOperation, "Buffer element must be a primitive, got %s", value.Type())
			}
			b := intOf(value)
			if !b.IsInt64() || b.Int64() < -128 || b.Int64() > 255 {
				throwf(ErrOutOfRange, "byte value %s", b)
			}
			x.Bytes()[i] = byte(b.Int64())
		default:
			throwf(stackitem.ErrInvalidCast, "SETITEM on %s", x.Type())
		}
	case opcode.REVERSEITEMS:
		switch x := e.pop().(type) {
		case list:
			x.Reverse()
		case *stackitem.Buffer:
			slices.Reverse(x.Bytes())
		default:
			throwf(stackitem.ErrInvalidCast, "REVERSEITEMS on %s", x.Type())
		}
	case opcode.REMOVE:
		key := e.pop()
		switch x := e.pop().(type) {
		case list:
			x.Remove(e.checkIndex(key, x.Len()))
		case *stackitem.Map:
			must(x.Delete(key))
		default:
			throwf(stackitem.ErrInvalidCast, "REMOVE on %s", x.Type())
		}
	case opcode.CLEARITEMS:
		x, ok := e.pop().(stackitem.Compound)
		if !ok {
			throwf(stackitem.ErrInvalidCast, "CLEARITEMS needs a compound item")
		}
		x.Clear()
	case opcode.POPITEM:
		x, ok := e.pop().(list)
		if !ok {
			throwf(stackitem.ErrInvalidCast, "POPITEM needs an Array or Struct")
		}
		if x.Len() == 0 {
			throwf(ErrOutOfRange, "POPITEM on empty %s", x.Type())
		}
		last := x.Len() - 1
		e.push(x.At(last))
		x.Remove(last)
	default:
		throwf(ErrInvalidOperation, "opcode %s", op)
	}
	return advance
}

// nullFilled returns n copies of fill, n bounded by MaxStackSize.
func (e *Engine) nullFilled(n int, fill stackitem.Item) []stackitem.Item {
	if n < 0 || n > e.limits.MaxStackSize {
		throwf(ErrLimitExceeded, "collection of %d items", n)
	}
	items := make([]stackitem.Item, n)
	for i := range items {
		items[i] = fill
	}
	return items
}

// copyValue clones a Struct so that storing it keeps value semantics.
func (e *Engine) copyValue(item stackitem.Item) stackitem.Item {
	s, ok := item.(*stackitem.Struct)
	if !ok {
		return item
	}
	c, err := s.Clone(e.itemLimits)
	must(err)
	return c
}

// index converts key to a non-negative 32-bit index.
func (e *Engine) index(key stackitem.Item) int {
	i := int32Value(intOf(key))
	if i < 0 {
		throwf(ErrOutOfRange, "negative index %d", i)
	}
	return i
}

func (e *Engine) checkIndex(key stackitem.Item, n int) int {
	i := e.index(key)
	if i >= n {
		throwf(ErrOutOfRange, "index %d of %d", i, n)
	}
	return i
}
