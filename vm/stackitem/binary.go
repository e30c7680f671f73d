package stackitem

import (
	"fmt"

	"github.com/chazu/stackvm/pkg/bigint"
	"github.com/fxamacker/cbor/v2"
)

// MaxBinaryItems caps the number of items an encoded or decoded value may
// contain. Shared children count once per occurrence.
const MaxBinaryItems = 2048

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("stackitem: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em

	dm, err := cbor.DecOptions{
		MaxNestedLevels:  256,
		MaxArrayElements: 2 * MaxBinaryItems,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("stackitem: failed to create CBOR dec mode: %v", err))
	}
	cborDecMode = dm
}

// wireItem is the CBOR shape of an item: [type, data, children]. Integers
// use their minimal two's complement encoding; maps list keys and values
// interleaved.
type wireItem struct {
	_     struct{} `cbor:",toarray"`
	Type  Type
	Data  []byte
	Items []wireItem
}

// EncodeBinary serializes a tree of primitives, buffers and collections.
// Pointers, interop values and cycles cannot be encoded.
func EncodeBinary(item Item) ([]byte, error) {
	w, err := toWire(item, newVisitor())
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(w)
}

func toWire(item Item, v *visitor) (wireItem, error) {
	w := wireItem{Type: item.Type()}
	if err := v.visit(); err != nil {
		return w, err
	}
	switch x := item.(type) {
	case Null:
	case Boolean, *ByteString, *Buffer:
		w.Data, _ = item.TryBytes()
	case *Integer:
		w.Data = bigint.ToBytes(x.value)
	case Compound:
		if err := v.enter(item); err != nil {
			return w, err
		}
		for _, sub := range x.SubItems() {
			sw, err := toWire(sub, v)
			if err != nil {
				return w, err
			}
			w.Items = append(w.Items, sw)
		}
		v.leave(item)
	default:
		return w, fmt.Errorf("%w: %s cannot be serialized", ErrInvalidOperation, item.Type())
	}
	return w, nil
}

// visitor walks an item graph for the encoders. It rejects cycles on the
// current path and bounds the total number of nodes emitted, so a graph
// that reuses one child many times cannot expand without limit.
type visitor struct {
	path  map[Item]bool
	count int
}

func newVisitor() *visitor {
	return &visitor{path: make(map[Item]bool)}
}

func (v *visitor) visit() error {
	v.count++
	if v.count > MaxBinaryItems {
		return fmt.Errorf("%w: more than %d items", ErrTooBig, MaxBinaryItems)
	}
	return nil
}

func (v *visitor) enter(item Item) error {
	if v.path[item] {
		return fmt.Errorf("%w in %s", ErrCycle, item.Type())
	}
	v.path[item] = true
	return nil
}

func (v *visitor) leave(item Item) { delete(v.path, item) }

// DecodeBinary deserializes a value produced by EncodeBinary.
func DecodeBinary(data []byte) (Item, error) {
	var w wireItem
	if err := cborDecMode.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("stackitem: unmarshal item: %w", err)
	}
	count := 0
	return fromWire(&w, &count)
}

func fromWire(w *wireItem, count *int) (Item, error) {
	*count++
	if *count > MaxBinaryItems {
		return nil, fmt.Errorf("%w: more than %d items", ErrTooBig, MaxBinaryItems)
	}
	switch w.Type {
	case AnyT:
		return Null{}, nil
	case BooleanT:
		if len(w.Data) != 1 || w.Data[0] > 1 {
			return nil, fmt.Errorf("%w: bad boolean encoding %x", ErrInvalidCast, w.Data)
		}
		return Boolean(w.Data[0] == 1), nil
	case IntegerT:
		if len(w.Data) > MaxIntegerSize {
			return nil, fmt.Errorf("%w: integer of %d bytes", ErrTooBig, len(w.Data))
		}
		return NewBigInteger(bigint.FromBytes(w.Data)), nil
	case ByteStringT:
		return NewByteString(w.Data), nil
	case BufferT:
		return NewBuffer(w.Data), nil
	case ArrayT, StructT:
		items := make([]Item, len(w.Items))
		for i := range w.Items {
			it, err := fromWire(&w.Items[i], count)
			if err != nil {
				return nil, err
			}
			items[i] = it
		}
		if w.Type == StructT {
			return NewStruct(items), nil
		}
		return NewArray(items), nil
	case MapT:
		if len(w.Items)%2 != 0 {
			return nil, fmt.Errorf("%w: odd map item count", ErrInvalidCast)
		}
		m := NewMap()
		for i := 0; i < len(w.Items); i += 2 {
			k, err := fromWire(&w.Items[i], count)
			if err != nil {
				return nil, err
			}
			v, err := fromWire(&w.Items[i+1], count)
			if err != nil {
				return nil, err
			}
			if err := m.Set(k, v); err != nil {
				return nil, err
			}
		}
		return m, nil
	}
	return nil, fmt.Errorf("%w: type %s cannot be deserialized", ErrInvalidCast, w.Type)
}
