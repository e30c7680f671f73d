package stackitem

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
)

// ErrCycle is returned when serializing a compound that contains itself.
var ErrCycle = errors.New("recursive reference")

// jsonItem is the tagged JSON shape of an item: the type name plus a value
// whose form depends on the type.
type jsonItem struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

type jsonEntry struct {
	Key   *jsonItem `json:"key"`
	Value *jsonItem `json:"value"`
}

// ToJSON encodes item in the tagged form used for result inspection.
// Integers are decimal strings, byte sequences are base64, pointers carry
// their position. Cycles and values of more than MaxBinaryItems nodes are
// an error.
func ToJSON(item Item) ([]byte, error) {
	v, err := toJSONValue(item, newVisitor())
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func toJSONValue(item Item, vis *visitor) (*jsonItem, error) {
	if err := vis.visit(); err != nil {
		return nil, err
	}
	out := &jsonItem{Type: item.Type().String()}
	var value any
	switch x := item.(type) {
	case Null:
		return out, nil
	case Boolean:
		value = bool(x)
	case *Integer:
		value = x.value.String()
	case *ByteString:
		value = x.value
	case *Buffer:
		value = x.value
	case *Pointer:
		value = x.position
	case *Interop:
		return out, nil
	case *Array, *Struct:
		c := x.(Compound)
		if err := vis.enter(item); err != nil {
			return nil, err
		}
		list := make([]*jsonItem, 0, c.Len())
		for _, sub := range c.SubItems() {
			j, err := toJSONValue(sub, vis)
			if err != nil {
				return nil, err
			}
			list = append(list, j)
		}
		vis.leave(item)
		value = list
	case *Map:
		if err := vis.enter(item); err != nil {
			return nil, err
		}
		list := make([]jsonEntry, 0, x.Len())
		for _, e := range x.entries {
			k, err := toJSONValue(e.Key, vis)
			if err != nil {
				return nil, err
			}
			v, err := toJSONValue(e.Value, vis)
			if err != nil {
				return nil, err
			}
			list = append(list, jsonEntry{Key: k, Value: v})
		}
		vis.leave(item)
		value = list
	default:
		return nil, fmt.Errorf("%w: unknown item %T", ErrInvalidCast, item)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	out.Value = raw
	return out, nil
}

// FromJSON decodes the tagged form produced by ToJSON. Pointers and
// interop values cannot be reconstructed.
func FromJSON(data []byte) (Item, error) {
	var j jsonItem
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	return fromJSONValue(&j)
}

func fromJSONValue(j *jsonItem) (Item, error) {
	if j == nil {
		return nil, fmt.Errorf("%w: missing item", ErrInvalidCast)
	}
	t, ok := ParseType(j.Type)
	if !ok {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidCast, j.Type)
	}
	switch t {
	case AnyT:
		return Null{}, nil
	case BooleanT:
		var b bool
		if err := json.Unmarshal(j.Value, &b); err != nil {
			return nil, err
		}
		return Boolean(b), nil
	case IntegerT:
		var s string
		if err := json.Unmarshal(j.Value, &s); err != nil {
			return nil, err
		}
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("%w: bad integer %q", ErrInvalidCast, s)
		}
		if err := CheckIntegerSize(v); err != nil {
			return nil, err
		}
		return NewBigInteger(v), nil
	case ByteStringT, BufferT:
		var s string
		if err := json.Unmarshal(j.Value, &s); err != nil {
			return nil, err
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, err
		}
		if t == BufferT {
			return NewBuffer(b), nil
		}
		return NewByteString(b), nil
	case ArrayT, StructT:
		var list []*jsonItem
		if err := json.Unmarshal(j.Value, &list); err != nil {
			return nil, err
		}
		items := make([]Item, len(list))
		for i, sub := range list {
			it, err := fromJSONValue(sub)
			if err != nil {
				return nil, err
			}
			items[i] = it
		}
		if t == StructT {
			return NewStruct(items), nil
		}
		return NewArray(items), nil
	case MapT:
		var list []jsonEntry
		if err := json.Unmarshal(j.Value, &list); err != nil {
			return nil, err
		}
		m := NewMap()
		for _, e := range list {
			k, err := fromJSONValue(e.Key)
			if err != nil {
				return nil, err
			}
			v, err := fromJSONValue(e.Value)
			if err != nil {
				return nil, err
			}
			if err := m.Set(k, v); err != nil {
				return nil, err
			}
		}
		return m, nil
	}
	return nil, fmt.Errorf("%w: %s cannot be decoded from JSON", ErrInvalidCast, t)
}
