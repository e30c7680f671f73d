package stackitem

import (
	"fmt"
	"maps"
	"math/big"
	"slices"
)

// Make converts a Go value into an item. Supported inputs are nil, bool,
// signed and unsigned integers, *big.Int, string, []byte, []Item, []any,
// map[string]any and existing items. Other values are wrapped as Interop.
// Map keys are inserted in sorted order; Make panics on a key longer than
// MaxKeySize.
func Make(v any) Item {
	switch x := v.(type) {
	case nil:
		return Null{}
	case Item:
		return x
	case bool:
		return Boolean(x)
	case int:
		return NewInteger(int64(x))
	case int8:
		return NewInteger(int64(x))
	case int16:
		return NewInteger(int64(x))
	case int32:
		return NewInteger(int64(x))
	case int64:
		return NewInteger(x)
	case uint8:
		return NewInteger(int64(x))
	case uint16:
		return NewInteger(int64(x))
	case uint32:
		return NewInteger(int64(x))
	case uint64:
		return NewBigInteger(new(big.Int).SetUint64(x))
	case *big.Int:
		return NewBigInteger(new(big.Int).Set(x))
	case string:
		return NewByteString([]byte(x))
	case []byte:
		return NewByteString(x)
	case []Item:
		return NewArray(x)
	case []any:
		items := make([]Item, len(x))
		for i, e := range x {
			items[i] = Make(e)
		}
		return NewArray(items)
	case map[string]any:
		m := NewMap()
		for _, k := range slices.Sorted(maps.Keys(x)) {
			if err := m.Set(NewByteString([]byte(k)), Make(x[k])); err != nil {
				panic(fmt.Sprintf("stackitem: %v", err))
			}
		}
		return m
	default:
		return NewInterop(v)
	}
}

// ToInt64 extracts a small integer from a primitive item.
func ToInt64(item Item) (int64, error) {
	v, err := item.TryInteger()
	if err != nil {
		return 0, err
	}
	if !v.IsInt64() {
		return 0, fmt.Errorf("%w: %s does not fit in 64 bits", ErrInvalidCast, v)
	}
	return v.Int64(), nil
}

// ToString extracts the bytes of a primitive item as a string.
func ToString(item Item) (string, error) {
	b, err := item.TryBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
