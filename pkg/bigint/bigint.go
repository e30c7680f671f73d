// Package bigint converts between *big.Int and the little-endian two's
// complement byte encoding used by integer operands and stack items.
package bigint

import "math/big"

var bigOne = big.NewInt(1)

// FromBytes decodes a little-endian two's complement integer. An empty
// slice decodes to zero.
func FromBytes(data []byte) *big.Int {
	n := new(big.Int)
	if len(data) == 0 {
		return n
	}
	be := make([]byte, len(data))
	for i, b := range data {
		be[len(data)-1-i] = b
	}
	n.SetBytes(be)
	if data[len(data)-1]&0x80 != 0 {
		// negative: subtract 2^(8*len)
		n.Sub(n, new(big.Int).Lsh(bigOne, uint(len(data)*8)))
	}
	return n
}

// ToBytes returns the minimal little-endian two's complement encoding of n.
// Zero encodes to an empty slice.
func ToBytes(n *big.Int) []byte {
	sign := n.Sign()
	if sign == 0 {
		return []byte{}
	}
	if sign > 0 {
		be := n.Bytes()
		out := reverse(be)
		if out[len(out)-1]&0x80 != 0 {
			out = append(out, 0x00)
		}
		return out
	}

	// For negative n, encode 2^(8*k) + n with the smallest k that keeps the
	// sign bit set.
	abs := new(big.Int).Neg(n)
	k := (abs.BitLen() + 7) / 8
	if k == 0 {
		k = 1
	}
	for {
		mod := new(big.Int).Lsh(bigOne, uint(k*8))
		v := new(big.Int).Add(mod, n)
		if v.Sign() >= 0 {
			be := v.FillBytes(make([]byte, k))
			if be[0]&0x80 != 0 {
				return reverse(be)
			}
		}
		k++
	}
}

// Size returns the length of the minimal encoding of n without allocating
// the encoding for the common small cases.
func Size(n *big.Int) int {
	if n.Sign() == 0 {
		return 0
	}
	if n.IsInt64() {
		v := n.Int64()
		size := 1
		for v > 127 || v < -128 {
			v >>= 8
			size++
		}
		return size
	}
	return len(ToBytes(n))
}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}
