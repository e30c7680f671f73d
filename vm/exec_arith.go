package vm

import (
	"math/big"

	"github.com/chazu/stackvm/pkg/opcode"
	"github.com/chazu/stackvm/pkg/script"
	"github.com/chazu/stackvm/vm/stackitem"
)

var (
	bigOne      = big.NewInt(1)
	bigMinusOne = big.NewInt(-1)
	bigTwo      = big.NewInt(2)
)

func (e *Engine) execArith(_ *Context, ins script.Instruction) stepOutcome {
	switch op := ins.Opcode; op {
	case opcode.SIGN:
		e.pushInt64(int64(e.popInt().Sign()))
	case opcode.ABS:
		e.pushInt(new(big.Int).Abs(e.popInt()))
	case opcode.NEGATE:
		e.pushInt(new(big.Int).Neg(e.popInt()))
	case opcode.INC:
		e.pushInt(new(big.Int).Add(e.popInt(), bigOne))
	case opcode.DEC:
		e.pushInt(new(big.Int).Sub(e.popInt(), bigOne))
	case opcode.ADD:
		x2, x1 := e.popInt(), e.popInt()
		e.pushInt(new(big.Int).Add(x1, x2))
	case opcode.SUB:
		x2, x1 := e.popInt(), e.popInt()
		e.pushInt(new(big.Int).Sub(x1, x2))
	case opcode.MUL:
		x2, x1 := e.popInt(), e.popInt()
		e.pushInt(new(big.Int).Mul(x1, x2))
	case opcode.DIV, opcode.MOD:
		x2, x1 := e.popInt(), e.popInt()
		if x2.Sign() == 0 {
			throwf(ErrInvalidOperation, "division by zero")
		}
		if op == opcode.DIV {
			e.pushInt(new(big.Int).Quo(x1, x2))
		} else {
			e.pushInt(new(big.Int).Rem(x1, x2))
		}
	case opcode.POW:
		exp := e.popCount()
		if exp < 0 || exp > e.limits.MaxShift {
			throwf(ErrLimitExceeded, "exponent %d", exp)
		}
		x := e.popInt()
		e.pushInt(new(big.Int).Exp(x, big.NewInt(int64(exp)), nil))
	case opcode.SQRT:
		x := e.popInt()
		if x.Sign() < 0 {
			throwf(ErrInvalidOperation, "square root of negative value")
		}
		e.pushInt(new(big.Int).Sqrt(x))
	case opcode.MODMUL:
		m, x2, x1 := e.popInt(), e.popInt(), e.popInt()
		if m.Sign() == 0 {
			throwf(ErrInvalidOperation, "division by zero")
		}
		r := new(big.Int).Mul(x1, x2)
		e.pushInt(r.Rem(r, m))
	case opcode.MODPOW:
		m, exp, x := e.popInt(), e.popInt(), e.popInt()
		e.pushInt(modPow(x, exp, m))
	case opcode.SHL, opcode.SHR:
		shift := e.popCount()
		if shift < 0 || shift > e.limits.MaxShift {
			throwf(ErrLimitExceeded, "shift %d", shift)
		}
		if shift == 0 {
			break
		}
		x := e.popInt()
		if op == opcode.SHL {
			e.pushInt(new(big.Int).Lsh(x, uint(shift)))
		} else {
			e.pushInt(new(big.Int).Rsh(x, uint(shift)))
		}
	case opcode.NOT:
		e.pushBool(!e.popBool())
	case opcode.BOOLAND:
		x2, x1 := e.popBool(), e.popBool()
		e.pushBool(x1 && x2)
	case opcode.BOOLOR:
		x2, x1 := e.popBool(), e.popBool()
		e.pushBool(x1 || x2)
	case opcode.NZ:
		e.pushBool(e.popInt().Sign() != 0)
	case opcode.NUMEQUAL:
		x2, x1 := e.popInt(), e.popInt()
		e.pushBool(x1.Cmp(x2) == 0)
	case opcode.NUMNOTEQUAL:
		x2, x1 := e.popInt(), e.popInt()
		e.pushBool(x1.Cmp(x2) != 0)
	case opcode.LT, opcode.LE, opcode.GT, opcode.GE:
		x2, x1 := e.pop(), e.pop()
		if stackitem.IsNull(x1) || stackitem.IsNull(x2) {
			e.pushBool(false)
			break
		}
		e.pushBool(compare(op, intOf(x1).Cmp(intOf(x2))))
	case opcode.MIN:
		x2, x1 := e.popInt(), e.popInt()
		if x1.Cmp(x2) <= 0 {
			e.pushInt(x1)
		} else {
			e.pushInt(x2)
		}
	case opcode.MAX:
		x2, x1 := e.popInt(), e.popInt()
		if x1.Cmp(x2) >= 0 {
			e.pushInt(x1)
		} else {
			e.pushInt(x2)
		}
	case opcode.WITHIN:
		b, a, x := e.popInt(), e.popInt(), e.popInt()
		e.pushBool(a.Cmp(x) <= 0 && x.Cmp(b) < 0)
	default:
		throwf(ErrInvalidOperation, "opcode %s", op)
	}
	return advance
}

func intOf(item stackitem.Item) *big.Int {
	v, err := item.TryInteger()
	must(err)
	return v
}

func compare(op opcode.Opcode, cmp int) bool {
	switch op {
	case opcode.LT:
		return cmp < 0
	case opcode.LE:
		return cmp <= 0
	case opcode.GT:
		return cmp > 0
	default:
		return cmp >= 0
	}
}

// modPow computes x**exp mod m with the sign of x. An exponent of -1
// yields the modular inverse.
func modPow(x, exp, m *big.Int) *big.Int {
	if exp.Cmp(bigMinusOne) == 0 {
		if x.Sign() <= 0 {
			throwf(ErrInvalidOperation, "modular inverse of non-positive value")
		}
		if m.Cmp(bigTwo) < 0 {
			throwf(ErrInvalidOperation, "modular inverse with modulus %s", m)
		}
		r := new(big.Int).ModInverse(x, m)
		if r == nil {
			throwf(ErrInvalidOperation, "no modular inverse of %s mod %s", x, m)
		}
		return r
	}
	if exp.Sign() < 0 {
		throwf(ErrInvalidOperation, "negative exponent %s", exp)
	}
	if m.Sign() == 0 {
		throwf(ErrInvalidOperation, "division by zero")
	}
	r := new(big.Int).Exp(new(big.Int).Abs(x), exp, new(big.Int).Abs(m))
	if x.Sign() < 0 && exp.Bit(0) == 1 && r.Sign() != 0 {
		r.Neg(r)
	}
	return r
}
