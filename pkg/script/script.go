package script

import (
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/stackvm/pkg/opcode"
	"golang.org/x/crypto/blake2b"
)

// ErrBadScript is returned for structurally invalid bytecode. In strict mode
// it is raised while constructing the Script, before any execution.
var ErrBadScript = errors.New("bad script")

// definedTypes lists the stack item type tags an ISTYPE, CONVERT or
// NEWARRAY_T operand may carry. Any (0x00) is listed but rejected by the
// strict validator.
var definedTypes = map[byte]bool{
	0x00: true, // Any
	0x10: true, // Pointer
	0x20: true, // Boolean
	0x21: true, // Integer
	0x28: true, // ByteString
	0x30: true, // Buffer
	0x40: true, // Array
	0x41: true, // Struct
	0x48: true, // Map
	0x60: true, // InteropInterface
}

// IsDefinedType reports whether tag is a defined stack item type.
func IsDefinedType(tag byte) bool {
	return definedTypes[tag]
}

// Script is an immutable bytecode buffer with a memoized instruction cache.
// A Script may be shared between engines; the cache is safe for concurrent
// use.
type Script struct {
	code   []byte
	strict bool

	mu    sync.RWMutex
	cache map[int]Instruction
}

// New wraps code without validating it. Decoding errors surface when the
// offending instruction is reached.
func New(code []byte) *Script {
	return &Script{
		code:  code,
		cache: make(map[int]Instruction),
	}
}

// NewStrict wraps code and validates every instruction, control-transfer
// target and type tag up front.
func NewStrict(code []byte) (*Script, error) {
	s := New(code)
	s.strict = true
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Len returns the script length in bytes.
func (s *Script) Len() int {
	return len(s.code)
}

// Bytes returns the raw bytecode. The slice must not be modified.
func (s *Script) Bytes() []byte {
	return s.code
}

// Strict reports whether the script was validated at construction.
func (s *Script) Strict() bool {
	return s.strict
}

// Hash returns the blake2b-256 digest of the bytecode.
func (s *Script) Hash() [32]byte {
	return blake2b.Sum256(s.code)
}

// GetInstruction decodes the instruction at ip. Positions at or past the
// end of the script yield RetInstruction.
func (s *Script) GetInstruction(ip int) (Instruction, error) {
	if ip < 0 {
		return Instruction{}, fmt.Errorf("%w: negative instruction pointer %d", ErrBadScript, ip)
	}
	if ip >= len(s.code) {
		return RetInstruction, nil
	}

	s.mu.RLock()
	ins, ok := s.cache[ip]
	s.mu.RUnlock()
	if ok {
		return ins, nil
	}

	ins, err := decode(s.code, ip)
	if err != nil {
		return Instruction{}, err
	}

	s.mu.Lock()
	if cached, ok := s.cache[ip]; ok {
		ins = cached
	} else {
		s.cache[ip] = ins
	}
	s.mu.Unlock()
	return ins, nil
}

// Instructions decodes the script front to back, returning each
// instruction with its position.
func (s *Script) Instructions() ([]Position, error) {
	var out []Position
	for ip := 0; ip < len(s.code); {
		ins, err := s.GetInstruction(ip)
		if err != nil {
			return out, err
		}
		out = append(out, Position{IP: ip, Instruction: ins})
		ip += ins.Size()
	}
	return out, nil
}

// Position pairs an instruction with its offset in the script.
type Position struct {
	IP          int
	Instruction Instruction
}

func (s *Script) validate() error {
	positions, err := s.Instructions()
	if err != nil {
		return err
	}
	starts := make(map[int]bool, len(positions))
	for _, p := range positions {
		starts[p.IP] = true
	}

	checkTarget := func(p Position, offset int) error {
		target := p.IP + offset
		if !starts[target] {
			return fmt.Errorf("%w: %s at %d: target %d is not an instruction boundary",
				ErrBadScript, p.Instruction.Opcode, p.IP, target)
		}
		return nil
	}

	for _, p := range positions {
		ins := p.Instruction
		switch op := ins.Opcode; {
		case op.HasTarget():
			if err := checkTarget(p, ins.Offset()); err != nil {
				return err
			}
		case op == opcode.TRY || op == opcode.TRY_L:
			catch, finally := ins.TryOffsets()
			if catch != 0 {
				if err := checkTarget(p, catch); err != nil {
					return err
				}
			}
			if finally != 0 {
				if err := checkTarget(p, finally); err != nil {
					return err
				}
			}
		case op == opcode.NEWARRAY_T || op == opcode.ISTYPE || op == opcode.CONVERT:
			tag := ins.Operand[0]
			if !definedTypes[tag] || tag == 0x00 {
				return fmt.Errorf("%w: %s at %d: invalid type tag 0x%02X", ErrBadScript, op, p.IP, tag)
			}
		}
	}
	return nil
}
