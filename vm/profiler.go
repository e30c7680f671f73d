package vm

import (
	"slices"
	"sync"

	"github.com/chazu/stackvm/pkg/opcode"
	"github.com/chazu/stackvm/pkg/script"
)

// Profiler is an InstructionHook that counts executed instructions per
// opcode and per script position, flagging positions that cross a hot
// threshold (loop heads, typically).
type Profiler struct {
	mu        sync.Mutex
	opcodes   map[opcode.Opcode]uint64
	positions map[breakpointKey]*PositionProfile
	total     uint64

	// HotThreshold is the execution count at which a position becomes hot.
	HotThreshold uint64

	// OnHot is called once per position when it becomes hot.
	OnHot func(s *script.Script, position int)
}

// PositionProfile holds the count for one instruction.
type PositionProfile struct {
	Script   *script.Script
	Position int
	Opcode   opcode.Opcode
	Count    uint64
	IsHot    bool
}

// OpcodeCount is one row of the opcode histogram.
type OpcodeCount struct {
	Opcode opcode.Opcode
	Count  uint64
}

// NewProfiler creates a profiler with the default threshold.
func NewProfiler() *Profiler {
	return &Profiler{
		opcodes:      make(map[opcode.Opcode]uint64),
		positions:    make(map[breakpointKey]*PositionProfile),
		HotThreshold: 1000,
	}
}

// PreExecute implements InstructionHook.
func (p *Profiler) PreExecute(_ *Engine, ctx *Context, ins script.Instruction) error {
	p.mu.Lock()
	p.total++
	p.opcodes[ins.Opcode]++
	key := breakpointKey{ctx.Script(), ctx.IP()}
	prof, ok := p.positions[key]
	if !ok {
		prof = &PositionProfile{Script: key.script, Position: key.position, Opcode: ins.Opcode}
		p.positions[key] = prof
	}
	prof.Count++
	becameHot := !prof.IsHot && prof.Count >= p.HotThreshold
	if becameHot {
		prof.IsHot = true
	}
	onHot := p.OnHot
	p.mu.Unlock()

	if becameHot && onHot != nil {
		onHot(key.script, key.position)
	}
	return nil
}

// PostExecute implements InstructionHook.
func (p *Profiler) PostExecute(*Engine, *Context, script.Instruction) error { return nil }

// Total returns the number of instructions executed.
func (p *Profiler) Total() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// Opcodes returns the opcode histogram, most frequent first.
func (p *Profiler) Opcodes() []OpcodeCount {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]OpcodeCount, 0, len(p.opcodes))
	for op, n := range p.opcodes {
		out = append(out, OpcodeCount{Opcode: op, Count: n})
	}
	slices.SortFunc(out, func(a, b OpcodeCount) int {
		if a.Count != b.Count {
			if a.Count > b.Count {
				return -1
			}
			return 1
		}
		return int(a.Opcode) - int(b.Opcode)
	})
	return out
}

// Position returns the profile of one instruction, or nil.
func (p *Profiler) Position(s *script.Script, position int) *PositionProfile {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prof, ok := p.positions[breakpointKey{s, position}]; ok {
		c := *prof
		return &c
	}
	return nil
}

// Hot returns the hot positions ordered by count, highest first.
func (p *Profiler) Hot() []PositionProfile {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []PositionProfile
	for _, prof := range p.positions {
		if prof.IsHot {
			out = append(out, *prof)
		}
	}
	slices.SortFunc(out, func(a, b PositionProfile) int {
		if a.Count != b.Count {
			if a.Count > b.Count {
				return -1
			}
			return 1
		}
		return a.Position - b.Position
	})
	return out
}

// Reset clears all counts.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.opcodes)
	clear(p.positions)
	p.total = 0
}
