// Package trace supplies dynamic instruction streams to the timing model.
//
// The scheduler consumes a Source one instruction at a time, in program
// order. Traces are either built in memory, read from a YAML listing, or
// decoded from a binary file of (PC, instruction word) records.
package trace

import (
	"errors"

	"github.com/sarchlab/tomasim/insts"
)

var (
	// ErrUnknownClass is returned when a textual trace names an unknown
	// instruction class.
	ErrUnknownClass = errors.New("unknown instruction class")

	// ErrTooManyOperands is returned when an instruction lists more than
	// three sources or two destinations.
	ErrTooManyOperands = errors.New("too many operands")

	// ErrTruncatedRecord is returned when a binary trace ends in the middle
	// of a record.
	ErrTruncatedRecord = errors.New("truncated trace record")
)

// Source yields decoded instructions in program order.
type Source interface {
	// Next returns the next instruction, or false once the trace is
	// exhausted.
	Next() (*insts.Instruction, bool)
}

// SliceSource replays an in-memory list of instructions.
type SliceSource struct {
	instrs []*insts.Instruction
	pos    int
}

// NewSliceSource creates a source over instrs. Instructions whose Index is
// zero get their 1-based position as index.
func NewSliceSource(instrs []*insts.Instruction) *SliceSource {
	for i, inst := range instrs {
		if inst.Index == 0 {
			inst.Index = uint64(i + 1)
		}
	}
	return &SliceSource{instrs: instrs}
}

// Next implements Source.
func (s *SliceSource) Next() (*insts.Instruction, bool) {
	if s.pos >= len(s.instrs) {
		return nil, false
	}
	inst := s.instrs[s.pos]
	s.pos++
	return inst, true
}

// Len returns the total number of instructions in the trace.
func (s *SliceSource) Len() int {
	return len(s.instrs)
}

// Remaining returns the number of instructions not yet handed out.
func (s *SliceSource) Remaining() int {
	return len(s.instrs) - s.pos
}

// Rewind restarts the trace from the first instruction.
func (s *SliceSource) Rewind() {
	s.pos = 0
}
