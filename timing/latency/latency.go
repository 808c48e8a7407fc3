// Package latency provides the fixed per-pool execution latencies of the
// Tomasulo machine model.
package latency

import (
	"github.com/sarchlab/tomasim/insts"
	"github.com/sarchlab/tomasim/timing/config"
)

// Pool identifies a family of reservation stations and functional units.
type Pool int

const (
	// PoolNone is for instructions that never occupy a station or unit.
	PoolNone Pool = iota
	// PoolInt serves integer compute, loads and stores.
	PoolInt
	// PoolFP serves floating-point compute.
	PoolFP
)

func (p Pool) String() string {
	switch p {
	case PoolInt:
		return "int"
	case PoolFP:
		return "fp"
	default:
		return "none"
	}
}

// Table provides instruction latency lookups.
type Table struct {
	config *config.MachineConfig
}

// NewTable creates a latency table for the default machine.
func NewTable() *Table {
	return &Table{
		config: config.DefaultMachineConfig(),
	}
}

// NewTableWithConfig creates a latency table for a custom machine.
func NewTableWithConfig(cfg *config.MachineConfig) *Table {
	return &Table{
		config: cfg,
	}
}

// PoolOf returns the pool an instruction is scheduled on. Control flow,
// traps and unclassified instructions belong to no pool.
func (t *Table) PoolOf(inst *insts.Instruction) Pool {
	if inst == nil {
		return PoolNone
	}

	c := inst.Class
	switch {
	case c.IsControl() || c.IsTrap():
		return PoolNone
	case c.UsesIntUnit():
		return PoolInt
	case c.UsesFPUnit():
		return PoolFP
	default:
		return PoolNone
	}
}

// PoolLatency returns the execution latency of a pool's units.
func (t *Table) PoolLatency(p Pool) uint64 {
	switch p {
	case PoolInt:
		return t.config.IntLatency
	case PoolFP:
		return t.config.FPLatency
	default:
		return 0
	}
}

// GetLatency returns the execution latency in cycles for the instruction.
func (t *Table) GetLatency(inst *insts.Instruction) uint64 {
	return t.PoolLatency(t.PoolOf(inst))
}

// Config returns the machine configuration backing the table.
func (t *Table) Config() *config.MachineConfig {
	return t.config
}
