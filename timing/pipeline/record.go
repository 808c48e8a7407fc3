// Package pipeline implements Tomasulo's dynamic scheduling algorithm as a
// cycle-accurate timing model.
//
// Instructions flow fetch -> instruction queue -> reservation station ->
// functional unit -> common data bus. Each cycle the five stage transitions
// run in reverse dataflow order over one shared State:
//
//	retire-from-bus, execute-to-bus, issue-to-execute,
//	dispatch-to-issue, fetch-to-dispatch
//
// Producer references (the producer map and every station's Q slots) are
// Tags resolved through the State's in-flight table, never raw pointers.
package pipeline

import (
	"github.com/sarchlab/tomasim/insts"
	"github.com/sarchlab/tomasim/timing/latency"
)

// Tag names an in-flight instruction. Tags are handed out in fetch order,
// so a smaller tag is always an older instruction.
type Tag uint64

// NoTag means "no pending producer".
const NoTag Tag = 0

// Entry is the mutable per-instruction record that moves through the
// machine. A cycle stamp of 0 means the event has not happened.
type Entry struct {
	Inst    *insts.Instruction
	Tag     Tag
	Pool    latency.Pool
	Latency uint64

	// Q holds, per source slot, the producer still in flight when the
	// instruction dispatched.
	Q [3]Tag

	FetchCycle     uint64
	DispatchCycle  uint64
	ReadyCycle     uint64
	ExecuteCycle   uint64
	BroadcastCycle uint64
	CompleteCycle  uint64

	issued bool
}

// Issued returns true once the entry has entered a functional unit.
func (e *Entry) Issued() bool {
	return e.issued
}

// Waiting returns true if any source still names a producer.
func (e *Entry) Waiting() bool {
	for _, q := range e.Q {
		if q != NoTag {
			return true
		}
	}
	return false
}

// Record is the timeline of one retired instruction.
type Record struct {
	Index uint64
	PC    uint64
	Op    insts.Op
	Class insts.Class
	Pool  latency.Pool

	Fetch     uint64
	Dispatch  uint64
	Ready     uint64
	Execute   uint64
	Broadcast uint64
	Complete  uint64
}

func (e *Entry) record() Record {
	return Record{
		Index:     e.Inst.Index,
		PC:        e.Inst.PC,
		Op:        e.Inst.Op,
		Class:     e.Inst.Class,
		Pool:      e.Pool,
		Fetch:     e.FetchCycle,
		Dispatch:  e.DispatchCycle,
		Ready:     e.ReadyCycle,
		Execute:   e.ExecuteCycle,
		Broadcast: e.BroadcastCycle,
		Complete:  e.CompleteCycle,
	}
}
