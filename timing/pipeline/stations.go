package pipeline

import (
	"fmt"

	"github.com/sarchlab/tomasim/timing/latency"
)

// StationPool is a fixed set of reservation-station slots for one pool.
type StationPool struct {
	pool  latency.Pool
	slots []*Entry
}

// NewStationPool creates size empty station slots.
func NewStationPool(pool latency.Pool, size int) *StationPool {
	return &StationPool{pool: pool, slots: make([]*Entry, size)}
}

// Pool returns the pool the stations serve.
func (p *StationPool) Pool() latency.Pool { return p.pool }

// Size returns the number of slots.
func (p *StationPool) Size() int { return len(p.slots) }

// Slot returns the entry in slot i, or nil.
func (p *StationPool) Slot(i int) *Entry { return p.slots[i] }

// FreeSlot returns the lowest free slot index, or -1 when all are busy.
func (p *StationPool) FreeSlot() int {
	for i, e := range p.slots {
		if e == nil {
			return i
		}
	}
	return -1
}

// Place puts e into slot i. Placing into an occupied slot is a scheduling
// bug and panics.
func (p *StationPool) Place(i int, e *Entry) {
	if p.slots[i] != nil {
		panic(fmt.Sprintf("%s station %d already holds tag %d, cannot place tag %d",
			p.pool, i, p.slots[i].Tag, e.Tag))
	}
	p.slots[i] = e
}

// Release empties the slot holding e. It returns false if e is not here.
func (p *StationPool) Release(e *Entry) bool {
	for i, s := range p.slots {
		if s == e {
			p.slots[i] = nil
			return true
		}
	}
	return false
}

// Occupied returns the number of busy slots.
func (p *StationPool) Occupied() int {
	n := 0
	for _, e := range p.slots {
		if e != nil {
			n++
		}
	}
	return n
}

// Empty returns true if no slot is busy.
func (p *StationPool) Empty() bool {
	return p.Occupied() == 0
}

// Each calls fn for every occupied slot.
func (p *StationPool) Each(fn func(i int, e *Entry)) {
	for i, e := range p.slots {
		if e != nil {
			fn(i, e)
		}
	}
}
