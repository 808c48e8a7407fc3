package pipeline

import (
	"fmt"

	"github.com/sarchlab/tomasim/timing/latency"
)

// UnitPool is a fixed set of functional units sharing one latency.
type UnitPool struct {
	pool    latency.Pool
	latency uint64
	slots   []*Entry
}

// NewUnitPool creates size idle units of the given latency.
func NewUnitPool(pool latency.Pool, size int, lat uint64) *UnitPool {
	return &UnitPool{pool: pool, latency: lat, slots: make([]*Entry, size)}
}

// Pool returns the pool the units serve.
func (u *UnitPool) Pool() latency.Pool { return u.pool }

// Latency returns the execution latency of every unit in the pool.
func (u *UnitPool) Latency() uint64 { return u.latency }

// Size returns the number of units.
func (u *UnitPool) Size() int { return len(u.slots) }

// Slot returns the entry executing on unit i, or nil.
func (u *UnitPool) Slot(i int) *Entry { return u.slots[i] }

// Occupy starts e on unit i at cycle. Occupying a busy unit panics.
func (u *UnitPool) Occupy(i int, e *Entry, cycle uint64) {
	if u.slots[i] != nil {
		panic(fmt.Sprintf("%s unit %d already executes tag %d, cannot start tag %d",
			u.pool, i, u.slots[i].Tag, e.Tag))
	}
	u.slots[i] = e
	e.ExecuteCycle = cycle
	if e.Latency == 0 {
		e.Latency = u.latency
	}
}

// Vacate frees unit i.
func (u *UnitPool) Vacate(i int) {
	u.slots[i] = nil
}

// Finished returns true if unit i holds an entry whose latency has elapsed.
func (u *UnitPool) Finished(i int, cycle uint64) bool {
	e := u.slots[i]
	return e != nil && cycle >= e.ExecuteCycle+e.Latency
}

// Occupied returns the number of busy units.
func (u *UnitPool) Occupied() int {
	n := 0
	for _, e := range u.slots {
		if e != nil {
			n++
		}
	}
	return n
}

// Empty returns true if every unit is idle.
func (u *UnitPool) Empty() bool {
	return u.Occupied() == 0
}

// Each calls fn for every busy unit.
func (u *UnitPool) Each(fn func(i int, e *Entry)) {
	for i, e := range u.slots {
		if e != nil {
			fn(i, e)
		}
	}
}
