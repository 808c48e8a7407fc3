package pipeline

import "github.com/sarchlab/tomasim/insts"

// MapTable records, per architectural register, the newest dispatched
// instruction that will write it.
type MapTable struct {
	producers []Tag
}

// NewMapTable creates a map table for numRegs registers, all stable.
func NewMapTable(numRegs int) *MapTable {
	return &MapTable{producers: make([]Tag, numRegs)}
}

func (m *MapTable) covers(r insts.Reg) bool {
	return r.Tracked() && int(r) < len(m.producers)
}

// Producer returns the pending producer of r, or NoTag.
func (m *MapTable) Producer(r insts.Reg) Tag {
	if !m.covers(r) {
		return NoTag
	}
	return m.producers[r]
}

// SetProducer makes tag the producer of r, replacing any older writer.
func (m *MapTable) SetProducer(r insts.Reg, tag Tag) {
	if m.covers(r) {
		m.producers[r] = tag
	}
}

// ClearIfProducer empties r if tag is still its producer. It returns true
// if the entry was cleared.
func (m *MapTable) ClearIfProducer(r insts.Reg, tag Tag) bool {
	if !m.covers(r) || m.producers[r] != tag {
		return false
	}
	m.producers[r] = NoTag
	return true
}

// Pending returns the number of registers with an in-flight producer.
func (m *MapTable) Pending() int {
	n := 0
	for _, t := range m.producers {
		if t != NoTag {
			n++
		}
	}
	return n
}

// Each calls fn for every register with a pending producer.
func (m *MapTable) Each(fn func(r insts.Reg, tag Tag)) {
	for r, t := range m.producers {
		if t != NoTag {
			fn(insts.Reg(r), t)
		}
	}
}
