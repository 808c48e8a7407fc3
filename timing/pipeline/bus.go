package pipeline

// Bus is the common data bus. It carries at most one result.
type Bus struct {
	current *Entry
}

// Current returns the instruction on the bus, or nil.
func (b *Bus) Current() *Entry {
	return b.current
}

// Tag returns the tag on the bus, or NoTag.
func (b *Bus) Tag() Tag {
	if b.current == nil {
		return NoTag
	}
	return b.current.Tag
}

// Busy returns true while a result is on the bus.
func (b *Bus) Busy() bool {
	return b.current != nil
}

// Broadcast puts e on the bus at cycle. The bus must be free.
func (b *Bus) Broadcast(e *Entry, cycle uint64) {
	if b.current != nil {
		panic("common data bus already carries a result")
	}
	b.current = e
	e.BroadcastCycle = cycle
}

// Clear empties the bus.
func (b *Bus) Clear() {
	b.current = nil
}

// Empty returns true if nothing is on the bus.
func (b *Bus) Empty() bool {
	return b.current == nil
}
