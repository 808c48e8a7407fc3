package pipeline

// canIssue reports whether a station entry may start executing this cycle.
// An entry never issues in the cycle it was dispatched.
// When forwarding is enabled a source waiting on the instruction currently
// on the bus counts as ready.
func canIssue(e *Entry, cycle uint64, bus Tag, forward bool) bool {
	if e.issued || cycle < e.DispatchCycle+1 {
		return false
	}
	for _, q := range e.Q {
		if q == NoTag {
			continue
		}
		if forward && q == bus {
			continue
		}
		return false
	}
	return true
}
