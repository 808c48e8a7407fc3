package pipeline

import (
	"slices"

	"github.com/sarchlab/tomasim/timing/latency"
)

// retireFromBus clears the bus one cycle after a broadcast. Every station
// waiting on the result is woken and the producer map forgets the
// instruction if nobody younger renamed its destinations.
func retireFromBus(s *State) {
	e := s.Bus.Current()
	if e == nil || s.Cycle < e.BroadcastCycle+1 {
		return
	}

	wake := func(_ int, w *Entry) {
		for k := range w.Q {
			if w.Q[k] == e.Tag {
				w.Q[k] = NoTag
			}
		}
	}
	s.IntStations.Each(wake)
	s.FPStations.Each(wake)
	// Consumers that issued on the broadcast have already left their
	// station and still name e in Q.
	s.IntUnits.Each(wake)
	s.FPUnits.Each(wake)
	if !s.releaseOnIssue() {
		s.stationsFor(e.Pool).Release(e)
	}
	for _, r := range e.Inst.Dests() {
		s.Map.ClearIfProducer(r, e.Tag)
	}

	s.Bus.Clear()
	e.CompleteCycle = s.Cycle
	s.retire(e)
	s.log.Debugf("[cycle %05d] retire #%d from bus", s.Cycle, e.Inst.Index)
}

// executeToBus completes finished units. Instructions without a register
// result leave silently; of the remaining ones the oldest across both
// pools wins the bus.
func executeToBus(s *State) {
	var (
		winner     *Entry
		winnerUnit *UnitPool
		winnerSlot int
		candidates uint64
	)

	for _, u := range []*UnitPool{s.IntUnits, s.FPUnits} {
		for i := 0; i < u.Size(); i++ {
			if !u.Finished(i, s.Cycle) {
				continue
			}
			e := u.Slot(i)
			if !e.Inst.Class.WritesBus() {
				completeSilently(s, u, i, e)
				continue
			}
			candidates++
			if winner == nil || e.Tag < winner.Tag {
				winner, winnerUnit, winnerSlot = e, u, i
			}
		}
	}

	if winner == nil {
		return
	}

	// retireFromBus ran first, so the bus is free; Broadcast panics if not.
	s.stats.BusConflicts += candidates - 1
	winnerUnit.Vacate(winnerSlot)
	s.Bus.Broadcast(winner, s.Cycle)
	s.stats.Broadcasts++
	s.log.Debugf("[cycle %05d] broadcast #%d from %s unit %d",
		s.Cycle, winner.Inst.Index, winnerUnit.Pool(), winnerSlot)
}

func completeSilently(s *State, u *UnitPool, slot int, e *Entry) {
	u.Vacate(slot)
	if !s.releaseOnIssue() {
		s.stationsFor(e.Pool).Release(e)
	}
	e.CompleteCycle = s.Cycle
	s.stats.StoresCompleted++
	s.retire(e)
	s.log.Debugf("[cycle %05d] complete #%d on %s unit %d",
		s.Cycle, e.Inst.Index, u.Pool(), slot)
}

// issueToExecute starts ready station entries on free units, oldest first,
// independently for each pool.
func issueToExecute(s *State) {
	bus := s.Bus.Tag()
	issuePool(s, s.IntStations, s.IntUnits, bus)
	issuePool(s, s.FPStations, s.FPUnits, bus)
}

func issuePool(s *State, st *StationPool, u *UnitPool, bus Tag) {
	ready := readyEntries(s, st, bus)
	next := 0
	for i := 0; i < u.Size() && next < len(ready); i++ {
		if u.Slot(i) != nil {
			continue
		}
		e := ready[next]
		next++

		u.Occupy(i, e, s.Cycle)
		e.issued = true
		if e.ReadyCycle == 0 {
			e.ReadyCycle = s.Cycle
		}
		if s.releaseOnIssue() {
			st.Release(e)
		}
		s.stats.Issued++
		s.log.Debugf("[cycle %05d] issue #%d to %s unit %d",
			s.Cycle, e.Inst.Index, u.Pool(), i)
	}
}

// readyEntries returns the station entries eligible to issue, oldest first.
func readyEntries(s *State, st *StationPool, bus Tag) []*Entry {
	var ready []*Entry
	st.Each(func(_ int, e *Entry) {
		if canIssue(e, s.Cycle, bus, s.cfg.ForwardOnBroadcast) {
			ready = append(ready, e)
		}
	})
	slices.SortFunc(ready, func(a, b *Entry) int {
		switch {
		case a.Tag < b.Tag:
			return -1
		case a.Tag > b.Tag:
			return 1
		}
		return 0
	})
	return ready
}

// dispatchToIssue marks station entries that have become ready but did not
// find a free unit.
func dispatchToIssue(s *State) {
	bus := s.Bus.Tag()
	for _, st := range []*StationPool{s.IntStations, s.FPStations} {
		for _, e := range readyEntries(s, st, bus) {
			if e.ReadyCycle == 0 {
				e.ReadyCycle = s.Cycle
			}
			s.stats.IssueStalls++
		}
	}
}

// fetchToDispatch dispatches the queue head and fetches the next
// instruction from the trace.
func fetchToDispatch(s *State) {
	fetch(s)
	dispatch(s)
}

func fetch(s *State) {
	if s.lookahead == nil {
		return
	}
	if !s.Queue.CanPush() {
		s.stats.FetchStalls++
		return
	}

	inst := s.lookahead
	e := &Entry{
		Inst:       inst,
		Tag:        s.nextTag,
		Pool:       s.table.PoolOf(inst),
		Latency:    s.table.GetLatency(inst),
		FetchCycle: s.Cycle,
	}
	s.nextTag++
	s.inFlight[e.Tag] = e
	s.Queue.Push(e)
	s.stats.Fetched++
	s.log.Debugf("[cycle %05d] fetch #%d pc=0x%x %s",
		s.Cycle, inst.Index, inst.PC, inst.Class)

	s.lookahead = s.pull()
}

func dispatch(s *State) {
	e := s.Queue.Head()
	if e == nil {
		return
	}

	if e.Pool == latency.PoolNone {
		s.Queue.Pop()
		e.DispatchCycle = s.Cycle
		e.CompleteCycle = s.Cycle
		s.stats.DispatchRetired++
		s.retire(e)
		s.log.Debugf("[cycle %05d] retire #%d at dispatch", s.Cycle, e.Inst.Index)
		return
	}

	st := s.stationsFor(e.Pool)
	slot := st.FreeSlot()
	if slot < 0 {
		s.stats.DispatchStalls++
		return
	}

	s.Queue.Pop()
	for k, r := range e.Inst.Src {
		e.Q[k] = s.Map.Producer(r)
	}
	st.Place(slot, e)
	e.DispatchCycle = s.Cycle
	if e.Inst.Class.WritesBus() {
		for _, r := range e.Inst.Dests() {
			s.Map.SetProducer(r, e.Tag)
		}
	}
	s.stats.Dispatched++
	s.log.Debugf("[cycle %05d] dispatch #%d to %s station %d",
		s.Cycle, e.Inst.Index, st.Pool(), slot)
}
