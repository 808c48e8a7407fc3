package pipeline

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/tomasim/insts"
	"github.com/sarchlab/tomasim/timing/config"
	"github.com/sarchlab/tomasim/timing/latency"
	"github.com/sarchlab/tomasim/trace"
)

// ErrInvariant is wrapped by every error returned from State.Verify.
var ErrInvariant = errors.New("scheduler invariant violated")

// State is the complete machine state shared by the five stage functions.
type State struct {
	Cycle uint64

	Queue       *InstructionQueue
	IntStations *StationPool
	FPStations  *StationPool
	IntUnits    *UnitPool
	FPUnits     *UnitPool
	Map         *MapTable
	Bus         Bus

	cfg   *config.MachineConfig
	table *latency.Table
	log   logrus.FieldLogger

	src       trace.Source
	lookahead *insts.Instruction
	nextTag   Tag
	inFlight  map[Tag]*Entry

	stats        Statistics
	keepTimeline bool
	timeline     []Record
}

func newState(
	src trace.Source,
	cfg *config.MachineConfig,
	table *latency.Table,
	log logrus.FieldLogger,
) *State {
	s := &State{
		Queue:       NewInstructionQueue(cfg.QueueSize),
		IntStations: NewStationPool(latency.PoolInt, cfg.IntStations),
		FPStations:  NewStationPool(latency.PoolFP, cfg.FPStations),
		IntUnits: NewUnitPool(latency.PoolInt, cfg.IntUnits,
			table.PoolLatency(latency.PoolInt)),
		FPUnits: NewUnitPool(latency.PoolFP, cfg.FPUnits,
			table.PoolLatency(latency.PoolFP)),
		Map:      NewMapTable(cfg.NumRegs),
		cfg:      cfg,
		table:    table,
		log:      log,
		src:      src,
		nextTag:  NoTag + 1,
		inFlight: make(map[Tag]*Entry),
	}
	s.lookahead = s.pull()
	return s
}

// pull reads the next non-trap instruction from the source. Traps never
// enter the machine.
func (s *State) pull() *insts.Instruction {
	if s.src == nil {
		return nil
	}
	for {
		inst, ok := s.src.Next()
		if !ok {
			return nil
		}
		if inst.Class.IsTrap() {
			s.stats.TrapsSkipped++
			s.log.Debugf("[cycle %05d] skip trap #%d pc=0x%x",
				s.Cycle, inst.Index, inst.PC)
			continue
		}
		return inst
	}
}

// Exhausted returns true once the trace has no instruction left to fetch.
func (s *State) Exhausted() bool {
	return s.lookahead == nil
}

// Drained returns true when the trace is exhausted and every structure of
// the machine is empty.
func (s *State) Drained() bool {
	return s.Exhausted() &&
		s.Queue.Empty() &&
		s.IntStations.Empty() &&
		s.FPStations.Empty() &&
		s.IntUnits.Empty() &&
		s.FPUnits.Empty() &&
		s.Bus.Empty()
}

// Lookup resolves a tag to its in-flight entry, or nil once it retired.
func (s *State) Lookup(tag Tag) *Entry {
	return s.inFlight[tag]
}

// InFlight returns the number of fetched but not yet retired instructions.
func (s *State) InFlight() int {
	return len(s.inFlight)
}

// Config returns the machine configuration.
func (s *State) Config() *config.MachineConfig {
	return s.cfg
}

func (s *State) stationsFor(p latency.Pool) *StationPool {
	if p == latency.PoolFP {
		return s.FPStations
	}
	return s.IntStations
}

func (s *State) releaseOnIssue() bool {
	return s.cfg.StationRelease != config.ReleaseOnComplete
}

// retire removes e from the in-flight table and records its timeline.
func (s *State) retire(e *Entry) {
	delete(s.inFlight, e.Tag)
	s.stats.Retired++
	if s.keepTimeline {
		s.timeline = append(s.timeline, e.record())
	}
}

// Verify checks the structural invariants of the machine and returns the
// first violation found.
func (s *State) Verify() error {
	resident := make(map[Tag]bool)
	holds := func(where string, e *Entry) error {
		if s.inFlight[e.Tag] != e {
			return fmt.Errorf("%w: %s holds tag %d which is not in flight",
				ErrInvariant, where, e.Tag)
		}
		resident[e.Tag] = true
		return nil
	}

	var err error
	for _, st := range []*StationPool{s.IntStations, s.FPStations} {
		st.Each(func(i int, e *Entry) {
			if err != nil {
				return
			}
			where := fmt.Sprintf("%s station %d", st.Pool(), i)
			if err = holds(where, e); err != nil {
				return
			}
			if e.Issued() && s.releaseOnIssue() {
				err = fmt.Errorf("%w: %s still holds issued tag %d",
					ErrInvariant, where, e.Tag)
				return
			}
			err = s.verifyOperands(where, e)
		})
		if err != nil {
			return err
		}
	}

	seen := make(map[Tag]string)
	for _, u := range []*UnitPool{s.IntUnits, s.FPUnits} {
		u.Each(func(i int, e *Entry) {
			if err != nil {
				return
			}
			where := fmt.Sprintf("%s unit %d", u.Pool(), i)
			if prev, dup := seen[e.Tag]; dup {
				err = fmt.Errorf("%w: tag %d executes on %s and %s",
					ErrInvariant, e.Tag, prev, where)
				return
			}
			seen[e.Tag] = where
			if err = holds(where, e); err != nil {
				return
			}
			if !e.Issued() {
				err = fmt.Errorf("%w: %s holds unissued tag %d",
					ErrInvariant, where, e.Tag)
				return
			}
			if err = s.verifyOperands(where, e); err != nil {
				return
			}
			for _, q := range e.Q {
				if q != NoTag && q != s.Bus.Tag() {
					err = fmt.Errorf("%w: %s executes tag %d still waiting on tag %d",
						ErrInvariant, where, e.Tag, q)
					return
				}
			}
		})
		if err != nil {
			return err
		}
	}

	if b := s.Bus.Current(); b != nil {
		if err := holds("bus", b); err != nil {
			return err
		}
		if where, dup := seen[b.Tag]; dup {
			return fmt.Errorf("%w: tag %d is on the bus and on %s",
				ErrInvariant, b.Tag, where)
		}
		if !b.Inst.Class.WritesBus() {
			return fmt.Errorf("%w: tag %d on the bus produces no result",
				ErrInvariant, b.Tag)
		}
	}

	s.Map.Each(func(r insts.Reg, tag Tag) {
		if err != nil {
			return
		}
		if s.inFlight[tag] == nil {
			err = fmt.Errorf("%w: register %s maps to retired tag %d",
				ErrInvariant, r, tag)
		}
	})
	if err != nil {
		return err
	}

	if len(s.inFlight) != len(resident)+s.Queue.Len() {
		return fmt.Errorf("%w: %d instructions in flight but %d resident",
			ErrInvariant, len(s.inFlight), len(resident)+s.Queue.Len())
	}
	return nil
}

func (s *State) verifyOperands(where string, e *Entry) error {
	for k, q := range e.Q {
		if q == NoTag {
			continue
		}
		if q >= e.Tag {
			return fmt.Errorf("%w: %s tag %d waits on younger tag %d",
				ErrInvariant, where, e.Tag, q)
		}
		p := s.inFlight[q]
		if p == nil {
			return fmt.Errorf("%w: %s tag %d source %d waits on retired tag %d",
				ErrInvariant, where, e.Tag, k, q)
		}
		if !p.Inst.Class.WritesBus() {
			return fmt.Errorf("%w: %s tag %d waits on tag %d which never broadcasts",
				ErrInvariant, where, e.Tag, q)
		}
	}
	return nil
}
