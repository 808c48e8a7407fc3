package pipeline

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/tomasim/timing/config"
	"github.com/sarchlab/tomasim/timing/latency"
	"github.com/sarchlab/tomasim/trace"
)

// Statistics holds scheduler performance counters.
type Statistics struct {
	// Cycles is the number of cycles simulated.
	Cycles uint64
	// Fetched is the number of instructions placed in the queue.
	Fetched uint64
	// Dispatched is the number of instructions placed in a station.
	Dispatched uint64
	// Issued is the number of instructions started on a functional unit.
	Issued uint64
	// Broadcasts is the number of results written on the bus.
	Broadcasts uint64
	// StoresCompleted is the number of instructions that left a unit
	// without using the bus.
	StoresCompleted uint64
	// DispatchRetired is the number of control and unclassified
	// instructions retired straight out of the queue.
	DispatchRetired uint64
	// TrapsSkipped is the number of traps dropped at fetch.
	TrapsSkipped uint64
	// Retired is the number of instructions that left the machine.
	Retired uint64

	// FetchStalls counts cycles fetch was blocked by a full queue.
	FetchStalls uint64
	// DispatchStalls counts cycles the queue head found no free station.
	DispatchStalls uint64
	// IssueStalls counts ready station entries that found no free unit.
	IssueStalls uint64
	// BusConflicts counts finished results that had to wait for the bus.
	BusConflicts uint64
}

// CPI returns cycles per retired instruction.
func (s Statistics) CPI() float64 {
	if s.Retired == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Retired)
}

// IPC returns retired instructions per cycle.
func (s Statistics) IPC() float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(s.Retired) / float64(s.Cycles)
}

// Pipeline is a cycle-accurate Tomasulo scheduler fed by a trace.
type Pipeline struct {
	cfg          *config.MachineConfig
	table        *latency.Table
	log          logrus.FieldLogger
	keepTimeline bool

	state *State
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithConfig sets the machine configuration. Latencies follow the config
// unless WithLatencyTable is also given.
func WithConfig(cfg *config.MachineConfig) PipelineOption {
	return func(p *Pipeline) {
		p.cfg = cfg
		if p.table == nil || p.table.Config() != cfg {
			p.table = latency.NewTableWithConfig(cfg)
		}
	}
}

// WithLatencyTable sets the latency table, and the configuration behind it.
func WithLatencyTable(table *latency.Table) PipelineOption {
	return func(p *Pipeline) {
		p.table = table
		p.cfg = table.Config()
	}
}

// WithLogger routes per-cycle debug output to log.
func WithLogger(log logrus.FieldLogger) PipelineOption {
	return func(p *Pipeline) {
		p.log = log
	}
}

// WithTimeline keeps a Record for every retired instruction.
func WithTimeline() PipelineOption {
	return func(p *Pipeline) {
		p.keepTimeline = true
	}
}

// NewPipeline creates a scheduler that will execute src. The configuration
// is expected to be valid; see config.MachineConfig.Validate.
func NewPipeline(src trace.Source, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{}
	for _, opt := range opts {
		opt(p)
	}

	if p.cfg == nil {
		p.cfg = config.DefaultMachineConfig()
	}
	if p.table == nil {
		p.table = latency.NewTableWithConfig(p.cfg)
	}
	if p.log == nil {
		p.log = logrus.StandardLogger()
	}

	p.Reset(src)
	return p
}

// Reset discards all machine state and starts over on src.
func (p *Pipeline) Reset(src trace.Source) {
	p.state = newState(src, p.cfg, p.table, p.log)
	p.state.keepTimeline = p.keepTimeline
}

// Tick advances the machine by one cycle.
func (p *Pipeline) Tick() {
	s := p.state
	s.Cycle++

	retireFromBus(s)
	executeToBus(s)
	issueToExecute(s)
	dispatchToIssue(s)
	fetchToDispatch(s)

	s.stats.Cycles = s.Cycle

	if p.cfg.CheckInvariants {
		if err := s.Verify(); err != nil {
			p.log.Panicf("[cycle %05d] %v", s.Cycle, err)
		}
	}
}

// Done returns true once at least one cycle ran and the machine drained.
func (p *Pipeline) Done() bool {
	return p.state.Cycle > 0 && p.state.Drained()
}

// Run executes until the machine drains and returns the final cycle count.
// A nonzero MaxCycles in the configuration bounds the run; check Done to
// tell a drained machine from a cut-off one.
func (p *Pipeline) Run() uint64 {
	for !p.Done() {
		if p.cfg.MaxCycles > 0 && p.state.Cycle >= p.cfg.MaxCycles {
			p.log.Warnf("stopped after %d cycles with %d instructions in flight",
				p.state.Cycle, p.state.InFlight())
			break
		}
		p.Tick()
	}
	return p.state.Cycle
}

// RunCycles executes at most n cycles. It returns true if the machine is
// still running afterwards.
func (p *Pipeline) RunCycles(n uint64) bool {
	for i := uint64(0); i < n && !p.Done(); i++ {
		p.Tick()
	}
	return !p.Done()
}

// Stats returns a snapshot of the performance counters.
func (p *Pipeline) Stats() Statistics {
	return p.state.stats
}

// Timeline returns the records of retired instructions in retirement
// order. It is empty unless the pipeline was built WithTimeline.
func (p *Pipeline) Timeline() []Record {
	return append([]Record(nil), p.state.timeline...)
}

// State exposes the machine state for inspection.
func (p *Pipeline) State() *State {
	return p.state
}

// Cycle returns the current cycle number.
func (p *Pipeline) Cycle() uint64 {
	return p.state.Cycle
}

// Config returns the machine configuration.
func (p *Pipeline) Config() *config.MachineConfig {
	return p.cfg
}
