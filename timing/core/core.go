// Package core wraps the Tomasulo scheduler in an akita ticking component so
// that it can be driven by an akita simulation engine.
package core

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/tomasim/timing/pipeline"
)

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Stalls is the number of fetch, dispatch and issue stall events.
	Stalls uint64
	// BusConflicts is the number of results delayed by the bus.
	BusConflicts uint64
}

// Core is a ticking component that advances one scheduler cycle per tick.
type Core struct {
	*sim.TickingComponent

	// Pipeline is the underlying scheduler.
	Pipeline *pipeline.Pipeline
}

// Tick advances the pipeline by one cycle. It returns false once the
// pipeline has drained or hit its cycle bound, which stops the ticking.
func (c *Core) Tick() bool {
	if c.Pipeline.Done() {
		return false
	}

	limit := c.Pipeline.Config().MaxCycles
	if limit > 0 && c.Pipeline.Cycle() >= limit {
		return false
	}

	c.Pipeline.Tick()
	return true
}

// Start schedules the first tick.
func (c *Core) Start() {
	c.TickLater()
}

// Done returns true once the pipeline has drained.
func (c *Core) Done() bool {
	return c.Pipeline.Done()
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	ps := c.Pipeline.Stats()
	return Stats{
		Cycles:       ps.Cycles,
		Instructions: ps.Retired,
		Stalls:       ps.FetchStalls + ps.DispatchStalls + ps.IssueStalls,
		BusConflicts: ps.BusConflicts,
	}
}

// Builder can create new cores.
type Builder struct {
	engine sim.Engine
	freq   sim.Freq
}

// MakeBuilder returns a builder with a 1 GHz clock and no engine.
func MakeBuilder() Builder {
	return Builder{freq: 1 * sim.GHz}
}

// WithEngine sets the engine.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the core.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// Build creates a core driving pipe. A serial engine is created if none
// was given.
func (b Builder) Build(name string, pipe *pipeline.Pipeline) *Core {
	if b.engine == nil {
		b.engine = sim.NewSerialEngine()
	}

	c := &Core{Pipeline: pipe}
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)
	return c
}

// Run drives pipe to completion on a fresh serial engine and returns the
// number of cycles simulated.
func Run(pipe *pipeline.Pipeline) (uint64, error) {
	engine := sim.NewSerialEngine()
	c := MakeBuilder().WithEngine(engine).Build("Core", pipe)

	c.Start()
	if err := engine.Run(); err != nil {
		return pipe.Cycle(), fmt.Errorf("running %s: %w", c.Name(), err)
	}
	return pipe.Cycle(), nil
}
