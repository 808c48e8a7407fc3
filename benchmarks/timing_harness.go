// Package benchmarks provides synthetic timing benchmarks for the Tomasulo
// scheduler and a harness that runs and reports them.
package benchmarks

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/tomasim/insts"
	"github.com/sarchlab/tomasim/timing/config"
	"github.com/sarchlab/tomasim/timing/core"
	"github.com/sarchlab/tomasim/timing/pipeline"
	"github.com/sarchlab/tomasim/trace"
)

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// SimulatedCycles is the total cycle count from the timing simulator
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// InstructionsRetired is the number of completed instructions
	InstructionsRetired uint64 `json:"instructions_retired"`

	CPI float64 `json:"cpi"`
	IPC float64 `json:"ipc"`

	Broadcasts      uint64 `json:"broadcasts"`
	StoresCompleted uint64 `json:"stores_completed"`
	DispatchRetired uint64 `json:"dispatch_retired"`
	TrapsSkipped    uint64 `json:"traps_skipped"`

	FetchStalls    uint64 `json:"fetch_stalls"`
	DispatchStalls uint64 `json:"dispatch_stalls"`
	IssueStalls    uint64 `json:"issue_stalls"`
	BusConflicts   uint64 `json:"bus_conflicts"`

	// ExpectedCycles is copied from the benchmark; 0 means unchecked.
	ExpectedCycles uint64 `json:"expected_cycles,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Matches returns true if the benchmark has no expectation or met it.
func (r BenchmarkResult) Matches() bool {
	return r.ExpectedCycles == 0 || r.ExpectedCycles == r.SimulatedCycles
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Program is the ARM64 machine code, one record per instruction
	Program []trace.Record

	// ExpectedCycles is the known cycle count on the default machine, or 0
	ExpectedCycles uint64
}

// Engine selects how the harness drives the pipeline.
type Engine string

const (
	// EngineLoop calls Pipeline.Run directly.
	EngineLoop Engine = "loop"
	// EngineAkita ticks the pipeline from an akita serial engine.
	EngineAkita Engine = "akita"
)

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Machine is the scheduler configuration (default machine if nil)
	Machine *config.MachineConfig

	// Engine selects the driver loop
	Engine Engine

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose logs each benchmark as it completes
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Machine: config.DefaultMachineConfig(),
		Engine:  EngineLoop,
		Output:  os.Stdout,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
	decoder    *insts.Decoder
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Machine == nil {
		config.Machine = DefaultConfig().Machine
	}
	if config.Engine == "" {
		config.Engine = EngineLoop
	}
	return &Harness{
		config:  config,
		decoder: insts.NewDecoder(),
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() ([]BenchmarkResult, error) {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result, err := h.runBenchmark(bench)
		if err != nil {
			return results, fmt.Errorf("benchmark %s: %w", bench.Name, err)
		}
		results = append(results, result)
	}

	return results, nil
}

// runBenchmark encodes the program as a binary trace, decodes it back and
// runs it on a fresh pipeline.
func (h *Harness) runBenchmark(bench Benchmark) (BenchmarkResult, error) {
	var image bytes.Buffer
	if err := trace.WriteBinary(&image, bench.Program); err != nil {
		return BenchmarkResult{}, err
	}
	instrs, err := trace.LoadBinary(&image, h.decoder)
	if err != nil {
		return BenchmarkResult{}, err
	}

	pipe := pipeline.NewPipeline(trace.NewSliceSource(instrs),
		pipeline.WithConfig(h.config.Machine.Clone()))

	start := time.Now()
	switch h.config.Engine {
	case EngineAkita:
		if _, err := core.Run(pipe); err != nil {
			return BenchmarkResult{}, err
		}
	case EngineLoop:
		pipe.Run()
	default:
		return BenchmarkResult{}, fmt.Errorf("unknown engine %q", h.config.Engine)
	}
	wallTime := time.Since(start)

	stats := pipe.Stats()
	result := BenchmarkResult{
		Name:                bench.Name,
		Description:         bench.Description,
		SimulatedCycles:     stats.Cycles,
		InstructionsRetired: stats.Retired,
		CPI:                 stats.CPI(),
		IPC:                 stats.IPC(),
		Broadcasts:          stats.Broadcasts,
		StoresCompleted:     stats.StoresCompleted,
		DispatchRetired:     stats.DispatchRetired,
		TrapsSkipped:        stats.TrapsSkipped,
		FetchStalls:         stats.FetchStalls,
		DispatchStalls:      stats.DispatchStalls,
		IssueStalls:         stats.IssueStalls,
		BusConflicts:        stats.BusConflicts,
		ExpectedCycles:      bench.ExpectedCycles,
		WallTime:            wallTime,
	}

	if h.config.Verbose {
		logrus.Infof("%s: cycles=%d insts=%d CPI=%.3f",
			result.Name, result.SimulatedCycles, result.InstructionsRetired, result.CPI)
	}
	if !result.Matches() {
		logrus.Warnf("%s: expected %d cycles, simulated %d",
			result.Name, result.ExpectedCycles, result.SimulatedCycles)
	}

	return result, nil
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	out := h.config.Output
	_, _ = fmt.Fprintln(out, "=== Tomasulo Timing Benchmark Results ===")
	_, _ = fmt.Fprintln(out, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(out, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(out, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintln(out, "  --- Timing ---")
		_, _ = fmt.Fprintf(out, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		if r.ExpectedCycles > 0 {
			_, _ = fmt.Fprintf(out, "  Expected Cycles:      %d\n", r.ExpectedCycles)
		}
		_, _ = fmt.Fprintf(out, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(out, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(out, "  Broadcasts:           %d\n", r.Broadcasts)
		_, _ = fmt.Fprintf(out, "  Stores Completed:     %d\n", r.StoresCompleted)
		_, _ = fmt.Fprintf(out, "  Retired At Dispatch:  %d\n", r.DispatchRetired)
		_, _ = fmt.Fprintln(out, "  --- Stalls ---")
		_, _ = fmt.Fprintf(out, "  Fetch:                %d\n", r.FetchStalls)
		_, _ = fmt.Fprintf(out, "  Dispatch:             %d\n", r.DispatchStalls)
		_, _ = fmt.Fprintf(out, "  Issue:                %d\n", r.IssueStalls)
		_, _ = fmt.Fprintf(out, "  Bus Conflicts:        %d\n", r.BusConflicts)
		_, _ = fmt.Fprintf(out, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(out, "")
	}
}

var csvHeader = []string{
	"name", "cycles", "instructions", "cpi", "broadcasts", "stores",
	"dispatch_retired", "fetch_stalls", "dispatch_stalls", "issue_stalls",
	"bus_conflicts",
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) error {
	w := csv.NewWriter(h.config.Output)
	if err := w.Write(csvHeader); err != nil {
		return err
	}

	u := func(v uint64) string { return strconv.FormatUint(v, 10) }
	for _, r := range results {
		row := []string{
			r.Name,
			u(r.SimulatedCycles),
			u(r.InstructionsRetired),
			strconv.FormatFloat(r.CPI, 'f', 3, 64),
			u(r.Broadcasts),
			u(r.StoresCompleted),
			u(r.DispatchRetired),
			u(r.FetchStalls),
			u(r.DispatchStalls),
			u(r.IssueStalls),
			u(r.BusConflicts),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	Metadata ReportMetadata    `json:"metadata"`
	Results  []BenchmarkResult `json:"results"`
	Summary  ReportSummary     `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Engine used to drive the pipeline
	Engine Engine `json:"engine"`

	// Machine is the scheduler configuration
	Machine *config.MachineConfig `json:"machine"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	TotalBenchmarks   int           `json:"total_benchmarks"`
	TotalCycles       uint64        `json:"total_cycles"`
	TotalInstructions uint64        `json:"total_instructions"`
	AverageCPI        float64       `json:"average_cpi"`
	Mismatches        int           `json:"mismatches"`
	TotalWallTime     time.Duration `json:"total_wall_time_ns"`
}

// Summarize aggregates results.
func Summarize(results []BenchmarkResult) ReportSummary {
	s := ReportSummary{TotalBenchmarks: len(results)}
	for _, r := range results {
		s.TotalCycles += r.SimulatedCycles
		s.TotalInstructions += r.InstructionsRetired
		s.TotalWallTime += r.WallTime
		if !r.Matches() {
			s.Mismatches++
		}
	}
	if s.TotalInstructions > 0 {
		s.AverageCPI = float64(s.TotalCycles) / float64(s.TotalInstructions)
	}
	return s
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Engine:    h.config.Engine,
			Machine:   h.config.Machine,
		},
		Results: results,
		Summary: Summarize(results),
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
