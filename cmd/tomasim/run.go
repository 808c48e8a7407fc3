package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/pprof"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarchlab/tomasim/benchmarks"
	"github.com/sarchlab/tomasim/insts"
	"github.com/sarchlab/tomasim/loader"
	"github.com/sarchlab/tomasim/timing/config"
	"github.com/sarchlab/tomasim/timing/core"
	"github.com/sarchlab/tomasim/timing/pipeline"
	"github.com/sarchlab/tomasim/trace"
)

type runOptions struct {
	format     string
	configPath string
	engine     string
	timeline   bool
	check      bool
	maxCycles  uint64
	cpuProfile string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <trace>",
		Short: "Run an instruction trace through the scheduler",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.format, "format", "",
		"Trace format: yaml, bin or elf (default: from file extension)")
	cmd.Flags().StringVar(&opts.configPath, "config", "",
		"Path to a machine configuration (JSON or YAML)")
	cmd.Flags().StringVar(&opts.engine, "engine", string(benchmarks.EngineLoop),
		"Driver: loop or akita")
	cmd.Flags().BoolVar(&opts.timeline, "timeline", false,
		"Print the per-instruction timeline")
	cmd.Flags().BoolVar(&opts.check, "check", false,
		"Verify scheduler invariants after every cycle")
	cmd.Flags().Uint64Var(&opts.maxCycles, "max-cycles", 0,
		"Stop after this many cycles (0 = unbounded)")
	cmd.Flags().StringVar(&opts.cpuProfile, "cpuprofile", "",
		"Write a CPU profile of the simulation to this file")

	return cmd
}

func loadMachine(path string) (*config.MachineConfig, error) {
	if path == "" {
		return config.DefaultMachineConfig(), nil
	}
	return config.LoadConfig(path)
}

func loadTrace(path, format string) ([]*insts.Instruction, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			format = "yaml"
		case ".elf":
			format = "elf"
		default:
			format = "bin"
		}
	}

	switch format {
	case "yaml":
		return trace.LoadYAMLFile(path)
	case "bin":
		return trace.LoadBinaryFile(path, insts.NewDecoder())
	case "elf":
		return loader.LoadTrace(path, insts.NewDecoder())
	default:
		return nil, fmt.Errorf("unknown trace format %q", format)
	}
}

func runTrace(out io.Writer, path string, opts *runOptions) error {
	cfg, err := loadMachine(opts.configPath)
	if err != nil {
		return err
	}
	if opts.check {
		cfg.CheckInvariants = true
	}
	if opts.maxCycles > 0 {
		cfg.MaxCycles = opts.maxCycles
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	instrs, err := loadTrace(path, opts.format)
	if err != nil {
		return err
	}

	pipeOpts := []pipeline.PipelineOption{pipeline.WithConfig(cfg)}
	if opts.timeline {
		pipeOpts = append(pipeOpts, pipeline.WithTimeline())
	}
	pipe := pipeline.NewPipeline(trace.NewSliceSource(instrs), pipeOpts...)

	if opts.cpuProfile != "" {
		stop, err := startCPUProfile(opts.cpuProfile)
		if err != nil {
			return err
		}
		defer stop()
	}

	var cycles uint64
	switch benchmarks.Engine(opts.engine) {
	case benchmarks.EngineLoop:
		cycles = pipe.Run()
	case benchmarks.EngineAkita:
		if cycles, err = core.Run(pipe); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown engine %q", opts.engine)
	}

	_, _ = fmt.Fprintf(out, "Total cycles: %d\n", cycles)
	if !pipe.Done() {
		_, _ = fmt.Fprintf(out, "Stopped before drain: %d instructions in flight\n",
			pipe.State().InFlight())
	}
	printStats(out, pipe.Stats())
	if opts.timeline {
		printTimeline(out, pipe.Timeline())
	}
	return nil
}

func startCPUProfile(path string) (func(), error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to start CPU profile: %w", err)
	}
	return func() {
		pprof.StopCPUProfile()
		_ = f.Close()
	}, nil
}

func printStats(out io.Writer, s pipeline.Statistics) {
	_, _ = fmt.Fprintln(out, "--- Statistics ---")
	_, _ = fmt.Fprintf(out, "  Instructions Retired: %d\n", s.Retired)
	_, _ = fmt.Fprintf(out, "  CPI:                  %.3f\n", s.CPI())
	_, _ = fmt.Fprintf(out, "  Fetched:              %d\n", s.Fetched)
	_, _ = fmt.Fprintf(out, "  Dispatched:           %d\n", s.Dispatched)
	_, _ = fmt.Fprintf(out, "  Issued:               %d\n", s.Issued)
	_, _ = fmt.Fprintf(out, "  Broadcasts:           %d\n", s.Broadcasts)
	_, _ = fmt.Fprintf(out, "  Stores Completed:     %d\n", s.StoresCompleted)
	_, _ = fmt.Fprintf(out, "  Retired At Dispatch:  %d\n", s.DispatchRetired)
	_, _ = fmt.Fprintf(out, "  Traps Skipped:        %d\n", s.TrapsSkipped)
	_, _ = fmt.Fprintf(out, "  Fetch Stalls:         %d\n", s.FetchStalls)
	_, _ = fmt.Fprintf(out, "  Dispatch Stalls:      %d\n", s.DispatchStalls)
	_, _ = fmt.Fprintf(out, "  Issue Stalls:         %d\n", s.IssueStalls)
	_, _ = fmt.Fprintf(out, "  Bus Conflicts:        %d\n", s.BusConflicts)
}

func printTimeline(out io.Writer, records []pipeline.Record) {
	_, _ = fmt.Fprintln(out, "--- Timeline ---")
	_, _ = fmt.Fprintf(out, "%6s %10s %-7s %-6s %6s %6s %6s %6s %6s %6s\n",
		"#", "pc", "op", "class", "fetch", "disp", "ready", "exec", "cdb", "done")
	for _, r := range records {
		_, _ = fmt.Fprintf(out, "%6d %#10x %-7s %-6s %6s %6s %6s %6s %6s %6d\n",
			r.Index, r.PC, r.Op, r.Class,
			stamp(r.Fetch), stamp(r.Dispatch), stamp(r.Ready),
			stamp(r.Execute), stamp(r.Broadcast), r.Complete)
	}
}

func stamp(c uint64) string {
	if c == 0 {
		return "-"
	}
	return fmt.Sprint(c)
}
