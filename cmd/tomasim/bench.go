package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/tomasim/benchmarks"
)

func newBenchCmd() *cobra.Command {
	var (
		format     string
		configPath string
		engine     string
		coreOnly   bool
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run the synthetic benchmark suite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			machine, err := loadMachine(configPath)
			if err != nil {
				return err
			}

			h := benchmarks.NewHarness(benchmarks.HarnessConfig{
				Machine: machine,
				Engine:  benchmarks.Engine(engine),
				Output:  cmd.OutOrStdout(),
			})
			if coreOnly {
				h.AddBenchmarks(benchmarks.GetCoreBenchmarks())
			} else {
				h.AddBenchmarks(benchmarks.GetMicrobenchmarks())
			}

			results, err := h.RunAll()
			if err != nil {
				return err
			}

			switch format {
			case "text":
				h.PrintResults(results)
				return nil
			case "json":
				return h.PrintJSON(results)
			case "csv":
				return h.PrintCSV(results)
			default:
				return fmt.Errorf("unknown output format %q", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json or csv")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a machine configuration (JSON or YAML)")
	cmd.Flags().StringVar(&engine, "engine", string(benchmarks.EngineLoop), "Driver: loop or akita")
	cmd.Flags().BoolVar(&coreOnly, "core", false, "Run only the core benchmark subset")

	return cmd
}
