package benchmarks_test

import (
	"bytes"
	"encoding/json"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tomasim/benchmarks"
)

func run(engine benchmarks.Engine, bs ...benchmarks.Benchmark) []benchmarks.BenchmarkResult {
	cfg := benchmarks.DefaultConfig()
	cfg.Output = &bytes.Buffer{}
	cfg.Engine = engine

	h := benchmarks.NewHarness(cfg)
	h.AddBenchmarks(bs)
	results, err := h.RunAll()
	Expect(err).NotTo(HaveOccurred())
	return results
}

func byName(results []benchmarks.BenchmarkResult) map[string]benchmarks.BenchmarkResult {
	out := make(map[string]benchmarks.BenchmarkResult)
	for _, r := range results {
		out[r.Name] = r
	}
	return out
}

var _ = Describe("Harness", func() {
	It("should run every microbenchmark", func() {
		results := run(benchmarks.EngineLoop, benchmarks.GetMicrobenchmarks()...)
		Expect(results).To(HaveLen(7))

		for _, r := range results {
			Expect(r.SimulatedCycles).To(BeNumerically(">", 0), r.Name)
			Expect(r.InstructionsRetired).To(BeNumerically(">", 0), r.Name)
			Expect(r.Matches()).To(BeTrue(), r.Name)
			Expect(r.TrapsSkipped).To(Equal(uint64(1)), r.Name)
		}
	})

	It("should hit the known latency of the chains", func() {
		results := byName(run(benchmarks.EngineLoop, benchmarks.GetMicrobenchmarks()...))
		Expect(results["dependency_chain"].SimulatedCycles).To(Equal(uint64(103)))
		Expect(results["fp_chain"].SimulatedCycles).To(Equal(uint64(73)))
	})

	It("should keep stores off the bus", func() {
		r := byName(run(benchmarks.EngineLoop, benchmarks.GetMicrobenchmarks()...))["store_burst"]
		Expect(r.Broadcasts).To(BeZero())
		Expect(r.StoresCompleted).To(Equal(uint64(16)))
	})

	It("should retire control flow at dispatch", func() {
		r := byName(run(benchmarks.EngineLoop, benchmarks.GetMicrobenchmarks()...))["branch_heavy"]
		Expect(r.DispatchRetired).To(Equal(uint64(12)))
		Expect(r.InstructionsRetired).To(Equal(uint64(32)))
	})

	It("should show station back-pressure", func() {
		r := byName(run(benchmarks.EngineLoop, benchmarks.GetMicrobenchmarks()...))["station_pressure"]
		Expect(r.DispatchStalls).To(BeNumerically(">", 0))
	})

	It("should give the same cycle counts on the akita engine", func() {
		loop := run(benchmarks.EngineLoop, benchmarks.GetCoreBenchmarks()...)
		akita := run(benchmarks.EngineAkita, benchmarks.GetCoreBenchmarks()...)
		Expect(akita).To(HaveLen(len(loop)))
		for i := range loop {
			Expect(akita[i].SimulatedCycles).To(Equal(loop[i].SimulatedCycles))
		}
	})

	It("should reject an unknown engine", func() {
		cfg := benchmarks.DefaultConfig()
		cfg.Engine = "warp"
		h := benchmarks.NewHarness(cfg)
		h.AddBenchmarks(benchmarks.GetCoreBenchmarks())
		_, err := h.RunAll()
		Expect(err).To(MatchError(ContainSubstring("unknown engine")))
	})

	Describe("reports", func() {
		var (
			out     *bytes.Buffer
			h       *benchmarks.Harness
			results []benchmarks.BenchmarkResult
		)

		BeforeEach(func() {
			out = &bytes.Buffer{}
			cfg := benchmarks.DefaultConfig()
			cfg.Output = out
			h = benchmarks.NewHarness(cfg)
			h.AddBenchmarks(benchmarks.GetCoreBenchmarks())

			var err error
			results, err = h.RunAll()
			Expect(err).NotTo(HaveOccurred())
		})

		It("should print text", func() {
			h.PrintResults(results)
			Expect(out.String()).To(ContainSubstring("Benchmark: dependency_chain"))
			Expect(out.String()).To(ContainSubstring("Expected Cycles:      103"))
		})

		It("should print CSV", func() {
			Expect(h.PrintCSV(results)).To(Succeed())
			lines := strings.Split(strings.TrimSpace(out.String()), "\n")
			Expect(lines).To(HaveLen(len(results) + 1))
			Expect(lines[0]).To(HavePrefix("name,cycles,instructions,cpi"))
			Expect(lines[1]).To(HavePrefix("dependency_chain,103,20,"))
		})

		It("should print JSON", func() {
			Expect(h.PrintJSON(results)).To(Succeed())

			var report benchmarks.BenchmarkReport
			Expect(json.Unmarshal(out.Bytes(), &report)).To(Succeed())
			Expect(report.Summary.TotalBenchmarks).To(Equal(3))
			Expect(report.Summary.Mismatches).To(BeZero())
			Expect(report.Metadata.Engine).To(Equal(benchmarks.EngineLoop))
			Expect(report.Metadata.Machine.QueueSize).To(Equal(16))
		})
	})
})
