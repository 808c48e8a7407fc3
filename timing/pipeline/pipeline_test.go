package pipeline_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sarchlab/tomasim/insts"
	"github.com/sarchlab/tomasim/timing/config"
	"github.com/sarchlab/tomasim/timing/latency"
	"github.com/sarchlab/tomasim/timing/pipeline"
	"github.com/sarchlab/tomasim/trace"
)

var _ = Describe("Pipeline", func() {
	var cfg *config.MachineConfig

	BeforeEach(func() {
		cfg = config.DefaultMachineConfig()
	})

	Describe("NewPipeline", func() {
		It("should use the default machine", func() {
			pipe := pipeline.NewPipeline(trace.NewSliceSource(nil))
			Expect(pipe.Config().QueueSize).To(Equal(16))
			Expect(pipe.State().IntStations.Size()).To(Equal(5))
			Expect(pipe.State().FPStations.Size()).To(Equal(3))
			Expect(pipe.State().IntUnits.Size()).To(Equal(3))
			Expect(pipe.State().FPUnits.Size()).To(Equal(1))
			Expect(pipe.State().IntUnits.Latency()).To(Equal(uint64(5)))
			Expect(pipe.State().FPUnits.Latency()).To(Equal(uint64(7)))
		})

		It("should take latencies from a latency table", func() {
			cfg.IntLatency = 2
			pipe := pipeline.NewPipeline(trace.NewSliceSource(nil),
				pipeline.WithLatencyTable(latency.NewTableWithConfig(cfg)))
			Expect(pipe.State().IntUnits.Latency()).To(Equal(uint64(2)))
		})
	})

	Describe("Run", func() {
		It("should take one cycle for an empty trace", func() {
			pipe := newPipe(cfg)
			Expect(pipe.Run()).To(Equal(uint64(1)))
			Expect(pipe.Done()).To(BeTrue())
		})

		It("should run a single integer instruction in 8 cycles", func() {
			pipe := newPipe(cfg, icomp(x(1)))
			Expect(pipe.Run()).To(Equal(uint64(8)))

			rec := byIndex(pipe)[1]
			Expect(rec.Fetch).To(Equal(uint64(1)))
			Expect(rec.Dispatch).To(Equal(uint64(1)))
			Expect(rec.Ready).To(Equal(uint64(2)))
			Expect(rec.Execute).To(Equal(uint64(2)))
			Expect(rec.Broadcast).To(Equal(uint64(7)))
			Expect(rec.Complete).To(Equal(uint64(8)))
		})

		It("should run a single floating-point instruction in 10 cycles", func() {
			pipe := newPipe(cfg, fcomp(v(0)))
			Expect(pipe.Run()).To(Equal(uint64(10)))
			Expect(byIndex(pipe)[1].Broadcast).To(Equal(uint64(9)))
		})

		It("should overlap independent instructions", func() {
			pipe := newPipe(cfg, icomp(x(1)), icomp(x(2)))
			Expect(pipe.Run()).To(Equal(uint64(9)))

			recs := byIndex(pipe)
			Expect(recs[1].Broadcast).To(Equal(uint64(7)))
			Expect(recs[2].Execute).To(Equal(uint64(3)))
			Expect(recs[2].Broadcast).To(Equal(uint64(8)))
			Expect(pipe.Stats().BusConflicts).To(BeZero())
		})

		It("should stop at MaxCycles", func() {
			cfg.MaxCycles = 4
			pipe := newPipe(cfg, icomp(x(1)))
			Expect(pipe.Run()).To(Equal(uint64(4)))
			Expect(pipe.Done()).To(BeFalse())
		})
	})

	Describe("RAW dependencies", func() {
		It("should issue a dependent in its producer's broadcast cycle with forward_on_broadcast (default)", func() {
			pipe := newPipe(cfg, icomp(x(1)), icomp(x(2), x(1)))
			Expect(pipe.Run()).To(Equal(uint64(13)))

			recs := byIndex(pipe)
			Expect(recs[2].Dispatch).To(Equal(uint64(2)))
			Expect(recs[2].Ready).To(Equal(uint64(7)))
			Expect(recs[2].Execute).To(Equal(recs[1].Broadcast))
		})

		It("should stall until the cycle after broadcast with forward_on_broadcast off", func() {
			cfg.ForwardOnBroadcast = false
			pipe := newPipe(cfg, icomp(x(1)), icomp(x(2), x(1)))
			Expect(pipe.Run()).To(Equal(uint64(14)))

			recs := byIndex(pipe)
			Expect(recs[2].Execute).To(Equal(recs[1].Broadcast + 1))
		})

		It("should clear the Q slot of a dependent that issued on the broadcast", func() {
			pipe := newPipe(cfg, icomp(x(1)), icomp(x(2), x(1)))
			pipe.RunCycles(7)

			var consumer *pipeline.Entry
			pipe.State().IntUnits.Each(func(_ int, e *pipeline.Entry) {
				if e.Tag == 2 {
					consumer = e
				}
			})
			Expect(consumer).NotTo(BeNil())
			Expect(consumer.Q[0]).To(Equal(pipeline.Tag(1)))
			Expect(pipe.State().Bus.Tag()).To(Equal(pipeline.Tag(1)))

			pipe.RunCycles(1)
			Expect(pipe.State().Bus.Empty()).To(BeTrue())
			Expect(consumer.Q).To(Equal([3]pipeline.Tag{}))
			Expect(consumer.Waiting()).To(BeFalse())
			Expect(pipe.State().Verify()).To(Succeed())
		})

		It("should record the producer in the Q slot at dispatch", func() {
			pipe := newPipe(cfg, icomp(x(1)), icomp(x(2), x(3), x(1)))
			pipe.RunCycles(2)

			var waiting *pipeline.Entry
			pipe.State().IntStations.Each(func(_ int, e *pipeline.Entry) {
				waiting = e
			})
			Expect(waiting).NotTo(BeNil())
			Expect(waiting.Q).To(Equal([3]pipeline.Tag{pipeline.NoTag, 1, pipeline.NoTag}))
			Expect(waiting.Waiting()).To(BeTrue())
		})

		It("should follow the last writer of a register", func() {
			pipe := newPipe(cfg, icomp(x(1)), icomp(x(1)), icomp(x(2), x(1)))
			pipe.RunCycles(3)
			Expect(pipe.State().Map.Producer(x(1))).To(Equal(pipeline.Tag(2)))
			Expect(pipe.State().Map.Producer(x(2))).To(Equal(pipeline.Tag(3)))

			pipe.Run()
			recs := byIndex(pipe)
			Expect(recs[3].Execute).To(Equal(recs[2].Broadcast))
			Expect(recs[3].Execute).To(Equal(uint64(8)))
			Expect(pipe.Cycle()).To(Equal(uint64(14)))
		})

		It("should clear the producer map once the last writer retires", func() {
			pipe := newPipe(cfg, icomp(x(1)), icomp(x(1)))
			pipe.RunCycles(8)
			Expect(pipe.State().Map.Producer(x(1))).To(Equal(pipeline.Tag(2)))

			pipe.Run()
			Expect(pipe.State().Map.Pending()).To(BeZero())
		})

		It("should ignore the zero register", func() {
			pipe := newPipe(cfg, icomp(insts.ZeroReg), icomp(x(2), insts.ZeroReg))
			Expect(pipe.Run()).To(Equal(uint64(9)))
		})
	})

	Describe("stores", func() {
		It("should complete without touching the bus", func() {
			pipe := newPipe(cfg, store(x(1), x(2)))
			Expect(pipe.Run()).To(Equal(uint64(7)))

			rec := byIndex(pipe)[1]
			Expect(rec.Broadcast).To(BeZero())
			Expect(rec.Complete).To(Equal(uint64(7)))
			Expect(pipe.Stats().Broadcasts).To(BeZero())
			Expect(pipe.Stats().StoresCompleted).To(Equal(uint64(1)))
		})

		It("should never rename a register", func() {
			st := store(x(1)).WithDests(x(5))
			pipe := newPipe(cfg, st)
			pipe.RunCycles(1)
			Expect(pipe.State().Map.Producer(x(5))).To(Equal(pipeline.NoTag))
		})

		It("should wait for its data producer", func() {
			pipe := newPipe(cfg, icomp(x(1)), store(x(1), x(2)))
			Expect(pipe.Run()).To(Equal(uint64(12)))
			Expect(byIndex(pipe)[2].Execute).To(Equal(uint64(7)))
		})
	})

	Describe("common data bus", func() {
		It("should give the bus to the oldest result across pools", func() {
			pipe := newPipe(cfg, fcomp(v(0)), branch(), icomp(x(1)))
			Expect(pipe.Run()).To(Equal(uint64(11)))

			recs := byIndex(pipe)
			Expect(recs[1].Broadcast).To(Equal(uint64(9)))
			Expect(recs[3].Broadcast).To(Equal(uint64(10)))
			Expect(pipe.Stats().BusConflicts).To(Equal(uint64(1)))
		})

		It("should give the bus to the oldest result within a pool", func() {
			pipe := newPipe(cfg, icomp(x(1)), icomp(x(2), x(1)), icomp(x(3), x(1)))
			pipe.Run()

			recs := byIndex(pipe)
			Expect(recs[2].Execute).To(Equal(recs[3].Execute))
			Expect(recs[2].Broadcast).To(Equal(uint64(12)))
			Expect(recs[3].Broadcast).To(Equal(uint64(13)))
		})

		It("should carry at most one result per cycle", func() {
			prog := []*insts.Instruction{
				icomp(x(1)), icomp(x(2)), icomp(x(3)), fcomp(v(1)),
				icomp(x(4), x(1), x(2)), fcomp(v(2), v(1)), icomp(x(5), x(3)),
			}
			pipe := newPipe(cfg, prog...)
			pipe.Run()

			seen := make(map[uint64]uint64)
			for _, r := range pipe.Timeline() {
				if r.Broadcast == 0 {
					continue
				}
				Expect(seen).NotTo(HaveKey(r.Broadcast))
				seen[r.Broadcast] = r.Index
			}
			Expect(seen).To(HaveLen(len(prog)))
		})
	})

	Describe("issue", func() {
		It("should issue oldest first when units are scarce", func() {
			pipe := newPipe(cfg, fcomp(v(0)), fcomp(v(1)), fcomp(v(2)))
			Expect(pipe.Run()).To(Equal(uint64(24)))

			recs := byIndex(pipe)
			Expect(recs[2].Ready).To(Equal(uint64(3)))
			Expect(recs[2].Execute).To(Equal(uint64(9)))
			Expect(recs[3].Ready).To(Equal(uint64(4)))
			Expect(recs[3].Execute).To(Equal(uint64(16)))
			Expect(pipe.Stats().IssueStalls).To(BeNumerically(">", 0))
		})

		It("should never issue in the dispatch cycle", func() {
			pipe := newPipe(cfg, icomp(x(1)))
			pipe.RunCycles(1)
			Expect(pipe.State().IntUnits.Empty()).To(BeTrue())
			Expect(pipe.State().IntStations.Occupied()).To(Equal(1))
		})
	})

	Describe("back-pressure", func() {
		It("should stall dispatch when every station is busy", func() {
			cfg.FPStations = 1
			pipe := newPipe(cfg, fcomp(v(0)), fcomp(v(1)), fcomp(v(2)))
			Expect(pipe.Run()).To(Equal(uint64(24)))

			Expect(byIndex(pipe)[3].Dispatch).To(Equal(uint64(9)))
			Expect(pipe.Stats().DispatchStalls).To(Equal(uint64(6)))
		})

		It("should hold stations until completion in complete mode", func() {
			cfg.FPStations = 1
			cfg.StationRelease = config.ReleaseOnComplete
			pipe := newPipe(cfg, fcomp(v(0)), fcomp(v(1)), fcomp(v(2)))
			Expect(pipe.Run()).To(Equal(uint64(28)))

			recs := byIndex(pipe)
			Expect(recs[2].Dispatch).To(Equal(uint64(10)))
			Expect(recs[2].Execute).To(Equal(uint64(11)))
			Expect(recs[3].Dispatch).To(Equal(uint64(19)))
		})

		It("should bound the instruction queue", func() {
			cfg.QueueSize = 2
			cfg.IntStations = 1
			cfg.IntUnits = 1
			var prog []*insts.Instruction
			for i := uint8(0); i < 8; i++ {
				prog = append(prog, icomp(x(i)))
			}
			pipe := newPipe(cfg, prog...)

			for pipe.RunCycles(1) {
				Expect(pipe.State().Queue.Len()).To(BeNumerically("<=", 2))
			}
			Expect(pipe.Stats().FetchStalls).To(BeNumerically(">", 0))
			Expect(pipe.Stats().Retired).To(Equal(uint64(8)))
		})
	})

	Describe("control and traps", func() {
		It("should retire control instructions at dispatch", func() {
			pipe := newPipe(cfg, branch())
			Expect(pipe.Run()).To(Equal(uint64(1)))
			Expect(pipe.Stats().DispatchRetired).To(Equal(uint64(1)))
			Expect(pipe.Stats().Dispatched).To(BeZero())
		})

		It("should let the next instruction proceed after a branch", func() {
			pipe := newPipe(cfg, branch(), icomp(x(1)))
			Expect(pipe.Run()).To(Equal(uint64(9)))
		})

		It("should skip traps at fetch", func() {
			pipe := newPipe(cfg, trap(), icomp(x(1)), trap())
			Expect(pipe.Run()).To(Equal(uint64(8)))

			stats := pipe.Stats()
			Expect(stats.TrapsSkipped).To(Equal(uint64(2)))
			Expect(stats.Fetched).To(Equal(uint64(1)))
			Expect(pipe.Timeline()).To(HaveLen(1))
			Expect(pipe.Timeline()[0].Index).To(Equal(uint64(2)))
		})
	})

	Describe("RunCycles", func() {
		It("should report whether the machine is still running", func() {
			pipe := newPipe(cfg, icomp(x(1)))
			Expect(pipe.RunCycles(3)).To(BeTrue())
			Expect(pipe.Cycle()).To(Equal(uint64(3)))
			Expect(pipe.RunCycles(100)).To(BeFalse())
			Expect(pipe.Cycle()).To(Equal(uint64(8)))
		})
	})

	Describe("Reset", func() {
		It("should start over on a new trace", func() {
			pipe := newPipe(cfg, icomp(x(1)), icomp(x(2)))
			pipe.Run()

			pipe.Reset(trace.NewSliceSource([]*insts.Instruction{icomp(x(3))}))
			Expect(pipe.Cycle()).To(BeZero())
			Expect(pipe.Stats()).To(Equal(pipeline.Statistics{}))
			Expect(pipe.Run()).To(Equal(uint64(8)))
		})
	})

	Describe("Statistics", func() {
		It("should compute CPI and IPC", func() {
			pipe := newPipe(cfg, icomp(x(1)), icomp(x(2)))
			pipe.Run()

			stats := pipe.Stats()
			Expect(stats.Cycles).To(Equal(uint64(9)))
			Expect(stats.Retired).To(Equal(uint64(2)))
			Expect(stats.CPI()).To(BeNumerically("~", 4.5, 0.001))
			Expect(stats.IPC()).To(BeNumerically("~", 2.0/9.0, 0.001))
		})

		It("should return zero ratios before anything retires", func() {
			Expect(pipeline.Statistics{}.CPI()).To(BeZero())
			Expect(pipeline.Statistics{}.IPC()).To(BeZero())
		})
	})

	Describe("logging", func() {
		It("should log stage events at debug level", func() {
			logger, hook := test.NewNullLogger()
			logger.SetLevel(logrus.DebugLevel)
			pipe := pipeline.NewPipeline(
				trace.NewSliceSource([]*insts.Instruction{icomp(x(1))}),
				pipeline.WithLogger(logger))
			pipe.Run()

			var msgs []string
			for _, e := range hook.AllEntries() {
				msgs = append(msgs, e.Message)
			}
			Expect(msgs).To(ContainElement("[cycle 00007] broadcast #1 from int unit 0"))
			Expect(msgs).To(ContainElement("[cycle 00008] retire #1 from bus"))
		})
	})

	Describe("Verify", func() {
		It("should hold after every cycle of a mixed trace", func() {
			prog := []*insts.Instruction{
				icomp(x(1)), fcomp(v(0)), store(x(1), x(2)), branch(),
				icomp(x(2), x(1)), fcomp(v(1), v(0)), trap(),
				icomp(x(3), x(2), x(1)), store(v(1), x(3)), fcomp(v(2), v(1), v(0)),
			}
			for _, release := range []config.StationRelease{
				config.ReleaseOnIssue, config.ReleaseOnComplete,
			} {
				c := config.DefaultMachineConfig()
				c.StationRelease = release
				pipe := newPipe(c, prog...)
				for pipe.RunCycles(1) {
					Expect(pipe.State().Verify()).To(Succeed())
				}
				Expect(pipe.State().Drained()).To(BeTrue())
				Expect(pipe.State().InFlight()).To(BeZero())
				Expect(pipe.Stats().Retired).To(Equal(uint64(len(prog) - 1)))
			}
		})

		It("should report a register mapped to a retired tag", func() {
			pipe := newPipe(cfg, icomp(x(1)))
			pipe.RunCycles(1)
			pipe.State().Map.SetProducer(x(5), pipeline.Tag(42))

			err := pipe.State().Verify()
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, pipeline.ErrInvariant)).To(BeTrue())
		})

		It("should report an executing entry waiting on a retired tag", func() {
			pipe := newPipe(cfg, icomp(x(1)), icomp(x(2), x(1)))
			pipe.RunCycles(8)

			pipe.State().IntUnits.Each(func(_ int, e *pipeline.Entry) {
				e.Q[1] = pipeline.Tag(1)
			})

			err := pipe.State().Verify()
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, pipeline.ErrInvariant)).To(BeTrue())
		})

		It("should panic on a violation when checking is enabled", func() {
			pipe := newPipe(cfg, icomp(x(1)), icomp(x(2)))
			pipe.RunCycles(1)
			pipe.State().Map.SetProducer(x(7), pipeline.Tag(42))
			Expect(func() { pipe.Tick() }).To(Panic())
		})
	})
})
