package pipeline_test

import (
	"github.com/sarchlab/tomasim/insts"
	"github.com/sarchlab/tomasim/timing/config"
	"github.com/sarchlab/tomasim/timing/pipeline"
	"github.com/sarchlab/tomasim/trace"
)

func x(n uint8) insts.Reg { return insts.IntReg(n) }
func v(n uint8) insts.Reg { return insts.FPReg(n) }

func icomp(dst insts.Reg, srcs ...insts.Reg) *insts.Instruction {
	return insts.NewInstruction(insts.OpADD, insts.ClassIComp).
		WithSources(srcs...).WithDests(dst)
}

func fcomp(dst insts.Reg, srcs ...insts.Reg) *insts.Instruction {
	return insts.NewInstruction(insts.OpFADD, insts.ClassFComp).
		WithSources(srcs...).WithDests(dst)
}

func store(srcs ...insts.Reg) *insts.Instruction {
	return insts.NewInstruction(insts.OpSTR, insts.ClassStore).
		WithSources(srcs...)
}

func branch() *insts.Instruction {
	return insts.NewInstruction(insts.OpB, insts.ClassUncondCtrl)
}

func trap() *insts.Instruction {
	return insts.NewInstruction(insts.OpSVC, insts.ClassTrap)
}

func newPipe(cfg *config.MachineConfig, instrs ...*insts.Instruction) *pipeline.Pipeline {
	if cfg == nil {
		cfg = config.DefaultMachineConfig()
	}
	cfg.CheckInvariants = true
	return pipeline.NewPipeline(trace.NewSliceSource(instrs),
		pipeline.WithConfig(cfg), pipeline.WithTimeline())
}

// byIndex returns the timeline keyed by instruction index.
func byIndex(p *pipeline.Pipeline) map[uint64]pipeline.Record {
	out := make(map[uint64]pipeline.Record)
	for _, r := range p.Timeline() {
		out[r.Index] = r
	}
	return out
}
