package trace

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/tomasim/insts"
)

// File is the YAML representation of a trace.
type File struct {
	Instructions []Entry `yaml:"instructions"`
}

// Entry is one instruction of a YAML trace. When Class is empty and Word is
// set, the word is decoded as ARM64 to obtain class and operands.
type Entry struct {
	PC    uint64   `yaml:"pc,omitempty"`
	Word  uint32   `yaml:"word,omitempty"`
	Op    string   `yaml:"op,omitempty"`
	Class string   `yaml:"class,omitempty"`
	Src   []string `yaml:"src,omitempty,flow"`
	Dst   []string `yaml:"dst,omitempty,flow"`
}

// LoadYAMLFile reads a YAML trace from path.
func LoadYAMLFile(path string) ([]*insts.Instruction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return LoadYAML(f)
}

// LoadYAML parses a YAML trace. Instructions are indexed from 1 in file
// order.
func LoadYAML(r io.Reader) ([]*insts.Instruction, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse trace: %w", err)
	}

	decoder := insts.NewDecoder()
	instrs := make([]*insts.Instruction, 0, len(file.Instructions))
	for i, e := range file.Instructions {
		inst, err := e.toInstruction(decoder)
		if err != nil {
			return nil, fmt.Errorf("trace entry %d: %w", i, err)
		}
		inst.Index = uint64(i + 1)
		instrs = append(instrs, inst)
	}

	return instrs, nil
}

func (e Entry) toInstruction(decoder *insts.Decoder) (*insts.Instruction, error) {
	if e.Class == "" && e.Word != 0 {
		inst := decoder.Decode(e.Word)
		inst.PC = e.PC
		return inst, nil
	}

	class, err := insts.ParseClass(e.Class)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownClass, err)
	}

	if len(e.Src) > 3 || len(e.Dst) > 2 {
		return nil, fmt.Errorf("%w: %d sources, %d destinations",
			ErrTooManyOperands, len(e.Src), len(e.Dst))
	}

	src, err := parseRegs(e.Src)
	if err != nil {
		return nil, err
	}
	dst, err := parseRegs(e.Dst)
	if err != nil {
		return nil, err
	}

	inst := insts.NewInstruction(insts.ParseOp(e.Op), class).
		WithSources(src...).
		WithDests(dst...)
	inst.PC = e.PC
	inst.Word = e.Word
	return inst, nil
}

func parseRegs(names []string) ([]insts.Reg, error) {
	regs := make([]insts.Reg, 0, len(names))
	for _, name := range names {
		r, err := insts.ParseReg(name)
		if err != nil {
			return nil, err
		}
		regs = append(regs, r)
	}
	return regs, nil
}

// WriteYAML writes instructions as a YAML trace.
func WriteYAML(w io.Writer, instrs []*insts.Instruction) error {
	file := File{Instructions: make([]Entry, 0, len(instrs))}
	for _, inst := range instrs {
		e := Entry{
			PC:    inst.PC,
			Word:  inst.Word,
			Op:    inst.Op.String(),
			Class: inst.Class.String(),
		}
		for _, r := range inst.Sources() {
			e.Src = append(e.Src, r.String())
		}
		for _, r := range inst.Dests() {
			e.Dst = append(e.Dst, r.String())
		}
		file.Instructions = append(file.Instructions, e)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&file); err != nil {
		return fmt.Errorf("failed to write trace: %w", err)
	}
	return enc.Close()
}
