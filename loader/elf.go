// Package loader extracts static instruction traces from ARM64 ELF
// executables.
//
// The trace is the straight-line listing of executable segments, starting
// at the entry point: every 4-byte word becomes one instruction, in address
// order. Branches are not followed.
package loader

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/sarchlab/tomasim/insts"
	"github.com/sarchlab/tomasim/trace"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// Segment represents a loadable segment from an ELF binary.
type Segment struct {
	// VirtAddr is the virtual address where this segment is loaded.
	VirtAddr uint64
	// Data contains the segment contents from the file.
	Data []byte
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Executable returns true if the segment holds code.
func (s Segment) Executable() bool {
	return s.Flags&SegmentFlagExecute != 0
}

// Program represents the loadable contents of an ELF file.
type Program struct {
	// EntryPoint is the virtual address where execution begins.
	EntryPoint uint64
	// Segments contains all PT_LOAD segments, in file order.
	Segments []Segment
}

// Load parses an ARM64 ELF binary.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS64 {
		return nil, fmt.Errorf("not a 64-bit ELF file")
	}
	if f.Machine != elf.EM_AARCH64 {
		return nil, fmt.Errorf("not an ARM64 ELF file (machine type: %v)", f.Machine)
	}

	prog := &Program{EntryPoint: f.Entry}
	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Vaddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		prog.Segments = append(prog.Segments, Segment{
			VirtAddr: phdr.Vaddr,
			Data:     data,
			Flags:    flags,
		})
	}

	return prog, nil
}

// Records lists the instruction words of every executable segment in
// address order. Words below the entry point in the segment that contains
// it are skipped, as is a trailing partial word.
func (p *Program) Records() []trace.Record {
	segs := make([]Segment, 0, len(p.Segments))
	for _, s := range p.Segments {
		if s.Executable() {
			segs = append(segs, s)
		}
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].VirtAddr < segs[j].VirtAddr })

	var records []trace.Record
	for _, s := range segs {
		off := uint64(0)
		end := s.VirtAddr + uint64(len(s.Data))
		if p.EntryPoint > s.VirtAddr && p.EntryPoint < end {
			off = (p.EntryPoint - s.VirtAddr) &^ 3
		}
		for ; off+4 <= uint64(len(s.Data)); off += 4 {
			records = append(records, trace.Record{
				PC:   s.VirtAddr + off,
				Word: binary.LittleEndian.Uint32(s.Data[off:]),
			})
		}
	}
	return records
}

// LoadTrace loads an ELF file and decodes its static trace.
func LoadTrace(path string, decoder *insts.Decoder) ([]*insts.Instruction, error) {
	prog, err := Load(path)
	if err != nil {
		return nil, err
	}

	records := prog.Records()
	instrs := make([]*insts.Instruction, 0, len(records))
	for i, rec := range records {
		inst := decoder.Decode(rec.Word)
		inst.PC = rec.PC
		inst.Index = uint64(i + 1)
		instrs = append(instrs, inst)
	}
	return instrs, nil
}
