package trace

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/tomasim/insts"
)

// RecordSize is the size in bytes of one binary trace record: a
// little-endian uint64 PC followed by a little-endian uint32 word.
const RecordSize = 12

// Record is one entry of a binary trace.
type Record struct {
	PC   uint64
	Word uint32
}

// LoadBinaryFile reads and decodes a binary trace from path.
func LoadBinaryFile(path string, decoder *insts.Decoder) ([]*insts.Instruction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return LoadBinary(f, decoder)
}

// LoadBinary reads records until EOF and decodes each word. Instructions
// are indexed from 1 in file order.
func LoadBinary(r io.Reader, decoder *insts.Decoder) ([]*insts.Instruction, error) {
	var (
		instrs []*insts.Instruction
		buf    [RecordSize]byte
	)

	for {
		_, err := io.ReadFull(r, buf[:])
		if errors.Is(err, io.EOF) {
			return instrs, nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w after %d records", ErrTruncatedRecord, len(instrs))
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read trace: %w", err)
		}

		inst := decoder.Decode(binary.LittleEndian.Uint32(buf[8:]))
		inst.PC = binary.LittleEndian.Uint64(buf[:8])
		inst.Index = uint64(len(instrs) + 1)
		instrs = append(instrs, inst)
	}
}

// WriteBinary writes records in the binary trace format.
func WriteBinary(w io.Writer, records []Record) error {
	var buf [RecordSize]byte
	for _, rec := range records {
		binary.LittleEndian.PutUint64(buf[:8], rec.PC)
		binary.LittleEndian.PutUint32(buf[8:], rec.Word)
		if _, err := w.Write(buf[:]); err != nil {
			return fmt.Errorf("failed to write trace: %w", err)
		}
	}
	return nil
}
