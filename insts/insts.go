// Package insts provides the decoded instruction descriptors consumed by the
// Tomasulo timing model, plus a decoder for a subset of ARM64.
//
// An Instruction carries everything the scheduler needs to know about one
// dynamic instruction: its program-order index, its operation class, and the
// architectural registers it reads and writes. The scheduler never looks at
// opcode semantics beyond the class flags.
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x8B020020) // ADD X0, X1, X2
//	fmt.Println(inst.Class, inst.Sources(), inst.Dests())
package insts

import (
	"fmt"
	"strconv"
	"strings"
)

// Op represents an opcode. The timing model only uses it for reporting.
type Op uint16

// Opcodes understood by the decoder and the trace readers.
const (
	OpUnknown Op = iota
	OpNOP
	OpADD
	OpSUB
	OpAND
	OpORR
	OpEOR
	OpMUL
	OpLDR
	OpSTR
	OpLDRF
	OpSTRF
	OpFADD
	OpFSUB
	OpFMUL
	OpFDIV
	OpB
	OpBL
	OpBCond
	OpCBZ
	OpCBNZ
	OpBR
	OpBLR
	OpRET
	OpSVC
)

var opNames = [...]string{
	OpUnknown: "UNKNOWN",
	OpNOP:     "NOP",
	OpADD:     "ADD",
	OpSUB:     "SUB",
	OpAND:     "AND",
	OpORR:     "ORR",
	OpEOR:     "EOR",
	OpMUL:     "MUL",
	OpLDR:     "LDR",
	OpSTR:     "STR",
	OpLDRF:    "LDRF",
	OpSTRF:    "STRF",
	OpFADD:    "FADD",
	OpFSUB:    "FSUB",
	OpFMUL:    "FMUL",
	OpFDIV:    "FDIV",
	OpB:       "B",
	OpBL:      "BL",
	OpBCond:   "B.COND",
	OpCBZ:     "CBZ",
	OpCBNZ:    "CBNZ",
	OpBR:      "BR",
	OpBLR:     "BLR",
	OpRET:     "RET",
	OpSVC:     "SVC",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", uint16(o))
}

// ParseOp maps a mnemonic to an Op. Matching is case-insensitive; unknown
// mnemonics map to OpUnknown.
func ParseOp(name string) Op {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range opNames {
		if n == upper {
			return Op(i)
		}
	}
	return OpUnknown
}

// Class is a set of operation-class flags.
type Class uint8

// Operation classes.
const (
	ClassUncondCtrl Class = 1 << iota // unconditional branch, jump or call
	ClassCondCtrl                     // conditional branch
	ClassFComp                        // floating-point computation
	ClassIComp                        // integer computation
	ClassLoad                         // load
	ClassStore                        // store
	ClassTrap                         // trap / system call
)

// ClassNone is the class of instructions with no flags set, such as NOP.
const ClassNone Class = 0

var classNames = []struct {
	flag Class
	name string
}{
	{ClassUncondCtrl, "uncond"},
	{ClassCondCtrl, "cond"},
	{ClassFComp, "fcomp"},
	{ClassIComp, "icomp"},
	{ClassLoad, "load"},
	{ClassStore, "store"},
	{ClassTrap, "trap"},
}

func (c Class) String() string {
	if c == ClassNone {
		return "none"
	}

	var parts []string
	for _, cn := range classNames {
		if c&cn.flag != 0 {
			parts = append(parts, cn.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseClass parses a class expression such as "icomp" or "load|icomp".
func ParseClass(expr string) (Class, error) {
	expr = strings.ToLower(strings.TrimSpace(expr))
	if expr == "" || expr == "none" || expr == "nop" {
		return ClassNone, nil
	}

	var c Class
	for _, part := range strings.Split(expr, "|") {
		part = strings.TrimSpace(part)
		found := false
		for _, cn := range classNames {
			if cn.name == part {
				c |= cn.flag
				found = true
				break
			}
		}
		if !found {
			return ClassNone, fmt.Errorf("unknown instruction class %q", part)
		}
	}
	return c, nil
}

// IsControl returns true for conditional and unconditional control flow.
func (c Class) IsControl() bool {
	return c&(ClassUncondCtrl|ClassCondCtrl) != 0
}

// IsTrap returns true for trap instructions.
func (c Class) IsTrap() bool {
	return c&ClassTrap != 0
}

// IsStore returns true for store instructions.
func (c Class) IsStore() bool {
	return c&ClassStore != 0
}

// UsesIntUnit returns true if the instruction executes on an integer unit.
func (c Class) UsesIntUnit() bool {
	return c&(ClassIComp|ClassLoad|ClassStore) != 0
}

// UsesFPUnit returns true if the instruction executes on a floating-point unit.
func (c Class) UsesFPUnit() bool {
	return c&ClassFComp != 0
}

// WritesBus returns true if the instruction produces a register result that
// is broadcast on the common data bus.
func (c Class) WritesBus() bool {
	return c&(ClassIComp|ClassLoad|ClassFComp) != 0
}

// Reg identifies an architectural register.
type Reg uint8

// Register file layout.
const (
	// ZeroReg reads as zero and never carries a dependency.
	ZeroReg Reg = 31
	// FPBase is the id of V0; V0..V31 are FPBase..FPBase+31.
	FPBase Reg = 32
	// NZCV is the condition flags register.
	NZCV Reg = 64
	// NumRegs is the number of architectural registers tracked.
	NumRegs = 65
	// NoReg marks an unused operand slot.
	NoReg Reg = 0xFF
)

// IntReg returns the id of integer register Xn.
func IntReg(n uint8) Reg { return Reg(n & 0x1F) }

// FPReg returns the id of floating-point register Vn.
func FPReg(n uint8) Reg { return FPBase + Reg(n&0x1F) }

// Tracked returns true if the register participates in renaming.
func (r Reg) Tracked() bool {
	return r != NoReg && r != ZeroReg && int(r) < NumRegs
}

func (r Reg) String() string {
	switch {
	case r == NoReg:
		return "-"
	case r == ZeroReg:
		return "xzr"
	case r < FPBase:
		return fmt.Sprintf("x%d", r)
	case r < NZCV:
		return fmt.Sprintf("v%d", r-FPBase)
	case r == NZCV:
		return "nzcv"
	default:
		return fmt.Sprintf("r%d", uint8(r))
	}
}

// ParseReg parses a register name ("x3", "v2", "xzr", "nzcv") or a raw id.
func ParseReg(name string) (Reg, error) {
	s := strings.ToLower(strings.TrimSpace(name))
	switch s {
	case "xzr", "wzr":
		return ZeroReg, nil
	case "nzcv", "flags":
		return NZCV, nil
	case "-", "":
		return NoReg, nil
	}

	prefix, body := s[0], s[1:]
	n, err := strconv.Atoi(body)
	switch {
	case err != nil && (prefix < '0' || prefix > '9'):
		return NoReg, fmt.Errorf("invalid register %q", name)
	case prefix == 'x' || prefix == 'w':
		if n < 0 || n > 30 {
			return NoReg, fmt.Errorf("invalid register %q", name)
		}
		return IntReg(uint8(n)), nil
	case prefix == 'v' || prefix == 'd' || prefix == 's':
		if n < 0 || n > 31 {
			return NoReg, fmt.Errorf("invalid register %q", name)
		}
		return FPReg(uint8(n)), nil
	case prefix == 'r':
		if n < 0 || n >= NumRegs {
			return NoReg, fmt.Errorf("invalid register %q", name)
		}
		return Reg(n), nil
	}

	n, err = strconv.Atoi(s)
	if err != nil || n < 0 || n >= NumRegs {
		return NoReg, fmt.Errorf("invalid register %q", name)
	}
	return Reg(n), nil
}

// Instruction is one decoded dynamic instruction.
//
// Unused operand slots must hold NoReg; use NewInstruction to get a
// descriptor with every slot cleared.
type Instruction struct {
	Index uint64 // program-order index
	PC    uint64
	Word  uint32 // raw instruction bits
	Op    Op
	Class Class

	Src [3]Reg
	Dst [2]Reg
}

// NewInstruction returns an instruction with all operand slots unused.
func NewInstruction(op Op, class Class) *Instruction {
	return &Instruction{
		Op:    op,
		Class: class,
		Src:   [3]Reg{NoReg, NoReg, NoReg},
		Dst:   [2]Reg{NoReg, NoReg},
	}
}

// WithSources fills the source slots in order. Extra registers are ignored.
func (i *Instruction) WithSources(regs ...Reg) *Instruction {
	for n := range i.Src {
		i.Src[n] = NoReg
		if n < len(regs) {
			i.Src[n] = regs[n]
		}
	}
	return i
}

// WithDests fills the destination slots in order. Extra registers are ignored.
func (i *Instruction) WithDests(regs ...Reg) *Instruction {
	for n := range i.Dst {
		i.Dst[n] = NoReg
		if n < len(regs) {
			i.Dst[n] = regs[n]
		}
	}
	return i
}

// Sources returns the tracked source registers.
func (i *Instruction) Sources() []Reg {
	var regs []Reg
	for _, r := range i.Src {
		if r.Tracked() {
			regs = append(regs, r)
		}
	}
	return regs
}

// Dests returns the tracked destination registers.
func (i *Instruction) Dests() []Reg {
	var regs []Reg
	for _, r := range i.Dst {
		if r.Tracked() {
			regs = append(regs, r)
		}
	}
	return regs
}

func (i *Instruction) String() string {
	return fmt.Sprintf("#%d %s [%s] pc=0x%x dst=%v src=%v",
		i.Index, i.Op, i.Class, i.PC, i.Dests(), i.Sources())
}
