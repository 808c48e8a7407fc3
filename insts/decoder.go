package insts

// Decoder classifies ARM64 machine code into scheduler descriptors.
//
// Supported encodings:
//   - Add/Sub (immediate and shifted register), logical (shifted register)
//   - MADD (and its MUL alias)
//   - LDR/STR unsigned offset, general-purpose and SIMD&FP registers
//   - FADD/FSUB/FMUL/FDIV scalar
//   - B, BL, B.cond, CBZ, CBNZ, BR, BLR, RET
//   - SVC, NOP
//
// Register 31 is always treated as the zero register. Stack-pointer
// dependencies are therefore not tracked.
type Decoder struct{}

// NewDecoder creates a new ARM64 instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit ARM64 instruction word. Unsupported words decode
// as OpUnknown with ClassNone.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := NewInstruction(OpUnknown, ClassNone)
	inst.Word = word

	switch {
	case word == 0xD503201F:
		inst.Op = OpNOP
	case d.isSVC(word):
		inst.Op = OpSVC
		inst.Class = ClassTrap
	case d.isAddSubImm(word):
		d.decodeAddSubImm(word, inst)
	case d.isDataProcessingReg(word):
		d.decodeDataProcessingReg(word, inst)
	case d.isMultiplyAdd(word):
		d.decodeMultiplyAdd(word, inst)
	case d.isLoadStoreUnsigned(word):
		d.decodeLoadStoreUnsigned(word, inst)
	case d.isFPDataProcessing2(word):
		d.decodeFPDataProcessing2(word, inst)
	case d.isBranchImm(word):
		d.decodeBranchImm(word, inst)
	case d.isBranchCond(word):
		inst.Op = OpBCond
		inst.Class = ClassCondCtrl
		inst.WithSources(NZCV)
	case d.isCompareBranch(word):
		d.decodeCompareBranch(word, inst)
	case d.isBranchReg(word):
		d.decodeBranchReg(word, inst)
	}

	return inst
}

// isSVC matches SVC #imm16: 11010100 000 imm16 00001.
func (d *Decoder) isSVC(word uint32) bool {
	return word&0xFFE0001F == 0xD4000001
}

// isAddSubImm checks bits [28:23] == 0b100010.
func (d *Decoder) isAddSubImm(word uint32) bool {
	return (word>>23)&0x3F == 0b100010
}

// decodeAddSubImm decodes sf | op | S | 100010 | sh | imm12 | Rn | Rd.
func (d *Decoder) decodeAddSubImm(word uint32, inst *Instruction) {
	op := (word >> 30) & 0x1 // 0=ADD, 1=SUB
	s := (word >> 29) & 0x1  // set flags
	rn := uint8((word >> 5) & 0x1F)
	rd := uint8(word & 0x1F)

	inst.Op = OpADD
	if op == 1 {
		inst.Op = OpSUB
	}
	inst.Class = ClassIComp
	inst.WithSources(IntReg(rn))
	if s == 1 {
		inst.WithDests(IntReg(rd), NZCV)
	} else {
		inst.WithDests(IntReg(rd))
	}
}

// isDataProcessingReg checks bits [28:24] for add/sub (0b01011) or logical
// (0b01010) shifted-register forms.
func (d *Decoder) isDataProcessingReg(word uint32) bool {
	op := (word >> 24) & 0x1F
	return op == 0b01011 || op == 0b01010
}

// decodeDataProcessingReg decodes
//
//	add/sub: sf | op | S | 01011 | shift | 0 | Rm | imm6 | Rn | Rd
//	logical: sf | opc | 01010 | shift | N | Rm | imm6 | Rn | Rd
func (d *Decoder) decodeDataProcessingReg(word uint32, inst *Instruction) {
	rd := uint8(word & 0x1F)
	rn := uint8((word >> 5) & 0x1F)
	rm := uint8((word >> 16) & 0x1F)

	setFlags := false
	if (word>>24)&0x1F == 0b01011 {
		inst.Op = OpADD
		if (word>>30)&0x1 == 1 {
			inst.Op = OpSUB
		}
		setFlags = (word>>29)&0x1 == 1
	} else {
		switch (word >> 29) & 0x3 {
		case 0b00:
			inst.Op = OpAND
		case 0b01:
			inst.Op = OpORR
		case 0b10:
			inst.Op = OpEOR
		case 0b11:
			inst.Op = OpAND // ANDS
			setFlags = true
		}
	}

	inst.Class = ClassIComp
	inst.WithSources(IntReg(rn), IntReg(rm))
	if setFlags {
		inst.WithDests(IntReg(rd), NZCV)
	} else {
		inst.WithDests(IntReg(rd))
	}
}

// isMultiplyAdd matches MADD: sf | 00 | 11011 | 000 | Rm | 0 | Ra | Rn | Rd.
func (d *Decoder) isMultiplyAdd(word uint32) bool {
	return (word>>21)&0xFF == 0b11011000 && (word>>15)&0x1 == 0
}

func (d *Decoder) decodeMultiplyAdd(word uint32, inst *Instruction) {
	rd := uint8(word & 0x1F)
	rn := uint8((word >> 5) & 0x1F)
	ra := uint8((word >> 10) & 0x1F)
	rm := uint8((word >> 16) & 0x1F)

	inst.Op = OpMUL
	inst.Class = ClassIComp
	inst.WithSources(IntReg(rn), IntReg(rm), IntReg(ra))
	inst.WithDests(IntReg(rd))
}

// isLoadStoreUnsigned matches size | 111 | V | 01 | opc | imm12 | Rn | Rt.
func (d *Decoder) isLoadStoreUnsigned(word uint32) bool {
	return (word>>27)&0x7 == 0b111 && (word>>24)&0x3 == 0b01
}

func (d *Decoder) decodeLoadStoreUnsigned(word uint32, inst *Instruction) {
	v := (word >> 26) & 0x1  // 1 = SIMD&FP register
	opc := (word >> 22) & 0x3 // bit 0 set for loads
	rn := uint8((word >> 5) & 0x1F)
	rt := uint8(word & 0x1F)

	data := IntReg(rt)
	if v == 1 {
		data = FPReg(rt)
	}
	isLoad := opc&0x1 == 1
	if v == 0 {
		// LDRSW/LDRSB and friends use opc 0b10/0b11.
		isLoad = opc != 0
	}

	if isLoad {
		inst.Op = OpLDR
		if v == 1 {
			inst.Op = OpLDRF
		}
		inst.Class = ClassLoad
		inst.WithSources(IntReg(rn))
		inst.WithDests(data)
		return
	}

	inst.Op = OpSTR
	if v == 1 {
		inst.Op = OpSTRF
	}
	inst.Class = ClassStore
	inst.WithSources(data, IntReg(rn))
}

// isFPDataProcessing2 matches M | 0 | S | 11110 | ftype | 1 | Rm | opcode | 10 | Rn | Rd.
func (d *Decoder) isFPDataProcessing2(word uint32) bool {
	return (word>>24)&0xFF == 0x1E && (word>>21)&0x1 == 1 && (word>>10)&0x3 == 0b10
}

func (d *Decoder) decodeFPDataProcessing2(word uint32, inst *Instruction) {
	rd := uint8(word & 0x1F)
	rn := uint8((word >> 5) & 0x1F)
	rm := uint8((word >> 16) & 0x1F)

	switch (word >> 12) & 0xF {
	case 0b0000:
		inst.Op = OpFMUL
	case 0b0001:
		inst.Op = OpFDIV
	case 0b0010:
		inst.Op = OpFADD
	case 0b0011:
		inst.Op = OpFSUB
	default:
		return
	}

	inst.Class = ClassFComp
	inst.WithSources(FPReg(rn), FPReg(rm))
	inst.WithDests(FPReg(rd))
}

// isBranchImm checks for B (bits [31:26] == 0b000101) or BL (0b100101).
func (d *Decoder) isBranchImm(word uint32) bool {
	op := (word >> 26) & 0x3F
	return op == 0b000101 || op == 0b100101
}

// decodeBranchImm decodes B and BL. The link register write of BL is not
// tracked: control instructions never rename registers.
func (d *Decoder) decodeBranchImm(word uint32, inst *Instruction) {
	inst.Op = OpB
	if (word>>31)&0x1 == 1 {
		inst.Op = OpBL
	}
	inst.Class = ClassUncondCtrl
}

// isBranchCond checks bits [31:25] == 0b0101010 and bit 4 == 0.
func (d *Decoder) isBranchCond(word uint32) bool {
	return (word>>25)&0x7F == 0b0101010 && (word>>4)&0x1 == 0
}

// isCompareBranch matches CBZ/CBNZ: sf | 011010 | op | imm19 | Rt.
func (d *Decoder) isCompareBranch(word uint32) bool {
	return (word>>25)&0x3F == 0b011010
}

func (d *Decoder) decodeCompareBranch(word uint32, inst *Instruction) {
	inst.Op = OpCBZ
	if (word>>24)&0x1 == 1 {
		inst.Op = OpCBNZ
	}
	inst.Class = ClassCondCtrl
	inst.WithSources(IntReg(uint8(word & 0x1F)))
}

// isBranchReg matches 1101011 0 0 op[1:0] 11111 000000 Rn 00000.
func (d *Decoder) isBranchReg(word uint32) bool {
	hi := (word >> 25) & 0x7F
	mid := (word >> 10) & 0x3F
	lo := word & 0x1F
	return hi == 0b1101011 && mid == 0 && lo == 0
}

func (d *Decoder) decodeBranchReg(word uint32, inst *Instruction) {
	switch (word >> 21) & 0x3 {
	case 0b00:
		inst.Op = OpBR
	case 0b01:
		inst.Op = OpBLR
	case 0b10:
		inst.Op = OpRET
	default:
		return
	}
	inst.Class = ClassUncondCtrl
	inst.WithSources(IntReg(uint8((word >> 5) & 0x1F)))
}
