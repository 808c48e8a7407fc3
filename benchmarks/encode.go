package benchmarks

import "github.com/sarchlab/tomasim/trace"

// ProgramBase is the PC of the first instruction of every benchmark.
const ProgramBase = 0x1000

// BuildProgram lays instruction words out at consecutive PCs.
func BuildProgram(words ...uint32) []trace.Record {
	records := make([]trace.Record, 0, len(words))
	for i, w := range words {
		records = append(records, trace.Record{
			PC:   ProgramBase + uint64(i)*4,
			Word: w,
		})
	}
	return records
}

// Instruction encoding helpers (64-bit only for simplicity)

// EncodeADDImm encodes ADD/ADDS immediate: Rd = Rn + imm12
func EncodeADDImm(rd, rn uint8, imm uint16, setFlags bool) uint32 {
	var inst uint32 = 0
	inst |= 1 << 31 // sf = 1 (64-bit)
	if setFlags {
		inst |= 1 << 29
	}
	inst |= 0b100010 << 23
	inst |= uint32(imm&0xFFF) << 10
	inst |= uint32(rn&0x1F) << 5
	inst |= uint32(rd & 0x1F)
	return inst
}

// EncodeSUBImm encodes SUB/SUBS immediate: Rd = Rn - imm12
func EncodeSUBImm(rd, rn uint8, imm uint16, setFlags bool) uint32 {
	return EncodeADDImm(rd, rn, imm, setFlags) | 1<<30
}

// EncodeCMPImm encodes CMP Xn, #imm, an alias for SUBS XZR, Xn, #imm.
func EncodeCMPImm(rn uint8, imm uint16) uint32 {
	return EncodeSUBImm(31, rn, imm, true)
}

// EncodeADDReg encodes ADD/ADDS register: Rd = Rn + Rm
func EncodeADDReg(rd, rn, rm uint8, setFlags bool) uint32 {
	var inst uint32 = 0
	inst |= 1 << 31 // sf = 1 (64-bit)
	if setFlags {
		inst |= 1 << 29
	}
	inst |= 0b01011 << 24
	inst |= uint32(rm&0x1F) << 16
	inst |= uint32(rn&0x1F) << 5
	inst |= uint32(rd & 0x1F)
	return inst
}

// EncodeMUL encodes MUL Xd, Xn, Xm (MADD with XZR addend).
func EncodeMUL(rd, rn, rm uint8) uint32 {
	var inst uint32 = 0x9B000000
	inst |= uint32(rm&0x1F) << 16
	inst |= 31 << 10 // Ra = XZR
	inst |= uint32(rn&0x1F) << 5
	inst |= uint32(rd & 0x1F)
	return inst
}

func encodeLoadStore(base uint32, rt, rn uint8, imm12 uint16) uint32 {
	inst := base
	inst |= uint32(imm12&0xFFF) << 10
	inst |= uint32(rn&0x1F) << 5
	inst |= uint32(rt & 0x1F)
	return inst
}

// EncodeLDR64 encodes LDR Xt, [Xn, #imm12*8]
func EncodeLDR64(rt, rn uint8, imm12 uint16) uint32 {
	return encodeLoadStore(0xF9400000, rt, rn, imm12)
}

// EncodeSTR64 encodes STR Xt, [Xn, #imm12*8]
func EncodeSTR64(rt, rn uint8, imm12 uint16) uint32 {
	return encodeLoadStore(0xF9000000, rt, rn, imm12)
}

// EncodeLDRD encodes LDR Dt, [Xn, #imm12*8]
func EncodeLDRD(rt, rn uint8, imm12 uint16) uint32 {
	return encodeLoadStore(0xFD400000, rt, rn, imm12)
}

// EncodeSTRD encodes STR Dt, [Xn, #imm12*8]
func EncodeSTRD(rt, rn uint8, imm12 uint16) uint32 {
	return encodeLoadStore(0xFD000000, rt, rn, imm12)
}

func encodeFP2(opcode uint32, rd, rn, rm uint8) uint32 {
	var inst uint32 = 0x1E600800 // double precision
	inst |= opcode << 12
	inst |= uint32(rm&0x1F) << 16
	inst |= uint32(rn&0x1F) << 5
	inst |= uint32(rd & 0x1F)
	return inst
}

// EncodeFMUL encodes FMUL Dd, Dn, Dm
func EncodeFMUL(rd, rn, rm uint8) uint32 { return encodeFP2(0b0000, rd, rn, rm) }

// EncodeFDIV encodes FDIV Dd, Dn, Dm
func EncodeFDIV(rd, rn, rm uint8) uint32 { return encodeFP2(0b0001, rd, rn, rm) }

// EncodeFADD encodes FADD Dd, Dn, Dm
func EncodeFADD(rd, rn, rm uint8) uint32 { return encodeFP2(0b0010, rd, rn, rm) }

// EncodeFSUB encodes FSUB Dd, Dn, Dm
func EncodeFSUB(rd, rn, rm uint8) uint32 { return encodeFP2(0b0011, rd, rn, rm) }

// EncodeB encodes unconditional branch: B offset
func EncodeB(offset int32) uint32 {
	return 0b000101<<26 | uint32(offset/4)&0x3FFFFFF
}

// EncodeBCond encodes conditional branch: B.cond offset
func EncodeBCond(offset int32, cond uint8) uint32 {
	imm19 := uint32(offset/4) & 0x7FFFF
	return 0b0101010<<25 | imm19<<5 | uint32(cond&0xF)
}

// EncodeCBZ encodes CBZ Xt, offset
func EncodeCBZ(rt uint8, offset int32) uint32 {
	imm19 := uint32(offset/4) & 0x7FFFF
	return 0xB4000000 | imm19<<5 | uint32(rt&0x1F)
}

// EncodeRET encodes return: RET (X30)
func EncodeRET() uint32 {
	return 0xD65F0000 | 30<<5
}

// EncodeSVC encodes syscall: SVC #imm
func EncodeSVC(imm uint16) uint32 {
	return 0xD4000001 | uint32(imm)<<5
}

// EncodeNOP encodes NOP.
func EncodeNOP() uint32 {
	return 0xD503201F
}
