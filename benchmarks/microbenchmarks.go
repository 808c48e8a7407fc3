package benchmarks

// GetMicrobenchmarks returns the standard set of synthetic traces. Each
// one stresses a different structure of the scheduler.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticIndependent(),
		dependencyChain(),
		fpChain(),
		storeBurst(),
		mixedOperations(),
		branchHeavy(),
		stationPressure(),
	}
}

// GetCoreBenchmarks returns a minimal set for quick validation.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		dependencyChain(),
		mixedOperations(),
		branchHeavy(),
	}
}

// 1. Independent ALU - integer unit throughput
func arithmeticIndependent() Benchmark {
	words := make([]uint32, 0, 21)
	for i := 0; i < 20; i++ {
		words = append(words, EncodeADDReg(uint8(i%8), 31, 31, false))
	}
	words = append(words, EncodeSVC(0))

	return Benchmark{
		Name:        "arithmetic_independent",
		Description: "20 independent ADDs - measures integer unit and bus throughput",
		Program:     BuildProgram(words...),
	}
}

// 2. Dependency Chain - each ADD waits for the previous broadcast
func dependencyChain() Benchmark {
	return Benchmark{
		Name:           "dependency_chain",
		Description:    "20 dependent ADDs (X0 = X0 + 1) - measures integer latency",
		Program:        BuildProgram(buildChain(20, func() uint32 { return EncodeADDImm(0, 0, 1, false) })...),
		ExpectedCycles: 8 + 5*19,
	}
}

// 3. FP Chain - each FADD waits for the previous broadcast
func fpChain() Benchmark {
	return Benchmark{
		Name:           "fp_chain",
		Description:    "10 dependent FADDs (D0 = D0 + D1) - measures FP latency",
		Program:        BuildProgram(buildChain(10, func() uint32 { return EncodeFADD(0, 0, 1) })...),
		ExpectedCycles: 10 + 7*9,
	}
}

func buildChain(n int, word func() uint32) []uint32 {
	words := make([]uint32, 0, n+1)
	for i := 0; i < n; i++ {
		words = append(words, word())
	}
	return append(words, EncodeSVC(0))
}

// 4. Store Burst - stores never touch the bus
func storeBurst() Benchmark {
	words := make([]uint32, 0, 17)
	for i := 0; i < 16; i++ {
		words = append(words, EncodeSTR64(1, 2, uint16(i)))
	}
	words = append(words, EncodeSVC(0))

	return Benchmark{
		Name:        "store_burst",
		Description: "16 independent stores - measures unit occupancy without broadcasts",
		Program:     BuildProgram(words...),
	}
}

// 5. Mixed Operations - loads feeding integer and FP consumers
func mixedOperations() Benchmark {
	return Benchmark{
		Name:        "mixed_operations",
		Description: "Loads, integer and FP arithmetic, stores - measures cross-pool bus arbitration",
		Program: BuildProgram(
			EncodeLDR64(1, 10, 0),
			EncodeLDRD(0, 10, 1),
			EncodeADDReg(2, 1, 1, false),
			EncodeFMUL(1, 0, 0),
			EncodeMUL(3, 2, 1),
			EncodeFADD(2, 1, 0),
			EncodeLDR64(4, 10, 2),
			EncodeFSUB(3, 2, 1),
			EncodeADDReg(5, 3, 4, false),
			EncodeSTRD(3, 10, 3),
			EncodeSTR64(5, 10, 4),
			EncodeSVC(0),
		),
	}
}

// 6. Branch Heavy - control flow retires at dispatch
func branchHeavy() Benchmark {
	words := make([]uint32, 0, 32)
	for i := 0; i < 10; i++ {
		words = append(words,
			EncodeCMPImm(0, uint16(i)),
			EncodeBCond(8, 0), // B.EQ +8
			EncodeADDImm(0, 0, 1, false),
		)
	}
	words = append(words, EncodeB(4), EncodeRET(), EncodeSVC(0))

	return Benchmark{
		Name:        "branch_heavy",
		Description: "CMP/B.cond/ADD x10 - measures dispatch bandwidth spent on control flow",
		Program:     BuildProgram(words...),
	}
}

// 7. Station Pressure - FP consumers pile up behind one long producer
func stationPressure() Benchmark {
	words := []uint32{EncodeFDIV(0, 1, 2)}
	for i := 0; i < 8; i++ {
		words = append(words, EncodeFADD(uint8(3+i), 0, 1))
	}
	words = append(words, EncodeNOP(), EncodeSVC(0))

	return Benchmark{
		Name:        "station_pressure",
		Description: "8 FADDs waiting on one FDIV - measures reservation station back-pressure",
		Program:     BuildProgram(words...),
	}
}
