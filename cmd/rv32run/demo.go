package main

import (
	"fmt"
	"log/slog"

	"rv32emu/rv32"
)

// Opcode values and the two SYSTEM encodings this subset uses, the same
// constants rv32/decode.go and disasm/disasm.go each define locally for
// their own purposes: a tiny fixture builder like this one has no
// business reaching into the core's unexported decode table just to
// assemble eleven words.
const (
	opOPIMM  uint32 = 0x13
	opOP     uint32 = 0x33
	opLOAD   uint32 = 0x03
	opSTORE  uint32 = 0x23
	opBRANCH uint32 = 0x63
	opJAL    uint32 = 0x6F

	ecallWord uint32 = 0x00000073
)

func encodeR(opcode, rd, funct3, rs1, rs2, funct7 uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encodeI(opcode, rd, funct3, rs1 uint32, imm int32) uint32 {
	return uint32(imm)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encodeS(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return (u>>5)<<25 | rs2<<20 | rs1<<15 | funct3<<12 | (u&0x1F)<<7 | opcode
}

func encodeB(funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return (u>>12&1)<<31 | (u>>5&0x3F)<<25 | rs2<<20 | rs1<<15 | funct3<<12 | (u>>1&0xF)<<8 | (u>>11&1)<<7 | opBRANCH
}

func encodeJ(rd uint32, imm int32) uint32 {
	u := uint32(imm)
	return (u>>20&1)<<31 | (u>>1&0x3FF)<<21 | (u>>11&1)<<20 | (u>>12&0xFF)<<12 | rd<<7 | opJAL
}

func addi(rd, rs1 uint32, imm int32) uint32 { return encodeI(opOPIMM, rd, 0b000, rs1, imm) }
func bge(rs1, rs2 uint32, imm int32) uint32 { return encodeB(0b101, rs1, rs2, imm) }

// demoCounterAddr and the per-context iteration count for the
// lost-update demo. Both contexts run the identical unsynchronized
// read-increment-write loop against the same shared word; a 12-bit
// I-type immediate covers this offset directly from x0, so no LUI is
// needed to build the address.
const (
	demoCounterAddr = 0x400
	demoIterations  = 20
)

// raceDemoProgram assembles, word by word, the loop every race-demo
// context runs:
//
//	0:  addi x6, x0, 0                      ; i = 0
//	4:  addi x7, x0, demoIterations
//	8:  (loop) bge x6, x7, 24 -> pc=32 (done)
//	12: lw   x5, demoCounterAddr(x0)
//	16: addi x5, x5, 1
//	20: sw   x5, demoCounterAddr(x0)
//	24: addi x6, x6, 1
//	28: jal  x0, -20 -> pc=8 (loop)
//	32: (done) addi a0, x6, 0
//	36: addi a7, x0, SysExit
//	40: ecall
//
// This is the guest-code equivalent of original_source/emu/sync.hpp's
// unsynchronized counter: the load-modify-store sequence spans three
// separate instructions because this subset has no atomic
// read-modify-write, so a preemption between the load and the store
// loses whichever increment lands on the stale value.
func raceDemoProgram() []uint32 {
	return []uint32{
		addi(6, 0, 0),
		addi(7, 0, demoIterations),
		bge(6, 7, 24),
		encodeI(opLOAD, 5, 0b010, 0, demoCounterAddr),
		addi(5, 5, 1),
		encodeS(opSTORE, 0b010, 0, 5, demoCounterAddr),
		addi(6, 6, 1),
		encodeJ(0, -20),
		addi(rv32.RegA0, 6, 0),
		addi(rv32.RegA7, 0, int32(rv32.SysExit)),
		ecallWord,
	}
}

// runRaceDemo loads the unsynchronized counter program into two
// contexts sharing one address space, round-robins them with a small
// quantum so their load/modify/store sequences interleave, and reports
// the final counter against the race-free ideal of 2*demoIterations.
func runRaceDemo(log *slog.Logger) {
	mem, err := rv32.NewAddressSpace(rv32.DefaultMemBytes, nil)
	if err != nil {
		fmt.Println("rv32run:", err)
		return
	}

	prog := raceDemoProgram()
	buf := make([]byte, 0, len(prog)*4)
	for _, w := range prog {
		buf = append(buf, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	if err := mem.StoreBytes(0, buf); err != nil {
		fmt.Println("rv32run:", err)
		return
	}
	mem.SetTextEnd(uint32(len(buf)))

	sched := rv32.NewScheduler(mem)
	c1 := rv32.NewContext(0, 1)
	c1.Quantum = 1
	c2 := rv32.NewContext(0, 2)
	c2.Quantum = 1
	sched.Add(c1)
	sched.Add(c2)

	const maxDemoSteps = 10_000
	sched.Run(maxDemoSteps)

	want := uint64(2 * demoIterations)
	got, _ := mem.Load32(demoCounterAddr)

	fmt.Printf("race demo: two contexts each incremented a shared counter %d times without synchronization\n", demoIterations)
	fmt.Printf("race demo: expected %d, observed %d\n", want, got)
	if uint64(got) != want {
		fmt.Println("race demo: lost update(s) detected, as expected for an unsynchronized read-modify-write")
	} else {
		fmt.Println("race demo: no lost updates this run (the race is a possibility, not a guarantee, at this interleaving)")
	}

	log.Info("race demo complete", "expected", want, "observed", got)
}
