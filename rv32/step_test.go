package rv32

import (
	"bytes"
	"io"
	"testing"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

// --- instruction encoders, the inverse of decode.go's immI/immS/immB/immU/immJ ---

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
	bit12 := (u >> 12) & 1
	bit11 := (u >> 11) & 1
	bits10_5 := (u >> 5) & 0x3F
	bits4_1 := (u >> 1) & 0xF
	return bit12<<31 | bits10_5<<25 | rs2<<20 | rs1<<15 | funct3<<12 | bits4_1<<8 | bit11<<7 | opBRANCH
}

func encodeU(opcode, rd uint32, imm uint32) uint32 {
	return (imm & 0xFFFFF000) | rd<<7 | opcode
}

func encodeJ(rd uint32, imm int32) uint32 {
	u := uint32(imm)
	bit20 := (u >> 20) & 1
	bits10_1 := (u >> 1) & 0x3FF
	bit11 := (u >> 11) & 1
	bits19_12 := (u >> 12) & 0xFF
	return bit20<<31 | bits10_1<<21 | bit11<<20 | bits19_12<<12 | rd<<7 | opJAL
}

func addi(rd, rs1 uint32, imm int32) uint32 { return encodeI(opOPIMM, rd, 0b000, rs1, imm) }
func add(rd, rs1, rs2 uint32) uint32        { return encodeR(opOP, rd, 0b000, rs1, rs2, 0x00) }
func blt(rs1, rs2 uint32, imm int32) uint32 { return encodeB(0b100, rs1, rs2, imm) }
func bge(rs1, rs2 uint32, imm int32) uint32 { return encodeB(0b101, rs1, rs2, imm) }

func ecall() uint32  { return ecallEncoding }
func ebreak() uint32 { return ebreakEncoding }

func newTestSpace(t *testing.T, out io.Writer) *AddressSpace {
	t.Helper()
	mem, err := NewAddressSpace(DefaultMemBytes, out)
	assert(t, err == nil, "NewAddressSpace failed: %v", err)
	return mem
}

func loadProgram(t *testing.T, mem *AddressSpace, words []uint32) {
	t.Helper()
	buf := make([]byte, 0, len(words)*4)
	for _, w := range words {
		buf = append(buf, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	assert(t, mem.StoreBytes(0, buf) == nil, "StoreBytes failed")
	mem.SetTextEnd(uint32(len(buf)))
}

func runToHalt(t *testing.T, c *Context, mem *AddressSpace, maxSteps int) Outcome {
	t.Helper()
	var outcome Outcome
	for i := 0; i < maxSteps; i++ {
		outcome = Step(c, mem)
		if outcome.Kind == OutcomeHalted {
			return outcome
		}
	}
	t.Fatalf("did not halt within %d steps", maxSteps)
	return outcome
}

func TestAddiChain(t *testing.T) {
	mem := newTestSpace(t, nil)
	loadProgram(t, mem, []uint32{
		addi(5, 0, 10),
		addi(5, 5, 32),
		addi(RegA0, 5, 0),
		addi(RegA7, 0, int32(SysExit)),
		ecall(),
	})

	c := NewContext(0, 0)
	outcome := runToHalt(t, c, mem, 10)

	assert(t, outcome.Trap == TrapNone, "unexpected trap: %v", outcome.Trap)
	assert(t, c.Reg(5) == 42, "x5 = %d, want 42", c.Reg(5))
	assert(t, c.ExitCode == 42, "exit code = %d, want 42", c.ExitCode)
}

// sum 1..100 via a countdown loop:
//
//	x5 = 0 (sum), x6 = 100 (counter)
//	loop: blt x0, x6, body falls through to a jal to done once x6 reaches 0
func TestSumLoop(t *testing.T) {
	mem := newTestSpace(t, nil)

	// x5 = sum = 0
	// x6 = i = 100
	// loop (pc=8):
	//   blt x0, x6, body      ; if 0 < i, continue (i > 0)
	//   jal x0, done
	// body:
	//   add x5, x5, x6
	//   addi x6, x6, -1
	//   jal x0, loop
	// done:
	//   addi a0, x5, 0
	//   addi a7, x0, SysExit
	//   ecall
	prog := []uint32{
		addi(5, 0, 0),  // 0: sum = 0
		addi(6, 0, 100), // 4: i = 100
		// loop: pc=8
		blt(0, 6, 8), // 8: if 0 < i -> body (pc=16)
		encodeJ(0, 16),     // 12: jal x0, done (pc relative; done at pc=28, offset=16)
		// body: pc=16
		add(5, 5, 6),  // 16
		addi(6, 6, -1), // 20
		encodeJ(0, -16), // 24: jal x0, loop (pc=24, target pc=8, offset=-16)
		// done: pc=28
		addi(RegA0, 5, 0),           // 28
		addi(RegA7, 0, int32(SysExit)), // 32
		ecall(),                    // 36
	}
	loadProgram(t, mem, prog)

	c := NewContext(0, 0)
	outcome := runToHalt(t, c, mem, 100000)

	assert(t, outcome.Trap == TrapNone, "unexpected trap: %v", outcome.Trap)
	assert(t, c.ExitCode == 5050, "sum = %d, want 5050", c.ExitCode)
}

func TestAllocatorReuse(t *testing.T) {
	mem := newTestSpace(t, nil)

	p1 := mem.Malloc(64)
	assert(t, p1 != 0, "first malloc returned 0")
	mem.Free(p1)

	p2 := mem.Malloc(32)
	assert(t, p2 == p1, "second malloc did not reuse freed block: got %#x, want %#x", p2, p1)

	p3 := mem.Malloc(16)
	assert(t, p3 != p2 && p3 != 0, "third malloc overlapped or failed: %#x", p3)
}

func TestMalloc0IsNoop(t *testing.T) {
	mem := newTestSpace(t, nil)
	assert(t, mem.Malloc(0) == 0, "malloc(0) should return 0")
}

func TestMMIOTimer(t *testing.T) {
	mem := newTestSpace(t, nil)

	mem.Tick(7)
	v, trap := mem.Load32(TimerRead)
	assert(t, trap == TrapNone, "unexpected trap reading timer: %v", trap)
	assert(t, v == 7, "timer = %d, want 7", v)

	assert(t, mem.Store32(TimerAdd, 3) == TrapNone, "TimerAdd store faulted")
	v, _ = mem.Load32(TimerRead)
	assert(t, v == 10, "timer after add = %d, want 10", v)

	assert(t, mem.Store32(TimerReset, 0) == TrapNone, "TimerReset store faulted")
	v, _ = mem.Load32(TimerRead)
	assert(t, v == 0, "timer after reset = %d, want 0", v)
}

func TestConsoleOutEmitsBytes(t *testing.T) {
	var out bytes.Buffer
	mem := newTestSpace(t, &out)

	assert(t, mem.Store8(ConsoleOut, 'h') == TrapNone, "store to ConsoleOut faulted")
	assert(t, mem.Store8(ConsoleOut, 'i') == TrapNone, "store to ConsoleOut faulted")
	assert(t, out.String() == "hi", "console output = %q, want %q", out.String(), "hi")
}

func TestCooperativeYieldQuantum(t *testing.T) {
	mem := newTestSpace(t, nil)
	// An infinite ADDI x5,x5,1 / JAL loop: what matters is the context
	// yields every Quantum retired instructions, not that it halts.
	prog := []uint32{
		addi(5, 5, 1),   // 0
		encodeJ(0, -4),  // 4: jal x0, loop(pc=0)
	}
	loadProgram(t, mem, prog)

	c := NewContext(0, 0)
	c.Quantum = 20

	yields := 0
	for i := 0; i < 100; i++ {
		outcome := Step(c, mem)
		assert(t, outcome.Kind != OutcomeHalted, "unexpected halt: %v", outcome.Trap)
		if outcome.Kind == OutcomeYielded {
			yields++
		}
	}
	assert(t, yields == 5, "yields over 100 steps with quantum=20 = %d, want 5", yields)
}

func TestIllegalOpcodeHalts(t *testing.T) {
	mem := newTestSpace(t, nil)
	loadProgram(t, mem, []uint32{0xFFFFFFFF})

	c := NewContext(0, 0)
	outcome := Step(c, mem)

	assert(t, outcome.Kind == OutcomeHalted, "expected halt, got %v", outcome.Kind)
	assert(t, outcome.Trap == TrapIllegal, "expected TrapIllegal, got %v", outcome.Trap)
	assert(t, c.Halted, "context should be marked halted")
}

func TestEbreakHaltsWithBreakpointTrap(t *testing.T) {
	mem := newTestSpace(t, nil)
	loadProgram(t, mem, []uint32{ebreak()})

	c := NewContext(0, 0)
	outcome := Step(c, mem)

	assert(t, outcome.Kind == OutcomeHalted, "expected halt, got %v", outcome.Kind)
	assert(t, outcome.Trap == TrapBreakpoint, "expected TrapBreakpoint, got %v", outcome.Trap)
}

func TestMisalignedLoadTraps(t *testing.T) {
	mem := newTestSpace(t, nil)
	loadProgram(t, mem, []uint32{
		addi(5, 0, 1),
		encodeI(opLOAD, 6, 0b010, 5, 0), // lw x6, 0(x5); x5=1 -> misaligned
	})

	c := NewContext(0, 0)
	Step(c, mem) // addi
	outcome := Step(c, mem)

	assert(t, outcome.Kind == OutcomeHalted, "expected halt, got %v", outcome.Kind)
	assert(t, outcome.Trap == TrapMisalignedLoad, "expected TrapMisalignedLoad, got %v", outcome.Trap)
}

func TestByteAndHalfwordLoadStoreSignExtension(t *testing.T) {
	mem := newTestSpace(t, nil)
	loadProgram(t, mem, []uint32{
		addi(5, 0, -1),                    // x5 = 0xFFFFFFFF
		encodeS(opSTORE, 0b000, 0, 5, 100), // sb x5, 100(x0)
		encodeI(opLOAD, 6, 0b000, 0, 100),  // lb x6, 100(x0)  -> sign-extended -1
		encodeI(opLOAD, 7, 0b100, 0, 100),  // lbu x7, 100(x0) -> zero-extended 0xFF
		encodeS(opSTORE, 0b001, 0, 5, 104), // sh x5, 104(x0)
		encodeI(opLOAD, 8, 0b001, 0, 104),  // lh x8, 104(x0)  -> sign-extended -1
		encodeI(opLOAD, 9, 0b101, 0, 104),  // lhu x9, 104(x0) -> zero-extended 0xFFFF
		addi(RegA0, 0, 0),
		addi(RegA7, 0, int32(SysExit)),
		ecall(),
	})

	c := NewContext(0, 0)
	runToHalt(t, c, mem, 20)

	assert(t, c.Reg(6) == 0xFFFFFFFF, "lb result = %#x, want 0xFFFFFFFF", c.Reg(6))
	assert(t, c.Reg(7) == 0xFF, "lbu result = %#x, want 0xFF", c.Reg(7))
	assert(t, c.Reg(8) == 0xFFFFFFFF, "lh result = %#x, want 0xFFFFFFFF", c.Reg(8))
	assert(t, c.Reg(9) == 0xFFFF, "lhu result = %#x, want 0xFFFF", c.Reg(9))
}

func TestToggleBreakRoundTrips(t *testing.T) {
	mem := newTestSpace(t, nil)
	loadProgram(t, mem, []uint32{addi(5, 0, 1)})

	orig, _ := mem.Load32(0)
	armed, trap := mem.ToggleBreak(0)
	assert(t, trap == TrapNone, "ToggleBreak faulted: %v", trap)
	assert(t, armed, "expected breakpoint armed")
	assert(t, mem.HasBreak(0), "HasBreak should report true once armed")

	word, _ := mem.Load32(0)
	assert(t, word == ebreakEncoding, "instruction word not patched to EBREAK")

	armed, trap = mem.ToggleBreak(0)
	assert(t, trap == TrapNone, "ToggleBreak faulted on disarm: %v", trap)
	assert(t, !armed, "expected breakpoint disarmed")
	word, _ = mem.Load32(0)
	assert(t, word == orig, "original instruction word not restored")
}

func TestSchedulerRoundRobin(t *testing.T) {
	mem := newTestSpace(t, nil)
	loadProgram(t, mem, []uint32{
		addi(5, 5, 1),
		encodeJ(0, -4),
	})

	sched := NewScheduler(mem)
	c1 := NewContext(0, 1)
	c1.Quantum = 5
	c2 := NewContext(0, 2)
	c2.Quantum = 5
	sched.Add(c1)
	sched.Add(c2)

	for i := 0; i < 20; i++ {
		sched.StepOnce()
	}

	assert(t, c1.Reg(5) > 0 && c2.Reg(5) > 0, "both contexts should have made progress: c1=%d c2=%d", c1.Reg(5), c2.Reg(5))
}

func TestWriteStrSyscall(t *testing.T) {
	var out bytes.Buffer
	mem := newTestSpace(t, &out)

	msg := []byte("hi\x00bye")
	assert(t, mem.StoreBytes(200, msg) == nil, "StoreBytes failed")

	loadProgram(t, mem, []uint32{
		addi(RegA0, 0, 200),
		addi(RegA1, 0, int32(len(msg))),
		addi(RegA7, 0, int32(SysWriteStr)),
		ecall(),
		addi(RegA7, 0, int32(SysExit)),
		ecall(),
	})

	c := NewContext(0, 0)
	runToHalt(t, c, mem, 20)

	assert(t, out.String() == string(msg), "write_str output = %q, want %q", out.String(), string(msg))
}

// TestWriteStrSyscallStopsAtLen proves write_str is length-prefixed, not
// NUL-terminated: a buffer with no zero byte inside len must not read or
// emit anything past the caller-specified range.
func TestWriteStrSyscallStopsAtLen(t *testing.T) {
	var out bytes.Buffer
	mem := newTestSpace(t, &out)

	msg := []byte("abcdef")
	assert(t, mem.StoreBytes(200, msg) == nil, "StoreBytes failed")

	loadProgram(t, mem, []uint32{
		addi(RegA0, 0, 200),
		addi(RegA1, 0, 3),
		addi(RegA7, 0, int32(SysWriteStr)),
		ecall(),
		addi(RegA7, 0, int32(SysExit)),
		ecall(),
	})

	c := NewContext(0, 0)
	runToHalt(t, c, mem, 20)

	assert(t, out.String() == "abc", "write_str output = %q, want %q", out.String(), "abc")
}
