package rv32

// NumRegisters is the width of the integer register file. x0 is
// hard-wired to zero: reads return zero and writes are silently
// discarded.
const NumRegisters = 32

// Register ABI names, advisory only — the interpreter treats every
// register but x0 uniformly.
const (
	RegZero = 0
	RegRA   = 1
	RegSP   = 2
	RegA0   = 10
	RegA1   = 11
	RegA7   = 17
)

// Context is one independent thread of execution: a register file, a
// program counter, and the bookkeeping Step needs to retire
// instructions, detect traps, and cooperate with a round-robin
// scheduler. Several Contexts may share one AddressSpace; the
// interpreter never lets two Contexts execute concurrently, so all
// mutation here is unsynchronized.
type Context struct {
	x  [NumRegisters]uint32
	pc uint32

	Halted   bool
	ExitCode int32
	LastTrap Trap

	Instret uint64
	Cycles  uint64

	// Quantum is the number of instructions this context may retire
	// before being flagged as yielded by Step. Zero disables
	// quantum-based preemption (only explicit ECALL 7 yields).
	Quantum    uint32
	sliceCount uint32
	Yielded    bool

	ThreadID uint32
	Priority uint32

	// OnRetire, if set, is called once per successful Step (Ran or
	// Yielded outcomes, never Halted) after all state for that step has
	// been committed. It is the only diagnostic hook the core exposes;
	// the driver owns what it does with it (see internal/rvlog).
	OnRetire func(Outcome)
}

// NewContext creates a zero-initialized context with the given entry PC
// and thread id. Quantum and priority default to zero (no preemption,
// lowest priority); the driver can set them directly after construction.
func NewContext(pc uint32, threadID uint32) *Context {
	return &Context{pc: pc, ThreadID: threadID}
}

// PC returns the current program counter.
func (c *Context) PC() uint32 { return c.pc }

// SetPC overrides the program counter. Intended for driver setup before
// the first Step; Step itself is the only thing that should move PC
// during normal execution.
func (c *Context) SetPC(pc uint32) { c.pc = pc }

// Reg reads register index i. Index 0 always reads zero.
func (c *Context) Reg(i uint32) uint32 {
	if i == 0 {
		return 0
	}
	return c.x[i]
}

// SetReg writes register index i. Writes to index 0 are silently
// discarded.
func (c *Context) SetReg(i uint32, v uint32) {
	if i == 0 {
		return
	}
	c.x[i] = v
}

// Registers returns a copy of the full register file, for inspection by
// a driver or disassembler-adjacent tooling. Index 0 is always zero.
func (c *Context) Registers() [NumRegisters]uint32 {
	r := c.x
	r[0] = 0
	return r
}
