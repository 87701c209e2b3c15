package rv32

import "strconv"

// Syscall numbers, passed in a7. Arguments arrive in a0/a1; a single
// return value (when there is one) is written back into a0.
const (
	SysExit     uint32 = 0
	SysPrintU32 uint32 = 1
	SysPutChar  uint32 = 2
	SysSbrk     uint32 = 3
	SysWriteStr uint32 = 4
	SysMalloc   uint32 = 5
	SysFree     uint32 = 6
	SysYield    uint32 = 7
	SysGetTime  uint32 = 8
)

// dispatchECALL executes the syscall named by a7 against c and mem. It
// never returns a Trap of its own: an unrecognized syscall number halts
// the context with TrapIllegal, matching how Step treats any other
// unsupported encoding.
func dispatchECALL(c *Context, mem *AddressSpace) {
	switch c.Reg(RegA7) {
	case SysExit:
		c.Halted = true
		c.ExitCode = int32(c.Reg(RegA0))
		c.LastTrap = TrapNone

	case SysPrintU32:
		s := strconv.FormatUint(uint64(c.Reg(RegA0)), 10)
		for i := 0; i < len(s); i++ {
			mem.emit(s[i])
		}
		mem.emit('\n')

	case SysPutChar:
		mem.emit(byte(c.Reg(RegA0)))

	case SysSbrk:
		old := mem.Sbrk(int32(c.Reg(RegA0)))
		c.SetReg(RegA0, old)

	case SysWriteStr:
		addr := c.Reg(RegA0)
		length := c.Reg(RegA1)
		for i := uint32(0); i < length; i++ {
			b, trap := mem.Load8(addr + i)
			if trap != TrapNone {
				c.haltOn(trap)
				return
			}
			mem.emit(b)
		}

	case SysMalloc:
		c.SetReg(RegA0, mem.Malloc(c.Reg(RegA0)))

	case SysFree:
		mem.Free(c.Reg(RegA0))

	case SysYield:
		c.Yielded = true

	case SysGetTime:
		c.SetReg(RegA0, uint32(mem.TimerValue()))

	default:
		c.haltOn(TrapIllegal)
	}
}
