package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"rv32emu/rv32"
)

// runDebugREPL is the single-context breakpoint debugger, generalized
// from the teacher's RunProgramDebugMode: n/next steps once, r/run
// free-runs until a breakpoint or halt, b/break <addr> toggles a
// software breakpoint via AddressSpace.ToggleBreak instead of an
// interpreter-private line-number set. A breakpoint hit stops the REPL
// and prints state without otherwise disturbing ctx; the next n/next
// or r/run command disarms it (restoring the original word) before
// stepping, so execution resumes instead of re-triggering the same
// EBREAK forever. Re-arm with b/break to stop there again.
func runDebugREPL(ctx *rv32.Context, mem *rv32.AddressSpace) {
	fmt.Println("Commands:\n\tn or next: execute next instruction\n\tr or run: run until breakpoint or halt\n\tb or break <addr>: toggle a breakpoint at a hex/dec address\n\tq or quit: exit")

	printState(ctx, mem)
	reader := bufio.NewReader(os.Stdin)

	for !ctx.Halted || ctx.LastTrap == rv32.TrapBreakpoint {
		fmt.Print("\n->")
		raw, _ := reader.ReadString('\n')
		line := strings.ToLower(strings.TrimSpace(raw))

		switch {
		case line == "n" || line == "next":
			resumePastBreakpoint(ctx, mem)
			rv32.Step(ctx, mem)
			printState(ctx, mem)

		case line == "r" || line == "run":
			resumePastBreakpoint(ctx, mem)
			for !ctx.Halted {
				rv32.Step(ctx, mem)
				if ctx.Halted && ctx.LastTrap == rv32.TrapBreakpoint {
					fmt.Println("breakpoint hit")
					break
				}
			}
			printState(ctx, mem)

		case strings.HasPrefix(line, "break "), strings.HasPrefix(line, "b "):
			toggleBreakpointCommand(line, mem)

		case line == "q" || line == "quit":
			return

		default:
			fmt.Println("unknown command:", line)
		}
	}

	if ctx.LastTrap != rv32.TrapNone {
		fmt.Printf("halted on trap %s at pc=%#x\n", ctx.LastTrap, ctx.PC())
		return
	}
	fmt.Printf("exited with code %d after %d instructions\n", ctx.ExitCode, ctx.Instret)
}

// resumePastBreakpoint un-halts ctx if it is currently stopped on a
// self-inflicted EBREAK from ToggleBreak, disarming that address so the
// next Step executes the original instruction instead of re-fetching
// the same EBREAK word.
func resumePastBreakpoint(ctx *rv32.Context, mem *rv32.AddressSpace) {
	if !ctx.Halted || ctx.LastTrap != rv32.TrapBreakpoint {
		return
	}
	if mem.HasBreak(ctx.PC()) {
		mem.ToggleBreak(ctx.PC())
	}
	ctx.Halted = false
	ctx.LastTrap = rv32.TrapNone
}

func toggleBreakpointCommand(line string, mem *rv32.AddressSpace) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		fmt.Println("usage: break <addr>")
		return
	}
	addr, err := strconv.ParseUint(fields[1], 0, 32)
	if err != nil {
		fmt.Println("bad address:", err)
		return
	}
	armed, trap := mem.ToggleBreak(uint32(addr))
	if trap != rv32.TrapNone {
		fmt.Println("could not toggle breakpoint:", trap)
		return
	}
	if armed {
		fmt.Printf("breakpoint set at %#x\n", addr)
	} else {
		fmt.Printf("breakpoint cleared at %#x\n", addr)
	}
}
