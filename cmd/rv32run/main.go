// Command rv32run loads a flat binary or ELF32 image, runs it against
// the rv32 interpreter, and optionally drops into a single-step
// breakpoint REPL -- the host-driver counterpart to the teacher's
// RunProgram/RunProgramDebugMode pair, generalized from one VM to one
// rv32.Context.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	getopt "github.com/pborman/getopt/v2"

	"rv32emu/disasm"
	"rv32emu/elf"
	"rv32emu/internal/rvconfig"
	"rv32emu/internal/rvlog"
	"rv32emu/rv32"
)

// parseNumericFlags turns the --mem/--quantum string flags into the
// *uint32 pair rvconfig.Config.ApplyFlags expects, leaving either
// pointer nil when its flag was left empty.
func parseNumericFlags(memStr, quantumStr string) (mem, quantum *uint32, err error) {
	if memStr != "" {
		n, err := strconv.ParseUint(memStr, 0, 32)
		if err != nil {
			return nil, nil, fmt.Errorf("--mem=%q: %w", memStr, err)
		}
		v := uint32(n)
		mem = &v
	}
	if quantumStr != "" {
		n, err := strconv.ParseUint(quantumStr, 0, 32)
		if err != nil {
			return nil, nil, fmt.Errorf("--quantum=%q: %w", quantumStr, err)
		}
		v := uint32(n)
		quantum = &v
	}
	return mem, quantum, nil
}

func main() {
	optFile := getopt.StringLong("file", 'f', "", "program image to load")
	optELF := getopt.BoolLong("elf", 'e', "treat --file as an ELF32 image instead of a flat binary")
	optMem := getopt.StringLong("mem", 'm', "", "backing-store size in bytes (empty = default)")
	optQuantum := getopt.StringLong("quantum", 'q', "", "instructions per scheduling slice (empty = default)")
	optTrace := getopt.BoolLong("trace", 't', "log every retired instruction")
	optDebug := getopt.BoolLong("debug", 'd', "enter the breakpoint REPL instead of running to completion")
	optDemo := getopt.BoolLong("race-demo", 0, "ignore --file and run the two-context lost-update demo")
	optHelp := getopt.BoolLong("help", 'h', "help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		return
	}

	log := rvlog.New(os.Stderr, slog.LevelInfo)

	if *optDemo {
		runRaceDemo(log)
		return
	}

	if *optFile == "" {
		fmt.Fprintln(os.Stderr, "rv32run: --file is required (or pass --race-demo)")
		getopt.Usage()
		os.Exit(2)
	}

	cfg, err := rvconfig.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "rv32run:", err)
		os.Exit(1)
	}
	memOverride, quantumOverride, err := parseNumericFlags(*optMem, *optQuantum)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rv32run:", err)
		os.Exit(2)
	}
	var traceOverride *bool
	if *optTrace {
		traceOverride = optTrace
	}
	cfg = cfg.ApplyFlags(memOverride, quantumOverride, traceOverride)

	mem, err := rv32.NewAddressSpace(cfg.MemBytes, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rv32run:", err)
		os.Exit(1)
	}

	entry, err := loadImage(*optFile, *optELF, mem)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rv32run:", err)
		os.Exit(1)
	}

	ctx := rv32.NewContext(entry, 0)
	ctx.Quantum = cfg.Quantum
	if cfg.Trace {
		ctx.OnRetire = traceHook(log)
	}

	if *optDebug {
		runDebugREPL(ctx, mem)
		return
	}

	runToHalt(ctx, mem)
	reportExit(ctx)
}

// loadImage loads path into mem as either an ELF32 image or a raw flat
// binary placed at address zero, returning the entry point.
func loadImage(path string, isELF bool, mem *rv32.AddressSpace) (uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}

	if isELF {
		result, err := elf.Load(data, mem)
		if err != nil {
			return 0, err
		}
		for _, w := range result.Warnings {
			fmt.Fprintln(os.Stderr, "rv32run: warning:", w)
		}
		mem.SetTextEnd(result.TextEnd)
		return result.Entry, nil
	}

	if err := mem.StoreBytes(0, data); err != nil {
		return 0, fmt.Errorf("loading flat binary: %w", err)
	}
	mem.SetTextEnd(uint32(len(data)))
	return 0, nil
}

func traceHook(log *slog.Logger) func(rv32.Outcome) {
	return func(outcome rv32.Outcome) {
		switch outcome.Kind {
		case rv32.OutcomeYielded:
			log.Info("yield")
		case rv32.OutcomeHalted:
			log.Info("halt", "trap", outcome.Trap.String())
		default:
			log.Debug("retire")
		}
	}
}

func runToHalt(ctx *rv32.Context, mem *rv32.AddressSpace) {
	for !ctx.Halted {
		rv32.Step(ctx, mem)
	}
}

func reportExit(ctx *rv32.Context) {
	if ctx.LastTrap != rv32.TrapNone {
		fmt.Fprintf(os.Stderr, "rv32run: halted on trap %s at pc=%#x\n", ctx.LastTrap, ctx.PC())
		os.Exit(1)
	}
	fmt.Printf("rv32run: exited with code %d after %d instructions\n", ctx.ExitCode, ctx.Instret)
}

func printState(ctx *rv32.Context, mem *rv32.AddressSpace) {
	word, _ := mem.Load32(ctx.PC())
	fmt.Printf("  next> %#08x: %s\n", ctx.PC(), disasm.Instruction(word))
	fmt.Printf("  regs> %v\n", ctx.Registers())
}
