// Package rvconfig resolves the handful of run parameters rv32run needs
// -- backing-store size, default quantum, trace verbosity -- from
// environment variables layered under command-line flags. It plays the
// same "named option, typed value, sensible default" role
// rcornwell-S370's configparser plays for device models, just aimed at
// process-level knobs instead of a hardware model file.
package rvconfig

import (
	"fmt"
	"os"
	"strconv"

	"rv32emu/rv32"
)

// Option names recognized as environment variables.
const (
	EnvMemBytes = "RV32_MEM_BYTES"
	EnvQuantum  = "RV32_QUANTUM"
	EnvTrace    = "RV32_TRACE"
)

// DefaultQuantum is the instruction count a context runs before Step
// flags it as yielded, absent any override.
const DefaultQuantum = 1000

// Config holds resolved run parameters. Zero value is not meaningful --
// always build one through Default or Load.
type Config struct {
	MemBytes uint32
	Quantum  uint32
	Trace    bool
}

// Default returns the baseline configuration before any environment or
// flag overrides are applied.
func Default() Config {
	return Config{
		MemBytes: rv32.DefaultMemBytes,
		Quantum:  DefaultQuantum,
		Trace:    false,
	}
}

// Load starts from Default and applies any of EnvMemBytes/EnvQuantum/
// EnvTrace found in the environment. It never errors on a missing
// variable; a present-but-unparseable value is reported so a driver can
// decide whether to abort or fall back.
func Load() (Config, error) {
	cfg := Default()

	if v, ok := os.LookupEnv(EnvMemBytes); ok {
		n, err := strconv.ParseUint(v, 0, 32)
		if err != nil {
			return cfg, fmt.Errorf("rvconfig: %s=%q: %w", EnvMemBytes, v, err)
		}
		cfg.MemBytes = uint32(n)
	}
	if v, ok := os.LookupEnv(EnvQuantum); ok {
		n, err := strconv.ParseUint(v, 0, 32)
		if err != nil {
			return cfg, fmt.Errorf("rvconfig: %s=%q: %w", EnvQuantum, v, err)
		}
		cfg.Quantum = uint32(n)
	}
	if v, ok := os.LookupEnv(EnvTrace); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("rvconfig: %s=%q: %w", EnvTrace, v, err)
		}
		cfg.Trace = b
	}

	if cfg.MemBytes <= rv32.BreakBase {
		return cfg, fmt.Errorf("rvconfig: %s=%d must exceed break base %d", EnvMemBytes, cfg.MemBytes, rv32.BreakBase)
	}
	return cfg, nil
}

// ApplyFlags overlays explicitly-set command-line values onto cfg. Each
// pointer is nil when the corresponding flag was left at its zero
// value/unset, so a caller only needs to pass the flags the user
// actually touched.
func (cfg Config) ApplyFlags(memBytes *uint32, quantum *uint32, trace *bool) Config {
	if memBytes != nil && *memBytes != 0 {
		cfg.MemBytes = *memBytes
	}
	if quantum != nil && *quantum != 0 {
		cfg.Quantum = *quantum
	}
	if trace != nil {
		cfg.Trace = *trace
	}
	return cfg
}
