// Package elf loads 32-bit little-endian ELF executables into an
// rv32.AddressSpace, walking PT_LOAD segments the way a real kernel
// loader would: copy file bytes, zero-fill the remainder up to
// p_memsz, and hand back the entry point.
package elf

import (
	"debug/elf"
	"fmt"

	"rv32emu/rv32"
)

// EMRISCV is the ELF e_machine value for RISC-V. Files with a different
// machine type still load -- a mismatch is reported through Warnings,
// not rejected outright, matching how a permissive loader behaves when
// asked to run a raw flat binary repackaged as ELF for testing.
const EMRISCV = 243

// LoadResult describes what Load did to an address space.
type LoadResult struct {
	Entry    uint32
	TextEnd  uint32
	Warnings []string
}

// Load reads a 32-bit ELF image from data, maps every PT_LOAD
// segment into mem at its p_vaddr, zero-fills the bytes between
// p_filesz and p_memsz (BSS), and returns the entry point. TextEnd is
// the highest address written plus one, suitable for a direct
// mem.SetTextEnd call so Sbrk never moves the break below loaded
// program data. Load itself does not call SetTextEnd.
func Load(data []byte, mem *rv32.AddressSpace) (LoadResult, error) {
	f, err := elf.NewFile(byteReaderAt(data))
	if err != nil {
		return LoadResult{}, fmt.Errorf("elf: %w", err)
	}
	defer f.Close()

	var result LoadResult

	if f.Class != elf.ELFCLASS32 {
		return LoadResult{}, fmt.Errorf("elf: not a 32-bit ELF (class %v)", f.Class)
	}
	if f.Data != elf.ELFDATA2LSB {
		return LoadResult{}, fmt.Errorf("elf: not little-endian (data %v)", f.Data)
	}
	if uint16(f.Machine) != EMRISCV {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("e_machine=%d, expected %d", f.Machine, EMRISCV))
	}

	var textEnd uint32
	loaded := false

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		loaded = true

		seg := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(seg, 0); err != nil {
			return LoadResult{}, fmt.Errorf("elf: reading PT_LOAD segment at vaddr %#x: %w", prog.Vaddr, err)
		}
		if err := mem.StoreBytes(uint32(prog.Vaddr), seg); err != nil {
			return LoadResult{}, fmt.Errorf("elf: mapping segment at vaddr %#x: %w", prog.Vaddr, err)
		}

		bssLen := prog.Memsz - prog.Filesz
		if bssLen > 0 {
			if err := mem.StoreBytes(uint32(prog.Vaddr+prog.Filesz), make([]byte, bssLen)); err != nil {
				return LoadResult{}, fmt.Errorf("elf: zeroing bss at vaddr %#x: %w", prog.Vaddr+prog.Filesz, err)
			}
		}

		segEnd := uint32(prog.Vaddr + prog.Memsz)
		if segEnd > textEnd {
			textEnd = segEnd
		}
	}

	if !loaded {
		return LoadResult{}, fmt.Errorf("elf: no PT_LOAD segments found")
	}

	result.Entry = uint32(f.Entry)
	result.TextEnd = textEnd
	return result, nil
}

// byteReaderAt adapts a byte slice to io.ReaderAt without pulling in a
// named type from bytes -- debug/elf.NewFile only needs ReadAt.
type byteReaderAt []byte

func (b byteReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b)) {
		return 0, fmt.Errorf("elf: offset %d out of range", off)
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, fmt.Errorf("elf: short read at offset %d", off)
	}
	return n, nil
}
