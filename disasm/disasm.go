// Package disasm turns raw instruction words into the same mnemonic
// text a hand-written assembly listing would use. It has no dependency
// on the rv32 package's execution state -- decoding an instruction for
// display never needs a register file or memory, only the word itself.
package disasm

import "fmt"

func bits(v uint32, pos, length uint) uint32 {
	return (v >> pos) & ((1 << length) - 1)
}

func signExtend(v uint32, width uint) int32 {
	shift := 32 - width
	return int32(v<<shift) >> shift
}

func immI(inst uint32) int32 { return signExtend(inst>>20, 12) }

func immS(inst uint32) int32 {
	raw := bits(inst, 7, 5) | bits(inst, 25, 7)<<5
	return signExtend(raw, 12)
}

func immB(inst uint32) int32 {
	raw := bits(inst, 8, 4)<<1 | bits(inst, 25, 6)<<5 | bits(inst, 7, 1)<<11 | bits(inst, 31, 1)<<12
	return signExtend(raw, 13)
}

func immJ(inst uint32) int32 {
	raw := bits(inst, 21, 10)<<1 | bits(inst, 20, 1)<<11 | bits(inst, 12, 8)<<12 | bits(inst, 31, 1)<<20
	return signExtend(raw, 21)
}

var opImmMnemonic = map[uint32]string{
	0b000: "addi", 0b010: "slti", 0b011: "sltiu", 0b100: "xori",
	0b110: "ori", 0b111: "andi",
}

var opMnemonic = map[[2]uint32]string{
	{0b000, 0x00}: "add", {0b000, 0x20}: "sub",
	{0b001, 0x00}: "sll",
	{0b010, 0x00}: "slt",
	{0b011, 0x00}: "sltu",
	{0b100, 0x00}: "xor",
	{0b101, 0x00}: "srl", {0b101, 0x20}: "sra",
	{0b110, 0x00}: "or",
	{0b111, 0x00}: "and",
}

var loadMnemonic = map[uint32]string{0b000: "lb", 0b001: "lh", 0b010: "lw", 0b100: "lbu", 0b101: "lhu"}
var storeMnemonic = map[uint32]string{0b000: "sb", 0b001: "sh", 0b010: "sw"}
var branchMnemonic = map[uint32]string{0b000: "beq", 0b001: "bne", 0b100: "blt", 0b101: "bge", 0b110: "bltu", 0b111: "bgeu"}

// Instruction opcode values, duplicated from rv32/decode.go rather than
// imported: this package decodes text, not execution, and the teacher's
// own bytecode.go keeps its string table self-contained rather than
// reaching into vm.go's instruction dispatch for the same constants.
const (
	opOPIMM  uint32 = 0x13
	opOP     uint32 = 0x33
	opLUI    uint32 = 0x37
	opLOAD   uint32 = 0x03
	opSTORE  uint32 = 0x23
	opBRANCH uint32 = 0x63
	opJAL    uint32 = 0x6F
	opJALR   uint32 = 0x67
	opSYSTEM uint32 = 0x73

	ecallEncoding  uint32 = 0x00000073
	ebreakEncoding uint32 = 0x00100073

	slliShiftFunct3 uint32 = 0b001
	srliSraiFunct3  uint32 = 0b101
	sraFunct7       uint32 = 0x20
)

// Instruction decodes a single 32-bit word into its mnemonic text, in
// the style `mnemonic rd, rs1, imm` for immediate forms or
// `mnemonic rd, rs1, rs2` for register forms. Anything this subset
// doesn't define renders as "unknown(0x%08x)", matching the original
// disassembler's fallback rather than panicking.
func Instruction(inst uint32) string {
	opcode := bits(inst, 0, 7)
	rd := bits(inst, 7, 5)
	funct3 := bits(inst, 12, 3)
	rs1 := bits(inst, 15, 5)
	rs2 := bits(inst, 20, 5)
	funct7 := bits(inst, 25, 7)

	switch opcode {
	case opOPIMM:
		if funct3 == slliShiftFunct3 {
			if funct7 != 0 {
				return unknown(inst)
			}
			return fmt.Sprintf("slli x%d, x%d, %d", rd, rs1, rs2)
		}
		if funct3 == srliSraiFunct3 {
			switch funct7 {
			case 0x00:
				return fmt.Sprintf("srli x%d, x%d, %d", rd, rs1, rs2)
			case sraFunct7:
				return fmt.Sprintf("srai x%d, x%d, %d", rd, rs1, rs2)
			default:
				return unknown(inst)
			}
		}
		mn, ok := opImmMnemonic[funct3]
		if !ok {
			return unknown(inst)
		}
		return fmt.Sprintf("%s x%d, x%d, %d", mn, rd, rs1, immI(inst))

	case opOP:
		mn, ok := opMnemonic[[2]uint32{funct3, funct7}]
		if !ok {
			return unknown(inst)
		}
		return fmt.Sprintf("%s x%d, x%d, x%d", mn, rd, rs1, rs2)

	case opLUI:
		return fmt.Sprintf("lui x%d, 0x%x", rd, bits(inst, 12, 20))

	case opLOAD:
		mn, ok := loadMnemonic[funct3]
		if !ok {
			return unknown(inst)
		}
		return fmt.Sprintf("%s x%d, %d(x%d)", mn, rd, immI(inst), rs1)

	case opSTORE:
		mn, ok := storeMnemonic[funct3]
		if !ok {
			return unknown(inst)
		}
		return fmt.Sprintf("%s x%d, %d(x%d)", mn, rs2, immS(inst), rs1)

	case opBRANCH:
		mn, ok := branchMnemonic[funct3]
		if !ok {
			return unknown(inst)
		}
		return fmt.Sprintf("%s x%d, x%d, %+d", mn, rs1, rs2, immB(inst))

	case opJAL:
		return fmt.Sprintf("jal x%d, %+d", rd, immJ(inst))

	case opJALR:
		if funct3 != 0 {
			return unknown(inst)
		}
		return fmt.Sprintf("jalr x%d, x%d, %d", rd, rs1, immI(inst))

	case opSYSTEM:
		switch inst {
		case ecallEncoding:
			return "ecall"
		case ebreakEncoding:
			return "ebreak"
		default:
			return unknown(inst)
		}

	default:
		return unknown(inst)
	}
}

func unknown(inst uint32) string {
	return fmt.Sprintf("unknown(0x%08x)", inst)
}
