package rv32

// Opcode values, bits [6:0] of the instruction word.
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
)

// ecallEncoding and ebreakEncoding are the two SYSTEM-opcode instructions
// this subset supports; both have rd=rs1=0 and differ only in imm12.
const (
	ecallEncoding  uint32 = 0x00000073
	ebreakEncoding uint32 = 0x00100073
)

func bits(v uint32, pos, length uint) uint32 {
	return (v >> pos) & ((1 << length) - 1)
}

// signExtend sign-extends the low `width` bits of v to a full int32.
func signExtend(v uint32, width uint) int32 {
	shift := 32 - width
	return int32(v<<shift) >> shift
}

// immI decodes the I-type immediate (bits [31:20]), used by OP-IMM,
// LOAD and JALR.
func immI(inst uint32) int32 {
	return signExtend(inst>>20, 12)
}

// immS decodes the S-type split immediate (bits [31:25] and [11:7]),
// used by STORE.
func immS(inst uint32) int32 {
	raw := bits(inst, 7, 5) | bits(inst, 25, 7)<<5
	return signExtend(raw, 12)
}

// immB decodes the B-type split immediate (bits {31,7,30:25,11:8}<<1),
// used by BRANCH. The result is always even.
func immB(inst uint32) int32 {
	raw := bits(inst, 8, 4)<<1 |
		bits(inst, 25, 6)<<5 |
		bits(inst, 7, 1)<<11 |
		bits(inst, 31, 1)<<12
	return signExtend(raw, 13)
}

// immU decodes the U-type immediate (bits [31:12] placed in the upper 20
// bits), used by LUI.
func immU(inst uint32) uint32 {
	return inst & 0xFFFFF000
}

// immJ decodes the J-type split immediate (bits {31,19:12,20,30:21}<<1),
// used by JAL. The result is always even.
func immJ(inst uint32) int32 {
	raw := bits(inst, 21, 10)<<1 |
		bits(inst, 20, 1)<<11 |
		bits(inst, 12, 8)<<12 |
		bits(inst, 31, 1)<<20
	return signExtend(raw, 21)
}

// decodedFields holds the opcode-agnostic fields every instruction word
// carries in fixed bit positions, extracted once per Step.
type decodedFields struct {
	opcode uint32
	rd     uint32
	funct3 uint32
	rs1    uint32
	rs2    uint32
	funct7 uint32
}

func decode(inst uint32) decodedFields {
	return decodedFields{
		opcode: bits(inst, 0, 7),
		rd:     bits(inst, 7, 5),
		funct3: bits(inst, 12, 3),
		rs1:    bits(inst, 15, 5),
		rs2:    bits(inst, 20, 5),
		funct7: bits(inst, 25, 7),
	}
}
