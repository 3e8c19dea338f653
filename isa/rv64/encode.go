package rv64

// Instruction word constructors. The guest package uses these to
// assemble programs directly into simulated memory.

func encodeR(opcode, funct3, funct7 uint32, rd, rs1, rs2 Reg) uint32 {
	return opcode | uint32(rd)<<7 | funct3<<12 | uint32(rs1)<<15 | uint32(rs2)<<20 | funct7<<25
}

func encodeI(opcode, funct3 uint32, rd, rs1 Reg, imm int32) uint32 {
	return opcode | uint32(rd)<<7 | funct3<<12 | uint32(rs1)<<15 | (uint32(imm)&0xFFF)<<20
}

func encodeS(funct3 uint32, rs1, rs2 Reg, imm int32) uint32 {
	u := uint32(imm)
	return 0x23 | (u&0x1F)<<7 | funct3<<12 | uint32(rs1)<<15 | uint32(rs2)<<20 | (u>>5&0x7F)<<25
}

func encodeB(funct3 uint32, rs1, rs2 Reg, offset int32) uint32 {
	u := uint32(offset)
	return 0x63 | (u>>11&0x1)<<7 | (u>>1&0xF)<<8 | funct3<<12 |
		uint32(rs1)<<15 | uint32(rs2)<<20 | (u>>5&0x3F)<<25 | (u>>12&0x1)<<31
}

func Add(rd, rs1, rs2 Reg) uint32  { return encodeR(0x33, 0, 0x00, rd, rs1, rs2) }
func Sub(rd, rs1, rs2 Reg) uint32  { return encodeR(0x33, 0, 0x20, rd, rs1, rs2) }
func Mul(rd, rs1, rs2 Reg) uint32  { return encodeR(0x33, 0, 0x01, rd, rs1, rs2) }
func Mulh(rd, rs1, rs2 Reg) uint32 { return encodeR(0x33, 1, 0x01, rd, rs1, rs2) }
func Div(rd, rs1, rs2 Reg) uint32  { return encodeR(0x33, 4, 0x01, rd, rs1, rs2) }
func Rem(rd, rs1, rs2 Reg) uint32  { return encodeR(0x33, 6, 0x01, rd, rs1, rs2) }
func Sll(rd, rs1, rs2 Reg) uint32  { return encodeR(0x33, 1, 0x00, rd, rs1, rs2) }
func Srl(rd, rs1, rs2 Reg) uint32  { return encodeR(0x33, 5, 0x00, rd, rs1, rs2) }
func Sra(rd, rs1, rs2 Reg) uint32  { return encodeR(0x33, 5, 0x20, rd, rs1, rs2) }
func Slt(rd, rs1, rs2 Reg) uint32  { return encodeR(0x33, 2, 0x00, rd, rs1, rs2) }
func Sltu(rd, rs1, rs2 Reg) uint32 { return encodeR(0x33, 3, 0x00, rd, rs1, rs2) }
func Xor(rd, rs1, rs2 Reg) uint32  { return encodeR(0x33, 4, 0x00, rd, rs1, rs2) }
func Or(rd, rs1, rs2 Reg) uint32   { return encodeR(0x33, 6, 0x00, rd, rs1, rs2) }
func And(rd, rs1, rs2 Reg) uint32  { return encodeR(0x33, 7, 0x00, rd, rs1, rs2) }
func Addw(rd, rs1, rs2 Reg) uint32 { return encodeR(0x3B, 0, 0x00, rd, rs1, rs2) }
func Subw(rd, rs1, rs2 Reg) uint32 { return encodeR(0x3B, 0, 0x20, rd, rs1, rs2) }
func Divw(rd, rs1, rs2 Reg) uint32 { return encodeR(0x3B, 4, 0x01, rd, rs1, rs2) }
func Remw(rd, rs1, rs2 Reg) uint32 { return encodeR(0x3B, 6, 0x01, rd, rs1, rs2) }

func Addi(rd, rs1 Reg, imm int32) uint32  { return encodeI(0x13, 0, rd, rs1, imm) }
func Slti(rd, rs1 Reg, imm int32) uint32  { return encodeI(0x13, 2, rd, rs1, imm) }
func Xori(rd, rs1 Reg, imm int32) uint32  { return encodeI(0x13, 4, rd, rs1, imm) }
func Ori(rd, rs1 Reg, imm int32) uint32   { return encodeI(0x13, 6, rd, rs1, imm) }
func Andi(rd, rs1 Reg, imm int32) uint32  { return encodeI(0x13, 7, rd, rs1, imm) }
func Slli(rd, rs1 Reg, shamt int32) uint32 {
	return encodeI(0x13, 1, rd, rs1, shamt&0x3F)
}
func Srli(rd, rs1 Reg, shamt int32) uint32 {
	return encodeI(0x13, 5, rd, rs1, shamt&0x3F)
}
func Srai(rd, rs1 Reg, shamt int32) uint32 {
	return encodeI(0x13, 5, rd, rs1, shamt&0x3F|0x400)
}
func Addiw(rd, rs1 Reg, imm int32) uint32 { return encodeI(0x1B, 0, rd, rs1, imm) }

func Lb(rd, rs1 Reg, imm int32) uint32  { return encodeI(0x03, 0, rd, rs1, imm) }
func Lh(rd, rs1 Reg, imm int32) uint32  { return encodeI(0x03, 1, rd, rs1, imm) }
func Lw(rd, rs1 Reg, imm int32) uint32  { return encodeI(0x03, 2, rd, rs1, imm) }
func Ld(rd, rs1 Reg, imm int32) uint32  { return encodeI(0x03, 3, rd, rs1, imm) }
func Lbu(rd, rs1 Reg, imm int32) uint32 { return encodeI(0x03, 4, rd, rs1, imm) }
func Lhu(rd, rs1 Reg, imm int32) uint32 { return encodeI(0x03, 5, rd, rs1, imm) }

func Sb(rs1, rs2 Reg, imm int32) uint32 { return encodeS(0, rs1, rs2, imm) }
func Sh(rs1, rs2 Reg, imm int32) uint32 { return encodeS(1, rs1, rs2, imm) }
func Sw(rs1, rs2 Reg, imm int32) uint32 { return encodeS(2, rs1, rs2, imm) }
func Sd(rs1, rs2 Reg, imm int32) uint32 { return encodeS(3, rs1, rs2, imm) }

func Beq(rs1, rs2 Reg, offset int32) uint32  { return encodeB(0, rs1, rs2, offset) }
func Bne(rs1, rs2 Reg, offset int32) uint32  { return encodeB(1, rs1, rs2, offset) }
func Blt(rs1, rs2 Reg, offset int32) uint32  { return encodeB(4, rs1, rs2, offset) }
func Bge(rs1, rs2 Reg, offset int32) uint32  { return encodeB(5, rs1, rs2, offset) }
func Bltu(rs1, rs2 Reg, offset int32) uint32 { return encodeB(6, rs1, rs2, offset) }
func Bgeu(rs1, rs2 Reg, offset int32) uint32 { return encodeB(7, rs1, rs2, offset) }

// Lui places imm20 in the upper 20 bits of rd.
func Lui(rd Reg, imm20 uint32) uint32 {
	return 0x37 | uint32(rd)<<7 | (imm20&0xFFFFF)<<12
}

// Auipc adds imm20<<12 to the PC.
func Auipc(rd Reg, imm20 uint32) uint32 {
	return 0x17 | uint32(rd)<<7 | (imm20&0xFFFFF)<<12
}

// Jal jumps to pc+offset, linking in rd.
func Jal(rd Reg, offset int32) uint32 {
	u := uint32(offset)
	return 0x6F | uint32(rd)<<7 | (u>>12&0xFF)<<12 | (u>>11&0x1)<<20 |
		(u>>1&0x3FF)<<21 | (u>>20&0x1)<<31
}

// Jalr jumps to (rs1+imm)&^1, linking in rd.
func Jalr(rd, rs1 Reg, imm int32) uint32 { return encodeI(0x67, 0, rd, rs1, imm) }

func Ecall() uint32  { return 0x73 }
func Ebreak() uint32 { return 0x00100073 }

// Nop is the canonical addi zero,zero,0.
func Nop() uint32 { return Addi(RegZero, RegZero, 0) }
