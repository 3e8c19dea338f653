package rv64

// signExtend32 sign-extends the low bits of v to a full int32.
func signExtend32(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

// Decode decodes one instruction from word. Compressed encodings use
// only the low 16 bits; the returned Inst.Size tells the caller how far
// to advance the PC.
func Decode(word uint32) Inst {
	low := uint16(word)
	if low&0b11111 == 0b11111 {
		// 48-bit and longer encodings are not supported.
		return Inst{Op: OpIllegalLong, Raw: word, Size: 4}
	}
	if low&0b11 != 0b11 {
		return decodeCompressed(low)
	}

	in := Inst{Raw: word, Size: 4}
	opcode := word & 0x7F
	switch opcode {
	case 0x33, 0x3B:
		return decodeR(word)
	case 0x03, 0x13, 0x1B, 0x67, 0x73:
		return decodeI(word)
	case 0x23:
		return decodeS(word)
	case 0x63:
		return decodeB(word)
	case 0x17, 0x37:
		in.Rd = Reg((word >> 7) & 0x1F)
		in.Imm = int32(word & 0xFFFFF000)
		if opcode == 0x17 {
			in.Op = OpAuipc
		} else {
			in.Op = OpLui
		}
		return in
	case 0x6F:
		in.Op = OpJal
		in.Rd = Reg((word >> 7) & 0x1F)
		imm := (word>>21&0x3FF)<<1 | (word>>20&0x1)<<11 |
			(word>>12&0xFF)<<12 | (word>>31&0x1)<<20
		in.Imm = signExtend32(imm, 21)
		return in
	case 0x0F:
		funct3 := (word >> 12) & 0x7
		switch funct3 {
		case 0:
			in.Op = OpFence
		case 1:
			in.Op = OpFenceI
		default:
			in.Op = OpIllegal
		}
		return in
	default:
		in.Op = OpIllegal
		return in
	}
}

func decodeR(word uint32) Inst {
	in := Inst{
		Raw:  word,
		Size: 4,
		Rd:   Reg((word >> 7) & 0x1F),
		Rs1:  Reg((word >> 15) & 0x1F),
		Rs2:  Reg((word >> 20) & 0x1F),
	}
	funct3 := (word >> 12) & 0x7
	funct7 := (word >> 25) & 0x7F
	in.Op = OpIllegal

	if word&0x7F == 0x33 {
		switch {
		case funct3 == 0 && funct7 == 0x00:
			in.Op = OpAdd
		case funct3 == 0 && funct7 == 0x20:
			in.Op = OpSub
		case funct3 == 0 && funct7 == 0x01:
			in.Op = OpMul
		case funct3 == 1 && funct7 == 0x00:
			in.Op = OpSll
		case funct3 == 1 && funct7 == 0x01:
			in.Op = OpMulh
		case funct3 == 2 && funct7 == 0x00:
			in.Op = OpSlt
		case funct3 == 3 && funct7 == 0x00:
			in.Op = OpSltu
		case funct3 == 4 && funct7 == 0x00:
			in.Op = OpXor
		case funct3 == 4 && funct7 == 0x01:
			in.Op = OpDiv
		case funct3 == 5 && funct7 == 0x00:
			in.Op = OpSrl
		case funct3 == 5 && funct7 == 0x20:
			in.Op = OpSra
		case funct3 == 6 && funct7 == 0x00:
			in.Op = OpOr
		case funct3 == 6 && funct7 == 0x01:
			in.Op = OpRem
		case funct3 == 7 && funct7 == 0x00:
			in.Op = OpAnd
		}
		return in
	}

	// opcode 0x3B: *W variants
	switch {
	case funct3 == 0 && funct7 == 0x00:
		in.Op = OpAddw
	case funct3 == 0 && funct7 == 0x20:
		in.Op = OpSubw
	case funct3 == 0 && funct7 == 0x01:
		in.Op = OpMulw
	case funct3 == 1 && funct7 == 0x00:
		in.Op = OpSllw
	case funct3 == 4 && funct7 == 0x01:
		in.Op = OpDivw
	case funct3 == 5 && funct7 == 0x00:
		in.Op = OpSrlw
	case funct3 == 5 && funct7 == 0x20:
		in.Op = OpSraw
	case funct3 == 6 && funct7 == 0x01:
		in.Op = OpRemw
	}
	return in
}

//nolint:cyclop
func decodeI(word uint32) Inst {
	in := Inst{
		Raw:  word,
		Size: 4,
		Rd:   Reg((word >> 7) & 0x1F),
		Rs1:  Reg((word >> 15) & 0x1F),
	}
	funct3 := (word >> 12) & 0x7
	rawImm := word >> 20
	in.Imm = signExtend32(rawImm, 12)
	in.Op = OpIllegal

	switch word & 0x7F {
	case 0x03:
		switch funct3 {
		case 0:
			in.Op = OpLb
		case 1:
			in.Op = OpLh
		case 2:
			in.Op = OpLw
		case 3:
			in.Op = OpLd
		case 4:
			in.Op = OpLbu
		case 5:
			in.Op = OpLhu
		case 6:
			in.Op = OpLwu
		}
	case 0x13:
		switch funct3 {
		case 0:
			in.Op = OpAddi
		case 1:
			if rawImm>>6 == 0 {
				in.Op = OpSlli
				in.Imm = int32(rawImm & 0x3F)
			}
		case 2:
			in.Op = OpSlti
		case 3:
			in.Op = OpSltiu
		case 4:
			in.Op = OpXori
		case 5:
			switch rawImm >> 6 {
			case 0x00:
				in.Op = OpSrli
				in.Imm = int32(rawImm & 0x3F)
			case 0x10:
				in.Op = OpSrai
				in.Imm = int32(rawImm & 0x3F)
			}
		case 6:
			in.Op = OpOri
		case 7:
			in.Op = OpAndi
		}
	case 0x1B:
		switch funct3 {
		case 0:
			in.Op = OpAddiw
		case 1:
			if rawImm>>5 == 0 {
				in.Op = OpSlliw
				in.Imm = int32(rawImm & 0x1F)
			}
		case 5:
			switch rawImm >> 5 {
			case 0x00:
				in.Op = OpSrliw
				in.Imm = int32(rawImm & 0x1F)
			case 0x20:
				in.Op = OpSraiw
				in.Imm = int32(rawImm & 0x1F)
			}
		}
	case 0x67:
		if funct3 == 0 {
			in.Op = OpJalr
		}
	case 0x73:
		return decodeSystem(in, funct3, rawImm)
	}
	return in
}

func decodeSystem(in Inst, funct3, rawImm uint32) Inst {
	switch funct3 {
	case 0:
		switch rawImm {
		case 0x000:
			in.Op = OpEcall
		case 0x001:
			in.Op = OpEbreak
		case 0x002:
			in.Op = OpUret
		case 0x102:
			in.Op = OpSret
		case 0x302:
			in.Op = OpMret
		case 0x105:
			in.Op = OpWfi
		default:
			if rawImm>>5 == 0x09 {
				in.Op = OpSfenceVMA
				in.Rs2 = Reg(rawImm & 0x1F)
			}
		}
	case 1:
		in.Op = OpCsrrw
	case 2:
		in.Op = OpCsrrs
	case 3:
		in.Op = OpCsrrc
	case 5:
		in.Op = OpCsrrwi
	case 6:
		in.Op = OpCsrrsi
	case 7:
		in.Op = OpCsrrci
	}
	return in
}

func decodeS(word uint32) Inst {
	in := Inst{
		Raw:  word,
		Size: 4,
		Rs1:  Reg((word >> 15) & 0x1F),
		Rs2:  Reg((word >> 20) & 0x1F),
	}
	imm := (word>>7)&0x1F | (word>>25)<<5
	in.Imm = signExtend32(imm, 12)
	switch (word >> 12) & 0x7 {
	case 0:
		in.Op = OpSb
	case 1:
		in.Op = OpSh
	case 2:
		in.Op = OpSw
	case 3:
		in.Op = OpSd
	default:
		in.Op = OpIllegal
	}
	return in
}

func decodeB(word uint32) Inst {
	in := Inst{
		Raw:  word,
		Size: 4,
		Rs1:  Reg((word >> 15) & 0x1F),
		Rs2:  Reg((word >> 20) & 0x1F),
	}
	imm := (word>>8&0xF)<<1 | (word>>25&0x3F)<<5 |
		(word>>7&0x1)<<11 | (word>>31&0x1)<<12
	in.Imm = signExtend32(imm, 13)
	switch (word >> 12) & 0x7 {
	case 0:
		in.Op = OpBeq
	case 1:
		in.Op = OpBne
	case 4:
		in.Op = OpBlt
	case 5:
		in.Op = OpBge
	case 6:
		in.Op = OpBltu
	case 7:
		in.Op = OpBgeu
	default:
		in.Op = OpIllegal
	}
	return in
}

// decodeCompressed expands the RVC subset the toolchain emits for stack
// and immediate setup. Everything else, notably the floating-point
// loads/stores, is flagged so the engines can halt with a diagnostic.
func decodeCompressed(raw uint16) Inst {
	in := Inst{Raw: uint32(raw), Size: 2}
	quadrant := raw & 0b11
	funct3 := raw >> 13
	rdp := Reg((raw>>2)&0b111) + 8  // rd' for CL/CIW formats
	rs1p := Reg((raw>>7)&0b111) + 8 // rs1' for CL/CS formats

	switch {
	case quadrant == 0 && funct3 == 0:
		// c.addi4spn rd',sp,nzuimm
		imm := uint32(raw>>5) & 0xFF
		nzuimm := (imm>>2&0xF)<<6 | (imm>>6)<<4 | (imm&0b10)<<1 | (imm&0b1)<<3
		if nzuimm == 0 {
			in.Op = OpIllegalC
			return in
		}
		in.Op = OpAddi
		in.Rd = rdp
		in.Rs1 = RegSP
		in.Imm = int32(nzuimm)
	case quadrant == 0 && (funct3 == 1 || funct3 == 5):
		// c.fld / c.fsd
		in.Op = OpIllegalFP
	case quadrant == 0 && funct3 == 2:
		// c.lw rd',offset(rs1')
		in.Op = OpLw
		in.Rd = rdp
		in.Rs1 = rs1p
		in.Imm = int32((raw>>10&0b111)<<3 | (raw>>5&0b1)<<6 | (raw>>6&0b1)<<2)
	case quadrant == 0 && funct3 == 3:
		// c.ld rd',offset(rs1')
		in.Op = OpLd
		in.Rd = rdp
		in.Rs1 = rs1p
		in.Imm = int32((raw>>10&0b111)<<3 | (raw>>5&0b11)<<6)
	case quadrant == 0 && funct3 == 6:
		// c.sw rs2',offset(rs1')
		in.Op = OpSw
		in.Rs1 = rs1p
		in.Rs2 = rdp
		in.Imm = int32((raw>>10&0b111)<<3 | (raw>>5&0b1)<<6 | (raw>>6&0b1)<<2)
	case quadrant == 0 && funct3 == 7:
		// c.sd rs2',offset(rs1')
		in.Op = OpSd
		in.Rs1 = rs1p
		in.Rs2 = rdp
		in.Imm = int32((raw>>10&0b111)<<3 | (raw>>5&0b11)<<6)
	case quadrant == 1 && funct3 == 0:
		// c.nop / c.addi
		rs1 := Reg((raw >> 7) & 0x1F)
		in.Op = OpAddi
		in.Rd = rs1
		in.Rs1 = rs1
		in.Imm = ciImm(raw)
	case quadrant == 1 && funct3 == 1:
		// c.addiw rd,rd,imm
		rs1 := Reg((raw >> 7) & 0x1F)
		in.Op = OpAddiw
		in.Rd = rs1
		in.Rs1 = rs1
		in.Imm = ciImm(raw)
	case quadrant == 1 && funct3 == 2:
		// c.li rd,imm
		in.Op = OpAddi
		in.Rd = Reg((raw >> 7) & 0x1F)
		in.Rs1 = RegZero
		in.Imm = ciImm(raw)
	default:
		in.Op = OpIllegalC
	}
	return in
}

// ciImm extracts the sign-extended 6-bit CI-format immediate.
func ciImm(raw uint16) int32 {
	imm := uint32(raw>>2)&0x1F | uint32(raw>>12&0b1)<<5
	return signExtend32(imm, 6)
}
