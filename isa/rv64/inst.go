// Package rv64 implements decoding and encoding of the RV64I base ISA,
// the RV64M subset the simulator executes, and the small RVC subset
// emitted for stack and immediate setup.
package rv64

import (
	"fmt"

	"github.com/rvtools/rsim/isa"
)

// Op identifies a decoded RV64 operation.
type Op int

const (
	OpIllegal Op = iota // undecodable 32-bit word
	OpIllegalC          // undecodable compressed word
	OpIllegalFP         // compressed floating-point, not supported
	OpIllegalLong       // instruction longer than 32 bits

	// R-type
	OpAdd
	OpSub
	OpSll
	OpSlt
	OpSltu
	OpXor
	OpSrl
	OpSra
	OpOr
	OpAnd
	OpAddw
	OpSubw
	OpSllw
	OpSrlw
	OpSraw
	// RV64M subset
	OpMul
	OpMulh
	OpMulw
	OpDiv
	OpDivw
	OpRem
	OpRemw

	// I-type
	OpLb
	OpLh
	OpLw
	OpLd
	OpLbu
	OpLhu
	OpLwu
	OpAddi
	OpSlti
	OpSltiu
	OpXori
	OpOri
	OpAndi
	OpSlli
	OpSrli
	OpSrai
	OpAddiw
	OpSlliw
	OpSrliw
	OpSraiw
	OpJalr

	// S-type
	OpSb
	OpSh
	OpSw
	OpSd

	// B-type
	OpBeq
	OpBne
	OpBlt
	OpBge
	OpBltu
	OpBgeu

	// U-type
	OpLui
	OpAuipc

	// J-type
	OpJal

	// System. Only ecall is executed; the rest decode for
	// disassembly but halt the simulation.
	OpEcall
	OpEbreak
	OpFence
	OpFenceI
	OpCsrrw
	OpCsrrs
	OpCsrrc
	OpCsrrwi
	OpCsrrsi
	OpCsrrci
	OpUret
	OpSret
	OpMret
	OpWfi
	OpSfenceVMA
)

var mnemonics = map[Op]string{
	OpIllegal: "illegal", OpIllegalC: "illegal.c", OpIllegalFP: "illegal.cfp", OpIllegalLong: "illegal.long",
	OpAdd: "add", OpSub: "sub", OpSll: "sll", OpSlt: "slt", OpSltu: "sltu",
	OpXor: "xor", OpSrl: "srl", OpSra: "sra", OpOr: "or", OpAnd: "and",
	OpAddw: "addw", OpSubw: "subw", OpSllw: "sllw", OpSrlw: "srlw", OpSraw: "sraw",
	OpMul: "mul", OpMulh: "mulh", OpMulw: "mulw",
	OpDiv: "div", OpDivw: "divw", OpRem: "rem", OpRemw: "remw",
	OpLb: "lb", OpLh: "lh", OpLw: "lw", OpLd: "ld",
	OpLbu: "lbu", OpLhu: "lhu", OpLwu: "lwu",
	OpAddi: "addi", OpSlti: "slti", OpSltiu: "sltiu", OpXori: "xori",
	OpOri: "ori", OpAndi: "andi", OpSlli: "slli", OpSrli: "srli", OpSrai: "srai",
	OpAddiw: "addiw", OpSlliw: "slliw", OpSrliw: "srliw", OpSraiw: "sraiw",
	OpJalr: "jalr",
	OpSb:   "sb", OpSh: "sh", OpSw: "sw", OpSd: "sd",
	OpBeq: "beq", OpBne: "bne", OpBlt: "blt", OpBge: "bge", OpBltu: "bltu", OpBgeu: "bgeu",
	OpLui: "lui", OpAuipc: "auipc", OpJal: "jal",
	OpEcall: "ecall", OpEbreak: "ebreak", OpFence: "fence", OpFenceI: "fence.i",
	OpCsrrw: "csrrw", OpCsrrs: "csrrs", OpCsrrc: "csrrc",
	OpCsrrwi: "csrrwi", OpCsrrsi: "csrrsi", OpCsrrci: "csrrci",
	OpUret: "uret", OpSret: "sret", OpMret: "mret", OpWfi: "wfi", OpSfenceVMA: "sfence.vma",
}

var formats = map[Op]isa.Format{
	OpIllegal: isa.FormatIllegal, OpIllegalC: isa.FormatIllegal,
	OpIllegalFP: isa.FormatIllegal, OpIllegalLong: isa.FormatIllegal,
	OpAdd: isa.FormatR, OpSub: isa.FormatR, OpSll: isa.FormatR, OpSlt: isa.FormatR,
	OpSltu: isa.FormatR, OpXor: isa.FormatR, OpSrl: isa.FormatR, OpSra: isa.FormatR,
	OpOr: isa.FormatR, OpAnd: isa.FormatR, OpAddw: isa.FormatR, OpSubw: isa.FormatR,
	OpSllw: isa.FormatR, OpSrlw: isa.FormatR, OpSraw: isa.FormatR,
	OpMul: isa.FormatR, OpMulh: isa.FormatR, OpMulw: isa.FormatR,
	OpDiv: isa.FormatR, OpDivw: isa.FormatR, OpRem: isa.FormatR, OpRemw: isa.FormatR,
	OpLb: isa.FormatI, OpLh: isa.FormatI, OpLw: isa.FormatI, OpLd: isa.FormatI,
	OpLbu: isa.FormatI, OpLhu: isa.FormatI, OpLwu: isa.FormatI,
	OpAddi: isa.FormatI, OpSlti: isa.FormatI, OpSltiu: isa.FormatI,
	OpXori: isa.FormatI, OpOri: isa.FormatI, OpAndi: isa.FormatI,
	OpSlli: isa.FormatI, OpSrli: isa.FormatI, OpSrai: isa.FormatI,
	OpAddiw: isa.FormatI, OpSlliw: isa.FormatI, OpSrliw: isa.FormatI, OpSraiw: isa.FormatI,
	OpJalr: isa.FormatI,
	OpSb:   isa.FormatS, OpSh: isa.FormatS, OpSw: isa.FormatS, OpSd: isa.FormatS,
	OpBeq: isa.FormatB, OpBne: isa.FormatB, OpBlt: isa.FormatB,
	OpBge: isa.FormatB, OpBltu: isa.FormatB, OpBgeu: isa.FormatB,
	OpLui: isa.FormatU, OpAuipc: isa.FormatU,
	OpJal: isa.FormatJ,
	OpEcall: isa.FormatSystem, OpEbreak: isa.FormatSystem, OpFence: isa.FormatSystem,
	OpFenceI: isa.FormatSystem, OpCsrrw: isa.FormatSystem, OpCsrrs: isa.FormatSystem,
	OpCsrrc: isa.FormatSystem, OpCsrrwi: isa.FormatSystem, OpCsrrsi: isa.FormatSystem,
	OpCsrrci: isa.FormatSystem, OpUret: isa.FormatSystem, OpSret: isa.FormatSystem,
	OpMret: isa.FormatSystem, OpWfi: isa.FormatSystem, OpSfenceVMA: isa.FormatSystem,
}

// Inst is a decoded instruction. Size is the encoded length in bytes
// (2 for compressed encodings, 4 otherwise).
type Inst struct {
	Op   Op
	Rd   Reg
	Rs1  Reg
	Rs2  Reg
	Imm  int32
	Raw  uint32
	Size int
}

// Mnemonic returns the assembler name of the operation.
func (in Inst) Mnemonic() string {
	if m, ok := mnemonics[in.Op]; ok {
		return m
	}
	return "unknown"
}

// Format returns the encoding format of the operation.
func (in Inst) Format() isa.Format {
	if f, ok := formats[in.Op]; ok {
		return f
	}
	return isa.FormatIllegal
}

// Legal reports whether the word decoded to a recognized encoding.
func (in Inst) Legal() bool {
	switch in.Op {
	case OpIllegal, OpIllegalC, OpIllegalFP, OpIllegalLong:
		return false
	}
	return true
}

// Executable reports whether the simulator can execute the operation.
// System instructions other than ecall decode but are not executable.
func (in Inst) Executable() bool {
	if !in.Legal() {
		return false
	}
	if in.Format() == isa.FormatSystem {
		return in.Op == OpEcall
	}
	return true
}

// IsLoad reports whether the operation reads data memory.
func (in Inst) IsLoad() bool {
	switch in.Op {
	case OpLb, OpLh, OpLw, OpLd, OpLbu, OpLhu, OpLwu:
		return true
	}
	return false
}

// IsStore reports whether the operation writes data memory.
func (in Inst) IsStore() bool {
	switch in.Op {
	case OpSb, OpSh, OpSw, OpSd:
		return true
	}
	return false
}

// WritesRd reports whether the operation writes a destination register.
func (in Inst) WritesRd() bool {
	switch in.Format() {
	case isa.FormatR, isa.FormatU, isa.FormatJ:
		return true
	case isa.FormatI:
		return true
	}
	return false
}

func (in Inst) String() string {
	switch in.Format() {
	case isa.FormatR:
		return fmt.Sprintf("%s %s,%s,%s", in.Mnemonic(), in.Rd, in.Rs1, in.Rs2)
	case isa.FormatI:
		if in.IsLoad() || in.Op == OpJalr {
			return fmt.Sprintf("%s %s,%d(%s)", in.Mnemonic(), in.Rd, in.Imm, in.Rs1)
		}
		return fmt.Sprintf("%s %s,%s,%d", in.Mnemonic(), in.Rd, in.Rs1, in.Imm)
	case isa.FormatS:
		return fmt.Sprintf("%s %s,%d(%s)", in.Mnemonic(), in.Rs2, in.Imm, in.Rs1)
	case isa.FormatB:
		return fmt.Sprintf("%s %s,%s,%d", in.Mnemonic(), in.Rs1, in.Rs2, in.Imm)
	case isa.FormatU:
		return fmt.Sprintf("%s %s,%#x", in.Mnemonic(), in.Rd, uint32(in.Imm)>>12)
	case isa.FormatJ:
		return fmt.Sprintf("%s %s,%d", in.Mnemonic(), in.Rd, in.Imm)
	case isa.FormatSystem:
		return in.Mnemonic()
	default:
		return fmt.Sprintf("%s %#x", in.Mnemonic(), in.Raw)
	}
}

var _ isa.Instruction = Inst{}
