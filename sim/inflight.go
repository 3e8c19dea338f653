// Package sim executes guest programs on a sequential multi-cycle model
// or a 5-stage pipelined model. Instruction semantics live on Inflight;
// the engines decide how many instructions are in flight at once.
package sim

import (
	"encoding/binary"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rvtools/rsim/isa"
	"github.com/rvtools/rsim/isa/rv64"
	"github.com/rvtools/rsim/machine"
)

// Stage identifies a pipeline stage.
type Stage int

const (
	StageFetch Stage = iota
	StageDecode
	StageExecute
	StageMemory
	StageWriteback
)

func (s Stage) String() string {
	switch s {
	case StageFetch:
		return "fetch"
	case StageDecode:
		return "decode"
	case StageExecute:
		return "execute"
	case StageMemory:
		return "memory"
	case StageWriteback:
		return "writeback"
	}
	return "unknown"
}

// divLatency is the number of execute cycles a divide or remainder
// occupies; multiplies take mulLatency.
const (
	divLatency = 40
	mulLatency = 2
)

// Inflight is one instruction travelling through the stages, together
// with its intermediate values. Advance moves it one cycle at a time;
// when it leaves the pipeline it reports the PC execution continues at.
type Inflight struct {
	inst   rv64.Inst
	pc     uint64
	nextPC uint64
	stage  Stage
	// progress counts cycles spent in the current stage, for the
	// multi-cycle multiply and divide units.
	progress int

	val1  uint64 // R[rs1]
	val2  uint64 // R[rs2]
	valE  uint64 // execute result / effective address
	valM  uint64 // memory read result
	sysNo uint64 // R[a7] for ecall

	locked bool // holds a write lock on inst.Rd
}

// NewInflight returns an instruction about to be fetched.
func NewInflight() *Inflight {
	return &Inflight{stage: StageFetch}
}

// Inst returns the decoded instruction (zero value until fetched).
func (f *Inflight) Inst() rv64.Inst { return f.inst }

// PC returns the address the instruction was fetched from.
func (f *Inflight) PC() uint64 { return f.pc }

// NextPC returns the predicted or computed successor address.
func (f *Inflight) NextPC() uint64 { return f.nextPC }

// Stage returns the stage the next Advance call will perform.
func (f *Inflight) Stage() Stage { return f.stage }

// Squash discards the instruction, releasing any register lock it
// holds so younger readers do not stall forever.
func (f *Inflight) Squash(m *machine.Machine) {
	if f.locked {
		m.Regs.Unlock(f.inst.Rd)
		f.locked = false
	}
}

// Advance moves the instruction through one cycle. done is false while
// the instruction stays in flight (possibly stalled in the same stage);
// when done is true the instruction has left the pipeline and next is
// the PC to continue at, machine.HaltAddr on any fatal condition.
func (f *Inflight) Advance(m *machine.Machine, log zerolog.Logger) (next uint64, done bool) {
	switch f.stage {
	case StageFetch:
		return f.fetch(m, log)
	case StageDecode:
		return f.decode(m)
	case StageExecute:
		return f.execute(m, log)
	case StageMemory:
		return f.memory(m, log)
	default:
		return f.writeback(m)
	}
}

func (f *Inflight) fetch(m *machine.Machine, log zerolog.Logger) (uint64, bool) {
	if m.PC == machine.HaltAddr {
		return machine.HaltAddr, true
	}

	data, rem, err := m.Mem.Load(m.PC, 4, true)
	if err != nil {
		log.Warn().Uint64("pc", m.PC).Err(err).Msg("cannot fetch instruction")
		return machine.HaltAddr, true
	}
	if rem != 0 {
		log.Warn().Uint64("pc", m.PC).Msg("fetching across VMA boundary")
		return machine.HaltAddr, true
	}

	word := binary.LittleEndian.Uint32(data)
	in := rv64.Decode(word)
	f.inst = in
	f.pc = m.PC
	f.nextPC = m.PC + uint64(in.Size)

	if !in.Legal() {
		log.Warn().Uint64("pc", f.pc).Str("word", fmt.Sprintf("%#x", in.Raw)).
			Str("kind", in.Mnemonic()).Msg("cannot decode instruction")
		return machine.HaltAddr, true
	}
	if !in.Executable() {
		log.Warn().Uint64("pc", f.pc).Str("inst", in.Mnemonic()).
			Msg("instruction is not currently supported")
		return machine.HaltAddr, true
	}
	f.stage = StageDecode
	return 0, false
}

// decode reads source registers and takes the destination write lock.
// It stalls (without partial effects) while any needed register has
// in-flight writers and no forwarded value.
func (f *Inflight) decode(m *machine.Machine) (uint64, bool) {
	in := f.inst

	if in.Op == rv64.OpEcall {
		// The environment call reads a0, a1 and the a7 function code.
		a0, ok := m.Regs.Read(rv64.RegA0)
		if !ok {
			return 0, false
		}
		a1, ok := m.Regs.Read(rv64.RegA1)
		if !ok {
			return 0, false
		}
		a7, ok := m.Regs.Read(rv64.RegA7)
		if !ok {
			return 0, false
		}
		f.val1, f.val2, f.sysNo = a0, a1, a7
		f.stage = StageExecute
		return 0, false
	}

	readRs1 := false
	readRs2 := false
	switch in.Format() {
	case isa.FormatR, isa.FormatS, isa.FormatB:
		readRs1, readRs2 = true, true
	case isa.FormatI:
		readRs1 = true
	}

	if readRs1 {
		v, ok := m.Regs.Read(in.Rs1)
		if !ok {
			return 0, false
		}
		f.val1 = v
	}
	if readRs2 {
		v, ok := m.Regs.Read(in.Rs2)
		if !ok {
			return 0, false
		}
		f.val2 = v
	}
	if in.WritesRd() {
		m.Regs.Lock(in.Rd)
		f.locked = true
	}
	f.stage = StageExecute
	return 0, false
}

//nolint:cyclop,funlen
func (f *Inflight) execute(m *machine.Machine, log zerolog.Logger) (uint64, bool) {
	in := f.inst
	switch in.Op {
	case rv64.OpAdd:
		f.finishExec(m, f.val1+f.val2)
	case rv64.OpSub:
		f.finishExec(m, f.val1-f.val2)
	case rv64.OpSll:
		f.finishExec(m, f.val1<<(f.val2&0x3F))
	case rv64.OpSlt:
		f.finishExec(m, boolToReg(int64(f.val1) < int64(f.val2)))
	case rv64.OpSltu:
		f.finishExec(m, boolToReg(f.val1 < f.val2))
	case rv64.OpXor:
		f.finishExec(m, f.val1^f.val2)
	case rv64.OpSrl:
		f.finishExec(m, f.val1>>(f.val2&0x3F))
	case rv64.OpSra:
		f.finishExec(m, uint64(int64(f.val1)>>(f.val2&0x3F)))
	case rv64.OpOr:
		f.finishExec(m, f.val1|f.val2)
	case rv64.OpAnd:
		f.finishExec(m, f.val1&f.val2)
	case rv64.OpAddw:
		f.finishExec(m, signExt32(uint32(f.val1)+uint32(f.val2)))
	case rv64.OpSubw:
		f.finishExec(m, signExt32(uint32(f.val1)-uint32(f.val2)))
	case rv64.OpSllw:
		f.finishExec(m, signExt32(uint32(f.val1)<<(f.val2&0x1F)))
	case rv64.OpSrlw:
		f.finishExec(m, signExt32(uint32(f.val1)>>(f.val2&0x1F)))
	case rv64.OpSraw:
		f.finishExec(m, uint64(int64(int32(f.val1)>>(f.val2&0x1F))))

	case rv64.OpMul:
		if f.progress < mulLatency-1 {
			f.progress++
			return 0, false
		}
		f.finishExec(m, uint64(int64(f.val1)*int64(f.val2)))
	case rv64.OpMulh:
		if f.progress < mulLatency-1 {
			f.progress++
			return 0, false
		}
		f.finishExec(m, mulh64(int64(f.val1), int64(f.val2)))
	case rv64.OpMulw:
		f.finishExec(m, signExt32(uint32(int32(f.val1)*int32(f.val2))))

	case rv64.OpDiv:
		return f.divide(m, log, func() uint64 {
			return uint64(wrappingDiv64(int64(f.val1), int64(f.val2)))
		})
	case rv64.OpRem:
		return f.divide(m, log, func() uint64 {
			return uint64(wrappingRem64(int64(f.val1), int64(f.val2)))
		})
	case rv64.OpDivw:
		return f.divide(m, log, func() uint64 {
			return signExt32(uint32(wrappingDiv32(int32(f.val1), int32(f.val2))))
		})
	case rv64.OpRemw:
		return f.divide(m, log, func() uint64 {
			return signExt32(uint32(wrappingRem32(int32(f.val1), int32(f.val2))))
		})

	case rv64.OpLb, rv64.OpLbu, rv64.OpLh, rv64.OpLhu,
		rv64.OpLw, rv64.OpLwu, rv64.OpLd, rv64.OpSb, rv64.OpSh, rv64.OpSw, rv64.OpSd:
		// Effective address; no forwarding until memory returns.
		f.valE = uint64(int64(f.val1) + int64(in.Imm))
		f.stage = StageMemory
	case rv64.OpAddi:
		f.finishExec(m, uint64(int64(f.val1)+int64(in.Imm)))
	case rv64.OpSlti:
		f.finishExec(m, boolToReg(int64(f.val1) < int64(in.Imm)))
	case rv64.OpSltiu:
		f.finishExec(m, boolToReg(f.val1 < uint64(int64(in.Imm))))
	case rv64.OpXori:
		f.finishExec(m, f.val1^uint64(int64(in.Imm)))
	case rv64.OpOri:
		f.finishExec(m, f.val1|uint64(int64(in.Imm)))
	case rv64.OpAndi:
		f.finishExec(m, f.val1&uint64(int64(in.Imm)))
	case rv64.OpSlli:
		f.finishExec(m, f.val1<<uint32(in.Imm))
	case rv64.OpSrli:
		f.finishExec(m, f.val1>>uint32(in.Imm))
	case rv64.OpSrai:
		f.finishExec(m, uint64(int64(f.val1)>>uint32(in.Imm)))
	case rv64.OpAddiw:
		f.finishExec(m, signExt32(uint32(f.val1)+uint32(in.Imm)))
	case rv64.OpSlliw:
		f.finishExec(m, signExt32(uint32(f.val1)<<uint32(in.Imm)))
	case rv64.OpSrliw:
		f.finishExec(m, signExt32(uint32(f.val1)>>uint32(in.Imm)))
	case rv64.OpSraiw:
		f.finishExec(m, uint64(int64(int32(f.val1)>>uint32(in.Imm))))

	case rv64.OpJalr:
		f.valE = f.pc + 4
		m.Regs.Forward(in.Rd, f.valE)
		f.nextPC = uint64(int64(f.val1)+int64(in.Imm)) &^ 1
		f.stage = StageMemory
	case rv64.OpJal:
		f.valE = f.pc + 4
		m.Regs.Forward(in.Rd, f.valE)
		f.nextPC = uint64(int64(f.pc) + int64(in.Imm))
		f.stage = StageMemory

	case rv64.OpEcall:
		return f.ecall(m, log)

	case rv64.OpBeq:
		return f.branch(f.val1 == f.val2)
	case rv64.OpBne:
		return f.branch(f.val1 != f.val2)
	case rv64.OpBlt:
		return f.branch(int64(f.val1) < int64(f.val2))
	case rv64.OpBge:
		return f.branch(int64(f.val1) >= int64(f.val2))
	case rv64.OpBltu:
		return f.branch(f.val1 < f.val2)
	case rv64.OpBgeu:
		return f.branch(f.val1 >= f.val2)

	case rv64.OpAuipc:
		f.finishExec(m, uint64(int64(f.pc)+int64(in.Imm)))
	case rv64.OpLui:
		f.finishExec(m, uint64(int64(in.Imm)))

	default:
		panic(fmt.Sprintf("execute: unexpected op %s", in.Mnemonic()))
	}
	return 0, false
}

// finishExec records an ALU result, forwards it and moves to Memory.
func (f *Inflight) finishExec(m *machine.Machine, v uint64) {
	f.valE = v
	m.Regs.Forward(f.inst.Rd, v)
	f.stage = StageMemory
}

// branch resolves a conditional branch. A taken branch leaves the
// pipeline immediately so the engine can redirect fetch.
func (f *Inflight) branch(taken bool) (uint64, bool) {
	if taken {
		return uint64(int64(f.pc) + int64(f.inst.Imm)), true
	}
	f.stage = StageMemory
	return 0, false
}

// divide handles the multi-cycle divide/remainder unit. Division by
// zero is fatal instead of producing the RISC-V all-ones result: the
// benchmarks treat it as a guest bug worth stopping on.
func (f *Inflight) divide(m *machine.Machine, log zerolog.Logger, result func() uint64) (uint64, bool) {
	if f.val2 == 0 {
		log.Warn().Uint64("pc", f.pc).Str("inst", f.inst.Mnemonic()).Msg("divide by zero")
		f.Squash(m)
		return machine.HaltAddr, true
	}
	if f.progress < divLatency-1 {
		f.progress++
		return 0, false
	}
	f.finishExec(m, result())
	return 0, false
}

//nolint:cyclop
func (f *Inflight) memory(m *machine.Machine, log zerolog.Logger) (uint64, bool) {
	in := f.inst
	switch in.Op {
	case rv64.OpLb, rv64.OpLbu:
		return f.load(m, log, 1)
	case rv64.OpLh, rv64.OpLhu:
		return f.load(m, log, 2)
	case rv64.OpLw, rv64.OpLwu:
		return f.load(m, log, 4)
	case rv64.OpLd:
		return f.load(m, log, 8)
	case rv64.OpSb:
		return f.store(m, log, 1)
	case rv64.OpSh:
		return f.store(m, log, 2)
	case rv64.OpSw:
		return f.store(m, log, 4)
	case rv64.OpSd:
		return f.store(m, log, 8)
	default:
		f.stage = StageWriteback
		return 0, false
	}
}

func (f *Inflight) load(m *machine.Machine, log zerolog.Logger, size int) (uint64, bool) {
	data, rem, err := m.Mem.Load(f.valE, size, false)
	if err != nil || rem != 0 {
		log.Warn().Uint64("addr", f.valE).Err(err).Msg("cannot access memory")
		f.Squash(m)
		return machine.HaltAddr, true
	}

	switch f.inst.Op {
	case rv64.OpLb:
		f.valM = uint64(int64(int8(data[0])))
	case rv64.OpLbu:
		f.valM = uint64(data[0])
	case rv64.OpLh:
		f.valM = uint64(int64(int16(binary.LittleEndian.Uint16(data))))
	case rv64.OpLhu:
		f.valM = uint64(binary.LittleEndian.Uint16(data))
	case rv64.OpLw:
		f.valM = signExt32(binary.LittleEndian.Uint32(data))
	case rv64.OpLwu:
		f.valM = uint64(binary.LittleEndian.Uint32(data))
	case rv64.OpLd:
		f.valM = binary.LittleEndian.Uint64(data)
	}
	m.Regs.Forward(f.inst.Rd, f.valM)
	f.stage = StageWriteback
	return 0, false
}

func (f *Inflight) store(m *machine.Machine, log zerolog.Logger, size int) (uint64, bool) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], f.val2)
	if err := m.Mem.Store(f.valE, buf[:size]); err != nil {
		log.Warn().Uint64("addr", f.valE).Err(err).Msg("cannot access memory")
		return machine.HaltAddr, true
	}
	f.stage = StageWriteback
	return 0, false
}

// writeback commits the result, releases the destination lock and
// retires the instruction. Writeback never stalls.
func (f *Inflight) writeback(m *machine.Machine) (uint64, bool) {
	in := f.inst
	if f.locked {
		if in.IsLoad() {
			m.Regs.Write(in.Rd, f.valM)
		} else {
			m.Regs.Write(in.Rd, f.valE)
		}
		m.Regs.Unlock(in.Rd)
		f.locked = false
	}
	return f.nextPC, true
}

func boolToReg(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func signExt32(v uint32) uint64 {
	return uint64(int64(int32(v)))
}

// mulh64 computes the high 64 bits of the signed 128-bit product.
func mulh64(a, b int64) uint64 {
	hi, _ := mul128(a, b)
	return hi
}

func mul128(a, b int64) (hi, lo uint64) {
	ua, ub := uint64(a), uint64(b)
	aL, aH := ua&0xFFFFFFFF, ua>>32
	bL, bH := ub&0xFFFFFFFF, ub>>32

	t := aL * bL
	lo = t & 0xFFFFFFFF
	carry := t >> 32

	t = aH*bL + carry
	mid := t & 0xFFFFFFFF
	hi = t >> 32

	t = aL*bH + mid
	lo |= (t & 0xFFFFFFFF) << 32
	hi += t >> 32

	hi += aH * bH
	// Signed correction terms.
	if a < 0 {
		hi -= ub
	}
	if b < 0 {
		hi -= ua
	}
	return hi, lo
}

// wrappingDiv64 matches two's-complement wrap-around on MinInt64 / -1.
func wrappingDiv64(a, b int64) int64 {
	if a == -1<<63 && b == -1 {
		return a
	}
	return a / b
}

func wrappingRem64(a, b int64) int64 {
	if a == -1<<63 && b == -1 {
		return 0
	}
	return a % b
}

func wrappingDiv32(a, b int32) int32 {
	if a == -1<<31 && b == -1 {
		return a
	}
	return a / b
}

func wrappingRem32(a, b int32) int32 {
	if a == -1<<31 && b == -1 {
		return 0
	}
	return a % b
}
