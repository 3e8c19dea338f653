// Package guest assembles the built-in benchmark programs directly into
// a machine, so the engines can be exercised without a RISC-V cross
// toolchain or an ELF on disk.
package guest

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/rvtools/rsim/isa/rv64"
	"github.com/rvtools/rsim/machine"
	"github.com/rvtools/rsim/mem"
	"github.com/rvtools/rsim/profile"
)

const (
	textBase = 0x10000
	dataBase = 0x20000
)

// asm accumulates instruction words with label fixups for control
// transfers, plus a data section for string constants.
type asm struct {
	words  []uint32
	labels map[string]int // label name -> word index
	order  []string       // function labels in emission order
	fixups []fixup
	data   []byte
}

type fixup struct {
	idx   int
	label string
	enc   func(offset int32) uint32
}

func newAsm() *asm {
	return &asm{labels: make(map[string]int)}
}

func (a *asm) emit(w uint32) {
	a.words = append(a.words, w)
}

// fn starts a new function at the current position.
func (a *asm) fn(name string) {
	a.labels[name] = len(a.words)
	a.order = append(a.order, name)
}

// label marks a local branch target.
func (a *asm) label(name string) {
	a.labels[name] = len(a.words)
}

func (a *asm) jal(rd rv64.Reg, label string) {
	a.fixups = append(a.fixups, fixup{len(a.words), label, func(ofs int32) uint32 {
		return rv64.Jal(rd, ofs)
	}})
	a.emit(0)
}

// j is the unconditional jump pseudo-instruction.
func (a *asm) j(label string) {
	a.jal(rv64.RegZero, label)
}

func (a *asm) beq(rs1, rs2 rv64.Reg, label string) {
	a.fixups = append(a.fixups, fixup{len(a.words), label, func(ofs int32) uint32 {
		return rv64.Beq(rs1, rs2, ofs)
	}})
	a.emit(0)
}

// str places a NUL-terminated string in the data section and returns
// its guest address.
func (a *asm) str(s string) uint64 {
	addr := dataBase + uint64(len(a.data))
	a.data = append(a.data, s...)
	a.data = append(a.data, 0)
	return addr
}

// la loads the address into rd via lui+addi. Addresses stay well under
// 2^31 so no sign correction is needed.
func (a *asm) la(rd rv64.Reg, addr uint64) {
	lo := int32(addr & 0xFFF)
	if lo >= 0x800 {
		panic(fmt.Sprintf("guest: address %#x needs a sign-corrected la", addr))
	}
	a.emit(rv64.Lui(rd, uint32(addr>>12)))
	a.emit(rv64.Addi(rd, rd, lo))
}

func (a *asm) ret() {
	a.emit(rv64.Jalr(rv64.RegZero, rv64.RegRA, 0))
}

// pad keeps the fetch-ahead of the pipelined engine inside mapped
// memory past the last executed instruction.
func (a *asm) pad() {
	a.emit(rv64.Nop())
	a.emit(rv64.Nop())
}

// build resolves fixups and maps the program into a fresh machine.
// Functions named in libFuncs are registered for host-side simulation
// instead of execution.
func (a *asm) build(entry string, libFuncs []string) *machine.Machine {
	for _, fx := range a.fixups {
		target, ok := a.labels[fx.label]
		if !ok {
			panic("guest: undefined label " + fx.label)
		}
		a.words[fx.idx] = fx.enc(int32(target-fx.idx) * 4)
	}

	text := make([]byte, 4*len(a.words))
	for i, w := range a.words {
		binary.LittleEndian.PutUint32(text[4*i:], w)
	}

	prof := profile.Default()
	m := machine.New()
	m.Mem.Map(&mem.VMA{
		Low: textBase, Size: uint64(len(text)),
		Readable: true, Executable: true, Data: text,
	})
	if len(a.data) > 0 {
		m.Mem.Map(&mem.VMA{
			Low: dataBase, Size: uint64(len(a.data)),
			Readable: true, Data: a.data,
		})
	}
	m.Mem.Map(&mem.VMA{
		Low: prof.StackBottom - prof.StackSize, Size: prof.StackSize,
		Readable: true, Writable: true, Data: make([]byte, prof.StackSize),
	})

	// Function sizes run to the next function start.
	starts := make([]int, 0, len(a.order))
	for _, name := range a.order {
		starts = append(starts, a.labels[name])
	}
	sort.Ints(starts)
	for _, name := range a.order {
		start := a.labels[name]
		end := len(a.words)
		for _, s := range starts {
			if s > start {
				end = s
				break
			}
		}
		m.Funcs = append(m.Funcs, machine.Func{
			Addr: textBase + 4*uint64(start),
			Size: 4 * uint64(end-start),
			Name: name,
		})
	}
	for _, name := range libFuncs {
		f, ok := m.FuncByName(name)
		if !ok {
			panic("guest: library function " + name + " not defined")
		}
		m.LibraryFuncs[f.Addr] = name
	}

	start, ok := m.FuncByName(entry)
	if !ok {
		panic("guest: entry function " + entry + " not defined")
	}
	m.EntryPoint = start.Addr
	m.PC = start.Addr
	m.Regs.Write(rv64.RegSP, prof.StackBottom)
	m.Regs.Write(rv64.RegRA, machine.HaltAddr)
	return m
}

// EcallProbe exercises the bare-metal environment call protocol: it
// prints 0xdeadbeef via the print call, terminates via the exit call,
// and would print a complaint through puts if execution ever continued
// past the exit.
func EcallProbe() *machine.Machine {
	a := newAsm()
	msg := a.str("Should not see this!")

	// puts leads the text section: it is intercepted on the predicted
	// fetch address, so no executed code may sit right before it.
	a.fn("puts")
	a.ret()

	// ecall(a0, a1) as a leaf function, the way the C helper compiles.
	a.fn("ecall")
	a.emit(rv64.Ecall())
	a.ret()

	a.fn("main")
	a.emit(rv64.Addi(rv64.RegSP, rv64.RegSP, -16))
	a.emit(rv64.Sd(rv64.RegSP, rv64.RegRA, 8))
	a.emit(rv64.Addi(rv64.RegA0, rv64.RegZero, 1))
	// a1 = 0xdeadbeef, zero-extended.
	a.emit(rv64.Lui(rv64.RegA1, 0xdeadc))
	a.emit(rv64.Addiw(rv64.RegA1, rv64.RegA1, -0x111))
	a.emit(rv64.Slli(rv64.RegA1, rv64.RegA1, 32))
	a.emit(rv64.Srli(rv64.RegA1, rv64.RegA1, 32))
	a.jal(rv64.RegRA, "ecall")
	a.emit(rv64.Addi(rv64.RegA0, rv64.RegZero, 10))
	a.emit(rv64.Addi(rv64.RegA1, rv64.RegZero, 0))
	a.jal(rv64.RegRA, "ecall")
	a.la(rv64.RegA0, msg)
	a.jal(rv64.RegRA, "puts")
	a.emit(rv64.Ld(rv64.RegRA, rv64.RegSP, 8))
	a.emit(rv64.Addi(rv64.RegSP, rv64.RegSP, 16))
	a.emit(rv64.Addi(rv64.RegA0, rv64.RegZero, 0))
	a.ret()
	a.pad()

	return a.build("main", []string{"puts"})
}

// SwitchProbe builds an eight-way switch on the value returned by a
// seed function. Arms 0 through 4 print one digit and break; arm 5
// falls through 6 and 7, so seed 5 prints foo, bar and 7.
func SwitchProbe(seed int) *machine.Machine {
	a := newAsm()
	armStrs := []string{"0", "1", "3", "4", "0"}
	armAddrs := make([]uint64, len(armStrs))
	for i, s := range armStrs {
		armAddrs[i] = a.str(s)
	}
	fooStr := a.str("foo")
	barStr := a.str("bar")
	sevenStr := a.str("7")

	a.fn("puts")
	a.ret()

	a.fn("seed")
	a.emit(rv64.Addi(rv64.RegA0, rv64.RegZero, int32(seed)))
	a.ret()

	a.fn("foo")
	a.emit(rv64.Addi(rv64.RegSP, rv64.RegSP, -16))
	a.emit(rv64.Sd(rv64.RegSP, rv64.RegRA, 8))
	a.la(rv64.RegA0, fooStr)
	a.jal(rv64.RegRA, "puts")
	a.emit(rv64.Ld(rv64.RegRA, rv64.RegSP, 8))
	a.emit(rv64.Addi(rv64.RegSP, rv64.RegSP, 16))
	a.ret()

	a.fn("bar")
	a.emit(rv64.Addi(rv64.RegSP, rv64.RegSP, -16))
	a.emit(rv64.Sd(rv64.RegSP, rv64.RegRA, 8))
	a.la(rv64.RegA0, barStr)
	a.jal(rv64.RegRA, "puts")
	a.emit(rv64.Ld(rv64.RegRA, rv64.RegSP, 8))
	a.emit(rv64.Addi(rv64.RegSP, rv64.RegSP, 16))
	a.ret()

	a.fn("main")
	a.emit(rv64.Addi(rv64.RegSP, rv64.RegSP, -16))
	a.emit(rv64.Sd(rv64.RegSP, rv64.RegRA, 8))
	a.jal(rv64.RegRA, "seed")
	// Compare chain over the case labels.
	for k := 0; k <= 7; k++ {
		a.emit(rv64.Addi(rv64.RegT0, rv64.RegZero, int32(k)))
		a.beq(rv64.RegA0, rv64.RegT0, fmt.Sprintf("case%d", k))
	}
	a.j("end")
	for k := 0; k <= 4; k++ {
		a.label(fmt.Sprintf("case%d", k))
		a.la(rv64.RegA0, armAddrs[k])
		a.jal(rv64.RegRA, "puts")
		a.j("end")
	}
	a.label("case5")
	a.jal(rv64.RegRA, "foo")
	a.label("case6")
	a.jal(rv64.RegRA, "bar")
	a.label("case7")
	a.la(rv64.RegA0, sevenStr)
	a.jal(rv64.RegRA, "puts")
	a.label("end")
	a.emit(rv64.Ld(rv64.RegRA, rv64.RegSP, 8))
	a.emit(rv64.Addi(rv64.RegSP, rv64.RegSP, 16))
	a.emit(rv64.Addi(rv64.RegA0, rv64.RegZero, 0))
	a.ret()
	a.pad()

	return a.build("main", []string{"puts"})
}
