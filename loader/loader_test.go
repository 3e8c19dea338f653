package loader

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvtools/rsim/isa/rv64"
	"github.com/rvtools/rsim/machine"
	"github.com/rvtools/rsim/profile"
	"github.com/rvtools/rsim/sim"
)

type elfBuilder struct {
	buf []byte
}

func (b *elfBuilder) u16(v uint16) { b.buf = binary.LittleEndian.AppendUint16(b.buf, v) }
func (b *elfBuilder) u32(v uint32) { b.buf = binary.LittleEndian.AppendUint32(b.buf, v) }
func (b *elfBuilder) u64(v uint64) { b.buf = binary.LittleEndian.AppendUint64(b.buf, v) }

func (b *elfBuilder) padTo(off int) {
	for len(b.buf) < off {
		b.buf = append(b.buf, 0)
	}
}

// sym appends one Elf64_Sym.
func (b *elfBuilder) sym(name uint32, info byte, shndx uint16, value, size uint64) {
	b.u32(name)
	b.buf = append(b.buf, info, 0)
	b.u16(shndx)
	b.u64(value)
	b.u64(size)
}

// shdr appends one Elf64_Shdr.
func (b *elfBuilder) shdr(name, typ uint32, off, size uint64, link, info uint32, align, entsize uint64) {
	b.u32(name)
	b.u32(typ)
	b.u64(0) // flags
	b.u64(0) // addr
	b.u64(off)
	b.u64(size)
	b.u32(link)
	b.u32(info)
	b.u64(align)
	b.u64(entsize)
}

// buildELF assembles a minimal static RV64 executable: a puts stub at
// 0x10000 and a main at 0x10004 that prints 42 through the environment
// call protocol and exits. The load segment's memsz exceeds its filesz
// so the zero-filled tail is exercised too.
func buildELF() []byte {
	text := []uint32{
		rv64.Jalr(rv64.X0, rv64.X1, 0), // puts stub, intercepted
		rv64.Addi(rv64.X10, rv64.X0, 1),
		rv64.Addi(rv64.X11, rv64.X0, 42),
		rv64.Ecall(),
		rv64.Addi(rv64.X10, rv64.X0, 10),
		rv64.Ecall(),
	}

	const (
		phOff     = 64
		textOff   = 120
		symtabOff = 144
		strtabOff = 216
		shstrOff  = 227
		shOff     = 256
	)

	b := &elfBuilder{}
	// ELF header.
	b.buf = append(b.buf, 0x7F, 'E', 'L', 'F', 2, 1, 1)
	b.padTo(16)
	b.u16(2)   // ET_EXEC
	b.u16(243) // EM_RISCV
	b.u32(1)
	b.u64(0x10000) // e_entry, overridden by the main symbol
	b.u64(phOff)
	b.u64(shOff)
	b.u32(0)
	b.u16(64) // ehsize
	b.u16(56) // phentsize
	b.u16(1)  // phnum
	b.u16(64) // shentsize
	b.u16(4)  // shnum
	b.u16(3)  // shstrndx

	// Program header: one PT_LOAD, R+X.
	b.u32(1)
	b.u32(5)
	b.u64(textOff)
	b.u64(0x10000)
	b.u64(0x10000)
	b.u64(uint64(4 * len(text)))      // filesz
	b.u64(uint64(4*len(text)) + 16)   // memsz, zero-filled tail
	b.u64(0x1000)                     // align

	b.padTo(textOff)
	for _, w := range text {
		b.u32(w)
	}

	b.padTo(symtabOff)
	b.sym(0, 0, 0, 0, 0)
	b.sym(1, 0x12, 1, 0x10004, 20) // main, STB_GLOBAL|STT_FUNC
	b.sym(6, 0x12, 1, 0x10000, 4)  // puts

	b.padTo(strtabOff)
	b.buf = append(b.buf, "\x00main\x00puts\x00"...)

	b.padTo(shstrOff)
	b.buf = append(b.buf, "\x00.symtab\x00.strtab\x00.shstrtab\x00"...)

	b.padTo(shOff)
	b.shdr(0, 0, 0, 0, 0, 0, 0, 0)
	b.shdr(1, 2, symtabOff, 72, 2, 1, 8, 24) // .symtab
	b.shdr(9, 3, strtabOff, 11, 0, 0, 1, 0)  // .strtab
	b.shdr(17, 3, shstrOff, 27, 0, 0, 1, 0)  // .shstrtab
	return b.buf
}

func writeELF(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "probe.elf")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoad(t *testing.T) {
	prof := profile.Default()
	m, err := Load(writeELF(t, buildELF()), prof, zerolog.Nop())
	require.NoError(t, err)

	// Execution starts at main, not at e_entry.
	assert.Equal(t, uint64(0x10004), m.EntryPoint)
	assert.Equal(t, uint64(0x10004), m.PC)

	f, ok := m.FuncByName("main")
	require.True(t, ok)
	assert.Equal(t, uint64(0x10004), f.Addr)
	assert.Equal(t, uint64(20), f.Size)
	assert.Equal(t, "puts", m.LibraryFuncs[0x10000])

	assert.Equal(t, prof.StackBottom, m.Regs.Value(rv64.RegSP))
	assert.Equal(t, machine.HaltAddr, m.Regs.Value(rv64.RegRA))

	// The segment tail beyond filesz is mapped and zeroed.
	data, rem, err := m.Mem.Load(0x10018, 8, false)
	require.NoError(t, err)
	require.Equal(t, 0, rem)
	assert.Equal(t, make([]byte, 8), data)
}

func TestLoadedProgramRuns(t *testing.T) {
	m, err := Load(writeELF(t, buildELF()), profile.Default(), zerolog.Nop())
	require.NoError(t, err)

	var out bytes.Buffer
	m.Stdout = &out
	rep := (&sim.Seq{M: m, Log: zerolog.Nop()}).Run()

	assert.Equal(t, "0x2a\n", out.String())
	assert.NotZero(t, rep.Instructions)
}

func TestLoadRejectsForeignBinaries(t *testing.T) {
	log := zerolog.Nop()
	prof := profile.Default()

	_, err := Load(filepath.Join(t.TempDir(), "nosuch"), prof, log)
	assert.Error(t, err)

	_, err = Load(writeELF(t, []byte("not an elf at all")), prof, log)
	assert.Error(t, err)

	// x86-64 instead of RISC-V.
	data := buildELF()
	binary.LittleEndian.PutUint16(data[18:], 62)
	_, err = Load(writeELF(t, data), prof, log)
	assert.ErrorContains(t, err, "machine")

	// Relocatable object instead of a static executable.
	data = buildELF()
	binary.LittleEndian.PutUint16(data[16:], 1)
	_, err = Load(writeELF(t, data), prof, log)
	assert.Error(t, err)
}
