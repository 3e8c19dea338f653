package sim

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvtools/rsim/guest"
	"github.com/rvtools/rsim/isa/rv64"
	"github.com/rvtools/rsim/machine"
	"github.com/rvtools/rsim/mem"
)

// rawMachine maps the given instruction words at 0x10000 and points the
// machine at them, padded so the pipelined fetch-ahead stays mapped.
func rawMachine(words []uint32, vmas ...*mem.VMA) *machine.Machine {
	words = append(words, rv64.Nop(), rv64.Nop(), rv64.Nop(), rv64.Nop())
	text := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(text[4*i:], w)
	}

	m := machine.New()
	m.Mem.Map(&mem.VMA{
		Low: 0x10000, Size: uint64(len(text)),
		Readable: true, Executable: true, Data: text,
	})
	for _, v := range vmas {
		m.Mem.Map(v)
	}
	m.EntryPoint = 0x10000
	m.PC = 0x10000
	m.Regs.Write(rv64.RegRA, machine.HaltAddr)
	return m
}

// engines runs fn once per engine configuration against a fresh machine.
func engines(t *testing.T, build func() *machine.Machine, fn func(t *testing.T, rep *Report, out string)) {
	t.Helper()
	run := map[string]func(m *machine.Machine) *Report{
		"sequential": func(m *machine.Machine) *Report {
			return (&Seq{M: m, Log: zerolog.Nop()}).Run()
		},
		"pipeline": func(m *machine.Machine) *Report {
			return (&Pipeline{M: m, Log: zerolog.Nop()}).Run()
		},
		"pipeline forwarding": func(m *machine.Machine) *Report {
			return (&Pipeline{M: m, Log: zerolog.Nop(), Forwarding: true}).Run()
		},
	}
	for name, r := range run {
		t.Run(name, func(t *testing.T) {
			m := build()
			var out bytes.Buffer
			m.Stdout = &out
			fn(t, r(m), out.String())
		})
	}
}

func TestEcallProbeSequential(t *testing.T) {
	m := guest.EcallProbe()
	var out bytes.Buffer
	m.Stdout = &out

	rep := (&Seq{M: m, Log: zerolog.Nop()}).Run()

	require.Equal(t, "0xdeadbeef\n", out.String())
	assert.Equal(t, "sequential", rep.Engine)
	require.NotZero(t, rep.Instructions)
	// Without multi-cycle units every instruction costs the full five
	// stages.
	assert.Equal(t, 5.0, rep.CPI)
	assert.Equal(t, rep.Instructions*5, rep.Cycles)
}

func TestEcallProbePipeline(t *testing.T) {
	seq := (&Seq{M: guest.EcallProbe(), Log: zerolog.Nop()}).Run()

	for _, forwarding := range []bool{false, true} {
		t.Run(fmt.Sprintf("forwarding=%v", forwarding), func(t *testing.T) {
			m := guest.EcallProbe()
			var out bytes.Buffer
			m.Stdout = &out

			rep := (&Pipeline{M: m, Log: zerolog.Nop(), Forwarding: forwarding}).Run()

			require.Equal(t, "0xdeadbeef\n", out.String())
			assert.Equal(t, "pipeline", rep.Engine)
			assert.Equal(t, seq.Instructions, rep.Instructions)
			assert.Less(t, rep.Cycles, seq.Cycles, "overlap must beat the sequential engine")
		})
	}
}

func TestSwitchProbe(t *testing.T) {
	tests := []struct {
		seed int
		want string
	}{
		{seed: 0, want: "0\n"},
		{seed: 1, want: "1\n"},
		{seed: 2, want: "3\n"},
		{seed: 3, want: "4\n"},
		{seed: 4, want: "0\n"},
		// Arm 5 falls through 6 and 7.
		{seed: 5, want: "foo\nbar\n7\n"},
		{seed: 6, want: "bar\n7\n"},
		{seed: 7, want: "7\n"},
		// No matching arm, no default.
		{seed: 9, want: ""},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("seed=%d", tt.seed), func(t *testing.T) {
			engines(t, func() *machine.Machine { return guest.SwitchProbe(tt.seed) },
				func(t *testing.T, rep *Report, out string) {
					assert.Equal(t, tt.want, out)
					assert.NotZero(t, rep.Instructions)
				})
		})
	}
}

func TestSwitchProbeHazardCounters(t *testing.T) {
	m := guest.SwitchProbe(5)
	var out bytes.Buffer
	m.Stdout = &out
	blocking := (&Pipeline{M: m, Log: zerolog.Nop()}).Run()

	assert.NotZero(t, blocking.ControlHazards, "calls and taken branches redirect fetch")
	assert.NotZero(t, blocking.DataHazards, "the prologue reads sp right after adjusting it")

	m = guest.SwitchProbe(5)
	m.Stdout = &out
	forwarding := (&Pipeline{M: m, Log: zerolog.Nop(), Forwarding: true}).Run()

	assert.Less(t, forwarding.DataHazards, blocking.DataHazards)
	assert.Less(t, forwarding.Cycles, blocking.Cycles)
}

func TestMultiply(t *testing.T) {
	build := func() *machine.Machine {
		return rawMachine([]uint32{
			rv64.Addi(rv64.X5, rv64.X0, 6),
			rv64.Addi(rv64.X6, rv64.X0, 7),
			rv64.Mul(rv64.X11, rv64.X5, rv64.X6),
			rv64.Addi(rv64.X10, rv64.X0, 1),
			rv64.Ecall(),
			rv64.Addi(rv64.X10, rv64.X0, 10),
			rv64.Ecall(),
		})
	}

	engines(t, build, func(t *testing.T, rep *Report, out string) {
		assert.Equal(t, "0x2a\n", out)
	})

	// The two-cycle multiplier pushes the sequential engine above the
	// five-cycle floor.
	rep := (&Seq{M: build(), Log: zerolog.Nop()}).Run()
	assert.Greater(t, rep.CPI, 5.0)
}

func TestDivide(t *testing.T) {
	build := func() *machine.Machine {
		return rawMachine([]uint32{
			rv64.Addi(rv64.X5, rv64.X0, 84),
			rv64.Addi(rv64.X6, rv64.X0, 2),
			rv64.Div(rv64.X11, rv64.X5, rv64.X6),
			rv64.Addi(rv64.X10, rv64.X0, 1),
			rv64.Ecall(),
			rv64.Addi(rv64.X10, rv64.X0, 10),
			rv64.Ecall(),
		})
	}

	engines(t, build, func(t *testing.T, rep *Report, out string) {
		assert.Equal(t, "0x2a\n", out)
	})

	// Division occupies the unit for its full latency.
	rep := (&Seq{M: build(), Log: zerolog.Nop()}).Run()
	assert.Greater(t, rep.Cycles, uint64(divLatency))
}

func TestDivideByZeroHalts(t *testing.T) {
	build := func() *machine.Machine {
		return rawMachine([]uint32{
			rv64.Addi(rv64.X5, rv64.X0, 7),
			rv64.Addi(rv64.X6, rv64.X0, 0),
			rv64.Div(rv64.X11, rv64.X5, rv64.X6),
			rv64.Addi(rv64.X10, rv64.X0, 1),
			rv64.Ecall(),
		})
	}

	engines(t, build, func(t *testing.T, rep *Report, out string) {
		assert.Empty(t, out, "nothing past the faulting divide may run")
		assert.Zero(t, rep.Registers[rv64.X11])
	})
}

func TestLoadStore(t *testing.T) {
	build := func() *machine.Machine {
		return rawMachine([]uint32{
			rv64.Lui(rv64.X6, 0x30), // 0x30000
			rv64.Addi(rv64.X5, rv64.X0, 0x123),
			rv64.Sd(rv64.X6, rv64.X5, 8),
			rv64.Ld(rv64.X11, rv64.X6, 8),
			rv64.Addi(rv64.X10, rv64.X0, 1),
			rv64.Ecall(),
			rv64.Addi(rv64.X10, rv64.X0, 10),
			rv64.Ecall(),
		}, &mem.VMA{
			Low: 0x30000, Size: 64,
			Readable: true, Writable: true, Data: make([]byte, 64),
		})
	}

	engines(t, build, func(t *testing.T, rep *Report, out string) {
		assert.Equal(t, "0x123\n", out)
	})
}

func TestMemoryFaultHalts(t *testing.T) {
	build := func() *machine.Machine {
		return rawMachine([]uint32{
			rv64.Lui(rv64.X6, 0x999), // unmapped
			rv64.Sd(rv64.X6, rv64.X0, 0),
			rv64.Addi(rv64.X10, rv64.X0, 1),
			rv64.Addi(rv64.X11, rv64.X0, 0x55),
			rv64.Ecall(),
		})
	}

	engines(t, build, func(t *testing.T, rep *Report, out string) {
		assert.Empty(t, out)
	})
}

func TestNewlibSyscalls(t *testing.T) {
	// exit via the a7 convention halts cleanly.
	m := rawMachine([]uint32{
		rv64.Addi(rv64.X17, rv64.X0, 93),
		rv64.Addi(rv64.X10, rv64.X0, 0),
		rv64.Ecall(),
	})
	var out bytes.Buffer
	m.Stdout = &out
	rep := (&Seq{M: m, Log: zerolog.Nop()}).Run()
	assert.Empty(t, out.String())
	assert.Equal(t, uint64(3), rep.Instructions)

	// A recognized but unsimulated syscall stops the run before any
	// later instruction executes.
	m = rawMachine([]uint32{
		rv64.Addi(rv64.X17, rv64.X0, 64), // write
		rv64.Addi(rv64.X10, rv64.X0, 1),
		rv64.Ecall(),
		rv64.Addi(rv64.X11, rv64.X0, 0x55),
		rv64.Ecall(),
	})
	m.Stdout = &out
	(&Seq{M: m, Log: zerolog.Nop()}).Run()
	assert.Empty(t, out.String())
}

type countingHook struct {
	fetches int
	retires int
}

func (h *countingHook) OnFetch(*machine.Machine, uint64) { h.fetches++ }

func (h *countingHook) OnRetire(*machine.Machine, rv64.Inst, uint64, uint64) { h.retires++ }

func TestSequentialHook(t *testing.T) {
	h := &countingHook{}
	rep := (&Seq{M: guest.EcallProbe(), Log: zerolog.Nop(), Hook: h}).Run()

	assert.Equal(t, int(rep.Instructions), h.retires)
	assert.Equal(t, h.retires, h.fetches)
}
