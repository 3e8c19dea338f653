package guest

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvtools/rsim/isa/rv64"
)

func TestEcallProbeLayout(t *testing.T) {
	m := EcallProbe()

	main, ok := m.FuncByName("main")
	require.True(t, ok)
	assert.Equal(t, main.Addr, m.EntryPoint)
	assert.Equal(t, main.Addr, m.PC)

	// puts is registered for interception and holds no other code
	// before it.
	puts, ok := m.FuncByName("puts")
	require.True(t, ok)
	assert.Equal(t, uint64(textBase), puts.Addr)
	assert.Equal(t, "puts", m.LibraryFuncs[puts.Addr])

	// The stack is ready and returning from main halts.
	assert.NotZero(t, m.Regs.Value(rv64.RegSP))
	assert.Equal(t, uint64(0xFFFFFFFFFFFFFFFE), m.Regs.Value(rv64.RegRA))

	// main opens with the standard prologue.
	data, rem, err := m.Mem.Load(main.Addr, 4, true)
	require.NoError(t, err)
	require.Equal(t, 0, rem)
	in := rv64.Decode(binary.LittleEndian.Uint32(data))
	assert.Equal(t, rv64.OpAddi, in.Op)
	assert.Equal(t, rv64.RegSP, in.Rd)
	assert.Equal(t, int32(-16), in.Imm)
}

func TestSwitchProbeLayout(t *testing.T) {
	m := SwitchProbe(5)

	for _, name := range []string{"main", "seed", "foo", "bar", "puts"} {
		f, ok := m.FuncByName(name)
		require.True(t, ok, name)
		assert.NotZero(t, f.Size, name)
	}

	// The whole text section decodes.
	main, ok := m.FuncByName("main")
	require.True(t, ok)
	for pc := uint64(textBase); pc < main.Addr+main.Size; pc += 4 {
		data, rem, err := m.Mem.Load(pc, 4, true)
		require.NoError(t, err, "pc %#x", pc)
		require.Equal(t, 0, rem)
		in := rv64.Decode(binary.LittleEndian.Uint32(data))
		assert.True(t, in.Legal(), "pc %#x: %#x", pc, in.Raw)
	}
}

func TestStringsAreTerminated(t *testing.T) {
	m := SwitchProbe(0)
	s, err := m.Mem.LoadString(dataBase)
	require.NoError(t, err)
	assert.Equal(t, "0", s)
}
