package machine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuncLookup(t *testing.T) {
	m := New()
	m.Funcs = []Func{
		{Addr: 0x1000, Size: 0x20, Name: "main"},
		{Addr: 0x1020, Size: 0x10, Name: "helper"},
	}

	f, ok := m.FuncAt(0x1004)
	require.True(t, ok)
	assert.Equal(t, "main", f.Name)

	f, ok = m.FuncAt(0x1020)
	require.True(t, ok)
	assert.Equal(t, "helper", f.Name)

	_, ok = m.FuncAt(0x1030)
	assert.False(t, ok)

	f, ok = m.FuncByName("helper")
	require.True(t, ok)
	assert.Equal(t, uint64(0x1020), f.Addr)

	_, ok = m.FuncByName("nosuch")
	assert.False(t, ok)
}

func TestBreakpoints(t *testing.T) {
	m := New()
	m.AddBreakpoint(0x1000)
	m.AddBreakpoint(0x2000)

	assert.True(t, m.AtBreakpoint(0x1000))
	assert.False(t, m.AtBreakpoint(0x3000))

	assert.True(t, m.RemoveBreakpoint(0))
	assert.False(t, m.AtBreakpoint(0x1000))
	assert.True(t, m.AtBreakpoint(0x2000))

	assert.False(t, m.RemoveBreakpoint(5))
	assert.False(t, m.RemoveBreakpoint(-1))
}
