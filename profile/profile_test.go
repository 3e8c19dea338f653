package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "machine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadProfile(t *testing.T) {
	path := writeProfile(t, `
machine: rv64i
xlen: 64
stack_bottom: 0x4000000
stack_size: 0x100000
stack_align: 16
library_funcs:
  - puts
  - printf
`)

	prof, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "rv64i", prof.Machine)
	assert.Equal(t, 64, prof.XLen)
	assert.Equal(t, uint64(0x4000000), prof.StackBottom)
	assert.Equal(t, uint64(0x100000), prof.StackSize)
	assert.Equal(t, uint64(16), prof.StackAlign)
	assert.Equal(t, []string{"puts", "printf"}, prof.LibraryFuncs)
}

func TestLoadProfileErrors(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{
			name:     "bad yaml",
			contents: "machine: [",
		},
		{
			name:     "wrong xlen",
			contents: "xlen: 32\nstack_bottom: 0x4000000\nstack_size: 0x1000\nstack_align: 16\n",
		},
		{
			name:     "zero stack",
			contents: "xlen: 64\nstack_bottom: 0x4000000\nstack_size: 0\nstack_align: 16\n",
		},
		{
			name:     "stack does not fit",
			contents: "xlen: 64\nstack_bottom: 0x1000\nstack_size: 0x2000\nstack_align: 16\n",
		},
		{
			name:     "bad alignment",
			contents: "xlen: 64\nstack_bottom: 0x4000000\nstack_size: 0x1000\nstack_align: 12\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadProfile(writeProfile(t, tt.contents))
			assert.Error(t, err)
		})
	}

	_, err := LoadProfile(filepath.Join(t.TempDir(), "nosuch.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	prof := Default()
	require.NoError(t, prof.validate())
	assert.Contains(t, prof.LibraryFuncs, "puts")
}
