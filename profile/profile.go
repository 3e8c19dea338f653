// Package profile loads the yaml description of the simulated machine.
package profile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MachineProfile describes the machine a guest program runs on: the
// expected ISA, the stack layout and the library functions the
// simulator intercepts instead of executing.
type MachineProfile struct {
	Machine     string `yaml:"machine"`
	XLen        int    `yaml:"xlen"`
	StackBottom uint64 `yaml:"stack_bottom"`
	StackSize   uint64 `yaml:"stack_size"`
	StackAlign  uint64 `yaml:"stack_align"`

	// LibraryFuncs are symbol names whose calls are simulated
	// host-side rather than executed from guest code.
	LibraryFuncs []string `yaml:"library_funcs"`
}

// LoadProfile loads a machine profile from a yaml file.
func LoadProfile(filename string) (*MachineProfile, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile: %w", err)
	}
	defer file.Close()

	var prof MachineProfile
	if err := yaml.NewDecoder(file).Decode(&prof); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	if err := prof.validate(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	return &prof, nil
}

func (p *MachineProfile) validate() error {
	if p.XLen != 64 {
		return fmt.Errorf("unsupported xlen %d, only 64 is supported", p.XLen)
	}
	if p.StackSize == 0 {
		return fmt.Errorf("stack_size must be non-zero")
	}
	if p.StackSize > p.StackBottom {
		return fmt.Errorf("stack (%#x bytes) does not fit below stack_bottom %#x", p.StackSize, p.StackBottom)
	}
	if p.StackAlign == 0 || p.StackAlign&(p.StackAlign-1) != 0 {
		return fmt.Errorf("stack_align %d is not a power of two", p.StackAlign)
	}
	return nil
}

// Default returns the rv64i profile the benchmarks were written for.
func Default() *MachineProfile {
	return &MachineProfile{
		Machine:      "rv64i",
		XLen:         64,
		StackBottom:  0x4000000,
		StackSize:    0x100000,
		StackAlign:   16,
		LibraryFuncs: []string{"puts", "printf"},
	}
}
