// Package machine holds the architectural state of one simulated guest:
// program counter, register file, address space and symbol information.
// Multi-processing and multi-threading are deliberately out of scope, so
// one PC, one register file and one address space suffice.
package machine

import (
	"io"
	"slices"

	"github.com/rvtools/rsim/mem"
)

// HaltAddr is the reserved address that stops the simulation when
// fetched. The loader seeds ra with it so returning from the entry
// function halts cleanly.
const HaltAddr uint64 = 0xFFFFFFFFFFFFFFFE

// Func is one function symbol of the loaded program.
type Func struct {
	Addr uint64
	Size uint64
	Name string
}

// Machine is the full architectural state of a guest program.
type Machine struct {
	EntryPoint uint64
	PC         uint64
	Regs       *RegisterFile
	Mem        *mem.AddressSpace

	// Funcs are the guest's function symbols, used by the debugger
	// and the disassembler.
	Funcs []Func

	// LibraryFuncs maps guest addresses to the names of library
	// functions the engines intercept and simulate host-side.
	LibraryFuncs map[uint64]string

	// Stdout receives the guest's observable output and nothing else.
	Stdout io.Writer

	Breakpoints []uint64
}

// New returns a machine with empty state and guest output discarded.
func New() *Machine {
	return &Machine{
		Regs:         NewRegisterFile(false),
		Mem:          &mem.AddressSpace{},
		LibraryFuncs: make(map[uint64]string),
		Stdout:       io.Discard,
	}
}

// FuncAt returns the function containing addr.
func (m *Machine) FuncAt(addr uint64) (Func, bool) {
	for _, f := range m.Funcs {
		if f.Addr <= addr && addr < f.Addr+f.Size {
			return f, true
		}
	}
	return Func{}, false
}

// FuncByName returns the function with the given symbol name.
func (m *Machine) FuncByName(name string) (Func, bool) {
	for _, f := range m.Funcs {
		if f.Name == name {
			return f, true
		}
	}
	return Func{}, false
}

// AddBreakpoint registers a breakpoint address.
func (m *Machine) AddBreakpoint(addr uint64) {
	m.Breakpoints = append(m.Breakpoints, addr)
}

// RemoveBreakpoint deletes the n-th breakpoint.
func (m *Machine) RemoveBreakpoint(n int) bool {
	if n < 0 || n >= len(m.Breakpoints) {
		return false
	}
	m.Breakpoints = slices.Delete(m.Breakpoints, n, n+1)
	return true
}

// AtBreakpoint reports whether addr has a breakpoint.
func (m *Machine) AtBreakpoint(addr uint64) bool {
	return slices.Contains(m.Breakpoints, addr)
}
