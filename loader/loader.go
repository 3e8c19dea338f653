// Package loader maps a statically linked RV64 ELF executable into a
// fresh machine: PT_LOAD segments become VMAs, function symbols feed
// the debugger, and the stack described by the machine profile is
// placed below the configured bottom address.
package loader

import (
	"debug/elf"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rvtools/rsim/isa/rv64"
	"github.com/rvtools/rsim/machine"
	"github.com/rvtools/rsim/mem"
	"github.com/rvtools/rsim/profile"
)

// Load reads the executable at path and returns a machine ready to run.
//
// Execution starts at main() rather than _start(): the C runtime that
// precedes main is library code the simulator intercepts instead of
// executing, and the profile's library functions are registered for
// interception the same way. Returning from main lands on the halt
// address seeded into ra.
func Load(path string, prof *profile.MachineProfile, log zerolog.Logger) (*machine.Machine, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open executable: %w", err)
	}
	defer f.Close()

	if err := checkHeader(f); err != nil {
		return nil, err
	}

	m := machine.New()
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		data := make([]byte, p.Memsz)
		if _, err := p.ReadAt(data[:p.Filesz], 0); err != nil {
			return nil, fmt.Errorf("failed to read segment at %#x: %w", p.Vaddr, err)
		}
		m.Mem.Map(&mem.VMA{
			Low:        p.Vaddr,
			Size:       p.Memsz,
			Readable:   p.Flags&elf.PF_R != 0,
			Writable:   p.Flags&elf.PF_W != 0,
			Executable: p.Flags&elf.PF_X != 0,
			Data:       data,
		})
		log.Debug().Uint64("low", p.Vaddr).Uint64("size", p.Memsz).
			Str("flags", p.Flags.String()).Msg("mapped segment")
	}

	entry := f.Entry
	library := make(map[string]bool, len(prof.LibraryFuncs))
	for _, name := range prof.LibraryFuncs {
		library[name] = true
	}

	syms, err := f.Symbols()
	if err != nil {
		return nil, fmt.Errorf("failed to read symbols: %w", err)
	}
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC {
			continue
		}
		m.Funcs = append(m.Funcs, machine.Func{Addr: s.Value, Size: s.Size, Name: s.Name})
		if s.Name == "main" {
			entry = s.Value
		}
		if library[s.Name] {
			m.LibraryFuncs[s.Value] = s.Name
			log.Debug().Str("func", s.Name).Uint64("addr", s.Value).
				Msg("registered library function")
		}
	}

	// The stack grows down from the profile's bottom address.
	m.Mem.Map(&mem.VMA{
		Low:      prof.StackBottom - prof.StackSize,
		Size:     prof.StackSize,
		Readable: true,
		Writable: true,
		Data:     make([]byte, prof.StackSize),
	})

	m.EntryPoint = entry
	m.PC = entry
	m.Regs.Write(rv64.RegSP, prof.StackBottom&^(prof.StackAlign-1))
	m.Regs.Write(rv64.RegRA, machine.HaltAddr)

	log.Debug().Uint64("entry", entry).Int("funcs", len(m.Funcs)).Msg("loaded executable")
	return m, nil
}

func checkHeader(f *elf.File) error {
	if f.Class != elf.ELFCLASS64 {
		return fmt.Errorf("unsupported ELF class %s, want 64-bit", f.Class)
	}
	if f.Data != elf.ELFDATA2LSB {
		return fmt.Errorf("unsupported byte order %s, want little-endian", f.Data)
	}
	if f.Machine != elf.EM_RISCV {
		return fmt.Errorf("unsupported machine %s, want RISC-V", f.Machine)
	}
	if f.Type != elf.ET_EXEC {
		return fmt.Errorf("unsupported ELF type %s, want a static executable", f.Type)
	}
	return nil
}
