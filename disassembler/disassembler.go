// Package disassembler renders decoded listings of guest memory.
package disassembler

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/rvtools/rsim/isa/rv64"
	"github.com/rvtools/rsim/machine"
)

// Disassembler lists the functions of a loaded machine. The current PC
// is marked so the debugger can show where execution stands.
type Disassembler struct {
	m *machine.Machine
}

func New(m *machine.Machine) *Disassembler {
	return &Disassembler{m: m}
}

// Func writes the listing of one function.
func (d *Disassembler) Func(w io.Writer, f machine.Func) {
	fmt.Fprintf(w, "\nDisassembly of <%s>:\n", f.Name)
	for cur := uint64(0); cur < f.Size; {
		pc := f.Addr + cur
		data, rem, err := d.m.Mem.Load(pc, 4, true)
		if err != nil || rem != 0 {
			fmt.Fprintf(w, "cannot access memory at %#x\n", pc)
			return
		}
		in := rv64.Decode(binary.LittleEndian.Uint32(data))
		marker := ""
		if pc == d.m.PC {
			marker = "===>"
		}
		fmt.Fprintf(w, "%s\t%x:\t%s\n", marker, pc, in)
		if in.Size == 0 {
			return
		}
		cur += uint64(in.Size)
	}
}

// Program writes the listing of every function with a size, ordered by
// address.
func (d *Disassembler) Program(w io.Writer) {
	funcs := make([]machine.Func, 0, len(d.m.Funcs))
	for _, f := range d.m.Funcs {
		if f.Size > 0 {
			funcs = append(funcs, f)
		}
	}
	sort.Slice(funcs, func(i, j int) bool { return funcs[i].Addr < funcs[j].Addr })
	for _, f := range funcs {
		d.Func(w, f)
	}
}
