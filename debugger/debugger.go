// Package debugger implements the interactive prompt of the simulator.
// It hooks into a running engine, pausing at fetch points to inspect
// registers, memory and the call chain.
package debugger

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rvtools/rsim/common/lifo"
	"github.com/rvtools/rsim/disassembler"
	"github.com/rvtools/rsim/isa/rv64"
	"github.com/rvtools/rsim/machine"
)

const prompt = "(rsim) "

// frame is one entry of the tracked guest call chain, recorded at the
// call site.
type frame struct {
	caller uint64
}

// Debugger pauses the simulation and serves debugging commands. It
// implements the engine hook interface.
type Debugger struct {
	in  *bufio.Scanner
	out io.Writer

	// pause is the number of fetches to run before prompting again;
	// negative means run until a breakpoint.
	pause  int
	frames lifo.Stack[frame]
}

// New returns a debugger that prompts on the first fetch.
func New(in io.Reader, out io.Writer) *Debugger {
	return &Debugger{in: bufio.NewScanner(in), out: out}
}

// OnFetch pauses for the prompt when stepping is exhausted or a
// breakpoint is hit.
func (d *Debugger) OnFetch(m *machine.Machine, pc uint64) {
	if m.AtBreakpoint(pc) {
		fmt.Fprintf(d.out, "Hit breakpoint at %#x\n", pc)
		d.pause = 0
	}
	if d.pause == 0 {
		d.run(m)
	} else if d.pause > 0 {
		d.pause--
	}
}

// OnRetire tracks the call chain: linking jumps push a frame, the
// return jump pops one.
func (d *Debugger) OnRetire(m *machine.Machine, in rv64.Inst, pc, next uint64) {
	switch {
	case (in.Op == rv64.OpJal || in.Op == rv64.OpJalr) && in.Rd == rv64.RegRA:
		// Calls into intercepted library functions never execute a
		// matching return, so they get no frame.
		if _, ok := m.LibraryFuncs[next]; ok {
			return
		}
		d.frames.Push(frame{caller: pc})
	case in.Op == rv64.OpJalr && in.Rd == rv64.RegZero && in.Rs1 == rv64.RegRA:
		d.frames.Pop()
	}
}

// run serves commands until one resumes execution.
//
//nolint:cyclop
func (d *Debugger) run(m *machine.Machine) {
	for {
		fmt.Fprint(d.out, prompt)
		if !d.in.Scan() {
			// Input exhausted: run to completion.
			d.pause = -1
			return
		}
		tokens := strings.Fields(d.in.Text())
		if len(tokens) == 0 {
			return
		}

		cmd := tokens[0]
		switch {
		case cmd == "h" || cmd == "help":
			d.usage()
		case cmd == "pc":
			d.printPC(m)
		case cmd == "pa":
			fmt.Fprintln(d.out, m.Regs.Dump())
		case cmd == "p":
			d.printReg(m, tokens)
		case strings.HasPrefix(cmd, "x/"):
			d.examine(m, tokens)
		case cmd == "disass":
			d.disass(m, tokens)
		case cmd == "si":
			steps := 1
			if len(tokens) >= 2 {
				n, err := strconv.Atoi(tokens[1])
				if err != nil {
					fmt.Fprintln(d.out, "Bad number.")
					continue
				}
				steps = max(n, 1)
			}
			d.pause = steps - 1
			return
		case cmd == "c":
			d.pause = -1
			return
		case cmd == "bt":
			d.backtrace(m)
		case cmd == "b":
			d.breakCmd(m, tokens)
		case cmd == "ib":
			fmt.Fprintln(d.out, "Breakpoints:")
			for i, addr := range m.Breakpoints {
				fmt.Fprintf(d.out, " %d - %#x\n", i, addr)
			}
		case cmd == "d":
			if len(tokens) < 2 {
				fmt.Fprintln(d.out, "No breakpoint specified.")
				continue
			}
			n, err := strconv.Atoi(tokens[1])
			if err != nil || !m.RemoveBreakpoint(n) {
				fmt.Fprintln(d.out, "Bad breakpoint number.")
			}
		case cmd == "q":
			os.Exit(0)
		default:
			d.usage()
		}
	}
}

func (d *Debugger) usage() {
	fmt.Fprintln(d.out, "h                    - Show this message.")
	fmt.Fprintln(d.out, "pc                   - Print the program counter.")
	fmt.Fprintln(d.out, "p reg                - Print the value of register reg.")
	fmt.Fprintln(d.out, "pa                   - Dump the register file.")
	fmt.Fprintln(d.out, "x/n addr             - Dump n bytes starting from (hex) addr.")
	fmt.Fprintln(d.out, "disass (func)        - Disassemble current or the given function.")
	fmt.Fprintln(d.out, "si (n)               - Step by 1 or n steps.")
	fmt.Fprintln(d.out, "c                    - Continue until paused.")
	fmt.Fprintln(d.out, "bt                   - Print the call chain.")
	fmt.Fprintln(d.out, "b addr/func          - Insert breakpoint at (hex) addr or function.")
	fmt.Fprintln(d.out, "ib                   - Show all breakpoints.")
	fmt.Fprintln(d.out, "d n                  - Delete n-th breakpoint.")
	fmt.Fprintln(d.out, "q                    - Quit rsim.")
}

func (d *Debugger) printPC(m *machine.Machine) {
	data, rem, err := m.Mem.Load(m.PC, 4, true)
	if err != nil || rem != 0 {
		fmt.Fprintf(d.out, "\t%#x ==> Cannot access memory\n", m.PC)
		return
	}
	in := rv64.Decode(binary.LittleEndian.Uint32(data))
	fmt.Fprintf(d.out, "\t%#x ==> %s\n", m.PC, in)
}

func (d *Debugger) printReg(m *machine.Machine, tokens []string) {
	if len(tokens) < 2 {
		fmt.Fprintln(d.out, "No register specified.")
		return
	}
	r, ok := rv64.LookupReg(tokens[1])
	if !ok {
		fmt.Fprintln(d.out, "Unknown register name.")
		return
	}
	fmt.Fprintf(d.out, "\t%s\t: %016x\n", r.ABIName(), m.Regs.Value(r))
}

func (d *Debugger) examine(m *machine.Machine, tokens []string) {
	size, err := strconv.Atoi(strings.TrimPrefix(tokens[0], "x/"))
	if err != nil || size <= 0 {
		fmt.Fprintln(d.out, "Bad length.")
		return
	}
	if len(tokens) < 2 {
		fmt.Fprintln(d.out, "No address specified.")
		return
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(tokens[1]), "0x"), 16, 64)
	if err != nil {
		fmt.Fprintln(d.out, "Bad address format.")
		return
	}

	data, rem, loadErr := m.Mem.Load(addr, size, false)
	if loadErr != nil || rem != 0 {
		fmt.Fprintf(d.out, "Cannot access memory at %#x\n", addr)
		return
	}
	for i, b := range data {
		if i%16 == 0 {
			fmt.Fprintf(d.out, "%x:\t", addr+uint64(i))
		}
		fmt.Fprintf(d.out, "%02x ", b)
		if i%16 == 7 {
			fmt.Fprint(d.out, " ")
		}
		if i%16 == 15 {
			fmt.Fprintln(d.out)
		}
	}
	fmt.Fprintln(d.out)
}

func (d *Debugger) disass(m *machine.Machine, tokens []string) {
	dis := disassembler.New(m)
	if len(tokens) >= 2 {
		f, ok := m.FuncByName(tokens[1])
		if !ok {
			fmt.Fprintln(d.out, "Unknown function.")
			return
		}
		dis.Func(d.out, f)
		return
	}
	f, ok := m.FuncAt(m.PC)
	if !ok {
		fmt.Fprintf(d.out, "PC %#x is outside any known function.\n", m.PC)
		return
	}
	dis.Func(d.out, f)
}

func (d *Debugger) backtrace(m *machine.Machine) {
	cur := "?"
	if f, ok := m.FuncAt(m.PC); ok {
		cur = f.Name
	}
	fmt.Fprintf(d.out, "#0\t%#x in %s\n", m.PC, cur)
	for i, fr := range d.frames.Snapshot() {
		name := "?"
		if f, ok := m.FuncAt(fr.caller); ok {
			name = f.Name
		}
		fmt.Fprintf(d.out, "#%d\t%#x in %s\n", i+1, fr.caller, name)
	}
}

func (d *Debugger) breakCmd(m *machine.Machine, tokens []string) {
	if len(tokens) < 2 {
		fmt.Fprintln(d.out, "No address or function specified.")
		return
	}
	if f, ok := m.FuncByName(tokens[1]); ok {
		m.AddBreakpoint(f.Addr)
		fmt.Fprintf(d.out, "Breakpoint %d at %#x\n", len(m.Breakpoints), f.Addr)
		return
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(tokens[1]), "0x"), 16, 64)
	if err != nil {
		fmt.Fprintln(d.out, "Bad address.")
		return
	}
	m.AddBreakpoint(addr)
	fmt.Fprintf(d.out, "Breakpoint %d at %#x\n", len(m.Breakpoints), addr)
}
