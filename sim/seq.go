package sim

import (
	"github.com/rs/zerolog"
	"github.com/rvtools/rsim/isa/rv64"
	"github.com/rvtools/rsim/machine"
)

// minInstCycles is the sequential engine's floor on the cost of one
// instruction: every instruction walks all five stages even when it
// leaves the pipeline early.
const minInstCycles = 5

// Seq runs one instruction at a time to completion, charging at least
// minInstCycles cycles per instruction. It is the reference engine the
// pipelined results are compared against.
type Seq struct {
	M             *machine.Machine
	Log           zerolog.Logger
	CountFromMain bool
	Hook          Hook
}

// Run executes the loaded program until it halts and returns the run
// statistics.
func (e *Seq) Run() *Report {
	m := e.M
	m.Regs.SetForwarding(false)
	rep := &Report{Engine: "sequential", EntryPoint: m.EntryPoint}

	startPC := m.EntryPoint
	if e.CountFromMain {
		if f, ok := m.FuncByName("main"); ok {
			startPC = f.Addr
		}
	}
	collecting := false

	e.Log.Debug().Uint64("entry", m.EntryPoint).
		Uint64("sp", m.Regs.Value(rv64.RegSP)).Msg("starting sequential run")

	nextPC := m.PC
	for {
		// Library calls are intercepted when the successor PC lands on
		// a registered symbol: simulate the call host-side and resume
		// after the call instruction, which is still m.PC here.
		if name, ok := m.LibraryFuncs[nextPC]; ok {
			switch name {
			case "puts":
				a0, _ := m.Regs.Read(rv64.RegA0)
				if simulatePuts(m, e.Log, a0) {
					nextPC = m.PC + 4
				} else {
					nextPC = machine.HaltAddr
				}
			default:
				e.Log.Warn().Str("func", name).Msg("library function is not simulated")
				nextPC = machine.HaltAddr
			}
			continue
		}

		m.PC = nextPC
		if m.PC == machine.HaltAddr {
			e.Log.Debug().Msg("halt from fetching the halt address")
			break
		}
		if e.Hook != nil {
			e.Hook.OnFetch(m, m.PC)
		}
		if m.PC == startPC {
			collecting = true
		}

		f := NewInflight()
		var (
			cycles uint64
			next   uint64
			done   bool
		)
		for !done {
			next, done = f.Advance(m, e.Log)
			cycles++
			if cycles == 1 && !done {
				e.Log.Debug().Uint64("pc", f.PC()).Str("inst", f.Inst().String()).Msg("issue")
			}
		}
		nextPC = next

		if f.Stage() != StageFetch {
			// The instruction made it past fetch and counts as executed,
			// at no less than the full five-stage cost.
			if cycles < minInstCycles {
				cycles = minInstCycles
			}
			if e.Hook != nil {
				e.Hook.OnRetire(m, f.Inst(), f.PC(), next)
			}
		}
		if collecting {
			rep.Instructions++
			rep.Cycles += cycles
		}
	}

	rep.finish(m)
	return rep
}
