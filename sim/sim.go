package sim

import (
	"github.com/rs/zerolog"
	"github.com/rvtools/rsim/isa/rv64"
	"github.com/rvtools/rsim/machine"
)

// Report is the outcome of one simulation run.
type Report struct {
	Engine       string `json:"engine"`
	EntryPoint   uint64 `json:"entry_point"`
	Instructions uint64 `json:"instructions"`
	Cycles       uint64 `json:"cycles"`

	// CPI is cycles per instruction over the measured window.
	CPI float64 `json:"cpi"`

	// Hazard counters, pipelined engine only.
	DataHazards    uint64 `json:"data_hazards"`
	ControlHazards uint64 `json:"control_hazards"`

	// Registers is the committed register file at halt, indexed by
	// register number.
	Registers [rv64.NumRegs]uint64 `json:"registers"`
}

func (r *Report) finish(m *machine.Machine) {
	if r.Instructions > 0 {
		r.CPI = float64(r.Cycles) / float64(r.Instructions)
	}
	r.Registers = m.Regs.Snapshot()
}

// Hook observes a running engine. The debugger implements it; a nil
// hook is ignored.
type Hook interface {
	// OnFetch is called once per fetch opportunity with the PC about
	// to be fetched, before the instruction enters the pipeline.
	OnFetch(m *machine.Machine, pc uint64)

	// OnRetire is called when an instruction leaves the pipeline
	// normally, with its decoded form, its address and its successor.
	OnRetire(m *machine.Machine, in rv64.Inst, pc, next uint64)
}

// simulatePuts prints the NUL-terminated guest string at addr plus a
// newline, matching the libc contract. It reports whether the string
// was readable.
func simulatePuts(m *machine.Machine, log zerolog.Logger, addr uint64) bool {
	s, err := m.Mem.LoadString(addr)
	if err != nil {
		log.Warn().Uint64("addr", addr).Err(err).Msg("puts: cannot read string")
		return false
	}
	m.Stdout.Write([]byte(s + "\n"))
	return true
}
