package sim

import (
	"github.com/rs/zerolog"
	"github.com/rvtools/rsim/isa/rv64"
	"github.com/rvtools/rsim/machine"
)

// Pipeline runs the classic five-stage pipeline: up to one instruction
// per stage plus a second execute slot for the two-cycle multiplier.
// Instructions advance rear to front within a cycle so each slot frees
// before the younger instruction asks for it. Data hazards stall in
// decode (or resolve via forwarding when enabled); control hazards
// squash the wrong-path fetches behind the redirecting instruction.
type Pipeline struct {
	M             *machine.Machine
	Log           zerolog.Logger
	Forwarding    bool
	CountFromMain bool
	Hook          Hook
}

// Run executes the loaded program until the pipeline drains and returns
// the run statistics.
//
//nolint:cyclop,funlen,gocognit
func (e *Pipeline) Run() *Report {
	m := e.M
	m.Regs.SetForwarding(e.Forwarding)
	rep := &Report{Engine: "pipeline", EntryPoint: m.EntryPoint}

	startPC := m.EntryPoint
	if e.CountFromMain {
		if f, ok := m.FuncByName("main"); ok {
			startPC = f.Addr
		}
	}
	collecting := false

	e.Log.Debug().Uint64("entry", m.EntryPoint).
		Uint64("sp", m.Regs.Value(rv64.RegSP)).Msg("starting pipelined run")

	var slots [StageWriteback + 1]*Inflight
	// Second execute slot so a multiply's latency overlaps younger work.
	var mulSlot *Inflight

	// squash drops every instruction in a slot before upto, releasing
	// the register locks they hold.
	squash := func(upto Stage) {
		for i := StageFetch; i < upto; i++ {
			if slots[i] != nil {
				slots[i].Squash(m)
				slots[i] = nil
			}
		}
	}

	nextPC := m.PC
	// redirectPC is the address of the last instruction that redirected
	// fetch; library interception resumes right after it.
	redirectPC := m.PC
	empty := false

	for !empty {
		empty = true
		m.Regs.TickForward()

		// Writeback. Never stalls.
		if f := slots[StageWriteback]; f != nil {
			slots[StageWriteback] = nil
			empty = false
			next, done := f.Advance(m, e.Log)
			if !done {
				panic("pipeline: writeback stalled")
			}
			if f.PC() == startPC {
				collecting = true
			}
			if collecting {
				rep.Instructions++
			}
			if e.Hook != nil {
				e.Hook.OnRetire(m, f.Inst(), f.PC(), next)
			}
		}

		// Memory.
		if f := slots[StageMemory]; f != nil {
			slots[StageMemory] = nil
			empty = false
			next, done := f.Advance(m, e.Log)
			if !done {
				slots[StageWriteback] = f
			} else {
				// Bad memory access: halt and drop younger work.
				nextPC = next
				squash(StageMemory)
				if mulSlot != nil {
					mulSlot.Squash(m)
					mulSlot = nil
				}
				if collecting {
					rep.Instructions++
				}
			}
		}

		// Second half of a multiply. Stalls only on a busy memory slot.
		if f := mulSlot; f != nil {
			empty = false
			if slots[StageMemory] == nil {
				mulSlot = nil
				if _, done := f.Advance(m, e.Log); done {
					panic("pipeline: multiply left the pipeline early")
				}
				slots[StageMemory] = f
			}
		}

		// Execute.
		if f := slots[StageExecute]; f != nil {
			empty = false
			switch op := f.Inst().Op; op {
			case rv64.OpMul, rv64.OpMulh:
				// First multiply cycle, then hand over to the second slot.
				if mulSlot == nil {
					slots[StageExecute] = nil
					if _, done := f.Advance(m, e.Log); done {
						panic("pipeline: multiply left the pipeline early")
					}
					mulSlot = f
				}
			case rv64.OpDiv, rv64.OpRem, rv64.OpDivw, rv64.OpRemw:
				// Division blocks the execute slot for its full latency.
				if f.progress < divLatency-1 || slots[StageMemory] == nil {
					slots[StageExecute] = nil
					next, done := f.Advance(m, e.Log)
					switch {
					case done:
						// Divide by zero.
						nextPC = next
						squash(StageExecute)
						if collecting {
							rep.Instructions++
						}
					case f.Stage() == StageMemory:
						slots[StageMemory] = f
					default:
						slots[StageExecute] = f
					}
				}
			default:
				if slots[StageMemory] == nil {
					slots[StageExecute] = nil
					next, done := f.Advance(m, e.Log)
					if done {
						// Taken branch, environment exit or fault:
						// redirect fetch behind it.
						nextPC = next
						redirectPC = f.PC()
						squash(StageExecute)
						if collecting {
							rep.ControlHazards++
							rep.Instructions++
						}
					} else {
						slots[StageMemory] = f
						if op == rv64.OpJal || op == rv64.OpJalr {
							nextPC = f.NextPC()
							redirectPC = f.PC()
							squash(StageExecute)
							if collecting {
								rep.ControlHazards++
							}
						}
					}
				}
			}
		}

		// Decode.
		if f := slots[StageDecode]; f != nil {
			empty = false
			if slots[StageExecute] == nil {
				if _, done := f.Advance(m, e.Log); done {
					panic("pipeline: decode left the pipeline early")
				}
				if f.Stage() == StageExecute {
					slots[StageDecode] = nil
					slots[StageExecute] = f
				} else if collecting {
					// Waiting on a locked register.
					rep.DataHazards++
				}
			}
		}

		// Update PC and fetch. A successor PC on a registered library
		// symbol is simulated host-side; execution resumes after the
		// call instruction that redirected here.
		if name, ok := m.LibraryFuncs[nextPC]; ok {
			empty = false
			stalled := false
			switch name {
			case "puts":
				if a0, ok := m.Regs.Read(rv64.RegA0); !ok {
					// a0 still has an in-flight writer.
					stalled = true
				} else if simulatePuts(m, e.Log, a0) {
					nextPC = redirectPC + 4
				} else {
					nextPC = machine.HaltAddr
				}
			default:
				e.Log.Warn().Str("func", name).Msg("library function is not simulated")
				nextPC = machine.HaltAddr
			}
			if stalled {
				if collecting {
					rep.Cycles++
					rep.DataHazards++
				}
				continue
			}
		}

		m.PC = nextPC
		if m.PC == machine.HaltAddr {
			e.Log.Debug().Msg("fetching the halt address")
		}
		if e.Hook != nil {
			e.Hook.OnFetch(m, m.PC)
		}
		if m.PC != machine.HaltAddr && slots[StageDecode] == nil {
			f := NewInflight()
			next, done := f.Advance(m, e.Log)
			if done {
				// Invalid instruction or unmapped fetch.
				nextPC = next
			} else {
				empty = false
				nextPC = f.NextPC()
				e.Log.Debug().Uint64("pc", f.PC()).Str("inst", f.Inst().String()).Msg("fetch")
				slots[StageDecode] = f
			}
		}

		if collecting {
			rep.Cycles++
		}
	}

	rep.finish(m)
	return rep
}
