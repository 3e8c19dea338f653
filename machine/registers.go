package machine

import (
	"fmt"
	"strings"

	"github.com/rvtools/rsim/isa/rv64"
)

// register is one integer register with the bookkeeping the pipelined
// engine needs: a count of in-flight writers and a one-cycle forwarding
// slot for bypassing values that have been computed but not written back.
type register struct {
	value      uint64
	writers    int
	forwarded  uint64
	hasForward bool
}

// RegisterFile is the RV64 integer register file. x0 is hardwired to
// zero: writes are dropped and reads always succeed.
type RegisterFile struct {
	regs       [rv64.NumRegs]register
	forwarding bool
}

// NewRegisterFile returns a zeroed register file.
func NewRegisterFile(forwarding bool) *RegisterFile {
	return &RegisterFile{forwarding: forwarding}
}

// SetForwarding toggles value forwarding for hazard resolution.
func (rf *RegisterFile) SetForwarding(on bool) {
	rf.forwarding = on
}

// Read returns the register value. ok is false when the register has
// in-flight writers and no forwarded value is available, in which case
// the reader must stall.
func (rf *RegisterFile) Read(r rv64.Reg) (uint64, bool) {
	if r == rv64.RegZero {
		return 0, true
	}
	reg := &rf.regs[r]
	if reg.writers == 0 {
		return reg.value, true
	}
	if rf.forwarding && reg.hasForward {
		return reg.forwarded, true
	}
	return 0, false
}

// Write commits a value to the register.
func (rf *RegisterFile) Write(r rv64.Reg, v uint64) {
	if r == rv64.RegZero {
		return
	}
	rf.regs[r].value = v
}

// Value returns the committed value, ignoring in-flight writers. The
// debugger uses this; engines must go through Read.
func (rf *RegisterFile) Value(r rv64.Reg) uint64 {
	if r == rv64.RegZero {
		return 0
	}
	return rf.regs[r].value
}

// Lock records one more in-flight writer for the register.
func (rf *RegisterFile) Lock(r rv64.Reg) {
	rf.regs[r].writers++
}

// Unlock releases one in-flight writer.
func (rf *RegisterFile) Unlock(r rv64.Reg) {
	reg := &rf.regs[r]
	if reg.writers == 0 {
		panic(fmt.Sprintf("register %s: unlock without matching lock", r))
	}
	reg.writers--
}

// Forward publishes a not-yet-written-back value for the register.
func (rf *RegisterFile) Forward(r rv64.Reg, v uint64) {
	if !rf.forwarding {
		return
	}
	reg := &rf.regs[r]
	reg.forwarded = v
	reg.hasForward = true
}

// TickForward expires the forwarding slots. The pipelined engine calls
// this once per cycle; forwarded values live exactly one cycle.
func (rf *RegisterFile) TickForward() {
	if !rf.forwarding {
		return
	}
	for i := range rf.regs {
		rf.regs[i].hasForward = false
	}
}

// Snapshot returns the committed values of all registers.
func (rf *RegisterFile) Snapshot() [rv64.NumRegs]uint64 {
	var out [rv64.NumRegs]uint64
	for i := range rf.regs {
		out[i] = rf.regs[i].value
	}
	return out
}

// Dump formats the register file, two registers per line.
func (rf *RegisterFile) Dump() string {
	var b strings.Builder
	for i := range rf.regs {
		r := rv64.Reg(i)
		fmt.Fprintf(&b, "%s\t: %016x  ", r.ABIName(), rf.regs[i].value)
		if i%2 == 1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
