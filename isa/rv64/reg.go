package rv64

import "strings"

// Reg is an RV64I integer register index (x0..x31).
type Reg uint8

const (
	X0 Reg = iota
	X1
	X2
	X3
	X4
	X5
	X6
	X7
	X8
	X9
	X10
	X11
	X12
	X13
	X14
	X15
	X16
	X17
	X18
	X19
	X20
	X21
	X22
	X23
	X24
	X25
	X26
	X27
	X28
	X29
	X30
	X31
)

// ABI aliases for the registers the simulator itself cares about.
const (
	RegZero = X0
	RegRA   = X1
	RegSP   = X2
	RegT0   = X5
	RegS0   = X8
	RegS1   = X9
	RegA0   = X10
	RegA1   = X11
	RegA7   = X17
)

// NumRegs is the size of the integer register file.
const NumRegs = 32

var abiNames = [NumRegs]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// ABIName returns the calling-convention name of the register.
func (r Reg) ABIName() string {
	if int(r) < len(abiNames) {
		return abiNames[r]
	}
	return "??"
}

func (r Reg) String() string {
	return r.ABIName()
}

// LookupReg resolves an ABI register name (case-insensitive) to its index.
func LookupReg(name string) (Reg, bool) {
	for i, abi := range abiNames {
		if strings.EqualFold(name, abi) {
			return Reg(i), true
		}
	}
	return 0, false
}
