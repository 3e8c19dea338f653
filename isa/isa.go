// Package isa holds the architecture-neutral instruction definitions shared
// by the decoder, the execution engines and the disassembler.
package isa

// Format identifies the encoding format of an instruction.
type Format int

const (
	FormatR Format = iota
	FormatI
	FormatS
	FormatB
	FormatU
	FormatJ
	FormatSystem
	FormatIllegal
)

func (f Format) String() string {
	switch f {
	case FormatR:
		return "R-Type"
	case FormatI:
		return "I-Type"
	case FormatS:
		return "S-Type"
	case FormatB:
		return "B-Type"
	case FormatU:
		return "U-Type"
	case FormatJ:
		return "J-Type"
	case FormatSystem:
		return "System"
	default:
		return "Illegal"
	}
}

// Instruction is the minimal view of a decoded instruction an
// architecture implementation must provide.
type Instruction interface {
	Mnemonic() string
	Format() Format
	String() string
}
