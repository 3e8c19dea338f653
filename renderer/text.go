// Package renderer provides a way to render run reports in different
// formats.
package renderer

import (
	"fmt"
	"io"
	"strings"

	"github.com/rvtools/rsim/isa/rv64"
	"github.com/rvtools/rsim/sim"
)

// TextRenderer formats the run report as structured text.
type TextRenderer struct{}

// NewTextRenderer creates a new instance of TextRenderer.
func NewTextRenderer() Renderer {
	return &TextRenderer{}
}

// Render formats and writes the run report.
func (r *TextRenderer) Render(report *sim.Report, output io.Writer) error {
	var b strings.Builder

	b.WriteString("==============================\n")
	b.WriteString("Simulation Report\n")
	b.WriteString("==============================\n\n")
	fmt.Fprintf(&b, "Engine:       %s\n", report.Engine)
	fmt.Fprintf(&b, "Entry point:  %#x\n\n", report.EntryPoint)
	fmt.Fprintf(&b, "Instructions: %d\n", report.Instructions)
	fmt.Fprintf(&b, "Cycles:       %d\n", report.Cycles)
	fmt.Fprintf(&b, "CPI:          %.3f\n", report.CPI)
	if report.Engine == "pipeline" {
		fmt.Fprintf(&b, "Data hazards (stalls in decode):    %d\n", report.DataHazards)
		fmt.Fprintf(&b, "Control hazards (bubbles inserted): %d\n", report.ControlHazards)
	}

	b.WriteString("\nRegisters:\n")
	for i, v := range report.Registers {
		fmt.Fprintf(&b, "%s\t: %016x  ", rv64.Reg(i).ABIName(), v)
		if i%2 == 1 {
			b.WriteByte('\n')
		}
	}

	_, err := output.Write([]byte(b.String()))
	return err
}

// Format returns the format type.
func (r *TextRenderer) Format() string {
	return "text"
}
