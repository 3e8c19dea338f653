package renderer

import (
	"fmt"
	"io"

	"github.com/rvtools/rsim/sim"
)

// Renderer defines the interface for rendering run reports in
// different formats.
type Renderer interface {
	// Render writes the report in the renderer's format.
	Render(report *sim.Report, output io.Writer) error

	// Format returns the name of the output format (e.g., "json", "text").
	Format() string
}

// NewRenderer returns the renderer for the named format.
func NewRenderer(format string) (Renderer, error) {
	switch format {
	case "", "text":
		return NewTextRenderer(), nil
	case "json":
		return NewJSONRenderer(), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
