package renderer

import (
	"encoding/json"
	"io"

	"github.com/rvtools/rsim/sim"
)

// JSONRenderer renders reports in JSON format.
type JSONRenderer struct{}

func NewJSONRenderer() Renderer {
	return &JSONRenderer{}
}

func (r *JSONRenderer) Render(report *sim.Report, output io.Writer) error {
	return json.NewEncoder(output).Encode(report)
}

func (r *JSONRenderer) Format() string {
	return "json"
}
