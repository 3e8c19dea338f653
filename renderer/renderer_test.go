package renderer

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvtools/rsim/sim"
)

func sampleReport() *sim.Report {
	return &sim.Report{
		Engine:         "pipeline",
		EntryPoint:     0x10000,
		Instructions:   200,
		Cycles:         300,
		CPI:            1.5,
		DataHazards:    12,
		ControlHazards: 34,
	}
}

func TestNewRenderer(t *testing.T) {
	r, err := NewRenderer("")
	require.NoError(t, err)
	assert.Equal(t, "text", r.Format())

	r, err = NewRenderer("text")
	require.NoError(t, err)
	assert.Equal(t, "text", r.Format())

	r, err = NewRenderer("json")
	require.NoError(t, err)
	assert.Equal(t, "json", r.Format())

	_, err = NewRenderer("xml")
	assert.Error(t, err)
}

func TestTextRender(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, NewTextRenderer().Render(sampleReport(), &out))

	s := out.String()
	assert.Contains(t, s, "Simulation Report")
	assert.Contains(t, s, "Engine:       pipeline")
	assert.Contains(t, s, "Entry point:  0x10000")
	assert.Contains(t, s, "Instructions: 200")
	assert.Contains(t, s, "CPI:          1.500")
	assert.Contains(t, s, "Data hazards")
	assert.Contains(t, s, "Control hazards")
	assert.Contains(t, s, "sp\t")
}

func TestTextRenderSequentialSkipsHazards(t *testing.T) {
	rep := sampleReport()
	rep.Engine = "sequential"

	var out bytes.Buffer
	require.NoError(t, NewTextRenderer().Render(rep, &out))
	assert.NotContains(t, out.String(), "hazards")
}

func TestJSONRender(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, NewJSONRenderer().Render(sampleReport(), &out))

	var got sim.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, *sampleReport(), got)
}
