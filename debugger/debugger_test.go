package debugger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/rvtools/rsim/guest"
	"github.com/rvtools/rsim/sim"
)

func TestScriptedSession(t *testing.T) {
	script := strings.Join([]string{
		"pc",
		"p sp",
		"b ecall",
		"ib",
		"c",
		"bt",
		"si 2",
		"d 0",
		"c",
	}, "\n")

	m := guest.EcallProbe()
	var guestOut, dbgOut bytes.Buffer
	m.Stdout = &guestOut

	d := New(strings.NewReader(script), &dbgOut)
	(&sim.Seq{M: m, Log: zerolog.Nop(), Hook: d}).Run()

	// The session still runs to completion.
	assert.Equal(t, "0xdeadbeef\n", guestOut.String())

	s := dbgOut.String()
	assert.Contains(t, s, prompt)
	assert.Contains(t, s, "==> addi sp,sp,-16")
	assert.Contains(t, s, "sp\t: 0000000004000000")
	assert.Contains(t, s, "Breakpoint 1 at 0x10004")
	assert.Contains(t, s, " 0 - 0x10004")
	assert.Contains(t, s, "Hit breakpoint at 0x10004")
	// The backtrace walks from the breakpoint back into main.
	assert.Contains(t, s, "in ecall")
	assert.Contains(t, s, "in main")
}

func TestExhaustedInputRunsToCompletion(t *testing.T) {
	m := guest.SwitchProbe(5)
	var guestOut, dbgOut bytes.Buffer
	m.Stdout = &guestOut

	d := New(strings.NewReader(""), &dbgOut)
	(&sim.Pipeline{M: m, Log: zerolog.Nop(), Hook: d}).Run()

	assert.Equal(t, "foo\nbar\n7\n", guestOut.String())
	// Every tracked call was matched by its return; calls into the
	// intercepted puts never got a frame.
	assert.True(t, d.frames.Empty())
}

func TestUnknownCommandsShowUsage(t *testing.T) {
	m := guest.EcallProbe()
	var dbgOut bytes.Buffer

	d := New(strings.NewReader("wat\nc\n"), &dbgOut)
	(&sim.Seq{M: m, Log: zerolog.Nop(), Hook: d}).Run()

	assert.Contains(t, dbgOut.String(), "Show this message.")
}
