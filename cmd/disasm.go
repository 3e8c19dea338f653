package cmd

import (
	"os"

	"github.com/rvtools/rsim/disassembler"
	"github.com/urfave/cli/v2"
)

func CreateDisasmCommand(action cli.ActionFunc) *cli.Command {
	return &cli.Command{
		Name:        "disasm",
		Usage:       "Disassemble an RV64 executable or a built-in probe",
		Description: "Disassemble an RV64 executable or a built-in probe",
		Action:      action,
		Flags: []cli.Flag{
			ProfileFlag,
			ProbeFlag,
			SeedFlag,
		},
	}
}

var DisasmCommand = CreateDisasmCommand(Disasm)

func Disasm(ctx *cli.Context) error {
	log := newLogger(true)
	m, err := buildMachine(ctx, log)
	if err != nil {
		return err
	}
	disassembler.New(m).Program(os.Stdout)
	return nil
}
