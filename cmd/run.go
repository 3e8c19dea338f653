package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rvtools/rsim/debugger"
	"github.com/rvtools/rsim/guest"
	"github.com/rvtools/rsim/loader"
	"github.com/rvtools/rsim/machine"
	"github.com/rvtools/rsim/profile"
	"github.com/rvtools/rsim/renderer"
	"github.com/rvtools/rsim/sim"
	"github.com/urfave/cli/v2"
)

var (
	ProfileFlag = &cli.PathFlag{
		Name:     "profile",
		Usage:    "Path to the machine profile config file",
		Required: false,
	}
	ProbeFlag = &cli.StringFlag{
		Name:     "probe",
		Usage:    "Run a built-in probe instead of an ELF. Options: ecall, switch",
		Required: false,
	}
	SeedFlag = &cli.IntFlag{
		Name:     "seed",
		Usage:    "Seed value for the switch probe",
		Required: false,
		Value:    5,
	}
	SequentialFlag = &cli.BoolFlag{
		Name:     "sequential",
		Usage:    "Use the sequential engine instead of the pipeline",
		Required: false,
	}
	ForwardFlag = &cli.BoolFlag{
		Name:     "forward",
		Usage:    "Enable one-cycle value forwarding in the pipeline",
		Required: false,
	}
	QuietFlag = &cli.BoolFlag{
		Name:     "quiet",
		Usage:    "Suppress per-cycle diagnostics",
		Required: false,
	}
	InteractiveFlag = &cli.BoolFlag{
		Name:     "interactive",
		Usage:    "Drop into the debugger prompt before execution",
		Required: false,
	}
	CountFromMainFlag = &cli.BoolFlag{
		Name:     "count-from-main",
		Usage:    "Start cycle accounting when main is reached",
		Required: false,
	}
	FormatFlag = &cli.StringFlag{
		Name:        "format",
		Usage:       "Format of the report. Options: json, text",
		Required:    false,
		DefaultText: "text",
	}
	ReportOutputPathFlag = &cli.PathFlag{
		Name:     "report-output-path",
		Usage:    "Output file path for the report. Default: stdout",
		Required: false,
	}
)

func CreateRunCommand(action cli.ActionFunc) *cli.Command {
	return &cli.Command{
		Name:        "run",
		Usage:       "Simulate an RV64 executable",
		Description: "Simulate an RV64 executable",
		Action:      action,
		Flags: []cli.Flag{
			ProfileFlag,
			ProbeFlag,
			SeedFlag,
			SequentialFlag,
			ForwardFlag,
			QuietFlag,
			InteractiveFlag,
			CountFromMainFlag,
			FormatFlag,
			ReportOutputPathFlag,
		},
	}
}

var RunCommand = CreateRunCommand(Run)

func Run(ctx *cli.Context) error {
	log := newLogger(ctx.Bool(QuietFlag.Name))

	m, err := buildMachine(ctx, log)
	if err != nil {
		return err
	}
	m.Stdout = os.Stdout

	var hook sim.Hook
	if ctx.Bool(InteractiveFlag.Name) {
		hook = debugger.New(os.Stdin, os.Stdout)
	}

	var report *sim.Report
	if ctx.Bool(SequentialFlag.Name) {
		engine := &sim.Seq{
			M:             m,
			Log:           log,
			CountFromMain: ctx.Bool(CountFromMainFlag.Name),
			Hook:          hook,
		}
		report = engine.Run()
	} else {
		engine := &sim.Pipeline{
			M:             m,
			Log:           log,
			Forwarding:    ctx.Bool(ForwardFlag.Name),
			CountFromMain: ctx.Bool(CountFromMainFlag.Name),
			Hook:          hook,
		}
		report = engine.Run()
	}

	if ctx.Bool(QuietFlag.Name) {
		return nil
	}
	return writeReport(report, ctx.String(FormatFlag.Name), ctx.Path(ReportOutputPathFlag.Name))
}

func newLogger(quiet bool) zerolog.Logger {
	level := zerolog.DebugLevel
	if quiet {
		level = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

// buildMachine prepares the guest from either a built-in probe or an
// ELF path given as the first argument.
func buildMachine(ctx *cli.Context, log zerolog.Logger) (*machine.Machine, error) {
	switch probe := ctx.String(ProbeFlag.Name); probe {
	case "ecall":
		return guest.EcallProbe(), nil
	case "switch":
		return guest.SwitchProbe(ctx.Int(SeedFlag.Name)), nil
	case "":
	default:
		return nil, fmt.Errorf("unknown probe: %s", probe)
	}

	path := ctx.Args().First()
	if path == "" {
		return nil, fmt.Errorf("no executable specified")
	}

	prof := profile.Default()
	if profilePath := ctx.Path(ProfileFlag.Name); profilePath != "" {
		var err error
		prof, err = profile.LoadProfile(profilePath)
		if err != nil {
			return nil, fmt.Errorf("error loading profile: %w", err)
		}
	}
	return loader.Load(path, prof, log)
}

// writeReport outputs the report in the specified format.
func writeReport(report *sim.Report, format, outputPath string) error {
	var output *os.File
	if outputPath == "" {
		output = os.Stdout
	} else {
		absPath, err := filepath.Abs(outputPath)
		if err != nil {
			return fmt.Errorf("unable to determine absolute path: %w", err)
		}
		output, err = os.OpenFile(absPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("unable to open output file: %w", err)
		}
		defer func() {
			_ = output.Close()
		}()
	}

	r, err := renderer.NewRenderer(format)
	if err != nil {
		return err
	}
	return r.Render(report, output)
}
