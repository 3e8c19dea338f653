package main

import (
	"context"
	"log"
	"os"

	"github.com/rvtools/rsim/cmd"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.NewApp()
	app.Name = os.Args[0]
	app.Usage = "RV64 pipeline simulator"
	app.Description = "RV64 pipeline simulator"
	app.Commands = []*cli.Command{
		cmd.RunCommand,
		cmd.DisasmCommand,
	}
	err := app.RunContext(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
