package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fleetdesk/leaveguard/internal/cli"
)

func main() {
	app := &cli.App{
		IsInteractive: cli.StdinIsTerminal,
		Confirm:       cli.HuhConfirm,
	}
	err := cli.NewRootCmd(app).ExecuteContext(context.Background())
	if cerr := app.Close(); cerr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", cerr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.ExitCode(err))
	}
}
