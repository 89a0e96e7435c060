package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/roach88/waymark/internal/cli"
	"github.com/roach88/waymark/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load .env if present (non-fatal; installed hooks won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "waymark: %v\n", err)
		return cli.ExitCommandError
	}

	if err := cli.NewRootCommand(cfg).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "waymark: %v\n", err)
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
