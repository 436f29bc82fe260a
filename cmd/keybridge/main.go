package main

import (
	"fmt"
	"os"

	"github.com/keybridge-cli/keybridge/internal/cli"
)

// Overridden at build time via -ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, buildTime)
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
