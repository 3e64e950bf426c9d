// Package main provides the entry point for the gatewright CLI.
package main

import (
	"os"

	"github.com/gatewright/gatewright/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
