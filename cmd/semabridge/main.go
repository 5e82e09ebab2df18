// Package main provides the CLI entry point for semabridge.
package main

import (
	"os"

	"github.com/leapstack-labs/semabridge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
