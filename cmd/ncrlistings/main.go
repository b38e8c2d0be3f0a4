// Package main is the entry point for the ncrlistings CLI.
package main

import (
	"os"

	"github.com/jmylchreest/ncrlistings/cmd/ncrlistings/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
