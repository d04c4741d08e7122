// Package main provides the entry point for the keycrypt CLI application.
package main

import (
	"os"

	"keycrypt/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
