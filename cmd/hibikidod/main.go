// Package main provides the entry point for the hibikidod daemon.
package main

import (
	"os"

	"github.com/jpdrecourt/hibikido-go/cmd/hibikidod/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
