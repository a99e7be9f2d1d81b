package main

import (
	"fmt"
	"os"

	"github.com/aussiebroadwan/clubhouse/internal/console"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if version != "dev" {
		console.Version = version
	}

	env := &Env{
		Out:     os.Stdout,
		Err:     os.Stderr,
		In:      os.Stdin,
		Version: VersionInfo{Version: console.Version, Commit: commit, Date: date},
	}

	registry := NewCommandRegistry(env)
	registerCommands(registry)

	if err := registry.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
