package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ujwal-p/mgmtbcknd/cmd/mgmtbckndd/commands"
)

// Build-time variables injected via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
