// sqlchat – chat with a database through an NL2SQL service.
//
// Entry point: initializes the Cobra root command and launches
// the Bubble Tea chat TUI by default (no subcommand required).
package main

import (
	"os"

	"github.com/DachengChen/sqlchat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
