// ABOUTME: Standalone MCP server binary for clients that launch a command without arguments
// ABOUTME: Equivalent to running 'mwgen mcp'
package main

import (
	"fmt"
	"os"

	"github.com/harper/mwgen/cmd/mwgen/commands"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersion(version, commit, date)

	root := commands.NewRootCmd()
	root.SetArgs(append([]string{"mcp"}, os.Args[1:]...))
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
