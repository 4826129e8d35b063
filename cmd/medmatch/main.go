// Package main provides the entry point for the medmatch CLI tool.
package main

import "github.com/admitkit/medmatch/cmd/medmatch/cmd"

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.Execute(version, commit, date)
}
