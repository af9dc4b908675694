package main

import "pavidi.dev/internal/cli"

var (
	// set at build time via -ldflags
	version = "dev"
	commit  = "none"    //nolint:unused
	date    = "unknown" //nolint:unused
)

func main() {
	cli.Execute(version)
}
