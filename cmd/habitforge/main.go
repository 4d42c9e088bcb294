// Package main is the single-binary entrypoint for habitforge.
package main

import "github.com/habitforge/habitforge/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
