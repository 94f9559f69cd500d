package main

import (
	"os"

	"github.com/tphakala/drawpad/cmd"
	"github.com/tphakala/drawpad/internal/buildinfo"
)

// buildDate and version are set at build time with -ldflags
var (
	buildDate string
	version   string
)

func main() {
	info := buildinfo.New(version, buildDate)

	rootCmd := cmd.RootCommand(info)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
