package main

import (
	"fmt"
	"os"

	"github.com/tphakala/rawrecord/cmd"
	"github.com/tphakala/rawrecord/internal/buildinfo"
)

// buildDate and version are set at build time with -ldflags.
var (
	buildDate string
	version   string
)

func main() {
	rootCmd := cmd.RootCommand(buildinfo.NewContext(version, buildDate))
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
