package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "shiftgate",
	Short: "Shiftgate - progressive deployment orchestration",
	Long: `Shiftgate rolls new service revisions out gradually, watching error
rates and latency at every step and reverting to the last known-good
revision the moment the candidate misbehaves.

Supports canary, rolling, blue-green and recreate strategies against
any platform exposing a revision/traffic API.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Shiftgate version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))
}
