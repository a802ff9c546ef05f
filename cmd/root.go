package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "timearchitect",
	Short: "World clock with a single alarm",
	Long: `timearchitect shows the time in a set of zones, how far each is from
yours, and rings one alarm at a wall-clock time in the selected zone.

Usage:
  timearchitect                 Start the terminal UI
  timearchitect serve           Run the alarm daemon with the HTTP API
  timearchitect now [zone]      Print the time in a zone
  timearchitect zones list      List configured zones
  timearchitect alarm set 07:30 Arm the alarm
  timearchitect prefs show      Show saved preferences`,
	SilenceUsage: true,
	RunE:         runTUI,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/timearchitect.yaml)")
}
