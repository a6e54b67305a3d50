package main

import (
	"os"

	"github.com/fennec-lang/fennec/cmd"
	"github.com/spf13/cobra"
)

func main() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "fennec [subcommand]",
	Short:        "fennec 🦊\n the concept engine of the fennec language frontend",
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(cmd.CheckCmd)
}
