package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// dialects are the instruction sets the core implements, newest last.
var dialects = []string{"CHIP-8", "S-CHIP", "XO-CHIP"}

// versionCmd reports the installed chirp8 version and what it can run.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the chirp8 version and supported dialects",
	Args:  cobra.NoArgs,
	Run:   runVersion,
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("chirp8 %s\n", currentReleaseVersion)
	fmt.Print("dialects:")
	for _, d := range dialects {
		fmt.Printf(" %s", d)
	}
	fmt.Println()
}
