package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// currentReleaseVersion is used to print the version the user currently has downloaded
const currentReleaseVersion = "v0.1.0"

// rootCmd is the base for all commands.
var rootCmd = &cobra.Command{
	Use:   "chirp8 [command]",
	Short: "chirp8 is a CHIP-8, S-CHIP, and XO-CHIP emulator",
	Long: `chirp8 emulates the CHIP-8 virtual machine and its S-CHIP and XO-CHIP
dialects. ROMs are raw byte images (.ch8, .sc8, .xo8, .hc8) loaded at the
start address and run against a quirk-configurable core.

Examples:
  chirp8 run games/pong.ch8
  chirp8 run --cpu-freq 2000 --theme hacker demos/octojam.xo8
  chirp8 run --compat --start-addr 0x200 legacy/cosmac.ch8
  chirp8 run --no-quirk 6,7 schip/car.sc8

The ten quirk toggles (numbered 0-9, all enabled by default) select between
historically incompatible opcode behaviors; disable individual ones with
--no-quirk or all of them with --compat. Run "chirp8 run --help" for the
full flag surface.

At runtime: backspace cycles color themes, escape soft-resets, left/right
step the CPU frequency, and down rewinds one frame.`,
	Run: func(cmd *cobra.Command, args []string) {
		// Bare invocations land here; point at the help rather than
		// guessing whether the argument was meant as a ROM path.
		fmt.Println("Unknown command. Try `chirp8 help` for more information")
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs chirp8 according to the user's command/subcommand/flags
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
