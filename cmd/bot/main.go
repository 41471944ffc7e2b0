package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bot",
	Short: "Lift maintenance field bot",
	Long: `Runs the repair request bot, the maintenance check-in bot and the
operator dashboard API, and provides the offline maintenance commands.

Configuration is read from the environment (optionally a .env file).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, scheduleCmd, gazetteerCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
