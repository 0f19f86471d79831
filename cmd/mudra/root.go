package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mudra",
	Short: "Mudra is a hand-gesture card draw",
	Long: `Mudra lays a shuffled deck on a ring in front of you. Pinch a card to pull it
out, let go to preview it, close your fist to keep it. Works with a webcam or a mouse.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML configuration file")
}
