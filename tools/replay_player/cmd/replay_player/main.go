package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	replayplayer "parkrep/core/tools/replay_player"
)

var flagPath string

var rootCmd = &cobra.Command{
	Use:   "replay_player",
	Short: "Decode a replay file and print its contents as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		report, err := replayplayer.Dump(flagPath)
		if err != nil {
			return err
		}
		//1.- Render the report as JSON so callers can pipe the output elsewhere.
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	rootCmd.Flags().StringVar(&flagPath, "path", "", "path to a .parkrep file")
	_ = rootCmd.MarkFlagRequired("path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
