package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	replaycatalog "parkrep/core/tools/replay_catalog"
)

var (
	flagDir  string
	flagJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "replay_catalog",
	Short: "List replay files under a directory tree",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		entries, err := replaycatalog.List(flagDir)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if flagJSON {
			payload, err := replaycatalog.MarshalEntries(entries)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(payload))
			return nil
		}
		for _, entry := range entries {
			if entry.Info == nil {
				fmt.Fprintf(out, "%s (unreadable: %s)\n", entry.Path, entry.Error)
				continue
			}
			fmt.Fprintf(out, "%s (version %d)\n", entry.Path, entry.Info.Version)
			fmt.Fprintf(out, "  recorded: %s\n", entry.Info.TimeRecorded.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "  ticks:    %d-%d (%d)\n", entry.Info.TickStart, entry.Info.TickEnd, entry.Info.Ticks)
			fmt.Fprintf(out, "  commands: %d, checksums: %d\n", entry.Info.Commands, entry.Info.Checksums)
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVar(&flagDir, "dir", ".", "directory containing replays")
	rootCmd.Flags().BoolVar(&flagJSON, "json", false, "emit JSON instead of human-readable output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
