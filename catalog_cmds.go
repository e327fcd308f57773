package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"parkrep/core/internal/storage"
	replaycatalog "parkrep/core/tools/replay_catalog"
)

func newCatalogCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Maintain and query the SQLite replay index",
	}
	cmd.AddCommand(newCatalogScanCmd(flags), newCatalogListCmd(flags), newCatalogTreeCmd())
	return cmd
}

// openLibrary opens the configured index around the configured replay directory.
func openLibrary(cmd *cobra.Command, flags *globalFlags) (*storage.Library, func() error, error) {
	e, err := flags.load(cmd)
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.Open(e.cfg.IndexPath)
	if err != nil {
		return nil, nil, err
	}
	return storage.NewLibrary(store, e.cfg.ReplayDir), store.Close, nil
}

func newCatalogScanCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Index every replay in the replay directory and drop stale entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			library, closeIndex, err := openLibrary(cmd, flags)
			if err != nil {
				return err
			}
			defer closeIndex()
			indexed, scanErr := library.Scan()
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d replays from %s\n", indexed, library.Dir())
			return scanErr
		},
	}
}

func newCatalogListCmd(flags *globalFlags) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed replays, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			library, closeIndex, err := openLibrary(cmd, flags)
			if err != nil {
				return err
			}
			defer closeIndex()
			entries, err := library.Entries(limit)
			if err != nil {
				return err
			}
			return writeEntries(cmd.OutOrStdout(), entries, asJSON)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of entries (-1 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func writeEntries(w io.Writer, entries []storage.Entry, asJSON bool) error {
	if asJSON {
		payload, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "no replays indexed")
		return nil
	}
	for _, e := range entries {
		state := "ok"
		if e.DesyncTick != nil {
			state = fmt.Sprintf("desync@%d", *e.DesyncTick)
		}
		fmt.Fprintf(w, "%-24s %s  ticks %d-%d  commands %d  %s\n",
			e.Name, e.RecordedAt.Format("2006-01-02 15:04"), e.TickStart, e.TickEnd, e.Commands, state)
	}
	return nil
}

func newCatalogTreeCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tree <dir>",
		Short: "Walk a directory tree and summarise every replay without indexing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := replaycatalog.List(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				payload, err := replaycatalog.MarshalEntries(entries)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(payload))
				return nil
			}
			for _, entry := range entries {
				if entry.Info == nil {
					fmt.Fprintf(out, "%s  unreadable: %s\n", entry.Path, entry.Error)
					continue
				}
				fmt.Fprintf(out, "%s  %s  %d ticks\n", entry.Path, entry.Info.Name, entry.Info.Ticks)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of text")
	return cmd
}
