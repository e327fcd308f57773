package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"

	"parkrep/core/internal/actions"
	rpc "parkrep/core/internal/grpc"
	"parkrep/core/internal/park"
	"parkrep/core/internal/replay"
	"parkrep/core/internal/simulation"
)

// errDesync marks a playback that finished out of sync.
var errDesync = errors.New("replay desynced")

func newRecordCmd(flags *globalFlags) *cobra.Command {
	var (
		ticks   uint32
		steps   int
		seed    uint32
		discard bool
	)
	cmd := &cobra.Command{
		Use:   "record <name>",
		Short: "Record a scripted demo session",
		Long: `Record a fresh park for --ticks ticks while a deterministic script issues
--actions game actions, one per tick from the first tick on.

Examples:
  parkrep record demo
  parkrep record busy --ticks 400 --actions 120 --seed 9`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.load(cmd)
			if err != nil {
				return err
			}
			notes := &noteLog{}
			host, err := simulation.NewHost(park.New(args[0], seed), simulation.HostDeps{Notifier: notes, Logger: e.log}, e.managerOptions()...)
			if err != nil {
				return err
			}
			if err := host.Do(func(m *replay.Manager, _ *park.Park) error {
				return m.StartRecording(args[0], ticks, replay.RecordNormal)
			}); err != nil {
				return err
			}

			//1.- Feed one scripted action per tick until the recording closes itself.
			script := demoScript(steps, seed)
			for i := 0; host.Mode() != replay.ModeIdle; i++ {
				if err := cmd.Context().Err(); err != nil {
					_ = host.Do(func(m *replay.Manager, _ *park.Park) error { return m.StopRecording(discard) })
					return errors.Join(err, host.Close())
				}
				if i < len(script) {
					host.Submit(script[i])
				}
				if err := host.Step(); err != nil {
					return errors.Join(err, host.Close())
				}
			}
			if err := host.Close(); err != nil {
				return err
			}
			saved, ok := notes.last(replay.NotifyRecordingSaved)
			if !ok {
				return fmt.Errorf("recording %s was not saved", args[0])
			}
			info, err := replay.ReadInfo(saved.File)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recorded %s: %d ticks, %d commands, %d checksums\n", saved.File, info.Ticks, info.Commands, info.Checksums)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&ticks, "ticks", 200, "Number of ticks to record")
	cmd.Flags().IntVar(&steps, "actions", 40, "Number of scripted actions to issue")
	cmd.Flags().Uint32Var(&seed, "seed", 1, "Seed for the park and the action script")
	cmd.Flags().BoolVar(&discard, "discard-on-interrupt", true, "Drop the recording when interrupted instead of saving it")
	return cmd
}

// demoScript builds n deterministic actions that touch several park systems.
func demoScript(n int, seed uint32) []actions.Action {
	rng := park.NewRandom(seed)
	script := make([]actions.Action, 0, max(n, 0))
	for i := 0; i < n; i++ {
		switch i % 4 {
		case 0:
			x := int32(rng.Intn(park.MapSize*park.TileSize-2*park.TileSize)) + park.TileSize
			y := int32(rng.Intn(park.MapSize*park.TileSize-2*park.TileSize)) + park.TileSize
			script = append(script, &actions.GuestSpawn{Staff: i%8 == 4, X: x, Y: y})
		case 1:
			script = append(script, &actions.LandSetHeight{
				TileX:  uint8(rng.Intn(park.MapSize)),
				TileY:  uint8(rng.Intn(park.MapSize)),
				Height: uint8(2 + rng.Intn(park.MaxLandHeight-1)),
			})
		case 2:
			script = append(script, &actions.ParkSetEntranceFee{Fee: int32(rng.Intn(200))})
		default:
			script = append(script, &actions.GuestSpawn{X: park.TileSize * 2, Y: park.TileSize * 2})
		}
	}
	return script
}

func newPlayCmd(flags *globalFlags) *cobra.Command {
	var (
		silent   bool
		maxTicks int
	)
	cmd := &cobra.Command{
		Use:   "play <file>",
		Short: "Play a replay headless and verify its checksums",
		Long: `Load a replay into a fresh park, replay every command and compare the
recorded checksums tick by tick. The command fails when the playback desyncs and
names the desync report it wrote.

Examples:
  parkrep play demo
  parkrep play ./replays/demo.parkrep --silent`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.load(cmd)
			if err != nil {
				return err
			}
			host, err := simulation.NewHost(park.New("playback", 0), simulation.HostDeps{Logger: e.log}, e.managerOptions()...)
			if err != nil {
				return err
			}
			if err := host.Do(func(m *replay.Manager, _ *park.Park) error {
				return m.StartPlayback(args[0], replay.PlaybackOptions{Silent: silent})
			}); err != nil {
				return err
			}
			info := host.Status().Replay
			ticks, runErr := host.RunUntilIdle(cmd.Context(), maxTicks)
			if err := errors.Join(runErr, host.Close()); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if info != nil {
				fmt.Fprintf(out, "played %s: %d ticks, %d commands, %d checksums\n", info.FilePath, ticks, info.Commands, info.Checksums)
			}
			//1.- A desync is a command failure so scripts can gate on the exit status.
			var desynced bool
			var report string
			_ = host.Do(func(m *replay.Manager, _ *park.Park) error {
				desynced, report = m.IsPlaybackStateMismatching(), m.DesyncReport()
				return nil
			})
			if desynced {
				if report != "" {
					return fmt.Errorf("%w, report written to %s", errDesync, report)
				}
				return errDesync
			}
			fmt.Fprintln(out, "checksums match")
			return nil
		},
	}
	cmd.Flags().BoolVar(&silent, "silent", false, "Suppress playback notifications")
	cmd.Flags().IntVar(&maxTicks, "max-ticks", 0, "Give up after this many ticks (0 = no limit)")
	return cmd
}

func newNormaliseCmd(flags *globalFlags) *cobra.Command {
	var maxTicks int
	cmd := &cobra.Command{
		Use:     "normalise <in> <out>",
		Aliases: []string{"normalize"},
		Short:   "Rewrite a replay so that only ticks with commands remain",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.load(cmd)
			if err != nil {
				return err
			}
			notes := &noteLog{}
			host, err := simulation.NewHost(park.New("normalise", 0), simulation.HostDeps{Notifier: notes, Logger: e.log}, e.managerOptions()...)
			if err != nil {
				return err
			}
			if err := host.Do(func(m *replay.Manager, _ *park.Park) error {
				return m.NormaliseReplay(args[0], args[1])
			}); err != nil {
				return err
			}
			ticks, runErr := host.RunUntilIdle(cmd.Context(), maxTicks)
			if err := errors.Join(runErr, host.Close()); err != nil {
				return err
			}
			done, ok := notes.last(replay.NotifyNormaliseFinished)
			if !ok {
				return fmt.Errorf("normalising %s did not finish", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "normalised %s into %s after %d ticks\n", args[0], done.File, ticks)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxTicks, "max-ticks", 0, "Give up after this many ticks (0 = no limit)")
	return cmd
}

func newInfoCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "info <file>",
		Short: "Print a replay header",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.load(cmd)
			if err != nil {
				return err
			}
			path, err := resolveReplay(e.cfg.ReplayDir, args[0])
			if err != nil {
				return err
			}
			info, err := replay.ReadInfo(path)
			if err != nil {
				return err
			}
			if asJSON {
				return writeInfoJSON(cmd.OutOrStdout(), info)
			}
			writeInfoText(cmd.OutOrStdout(), info)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the header as JSON")
	return cmd
}

// resolveReplay finds name as given or inside dir, adding the replay extension when
// the name has none.
func resolveReplay(dir, name string) (string, error) {
	if filepath.Ext(name) == "" {
		name += replay.FileExtension
	}
	candidates := []string{name}
	if !filepath.IsAbs(name) {
		candidates = append(candidates, filepath.Join(dir, name))
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("replay %s: %w", name, os.ErrNotExist)
}

// writeInfoJSON renders info through the same struct encoding the gRPC service uses.
func writeInfoJSON(w io.Writer, info replay.Info) error {
	msg, err := rpc.ToStruct(info)
	if err != nil {
		return err
	}
	payload, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(payload))
	return err
}

func writeInfoText(w io.Writer, info replay.Info) {
	fmt.Fprintf(w, "%s (version %d, network %q)\n", info.Name, info.Version, info.NetworkVersion)
	fmt.Fprintf(w, "  file:      %s\n", info.FilePath)
	fmt.Fprintf(w, "  recorded:  %s\n", info.TimeRecorded.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  ticks:     %d-%d (%d)\n", info.TickStart, info.TickEnd, info.Ticks)
	fmt.Fprintf(w, "  commands:  %d\n", info.Commands)
	fmt.Fprintf(w, "  checksums: %d\n", info.Checksums)
	fmt.Fprintf(w, "  snapshots: %d\n", info.Snapshots)
}
