// Command parkrep records, verifies and serves deterministic park replays and edits
// G1 sprite tables.
//
// Usage:
//
//	parkrep record <name>          - Record a scripted demo session
//	parkrep play <file>            - Play a replay headless and verify its checksums
//	parkrep normalise <in> <out>   - Rewrite a replay without idle ticks
//	parkrep info <file>            - Print a replay header
//	parkrep serve                  - Run the live host with WebSocket and gRPC surfaces
//	parkrep sprite <subcommand>    - Inspect and build sprite tables
//	parkrep catalog <subcommand>   - Maintain the SQLite replay index
//	parkrep remote <subcommand>    - Query a running server over gRPC
//	parkrep token <subject>        - Mint a notification hub token
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"parkrep/core/internal/config"
	"parkrep/core/internal/logging"
	"parkrep/core/internal/networking"
	"parkrep/core/internal/replay"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globalFlags override the loaded configuration for a single invocation.
type globalFlags struct {
	replayDir string
	desyncDir string
	indexPath string
	logLevel  string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "parkrep",
		Short: "Record, verify and serve park replays",
		Long: `parkrep records park sessions as .parkrep replays, plays them back while
verifying entity checksums, and serves replay notifications over WebSocket and gRPC.

Configuration is read from PARKREP_CONFIG, ~/.parkrep/config.yaml or
./configs/parkrep.yaml, then from PARKREP_* environment variables. The flags below
override both.

Examples:
  parkrep record demo --ticks 200
  parkrep play demo
  parkrep info demo --json
  parkrep serve`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.replayDir, "replay-dir", "", "Directory replays are written to and resolved from")
	root.PersistentFlags().StringVar(&flags.desyncDir, "desync-dir", "", "Directory desync reports are written to")
	root.PersistentFlags().StringVar(&flags.indexPath, "index", "", "Path to the SQLite replay index")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newRecordCmd(flags),
		newPlayCmd(flags),
		newNormaliseCmd(flags),
		newInfoCmd(flags),
		newServeCmd(flags),
		newSpriteCmd(),
		newCatalogCmd(flags),
		newRemoteCmd(flags),
		newTokenCmd(flags),
	)
	return root
}

// env is the configuration and logger one command runs with.
type env struct {
	cfg *config.Config
	log *logging.Logger
}

// load resolves the configuration and applies the flag overrides. Commands log JSON
// lines to stderr; serve swaps in the rotating file logger.
func (f *globalFlags) load(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	//1.- Flags win over the file and environment layers.
	if f.replayDir != "" {
		cfg.ReplayDir = f.replayDir
	}
	if f.desyncDir != "" {
		cfg.DesyncDir = f.desyncDir
	}
	if f.indexPath != "" {
		cfg.IndexPath = f.indexPath
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	//2.- Build the command logger once the level is final.
	logger, err := logging.NewWriterLogger(cmd.ErrOrStderr(), cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	return &env{cfg: cfg, log: logger}, nil
}

// managerOptions translates the configuration into replay manager options.
func (e *env) managerOptions(extra ...replay.Option) []replay.Option {
	opts := []replay.Option{
		replay.WithReplayDir(e.cfg.ReplayDir),
		replay.WithDesyncDir(e.cfg.DesyncDir),
		replay.WithNetworkVersion(networking.ProtocolVersion),
		replay.WithChecksumIntervals(e.cfg.ChecksumInterval, e.cfg.SilentChecksumInterval),
		replay.WithCompressionLevel(e.cfg.CompressionLevel),
		replay.WithAsyncWrites(e.cfg.AsyncWrites),
	}
	return append(opts, extra...)
}

// noteLog collects replay notifications for one-shot commands. Saves may report from
// the writer goroutine, so access is locked.
type noteLog struct {
	mu    sync.Mutex
	notes []replay.Notification
}

func (l *noteLog) Notify(n replay.Notification) {
	l.mu.Lock()
	l.notes = append(l.notes, n)
	l.mu.Unlock()
}

// last returns the most recent notification of kind.
func (l *noteLog) last(kind replay.NotificationKind) (replay.Notification, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.notes) - 1; i >= 0; i-- {
		if l.notes[i].Kind == kind {
			return l.notes[i], true
		}
	}
	return replay.Notification{}, false
}
