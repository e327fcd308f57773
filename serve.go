package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"parkrep/core/internal/config"
	rpc "parkrep/core/internal/grpc"
	httpapi "parkrep/core/internal/http"
	"parkrep/core/internal/logging"
	"parkrep/core/internal/networking"
	"parkrep/core/internal/park"
	"parkrep/core/internal/replay"
	"parkrep/core/internal/simulation"
	"parkrep/core/internal/storage"
)

const shutdownTimeout = 5 * time.Second

// serveOptions shape the hosted park.
type serveOptions struct {
	parkName   string
	seed       uint32
	background bool
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	opts := serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the live park host with WebSocket and gRPC surfaces",
		Long: `Tick a live park, keep the replay index current and publish replay
notifications on the WebSocket hub (/ws) and the gRPC ReplayService.

Logs go to the configured rotating log file and to stdout.

Examples:
  parkrep serve
  parkrep serve --park "Forest Frontiers" --background-recording`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := flags.load(cmd)
			if err != nil {
				return err
			}
			logger, err := logging.New(e.cfg.Logging)
			if err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}
			defer logger.Sync()
			e.log = logger

			srv, err := newServer(e, opts)
			if err != nil {
				return err
			}
			if err := srv.listen(); err != nil {
				return errors.Join(err, srv.close())
			}
			return srv.run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&opts.parkName, "park", "Live Park", "Name of the hosted park")
	cmd.Flags().Uint32Var(&opts.seed, "seed", 1, "Seed for the hosted park")
	cmd.Flags().BoolVar(&opts.background, "background-recording", false, "Keep a silent recording of the live session")
	return cmd
}

// server owns every long-lived component of the serve command.
type server struct {
	cfg     *config.Config
	log     *logging.Logger
	opts    serveOptions
	store   *storage.Store
	library *storage.Library
	feed    *rpc.Feed
	hub     *networking.Hub
	host    *simulation.Host
	cleaner *replay.Cleaner
	network *networking.Status

	httpServer *http.Server
	grpcServer *grpc.Server
	httpLis    net.Listener
	grpcLis    net.Listener
}

func newServer(e *env, opts serveOptions) (*server, error) {
	cfg, logger := e.cfg, e.log
	for _, dir := range []string{cfg.ReplayDir, cfg.DesyncDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	store, err := storage.Open(cfg.IndexPath)
	if err != nil {
		return nil, err
	}
	s := &server{
		cfg:     cfg,
		log:     logger,
		opts:    opts,
		store:   store,
		library: storage.NewLibrary(store, cfg.ReplayDir),
		feed:    rpc.NewFeed(0),
		network: &networking.Status{},
		cleaner: replay.NewCleaner(cfg.ReplayDir, cfg.DesyncDir, replay.RetentionPolicy{
			MaxReplays: cfg.Retention.MaxReplays,
			MaxAge:     cfg.Retention.MaxAge,
		}, logger),
	}
	s.network.SetLive(cfg.NetworkEnabled)
	if indexed, err := s.library.Scan(); err != nil {
		logger.Warn("replay index scan incomplete", logging.Int("indexed", indexed), logging.Error(err))
	} else {
		logger.Info("replay index ready", logging.Int("indexed", indexed))
	}

	//1.- The hub authenticates with the shared HMAC secret when one is configured.
	auth := networking.AllowAll()
	if cfg.WebSocketAuthSecret != "" {
		if auth, err = networking.NewHMACAuthenticator(cfg.WebSocketAuthSecret); err != nil {
			return nil, errors.Join(err, store.Close())
		}
	}
	s.hub = networking.NewHub(
		networking.WithAuthenticator(auth),
		networking.WithAllowedOrigins(cfg.AllowedOrigins),
		networking.WithPingInterval(cfg.PingInterval),
		networking.WithStatus(func() any { return s.host.Status() }),
		networking.WithLogger(logger),
	)

	//2.- Saved recordings and desyncs flow back into the index.
	s.host, err = simulation.NewHost(park.New(opts.parkName, opts.seed), simulation.HostDeps{
		Network:  s.network,
		Notifier: replay.Notifiers{s.hub, s.feed},
		Logger:   logger,
	}, e.managerOptions(
		replay.WithSaveHook(s.indexSaved),
		replay.WithDesyncHook(s.markDesync),
	)...)
	if err != nil {
		s.hub.Close()
		return nil, errors.Join(err, store.Close())
	}
	return s, nil
}

func (s *server) indexSaved(info replay.Info) {
	path, err := filepath.Abs(info.FilePath)
	if err == nil {
		_, err = s.store.IndexFile(path)
	}
	if err != nil {
		s.log.Warn("saved replay not indexed", logging.String("file", info.FilePath), logging.Error(err))
	}
}

func (s *server) markDesync(file string, tick uint32) {
	path, err := filepath.Abs(file)
	if err == nil {
		err = s.store.MarkDesync(path, tick)
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.log.Warn("desync not indexed", logging.String("file", file), logging.Error(err))
	}
}

// handler routes the HTTP surface: the notification hub plus the host endpoints.
func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", s.hub)
	httpapi.NewHandlerSet(httpapi.Options{
		Logger:      s.log,
		Status:      s.host.Status,
		Ticks:       s.host.Metrics,
		Replays:     s.library,
		Clients:     s.hub.Clients,
		Subscribers: s.feed.Subscribers,
		Recorder:    hostRecorder{host: s.host},
		AdminToken:  s.cfg.AdminToken,
		RateLimiter: networking.NewSlidingWindowLimiter(time.Minute, s.cfg.AdminRateLimit, nil),
	}).Register(mux)
	return logging.HTTPTraceMiddleware(s.log)(mux)
}

// hostRecorder starts and stops recordings between ticks of the hosted park.
type hostRecorder struct {
	host *simulation.Host
}

func (r hostRecorder) StartRecording(_ context.Context, name string, ticks uint32) (replay.Info, error) {
	var info replay.Info
	err := r.host.Do(func(m *replay.Manager, _ *park.Park) error {
		if err := m.StartRecording(name, ticks, replay.RecordNormal); err != nil {
			return err
		}
		info, _ = m.CurrentReplayInfo()
		return nil
	})
	return info, err
}

func (r hostRecorder) StopRecording(context.Context) (replay.Info, error) {
	var info replay.Info
	err := r.host.Do(func(m *replay.Manager, _ *park.Park) error {
		current, ok := m.CurrentReplayInfo()
		if !ok || m.Mode() != replay.ModeRecording {
			return httpapi.ErrNoRecording
		}
		info = current
		return m.StopRecording(false)
	})
	return info, err
}

// listen binds both listeners so callers learn the final addresses before serving.
func (s *server) listen() error {
	var err error
	if s.httpLis, err = net.Listen("tcp", s.cfg.WebSocketAddr); err != nil {
		return fmt.Errorf("listen websocket: %w", err)
	}
	if s.grpcLis, err = net.Listen("tcp", s.cfg.GRPCAddr); err != nil {
		_ = s.httpLis.Close()
		return fmt.Errorf("listen grpc: %w", err)
	}
	grpcOpts, err := rpc.ServerOptions(s.cfg, s.log)
	if err != nil {
		_ = s.httpLis.Close()
		_ = s.grpcLis.Close()
		return err
	}
	s.grpcServer = grpc.NewServer(grpcOpts...)
	rpc.Register(s.grpcServer, rpc.NewService(s.library, s.feed))
	s.httpServer = &http.Server{Handler: s.handler(), ReadHeaderTimeout: 5 * time.Second}
	return nil
}

// run serves until ctx ends or a listener fails, then shuts everything down.
func (s *server) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if s.opts.background {
		if err := s.host.Do(func(m *replay.Manager, _ *park.Park) error {
			return m.StartRecording("autosave", replay.MaxReplayTicks, replay.RecordSilent)
		}); err != nil {
			s.log.Warn("background recording not started", logging.Error(err))
		}
	}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		if err := s.httpServer.Serve(s.httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("websocket server: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := s.grpcServer.Serve(s.grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errs <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		s.host.Run(ctx, s.cfg.TickRate)
	}()
	go func() {
		defer wg.Done()
		s.maintain(ctx)
	}()
	s.log.Info("parkrep serving",
		logging.String("websocket", hubURL(s.httpLis.Addr().String(), false)),
		logging.String("grpc", advertisedHost(s.grpcLis.Addr().String())),
		logging.String("replay_dir", s.cfg.ReplayDir),
	)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errs:
		s.log.Error("server failed", logging.Error(runErr))
	}

	//1.- Stop accepting work first, then let the tick loop and sweeper exit.
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	s.hub.Close()
	shutdownErr := s.httpServer.Shutdown(shutdownCtx)
	s.grpcServer.GracefulStop()
	cancel()
	wg.Wait()
	return errors.Join(runErr, shutdownErr, s.close())
}

// maintain sweeps old replays and keeps the index in step with the directory.
func (s *server) maintain(ctx context.Context) {
	interval := s.cfg.Retention.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := s.cleaner.RunOnce()
			if _, err := s.library.Scan(); err != nil {
				s.log.Warn("replay index rescan incomplete", logging.Error(err))
			}
			s.log.Debug("replay maintenance finished", logging.Int("replays", stats.Replays), logging.Int("removed", stats.Removed))
		}
	}
}

// close stops the host, dropping a background recording, and closes the index.
func (s *server) close() error {
	stopErr := s.host.Do(func(m *replay.Manager, _ *park.Park) error {
		if m.Mode() == replay.ModeRecording {
			return m.StopRecording(s.opts.background)
		}
		return nil
	})
	return errors.Join(stopErr, s.host.Close(), s.store.Close())
}
