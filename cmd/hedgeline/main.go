package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	app "github.com/hedgeline/engine"
	"github.com/hedgeline/engine/internal/analyst"
	"github.com/hedgeline/engine/internal/config"
	"github.com/hedgeline/engine/internal/events"
	"github.com/hedgeline/engine/internal/llm"
	"github.com/hedgeline/engine/internal/market"
	"github.com/hedgeline/engine/internal/pipeline"
	"github.com/hedgeline/engine/internal/server"
	"github.com/hedgeline/engine/internal/store"
	"github.com/hedgeline/engine/pkg/log"
)

type hedgeline struct {
	cfg        *config.Config
	store      store.Store
	memory     *store.MemoryStore
	redis      *store.RedisStore
	snapshot   *store.BlobSnapshot
	registry   *analyst.Registry
	pipeline   *pipeline.Service
	hub        *events.Hub
	apiServer  *server.Server
	httpServer *http.Server
	quit       chan os.Signal
}

var (
	ErrCreateStore    = errors.New("failed to create store")
	ErrLoadSnapshot   = errors.New("failed to load snapshot")
	ErrLoadManifest   = errors.New("failed to load analyst manifest")
	ErrCreatePipeline = errors.New("failed to create pipeline")
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func main() {
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}

	s := &hedgeline{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}
	s.setupLogging()

	if err := s.run(); err != nil {
		slog.Error("Failed to start application", log.Error(err))
		os.Exit(1)
	}
}

func (s *hedgeline) run() error {
	if err := s.initializeStore(); err != nil {
		return err
	}
	if err := s.initializePipeline(); err != nil {
		return err
	}
	s.startServer()

	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.quit)
	<-s.quit

	s.shutdown()
	return nil
}

func (s *hedgeline) setupLogging() {
	level, ok := logLevels[s.cfg.LogLevel]
	if !ok {
		level = slog.LevelInfo
	}

	logger := log.NewWithLevel(
		app.Name, s.cfg.Environment, app.Version, level,
	)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	slog.Info("Hedgeline Engine starting",
		slog.String("log_level", s.cfg.LogLevel))

	slog.Info("Configuration loaded",
		slog.String("api_host", s.cfg.APIHost),
		slog.Int("api_port", s.cfg.APIPort),
		slog.Bool("redis", s.cfg.RedisURL != ""),
		slog.Bool("snapshot", s.cfg.SnapshotURL != ""),
		slog.String("analysts_file", s.cfg.AnalystsFile))
}

func (s *hedgeline) initializeStore() error {
	if s.cfg.RedisURL != "" {
		rs, err := store.NewRedisStore(s.cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCreateStore, err)
		}

		ctx, cancel := context.WithTimeout(
			context.Background(), s.cfg.HTTPTimeout,
		)
		defer cancel()
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return fmt.Errorf("%w: %w", ErrCreateStore, err)
		}

		s.redis = rs
		s.store = rs
		return nil
	}

	s.memory = store.NewMemoryStore()
	s.store = s.memory

	if s.cfg.SnapshotURL == "" {
		return nil
	}

	ctx := context.Background()
	snap, err := store.NewBlobSnapshot(ctx, s.cfg.SnapshotURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadSnapshot, err)
	}
	if err := snap.Load(ctx, s.memory); err != nil {
		_ = snap.Close()
		return fmt.Errorf("%w: %w", ErrLoadSnapshot, err)
	}
	s.snapshot = snap
	return nil
}

func (s *hedgeline) initializePipeline() error {
	md := market.NewClient(s.cfg, s.store)
	chatter := llm.NewClient(s.cfg)

	s.registry = analyst.NewRegistry(md, chatter)
	if s.cfg.AnalystsFile != "" {
		m, err := analyst.LoadManifest(s.cfg.AnalystsFile)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrLoadManifest, err)
		}
		env := analyst.NewLuaEnv()
		if err := s.registry.RegisterManifest(env, m); err != nil {
			return fmt.Errorf("%w: %w", ErrLoadManifest, err)
		}
	}

	s.hub = events.NewHub()
	svc, err := pipeline.New(s.registry, md, chatter, s.hub)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreatePipeline, err)
	}
	s.pipeline = svc
	return nil
}

func (s *hedgeline) startServer() {
	s.apiServer = server.NewServer(s.pipeline, s.registry, s.hub)
	router := s.apiServer.SetupRoutes()

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.APIHost, s.cfg.APIPort),
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
		}
	}()
}

func (s *hedgeline) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), s.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", log.Error(err))
	}

	s.apiServer.CloseWebSockets()
	s.hub.Close()
	s.saveSnapshot(ctx)

	if s.redis != nil {
		_ = s.redis.Close()
	}

	slog.Info("Server exited")
}

func (s *hedgeline) saveSnapshot(ctx context.Context) {
	if s.snapshot == nil {
		return
	}
	if err := s.snapshot.Save(ctx, s.memory); err != nil {
		slog.Error("Snapshot save failed", log.Error(err))
	}
	if err := s.snapshot.Close(); err != nil {
		slog.Error("Snapshot close failed", log.Error(err))
	}
}
