package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sophialabs/clientmock/internal/infrastructure/outbound/filesystem"
	"github.com/sophialabs/clientmock/internal/infrastructure/outbound/logging"
	"github.com/sophialabs/clientmock/internal/infrastructure/usecases"
	"github.com/sophialabs/clientmock/internal/infrastructure/wiring"
)

// App is the thin lifecycle manager that delegates dependency construction to wiring.Container.
type App struct {
	cfg        Config
	container  *wiring.Container
	httpServer *http.Server
	logCloser  io.Closer
}

// New constructs the application by creating a logger, wiring infrastructure
// components via the container, and setting up the HTTP server.
func New(cfg Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	slogger, closer, err := logging.NewFromOptions(logging.Options{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	}, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger := logging.New(slogger)

	container, err := wiring.New(wiring.Params{
		RootDir:        cfg.RootDir,
		Exclude:        cfg.Exclude,
		TraceSize:      cfg.TraceSize,
		RateLimiterTTL: cfg.RateLimiterTTL,
		Logger:         logger,
		DefaultEngine:  cfg.DefaultEngine,
		DefaultHost:    cfg.DefaultHost,
		Debug:          cfg.Debug,
	})
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("failed to wire infrastructure: %w", err)
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      container.Server(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		container:  container,
		httpServer: httpServer,
		logCloser:  closer,
	}, nil
}

// Run executes the full application lifecycle: load rules, start watcher,
// serve HTTP, and handle graceful shutdown on SIGINT/SIGTERM or context cancellation.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	logger := a.container.Logger()
	server := a.container.Server()

	if err := server.Reload(ctx); err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher := a.setupWatcher()
	if watcher != nil {
		defer watcher.Stop()
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting clientmock server", "addr", a.httpServer.Addr, "root", a.cfg.RootDir)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func (a *App) setupWatcher() *filesystem.Watcher {
	logger := a.container.Logger()
	server := a.container.Server()

	watcher, err := filesystem.NewWatcher(a.cfg.RootDir, a.cfg.WatcherDebounce, logger, func() {
		if err := server.Reload(context.Background()); err != nil {
			logger.Error("hot reload failed", "error", err)
			return
		}
		logger.Info("hot reload complete")
	}, filesystem.WatchExtensions(".yaml", ".yml", ".json", ".xml", ".txt"))
	if err != nil {
		logger.Warn("file watcher not available", "error", err)
		return nil
	}

	watcher.Start()
	logger.Info("file watcher started", "root", a.cfg.RootDir)
	return watcher
}

// Check compiles every rule under the root directory without serving.
func (a *App) Check(ctx context.Context) (usecases.CheckReport, error) {
	defer a.Close()
	return a.container.LoadRulesUseCase().Check(ctx)
}

// Close releases the container and the log file. Run calls it on return.
func (a *App) Close() {
	a.container.Close()
	_ = a.logCloser.Close()
}
