package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/usecase"
	"MarketPulse/pkg/config"
	xhttp "MarketPulse/pkg/http"
	applogger "MarketPulse/pkg/logger"
	pkgsqlite "MarketPulse/pkg/sqlite"
)

// App owns the process lifecycle: background loops, the HTTP server,
// and orderly teardown on SIGINT/SIGTERM.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	runner     *usecase.Runner
	httpServer *xhttp.Server
	notifier   domrepo.Notifier
	dbClient   *pkgsqlite.Client
	closers    []func() error
}

func New(
	cfg *config.Config,
	l *applogger.Logger,
	runner *usecase.Runner,
	handler xhttp.Handler,
	notifier domrepo.Notifier,
	dbClient *pkgsqlite.Client,
) *App {
	httpServer := xhttp.NewServer(handler,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
	)
	return &App{
		cfg:        cfg,
		l:          l,
		runner:     runner,
		httpServer: httpServer,
		notifier:   notifier,
		dbClient:   dbClient,
	}
}

// AddCloser registers an extra resource to close on shutdown.
func (a *App) AddCloser(fn func() error) { a.closers = append(a.closers, fn) }

// Run starts everything and blocks until an interrupt arrives.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.runner.Start(ctx)
	a.l.Info("loops running",
		applogger.String("asset", a.cfg.Asset),
		applogger.String("environment", a.cfg.Environment),
	)

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start failed", applogger.Error(err))
		return err
	}
	a.l.Info("http server listening", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

func (a *App) shutdown() error {
	a.runner.Stop()
	a.l.Info("loops stopped")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	if a.notifier != nil {
		if err := a.notifier.Close(); err != nil {
			a.l.Warn("notifier close error", applogger.Error(err))
		}
	}
	for _, fn := range a.closers {
		if err := fn(); err != nil {
			a.l.Warn("resource close error", applogger.Error(err))
		}
	}
	if a.dbClient != nil {
		if err := a.dbClient.Close(); err != nil {
			a.l.Warn("storage close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
