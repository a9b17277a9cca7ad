package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"gorm.io/gorm"

	"menucost/internal/cascade"
	"menucost/internal/config"
	"menucost/internal/db"
	"menucost/internal/db/mock"
	applog "menucost/internal/log"
	"menucost/internal/server"
)

type serverLifecycle interface {
	Start() error
	Stop() error
}

var (
	loadConfigFunc      = config.Load
	setLogLevelFunc     = applog.SetLevel
	setLogFormatFunc    = applog.SetFormat
	newMockDatabaseFunc = mock.New
	configureDatabase   = db.Configure
	newLockerFunc       = cascade.NewLocker
	newServerFunc       = func(cfg server.Config) (serverLifecycle, error) {
		return server.New(cfg)
	}
	subscribeShutdownSig = func() (<-chan os.Signal, func()) {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
		return ch, func() { signal.Stop(ch) }
	}
)

func main() {
	os.Exit(run(context.Background()))
}

func run(ctx context.Context) int {
	cfg, err := loadConfigFunc()
	if err != nil {
		applog.Error(ctx, "failed to load configuration", "error", err)
		return 1
	}
	if err := setLogLevelFunc(cfg.Logging.Level); err != nil {
		applog.Error(ctx, "invalid log level", "level", cfg.Logging.Level, "error", err)
		return 1
	}
	if err := setLogFormatFunc(cfg.Logging.Format); err != nil {
		applog.Error(ctx, "invalid log format", "format", cfg.Logging.Format, "error", err)
		return 1
	}

	var database *gorm.DB
	if cfg.Database.UseMock {
		applog.Info(ctx, "using seeded mock database")
		database, err = newMockDatabaseFunc(ctx)
	} else {
		applog.Debug(ctx, "configuring database", "driver", cfg.Database.Driver)
		database, err = configureDatabase(cfg.Database)
	}
	if err != nil {
		applog.Error(ctx, "failed to configure database", "error", err)
		return 1
	}

	locker, err := newLockerFunc(ctx, cfg.Redis.URL)
	if err != nil {
		applog.Error(ctx, "failed to configure workspace lock", "error", err)
		return 1
	}

	srv, err := newServerFunc(server.Config{
		Addr:     cfg.Server.Addr,
		Database: database,
		Locker:   locker,
		Costing: cascade.Options{
			Workers:  cfg.Costing.Workers,
			LockTTL:  cfg.Costing.LockTTL,
			LockWait: cfg.Costing.LockWait,
		},
		RateLimit: cfg.RateLimit.Rate,
	})
	if err != nil {
		applog.Error(ctx, "failed to build server", "error", err)
		return 1
	}

	signals, stop := subscribeShutdownSig()
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		applog.Info(ctx, "starting http server", "addr", cfg.Server.Addr)
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Error(ctx, "server encountered an error", "error", err)
			return 1
		}
		return 0
	case sig := <-signals:
		applog.Info(ctx, "shutting down http server", "signal", sig.String())
	case <-ctx.Done():
		applog.Info(ctx, "context cancelled, shutting down http server")
	}

	if err := srv.Stop(); err != nil {
		applog.Error(ctx, "graceful shutdown failed", "error", err)
		return 1
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		applog.Error(ctx, "server encountered an error", "error", err)
		return 1
	}
	return 0
}
