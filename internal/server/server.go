package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"gorm.io/gorm"

	"menucost/internal/cascade"
	"menucost/internal/handlers"
	applog "menucost/internal/log"
	"menucost/internal/store"
)

const defaultRateLimit = "10-M"

// Config captures the runtime configuration for the HTTP server.
type Config struct {
	Addr     string
	Database *gorm.DB
	// Locker serializes recalculations per workspace. Nil means in-process.
	Locker  cascade.Locker
	Costing cascade.Options
	// RateLimit is a limiter formatted rate applied to every endpoint that
	// starts a recalculation.
	RateLimit string
}

// Server wraps an http.Server and exposes helpers for bootstrapping a
// production-ready web service.
type Server struct {
	config     Config
	httpServer *http.Server
}

// New builds a new Server using the provided configuration.
func New(cfg Config) (*Server, error) {
	applog.Debug(context.Background(), "initializing server",
		"addr", cfg.Addr,
		"workers", cfg.Costing.Workers,
		"rateLimit", cfg.RateLimit,
	)

	if cfg.Database != nil {
		costStore := store.New(cfg.Database)
		handlers.Configure(costStore, cascade.New(costStore, cfg.Locker, cfg.Costing))
		applog.Debug(context.Background(), "handler dependencies configured")
	} else {
		applog.Debug(context.Background(), "no database provided, workspace routes unavailable")
	}

	limit, err := rateLimiter(cfg.RateLimit)
	if err != nil {
		return nil, err
	}
	handler := newRouter(limit)

	applog.Debug(context.Background(), "http handler chain prepared")

	return &Server{
		config: cfg,
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

func rateLimiter(formatted string) (func(http.Handler) http.Handler, error) {
	if strings.TrimSpace(formatted) == "" {
		applog.Debug(context.Background(), "rate limit not provided, using default")
		formatted = defaultRateLimit
	}
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("parse rate limit %q: %w", formatted, err)
	}
	middleware := stdlib.NewMiddleware(limiter.New(memory.NewStore(), rate))
	applog.Debug(context.Background(), "rate limiter configured", "limit", rate.Limit, "period", rate.Period.String())
	return middleware.Handler, nil
}

// Start begins serving HTTP traffic using the underlying http.Server.
func (s *Server) Start() error {
	applog.Debug(context.Background(), "server starting listener", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server with a timeout.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	applog.Debug(ctx, "server initiating graceful shutdown")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the configured HTTP handler, enabling integration tests.
func (s *Server) Handler() http.Handler {
	applog.Debug(context.Background(), "server handler requested")
	return s.httpServer.Handler
}
