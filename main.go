package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MGallo-Code/authgate/internal/auth"
	"github.com/MGallo-Code/authgate/internal/config"
	"github.com/MGallo-Code/authgate/internal/gateway"
	"github.com/MGallo-Code/authgate/internal/jwks"
	"github.com/MGallo-Code/authgate/internal/metrics"
	"github.com/MGallo-Code/authgate/internal/oauth"
	"github.com/MGallo-Code/authgate/internal/session"
	"github.com/MGallo-Code/authgate/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Embeds the migration files INTO the go bin

//go:embed migrations/*.sql
var migrationsDir embed.FS

// apiPrefix is where the auth routes are mounted.
const apiPrefix = "/api/v1"

func main() {
	// Load config first so we can set log level
	cfg, err := config.LoadConfig()
	if err != nil {
		// Fallback logger before config is available
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}

	// Include source location in log entries at debug level only.
	addSrc := cfg.LogLevel == slog.LevelDebug

	// Set up slog to output as json with configured level
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     cfg.LogLevel,
		AddSource: addSrc,
	})))

	// Cancel ctx on SIGINT/SIGTERM; run() shuts down when ctx is done.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run() is a separate func so deferred closes (ps, rs) always execute before os.Exit.
	if err := run(ctx, cfg, nil); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

// run holds all server logic and returns error instead of calling os.Exit,
// so deferred resource cleanup (ps.Close, rs.Close) always runs.
// Shuts down when ctx is cancelled (signal handling is the caller's concern).
// If ready is non-nil, the server's base URL is sent on it once the listener is bound.
func run(ctx context.Context, cfg *config.Config, ready chan<- string) error {
	h := &auth.AuthHandler{SessionTTL: cfg.SessionTTL, BasePath: apiPrefix}

	// Session store: Redis in production, in-process for single-instance dev setups
	switch cfg.SessionBackend {
	case config.BackendMemory:
		slog.Warn("using in-memory session store; sessions are lost on restart and not shared between instances")
		h.Sessions = session.NewMemoryStore(cfg.SessionTTL)
	default:
		rs, err := session.NewRedisStore(ctx, cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			return fmt.Errorf("failed to set up redis session store: %w", err)
		}
		defer rs.Close()
		h.Sessions = rs
		h.Redis = rs
	}

	// Postgres is optional; without it there's no audit trail
	if cfg.DatabaseURL != "" {
		ps, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to set up postgres store: %w", err)
		}
		defer ps.Close()

		migrationsFS, err := fs.Sub(migrationsDir, "migrations")
		if err != nil {
			return fmt.Errorf("failed to access embedded migrations: %w", err)
		}
		if err := ps.Migrate(ctx, migrationsFS); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		h.Audit = ps
		h.Postgres = ps
	} else {
		slog.Info("DATABASE_URL not set, login audit trail disabled")
	}

	registry, err := buildRegistry(ctx, cfg.Providers)
	if err != nil {
		return err
	}

	fetcher := jwks.NewFetcher(
		jwks.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		jwks.WithTTL(cfg.JWKSCacheTTL),
	)
	h.GW = gateway.New(registry, jwks.NewVerifier(fetcher), gateway.Config{
		AfterLoginURL:  cfg.AfterLoginURL,
		AfterLogoutURL: cfg.AfterLogoutURL,
	}, slog.Default())

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	// Bind listener; ":0" picks a free port (useful in tests).
	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	server := &http.Server{
		Handler:           buildRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine; run() continues past this.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("authgate listening", "addr", ln.Addr().String(), "providers", registry.IDs())
		// Send error only if server stops for a reason other than explicit shutdown.
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Signal readiness to caller (used by tests; nil in production).
	if ready != nil {
		ready <- "http://" + ln.Addr().String()
	}

	// Wait for server error or shutdown signal from ctx.
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	// Graceful shutdown ! :)
	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	// Stops accepting new conns, waits for in-flight requests, gives up after 30s
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// buildRegistry turns configured providers into clients, running discovery first
// for providers that ask for it. A provider that fails is a startup error.
func buildRegistry(ctx context.Context, providers []config.Provider) (*oauth.Registry, error) {
	clients := make([]oauth.Provider, 0, len(providers))
	for _, p := range providers {
		pc := p.Config
		if p.Discover {
			var err error
			if pc, err = oauth.Discover(ctx, pc); err != nil {
				return nil, fmt.Errorf("failed to discover provider endpoints: %w", err)
			}
		}
		c, err := oauth.NewClient(pc)
		if err != nil {
			return nil, fmt.Errorf("failed to configure provider: %w", err)
		}
		slog.Info("provider configured", "provider", c.ID(), "capability", c.Capability())
		clients = append(clients, c)
	}
	return oauth.NewRegistry(clients...)
}

// buildRouter wires all routes and middleware.
// Called from run() and from the smoke tests.
func buildRouter(h *auth.AuthHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Mount(apiPrefix, h.Routes())
	r.Handle("/metrics", promhttp.Handler())

	return r
}
