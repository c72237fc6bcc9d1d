package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/csvgrid/csvgrid/internal/config"
	"github.com/csvgrid/csvgrid/internal/grid"
	"github.com/csvgrid/csvgrid/internal/logging"
	"github.com/csvgrid/csvgrid/internal/schema"
	"github.com/csvgrid/csvgrid/internal/sessionstore"
	"github.com/csvgrid/csvgrid/internal/uploads"
	"github.com/csvgrid/csvgrid/internal/web"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP import server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"store_backend", cfg.Store.Backend,
		"page_size", cfg.Grid.PageSize,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	store, uploadStore, cleanup, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	registry := schema.NewRegistry(schema.Defaults()...)
	srv := web.NewServer(cfg, registry, store, uploadStore)

	go sessionstore.RunPruner(ctx, store, grid.SnapshotKeyPrefix, cfg.Store.SnapshotTTL, time.Hour)

	// The context is cancelled by SIGINT/SIGTERM; drain in-flight requests
	// within the configured window, then force the listener closed.
	go func() {
		<-ctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("server stopped")
	return nil
}

// openStores builds the session store and upload history store for the
// configured backend. Upload history is durable only on postgres; the
// memory and sqlite backends keep it in memory.
func openStores(ctx context.Context, cfg *config.Config) (sessionstore.Store, uploads.Store, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		st, err := sessionstore.NewSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		slog.Info("session store ready", "backend", "sqlite", "path", cfg.Store.SQLitePath)
		return st, uploads.NewMemory(), func() { _ = st.Close() }, nil

	case config.BackendPostgres:
		poolConfig, err := pgxpool.ParseConfig(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("parse database URL: %w", err)
		}
		poolConfig.MaxConns = int32(cfg.Store.MaxConns)
		poolConfig.MinConns = int32(cfg.Store.MinConns)
		poolConfig.MaxConnLifetime = cfg.Store.MaxConnLifetime
		poolConfig.MaxConnIdleTime = cfg.Store.MaxConnIdleTime

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("ping database: %w", err)
		}
		if u, err := url.Parse(cfg.Store.DatabaseURL); err == nil {
			slog.Info("session store ready", "backend", "postgres", "database", strings.TrimPrefix(u.Path, "/"))
		}

		st, err := sessionstore.NewPostgres(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		uploadStore, err := uploads.NewPostgres(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		return st, uploadStore, pool.Close, nil

	default:
		slog.Info("session store ready", "backend", "memory")
		return sessionstore.NewMemory(), uploads.NewMemory(), func() {}, nil
	}
}
