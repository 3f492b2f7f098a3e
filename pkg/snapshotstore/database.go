package snapshotstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"go.uber.org/fx"

	"github.com/chris-arsenault/penguin-tales-sub002/internal/config"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/logger"
)

// NewPgxPool connects to Postgres, grounded on the teacher's
// internal/database.NewPgxPool. Returns a nil pool without error when the
// snapshot store isn't configured (spec.md §13: persistence beyond JSON is
// never required), so nothing downstream needs its own feature-flag check
// beyond Store.Enabled.
func NewPgxPool(lc fx.Lifecycle, cfg *config.Config, log *slog.Logger) (*pgxpool.Pool, error) {
	log = log.With(logger.Scope("snapshotstore"))

	if !cfg.Snapshot.Enabled() {
		log.Info("snapshot store disabled, skipping postgres connection")
		return nil, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Snapshot.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Snapshot.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.Snapshot.MaxIdleConns)
	poolConfig.MaxConnIdleTime = cfg.Snapshot.MaxIdleTime

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("snapshot store pool created",
		slog.String("host", cfg.Snapshot.Host), slog.Int("port", cfg.Snapshot.Port))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("closing snapshot store pool")
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

// NewBunDB wraps a pgx pool with bun's query builder, grounded on the
// teacher's internal/database.NewBunDB. Returns nil when pool is nil.
func NewBunDB(pool *pgxpool.Pool, cfg *config.Config, log *slog.Logger) *bun.DB {
	if pool == nil {
		return nil
	}

	sqldb := stdlib.OpenDBFromPool(pool)
	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Snapshot.QueryDebug {
		db.AddQueryHook(&queryLoggingHook{log: log.With(logger.Scope("snapshotstore.bun"))})
	}
	return db
}

// queryLoggingHook implements bun.QueryHook for query logging.
type queryLoggingHook struct {
	log *slog.Logger
}

func (h *queryLoggingHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryLoggingHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	duration := time.Since(event.StartTime)

	if event.Err != nil && event.Err != sql.ErrNoRows {
		h.log.Error("query error", slog.String("query", event.Query), slog.Duration("duration", duration), logger.Error(event.Err))
		return
	}
	if duration > 3*time.Second {
		h.log.Warn("slow query", slog.String("query", event.Query), slog.Duration("duration", duration))
		return
	}
	h.log.Debug("query", slog.String("query", event.Query), slog.Duration("duration", duration))
}
