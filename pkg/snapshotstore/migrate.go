package snapshotstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"

	"github.com/chris-arsenault/penguin-tales-sub002/pkg/logger"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/snapshotstore/migrations"
)

// Migrator runs the worldforge schema migrations (runs, snapshots and
// enrichment_jobs tables),
// grounded on the teacher's internal/migrate.Migrator (goose over a bun
// DB's underlying *sql.DB), trimmed to the one operation the snapshot
// store needs at startup: bring the schema up to date.
type Migrator struct {
	db  *bun.DB
	log *slog.Logger
}

// NewMigrator wraps a bun DB. db may be nil when the snapshot store is
// disabled; Up is then a no-op.
func NewMigrator(db *bun.DB, log *slog.Logger) *Migrator {
	return &Migrator{db: db, log: log.With(logger.Scope("snapshotstore.migrate"))}
}

// Up runs every pending migration. A nil underlying db (snapshot store
// disabled) is a no-op, not an error.
func (m *Migrator) Up(ctx context.Context) error {
	if m.db == nil {
		return nil
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	m.log.Info("running snapshot store migrations")
	if err := goose.UpContext(ctx, m.db.DB, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	m.log.Info("snapshot store migrations complete")
	return nil
}
