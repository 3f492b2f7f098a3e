package snapshotstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/chris-arsenault/penguin-tales-sub002/pkg/logger"
)

// Repository handles database operations for runs and snapshots, same
// bun-over-pgx shape as the teacher's domain/backups.Repository.
type Repository struct {
	db  *bun.DB
	log *slog.Logger
}

// NewRepository wraps a bun DB. db may be nil when the snapshot store is
// disabled; callers must check Store.Enabled before reaching a Repository
// method in that case.
func NewRepository(db *bun.DB, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log.With(logger.Scope("snapshotstore.repository"))}
}

// CreateRun inserts a new run record.
func (r *Repository) CreateRun(ctx context.Context, run *Run) error {
	if _, err := r.db.NewInsert().Model(run).Exec(ctx); err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// CompleteRun stamps a run's completion time.
func (r *Repository) CompleteRun(ctx context.Context, runID string, completedAt sql.NullTime) error {
	_, err := r.db.NewUpdate().
		Model((*Run)(nil)).
		Set("completed_at = ?", completedAt.Time).
		Where("id = ?", runID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by id, or nil if it does not exist.
func (r *Repository) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	err := r.db.NewSelect().Model(&run).Where("id = ?", runID).Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &run, nil
}

// InsertSnapshot appends one snapshot row for a run.
func (r *Repository) InsertSnapshot(ctx context.Context, snap *Snapshot) error {
	if _, err := r.db.NewInsert().Model(snap).Exec(ctx); err != nil {
		r.log.Error("failed to insert snapshot",
			slog.String("run_id", snap.RunID), slog.Int("tick", snap.Tick), logger.Error(err))
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recently created snapshot for a run, or
// nil if none exist.
func (r *Repository) LatestSnapshot(ctx context.Context, runID string) (*Snapshot, error) {
	var snap Snapshot
	err := r.db.NewSelect().
		Model(&snap).
		Where("run_id = ?", runID).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return &snap, nil
}

// ListSnapshots returns up to limit snapshots for a run, newest first.
func (r *Repository) ListSnapshots(ctx context.Context, runID string, limit int) ([]Snapshot, error) {
	var snaps []Snapshot
	err := r.db.NewSelect().
		Model(&snaps).
		Where("run_id = ?", runID).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return snaps, nil
}
