// Package snapshotstore is the optional, opt-in Postgres persistence layer
// for the spec.md §6 exported-state shape domain/export produces
// (SPEC_FULL.md §12: "no persistence format beyond JSON is required; the
// Postgres snapshot store is strictly additive"). It is never in the
// engine's hot tick path — a caller (internal/runmode, cmd/worldforge)
// decides when to call SaveSnapshot, typically once per epoch or at run
// completion.
package snapshotstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/chris-arsenault/penguin-tales-sub002/domain/export"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/logger"
)

// Module wires the snapshot store as an optional fx dependency. Every
// provider tolerates an unconfigured SnapshotConfig by returning a nil
// pool/db, and Store.Enabled reports the result.
var Module = fx.Module("snapshotstore",
	fx.Provide(NewPgxPool, NewBunDB, NewMigrator, NewStore),
	fx.Invoke(runMigrations),
)

// runMigrations brings the schema up to date on startup, before any
// caller can reach the Store through fx. A disabled snapshot store (nil
// db) makes Migrator.Up a no-op.
func runMigrations(lc fx.Lifecycle, m *Migrator) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return m.Up(ctx)
		},
	})
}

// ErrDisabled is returned by every Store method when no snapshot database
// is configured.
var ErrDisabled = errors.New("snapshotstore: disabled, no database configured")

// Store is the facade domain code calls: it never exposes *bun.DB or the
// Repository directly, so callers can't forget the Enabled check.
type Store struct {
	db   *bun.DB
	repo *Repository
	log  *slog.Logger
}

// NewStore builds a Store. db may be nil (snapshot store disabled).
func NewStore(db *bun.DB, log *slog.Logger) *Store {
	s := &Store{db: db, log: log.With(logger.Scope("snapshotstore"))}
	if db != nil {
		s.repo = NewRepository(db, log)
	}
	return s
}

// Enabled reports whether a snapshot database is configured and reachable.
func (s *Store) Enabled() bool {
	return s.db != nil
}

// StartRun records the start of a new simulation run and returns its id.
func (s *Store) StartRun(ctx context.Context, configHash string, rngSeed int64) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}
	run := &Run{ID: uuid.NewString(), ConfigHash: configHash, RNGSeed: rngSeed, StartedAt: time.Now()}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		return "", err
	}
	return run.ID, nil
}

// CompleteRun stamps a run as finished.
func (s *Store) CompleteRun(ctx context.Context, runID string) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	return s.repo.CompleteRun(ctx, runID, sql.NullTime{Time: time.Now(), Valid: true})
}

// SaveSnapshot marshals state with domain/export.Marshal and persists it
// against runID.
func (s *Store) SaveSnapshot(ctx context.Context, runID string, state export.State) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	data, err := export.Marshal(state)
	if err != nil {
		return fmt.Errorf("snapshotstore: marshal state: %w", err)
	}
	snap := &Snapshot{
		ID:        uuid.NewString(),
		RunID:     runID,
		Tick:      state.Tick,
		Epoch:     state.Epoch,
		State:     data,
		CreatedAt: time.Now(),
	}
	return s.repo.InsertSnapshot(ctx, snap)
}

// LatestState loads the most recent snapshot for a run and decodes it back
// into an export.State.
func (s *Store) LatestState(ctx context.Context, runID string) (*export.State, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}
	snap, err := s.repo.LatestSnapshot(ctx, runID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}
	return decodeState(*snap)
}

func decodeState(snap Snapshot) (*export.State, error) {
	var state export.State
	if err := json.Unmarshal(snap.State, &state); err != nil {
		return nil, fmt.Errorf("snapshotstore: decode snapshot %s: %w", snap.ID, err)
	}
	return &state, nil
}
