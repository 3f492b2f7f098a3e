package snapshotstore

import (
	"time"

	"github.com/uptrace/bun"
)

// Run represents one simulation run in the worldforge.runs table, grounded
// on the teacher's domain/backups.Backup model (same bun-tagged,
// UUID-primary-keyed shape, trimmed to a run's own identity rather than a
// multi-tenant org/project backup).
type Run struct {
	bun.BaseModel `bun:"table:worldforge.runs,alias:r"`

	ID          string     `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	ConfigHash  string     `bun:"config_hash,notnull" json:"configHash"`
	RNGSeed     int64      `bun:"rng_seed,notnull" json:"rngSeed"`
	StartedAt   time.Time  `bun:"started_at,notnull,default:now()" json:"startedAt"`
	CompletedAt *time.Time `bun:"completed_at" json:"completedAt,omitempty"`
}

// Snapshot is one exported-state capture for a run, stored as jsonb so the
// exact shape domain/export.State produces is preserved without a parallel
// relational schema for entities/relationships/history.
type Snapshot struct {
	bun.BaseModel `bun:"table:worldforge.snapshots,alias:s"`

	ID        string    `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	RunID     string    `bun:"run_id,notnull,type:uuid" json:"runId"`
	Tick      int       `bun:"tick,notnull" json:"tick"`
	Epoch     int       `bun:"epoch,notnull" json:"epoch"`
	State     []byte    `bun:"state,type:jsonb,notnull" json:"state"`
	CreatedAt time.Time `bun:"created_at,notnull,default:now()" json:"createdAt"`
}
