package llmworker

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/chris-arsenault/penguin-tales-sub002/internal/jobs"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/logger"
)

// DurableQueue gives a dispatched Task a crash-recoverable record in
// Postgres, on top of the in-memory domain/enrichment.Queue that drives
// actual batching/budget decisions for a single run. It wraps
// internal/jobs.Queue exactly the way the teacher's own job-backed
// services do — one table, one Queue, idempotent enqueue plus
// dequeue/complete/fail against it — applied here to worker tasks instead
// of emails or extraction jobs.
type DurableQueue struct {
	db    *bun.DB
	queue *jobs.Queue
	log   *slog.Logger
}

const enrichmentJobsTable = "worldforge.enrichment_jobs"

// NewDurableQueue wraps db in a jobs.Queue scoped to the enrichment_jobs
// table. db may be nil (snapshot store disabled); every method is then a
// no-op, matching pkg/snapshotstore.Store's own "nil db disables
// persistence" convention.
func NewDurableQueue(db *bun.DB, log *slog.Logger) *DurableQueue {
	log = log.With(logger.Scope("llmworker.durablequeue"))
	if db == nil {
		return &DurableQueue{log: log}
	}
	cfg := jobs.DefaultQueueConfig(enrichmentJobsTable, "entity_id")
	return &DurableQueue{db: db, queue: jobs.NewQueue(db, cfg, log), log: log}
}

// Record idempotently inserts a pending job row for task, skipping the
// insert if an active (pending/processing) row for the same entity+task
// type already exists (the partial unique index enforces this).
func (d *DurableQueue) Record(ctx context.Context, task Task) error {
	if d.db == nil {
		return nil
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("llmworker: marshal durable task payload: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, entity_id, task_type, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (entity_id, task_type) WHERE status IN ('pending', 'processing')
		DO NOTHING`, enrichmentJobsTable)

	if _, err := d.db.ExecContext(ctx, query, task.ID, task.EntityID, string(task.Type), payload); err != nil {
		return fmt.Errorf("llmworker: record durable task: %w", err)
	}
	return nil
}

// Complete marks a durable job row completed. A no-op if persistence is
// disabled or the row was never recorded.
func (d *DurableQueue) Complete(ctx context.Context, taskID string) error {
	if d.queue == nil {
		return nil
	}
	return d.queue.MarkCompleted(ctx, taskID)
}

// Fail marks a durable job row failed, scheduling a retry with the
// queue's exponential backoff unless attempt has exhausted MaxAttempts.
func (d *DurableQueue) Fail(ctx context.Context, taskID string, attempt int, cause error) error {
	if d.queue == nil {
		return nil
	}
	return d.queue.MarkFailed(ctx, taskID, attempt, cause.Error())
}

// RecoverStale re-queues rows left in 'processing' by a worker that
// crashed mid-task, so a restarted run picks them back up instead of
// losing them silently.
func (d *DurableQueue) RecoverStale(ctx context.Context, staleThresholdMinutes int) (int, error) {
	if d.queue == nil {
		return 0, nil
	}
	n, err := d.queue.RecoverStaleJobs(ctx, staleThresholdMinutes)
	if err != nil {
		return 0, fmt.Errorf("llmworker: recover stale durable tasks: %w", err)
	}
	return n, nil
}

// Pending returns up to batchSize task ids the durable queue believes are
// still outstanding, dequeuing (claiming) them for processing.
func (d *DurableQueue) Pending(ctx context.Context, batchSize int) ([]string, error) {
	if d.queue == nil {
		return nil, nil
	}
	ids, err := d.queue.Dequeue(ctx, batchSize)
	if err != nil {
		return nil, fmt.Errorf("llmworker: dequeue durable tasks: %w", err)
	}
	return ids, nil
}

// enrichmentJobRow mirrors every column GetJobByID's "SELECT *" returns
// from worldforge.enrichment_jobs, not just the ones Load needs — bun
// scans a raw query's full column set into the destination struct.
type enrichmentJobRow struct {
	ID           string     `bun:"id"`
	EntityID     string     `bun:"entity_id"`
	TaskType     string     `bun:"task_type"`
	Payload      []byte     `bun:"payload"`
	Priority     int        `bun:"priority"`
	Status       string     `bun:"status"`
	AttemptCount int        `bun:"attempt_count"`
	LastError    *string    `bun:"last_error"`
	ScheduledAt  *time.Time `bun:"scheduled_at"`
	StartedAt    *time.Time `bun:"started_at"`
	CompletedAt  *time.Time `bun:"completed_at"`
	CreatedAt    time.Time  `bun:"created_at"`
	UpdatedAt    time.Time  `bun:"updated_at"`
}

// Load fetches the recorded Task payload for a durable job id, e.g. after
// a restart recovers it via RecoverStale.
func (d *DurableQueue) Load(ctx context.Context, taskID string) (Task, error) {
	var task Task
	if d.queue == nil {
		return task, nil
	}
	var row enrichmentJobRow
	if err := d.queue.GetJobByID(ctx, taskID, &row); err != nil {
		if err == sql.ErrNoRows {
			return task, nil
		}
		return task, fmt.Errorf("llmworker: load durable task %s: %w", taskID, err)
	}
	if row.ID == "" {
		return task, nil
	}
	if err := json.Unmarshal(row.Payload, &task); err != nil {
		return task, fmt.Errorf("llmworker: decode durable task %s: %w", taskID, err)
	}
	return task, nil
}
