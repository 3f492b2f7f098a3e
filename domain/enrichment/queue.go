// Package enrichment implements the batched enrichment queue spec.md §4.10
// describes, dispatching tasks through the external LLM worker contract
// (§6). Structurally an in-memory analogue of the teacher's
// PostgreSQL-backed job queue (internal/jobs/queue.go): idempotent enqueue
// by fingerprint, batch dequeue, budget enforcement — minus persistence,
// since the engine run is single-process and ephemeral.
package enrichment

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/chris-arsenault/penguin-tales-sub002/pkg/logger"
)

// TaskStatus mirrors the teacher's JobStatus enum, trimmed to what an
// in-memory, single-run queue needs.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusDispatched TaskStatus = "dispatched"
	StatusComplete  TaskStatus = "complete"
	StatusFailed    TaskStatus = "failed"
	StatusAborted   TaskStatus = "aborted"
)

// TaskType is one of the enrichment kinds spec §4.10 names.
type TaskType string

const (
	TypeEntityDescription      TaskType = "entity_description"
	TypeRelationshipBackstory  TaskType = "relationship_backstory"
	TypeEraNarrative           TaskType = "era_narrative"
	TypeDiscoveryEvent         TaskType = "discovery_event"
	TypeChainLink              TaskType = "chain_link"
	TypeOccurrence             TaskType = "occurrence"
	TypeEntityChange           TaskType = "entity_change"
)

// Task is one unit of enrichment work, queued at the tick it was created.
type Task struct {
	ID          string
	Type        TaskType
	TargetID    string
	ContextHash string
	EnqueuedAt  int
	Fingerprint string
	Status      TaskStatus
}

// QueueConfig bounds the queue's behavior, mirroring the teacher's
// QueueConfig shape (batch size, retry-free here since enrichment failures
// are never retried — spec §7: "the placeholder description is kept").
type QueueConfig struct {
	BatchSize                  int
	MaxEntityEnrichments       int
	MaxRelationshipEnrichments int
	MaxEraNarratives           int
}

// DefaultQueueConfig mirrors the teacher's DefaultQueueConfig pattern.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		BatchSize:                  4,
		MaxEntityEnrichments:       200,
		MaxRelationshipEnrichments: 100,
		MaxEraNarratives:           20,
	}
}

// Queue is the in-memory, single-run enrichment task queue.
type Queue struct {
	log    *slog.Logger
	config QueueConfig

	pending []Task
	seen    map[string]bool

	entityCount       int
	relationshipCount int
	eraNarrativeCount int
}

// NewQueue builds an enrichment Queue.
func NewQueue(log *slog.Logger, config QueueConfig) *Queue {
	return &Queue{log: log.With(logger.Scope("enrichment.queue")), config: config, seen: make(map[string]bool)}
}

// Fingerprint computes the idempotency key spec §4.10 requires: "a
// fingerprint over the enrichment type, target id, and relevant context
// hash".
func Fingerprint(t TaskType, targetID, contextHash string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s", t, targetID, contextHash)))
	return hex.EncodeToString(sum[:16])
}

// Enqueue adds a task unless its fingerprint has already been seen this run
// (duplicates are merged, spec §4.10), or its type's budget is exhausted.
func (q *Queue) Enqueue(t TaskType, targetID, contextHash string, tick int) (Task, bool) {
	fp := Fingerprint(t, targetID, contextHash)
	if q.seen[fp] {
		return Task{}, false
	}
	if !q.withinBudget(t) {
		q.log.Warn("enrichment budget exhausted", slog.String("type", string(t)))
		return Task{}, false
	}

	task := Task{
		ID:          fp,
		Type:        t,
		TargetID:    targetID,
		ContextHash: contextHash,
		EnqueuedAt:  tick,
		Fingerprint: fp,
		Status:      StatusPending,
	}
	q.pending = append(q.pending, task)
	q.seen[fp] = true
	q.bumpBudgetCounter(t)
	return task, true
}

func (q *Queue) withinBudget(t TaskType) bool {
	switch t {
	case TypeEntityDescription, TypeEntityChange:
		return q.entityCount < q.config.MaxEntityEnrichments
	case TypeRelationshipBackstory, TypeChainLink:
		return q.relationshipCount < q.config.MaxRelationshipEnrichments
	case TypeEraNarrative:
		return q.eraNarrativeCount < q.config.MaxEraNarratives
	default:
		return true
	}
}

func (q *Queue) bumpBudgetCounter(t TaskType) {
	switch t {
	case TypeEntityDescription, TypeEntityChange:
		q.entityCount++
	case TypeRelationshipBackstory, TypeChainLink:
		q.relationshipCount++
	case TypeEraNarrative:
		q.eraNarrativeCount++
	}
}

// DequeueBatch pulls up to BatchSize pending tasks of one type, marking
// them dispatched.
func (q *Queue) DequeueBatch(t TaskType) []Task {
	var out []Task
	var remaining []Task
	for _, task := range q.pending {
		if task.Type == t && task.Status == StatusPending && len(out) < q.config.BatchSize {
			task.Status = StatusDispatched
			out = append(out, task)
		} else {
			remaining = append(remaining, task)
		}
	}
	q.pending = append(remaining, markDispatched(out)...)
	return out
}

func markDispatched(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	copy(out, tasks)
	return out
}

// Complete marks a task complete by id.
func (q *Queue) Complete(id string) { q.setStatus(id, StatusComplete) }

// Fail marks a task failed by id (spec §7: placeholder kept, warning
// recorded, never fatal).
func (q *Queue) Fail(id string) { q.setStatus(id, StatusFailed) }

// Abort marks a task aborted by id (spec §5 cancellation: "an active
// enrichment task is marked aborted by id; its result, if it arrives, is
// discarded").
func (q *Queue) Abort(id string) { q.setStatus(id, StatusAborted) }

func (q *Queue) setStatus(id string, status TaskStatus) {
	for i := range q.pending {
		if q.pending[i].ID == id {
			q.pending[i].Status = status
			return
		}
	}
}

// Pending returns a defensive copy of every task the queue holds, whatever
// its status: completed, failed and aborted tasks stay in the list.
func (q *Queue) Pending() []Task {
	out := make([]Task, len(q.pending))
	copy(out, q.pending)
	return out
}

// Len reports how many tasks the queue has ever accepted.
func (q *Queue) Len() int { return len(q.seen) }
