package enrichment

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chris-arsenault/penguin-tales-sub002/pkg/logger"
)

func TestEnqueue_DuplicateFingerprintIsMerged(t *testing.T) {
	q := NewQueue(logger.New(), DefaultQueueConfig())

	_, ok1 := q.Enqueue(TypeEntityDescription, "e1", "ctx", 1)
	_, ok2 := q.Enqueue(TypeEntityDescription, "e1", "ctx", 2)

	require.True(t, ok1)
	require.False(t, ok2, "duplicate fingerprint within a run must be merged, not re-enqueued")
	require.Equal(t, 1, q.Len())
}

func TestEnqueue_DifferentContextHashIsDistinctTask(t *testing.T) {
	q := NewQueue(logger.New(), DefaultQueueConfig())
	_, ok1 := q.Enqueue(TypeEntityDescription, "e1", "ctx-a", 1)
	_, ok2 := q.Enqueue(TypeEntityDescription, "e1", "ctx-b", 1)
	require.True(t, ok1)
	require.True(t, ok2)
}

func TestEnqueue_RespectsBudget(t *testing.T) {
	cfg := DefaultQueueConfig()
	cfg.MaxEraNarratives = 1
	q := NewQueue(logger.New(), cfg)

	_, ok1 := q.Enqueue(TypeEraNarrative, "era1", "ctx", 1)
	_, ok2 := q.Enqueue(TypeEraNarrative, "era2", "ctx", 1)
	require.True(t, ok1)
	require.False(t, ok2)
}

func TestDequeueBatch_RespectsBatchSize(t *testing.T) {
	cfg := DefaultQueueConfig()
	cfg.BatchSize = 2
	q := NewQueue(logger.New(), cfg)

	for i := 0; i < 5; i++ {
		q.Enqueue(TypeEntityDescription, string(rune('a'+i)), "ctx", 1)
	}

	batch := q.DequeueBatch(TypeEntityDescription)
	require.Len(t, batch, 2)
	for _, task := range batch {
		require.Equal(t, StatusDispatched, task.Status)
	}
}

func TestCompleteFailAbort_UpdateStatus(t *testing.T) {
	q := NewQueue(logger.New(), DefaultQueueConfig())
	task, _ := q.Enqueue(TypeEntityDescription, "e1", "ctx", 1)

	q.Complete(task.ID)
	pending := q.Pending()
	require.Equal(t, StatusComplete, pending[0].Status)

	q.Fail(task.ID)
	require.Equal(t, StatusFailed, q.Pending()[0].Status)

	q.Abort(task.ID)
	require.Equal(t, StatusAborted, q.Pending()[0].Status)
}
