package llmworker

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chris-arsenault/penguin-tales-sub002/domain/enrichment"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/export"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/graph"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/rng"
)

func testDispatcher(t *testing.T, transport *fakeTransport) (*Dispatcher, *enrichment.Queue, *graph.TemplateView, *export.LoreLedger) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	store := graph.NewStore(log, 10)
	view := graph.NewTemplateView(store, rng.New(1))
	queue := enrichment.NewQueue(log, enrichment.DefaultQueueConfig())
	lore := export.NewLoreLedger()
	client := NewClient(transport)
	require.NoError(t, client.Init(context.Background(), WorkerConfig{Provider: "stub", Model: "stub-1"}))
	return NewDispatcher(client, queue, view, lore, NewDurableQueue(nil, log), log), queue, view, lore
}

func TestDispatchBatch_SendsQueuedTasks(t *testing.T) {
	transport := &fakeTransport{inbound: []Envelope{
		{Kind: msgReady},
		{Kind: msgStarted, TaskID: "irrelevant"},
	}}
	d, queue, view, _ := testDispatcher(t, transport)

	id := view.CreateEntity(graph.EntitySettings{Kind: graph.KindNPC, Name: "Mira", Prominence: graph.ProminenceMarginal})
	task, ok := queue.Enqueue(enrichment.TypeEntityDescription, id, "hash1", 1)
	require.True(t, ok)

	sent := d.DispatchBatch(context.Background(), enrichment.TypeEntityDescription)
	require.Equal(t, 1, sent)
	require.Contains(t, d.inFlight, task.ID)
}

func TestDispatchBatch_FailsTaskOnExecuteError(t *testing.T) {
	transport := &fakeTransport{inbound: []Envelope{{Kind: msgReady}}} // ready for Init only; no started reply queued, Execute errors
	d, queue, view, _ := testDispatcher(t, transport)

	id := view.CreateEntity(graph.EntitySettings{Kind: graph.KindNPC, Name: "Orin"})
	queue.Enqueue(enrichment.TypeEntityDescription, id, "hash1", 1)

	sent := d.DispatchBatch(context.Background(), enrichment.TypeEntityDescription)
	require.Equal(t, 0, sent)
}

func TestPollOne_AppliesTextResultToEntity(t *testing.T) {
	transport := &fakeTransport{inbound: []Envelope{{Kind: msgReady}, {Kind: msgStarted, TaskID: "ignored"}}}
	d, queue, view, lore := testDispatcher(t, transport)

	id := view.CreateEntity(graph.EntitySettings{Kind: graph.KindNPC, Name: "Sael"})
	task, _ := queue.Enqueue(enrichment.TypeEntityDescription, id, "hash1", 1)
	d.DispatchBatch(context.Background(), enrichment.TypeEntityDescription)

	payload, err := json.Marshal(Result{Text: "Sael is a wandering smith.", Model: "stub-1"})
	require.NoError(t, err)
	transport.inbound = append(transport.inbound, Envelope{Kind: msgComplete, TaskID: task.ID, Payload: payload})

	resolved, err := d.PollOne(context.Background())
	require.NoError(t, err)
	require.Equal(t, task.ID, resolved)

	entity := view.LoadEntity(id)
	require.Equal(t, "Sael is a wandering smith.", entity.Description)

	records := lore.All()
	require.Len(t, records, 1)
	require.Equal(t, task.ID, records[0].ID)
	require.Equal(t, id, records[0].TargetID)
	require.Equal(t, "Sael is a wandering smith.", records[0].Text)
}

func TestPollOne_AppliesImageResultAsTag(t *testing.T) {
	transport := &fakeTransport{inbound: []Envelope{{Kind: msgReady}, {Kind: msgStarted, TaskID: "ignored"}}}
	d, queue, view, _ := testDispatcher(t, transport)

	id := view.CreateEntity(graph.EntitySettings{Kind: graph.KindLocation, Name: "The Spire"})
	task, _ := queue.Enqueue(enrichment.TypeEntityDescription, id, "hash1", 1)
	d.DispatchBatch(context.Background(), enrichment.TypeEntityDescription)

	payload, err := json.Marshal(Result{ImageID: "img-123", Model: "stub-1"})
	require.NoError(t, err)
	transport.inbound = append(transport.inbound, Envelope{Kind: msgComplete, TaskID: task.ID, Payload: payload})

	_, err = d.PollOne(context.Background())
	require.NoError(t, err)

	entity := view.LoadEntity(id)
	require.Equal(t, "img-123", entity.Tags["imageId"])
}

func TestPollOne_FailsQueueEntryOnWorkerError(t *testing.T) {
	transport := &fakeTransport{inbound: []Envelope{{Kind: msgReady}, {Kind: msgStarted, TaskID: "ignored"}}}
	d, queue, view, _ := testDispatcher(t, transport)

	id := view.CreateEntity(graph.EntitySettings{Kind: graph.KindNPC, Name: "Tova"})
	task, _ := queue.Enqueue(enrichment.TypeEntityDescription, id, "hash1", 1)
	d.DispatchBatch(context.Background(), enrichment.TypeEntityDescription)

	transport.inbound = append(transport.inbound, Envelope{Kind: msgError, TaskID: task.ID, Error: "rate limited"})

	_, err := d.PollOne(context.Background())
	require.NoError(t, err) // worker-level error is absorbed, not returned

	entity := view.LoadEntity(id)
	require.Empty(t, entity.Description)
}

func TestAbortAll_ClearsInFlightAndAbortsQueue(t *testing.T) {
	transport := &fakeTransport{inbound: []Envelope{{Kind: msgReady}, {Kind: msgStarted, TaskID: "ignored"}}}
	d, queue, view, _ := testDispatcher(t, transport)

	id := view.CreateEntity(graph.EntitySettings{Kind: graph.KindFaction, Name: "The Cinder Court"})
	task, _ := queue.Enqueue(enrichment.TypeEntityDescription, id, "hash1", 1)
	d.DispatchBatch(context.Background(), enrichment.TypeEntityDescription)

	d.AbortAll(context.Background())
	require.Empty(t, d.inFlight)

	pending := queue.Pending()
	require.Len(t, pending, 1)
	require.Equal(t, enrichment.StatusAborted, pending[0].Status)
	_ = task
}

func TestWorkerTaskType_Mapping(t *testing.T) {
	require.Equal(t, TaskEraNarrative, workerTaskType(enrichment.TypeEraNarrative))
	require.Equal(t, TaskRelationship, workerTaskType(enrichment.TypeRelationshipBackstory))
	require.Equal(t, TaskRelationship, workerTaskType(enrichment.TypeChainLink))
	require.Equal(t, TaskText, workerTaskType(enrichment.TypeEntityDescription))
	require.Equal(t, TaskText, workerTaskType(enrichment.TypeEntityChange))
}

func TestLoreRecordType_Mapping(t *testing.T) {
	require.Equal(t, export.LoreEraNarrative, loreRecordType(enrichment.TypeEraNarrative))
	require.Equal(t, export.LoreRelationshipBackstory, loreRecordType(enrichment.TypeRelationshipBackstory))
	require.Equal(t, export.LoreChainLink, loreRecordType(enrichment.TypeChainLink))
	require.Equal(t, export.LoreDiscoveryEvent, loreRecordType(enrichment.TypeDiscoveryEvent))
	require.Equal(t, export.LoreDiscoveryEvent, loreRecordType(enrichment.TypeOccurrence))
	require.Equal(t, export.LoreEntityChange, loreRecordType(enrichment.TypeEntityChange))
	require.Equal(t, export.LoreDescription, loreRecordType(enrichment.TypeEntityDescription))
}

func TestPollOne_NilLedgerSkipsLoreRecording(t *testing.T) {
	transport := &fakeTransport{inbound: []Envelope{{Kind: msgReady}, {Kind: msgStarted, TaskID: "ignored"}}}
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	store := graph.NewStore(log, 10)
	view := graph.NewTemplateView(store, rng.New(1))
	queue := enrichment.NewQueue(log, enrichment.DefaultQueueConfig())
	client := NewClient(transport)
	require.NoError(t, client.Init(context.Background(), WorkerConfig{Provider: "stub", Model: "stub-1"}))
	d := NewDispatcher(client, queue, view, nil, NewDurableQueue(nil, log), log)

	id := view.CreateEntity(graph.EntitySettings{Kind: graph.KindNPC, Name: "Orin"})
	task, _ := queue.Enqueue(enrichment.TypeEntityDescription, id, "hash1", 1)
	d.DispatchBatch(context.Background(), enrichment.TypeEntityDescription)

	payload, err := json.Marshal(Result{Text: "Orin keeps to the hills.", Model: "stub-1"})
	require.NoError(t, err)
	transport.inbound = append(transport.inbound, Envelope{Kind: msgComplete, TaskID: task.ID, Payload: payload})

	_, err = d.PollOne(context.Background())
	require.NoError(t, err)

	entity := view.LoadEntity(id)
	require.Equal(t, "Orin keeps to the hills.", entity.Description)
}
