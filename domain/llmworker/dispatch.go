package llmworker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chris-arsenault/penguin-tales-sub002/domain/enrichment"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/export"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/graph"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/logger"
)

// Dispatcher drains an enrichment.Queue through a Client and applies
// completed results back onto the graph. The engine's tick loop enqueues
// tasks (domain/engine.runChangeDetectionAndEnrichment); nothing else
// consumed them until this type, so batches sat in the queue forever. One
// Dispatcher owns one Client, matching spec §6's one-worker-per-run shape.
type Dispatcher struct {
	client  *Client
	queue   *enrichment.Queue
	view    *graph.TemplateView
	lore    *export.LoreLedger
	durable *DurableQueue
	log     *slog.Logger

	inFlight map[string]enrichment.Task
}

// NewDispatcher builds a Dispatcher around an already-initialized Client.
// lore may be nil, in which case applied results are written to the graph
// but never recorded as a LoreRecord (the export's loreRecords[] stays
// empty). durable may be nil (snapshot persistence disabled), in which
// case every dispatched task only ever lives in the in-memory queue.
func NewDispatcher(client *Client, queue *enrichment.Queue, view *graph.TemplateView, lore *export.LoreLedger, durable *DurableQueue, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		client:   client,
		queue:    queue,
		view:     view,
		lore:     lore,
		durable:  durable,
		log:      log.With(logger.Scope("llmworker.dispatcher")),
		inFlight: make(map[string]enrichment.Task),
	}
}

// loreRecordType maps an enrichment.TaskType onto the spec §6 LoreRecord
// type enum. TypeOccurrence has no dedicated lore type in the enum; it is
// recorded as a discovery_event, the closest match.
func loreRecordType(t enrichment.TaskType) export.LoreRecordType {
	switch t {
	case enrichment.TypeEraNarrative:
		return export.LoreEraNarrative
	case enrichment.TypeRelationshipBackstory:
		return export.LoreRelationshipBackstory
	case enrichment.TypeChainLink:
		return export.LoreChainLink
	case enrichment.TypeDiscoveryEvent, enrichment.TypeOccurrence:
		return export.LoreDiscoveryEvent
	case enrichment.TypeEntityChange:
		return export.LoreEntityChange
	default:
		return export.LoreDescription
	}
}

// workerTaskType maps an enrichment.TaskType onto the worker-facing
// TaskType the Client speaks, per spec §6's task vocabulary.
func workerTaskType(t enrichment.TaskType) TaskType {
	switch t {
	case enrichment.TypeEraNarrative:
		return TaskEraNarrative
	case enrichment.TypeRelationshipBackstory, enrichment.TypeChainLink:
		return TaskRelationship
	default:
		return TaskText
	}
}

// DispatchBatch pulls up to one batch of a single enrichment type, sends
// each task to the worker, and tracks it as in-flight. Tasks the worker
// rejects synchronously (Execute failing before `started`) are marked
// failed immediately rather than left pending forever.
func (d *Dispatcher) DispatchBatch(ctx context.Context, taskType enrichment.TaskType) int {
	batch := d.queue.DequeueBatch(taskType)
	sent := 0
	for _, task := range batch {
		wt := Task{
			ID:       task.ID,
			Type:     workerTaskType(task.Type),
			EntityID: task.TargetID,
			Prompt:   d.buildPrompt(task),
		}
		if d.durable != nil {
			if err := d.durable.Record(ctx, wt); err != nil {
				d.log.Warn("durable record failed", slog.String("task_id", task.ID), logger.Error(err))
			}
		}
		if err := d.client.Execute(ctx, wt); err != nil {
			d.log.Warn("enrichment dispatch failed", slog.String("task_id", task.ID), logger.Error(err))
			d.queue.Fail(task.ID)
			if d.durable != nil {
				_ = d.durable.Fail(ctx, task.ID, 0, err)
			}
			continue
		}
		d.inFlight[task.ID] = task
		sent++
	}
	return sent
}

// buildPrompt assembles the lore-writing prompt for one enrichment task
// from the current entity and its relationships. A task whose target
// entity has since been archived or culled gets a degraded but still
// sendable prompt rather than blocking dispatch.
func (d *Dispatcher) buildPrompt(task enrichment.Task) string {
	entity := d.view.LoadEntity(task.TargetID)
	if entity == nil {
		return fmt.Sprintf("Write a short entry for a %s that recently changed.", task.Type)
	}

	switch task.Type {
	case enrichment.TypeEntityChange:
		return fmt.Sprintf("%s %q (%s, %s prominence) has changed. Write an updated description reflecting its current state.",
			entity.Kind, entity.Name, entity.Subtype, entity.Prominence)
	case enrichment.TypeRelationshipBackstory, enrichment.TypeChainLink:
		rels := d.view.GetEntityRelationships(entity.ID, graph.DirectionBoth)
		if len(rels) == 0 {
			return fmt.Sprintf("Write a short backstory connecting %q to the wider world.", entity.Name)
		}
		other := rels[0].Src
		if other == entity.ID {
			other = rels[0].Dst
		}
		return fmt.Sprintf("Write a short backstory for the %s relationship between %q and %q.", rels[0].Kind, entity.Name, other)
	case enrichment.TypeEraNarrative:
		return fmt.Sprintf("Write a narrative summary for the era %q.", entity.Name)
	default:
		return fmt.Sprintf("Write a vivid description for the %s %q (%s, %s prominence).",
			entity.Kind, entity.Name, entity.Subtype, entity.Prominence)
	}
}

// PollOne reads one pending result and applies it to the graph, returning
// the task id the worker's message named (for an unknown or aborted task
// nothing is applied), or "" when the message named no task. The error
// return only ever reflects a failure not tied to a task id, not a worker
// task error, which is handled internally by failing the queue entry.
func (d *Dispatcher) PollOne(ctx context.Context) (string, error) {
	taskID, result, err := d.client.Poll(ctx)
	if err != nil && taskID == "" {
		return "", fmt.Errorf("llmworker: poll: %w", err)
	}

	task, ok := d.inFlight[taskID]
	if !ok {
		// Result for an aborted or unknown task; nothing to apply.
		return taskID, nil
	}
	delete(d.inFlight, taskID)

	if result == nil {
		d.log.Warn("enrichment task failed", slog.String("task_id", taskID))
		d.queue.Fail(taskID)
		if d.durable != nil {
			_ = d.durable.Fail(ctx, taskID, 1, fmt.Errorf("worker reported no result"))
		}
		return taskID, nil
	}

	d.apply(task, *result)
	d.queue.Complete(taskID)
	if d.durable != nil {
		_ = d.durable.Complete(ctx, taskID)
	}
	return taskID, nil
}

// apply writes a worker Result onto the entity a task targeted. Text
// results become the new description (spec §7: a placeholder stays in
// place until a real result supersedes it); image results are recorded as
// an opaque tag, since Entity carries no dedicated image field.
func (d *Dispatcher) apply(task enrichment.Task, result Result) {
	patch := graph.EntityPatch{}
	if result.Text != "" {
		text := result.Text
		patch.Description = &text
	}
	if result.ImageID != "" {
		patch.Tags = map[string]string{"imageId": result.ImageID}
	}
	if patch.Description == nil && patch.Tags == nil {
		return
	}
	d.view.UpdateEntity(task.TargetID, patch)

	if d.lore != nil && result.Text != "" {
		d.lore.Append(export.LoreRecord{
			ID:       task.ID,
			Type:     loreRecordType(task.Type),
			TargetID: task.TargetID,
			Text:     result.Text,
			Metadata: map[string]string{"model": result.Model},
		})
	}
}

// AbortAll cancels every in-flight task, used on engine shutdown so the
// worker doesn't keep producing results nothing will ever consume.
func (d *Dispatcher) AbortAll(ctx context.Context) {
	for id := range d.inFlight {
		_ = d.client.Abort(ctx, id)
		d.queue.Abort(id)
		delete(d.inFlight, id)
	}
}
