// Package runmode is the wall-clock-driven alternative to engine.Engine's
// batch Run loop: instead of ticking until a termination condition holds
// in a tight for-loop, Runner ticks the engine on a fixed interval via
// domain/scheduler, for a long-lived process that keeps a world growing
// indefinitely (SPEC_FULL.md §11's "continuous mode").
package runmode

import (
	"context"
	"log/slog"
	"time"

	"github.com/chris-arsenault/penguin-tales-sub002/domain/engine"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/scheduler"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/logger"
)

const tickTaskName = "tickOnce"

// Runner drives an engine.Engine on a wall-clock cadence instead of a
// tight batch loop.
type Runner struct {
	scheduler *scheduler.Scheduler
	engine    *engine.Engine
	interval  time.Duration
	log       *slog.Logger
	onEpoch   func(engine.EpochReport)
}

// New builds a Runner. onEpoch, if non-nil, is called synchronously
// whenever a tick crosses an epoch boundary — cmd/worldforge wires this to
// pkg/snapshotstore.Store.SaveSnapshot so continuous mode persists a
// snapshot once per epoch without this package importing snapshotstore
// directly.
func New(log *slog.Logger, eng *engine.Engine, interval time.Duration, onEpoch func(engine.EpochReport)) *Runner {
	return &Runner{
		scheduler: scheduler.NewScheduler(log),
		engine:    eng,
		interval:  interval,
		log:       log.With(logger.Scope("runmode")),
		onEpoch:   onEpoch,
	}
}

// Start registers the tick task and starts the underlying scheduler.
func (r *Runner) Start(ctx context.Context) error {
	if err := r.scheduler.AddIntervalTask(tickTaskName, r.interval, r.tickOnce); err != nil {
		return err
	}
	return r.scheduler.Start(ctx)
}

// Stop stops the scheduler, allowing any in-flight tick to finish.
func (r *Runner) Stop(ctx context.Context) error {
	return r.scheduler.Stop(ctx)
}

// tickOnce runs one engine tick and, if it crossed an epoch boundary,
// one Epoch pass — the same interleave engine.Engine.Run itself performs,
// just invoked once per scheduler firing instead of in a loop.
func (r *Runner) tickOnce(ctx context.Context) error {
	if r.engine.ShouldTerminate(ctx) {
		r.log.Info("termination condition reached, stopping continuous mode")
		return r.scheduler.Stop(ctx)
	}

	report := r.engine.Tick()
	r.log.Debug("tick complete",
		slog.Int("tick", report.Tick),
		slog.Int("entitiesCreated", report.EntitiesCreated),
		slog.Int("relationshipsCreated", report.RelationshipsCreated),
	)

	if r.engine.Store().Tick()%r.engine.EpochLength() == 0 {
		epochReport := r.engine.Epoch()
		r.log.Info("epoch complete",
			slog.Int("epoch", epochReport.Epoch),
			slog.Float64("fitness", epochReport.Fitness.Composite),
		)
		if r.onEpoch != nil {
			r.onEpoch(epochReport)
		}
	}

	return nil
}
