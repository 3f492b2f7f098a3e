package runmode

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chris-arsenault/penguin-tales-sub002/domain/catalyst"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/changedetect"
	domcfg "github.com/chris-arsenault/penguin-tales-sub002/domain/config"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/engine"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/enrichment"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/graph"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/pressures"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/systems"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/tags"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/templates"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/apperror"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/rng"
)

type noopDomain struct{}

func (noopDomain) ValidateEntityStructure(_ *graph.Entity) error { return nil }
func (noopDomain) PressureDomainMappings() map[string][]string  { return nil }

func buildTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	log := slog.Default()
	store := graph.NewStore(log, 10)
	r := rng.New(1)

	cfg := domcfg.EngineConfig{
		EpochLength:              2,
		SimulationTicksPerGrowth: 1,
		MaxTicks:                 5,
		TargetEntitiesPerKind:    map[string]int{"npc": 10},
		RelationshipBudget:       domcfg.RelationshipBudget{MaxPerSimulationTick: 100, MaxPerGrowthPhase: 5},
		Eras:                     []domcfg.EraConfig{{ID: "founding", Name: "the Founding", MinEraLength: 100}},
	}

	selector := templates.NewSelector(log, nil, 2, 10)
	eraSpawner := systems.NewEraSpawner(log, cfg.Eras)
	eraTransition := systems.NewEraTransition(log, cfg.Eras)
	checker := func(_ *graph.TemplateView, _ domcfg.TransitionCondition) bool { return true }
	culling := systems.NewRelationshipCulling(log, systems.DefaultCullingWeights)
	catalystEngine := catalyst.NewEngine(log, catalyst.NewRegistry(), nil, r, 0.1)
	detector := changedetect.NewDetector(graph.ProminenceRenowned)
	queue := enrichment.NewQueue(log, enrichment.DefaultQueueConfig())
	tracker := pressures.NewTracker(log, []pressures.Definition{{ID: "tension", Baseline: 10, Decay: 0.1}}, store)

	deps := engine.Deps{
		Store:            store,
		Pressures:        tracker,
		TemplateSelector: selector,
		EraSpawner:       eraSpawner,
		EraTransition:    eraTransition,
		ConditionChecker: checker,
		Culling:          culling,
		Catalyst:         catalystEngine,
		ChangeDetector:   detector,
		EnrichmentQueue:  queue,
		TagRegistry:      tags.NewRegistry(),
		Errors:           apperror.NewCollector(log),
		RNG:              r,
		Domain:           noopDomain{},
		Config:           cfg,
	}
	return engine.New(log, deps)
}

func TestRunner_TickOnceAdvancesStoreTick(t *testing.T) {
	eng := buildTestEngine(t)
	r := New(slog.Default(), eng, time.Millisecond, nil)

	require.NoError(t, r.tickOnce(context.Background()))
	require.Equal(t, 1, eng.Store().Tick())
}

func TestRunner_TickOnceCallsOnEpochAtBoundary(t *testing.T) {
	eng := buildTestEngine(t)
	var gotEpoch bool
	r := New(slog.Default(), eng, time.Millisecond, func(engine.EpochReport) { gotEpoch = true })

	// EpochLength is 2: tick 1 then tick 2 crosses the boundary.
	require.NoError(t, r.tickOnce(context.Background()))
	require.False(t, gotEpoch)
	require.NoError(t, r.tickOnce(context.Background()))
	require.True(t, gotEpoch)
}

func TestRunner_TickOnceStopsSchedulerAtMaxTicks(t *testing.T) {
	eng := buildTestEngine(t)
	r := New(slog.Default(), eng, time.Hour, nil)
	require.NoError(t, r.Start(context.Background()))

	// MaxTicks is 5: five real ticks, then a sixth call observes the
	// termination condition and stops the scheduler itself.
	for i := 0; i < 5; i++ {
		require.NoError(t, r.tickOnce(context.Background()))
	}
	require.True(t, r.scheduler.IsRunning())

	require.NoError(t, r.tickOnce(context.Background()))
	require.False(t, r.scheduler.IsRunning())
}

func TestRunner_StartRegistersTaskAndStartsScheduler(t *testing.T) {
	eng := buildTestEngine(t)
	r := New(slog.Default(), eng, time.Hour, nil)

	require.NoError(t, r.Start(context.Background()))
	require.True(t, r.scheduler.IsRunning())
	require.Contains(t, r.scheduler.ListTasks(), tickTaskName)

	require.NoError(t, r.Stop(context.Background()))
}
