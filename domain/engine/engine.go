// Package engine orchestrates the tick loop spec.md §2 describes: pressure
// update → growth phase → simulation systems → culling → change detection/
// enrichment → epoch boundary, with the termination and cancellation rules
// from §5.
package engine

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/chris-arsenault/penguin-tales-sub002/domain/catalyst"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/changedetect"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/clustering"
	domcfg "github.com/chris-arsenault/penguin-tales-sub002/domain/config"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/discovery"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/enrichment"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/graph"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/pressures"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/statistics"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/systems"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/tags"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/templates"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/apperror"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/logger"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/rng"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/tracing"
)

// Domain supplies the callbacks spec.md §6 calls "a domain object" — the
// engine's only seam into domain-specific behavior.
// getActionDomainsForEntity from spec.md §6 is already represented
// per-entity by graph.CatalystState.ActionDomains, so Domain carries no
// separate callback for it — catalyst.Engine reads it straight off the
// agent.
type Domain interface {
	ValidateEntityStructure(e *graph.Entity) error
	PressureDomainMappings() map[string][]string // kind -> pressure ids to boost on deficit
}

// TerminationPredicate lets the domain end a run early for a reason beyond
// tick/entity count (spec §5: "termination conditions ... domain
// predicate").
type TerminationPredicate func(view *graph.TemplateView) bool

// Deps bundles every collaborator the tick loop drives. Each is built and
// wired by cmd/worldforge; Engine only sequences calls against them.
type Deps struct {
	Store            *graph.Store
	Pressures        *pressures.Tracker
	TemplateSelector *templates.Selector
	EraSpawner       *systems.EraSpawner
	EraTransition    *systems.EraTransition
	ConditionChecker systems.ConditionChecker
	Systems          []systems.System
	Culling          *systems.RelationshipCulling
	Catalyst         *catalyst.Engine
	ChangeDetector   *changedetect.Detector
	EnrichmentQueue  *enrichment.Queue
	Discovery        *discovery.Engine
	TagRegistry      *tags.Registry
	Errors           *apperror.Collector
	RNG              *rng.Source
	Domain           Domain

	// Clustering, when set, runs the spec §4.12 consolidation pass at every
	// epoch boundary: candidates come from ClusterCandidates, scored and
	// grouped per ClusterConfig, then promoted to meta-entities. Nil skips
	// the pass entirely.
	Clustering        *clustering.Config
	ClusterCandidates func(view *graph.TemplateView) []*graph.Entity

	Config domcfg.EngineConfig

	// SnapshotFields builds the kind-specialized changedetect fields for an
	// entity; the engine itself is kind-agnostic (spec §4.10).
	SnapshotFields func(view *graph.TemplateView, e *graph.Entity) changedetect.KindFields
	// ContextHash builds the enrichment idempotency context for an entity.
	ContextHash func(e *graph.Entity) string
	// TerminationPredicate optionally ends the run early.
	TerminationPredicate TerminationPredicate
	// ResourceSampler optionally supplies a per-epoch process resource
	// snapshot (pkg/syshealth). Nil means epoch stats carry a zero
	// ResourceUsage.
	ResourceSampler func(ctx context.Context) statistics.ResourceUsage
}

// TickReport summarizes one tick's effects, for logging/debug surfaces.
type TickReport struct {
	Tick                 int
	TemplatesRun         int
	EntitiesCreated      int
	RelationshipsCreated int
	RelationshipsCulled  int
	EnrichmentEnqueued   int
	DiscoveryMade        bool
	EraTransitioned      bool
}

// EpochReport summarizes one epoch boundary.
type EpochReport struct {
	Epoch          int
	Stats          statistics.EpochStats
	Fitness        statistics.FitnessReport
	ClustersFormed int
}

// Engine drives the tick loop over Deps.
type Engine struct {
	log  *slog.Logger
	deps Deps
	view *graph.TemplateView
}

// New builds an Engine.
func New(log *slog.Logger, deps Deps) *Engine {
	return &Engine{
		log:  log.With(logger.Scope("engine")),
		deps: deps,
		view: graph.NewTemplateView(deps.Store, deps.RNG),
	}
}

// Store exposes the underlying graph store, for callers outside this
// package that only need read-only tick/epoch state — internal/runmode
// deciding when an interval tick also crosses an epoch boundary, or a
// caller assembling an export.State between runs.
func (e *Engine) Store() *graph.Store { return e.deps.Store }

// EpochLength returns the configured tick count per epoch.
func (e *Engine) EpochLength() int { return e.deps.Config.EpochLength }

// ShouldTerminate reports whether Run's termination condition (spec §5)
// currently holds, for callers driving their own loop around Tick/Epoch
// instead of calling Run directly.
func (e *Engine) ShouldTerminate(ctx context.Context) bool { return e.shouldTerminate(ctx) }

// Run executes ticks until a termination condition holds (spec §5: tick ≥
// maxTicks, total entities ≥ hardCap, or the domain predicate), checking
// ctx cancellation at each tick boundary.
func (e *Engine) Run(ctx context.Context) []TickReport {
	var reports []TickReport
	for {
		if e.shouldTerminate(ctx) {
			break
		}
		reports = append(reports, e.Tick())
		if e.deps.Store.Tick()%e.deps.Config.EpochLength == 0 {
			e.Epoch()
		}
	}
	return reports
}

func (e *Engine) shouldTerminate(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
	}
	if e.deps.Store.Tick() >= e.deps.Config.MaxTicks {
		return true
	}
	if e.deps.Config.HardCap > 0 && e.deps.Store.TotalEntities() >= e.deps.Config.HardCap {
		return true
	}
	if e.deps.TerminationPredicate != nil && e.deps.TerminationPredicate(e.view) {
		return true
	}
	return false
}

// Tick runs one full tick: pressure update, growth phase (every
// SimulationTicksPerGrowth ticks), simulation systems, catalyst, culling,
// discovery, change detection/enrichment, then advances the tick counter.
func (e *Engine) Tick() TickReport {
	tick := e.deps.Store.Tick()
	_, span := tracing.Start(context.Background(), "engine.tick", attribute.Int("worldforge.tick", tick))
	defer span.End()

	start := time.Now()
	defer func() { statistics.ObserveTickDuration(time.Since(start)) }()

	report := TickReport{Tick: tick}

	e.deps.Errors.Guard(tick, apperror.KindUnspecified, func() error {
		_, pressureSpan := tracing.Start(context.Background(), "engine.tick.pressures")
		defer pressureSpan.End()
		e.deps.Pressures.Apply(e.deps.Store)
		return nil
	})

	if tick%e.deps.Config.SimulationTicksPerGrowth == 0 {
		e.runGrowthPhase(&report)
	}

	e.runSystems(&report)
	e.runCatalyst()
	e.runCulling(&report)
	e.runDiscovery(&report)
	e.runChangeDetectionAndEnrichment(&report)

	e.deps.Store.AdvanceTick()
	return report
}

func (e *Engine) runGrowthPhase(report *TickReport) {
	_, span := tracing.Start(context.Background(), "engine.tick.growth")
	defer span.End()

	tick := e.deps.Store.Tick()
	e.deps.Errors.Guard(tick, apperror.KindTemplate, func() error {
		targetPerKind := e.deps.Config.TargetEntitiesPerKind
		actualPerKind := e.countEntitiesByKind()

		eraWeights := e.currentEraTemplateWeights()
		picked := e.deps.TemplateSelector.Pick(e.deps.RNG, templates.ScoreInputs{
			View:               e.view,
			EraTemplateWeights: eraWeights,
			TargetPerKind:      targetPerKind,
			ActualPerKind:      actualPerKind,
		}, e.deps.Config.RelationshipBudget.MaxPerGrowthPhase)

		for _, t := range picked {
			targets := t.FindTargets(e.view)
			result, err := t.Expand(e.view, targets)
			if err != nil {
				e.deps.Errors.Record(tick, apperror.NewTemplateFailure(t.ID(), err))
				continue
			}
			for id, delta := range result.PressureChanges {
				e.deps.Pressures.QueueDelta(id, delta)
			}
			report.TemplatesRun++
			report.EntitiesCreated += len(result.EntitiesCreated)
			report.RelationshipsCreated += result.RelationshipsCreated
		}

		deficits := deficitsByKind(targetPerKind, e.countEntitiesByKind())
		e.deps.Pressures.ApplyDistributionDeficits(deficits, 0.1, e.deps.Domain.PressureDomainMappings())
		return nil
	})
}

func (e *Engine) runSystems(report *TickReport) {
	_, span := tracing.Start(context.Background(), "engine.tick.systems")
	defer span.End()

	tick := e.deps.Store.Tick()
	era := e.currentEra()

	e.deps.Errors.Guard(tick, apperror.KindUnspecified, func() error {
		e.deps.EraSpawner.Apply(e.view, 1.0)
		return nil
	})
	e.deps.Errors.Guard(tick, apperror.KindUnspecified, func() error {
		result := e.deps.EraTransition.Apply(e.view, e.deps.ConditionChecker)
		if result.Description != "" && result.EntitiesModified > 0 {
			report.EraTransitioned = true
		}
		for id, delta := range result.PressureChanges {
			e.deps.Pressures.QueueDelta(id, delta)
		}
		return nil
	})

	for _, sys := range e.deps.Systems {
		modifier := 1.0
		if era != nil {
			if m, ok := era.SystemModifiers[sys.ID()]; ok {
				modifier = m
			}
		}
		if !sys.AlwaysRun() && !e.deps.RNG.RollProbability(modifier, 1.0) {
			continue
		}
		e.deps.Errors.Guard(tick, apperror.KindUnspecified, func() error {
			result := sys.Apply(e.view, modifier)
			for id, delta := range result.PressureChanges {
				e.deps.Pressures.QueueDelta(id, delta)
			}
			return nil
		})
	}
}

func (e *Engine) runCatalyst() {
	tick := e.deps.Store.Tick()
	era := e.currentEra()
	if era != nil {
		if m, ok := era.SystemModifiers["catalyst"]; ok {
			e.deps.Catalyst.SetTickModifier(m)
		}
	}
	agents := e.view.FindEntities(graph.Criteria{})
	e.deps.Errors.Guard(tick, apperror.KindUnspecified, func() error {
		e.deps.Catalyst.Run(e.view, agents)
		return nil
	})
}

func (e *Engine) runCulling(report *TickReport) {
	tick := e.deps.Store.Tick()
	added := e.deps.Store.RelationshipsSinceLastTick()
	if added <= e.deps.Config.RelationshipBudget.MaxPerSimulationTick {
		return
	}

	_, span := tracing.Start(context.Background(), "engine.tick.culling", attribute.Int("worldforge.relationships_added", added))
	defer span.End()

	e.deps.Errors.Record(tick, apperror.ErrBudgetExceeded)
	statistics.CullingTotal.Inc()
	e.deps.Errors.Guard(tick, apperror.KindBudget, func() error {
		excess := added - e.deps.Config.RelationshipBudget.MaxPerSimulationTick
		result := e.deps.Culling.Apply(e.view, excess)
		report.RelationshipsCulled = -result.RelationshipsAdded
		return nil
	})
}

func (e *Engine) runDiscovery(report *TickReport) {
	if e.deps.Discovery == nil {
		return
	}
	_, ok := e.deps.Discovery.Attempt(e.view, e.deps.RNG)
	report.DiscoveryMade = ok
}

func (e *Engine) runChangeDetectionAndEnrichment(report *TickReport) {
	_, span := tracing.Start(context.Background(), "engine.tick.change_detection")
	defer span.End()

	tick := e.deps.Store.Tick()
	for _, entity := range e.view.FindEntities(graph.Criteria{}) {
		relKeys := relationshipKeys(e.view.GetEntityRelationships(entity.ID, graph.DirectionBoth))
		fields := changedetect.KindFields{}
		if e.deps.SnapshotFields != nil {
			fields = e.deps.SnapshotFields(e.view, entity)
		}
		snapshot := changedetect.Build(entity, relKeys, fields)
		changes, qualifies := e.deps.ChangeDetector.Diff(snapshot)
		if !qualifies {
			continue
		}

		contextHash := ""
		if e.deps.ContextHash != nil {
			contextHash = e.deps.ContextHash(entity)
		}
		taskType := enrichment.TypeEntityDescription
		if len(changes) > 0 && changes[0] != "entity created" {
			taskType = enrichment.TypeEntityChange
		}
		if _, enqueued := e.deps.EnrichmentQueue.Enqueue(taskType, entity.ID, contextHash, tick); enqueued {
			report.EnrichmentEnqueued++
		}

		if e.deps.TagRegistry != nil {
			e.deps.TagRegistry.Record(entity.Tags)
		}
		if e.deps.Domain != nil {
			if err := e.deps.Domain.ValidateEntityStructure(entity); err != nil {
				e.deps.Errors.Record(tick, apperror.NewInvariantViolation("validateEntityStructure", entity.ID).WithInternal(err))
			}
		}
	}
}

// Epoch runs the end-of-epoch reporting pass: resets diversity tracking,
// computes statistics and fitness, and advances the epoch counter.
func (e *Engine) Epoch() EpochReport {
	stats := statistics.Collect(e.deps.Store, e.deps.Store.Epoch(), e.totalGrowthTarget())
	if e.deps.ResourceSampler != nil {
		stats.ResourceUsage = e.deps.ResourceSampler(context.Background())
	}
	dist := statistics.Distribution(e.deps.Store, e.deps.Config.DistributionTargets)
	diversity := statistics.ShannonDiversity(stats.RelationshipsByKind)
	conn := statistics.Connectivity(e.deps.Store)
	violations := len(e.deps.Store.CheckInvariants())
	fitness := statistics.Fitness(dist, diversity, conn, violations, e.deps.Store.GrowthMetrics().Samples(), statistics.DefaultFitnessWeights)

	statistics.UpdateGauges(stats)
	if e.deps.EnrichmentQueue != nil {
		depth := 0
		for _, task := range e.deps.EnrichmentQueue.Pending() {
			if task.Status == enrichment.StatusPending {
				depth++
			}
		}
		statistics.EnrichmentQueueDepth.Set(float64(depth))
	}

	var clustersFormed int
	if e.deps.Clustering != nil && e.deps.ClusterCandidates != nil {
		candidates := e.deps.ClusterCandidates(e.view)
		clusters := clustering.Build(e.view, candidates, *e.deps.Clustering)
		clustersFormed = len(clustering.Promote(e.view, clusters, *e.deps.Clustering))
	}

	e.deps.TemplateSelector.ResetRunCounts()
	e.deps.Catalyst.Reset()
	e.deps.Store.AdvanceEpoch()

	return EpochReport{Epoch: e.deps.Store.Epoch(), Stats: stats, Fitness: fitness, ClustersFormed: clustersFormed}
}

func (e *Engine) currentEra() *domcfg.EraConfig {
	id := e.view.CurrentEra()
	if id == "" {
		return nil
	}
	entity := e.view.LoadEntity(id)
	if entity == nil {
		return nil
	}
	for i := range e.deps.Config.Eras {
		if e.deps.Config.Eras[i].ID == entity.Subtype {
			return &e.deps.Config.Eras[i]
		}
	}
	return nil
}

func (e *Engine) currentEraTemplateWeights() map[string]float64 {
	if era := e.currentEra(); era != nil {
		return era.TemplateWeights
	}
	return nil
}

func (e *Engine) countEntitiesByKind() map[string]int {
	counts := map[string]int{}
	for _, entity := range e.deps.Store.AllEntities() {
		counts[string(entity.Kind)]++
	}
	return counts
}

func (e *Engine) totalGrowthTarget() int {
	total := 0
	for _, v := range e.deps.Config.TargetEntitiesPerKind {
		total += v
	}
	return total
}

func deficitsByKind(target, actual map[string]int) map[string]float64 {
	out := make(map[string]float64, len(target))
	for kind, t := range target {
		if t <= 0 {
			continue
		}
		deficit := float64(t-actual[kind]) / float64(t)
		if deficit > 0 {
			out[kind] = deficit
		}
	}
	return out
}

func relationshipKeys(rels []*graph.Relationship) []string {
	out := make([]string, 0, len(rels))
	for _, r := range rels {
		out = append(out, r.Kind+":"+r.Src+":"+r.Dst)
	}
	return out
}
