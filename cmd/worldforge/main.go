// Package main is the worldforge CLI entry point: it loads a simulation
// manifest and a template pack, wires the simulation engine and every
// ambient service (snapshot store, tracing, debug server) through fx, then
// drives the engine either as a single batch run or as a long-lived
// continuous process (SPEC_FULL.md §11).
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/chris-arsenault/penguin-tales-sub002/domain/catalyst"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/changedetect"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/clustering"
	domcfg "github.com/chris-arsenault/penguin-tales-sub002/domain/config"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/discovery"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/engine"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/enrichment"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/export"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/graph"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/llmworker"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/llmworker/runner"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/namegen"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/pressures"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/statistics"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/systems"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/tags"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/templatepacks"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/templates"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/worldactions"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/worldsystems"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/worldtemplates"
	appconfig "github.com/chris-arsenault/penguin-tales-sub002/internal/config"
	"github.com/chris-arsenault/penguin-tales-sub002/internal/runmode"
	"github.com/chris-arsenault/penguin-tales-sub002/internal/server"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/adk"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/apperror"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/logger"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/rng"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/snapshotstore"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/storage"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/syshealth"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/tracing"
)

func main() {
	fx.New(
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		fx.Provide(logger.New),
		appconfig.Module,
		tracing.Module,
		adk.Module,
		syshealth.Module,
		storage.Module,
		snapshotstore.Module,
		server.Module,

		fx.Provide(
			loadEngineConfig,
			loadTemplatePack,
			provideRNG,
			provideGraphStore,
			provideNameLogger,
			provideTemplateRegistry,
			provideTemplateSelector,
			provideSystemRegistry,
			provideCatalystEngine,
			providePressureTracker,
			provideEraSpawner,
			provideEraTransition,
			provideConditionChecker,
			provideCulling,
			provideChangeDetector,
			provideSnapshotFieldsFunc,
			provideContextHashFunc,
			provideEnrichmentQueue,
			provideDiscoveryEngine,
			provideTagRegistry,
			provideErrorCollector,
			provideEngineDomain,
			provideClusteringConfig,
			provideClusterCandidatesFunc,
			provideEngineDeps,
			provideEngine,
			provideLLMTransport,
			provideLLMClient,
			provideDispatcher,
		),

		fx.Invoke(runWorld),
	).Run()
}

// loadEngineConfig reads and validates the simulation manifest (spec.md §7:
// "missing/invalid required fields produce a ConfigError before tick 1").
func loadEngineConfig(cfg *appconfig.Config, log *slog.Logger) (*domcfg.EngineConfig, error) {
	data, err := os.ReadFile(cfg.EngineConfigPath)
	if err != nil {
		return nil, fmt.Errorf("worldforge: read engine config: %w", err)
	}
	econf, err := domcfg.Load(data)
	if err != nil {
		return nil, err
	}
	log.Info("engine config loaded", slog.String("path", cfg.EngineConfigPath), slog.Int("eras", len(econf.Eras)))
	return econf, nil
}

// loadTemplatePack reads and schema-validates the template/system/action
// manifest bundle the compile-by-id registries in domain/worldtemplates,
// domain/worldsystems, and domain/worldactions build from.
func loadTemplatePack(cfg *appconfig.Config, log *slog.Logger) (*templatepacks.Pack, error) {
	data, err := os.ReadFile(cfg.TemplatePackPath)
	if err != nil {
		return nil, fmt.Errorf("worldforge: read template pack: %w", err)
	}
	pack, err := templatepacks.Load(context.Background(), data)
	if err != nil {
		return nil, err
	}
	log.Info("template pack loaded",
		slog.Int("templates", len(pack.Templates)),
		slog.Int("systems", len(pack.Systems)),
	)
	return pack, nil
}

func provideRNG(cfg *appconfig.Config) *rng.Source {
	seed := cfg.RNGSeed
	if seed == 0 {
		seed = 1
	}
	return rng.New(seed)
}

func provideGraphStore(log *slog.Logger) *graph.Store {
	return graph.NewStore(log, growthWindowSize)
}

// growthWindowSize is the rolling sample count domain/statistics.Fitness
// uses for its population-stability component.
const growthWindowSize = 20

func provideNameLogger() *namegen.Logger {
	return namegen.NewLogger()
}

func provideTemplateRegistry(pack *templatepacks.Pack, rng *rng.Source, names *namegen.Logger, cfg *appconfig.Config) []templates.Template {
	return worldtemplates.BuildRegistry(pack, worldtemplates.Deps{RNG: rng, Names: names, Culture: cfg.Culture})
}

func provideSystemRegistry(log *slog.Logger, pack *templatepacks.Pack) []systems.System {
	return worldsystems.BuildRegistry(log, pack)
}

func provideCatalystEngine(log *slog.Logger, econf *domcfg.EngineConfig, rng *rng.Source) *catalyst.Engine {
	registry := worldactions.BuildRegistry()
	return catalyst.NewEngine(log, registry, econf.ActionDomains, rng, catalystBaseRate)
}

// catalystBaseRate is the fraction of eligible agents who attempt an
// action per tick, before per-agent weighting (spec §4.7).
const catalystBaseRate = 0.1

func providePressureTracker(log *slog.Logger, econf *domcfg.EngineConfig, store *graph.Store) *pressures.Tracker {
	defs := make([]pressures.Definition, len(econf.Pressures))
	for i, p := range econf.Pressures {
		defs[i] = pressures.Definition{ID: p.ID, Baseline: p.Baseline, Decay: p.Decay}
	}
	return pressures.NewTracker(log, defs, store)
}

func provideEraSpawner(log *slog.Logger, econf *domcfg.EngineConfig) *systems.EraSpawner {
	return systems.NewEraSpawner(log, econf.Eras)
}

func provideEraTransition(log *slog.Logger, econf *domcfg.EngineConfig) *systems.EraTransition {
	return systems.NewEraTransition(log, econf.Eras)
}

// provideConditionChecker evaluates an era's configured transition
// conditions against current world state (spec §4.6 step 4). Exactly one
// of a condition's Pressure/EntityCount/Occurrence/Time variants is set.
func provideConditionChecker() systems.ConditionChecker {
	return func(view *graph.TemplateView, cond domcfg.TransitionCondition) bool {
		switch {
		case cond.Pressure != nil:
			return compareFloat(view.GetPressure(cond.Pressure.PressureID), cond.Pressure.Operator, cond.Pressure.Threshold)
		case cond.EntityCount != nil:
			c := graph.Criteria{}
			kind := graph.Kind(cond.EntityCount.EntityKind)
			c.Kind = &kind
			if cond.EntityCount.Subtype != "" {
				c.Subtype = &cond.EntityCount.Subtype
			}
			if cond.EntityCount.Status != "" {
				status := graph.Status(cond.EntityCount.Status)
				c.Status = &status
			}
			count := len(view.FindEntities(c))
			return compareFloat(float64(count), cond.EntityCount.Operator, float64(cond.EntityCount.Threshold))
		case cond.Occurrence != nil:
			occKind := graph.KindOccurrence
			occurrences := view.FindEntities(graph.Criteria{Kind: &occKind, Subtype: &cond.Occurrence.Subtype})
			switch cond.Occurrence.Operator {
			case "exists":
				return len(occurrences) > 0
			case "ended":
				for _, o := range occurrences {
					if o.Status == graph.StatusHistorical {
						return true
					}
				}
				return false
			default:
				return false
			}
		case cond.Time != nil:
			currentID := view.CurrentEra()
			era := view.LoadEntity(currentID)
			if era == nil || era.Temporal == nil {
				return false
			}
			return view.Tick()-era.Temporal.StartTick >= cond.Time.MinTicks
		default:
			return true
		}
	}
}

func compareFloat(value float64, operator string, threshold float64) bool {
	switch operator {
	case "above":
		return value > threshold
	case "below":
		return value < threshold
	default:
		return false
	}
}

func provideCulling(log *slog.Logger) *systems.RelationshipCulling {
	return systems.NewRelationshipCulling(log, systems.DefaultCullingWeights)
}

func provideChangeDetector() *changedetect.Detector {
	return changedetect.NewDetector(graph.ProminenceRecognized)
}

// relationshipKindCounts returns the destination ids of an entity's outgoing
// relationships of one kind, the shape every SnapshotFields branch below
// filters down from.
func relationshipKindCounts(view *graph.TemplateView, entityID string, kind string) []string {
	rels := view.GetEntityRelationships(entityID, graph.DirectionOut)
	var ids []string
	for _, r := range rels {
		if r.Kind == kind {
			ids = append(ids, r.Dst)
		}
	}
	return ids
}

// provideSnapshotFieldsFunc builds the kind-specialized changedetect fields
// for an entity (spec §4.10): the engine itself stays kind-agnostic, so
// this closure is how cmd/worldforge supplies the per-kind projections.
func provideSnapshotFieldsFunc() func(view *graph.TemplateView, e *graph.Entity) changedetect.KindFields {
	return func(view *graph.TemplateView, e *graph.Entity) changedetect.KindFields {
		switch e.Kind {
		case graph.KindLocation:
			residents := view.GetEntityRelationships(e.ID, graph.DirectionIn)
			count := 0
			controller := ""
			for _, r := range residents {
				if r.Kind == "member_of" {
					count++
				}
				if r.Kind == "controls" {
					controller = r.Src
				}
			}
			return changedetect.KindFields{ResidentCount: count, ControllerID: controller}
		case graph.KindFaction:
			return changedetect.KindFields{
				LeaderID:       firstOrEmpty(relationshipKindCounts(view, e.ID, "led_by")),
				TerritoryCount: len(relationshipKindCounts(view, e.ID, "controls")),
				AllyIDs:        relationshipKindCounts(view, e.ID, "allied_with"),
				EnemyIDs:       relationshipKindCounts(view, e.ID, "rival_of"),
			}
		case graph.KindRules:
			return changedetect.KindFields{EnforcerIDs: relationshipKindCounts(view, e.ID, "wielded_by")}
		case graph.KindAbilities:
			return changedetect.KindFields{
				PractitionerCount: len(relationshipKindCounts(view, e.ID, "wielded_by")),
				LocationIDs:       relationshipKindCounts(view, e.ID, "manifests_at"),
			}
		case graph.KindNPC:
			return changedetect.KindFields{LeadershipIDs: relationshipKindCounts(view, e.ID, "leads")}
		default:
			return changedetect.KindFields{}
		}
	}
}

func firstOrEmpty(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

// provideContextHashFunc builds the enrichment idempotency context: an
// entity is re-enriched only when this hash changes (domain/enrichment).
func provideContextHashFunc() func(e *graph.Entity) string {
	return func(e *graph.Entity) string {
		return e.ID + ":" + strconv.Itoa(e.UpdatedAt)
	}
}

func provideEnrichmentQueue(log *slog.Logger) *enrichment.Queue {
	return enrichment.NewQueue(log, enrichment.DefaultQueueConfig())
}

func provideDiscoveryEngine(econf *domcfg.EngineConfig) *discovery.Engine {
	return discovery.NewEngine(econf.EmergentDiscovery, discoveryVocabulary())
}

// discoveryVocabulary supplies the theme words emergent discoveries
// compose from, keyed by the pressure whose elevation makes them eligible.
func discoveryVocabulary() discovery.Vocabulary {
	return discovery.Vocabulary{
		ByPressure: map[string][]string{
			"tension":  {"Contested", "Besieged", "Disputed"},
			"scarcity": {"Barren", "Forsaken", "Famine-Struck"},
			"mystery":  {"Hidden", "Shrouded", "Forgotten"},
		},
		Base: []string{"Outpost", "Hollow", "Reach", "Crossing"},
	}
}

func provideTagRegistry() *tags.Registry {
	return tags.NewRegistry()
}

func provideErrorCollector(log *slog.Logger) *apperror.Collector {
	return apperror.NewCollector(log)
}

// configDomain implements engine.Domain from the loaded manifest: a
// general-purpose binary has no kind-specific structural invariants beyond
// what the manifest itself encodes, so ValidateEntityStructure is
// permissive by default.
type configDomain struct {
	mappings map[string][]string
}

func (d configDomain) ValidateEntityStructure(*graph.Entity) error { return nil }

func (d configDomain) PressureDomainMappings() map[string][]string { return d.mappings }

func provideEngineDomain(econf *domcfg.EngineConfig) engine.Domain {
	return configDomain{mappings: econf.PressureDomainMappings}
}

// provideClusteringConfig resolves the manifest's named criteria to
// clustering.Criterion values (clustering.Criterion.Score is a Go func, so
// it can't be JSON-configured directly — spec §4.12).
func provideClusteringConfig(econf *domcfg.EngineConfig) *clustering.Config {
	if econf.Clustering == nil || !econf.Clustering.Enabled {
		return nil
	}
	cc := econf.Clustering
	criteria := make([]clustering.Criterion, 0, len(cc.Criteria))
	for _, name := range cc.Criteria {
		switch strings.ToLower(name) {
		case "shared_tags":
			criteria = append(criteria, clustering.Criterion{Weight: 1, Score: clustering.SharedTags(1.0)})
		case "shared_relationship":
			criteria = append(criteria, clustering.Criterion{Weight: 1, Score: clustering.SharedRelationship("allied_with", graph.DirectionBoth)})
		case "temporal_proximity":
			criteria = append(criteria, clustering.Criterion{Weight: 0.5, Score: clustering.TemporalProximity(10)})
		case "same_subtype":
			criteria = append(criteria, clustering.Criterion{Weight: 0.5, Score: clustering.SameSubtype})
		case "same_culture":
			criteria = append(criteria, clustering.Criterion{Weight: 0.25, Score: clustering.SameCulture})
		}
	}
	return &clustering.Config{
		Criteria:              criteria,
		ClusterJoinThreshold:  orDefault(cc.ClusterJoinThreshold, clustering.DefaultClusterJoinThreshold),
		MinimumScore:          cc.MinimumScore,
		MinSize:               cc.MinSize,
		LiftExternalLinks:     cc.LiftExternalLinks,
	}
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

// provideClusterCandidatesFunc supplies every active npc/faction as a
// clustering candidate — the broadest reasonable default for a general
// binary with no further domain steer.
func provideClusterCandidatesFunc() func(view *graph.TemplateView) []*graph.Entity {
	return func(view *graph.TemplateView) []*graph.Entity {
		active := graph.StatusActive
		npcs := view.FindEntities(graph.Criteria{Kind: kindPtr(graph.KindNPC), Status: &active})
		factions := view.FindEntities(graph.Criteria{Kind: kindPtr(graph.KindFaction), Status: &active})
		return append(npcs, factions...)
	}
}

func kindPtr(k graph.Kind) *graph.Kind { return &k }

func provideEngineDeps(
	store *graph.Store,
	tracker *pressures.Tracker,
	selector *templates.Selector,
	spawner *systems.EraSpawner,
	transition *systems.EraTransition,
	checker systems.ConditionChecker,
	sys []systems.System,
	culling *systems.RelationshipCulling,
	cat *catalyst.Engine,
	detector *changedetect.Detector,
	queue *enrichment.Queue,
	disco *discovery.Engine,
	tagRegistry *tags.Registry,
	errors *apperror.Collector,
	rng *rng.Source,
	domain engine.Domain,
	clusterCfg *clustering.Config,
	clusterCandidates func(view *graph.TemplateView) []*graph.Entity,
	econf *domcfg.EngineConfig,
	snapshotFields func(view *graph.TemplateView, e *graph.Entity) changedetect.KindFields,
	contextHash func(e *graph.Entity) string,
	sampler *syshealth.Sampler,
) engine.Deps {
	return engine.Deps{
		Store:                 store,
		Pressures:             tracker,
		TemplateSelector:      selector,
		EraSpawner:            spawner,
		EraTransition:         transition,
		ConditionChecker:      checker,
		Systems:               sys,
		Culling:               culling,
		Catalyst:              cat,
		ChangeDetector:        detector,
		EnrichmentQueue:       queue,
		Discovery:             disco,
		TagRegistry:           tagRegistry,
		Errors:                errors,
		RNG:                   rng,
		Domain:                domain,
		Clustering:            clusterCfg,
		ClusterCandidates:     clusterCandidates,
		Config:                *econf,
		SnapshotFields:        snapshotFields,
		ContextHash:           contextHash,
		ResourceSampler:       adaptResourceSampler(sampler),
	}
}

// adaptResourceSampler bridges pkg/syshealth.Sampler's Snapshot shape to
// the domain/statistics.ResourceUsage shape engine.Deps expects, keeping
// pkg/syshealth free of a domain/statistics import.
func adaptResourceSampler(sampler *syshealth.Sampler) func(ctx context.Context) statistics.ResourceUsage {
	return func(ctx context.Context) statistics.ResourceUsage {
		snap := sampler.Sample(ctx)
		return statistics.ResourceUsage{
			RSSBytes:     snap.RSSBytes,
			CPUPercent:   snap.CPUPercent,
			NumGoroutine: snap.NumGoroutine,
		}
	}
}

func provideTemplateSelector(log *slog.Logger, reg []templates.Template) *templates.Selector {
	return templates.NewSelector(log, reg, 2, 10)
}

func provideEngine(log *slog.Logger, deps engine.Deps) *engine.Engine {
	return engine.New(log, deps)
}

// provideLLMTransport picks the configured sandbox. "inprocess" is the
// zero-setup default — no real isolation, useful for local runs and tests —
// so it drives a GenAIProvider via llmworker.Serve on the worker half of the
// pipe itself rather than spawning anything.
func provideLLMTransport(cfg *appconfig.Config, factory *adk.ModelFactory, log *slog.Logger) (llmworker.Transport, error) {
	switch cfg.Runner.Mode {
	case "docker":
		dockerCfg := runner.Config{Kind: runner.KindDocker, Image: cfg.Runner.Image, StartupTimeout: cfg.Runner.StartupTimeout}
		t, err := runner.NewDockerTransport(context.Background(), log, dockerCfg)
		if err != nil {
			return nil, err
		}
		return t, nil
	case "firecracker":
		fcCfg := runner.Config{Kind: runner.KindFirecracker, Image: cfg.Runner.Image, StartupTimeout: cfg.Runner.StartupTimeout}
		t, err := runner.NewFirecrackerTransport(context.Background(), fcCfg)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		client, worker := runner.NewInProcessTransportPair()
		provider := llmworker.NewGenAIProvider(factory, cfg.LLM.ImageModel, log)
		go func() {
			if err := llmworker.Serve(context.Background(), worker, provider, log); err != nil {
				log.Error("in-process llm worker stopped", "error", err)
			}
		}()
		return client, nil
	}
}

func provideLLMClient(t llmworker.Transport) *llmworker.Client {
	return llmworker.NewClient(t)
}

func provideDispatcher(client *llmworker.Client, queue *enrichment.Queue, store *graph.Store, rng *rng.Source, db *bun.DB, log *slog.Logger) *llmworker.Dispatcher {
	view := graph.NewTemplateView(store, rng)
	durable := llmworker.NewDurableQueue(db, log)
	return llmworker.NewDispatcher(client, queue, view, export.NewLoreLedger(), durable, log)
}

// runWorldParams groups runWorld's fx-injected dependencies (fx.In keeps
// the invoke signature readable despite the collaborator count).
type runWorldParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Config     *appconfig.Config
	Log        *slog.Logger
	Engine     *engine.Engine
	Store      *graph.Store
	Snapshot   *snapshotstore.Store
	Dispatcher *llmworker.Dispatcher
	EngineCfg  *domcfg.EngineConfig
}

// enrichmentTaskTypes is every queue.TaskType a Dispatcher batch-processes
// (domain/enrichment's vocabulary).
var enrichmentTaskTypes = []enrichment.TaskType{
	enrichment.TypeEntityDescription,
	enrichment.TypeRelationshipBackstory,
	enrichment.TypeEraNarrative,
	enrichment.TypeDiscoveryEvent,
	enrichment.TypeChainLink,
	enrichment.TypeOccurrence,
	enrichment.TypeEntityChange,
}

// drainEnrichment dispatches every pending enrichment batch and polls the
// worker until nothing is left in flight. Skipped entirely when no LLM
// backend is configured (spec §6: enrichment degrades gracefully without
// the worker, entities simply keep their template-authored description).
func drainEnrichment(ctx context.Context, p runWorldParams) {
	if !p.Config.LLM.IsEnabled() {
		return
	}
	dispatched := 0
	for _, t := range enrichmentTaskTypes {
		dispatched += p.Dispatcher.DispatchBatch(ctx, t)
	}
	for i := 0; i < dispatched; i++ {
		if _, err := p.Dispatcher.PollOne(ctx); err != nil {
			p.Log.Warn("enrichment task failed", slog.Any("error", err))
		}
	}
}

// runWorld drives the simulation: batch Run to termination, or a
// continuous runmode.Runner gated on cfg.Continuous (spec §11). Either
// path writes the final JSON export to cfg.OutputDir before shutting fx
// down.
func runWorld(p runWorldParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer func() { _ = p.Shutdowner.Shutdown() }()

				runID := startRun(ctx, p)

				if p.Config.Continuous {
					runContinuous(ctx, p, runID)
				} else {
					runBatch(ctx, p, runID)
				}

				if runID != "" {
					if err := p.Snapshot.CompleteRun(ctx, runID); err != nil {
						p.Log.Error("failed to mark run complete", slog.Any("error", err))
					}
				}
			}()
			return nil
		},
	})
}

// startRun opens a snapshotstore.Store run row for this invocation of
// EngineCfg, so every SaveSnapshot call below has a valid worldforge.runs
// row to reference (snapshots carry a runID foreign key). Returns "" when
// the snapshot store is disabled — every downstream snapshot write is then
// skipped, not attempted against a nonexistent run.
func startRun(ctx context.Context, p runWorldParams) string {
	if !p.Snapshot.Enabled() {
		return ""
	}
	runID, err := p.Snapshot.StartRun(ctx, configHash(p.EngineCfg), p.Config.RNGSeed)
	if err != nil {
		p.Log.Error("failed to start snapshot run", slog.Any("error", err))
		return ""
	}
	return runID
}

// configHash fingerprints the loaded manifest for snapshotstore.Run's
// audit trail (spec §6 makes no persistence-format guarantee beyond JSON,
// so this is purely informational, not a cache key).
func configHash(econf *domcfg.EngineConfig) string {
	data, err := json.Marshal(econf)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func runBatch(ctx context.Context, p runWorldParams, runID string) {
	reports := p.Engine.Run(ctx)
	p.Log.Info("batch run complete", slog.Int("ticks", len(reports)))
	drainEnrichment(ctx, p)
	writeExport(ctx, p, runID)
}

func runContinuous(ctx context.Context, p runWorldParams, runID string) {
	r := runmode.New(p.Log, p.Engine, p.Config.TickInterval, func(report engine.EpochReport) {
		drainEnrichment(ctx, p)
		if runID == "" {
			return
		}
		state := export.Build(p.Store, report.Stats, nil)
		if err := p.Snapshot.SaveSnapshot(ctx, runID, state); err != nil {
			p.Log.Error("failed to save snapshot", slog.Any("error", err))
		}
	})
	if err := r.Start(ctx); err != nil {
		p.Log.Error("continuous mode failed to start", slog.Any("error", err))
	}
}

func writeExport(ctx context.Context, p runWorldParams, runID string) {
	target := 0
	for _, n := range p.EngineCfg.TargetEntitiesPerKind {
		target += n
	}
	stats := statistics.Collect(p.Store, p.Store.Epoch(), target)
	state := export.Build(p.Store, stats, nil)
	data, err := export.Marshal(state)
	if err != nil {
		p.Log.Error("failed to marshal export state", slog.Any("error", err))
		return
	}
	if err := os.MkdirAll(p.Config.OutputDir, 0o755); err != nil {
		p.Log.Error("failed to create output dir", slog.Any("error", err))
		return
	}
	path := p.Config.OutputDir + "/world.json"
	if err := os.WriteFile(path, data, 0o644); err != nil {
		p.Log.Error("failed to write export", slog.Any("error", err))
		return
	}
	p.Log.Info("export written", slog.String("path", path))

	if runID != "" {
		if err := p.Snapshot.SaveSnapshot(ctx, runID, state); err != nil {
			p.Log.Error("failed to save snapshot", slog.Any("error", err))
		}
	}
}
