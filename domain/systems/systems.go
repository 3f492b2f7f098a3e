// Package systems implements the tick-level System contract (spec.md §4.5)
// and the framework systems that are always present: eraSpawner,
// eraTransition, occurrenceCreation, and relationshipCulling.
package systems

import (
	"log/slog"

	domcfg "github.com/chris-arsenault/penguin-tales-sub002/domain/config"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/graph"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/logger"
)

// Result is a system's per-tick effect report (spec §4.5).
type Result struct {
	RelationshipsAdded int
	EntitiesModified   int
	PressureChanges    map[string]float64
	Description        string
}

// System is the tick-level operator contract. AlwaysRun systems skip the
// per-system probability roll; others are weighted/rolled by the caller
// (domain/engine), mirroring template selection.
type System interface {
	ID() string
	AlwaysRun() bool
	Apply(view *graph.TemplateView, modifier float64) Result
}

// EraSpawner lazily creates only the first configured era (spec §4.6).
type EraSpawner struct {
	log     *slog.Logger
	eras    []domcfg.EraConfig
	spawned bool
}

// NewEraSpawner builds an EraSpawner over the ordered era configs.
func NewEraSpawner(log *slog.Logger, eras []domcfg.EraConfig) *EraSpawner {
	return &EraSpawner{log: log.With(logger.Scope("systems.era_spawner")), eras: eras}
}

func (s *EraSpawner) ID() string        { return "era_spawner" }
func (s *EraSpawner) AlwaysRun() bool   { return true }

// Apply materializes the first era entity, once.
func (s *EraSpawner) Apply(view *graph.TemplateView, _ float64) Result {
	if s.spawned || len(s.eras) == 0 {
		return Result{}
	}
	first := s.eras[0]
	id := view.CreateEntity(graph.EntitySettings{
		Kind:     graph.KindEra,
		Subtype:  first.ID,
		Name:     first.Name,
		Status:   graph.StatusCurrent,
		Temporal: &graph.Temporal{StartTick: view.Tick()},
	})
	view.SetCurrentEra(id)
	s.spawned = true
	return Result{EntitiesModified: 1, Description: "the " + first.Name + " begins"}
}

// EraTransition advances the current era when its configured conditions
// hold (spec §4.6).
type EraTransition struct {
	log   *slog.Logger
	eras  []domcfg.EraConfig
	index int // index of the current era within eras, starting at the first era
}

// NewEraTransition builds an EraTransition tracking era configs in order.
func NewEraTransition(log *slog.Logger, eras []domcfg.EraConfig) *EraTransition {
	return &EraTransition{log: log.With(logger.Scope("systems.era_transition")), eras: eras, index: 0}
}

func (t *EraTransition) ID() string      { return "era_transition" }
func (t *EraTransition) AlwaysRun() bool { return true }

// ConditionChecker evaluates a domain-specific TransitionCondition variant
// the static config can't resolve alone (entity_count/occurrence need a
// graph query; pressure/time are resolved here directly).
type ConditionChecker func(view *graph.TemplateView, cond domcfg.TransitionCondition) bool

// Apply advances the era if every configured transition condition (or the
// default heuristic, absent explicit conditions) is satisfied.
func (t *EraTransition) Apply(view *graph.TemplateView, check ConditionChecker) Result {
	if t.index >= len(t.eras)-1 {
		return Result{} // final era, never ends
	}
	current := t.eras[t.index]
	currentID := view.CurrentEra()
	if currentID == "" {
		return Result{}
	}
	era := view.LoadEntity(currentID)
	if era == nil || era.Temporal == nil {
		return Result{}
	}

	age := view.Tick() - era.Temporal.StartTick
	if age < current.MinEraLength {
		return Result{Description: "continues"}
	}
	if current.TransitionCooldown > 0 && age < current.TransitionCooldown {
		return Result{Description: "stabilizing"}
	}

	if !t.conditionsMet(view, current, age, check) {
		return Result{Description: "continues"}
	}

	return t.transition(view, current)
}

func (t *EraTransition) conditionsMet(view *graph.TemplateView, era domcfg.EraConfig, age int, check ConditionChecker) bool {
	if len(era.TransitionConditions) == 0 {
		return age > 2*era.MinEraLength
	}
	for _, c := range era.TransitionConditions {
		if !check(view, c) {
			return false
		}
	}
	return true
}

func (t *EraTransition) transition(view *graph.TemplateView, ending domcfg.EraConfig) Result {
	currentID := view.CurrentEra()
	endTick := view.Tick()
	view.UpdateEntity(currentID, graph.EntityPatch{
		Status:   statusPtr(graph.StatusHistorical),
		Temporal: &graph.Temporal{StartTick: view.LoadEntity(currentID).Temporal.StartTick, EndTick: &endTick},
	})

	t.index++
	if t.index >= len(t.eras) {
		return Result{EntitiesModified: 1, Description: "the " + ending.Name + " ends"}
	}
	next := t.eras[t.index]
	nextID := view.CreateEntity(graph.EntitySettings{
		Kind:     graph.KindEra,
		Subtype:  next.ID,
		Name:     next.Name,
		Status:   graph.StatusCurrent,
		Temporal: &graph.Temporal{StartTick: view.Tick()},
	})
	view.SetCurrentEra(nextID)

	linkProminentEntities(view, currentID)

	pressureChanges := map[string]float64{}
	if ending.TransitionEffects != nil {
		for _, d := range ending.TransitionEffects.PressureChanges {
			pressureChanges[d.ID] = d.Delta
		}
	}

	msg := "The " + ending.Name + " ends. The " + next.Name + " begins."
	view.AddHistoryEvent(graph.EventSpecial, msg)
	return Result{EntitiesModified: 2, PressureChanges: pressureChanges, Description: msg}
}

// linkProminentEntities creates up to 10 active_during links from prominent
// non-era entities created during the ending era, to the ending era (spec
// §4.6 step 5).
func linkProminentEntities(view *graph.TemplateView, eraID string) {
	start := 0
	if era := view.LoadEntity(eraID); era != nil && era.Temporal != nil {
		start = era.Temporal.StartTick
	}
	candidates := view.FindEntities(graph.Criteria{})
	linked := 0
	for _, e := range candidates {
		if linked >= 10 {
			return
		}
		if e.Kind == graph.KindEra || e.CreatedAt < start {
			continue
		}
		if e.Prominence < graph.ProminenceRecognized {
			continue
		}
		if view.AddRelationship(graph.RelationshipActiveDuring, e.ID, eraID, 1.0, nil, "lineage") {
			linked++
		}
	}
}

func statusPtr(s graph.Status) *graph.Status { return &s }

// OccurrenceCreation instantiates occurrence entities when a domain-defined
// predicate holds (spec §4.5: "thresholds on pressures, relationship
// counts").
type OccurrenceCreation struct {
	log       *slog.Logger
	subtype   string
	predicate func(view *graph.TemplateView) bool
	describe  func(view *graph.TemplateView) (name, description string)
}

// NewOccurrenceCreation builds an OccurrenceCreation system for one
// occurrence subtype.
func NewOccurrenceCreation(log *slog.Logger, subtype string, predicate func(*graph.TemplateView) bool, describe func(*graph.TemplateView) (string, string)) *OccurrenceCreation {
	return &OccurrenceCreation{
		log:       log.With(logger.Scope("systems.occurrence_creation"), slog.String("subtype", subtype)),
		subtype:   subtype,
		predicate: predicate,
		describe:  describe,
	}
}

func (o *OccurrenceCreation) ID() string      { return "occurrence_creation:" + o.subtype }
func (o *OccurrenceCreation) AlwaysRun() bool { return false }

// Apply creates the occurrence entity if the predicate holds.
func (o *OccurrenceCreation) Apply(view *graph.TemplateView, _ float64) Result {
	if !o.predicate(view) {
		return Result{}
	}
	name, description := o.describe(view)
	view.CreateEntity(graph.EntitySettings{
		Kind:        graph.KindOccurrence,
		Subtype:     o.subtype,
		Name:        name,
		Description: description,
		Status:      graph.StatusActive,
		Temporal:    &graph.Temporal{StartTick: view.Tick()},
	})
	return Result{EntitiesModified: 1, Description: description}
}
