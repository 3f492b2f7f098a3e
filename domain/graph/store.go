package graph

import (
	"fmt"
	"log/slog"

	"github.com/chris-arsenault/penguin-tales-sub002/pkg/logger"
)

// EntitySettings is the creation payload for createEntity.
type EntitySettings struct {
	Kind        Kind
	Subtype     string
	Name        string
	Description string
	Status      Status
	Prominence  Prominence
	Culture     string
	Tags        map[string]string
	Temporal    *Temporal
	Coordinates *Coordinates
	Catalyst    *CatalystState
}

// EntityPatch is a partial update to an existing entity. Nil fields are
// left untouched. ID is never patchable (spec §4.1 "forbidden field").
type EntityPatch struct {
	Name        *string
	Description *string
	Status      *Status
	Prominence  *Prominence
	Culture     *string
	Tags        map[string]string // merged, not replaced
	Temporal    *Temporal
	Coordinates *Coordinates
	Catalyst    *CatalystState
}

// ArchiveOptions configures archiveEntity.
type ArchiveOptions struct {
	Reason string
}

// Criteria is the conjunctive filter findEntities accepts.
type Criteria struct {
	Kind       *Kind
	Subtype    *string
	Status     *Status
	Prominence *Prominence
	Culture    *string
	Tag        *string // key present, any value
	Exclude    map[string]bool
}

// Direction filters getEntityRelationships.
type Direction string

const (
	DirectionOut   Direction = "out"
	DirectionIn    Direction = "in"
	DirectionBoth  Direction = "both"
)

// Store is the single mutable shared resource for engine code (spec §5): the
// typed entity/relationship store with its mutation API, indexed queries,
// and invariant enforcement (spec §3, §4.1).
type Store struct {
	log *slog.Logger

	entities     map[string]*Entity
	order        []string // insertion order, for findEntities ordering guarantee
	relationships map[string]*Relationship
	relOrder     []string

	tick       int
	epoch      int
	currentEra string
	pressures  map[string]float64
	cooldowns  *RelationshipCooldowns
	history    *EventLog
	growth     *GrowthMetrics

	prevTickRelationshipCount int
}

// NewStore builds an empty store at tick 0.
func NewStore(log *slog.Logger, growthWindow int) *Store {
	return &Store{
		log:           log.With(logger.Scope("graph.store")),
		entities:      make(map[string]*Entity),
		relationships: make(map[string]*Relationship),
		pressures:     make(map[string]float64),
		cooldowns:     newRelationshipCooldowns(),
		history:       &EventLog{},
		growth:        NewGrowthMetrics(growthWindow),
	}
}

// Tick returns the current tick.
func (s *Store) Tick() int { return s.tick }

// Epoch returns the current epoch.
func (s *Store) Epoch() int { return s.epoch }

// AdvanceTick increments the tick counter and records this tick's growth
// sample. Called once per tick by the engine loop, after all mutations for
// the tick have landed.
func (s *Store) AdvanceTick() {
	s.growth.RecordTick(len(s.relationships))
	s.prevTickRelationshipCount = len(s.relationships)
	s.tick++
}

// AdvanceEpoch increments the epoch counter.
func (s *Store) AdvanceEpoch() { s.epoch++ }

// GrowthMetrics exposes the windowed growth tracker.
func (s *Store) GrowthMetrics() *GrowthMetrics { return s.growth }

// History exposes the event log.
func (s *Store) History() *EventLog { return s.history }

// AddHistoryEvent appends a history entry stamped with the current tick.
func (s *Store) AddHistoryEvent(kind EventKind, message string) {
	s.history.Append(s.tick, kind, message)
}

// RelationshipsSinceLastTick reports how many relationships have been added
// since AdvanceTick last ran — the budget-enforcement trigger (spec §4.2
// step 4).
func (s *Store) RelationshipsSinceLastTick() int {
	return len(s.relationships) - s.prevTickRelationshipCount
}

// --- pressures ---

// GetPressure returns the current value of a named pressure (default 0).
func (s *Store) GetPressure(id string) float64 {
	return s.pressures[id]
}

// Pressures returns a defensive copy of every pressure.
func (s *Store) Pressures() map[string]float64 {
	out := make(map[string]float64, len(s.pressures))
	for k, v := range s.pressures {
		out[k] = v
	}
	return out
}

// SetPressure overwrites a pressure's value directly. Used by the pressures
// subsystem (domain/pressures), never by templates/systems, which only ever
// queue deltas (spec §4.9: "write-only through pressureChanges").
func (s *Store) SetPressure(id string, value float64) {
	s.pressures[id] = value
}

// --- era ---

// CurrentEra returns the id of the current era entity, or "" if none.
func (s *Store) CurrentEra() string { return s.currentEra }

// SetCurrentEra records which era entity is current. The caller (era
// lifecycle system) is responsible for demoting the prior current era.
func (s *Store) SetCurrentEra(id string) { s.currentEra = id }

// --- entities ---

// CreateEntity inserts a new entity and returns its id.
func (s *Store) CreateEntity(settings EntitySettings) string {
	id := NewID()
	tags := make(map[string]string, len(settings.Tags))
	for k, v := range settings.Tags {
		tags[k] = v
	}

	e := &Entity{
		ID:          id,
		Kind:        settings.Kind,
		Subtype:     settings.Subtype,
		Name:        settings.Name,
		Description: settings.Description,
		Status:      settings.Status,
		Prominence:  settings.Prominence,
		Culture:     settings.Culture,
		Tags:        tags,
		CreatedAt:   s.tick,
		UpdatedAt:   s.tick,
		Temporal:    settings.Temporal,
		Coordinates: settings.Coordinates,
		Catalyst:    settings.Catalyst,
	}
	s.entities[id] = e
	s.order = append(s.order, id)
	return id
}

// LoadEntity inserts a pre-built entity verbatim, bypassing mutation
// bookkeeping. Reserved for snapshot restoration at bootstrap (spec §4.1
// "_loadEntity ... must only be used at bootstrap").
func (s *Store) LoadEntity(e *Entity) {
	cp := e.Clone()
	s.entities[cp.ID] = cp
	s.order = append(s.order, cp.ID)
}

// LoadRelationship inserts a pre-built relationship verbatim. Bootstrap-only,
// like LoadEntity.
func (s *Store) LoadRelationship(r *Relationship) {
	cp := r.Clone()
	s.relationships[cp.ID] = cp
	s.relOrder = append(s.relOrder, cp.ID)
	s.mirrorLink(cp)
}

// HasEntity reports whether id refers to a live entity.
func (s *Store) HasEntity(id string) bool {
	_, ok := s.entities[id]
	return ok
}

// GetEntity returns a defensive copy of the entity, or nil if not found.
func (s *Store) GetEntity(id string) *Entity {
	e, ok := s.entities[id]
	if !ok {
		return nil
	}
	return e.Clone()
}

// UpdateEntity applies patch to id. Returns false if id does not exist.
// The id field itself can never be changed (it is not part of EntityPatch).
// Prominence, if patched, is clamped to move at most one step (invariant 8).
// createdAt/updatedAt are kept consistent with invariant 6.
func (s *Store) UpdateEntity(id string, patch EntityPatch) bool {
	e, ok := s.entities[id]
	if !ok {
		s.log.Warn("updateEntity: unknown entity", slog.String("id", id))
		return false
	}

	if patch.Status != nil {
		if !monotoneStatus(e.Status, *patch.Status) {
			s.log.Warn("updateEntity: rejected non-monotone status transition",
				slog.String("id", id), slog.String("from", string(e.Status)), slog.String("to", string(*patch.Status)))
		} else {
			e.Status = *patch.Status
		}
	}
	if patch.Name != nil {
		e.Name = *patch.Name
	}
	if patch.Description != nil {
		e.Description = *patch.Description
	}
	if patch.Prominence != nil {
		e.Prominence = clampOneStep(e.Prominence, *patch.Prominence)
	}
	if patch.Culture != nil {
		e.Culture = *patch.Culture
	}
	for k, v := range patch.Tags {
		if e.Tags == nil {
			e.Tags = make(map[string]string)
		}
		e.Tags[k] = v
	}
	if patch.Temporal != nil {
		e.Temporal = patch.Temporal
	}
	if patch.Coordinates != nil {
		e.Coordinates = patch.Coordinates
	}
	if patch.Catalyst != nil {
		e.Catalyst = patch.Catalyst
	}

	e.UpdatedAt = s.tick
	return true
}

// clampOneStep enforces invariant 8: prominence moves only one step per
// mutation, regardless of what the caller asked for.
func clampOneStep(from, to Prominence) Prominence {
	if to > from {
		return from.Up()
	}
	if to < from {
		return from.Down()
	}
	return from
}

// monotoneStatus enforces invariant 4: an already-historical entity never
// returns to active, and status only ever moves toward historical.
func monotoneStatus(from, to Status) bool {
	if from == StatusHistorical {
		return to == StatusHistorical
	}
	return true
}

// DeleteEntity hard-deletes an entity and its mirrored links. Reserved for
// transient templates (spec §4.1); most code should use ArchiveEntity.
func (s *Store) DeleteEntity(id string) bool {
	if _, ok := s.entities[id]; !ok {
		return false
	}
	delete(s.entities, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// ArchiveEntity moves an entity to historical status and atomically archives
// its active relationships (invariant 3). Unknown ids are a no-op.
func (s *Store) ArchiveEntity(id string, _ ArchiveOptions) bool {
	e, ok := s.entities[id]
	if !ok {
		return false
	}
	e.Status = StatusHistorical
	e.UpdatedAt = s.tick

	for _, rid := range s.relOrder {
		r := s.relationships[rid]
		if r.Status != RelationshipActive {
			continue
		}
		if r.Src == id || r.Dst == id {
			r.Status = RelationshipHistorical
		}
	}
	return true
}

// Supersede marks `oldID` historical, links it to `newID` via a protected
// `supersedes` relationship, and transfers oldID's active non-protected
// relationships onto newID (spec §3 lifecycles).
func (s *Store) Supersede(oldID, newID string) bool {
	if !s.HasEntity(oldID) || !s.HasEntity(newID) {
		return false
	}
	s.ArchiveEntity(oldID, ArchiveOptions{Reason: "superseded"})
	s.AddRelationship(RelationshipSupersedes, newID, oldID, 1.0, nil, "lineage")

	for _, rid := range s.relOrder {
		r := s.relationships[rid]
		if r.Status != RelationshipHistorical || IsProtectedKind(r.Kind) {
			continue
		}
		if r.Src == oldID {
			s.AddRelationship(r.Kind, newID, r.Dst, r.Strength, r.Distance, r.Category)
		}
		if r.Dst == oldID {
			s.AddRelationship(r.Kind, r.Src, newID, r.Strength, r.Distance, r.Category)
		}
	}
	return true
}

// --- relationships ---

// AddRelationship creates a new relationship, unless an identical
// (kind,src,dst) active relationship already exists (duplicate = no-op,
// returns false), or an endpoint does not exist (fails silently, logs a
// warning, returns false).
func (s *Store) AddRelationship(kind, src, dst string, strength float64, distance *float64, category string) bool {
	if !s.HasEntity(src) || !s.HasEntity(dst) {
		s.log.Warn("addRelationship: missing endpoint", slog.String("kind", kind), slog.String("src", src), slog.String("dst", dst))
		return false
	}
	if s.HasRelationship(src, dst, kind) {
		return false
	}

	id := NewID()
	r := &Relationship{
		ID:        id,
		Kind:      kind,
		Src:       src,
		Dst:       dst,
		Strength:  clamp01(strength),
		Distance:  distance,
		Category:  category,
		Status:    RelationshipActive,
		CreatedAt: s.tick,
	}
	s.relationships[id] = r
	s.relOrder = append(s.relOrder, id)
	s.mirrorLink(r)
	s.cooldowns.Touch(src, kind, s.tick)
	return true
}

// AddRelationshipCatalyzed is AddRelationship plus catalyst attribution
// (spec §4.7 step 5).
func (s *Store) AddRelationshipCatalyzed(kind, src, dst string, strength float64, catalystID string) bool {
	before := len(s.relationships)
	ok := s.AddRelationship(kind, src, dst, strength, nil, "")
	if !ok || len(s.relationships) == before {
		return ok
	}
	lastID := s.relOrder[len(s.relOrder)-1]
	r := s.relationships[lastID]
	r.CatalyzedBy = &catalystID
	return true
}

func (s *Store) mirrorLink(r *Relationship) {
	src, ok := s.entities[r.Src]
	if !ok {
		return
	}
	src.Links = append(src.Links, Link{Kind: r.Kind, Dst: r.Dst})
	src.UpdatedAt = s.tick
}

func (s *Store) unmirrorLink(r *Relationship) {
	src, ok := s.entities[r.Src]
	if !ok {
		return
	}
	for i, l := range src.Links {
		if l.Kind == r.Kind && l.Dst == r.Dst {
			src.Links = append(src.Links[:i], src.Links[i+1:]...)
			break
		}
	}
}

// RemoveRelationship hard-deletes a relationship and its link mirror.
// Protected kinds can never be removed this way (invariant 7) — culling and
// explicit archival are the only sanctioned removal paths, and culling
// itself skips protected kinds.
func (s *Store) RemoveRelationship(src, dst, kind string) bool {
	if IsProtectedKind(kind) {
		return false
	}
	for _, rid := range s.relOrder {
		r := s.relationships[rid]
		if r.Src == src && r.Dst == dst && r.Kind == kind {
			s.unmirrorLink(r)
			delete(s.relationships, rid)
			for i, oid := range s.relOrder {
				if oid == rid {
					s.relOrder = append(s.relOrder[:i], s.relOrder[i+1:]...)
					break
				}
			}
			return true
		}
	}
	return false
}

// ArchiveRelationship sets a relationship's status to historical without
// removing the row. Culling reaches it through
// TemplateView.ArchiveRelationshipByID for non-protected kinds only; this
// method itself does not check the kind.
func (s *Store) ArchiveRelationship(id string) bool {
	r, ok := s.relationships[id]
	if !ok {
		return false
	}
	r.Status = RelationshipHistorical
	return true
}

// HasRelationship reports whether an active (src,dst,kind) relationship
// exists.
func (s *Store) HasRelationship(src, dst, kind string) bool {
	for _, rid := range s.relOrder {
		r := s.relationships[rid]
		if r.Status == RelationshipActive && r.Src == src && r.Dst == dst && r.Kind == kind {
			return true
		}
	}
	return false
}

// GetRelationships returns a defensive copy of every relationship.
func (s *Store) GetRelationships() []*Relationship {
	out := make([]*Relationship, 0, len(s.relOrder))
	for _, rid := range s.relOrder {
		out = append(out, s.relationships[rid].Clone())
	}
	return out
}

// GetRelationshipByID returns a defensive copy, or nil.
func (s *Store) GetRelationshipByID(id string) *Relationship {
	r, ok := s.relationships[id]
	if !ok {
		return nil
	}
	return r.Clone()
}

// RelationshipCooldown returns the last tick (entityID,kind) fired, and
// whether it has ever fired.
func (s *Store) RelationshipCooldown(entityID, kind string) (int, bool) {
	return s.cooldowns.LastTick(entityID, kind)
}

// FindRelationshipCriteria filters findRelationships.
type FindRelationshipCriteria struct {
	Kind     *string
	Src      *string
	Dst      *string
	Status   *RelationshipStatus
	Category *string
}

// FindRelationships returns every relationship matching all provided
// criteria (conjunctive), in insertion order.
func (s *Store) FindRelationships(c FindRelationshipCriteria) []*Relationship {
	var out []*Relationship
	for _, rid := range s.relOrder {
		r := s.relationships[rid]
		if c.Kind != nil && r.Kind != *c.Kind {
			continue
		}
		if c.Src != nil && r.Src != *c.Src {
			continue
		}
		if c.Dst != nil && r.Dst != *c.Dst {
			continue
		}
		if c.Status != nil && r.Status != *c.Status {
			continue
		}
		if c.Category != nil && r.Category != *c.Category {
			continue
		}
		out = append(out, r.Clone())
	}
	return out
}

// GetEntityRelationships returns relationships touching id, filtered by
// direction.
func (s *Store) GetEntityRelationships(id string, dir Direction) []*Relationship {
	var out []*Relationship
	for _, rid := range s.relOrder {
		r := s.relationships[rid]
		matchOut := r.Src == id && (dir == DirectionOut || dir == DirectionBoth)
		matchIn := r.Dst == id && (dir == DirectionIn || dir == DirectionBoth)
		if matchOut || matchIn {
			out = append(out, r.Clone())
		}
	}
	return out
}

// GetConnectedEntities returns the defensive-copy entities reachable from id
// via any relationship, in the requested direction.
func (s *Store) GetConnectedEntities(id string, dir Direction) []*Entity {
	seen := make(map[string]bool)
	var out []*Entity
	for _, r := range s.GetEntityRelationships(id, dir) {
		other := r.Dst
		if r.Dst == id {
			other = r.Src
		}
		if seen[other] {
			continue
		}
		seen[other] = true
		if e := s.GetEntity(other); e != nil {
			out = append(out, e)
		}
	}
	return out
}

// FindEntities returns every entity matching all provided criteria
// (conjunctive), in insertion order (spec §4.1).
func (s *Store) FindEntities(c Criteria) []*Entity {
	var out []*Entity
	for _, id := range s.order {
		e := s.entities[id]
		if c.Exclude != nil && c.Exclude[id] {
			continue
		}
		if c.Kind != nil && e.Kind != *c.Kind {
			continue
		}
		if c.Subtype != nil && e.Subtype != *c.Subtype {
			continue
		}
		if c.Status != nil && e.Status != *c.Status {
			continue
		}
		if c.Prominence != nil && e.Prominence != *c.Prominence {
			continue
		}
		if c.Culture != nil && e.Culture != *c.Culture {
			continue
		}
		if c.Tag != nil {
			if _, ok := e.Tags[*c.Tag]; !ok {
				continue
			}
		}
		out = append(out, e.Clone())
	}
	return out
}

// GetEntitiesByKind is a convenience wrapper over FindEntities.
func (s *Store) GetEntitiesByKind(kind Kind) []*Entity {
	k := kind
	return s.FindEntities(Criteria{Kind: &k})
}

// AllEntities returns every entity (unfiltered), in insertion order. Not
// part of the restricted template view (spec §4.1: "direct iteration ...
// is withheld to prevent ad-hoc hub formation") — callers outside the
// engine's own analytics/validation code should prefer FindEntities.
func (s *Store) AllEntities() []*Entity {
	return s.FindEntities(Criteria{})
}

// TotalEntities and TotalRelationships back termination and budget checks.
func (s *Store) TotalEntities() int      { return len(s.entities) }
func (s *Store) TotalRelationships() int { return len(s.relationships) }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// CheckInvariants validates the store against spec §3/§8 and returns a
// description of every violation found (an empty slice means clean).
// Intended for tests and the post-tick validator, not the hot path.
func (s *Store) CheckInvariants() []string {
	var problems []string

	linkSet := make(map[string]bool)
	for _, rid := range s.relOrder {
		r := s.relationships[rid]
		linkSet[fmt.Sprintf("%s:%s:%s", r.Kind, r.Src, r.Dst)] = true

		if !s.HasEntity(r.Src) {
			problems = append(problems, fmt.Sprintf("relationship %s references missing src %s", r.ID, r.Src))
		}
		if !s.HasEntity(r.Dst) {
			problems = append(problems, fmt.Sprintf("relationship %s references missing dst %s", r.ID, r.Dst))
		}
	}

	for _, id := range s.order {
		e := s.entities[id]
		for _, l := range e.Links {
			key := fmt.Sprintf("%s:%s:%s", l.Kind, id, l.Dst)
			if !linkSet[key] {
				problems = append(problems, fmt.Sprintf("entity %s link %s:%s has no matching relationship", id, l.Kind, l.Dst))
			}
		}
		if e.CreatedAt > e.UpdatedAt || e.UpdatedAt > s.tick {
			problems = append(problems, fmt.Sprintf("entity %s violates createdAt<=updatedAt<=tick", id))
		}
	}

	currentEras := 0
	for _, id := range s.order {
		e := s.entities[id]
		if e.Kind == KindEra && e.Status == StatusCurrent {
			currentEras++
		}
	}
	if currentEras > 1 {
		problems = append(problems, fmt.Sprintf("found %d eras with status=current, expected at most 1", currentEras))
	}

	return problems
}
