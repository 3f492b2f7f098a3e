package graph

import "github.com/chris-arsenault/penguin-tales-sub002/pkg/rng"

// Bias nudges selectTargets' weighting (spec §4.1: "selectTargets(kind,
// count, bias)"). The zero value is uniform-random among matches.
type Bias struct {
	PreferProminence   bool // weight toward higher prominence
	PreferLowDegree     bool // weight toward entities with fewer relationships
	Culture             string
	Exclude              map[string]bool
}

// TemplateView is the restricted read/query surface handed to growth
// templates and simulation systems (spec §4.1: "direct map iteration over
// entities/relationships is withheld to prevent ad-hoc hub formation").
// Every read returns defensive copies; every write is applied to the
// underlying Store immediately.
type TemplateView struct {
	store *Store
	rng   *rng.Source
}

// NewTemplateView wraps a Store for template/system consumption.
func NewTemplateView(store *Store, r *rng.Source) *TemplateView {
	return &TemplateView{store: store, rng: r}
}

// Tick returns the current tick.
func (v *TemplateView) Tick() int { return v.store.Tick() }

// GetPressure reads a named pressure's current value.
func (v *TemplateView) GetPressure(id string) float64 { return v.store.GetPressure(id) }

// AllPressures returns a defensive copy of every named pressure's current value.
func (v *TemplateView) AllPressures() map[string]float64 { return v.store.Pressures() }

// CurrentEra returns the current era entity's id, or "".
func (v *TemplateView) CurrentEra() string { return v.store.CurrentEra() }

// SetCurrentEra records a new current era. Reserved for the era lifecycle
// system, not ordinary growth templates.
func (v *TemplateView) SetCurrentEra(id string) { v.store.SetCurrentEra(id) }

// AddHistoryEvent appends a narration entry to the run's event log.
func (v *TemplateView) AddHistoryEvent(kind EventKind, message string) {
	v.store.AddHistoryEvent(kind, message)
}

// LoadEntity returns a defensive copy of one entity by id, or nil.
func (v *TemplateView) LoadEntity(id string) *Entity { return v.store.GetEntity(id) }

// FindEntities runs a conjunctive filter over live entities (insertion
// order), same contract as Store.FindEntities.
func (v *TemplateView) FindEntities(c Criteria) []*Entity { return v.store.FindEntities(c) }

// GetEntitiesByKind is sugar for FindEntities with only Kind set.
func (v *TemplateView) GetEntitiesByKind(kind Kind) []*Entity { return v.store.GetEntitiesByKind(kind) }

// GetConnectedEntities returns entities reachable from id by any
// relationship, in the given direction.
func (v *TemplateView) GetConnectedEntities(id string, dir Direction) []*Entity {
	return v.store.GetConnectedEntities(id, dir)
}

// GetEntityRelationships returns the relationships touching id.
func (v *TemplateView) GetEntityRelationships(id string, dir Direction) []*Relationship {
	return v.store.GetEntityRelationships(id, dir)
}

// FindRelationships runs a conjunctive filter over relationships.
func (v *TemplateView) FindRelationships(c FindRelationshipCriteria) []*Relationship {
	return v.store.FindRelationships(c)
}

// HasRelationship reports whether an active (src,dst,kind) edge exists.
func (v *TemplateView) HasRelationship(src, dst, kind string) bool {
	return v.store.HasRelationship(src, dst, kind)
}

// RelationshipCooldown exposes the last-fired tick for (entityID, kind).
func (v *TemplateView) RelationshipCooldown(entityID, kind string) (int, bool) {
	return v.store.RelationshipCooldown(entityID, kind)
}

// CreateEntity inserts a new entity, effective immediately within the
// current tick (growth templates are expected to create entities and wire
// them up in the same pass).
func (v *TemplateView) CreateEntity(settings EntitySettings) string {
	return v.store.CreateEntity(settings)
}

// UpdateEntity applies a patch to an existing entity.
func (v *TemplateView) UpdateEntity(id string, patch EntityPatch) bool {
	return v.store.UpdateEntity(id, patch)
}

// ArchiveEntity moves an entity to historical and archives its active
// relationships.
func (v *TemplateView) ArchiveEntity(id string, opts ArchiveOptions) bool {
	return v.store.ArchiveEntity(id, opts)
}

// Supersede retires oldID in favor of newID, per the lineage contract.
func (v *TemplateView) Supersede(oldID, newID string) bool {
	return v.store.Supersede(oldID, newID)
}

// AddRelationship creates a new edge, subject to the duplicate/endpoint
// checks in Store.AddRelationship.
func (v *TemplateView) AddRelationship(kind, src, dst string, strength float64, distance *float64, category string) bool {
	return v.store.AddRelationship(kind, src, dst, strength, distance, category)
}

// ArchiveRelationshipByID marks a relationship historical without removing
// it, used by culling (spec §4.8: "archive (not delete)").
func (v *TemplateView) ArchiveRelationshipByID(id string) bool {
	return v.store.ArchiveRelationship(id)
}

// AddRelationshipCatalyzed is AddRelationship with catalyst attribution.
func (v *TemplateView) AddRelationshipCatalyzed(kind, src, dst string, strength float64, catalystID string) bool {
	return v.store.AddRelationshipCatalyzed(kind, src, dst, strength, catalystID)
}

// SelectTargets picks up to count entities of kind via FindEntities plus
// rng-weighted selection per bias (spec §4.1: "selectTargets(kind, count,
// bias)"). Callers never get the underlying pool, only the chosen subset —
// the indirection that keeps templates from forming ad-hoc hubs by hand.
func (v *TemplateView) SelectTargets(kind Kind, count int, bias Bias) []*Entity {
	k := kind
	pool := v.store.FindEntities(Criteria{Kind: &k, Culture: nonEmpty(bias.Culture), Exclude: bias.Exclude})
	if len(pool) == 0 || count <= 0 {
		return nil
	}
	if !bias.PreferProminence && !bias.PreferLowDegree {
		picked := rng.PickMultiple(v.rng, pool, count)
		return picked
	}

	weighted := make([]rng.Weighted[*Entity], 0, len(pool))
	for _, e := range pool {
		w := 1.0
		if bias.PreferProminence {
			w *= ProminenceMultiplier(e.Prominence)
		}
		if bias.PreferLowDegree {
			degree := len(v.store.GetEntityRelationships(e.ID, DirectionBoth))
			w /= float64(degree + 1)
		}
		weighted = append(weighted, rng.Weighted[*Entity]{Item: e, Weight: w})
	}
	return rng.WeightedSampleWithoutReplacement(v.rng, weighted, count)
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
