package worldtemplates

import (
	"github.com/chris-arsenault/penguin-tales-sub002/domain/graph"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/templatepacks"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/templates"
)

// npcArrival spawns a single NPC entity with no prerequisites — the
// population-pressure-relieving default every world needs (spec §4.3's
// deficit-driven selection leans on it whenever targetEntitiesPerKind's
// "npc" bucket is under target).
type npcArrival struct {
	manifest templatepacks.TemplateManifest
	deps     Deps
}

func newNPCArrival(m templatepacks.TemplateManifest, deps Deps) templates.Template {
	return &npcArrival{manifest: m, deps: deps}
}

func (t *npcArrival) ID() string                          { return t.manifest.ID }
func (t *npcArrival) CanApply(_ *graph.TemplateView) bool  { return true }
func (t *npcArrival) Produces() []string                  { return t.manifest.Produces }
func (t *npcArrival) PressureModifiers() map[string]float64 { return t.manifest.PressureModifiers }

func (t *npcArrival) FindTargets(_ *graph.TemplateView) []templates.Target {
	return []templates.Target{struct{}{}}
}

func (t *npcArrival) Expand(view *graph.TemplateView, _ []templates.Target) (templates.ExpandResult, error) {
	name := proposeName(t.deps.Names, string(graph.KindNPC), "Wanderer")
	id := view.CreateEntity(graph.EntitySettings{
		Kind:       graph.KindNPC,
		Subtype:    "arrival",
		Name:       name,
		Status:     graph.StatusActive,
		Prominence: graph.ProminenceMarginal,
		Culture:    t.deps.Culture,
	})
	return templates.ExpandResult{
		EntitiesCreated: []string{id},
		Description:     name + " arrives, seeking a place in the world",
		PressureChanges: t.manifest.PressureModifiers,
	}, nil
}

// factionFormation groups a handful of existing NPCs that have no
// relationships at all into a new faction: the manifest's "minMembers"
// parameter sets the group size and "cohesion" the member_of strength.
type factionFormation struct {
	manifest templatepacks.TemplateManifest
	deps     Deps
}

func newFactionFormation(m templatepacks.TemplateManifest, deps Deps) templates.Template {
	return &factionFormation{manifest: m, deps: deps}
}

func (t *factionFormation) ID() string                          { return t.manifest.ID }
func (t *factionFormation) Produces() []string                  { return t.manifest.Produces }
func (t *factionFormation) PressureModifiers() map[string]float64 { return t.manifest.PressureModifiers }

func (t *factionFormation) CanApply(view *graph.TemplateView) bool {
	return len(t.unaffiliatedNPCs(view)) >= int(parameter(t.manifest, "minMembers", 3))
}

func (t *factionFormation) unaffiliatedNPCs(view *graph.TemplateView) []*graph.Entity {
	npcKind := graph.KindNPC
	candidates := view.FindEntities(graph.Criteria{Kind: &npcKind})
	var out []*graph.Entity
	for _, e := range candidates {
		if !view.HasRelationship(e.ID, "", "member_of") && len(view.GetEntityRelationships(e.ID, graph.DirectionBoth)) == 0 {
			out = append(out, e)
		}
	}
	return out
}

func (t *factionFormation) FindTargets(view *graph.TemplateView) []templates.Target {
	minMembers := int(parameter(t.manifest, "minMembers", 3))
	members := t.unaffiliatedNPCs(view)
	if len(members) < minMembers {
		return nil
	}
	if len(members) > minMembers {
		members = members[:minMembers]
	}
	out := make([]templates.Target, len(members))
	for i, m := range members {
		out[i] = m
	}
	return out
}

func (t *factionFormation) Expand(view *graph.TemplateView, targetsList []templates.Target) (templates.ExpandResult, error) {
	name := proposeName(t.deps.Names, string(graph.KindFaction), "Covenant")
	cohesion := parameter(t.manifest, "cohesion", 0.5)
	factionID := view.CreateEntity(graph.EntitySettings{
		Kind:       graph.KindFaction,
		Subtype:    "formed",
		Name:       name,
		Status:     graph.StatusActive,
		Prominence: graph.ProminenceMarginal,
		Culture:    t.deps.Culture,
	})

	rels := 0
	for _, target := range targetsList {
		member, ok := target.(*graph.Entity)
		if !ok {
			continue
		}
		if view.AddRelationship("member_of", member.ID, factionID, cohesion, nil, "affiliation") {
			rels++
		}
	}

	view.AddHistoryEvent(graph.EventSimulation, name+" is founded")
	return templates.ExpandResult{
		EntitiesCreated:      []string{factionID},
		RelationshipsCreated: rels,
		Description:          name + " is founded",
		PressureChanges:      t.manifest.PressureModifiers,
	}, nil
}

// locationDiscovery spawns a location and, whenever a current era is set,
// links it to that era via active_during (spec §4.6's protected-kind
// exemption).
type locationDiscovery struct {
	manifest templatepacks.TemplateManifest
	deps     Deps
}

func newLocationDiscovery(m templatepacks.TemplateManifest, deps Deps) templates.Template {
	return &locationDiscovery{manifest: m, deps: deps}
}

func (t *locationDiscovery) ID() string                          { return t.manifest.ID }
func (t *locationDiscovery) CanApply(_ *graph.TemplateView) bool  { return true }
func (t *locationDiscovery) Produces() []string                  { return t.manifest.Produces }
func (t *locationDiscovery) PressureModifiers() map[string]float64 { return t.manifest.PressureModifiers }

func (t *locationDiscovery) FindTargets(_ *graph.TemplateView) []templates.Target {
	return []templates.Target{struct{}{}}
}

func (t *locationDiscovery) Expand(view *graph.TemplateView, _ []templates.Target) (templates.ExpandResult, error) {
	name := proposeName(t.deps.Names, string(graph.KindLocation), "Uncharted Reach")
	id := view.CreateEntity(graph.EntitySettings{
		Kind:       graph.KindLocation,
		Subtype:    "discovered",
		Name:       name,
		Status:     graph.StatusActive,
		Prominence: graph.ProminenceForgotten,
		Culture:    t.deps.Culture,
	})

	rels := 0
	if eraID := view.CurrentEra(); eraID != "" {
		if view.AddRelationship(graph.RelationshipActiveDuring, id, eraID, 1.0, nil, "temporal") {
			rels++
		}
	}

	return templates.ExpandResult{
		EntitiesCreated:      []string{id},
		RelationshipsCreated: rels,
		Description:          name + " is charted for the first time",
		PressureChanges:      t.manifest.PressureModifiers,
	}, nil
}

// allianceFormation links two existing, unconnected factions with an
// "allied_with" relationship, strength scaled by the manifest's
// "baseStrength" parameter.
type allianceFormation struct {
	manifest templatepacks.TemplateManifest
	deps     Deps
}

func newAllianceFormation(m templatepacks.TemplateManifest, deps Deps) templates.Template {
	return &allianceFormation{manifest: m, deps: deps}
}

func (t *allianceFormation) ID() string                          { return t.manifest.ID }
func (t *allianceFormation) Produces() []string                  { return t.manifest.Produces }
func (t *allianceFormation) PressureModifiers() map[string]float64 { return t.manifest.PressureModifiers }

func (t *allianceFormation) candidatePair(view *graph.TemplateView) (*graph.Entity, *graph.Entity, bool) {
	factionKind := graph.KindFaction
	factions := view.FindEntities(graph.Criteria{Kind: &factionKind})
	for i := 0; i < len(factions); i++ {
		for j := i + 1; j < len(factions); j++ {
			a, b := factions[i], factions[j]
			if !view.HasRelationship(a.ID, b.ID, "allied_with") && !view.HasRelationship(b.ID, a.ID, "allied_with") {
				return a, b, true
			}
		}
	}
	return nil, nil, false
}

func (t *allianceFormation) CanApply(view *graph.TemplateView) bool {
	_, _, ok := t.candidatePair(view)
	return ok
}

func (t *allianceFormation) FindTargets(view *graph.TemplateView) []templates.Target {
	a, b, ok := t.candidatePair(view)
	if !ok {
		return nil
	}
	return []templates.Target{[2]*graph.Entity{a, b}}
}

func (t *allianceFormation) Expand(view *graph.TemplateView, targetsList []templates.Target) (templates.ExpandResult, error) {
	if len(targetsList) == 0 {
		return templates.ExpandResult{}, nil
	}
	pair, ok := targetsList[0].([2]*graph.Entity)
	if !ok {
		return templates.ExpandResult{}, nil
	}
	strength := parameter(t.manifest, "baseStrength", 0.6)
	rels := 0
	if view.AddRelationship("allied_with", pair[0].ID, pair[1].ID, strength, nil, "diplomacy") {
		rels++
	}
	desc := pair[0].Name + " and " + pair[1].Name + " form an alliance"
	view.AddHistoryEvent(graph.EventSimulation, desc)
	return templates.ExpandResult{
		RelationshipsCreated: rels,
		Description:          desc,
		PressureChanges:      t.manifest.PressureModifiers,
	}, nil
}

// abilityManifestation spawns an Abilities-kind entity and links it to a
// random existing NPC as its wielder, gated on the manifest's
// "minPopulation" parameter so abilities don't outnumber the people who
// could plausibly hold them.
type abilityManifestation struct {
	manifest templatepacks.TemplateManifest
	deps     Deps
}

func newAbilityManifestation(m templatepacks.TemplateManifest, deps Deps) templates.Template {
	return &abilityManifestation{manifest: m, deps: deps}
}

func (t *abilityManifestation) ID() string                          { return t.manifest.ID }
func (t *abilityManifestation) Produces() []string                  { return t.manifest.Produces }
func (t *abilityManifestation) PressureModifiers() map[string]float64 { return t.manifest.PressureModifiers }

func (t *abilityManifestation) CanApply(view *graph.TemplateView) bool {
	npcKind := graph.KindNPC
	return len(view.FindEntities(graph.Criteria{Kind: &npcKind})) >= int(parameter(t.manifest, "minPopulation", 1))
}

func (t *abilityManifestation) FindTargets(view *graph.TemplateView) []templates.Target {
	bearer := view.SelectTargets(graph.KindNPC, 1, graph.Bias{PreferLowDegree: true})
	if len(bearer) == 0 {
		return nil
	}
	return []templates.Target{bearer[0]}
}

func (t *abilityManifestation) Expand(view *graph.TemplateView, targetsList []templates.Target) (templates.ExpandResult, error) {
	if len(targetsList) == 0 {
		return templates.ExpandResult{}, nil
	}
	bearer, ok := targetsList[0].(*graph.Entity)
	if !ok {
		return templates.ExpandResult{}, nil
	}
	name := proposeName(t.deps.Names, string(graph.KindAbilities), "Latent Gift")
	id := view.CreateEntity(graph.EntitySettings{
		Kind:       graph.KindAbilities,
		Subtype:    "manifested",
		Name:       name,
		Status:     graph.StatusActive,
		Prominence: graph.ProminenceForgotten,
	})
	rels := 0
	if view.AddRelationship("wielded_by", id, bearer.ID, 1.0, nil, "ability") {
		rels++
	}
	desc := bearer.Name + " manifests " + name
	return templates.ExpandResult{
		EntitiesCreated:      []string{id},
		RelationshipsCreated: rels,
		Description:          desc,
		PressureChanges:      t.manifest.PressureModifiers,
	}, nil
}
