// Package worldactions is the Go-registered catalyst.Handler
// implementations a loaded domain/config.ActionDomain's actions compile
// against, the same compile-by-id shape domain/worldtemplates and
// domain/worldsystems use for templates and systems (spec §4.7: "any
// entity with catalyst.canAct=true may attempt a configured action ...
// resolve success, attribute causality"). An ActionConfig only carries the
// numeric tuning (weight, success chance, requirements, pressure
// modifiers) — the actual effect is Go code keyed by action id, registered
// here against catalyst.Registry. Handlers only decide feasibility and
// describe the intended relationship; catalyst.Engine.Run applies
// ActionResult.Relationships itself via view.AddRelationshipCatalyzed, so
// a handler must never add the relationship a second time.
package worldactions

import (
	"github.com/chris-arsenault/penguin-tales-sub002/domain/catalyst"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/graph"
)

// Action IDs every registered handler answers to. An ActionConfig's id
// must match one of these for BuildRegistry to wire a handler for it.
const (
	IDFormAlliance    = "form_alliance"
	IDInciteConflict  = "incite_conflict"
	IDExpandInfluence = "expand_influence"
	IDSpreadRumor     = "spread_rumor"
)

// BuildRegistry registers a catalyst.Handler for every action id this
// package recognizes. Ids with no matching handler are left unregistered;
// catalyst.Engine.Run then simply treats them as "no instigator" if a pack
// ever selects them — the same tolerance worldtemplates/worldsystems give
// unrecognized manifest ids.
func BuildRegistry() *catalyst.Registry {
	r := catalyst.NewRegistry()
	r.Register(IDFormAlliance, handleFormAlliance)
	r.Register(IDInciteConflict, handleInciteConflict)
	r.Register(IDExpandInfluence, handleExpandInfluence)
	r.Register(IDSpreadRumor, handleSpreadRumor)
	return r
}

// handleFormAlliance links the acting agent to another unaligned faction.
func handleFormAlliance(view *graph.TemplateView, agentID string) catalyst.ActionResult {
	factionKind := graph.KindFaction
	targets := view.SelectTargets(factionKind, 1, graph.Bias{PreferLowDegree: true, Exclude: map[string]bool{agentID: true}})
	if len(targets) == 0 {
		return catalyst.ActionResult{}
	}
	target := targets[0]
	if view.HasRelationship(agentID, target.ID, "allied_with") || view.HasRelationship(target.ID, agentID, "allied_with") {
		return catalyst.ActionResult{}
	}
	return catalyst.ActionResult{
		Success:      true,
		InstigatorID: agentID,
		Relationships: []catalyst.ResultRelationship{
			{Kind: "allied_with", Src: agentID, Dst: target.ID, Strength: 0.6},
		},
		Description: "a new alliance is forged",
	}
}

// handleInciteConflict marks the agent rivals with a faction, queuing no
// pressure delta directly — the engine only aggregates pressure deltas
// through system/template results (spec §4.9), not catalyst handlers.
func handleInciteConflict(view *graph.TemplateView, agentID string) catalyst.ActionResult {
	targets := view.SelectTargets(graph.KindFaction, 1, graph.Bias{Exclude: map[string]bool{agentID: true}})
	if len(targets) == 0 {
		return catalyst.ActionResult{}
	}
	target := targets[0]
	if view.HasRelationship(agentID, target.ID, "rival_of") {
		return catalyst.ActionResult{}
	}
	return catalyst.ActionResult{
		Success:      true,
		InstigatorID: agentID,
		Relationships: []catalyst.ResultRelationship{
			{Kind: "rival_of", Src: agentID, Dst: target.ID, Strength: 0.5},
		},
		Description: "a rivalry ignites",
	}
}

// handleExpandInfluence links the agent to an unconnected location.
func handleExpandInfluence(view *graph.TemplateView, agentID string) catalyst.ActionResult {
	locationKind := graph.KindLocation
	targets := view.SelectTargets(locationKind, 1, graph.Bias{PreferLowDegree: true})
	if len(targets) == 0 {
		return catalyst.ActionResult{}
	}
	target := targets[0]
	if view.HasRelationship(agentID, target.ID, "influences") {
		return catalyst.ActionResult{}
	}
	return catalyst.ActionResult{
		Success:      true,
		InstigatorID: agentID,
		Relationships: []catalyst.ResultRelationship{
			{Kind: "influences", Src: agentID, Dst: target.ID, Strength: 0.4},
		},
		Description: "influence spreads to a new location",
	}
}

// handleSpreadRumor links an npc to the agent without creating a durable
// structural tie, modeling a lightweight social action (spec glossary:
// catalyst actions "attribute causality" even for minor effects).
func handleSpreadRumor(view *graph.TemplateView, agentID string) catalyst.ActionResult {
	npcKind := graph.KindNPC
	targets := view.SelectTargets(npcKind, 1, graph.Bias{Exclude: map[string]bool{agentID: true}})
	if len(targets) == 0 {
		return catalyst.ActionResult{}
	}
	target := targets[0]
	if view.HasRelationship(target.ID, agentID, "heard_rumor_from") {
		return catalyst.ActionResult{}
	}
	return catalyst.ActionResult{
		Success:      true,
		InstigatorID: agentID,
		Relationships: []catalyst.ResultRelationship{
			{Kind: "heard_rumor_from", Src: target.ID, Dst: agentID, Strength: 0.2},
		},
		Description: "a rumor spreads",
	}
}
