// Package catalyst implements the universal catalyst/agent action
// subsystem (spec.md §4.7): any entity with catalyst.canAct=true may attempt
// a configured action each tick, weighted by pressures and prominence.
package catalyst

import (
	"log/slog"

	"golang.org/x/time/rate"

	domcfg "github.com/chris-arsenault/penguin-tales-sub002/domain/config"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/graph"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/logger"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/rng"
)

// Outcome classifies one attempt per spec §4.7 observability paragraph.
type Outcome string

const (
	OutcomeSuccess       Outcome = "success"
	OutcomeFailedRoll    Outcome = "failed_roll"
	OutcomeFailedNoTarget Outcome = "failed_no_target"
	OutcomeFailedNoInstigator Outcome = "failed_no_instigator"
)

// ActionResult is what an action handler returns on success.
type ActionResult struct {
	Success         bool
	Relationships   []ResultRelationship
	Description     string
	EntitiesCreated []string
	EntitiesModified []string
	InstigatorID    string
}

// ResultRelationship is one edge an action handler wants created, attributed
// to the acting agent.
type ResultRelationship struct {
	Kind     string
	Src, Dst string
	Strength float64
}

// Handler implements one action's effect. It receives the restricted view
// and the acting agent's id, and returns the result to apply.
type Handler func(view *graph.TemplateView, agentID string) ActionResult

// Registry maps action ids (scoped within an action domain) to handlers.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry builds an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register wires a handler for an action id. Panics on duplicate
// registration — a programmer error caught at wiring time, not runtime.
func (r *Registry) Register(actionID string, h Handler) {
	if _, exists := r.handlers[actionID]; exists {
		panic("catalyst: duplicate action handler for " + actionID)
	}
	r.handlers[actionID] = h
}

// ActionApplication is the per-attempt observability record spec §4.7 calls
// for: "pressure influences, selected weight / total weight, success
// chance, prominence multiplier, and outcome status".
type ActionApplication struct {
	Tick              int
	AgentID           string
	ActionID          string
	Outcome           Outcome
	SelectedWeight    float64
	TotalWeight       float64
	SuccessChance     float64
	ProminenceMultiplier float64
}

// Engine runs the catalyst pass over every agent entity, once per tick.
type Engine struct {
	log      *slog.Logger
	registry *Registry
	domains  map[string]domcfg.ActionDomain
	rng      *rng.Source

	baseRate     float64
	tickModifier float64

	// domainLimiters throttles how many actions per second each action
	// domain may apply, independent of the per-agent attempt roll — a
	// pathological pressure spike that inflates one domain's weight
	// shouldn't let it monopolize every tick. Unset domains default to an
	// unlimited rate.Limiter so existing callers see no behavior change
	// until they opt in via SetDomainRateLimit.
	domainLimiters map[string]*rate.Limiter
	actionDomain   map[string]string

	applications []ActionApplication
}

// NewEngine builds a catalyst Engine. baseRate is the attempt-chance base
// rate shared by every agent; tickModifier scales it per the current era
// (spec §4.7 step 1).
func NewEngine(log *slog.Logger, registry *Registry, domains []domcfg.ActionDomain, r *rng.Source, baseRate float64) *Engine {
	byID := make(map[string]domcfg.ActionDomain, len(domains))
	actionDomain := make(map[string]string)
	for _, d := range domains {
		byID[d.ID] = d
		for _, a := range d.Actions {
			actionDomain[a.ID] = d.ID
		}
	}
	return &Engine{
		log:            log.With(logger.Scope("catalyst")),
		registry:       registry,
		domains:        byID,
		rng:            r,
		baseRate:       baseRate,
		tickModifier:   1.0,
		domainLimiters: make(map[string]*rate.Limiter),
		actionDomain:   actionDomain,
	}
}

// SetTickModifier scales every agent's attempt chance this tick (e.g. the
// current era's systemModifiers entry for the catalyst system).
func (e *Engine) SetTickModifier(m float64) { e.tickModifier = m }

// SetDomainRateLimit caps actionsPerSecond applications of domainID's
// actions, with burst allowing that many to apply back-to-back before the
// limiter starts rejecting. Domains with no limit set are unthrottled.
func (e *Engine) SetDomainRateLimit(domainID string, actionsPerSecond float64, burst int) {
	e.domainLimiters[domainID] = rate.NewLimiter(rate.Limit(actionsPerSecond), burst)
}

func (e *Engine) domainLimiterFor(domainID string) *rate.Limiter {
	l, ok := e.domainLimiters[domainID]
	if !ok {
		l = rate.NewLimiter(rate.Inf, 0)
		e.domainLimiters[domainID] = l
	}
	return l
}

// Applications returns every recorded attempt since the last Reset.
func (e *Engine) Applications() []ActionApplication {
	out := make([]ActionApplication, len(e.applications))
	copy(out, e.applications)
	return out
}

// Reset clears recorded applications, typically at epoch boundaries.
func (e *Engine) Reset() { e.applications = nil }

// Run executes one catalyst pass: for every agent entity, attempt, select,
// and possibly apply one action.
func (e *Engine) Run(view *graph.TemplateView, agents []*graph.Entity) {
	tick := view.Tick()
	for _, agent := range agents {
		if agent.Catalyst == nil || !agent.Catalyst.CanAct {
			continue
		}
		e.runAgent(view, agent, tick)
	}
}

func (e *Engine) runAgent(view *graph.TemplateView, agent *graph.Entity, tick int) {
	candidates := e.eligibleActions(agent)
	pressureBonus := e.pressureBonus(view, candidates)

	prominenceMul := graph.ProminenceMultiplier(agent.Prominence)
	attemptChance := clamp01(e.baseRate*prominenceMul*agent.Catalyst.Influence+pressureBonus) * e.tickModifier

	if !e.rng.RollProbability(attemptChance, 1.0) {
		e.record(tick, agent.ID, "", OutcomeFailedRoll, 0, 0, 0, prominenceMul)
		return
	}

	eligible := e.filterRequirements(view, agent, candidates)
	if len(eligible) == 0 {
		e.record(tick, agent.ID, "", OutcomeFailedNoTarget, 0, 0, 0, prominenceMul)
		return
	}

	weighted, total := e.weighAll(view, eligible)
	chosen, ok := rng.WeightedChoice(e.rng, weighted)
	if !ok {
		e.record(tick, agent.ID, "", OutcomeFailedNoTarget, 0, total, 0, prominenceMul)
		return
	}

	successChance := minF(0.95, chosen.BaseSuccessChance*prominenceMul)
	selectedWeight := weightOf(weighted, chosen.ID)

	if !e.rng.RollProbability(successChance, 1.0) {
		e.record(tick, agent.ID, chosen.ID, OutcomeFailedRoll, selectedWeight, total, successChance, prominenceMul)
		e.applyProminenceFeedback(view, agent, chosen, false)
		return
	}

	handler, ok := e.registry.handlers[chosen.ID]
	if !ok {
		e.record(tick, agent.ID, chosen.ID, OutcomeFailedNoInstigator, selectedWeight, total, successChance, prominenceMul)
		return
	}

	result := handler(view, agent.ID)
	if !result.Success {
		e.record(tick, agent.ID, chosen.ID, OutcomeFailedNoInstigator, selectedWeight, total, successChance, prominenceMul)
		return
	}

	for _, rel := range result.Relationships {
		view.AddRelationshipCatalyzed(rel.Kind, rel.Src, rel.Dst, rel.Strength, agent.ID)
	}
	view.AddHistoryEvent(graph.EventSimulation, agent.Name+" "+result.Description)
	e.appendCatalyzedEvent(view, agent, tick, chosen.ID, result.Description)

	e.record(tick, agent.ID, chosen.ID, OutcomeSuccess, selectedWeight, total, successChance, prominenceMul)
	e.applyProminenceFeedback(view, agent, chosen, true)
}

// appendCatalyzedEvent stamps the acting agent with a record of a
// successful action (spec §4.7 step 5), so every relationship this tick
// attributed to agent.ID via catalyzedBy has a matching entry in
// agent.catalyst.catalyzedEvents (spec §8 Causality law).
func (e *Engine) appendCatalyzedEvent(view *graph.TemplateView, agent *graph.Entity, tick int, actionID, description string) {
	updated := *agent.Catalyst
	updated.CatalyzedEvents = append(append([]graph.CatalyzedEvent(nil), agent.Catalyst.CatalyzedEvents...), graph.CatalyzedEvent{
		Tick:        tick,
		ActionID:    actionID,
		Description: description,
	})
	view.UpdateEntity(agent.ID, graph.EntityPatch{Catalyst: &updated})
}

func (e *Engine) eligibleActions(agent *graph.Entity) []domcfg.ActionConfig {
	var out []domcfg.ActionConfig
	for _, domainID := range agent.Catalyst.ActionDomains {
		d, ok := e.domains[domainID]
		if !ok {
			continue
		}
		out = append(out, d.Actions...)
	}
	return out
}

func (e *Engine) pressureBonus(view *graph.TemplateView, candidates []domcfg.ActionConfig) float64 {
	if len(candidates) == 0 {
		return 0
	}
	var sum float64
	for _, a := range candidates {
		if len(a.PressureModifiers) == 0 {
			continue
		}
		var avgMul float64
		for _, pm := range a.PressureModifiers {
			avgMul += pm.Multiplier * (view.GetPressure(pm.PressureID) / 100)
		}
		sum += avgMul / float64(len(a.PressureModifiers))
	}
	return sum / float64(len(candidates))
}

func (e *Engine) filterRequirements(view *graph.TemplateView, agent *graph.Entity, candidates []domcfg.ActionConfig) []domcfg.ActionConfig {
	var out []domcfg.ActionConfig
	for _, a := range candidates {
		if a.Requirements.MinProminence != "" && agent.Prominence < parseProminence(a.Requirements.MinProminence) {
			continue
		}
		if len(a.Requirements.RequiredRelationships) > 0 {
			rels := view.GetEntityRelationships(agent.ID, graph.DirectionOut)
			if !anyKindMatches(rels, a.Requirements.RequiredRelationships) {
				continue
			}
		}
		if !requiredPressuresMet(view, a.Requirements.RequiredPressures) {
			continue
		}
		if !e.domainLimiterFor(e.actionDomain[a.ID]).Allow() {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (e *Engine) weighAll(view *graph.TemplateView, actions []domcfg.ActionConfig) ([]rng.Weighted[domcfg.ActionConfig], float64) {
	out := make([]rng.Weighted[domcfg.ActionConfig], 0, len(actions))
	var total float64
	for _, a := range actions {
		w := a.BaseWeight
		for _, pm := range a.PressureModifiers {
			w *= 1 + (view.GetPressure(pm.PressureID)/100)*pm.Multiplier
		}
		if w < 0.1 {
			w = 0.1
		}
		out = append(out, rng.Weighted[domcfg.ActionConfig]{Item: a, Weight: w})
		total += w
	}
	return out, total
}

func (e *Engine) applyProminenceFeedback(view *graph.TemplateView, agent *graph.Entity, action domcfg.ActionConfig, success bool) {
	if !action.ProminenceFeedback {
		return
	}
	upChance := action.ProminenceUpChance
	if upChance == 0 {
		upChance = 0.1
	}
	downChance := action.ProminenceDownChance
	if downChance == 0 {
		downChance = 0.05
	}

	if success {
		if e.rng.RollProbability(upChance, 1.0) {
			next := agent.Prominence.Up()
			view.UpdateEntity(agent.ID, graph.EntityPatch{Prominence: &next})
		}
		return
	}
	if e.rng.RollProbability(downChance, 1.0) {
		next := agent.Prominence.Down()
		view.UpdateEntity(agent.ID, graph.EntityPatch{Prominence: &next})
	}
}

func (e *Engine) record(tick int, agentID, actionID string, outcome Outcome, selected, total, successChance, prominenceMul float64) {
	e.applications = append(e.applications, ActionApplication{
		Tick: tick, AgentID: agentID, ActionID: actionID, Outcome: outcome,
		SelectedWeight: selected, TotalWeight: total, SuccessChance: successChance,
		ProminenceMultiplier: prominenceMul,
	})
}

func weightOf(weighted []rng.Weighted[domcfg.ActionConfig], id string) float64 {
	for _, w := range weighted {
		if w.Item.ID == id {
			return w.Weight
		}
	}
	return 0
}

func anyKindMatches(rels []*graph.Relationship, kinds []string) bool {
	set := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	for _, r := range rels {
		if set[r.Kind] {
			return true
		}
	}
	return false
}

func requiredPressuresMet(view *graph.TemplateView, required map[string]float64) bool {
	for id, minVal := range required {
		if view.GetPressure(id) < minVal {
			return false
		}
	}
	return true
}

func parseProminence(s string) graph.Prominence {
	switch s {
	case "forgotten":
		return graph.ProminenceForgotten
	case "marginal":
		return graph.ProminenceMarginal
	case "recognized":
		return graph.ProminenceRecognized
	case "renowned":
		return graph.ProminenceRenowned
	case "mythic":
		return graph.ProminenceMythic
	default:
		return graph.ProminenceForgotten
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
