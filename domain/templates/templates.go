// Package templates implements the growth template contract and selector
// (spec.md §4.3, §4.4): weighted, deficit- and pressure-aware sampling of
// which templates run during a growth phase.
package templates

import (
	"log/slog"
	"sort"

	domcfg "github.com/chris-arsenault/penguin-tales-sub002/domain/config"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/graph"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/logger"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/rng"
)

// ExpandResult is what Expand returns on success (spec §4.4).
type ExpandResult struct {
	EntitiesCreated      []string
	RelationshipsCreated int
	Description          string
	PressureChanges      map[string]float64
}

// Target is an opaque findTargets result threaded from FindTargets into
// Expand.
type Target any

// Template is the growth template contract (spec §4.4).
type Template interface {
	ID() string
	CanApply(view *graph.TemplateView) bool
	FindTargets(view *graph.TemplateView) []Target
	Expand(view *graph.TemplateView, targets []Target) (ExpandResult, error)
	Produces() []string
	PressureModifiers() map[string]float64
}

// Selector implements spec §4.3's weighted template scoring and sampling.
type Selector struct {
	log       *slog.Logger
	templates map[string]Template
	runCounts map[string]int

	deficitAlpha     float64
	maxRunsPerTemplate int
}

// NewSelector builds a Selector over the registered templates. deficitAlpha
// defaults to 2 (spec §4.3 "α configurable, default 2") when <= 0.
func NewSelector(log *slog.Logger, all []Template, deficitAlpha float64, maxRunsPerTemplate int) *Selector {
	if deficitAlpha <= 0 {
		deficitAlpha = 2
	}
	if maxRunsPerTemplate <= 0 {
		maxRunsPerTemplate = 10
	}
	byID := make(map[string]Template, len(all))
	for _, t := range all {
		byID[t.ID()] = t
	}
	return &Selector{
		log:                log.With(logger.Scope("templates.selector")),
		templates:          byID,
		runCounts:          make(map[string]int),
		deficitAlpha:       deficitAlpha,
		maxRunsPerTemplate: maxRunsPerTemplate,
	}
}

// ScoreInputs is everything Score needs besides the template itself.
type ScoreInputs struct {
	View               *graph.TemplateView
	EraTemplateWeights map[string]float64
	TargetPerKind      map[string]int
	ActualPerKind      map[string]int
}

// Score computes weight(T) per spec §4.3's formula.
func (s *Selector) Score(t Template, in ScoreInputs) float64 {
	base := 1.0
	eraWeight := 1.0
	if w, ok := in.EraTemplateWeights[t.ID()]; ok {
		eraWeight = w
	}

	pressureBoost := 1.0
	for pressureID, mul := range t.PressureModifiers() {
		pressureBoost += (in.View.GetPressure(pressureID) / 100) * mul
	}
	if pressureBoost < 0.1 {
		pressureBoost = 0.1
	}

	deficitSum := 0.0
	for _, kind := range t.Produces() {
		target := in.TargetPerKind[kind]
		if target <= 0 {
			continue
		}
		actual := in.ActualPerKind[kind]
		deficit := float64(target-actual) / float64(target)
		if deficit > 0 {
			deficitSum += deficit
		}
	}
	deficitBoost := 1 + s.deficitAlpha*deficitSum

	diversityPenalty := 1 - float64(s.runCounts[t.ID()])/float64(s.maxRunsPerTemplate)
	if diversityPenalty < 0.1 {
		diversityPenalty = 0.1
	}

	return base * eraWeight * pressureBoost * deficitBoost * diversityPenalty
}

// Pick samples `count` templates whose CanApply holds, weighted per Score,
// without replacement (spec §4.3: "weighted-without-replacement if the pick
// is a set"). Increments each chosen template's run count.
func (s *Selector) Pick(r *rng.Source, in ScoreInputs, count int) []Template {
	ids := make([]string, 0, len(s.templates))
	for id := range s.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var weighted []rng.Weighted[string]
	for _, id := range ids {
		t := s.templates[id]
		if !t.CanApply(in.View) {
			continue
		}
		weighted = append(weighted, rng.Weighted[string]{Item: id, Weight: s.Score(t, in)})
	}
	if len(weighted) == 0 {
		return nil
	}

	picked := rng.WeightedSampleWithoutReplacement(r, weighted, count)
	out := make([]Template, 0, len(picked))
	for _, id := range picked {
		s.runCounts[id]++
		out = append(out, s.templates[id])
	}
	return out
}

// RunCount reports how many times a template has been chosen.
func (s *Selector) RunCount(id string) int { return s.runCounts[id] }

// ResetRunCounts clears diversity tracking, typically at epoch boundaries.
func (s *Selector) ResetRunCounts() { s.runCounts = make(map[string]int) }

// DeriveDomainDeficitMapping adapts domcfg.DistributionTargets into the
// TargetPerKind shape Score consumes, against a total population figure.
func DeriveDomainDeficitMapping(targets *domcfg.DistributionTargets, totalPopulation int) map[string]int {
	out := make(map[string]int)
	if targets == nil {
		return out
	}
	for kind, ratio := range targets.KindRatios {
		out[kind] = int(ratio * float64(totalPopulation))
	}
	return out
}
