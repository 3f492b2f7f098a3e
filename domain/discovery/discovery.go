// Package discovery implements the emergent discovery subsystem (spec.md
// glossary: "generation of new locations whose theme strings are composed
// from world state ... rather than from a fixed list").
package discovery

import (
	"sort"
	"strings"

	domcfg "github.com/chris-arsenault/penguin-tales-sub002/domain/config"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/graph"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/rng"
)

// Vocabulary supplies the theme words a discovery composes from, keyed by
// the pressure id whose elevation makes that word eligible, plus an
// always-eligible base set. This is the domain-supplied piece the spec
// leaves abstract (§6 "domain lore provider").
type Vocabulary struct {
	ByPressure map[string][]string
	Base       []string
}

// Engine runs the emergent discovery subsystem: it gates on configured
// minimum pressure and per-run cooldown, then composes a location theme
// from whichever pressures are currently elevated.
type Engine struct {
	cfg        domcfg.EmergentDiscoveryConfig
	vocabulary Vocabulary
	lastTick   int
	hasRun     bool
}

// NewEngine builds a discovery engine. A nil cfg disables the subsystem.
func NewEngine(cfg *domcfg.EmergentDiscoveryConfig, vocabulary Vocabulary) *Engine {
	e := &Engine{vocabulary: vocabulary}
	if cfg != nil {
		e.cfg = *cfg
	}
	return e
}

// Result is one discovered location.
type Result struct {
	EntityID string
	Theme    string
}

// Attempt runs one discovery pass. It returns ok=false when discovery is
// disabled, on cooldown, or no pressure clears the configured minimum.
func (e *Engine) Attempt(view *graph.TemplateView, r *rng.Source) (Result, bool) {
	if !e.cfg.Enabled {
		return Result{}, false
	}
	tick := view.Tick()
	if e.hasRun && tick-e.lastTick < e.cfg.CooldownTicks {
		return Result{}, false
	}

	elevated := elevatedPressures(view, e.cfg.MinimumPressure)
	if len(elevated) == 0 {
		return Result{}, false
	}

	theme := composeTheme(elevated, e.vocabulary, r)
	id := view.CreateEntity(graph.EntitySettings{
		Kind:        "location",
		Subtype:     "discovered",
		Name:        theme,
		Description: theme,
		Status:      graph.StatusActive,
		Prominence:  graph.ProminenceMarginal,
		Tags:        map[string]string{"discovery": "emergent"},
	})
	view.AddHistoryEvent(graph.EventDiscovery, "A new place is found: "+theme+".")

	e.hasRun = true
	e.lastTick = tick
	return Result{EntityID: id, Theme: theme}, true
}

// elevatedPressures returns the pressure ids at or above minimum, sorted
// descending by value for deterministic word ordering.
func elevatedPressures(view *graph.TemplateView, minimum float64) []string {
	pressures := view.AllPressures()
	ids := make([]string, 0, len(pressures))
	for id, v := range pressures {
		if v >= minimum {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		if pressures[ids[i]] != pressures[ids[j]] {
			return pressures[ids[i]] > pressures[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}

// composeTheme picks one word per elevated pressure (in order of
// descending pressure) plus a base word, joined into a theme string.
func composeTheme(elevatedPressureIDs []string, vocabulary Vocabulary, r *rng.Source) string {
	var parts []string
	for _, id := range elevatedPressureIDs {
		words := vocabulary.ByPressure[id]
		if word, ok := rng.PickRandom(r, words); ok {
			parts = append(parts, word)
		}
	}
	if base, ok := rng.PickRandom(r, vocabulary.Base); ok {
		parts = append(parts, base)
	}
	if len(parts) == 0 {
		return "an unnamed place"
	}
	return strings.Join(parts, " ")
}
