// Package pressures implements the named-float feedback signals described
// in spec.md §4.9: each has a baseline and decay rate, templates/systems
// only ever queue deltas, and the tracker aggregates them once per tick.
package pressures

import (
	"log/slog"

	"github.com/chris-arsenault/penguin-tales-sub002/domain/graph"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/logger"
)

// Definition is one pressure's static configuration.
type Definition struct {
	ID       string
	Baseline float64
	Decay    float64 // fraction pulled back toward baseline per tick, [0,1]
}

// Tracker owns every pressure's current value and the pending deltas queued
// during the tick that's in flight.
type Tracker struct {
	log     *slog.Logger
	defs    map[string]Definition
	pending map[string]float64
}

// NewTracker builds a Tracker seeded at each definition's baseline.
func NewTracker(log *slog.Logger, defs []Definition, store *graph.Store) *Tracker {
	t := &Tracker{
		log:     log.With(logger.Scope("pressures")),
		defs:    make(map[string]Definition, len(defs)),
		pending: make(map[string]float64),
	}
	for _, d := range defs {
		t.defs[d.ID] = d
		store.SetPressure(d.ID, d.Baseline)
	}
	return t
}

// QueueDelta adds a pending change to a pressure, to be applied at the next
// tick boundary (spec §4.9: "write-only through pressureChanges"). Deltas
// queued during tick t are visible starting tick t+1 (spec §5 ordering
// guarantee 2), which this package enforces by only draining `pending` from
// Apply, never mutating the store directly here.
func (t *Tracker) QueueDelta(id string, delta float64) {
	t.pending[id] += delta
}

// ApplyDistributionDeficits adds a positive delta to every pressure the
// domain maps to a kind whose population deficit exceeds threshold (spec
// §4.9: "distribution-driven adjustments").
func (t *Tracker) ApplyDistributionDeficits(deficitsByKind map[string]float64, threshold float64, mappings map[string][]string) {
	for kind, deficit := range deficitsByKind {
		if deficit <= threshold {
			continue
		}
		for _, pressureID := range mappings[kind] {
			t.QueueDelta(pressureID, deficit)
		}
	}
}

// Apply runs one tick's pressure update: `p ← p + decay·(baseline−p) +
// ΣpendingDeltas`, then clears the pending queue.
func (t *Tracker) Apply(store *graph.Store) {
	for id, def := range t.defs {
		current := store.GetPressure(id)
		next := current + def.Decay*(def.Baseline-current) + t.pending[id]
		store.SetPressure(id, next)
	}
	t.pending = make(map[string]float64)
}

// Definitions returns a defensive copy of every registered definition.
func (t *Tracker) Definitions() []Definition {
	out := make([]Definition, 0, len(t.defs))
	for _, d := range t.defs {
		out = append(out, d)
	}
	return out
}
