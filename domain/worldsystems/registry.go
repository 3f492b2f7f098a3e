// Package worldsystems is the Go-registered occurrenceCreation
// implementations a loaded templatepacks.Pack "compiles" against, the
// same compile-by-id shape domain/worldtemplates uses for growth
// templates (spec §4.5: "occurrenceCreation: instantiates occurrence
// entities when domain-defined creation conditions hold"). A
// SystemManifest carries only id/baseWeight/alwaysRun — not enough to
// express a predicate/describe pair data-driven — so the predicate and
// description logic live here in Go, keyed by manifest id.
package worldsystems

import (
	"fmt"
	"log/slog"

	"github.com/chris-arsenault/penguin-tales-sub002/domain/graph"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/systems"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/templatepacks"
)

// System IDs every registered constructor answers to. A pack's
// systems[].id must match one of these for BuildRegistry to compile it.
const (
	IDConflictOccurrence  = "occurrence_conflict"
	IDCalamityOccurrence  = "occurrence_calamity"
	IDDiscoveryOccurrence = "occurrence_discovery_event"
)

// BuildRegistry compiles a loaded pack's system manifests against the
// Go-registered constructors, skipping any id this binary has no
// implementation for (same "inert, not an error" rule as
// domain/worldtemplates.BuildRegistry).
func BuildRegistry(log *slog.Logger, pack *templatepacks.Pack) []systems.System {
	var out []systems.System
	for _, manifest := range pack.Systems {
		if s := build(log, manifest); s != nil {
			out = append(out, s)
		}
	}
	return out
}

func build(log *slog.Logger, m templatepacks.SystemManifest) systems.System {
	switch m.ID {
	case IDConflictOccurrence:
		return newConflictOccurrence(log)
	case IDCalamityOccurrence:
		return newCalamityOccurrence(log)
	case IDDiscoveryOccurrence:
		return newDiscoveryOccurrence(log)
	default:
		return nil
	}
}

// newConflictOccurrence fires once rival factions cross a tension
// threshold, predicated on at least two non-historical factions existing
// with an elevated "tension" pressure — spec §4.5's "thresholds on
// pressures, relationship counts" example, read literally.
func newConflictOccurrence(log *slog.Logger) *systems.OccurrenceCreation {
	return systems.NewOccurrenceCreation(log, "conflict",
		func(view *graph.TemplateView) bool {
			if view.GetPressure("tension") < 60 {
				return false
			}
			factionKind := graph.KindFaction
			factions := view.FindEntities(graph.Criteria{Kind: &factionKind, Status: statusPtr(graph.StatusActive)})
			return len(factions) >= 2
		},
		func(view *graph.TemplateView) (string, string) {
			return "Rising Conflict", fmt.Sprintf("tensions boil over at tick %d", view.Tick())
		},
	)
}

// newCalamityOccurrence fires when the "scarcity" pressure spikes, modeling
// spec §4.5's threshold-on-pressure example for a world-shaking event.
func newCalamityOccurrence(log *slog.Logger) *systems.OccurrenceCreation {
	return systems.NewOccurrenceCreation(log, "calamity",
		func(view *graph.TemplateView) bool {
			return view.GetPressure("scarcity") >= 75
		},
		func(view *graph.TemplateView) (string, string) {
			return "Calamity", fmt.Sprintf("scarcity reaches a breaking point at tick %d", view.Tick())
		},
	)
}

// newDiscoveryOccurrence fires when the "mystery" pressure is elevated and
// at least one location already exists to anchor the event against.
func newDiscoveryOccurrence(log *slog.Logger) *systems.OccurrenceCreation {
	return systems.NewOccurrenceCreation(log, "discovery_event",
		func(view *graph.TemplateView) bool {
			if view.GetPressure("mystery") < 50 {
				return false
			}
			locationKind := graph.KindLocation
			return len(view.FindEntities(graph.Criteria{Kind: &locationKind})) > 0
		},
		func(view *graph.TemplateView) (string, string) {
			return "Strange Discovery", fmt.Sprintf("an unexplained event is reported at tick %d", view.Tick())
		},
	)
}

func statusPtr(s graph.Status) *graph.Status { return &s }
