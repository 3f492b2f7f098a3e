// Package worldtemplates is the Go-registered growth template
// implementations a loaded templatepacks.Pack "compiles" against
// (domain/templatepacks's package doc: manifests layer tunable
// parameters/produces/pressureModifiers on top of these, letting one
// binary run different worlds without a recompile). Each template here
// implements templates.Template and reads its tunables from the
// TemplateManifest it was built from, rather than hardcoding them.
package worldtemplates

import (
	"github.com/chris-arsenault/penguin-tales-sub002/domain/graph"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/namegen"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/templatepacks"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/templates"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/rng"
)

// Template IDs every registered constructor answers to. A pack's
// templates[].id must match one of these for BuildRegistry to compile it.
const (
	IDNPCArrival        = "npc_arrival"
	IDFactionFormation  = "faction_formation"
	IDLocationDiscovery = "location_discovery"
	IDAllianceFormation = "alliance_formation"
	IDAbilityManifest   = "ability_manifestation"
)

// Deps are the shared collaborators every registered template needs.
type Deps struct {
	RNG     *rng.Source
	Names   *namegen.Logger
	Culture string
}

// BuildRegistry compiles a loaded pack's template manifests against the
// Go-registered constructors, returning one templates.Template per
// manifest whose id this package recognizes. Manifest ids with no
// matching constructor are skipped — templatepacks.Load already schema-
// validates shape, but a pack naming an id this binary has no code for is
// simply inert, not an error (a different binary registering more
// templates could run the same pack).
func BuildRegistry(pack *templatepacks.Pack, deps Deps) []templates.Template {
	var out []templates.Template
	for _, manifest := range pack.Templates {
		if t := build(manifest, deps); t != nil {
			out = append(out, t)
		}
	}
	return out
}

func build(m templatepacks.TemplateManifest, deps Deps) templates.Template {
	switch m.ID {
	case IDNPCArrival:
		return newNPCArrival(m, deps)
	case IDFactionFormation:
		return newFactionFormation(m, deps)
	case IDLocationDiscovery:
		return newLocationDiscovery(m, deps)
	case IDAllianceFormation:
		return newAllianceFormation(m, deps)
	case IDAbilityManifest:
		return newAbilityManifestation(m, deps)
	default:
		return nil
	}
}

// parameter reads a tunable from the manifest, falling back to def when
// the pack doesn't declare it.
func parameter(m templatepacks.TemplateManifest, name string, def float64) float64 {
	if p, ok := m.Parameters[name]; ok {
		return p.Value
	}
	return def
}

func proposeName(names *namegen.Logger, kind, prefix string) string {
	return names.Assign(kind, prefix)
}
