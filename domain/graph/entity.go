// Package graph is the in-memory, typed entity/relationship store at the
// heart of the simulation: it owns the HardState/Relationship rows, enforces
// the invariants in spec.md §3, and exposes both a full and a restricted
// ("template view") query surface.
package graph

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Kind is the fixed set of entity kinds spec.md §3 names.
type Kind string

const (
	KindNPC         Kind = "npc"
	KindFaction     Kind = "faction"
	KindLocation    Kind = "location"
	KindAbilities   Kind = "abilities"
	KindRules       Kind = "rules"
	KindEra         Kind = "era"
	KindOccurrence  Kind = "occurrence"
)

// Status is the entity lifecycle status. Transitions are monotone toward
// Historical (invariant 4).
type Status string

const (
	StatusActive     Status = "active"
	StatusHistorical Status = "historical"
	StatusCurrent    Status = "current"
	StatusFuture     Status = "future"
)

// Prominence is an ordered tier; invariant 8 allows only one-step moves.
type Prominence int

const (
	ProminenceForgotten Prominence = iota
	ProminenceMarginal
	ProminenceRecognized
	ProminenceRenowned
	ProminenceMythic
)

func (p Prominence) String() string {
	switch p {
	case ProminenceForgotten:
		return "forgotten"
	case ProminenceMarginal:
		return "marginal"
	case ProminenceRecognized:
		return "recognized"
	case ProminenceRenowned:
		return "renowned"
	case ProminenceMythic:
		return "mythic"
	default:
		return "unknown"
	}
}

// ProminenceMultiplier is the catalyst success-chance multiplier per §4.7 step 4.
func ProminenceMultiplier(p Prominence) float64 {
	switch p {
	case ProminenceForgotten:
		return 0.6
	case ProminenceMarginal:
		return 0.8
	case ProminenceRecognized:
		return 1.0
	case ProminenceRenowned:
		return 1.2
	case ProminenceMythic:
		return 1.5
	default:
		return 1.0
	}
}

// Up returns the next prominence tier, clamped at Mythic.
func (p Prominence) Up() Prominence {
	if p >= ProminenceMythic {
		return ProminenceMythic
	}
	return p + 1
}

// Down returns the previous prominence tier, clamped at Forgotten.
func (p Prominence) Down() Prominence {
	if p <= ProminenceForgotten {
		return ProminenceForgotten
	}
	return p - 1
}

// Coordinates is an optional spatial position.
type Coordinates struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Temporal bounds an entity's validity window (eras/occurrences).
type Temporal struct {
	StartTick int  `json:"startTick"`
	EndTick   *int `json:"endTick,omitempty"`
}

// CatalystState marks an entity as an agent capable of acting (§4.7).
type CatalystState struct {
	CanAct          bool             `json:"canAct"`
	ActionDomains   []string         `json:"actionDomains,omitempty"`
	Influence       float64          `json:"influence"` // [0,1]
	CatalyzedEvents []CatalyzedEvent `json:"catalyzedEvents,omitempty"`
}

// CatalyzedEvent records one successful action an agent drove.
type CatalyzedEvent struct {
	Tick        int    `json:"tick"`
	ActionID    string `json:"actionId"`
	Description string `json:"description"`
}

// Link mirrors one relationship this entity participates in as the source,
// kept in sync by Store on every mutation (invariant 1). It is a read cache,
// never the owner — the relationship rows held by Store are authoritative.
type Link struct {
	Kind string `json:"kind"`
	Dst  string `json:"dst"`
}

// Entity is the HardState node type from spec.md §3.
type Entity struct {
	ID          string            `json:"id"`
	Kind        Kind              `json:"kind"`
	Subtype     string            `json:"subtype"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Status      Status            `json:"status"`
	Prominence  Prominence        `json:"prominence"`
	Culture     string            `json:"culture,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
	Links       []Link            `json:"links,omitempty"`

	CreatedAt int `json:"createdAt"`
	UpdatedAt int `json:"updatedAt"`

	Temporal    *Temporal      `json:"temporal,omitempty"`
	Coordinates *Coordinates   `json:"coordinates,omitempty"`
	Catalyst    *CatalystState `json:"catalyst,omitempty"`
}

// MarshalJSON renders Prominence as its lowercase name (spec §6 exported
// state), not its ordinal.
func (p Prominence) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

// UnmarshalJSON parses the lowercase name MarshalJSON produces, the
// reverse direction pkg/snapshotstore needs to decode a stored snapshot
// back into a graph.Entity.
func (p *Prominence) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "forgotten":
		*p = ProminenceForgotten
	case "marginal":
		*p = ProminenceMarginal
	case "recognized":
		*p = ProminenceRecognized
	case "renowned":
		*p = ProminenceRenowned
	case "mythic":
		*p = ProminenceMythic
	default:
		return fmt.Errorf("graph: unknown prominence %q", name)
	}
	return nil
}

// Clone returns a defensive deep copy, per spec §4.1 ("all returned entity
// objects are defensive copies").
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	cp := *e

	cp.Tags = make(map[string]string, len(e.Tags))
	for k, v := range e.Tags {
		cp.Tags[k] = v
	}

	cp.Links = make([]Link, len(e.Links))
	copy(cp.Links, e.Links)

	if e.Temporal != nil {
		t := *e.Temporal
		if e.Temporal.EndTick != nil {
			end := *e.Temporal.EndTick
			t.EndTick = &end
		}
		cp.Temporal = &t
	}
	if e.Coordinates != nil {
		c := *e.Coordinates
		cp.Coordinates = &c
	}
	if e.Catalyst != nil {
		c := *e.Catalyst
		c.ActionDomains = append([]string(nil), e.Catalyst.ActionDomains...)
		c.CatalyzedEvents = append([]CatalyzedEvent(nil), e.Catalyst.CatalyzedEvents...)
		cp.Catalyst = &c
	}
	return &cp
}

// RelationshipStatus mirrors spec §3.
type RelationshipStatus string

const (
	RelationshipActive     RelationshipStatus = "active"
	RelationshipHistorical RelationshipStatus = "historical"
)

// Protected relationship kinds are exempt from culling and survive endpoint
// archival as historical rows (invariant 7).
const (
	RelationshipSupersedes   = "supersedes"
	RelationshipPartOf       = "part_of"
	RelationshipActiveDuring = "active_during"
)

// IsProtectedKind reports whether kind is exempt from culling.
func IsProtectedKind(kind string) bool {
	switch kind {
	case RelationshipSupersedes, RelationshipPartOf, RelationshipActiveDuring:
		return true
	default:
		return false
	}
}

// Relationship is a directed edge between two entities.
type Relationship struct {
	ID          string             `json:"id"`
	Kind        string             `json:"kind"`
	Src         string             `json:"src"`
	Dst         string             `json:"dst"`
	Strength    float64            `json:"strength"` // [0,1]
	Distance    *float64           `json:"distance,omitempty"`
	Category    string             `json:"category,omitempty"`
	Status      RelationshipStatus `json:"status"`
	CatalyzedBy *string            `json:"catalyzedBy,omitempty"`
	CreatedAt   int                `json:"createdAt"`
}

// Clone returns a defensive copy.
func (r *Relationship) Clone() *Relationship {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Distance != nil {
		d := *r.Distance
		cp.Distance = &d
	}
	if r.CatalyzedBy != nil {
		c := *r.CatalyzedBy
		cp.CatalyzedBy = &c
	}
	return &cp
}

// NewID returns a fresh opaque entity/relationship id.
func NewID() string {
	return uuid.NewString()
}
