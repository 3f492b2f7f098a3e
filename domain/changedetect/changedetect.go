// Package changedetect builds per-entity snapshots at tick end and diffs
// them against the previous snapshot to decide what qualifies for
// enrichment (spec.md §4.10).
package changedetect

import (
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/chris-arsenault/penguin-tales-sub002/domain/graph"
)

// KindFields holds the kind-specialized fields spec §4.10 names.
type KindFields struct {
	ResidentCount   int      // locations
	ControllerID    string   // locations
	LeaderID        string   // factions
	TerritoryCount  int      // factions
	AllyIDs         []string // factions
	EnemyIDs        []string // factions
	EnforcerIDs     []string // rules
	PractitionerCount int    // abilities
	LocationIDs     []string // abilities
	LeadershipIDs   []string // npcs
}

// Snapshot is the per-entity capture spec §4.10 describes.
type Snapshot struct {
	EntityID         string
	Status           graph.Status
	Prominence       graph.Prominence
	RelationshipHash string
	Fields           KindFields
}

// Detector holds the previous tick's snapshots and produces human-readable
// change strings when thresholds are crossed.
type Detector struct {
	previous map[string]Snapshot
	gate     graph.Prominence
}

// NewDetector builds a Detector. prominenceGate is the minimum prominence a
// non-changed entity must have to still enqueue (spec §4.10: "only entities
// above a prominence gate or with qualifying changes enqueue").
func NewDetector(prominenceGate graph.Prominence) *Detector {
	return &Detector{previous: make(map[string]Snapshot), gate: prominenceGate}
}

// Build captures the current snapshot for one entity given its store-level
// context. The caller supplies kind-specialized fields since computing them
// requires the full relationship index the detector itself doesn't hold.
func Build(e *graph.Entity, relKeys []string, fields KindFields) Snapshot {
	sorted := append([]string(nil), relKeys...)
	sort.Strings(sorted)

	h := blake2b.Sum256([]byte(fmt.Sprintf("%v", sorted)))
	return Snapshot{
		EntityID:         e.ID,
		Status:           e.Status,
		Prominence:       e.Prominence,
		RelationshipHash: fmt.Sprintf("%x", h[:8]),
		Fields:           fields,
	}
}

// Diff compares a fresh snapshot against the detector's memory of the
// entity's prior snapshot and returns human-readable change strings plus
// whether the entity qualifies for enrichment.
func (d *Detector) Diff(next Snapshot) (changes []string, qualifies bool) {
	prev, seen := d.previous[next.EntityID]
	d.previous[next.EntityID] = next

	if !seen {
		return []string{"entity created"}, true
	}

	if prev.Status != next.Status {
		changes = append(changes, fmt.Sprintf("status changed from %s to %s", prev.Status, next.Status))
	}
	if prev.Prominence != next.Prominence {
		changes = append(changes, fmt.Sprintf("prominence changed from %s to %s", prev.Prominence, next.Prominence))
	}
	if prev.RelationshipHash != next.RelationshipHash {
		changes = append(changes, "relationships changed")
	}
	if abs(prev.Fields.ResidentCount-next.Fields.ResidentCount) >= 3 {
		changes = append(changes, fmt.Sprintf("resident count shifted by %d", next.Fields.ResidentCount-prev.Fields.ResidentCount))
	}
	if prev.Fields.ControllerID != next.Fields.ControllerID {
		changes = append(changes, fmt.Sprintf("controller changed from %s to %s", prev.Fields.ControllerID, next.Fields.ControllerID))
	}
	if prev.Fields.LeaderID != next.Fields.LeaderID {
		changes = append(changes, fmt.Sprintf("leader changed from %s to %s", prev.Fields.LeaderID, next.Fields.LeaderID))
	}

	qualifies = len(changes) > 0 || next.Prominence >= d.gate
	return changes, qualifies
}

// Forget drops an entity's stored snapshot (e.g. on hard delete).
func (d *Detector) Forget(id string) {
	delete(d.previous, id)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
