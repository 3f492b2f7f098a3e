// Package export assembles the spec.md §6 "Exported state" JSON shape
// from a live graph.Store plus the current epoch's statistics: the
// engine's one mandated output format, written to output/ by the CLI
// (§6, §13 — no persistence format beyond JSON is required; the optional
// Postgres snapshot store in pkg/snapshotstore persists the same shape
// this package produces).
package export

import (
	"encoding/json"
	"sync"

	"github.com/chris-arsenault/penguin-tales-sub002/domain/graph"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/statistics"
)

// LoreRecordType is the fixed set of lore record kinds spec.md §6 names.
type LoreRecordType string

const (
	LoreName                  LoreRecordType = "name"
	LoreDescription           LoreRecordType = "description"
	LoreEraNarrative          LoreRecordType = "era_narrative"
	LoreRelationshipBackstory LoreRecordType = "relationship_backstory"
	LoreTechMagic             LoreRecordType = "tech_magic"
	LoreDiscoveryEvent        LoreRecordType = "discovery_event"
	LoreChainLink             LoreRecordType = "chain_link"
	LoreEntityChange          LoreRecordType = "entity_change"
)

// LoreRecord is one piece of generated lore folded into the export, per
// spec.md §6: `{id, type, targetId?, relationship?, text, warnings?,
// cached?, metadata?}`.
type LoreRecord struct {
	ID           string            `json:"id"`
	Type         LoreRecordType    `json:"type"`
	TargetID     string            `json:"targetId,omitempty"`
	Relationship string            `json:"relationship,omitempty"`
	Text         string            `json:"text"`
	Warnings     []string          `json:"warnings,omitempty"`
	Cached       bool              `json:"cached,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// LoreLedger is the append-only accumulator of LoreRecords produced over a
// run, mirroring the append-only discipline spec.md §4.12 requires of the
// tags registry and statistics accumulators. domain/llmworker.Dispatcher
// appends to it as enrichment results land; Build reads it back.
type LoreLedger struct {
	mu      sync.Mutex
	records []LoreRecord
}

// NewLoreLedger returns an empty ledger.
func NewLoreLedger() *LoreLedger {
	return &LoreLedger{}
}

// Append records one lore entry.
func (l *LoreLedger) Append(r LoreRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, r)
}

// All returns a defensive copy of every recorded entry, in append order.
func (l *LoreLedger) All() []LoreRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LoreRecord, len(l.records))
	copy(out, l.records)
	return out
}

// State is the exported-state JSON shape spec.md §6 defines.
type State struct {
	Entities      []*graph.Entity       `json:"entities"`
	Relationships []*graph.Relationship `json:"relationships"`
	History       []graph.Event         `json:"history"`
	Pressures     map[string]float64    `json:"pressures"`
	CurrentEraID  string                `json:"currentEraId"`
	Tick          int                   `json:"tick"`
	Epoch         int                   `json:"epoch"`
	Statistics    statistics.EpochStats `json:"statistics"`
	LoreRecords   []LoreRecord          `json:"loreRecords"`
}

// Build reads the store and the current epoch's statistics into a State.
// store.AllEntities/GetRelationships/History all iterate in insertion
// order, and json.Marshal sorts map keys, so Build(store, stats, lore) is
// byte-identical across two runs with identical config and RNG seed
// (spec.md §8, "Determinism"), provided stats and lore were themselves
// produced deterministically.
func Build(store *graph.Store, stats statistics.EpochStats, lore *LoreLedger) State {
	var records []LoreRecord
	if lore != nil {
		records = lore.All()
	}
	if records == nil {
		records = []LoreRecord{}
	}

	return State{
		Entities:      store.AllEntities(),
		Relationships: store.GetRelationships(),
		History:       store.History().All(),
		Pressures:     store.Pressures(),
		CurrentEraID:  store.CurrentEra(),
		Tick:          store.Tick(),
		Epoch:         store.Epoch(),
		Statistics:    stats,
		LoreRecords:   records,
	}
}

// Marshal renders a State as indented JSON, the CLI's `output/world.json`
// format (spec.md §6, "CLI... writes outputs to output/").
func Marshal(s State) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
