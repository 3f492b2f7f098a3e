package export

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chris-arsenault/penguin-tales-sub002/domain/graph"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/statistics"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/logger"
)

func newTestStore(t *testing.T) *graph.Store {
	t.Helper()
	return graph.NewStore(logger.New(), 5)
}

func TestBuild_PopulatesEveryTopLevelField(t *testing.T) {
	store := newTestStore(t)
	a := store.CreateEntity(graph.EntitySettings{Kind: graph.KindNPC, Name: "Ashen"})
	b := store.CreateEntity(graph.EntitySettings{Kind: graph.KindFaction, Name: "Ember Court"})
	store.AddRelationship("member_of", a, b, 0.5, nil, "social")
	store.SetCurrentEra("era-1")
	store.SetPressure("scarcity", 0.25)
	store.AddHistoryEvent(graph.EventDiscovery, "something happened")

	ledger := NewLoreLedger()
	ledger.Append(LoreRecord{ID: "lore-1", Type: LoreDescription, TargetID: a, Text: "Ashen wanders the borderlands."})

	stats := statistics.Collect(store, store.Epoch(), 10)
	state := Build(store, stats, ledger)

	require.Len(t, state.Entities, 2)
	require.Len(t, state.Relationships, 1)
	require.Len(t, state.History, 1)
	require.Equal(t, 0.25, state.Pressures["scarcity"])
	require.Equal(t, "era-1", state.CurrentEraID)
	require.Equal(t, store.Tick(), state.Tick)
	require.Equal(t, store.Epoch(), state.Epoch)
	require.Len(t, state.LoreRecords, 1)
	require.Equal(t, "lore-1", state.LoreRecords[0].ID)
}

func TestBuild_NilLedgerYieldsEmptySlice(t *testing.T) {
	store := newTestStore(t)
	stats := statistics.Collect(store, 0, 0)
	state := Build(store, stats, nil)
	require.NotNil(t, state.LoreRecords)
	require.Empty(t, state.LoreRecords)
}

func TestMarshal_ProducesExpectedTopLevelKeys(t *testing.T) {
	store := newTestStore(t)
	store.CreateEntity(graph.EntitySettings{Kind: graph.KindLocation, Name: "Thornwatch"})
	stats := statistics.Collect(store, 0, 0)
	state := Build(store, stats, nil)

	data, err := Marshal(state)
	require.NoError(t, err)

	var generic map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &generic))
	for _, key := range []string{
		"entities", "relationships", "history", "pressures",
		"currentEraId", "tick", "epoch", "statistics", "loreRecords",
	} {
		require.Containsf(t, generic, key, "expected top-level key %q", key)
	}
}

func TestMarshal_IsDeterministicAcrossIdenticalState(t *testing.T) {
	store := newTestStore(t)
	store.CreateEntity(graph.EntitySettings{Kind: graph.KindNPC, Name: "Ashen", Tags: map[string]string{"b": "2", "a": "1"}})
	stats := statistics.Collect(store, 0, 0)
	state := Build(store, stats, nil)

	first, err := Marshal(state)
	require.NoError(t, err)
	second, err := Marshal(state)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestProminence_MarshalsAsLowercaseName(t *testing.T) {
	store := newTestStore(t)
	store.CreateEntity(graph.EntitySettings{Kind: graph.KindNPC, Name: "Ashen", Prominence: graph.ProminenceRenowned})
	stats := statistics.Collect(store, 0, 0)
	state := Build(store, stats, nil)

	data, err := Marshal(state)
	require.NoError(t, err)
	require.Contains(t, string(data), `"prominence": "renowned"`)
}

func TestLoreLedger_AllReturnsDefensiveCopy(t *testing.T) {
	ledger := NewLoreLedger()
	ledger.Append(LoreRecord{ID: "1", Type: LoreName, Text: "x"})

	records := ledger.All()
	records[0].ID = "mutated"

	require.Equal(t, "1", ledger.All()[0].ID)
}
