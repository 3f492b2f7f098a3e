package statistics

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	domcfg "github.com/chris-arsenault/penguin-tales-sub002/domain/config"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/graph"
)

func newTestStore() *graph.Store {
	return graph.NewStore(slog.Default(), 10)
}

func TestCollect_CountsEntitiesAndRelationships(t *testing.T) {
	store := newTestStore()
	a := store.CreateEntity(graph.EntitySettings{Kind: "character", Subtype: "hero"})
	b := store.CreateEntity(graph.EntitySettings{Kind: "character", Subtype: "villain"})
	store.AddRelationship("rival", a, b, 0.5, nil, "")

	stats := Collect(store, 1, 100)
	require.Equal(t, 2, stats.EntitiesByKind["character"])
	require.Equal(t, 1, stats.RelationshipsByKind["rival"])
	require.Equal(t, 1, stats.RelationshipsByKind["rival"])
}

func TestDistribution_EmptyStoreReturnsZeroReport(t *testing.T) {
	store := newTestStore()
	report := Distribution(store, nil)
	require.Empty(t, report.KindRatios)
	require.Zero(t, report.Deviation)
}

func TestDistribution_ComputesDeviationFromTargets(t *testing.T) {
	store := newTestStore()
	store.CreateEntity(graph.EntitySettings{Kind: "character"})
	store.CreateEntity(graph.EntitySettings{Kind: "character"})
	store.CreateEntity(graph.EntitySettings{Kind: "location"})

	targets := &domcfg.DistributionTargets{
		KindRatios: map[string]float64{"character": 0.5, "location": 0.5},
	}
	report := Distribution(store, targets)
	require.InDelta(t, 2.0/3, report.KindRatios["character"], 0.001)
	require.Greater(t, report.Deviation, 0.0)
}

func TestShannonDiversity_UniformIsOne(t *testing.T) {
	d := ShannonDiversity(map[string]int{"a": 10, "b": 10, "c": 10})
	require.InDelta(t, 1.0, d, 0.001)
}

func TestShannonDiversity_SingleKindIsZero(t *testing.T) {
	d := ShannonDiversity(map[string]int{"a": 10})
	require.Zero(t, d)
}

func TestShannonDiversity_SkewedIsBetweenZeroAndOne(t *testing.T) {
	d := ShannonDiversity(map[string]int{"a": 90, "b": 10})
	require.Greater(t, d, 0.0)
	require.Less(t, d, 1.0)
}

func TestConnectivity_DetectsIsolatedAndConnectedEntities(t *testing.T) {
	store := newTestStore()
	a := store.CreateEntity(graph.EntitySettings{Kind: "character"})
	b := store.CreateEntity(graph.EntitySettings{Kind: "character"})
	store.CreateEntity(graph.EntitySettings{Kind: "character"}) // isolated
	store.AddRelationship("ally", a, b, 0.5, nil, "")

	report := Connectivity(store)
	require.Equal(t, 2, report.ConnectedComponents)
	require.InDelta(t, 1.0/3, report.IsolatedNodeRatio, 0.001)
}

func TestConnectivity_EmptyStore(t *testing.T) {
	store := newTestStore()
	report := Connectivity(store)
	require.Zero(t, report.ConnectedComponents)
}

func TestFitness_PerfectDistributionAndConnectivityScoresHigh(t *testing.T) {
	dist := DistributionReport{Deviation: 0}
	conn := ConnectivityReport{IsolatedNodeRatio: 0}
	report := Fitness(dist, 1.0, conn, 0, []int{5, 5, 5, 5}, DefaultFitnessWeights)
	require.Greater(t, report.Composite, 0.8)
	require.Equal(t, 0, report.ConstraintViolations)
}

func TestFitness_PoorDistributionAndIsolationScoresLow(t *testing.T) {
	dist := DistributionReport{Deviation: 1.0}
	conn := ConnectivityReport{IsolatedNodeRatio: 1.0}
	report := Fitness(dist, 0.0, conn, 5, []int{1, 2, 3}, DefaultFitnessWeights)
	require.Less(t, report.Composite, 0.3)
	require.Equal(t, 5, report.ConstraintViolations)
}

func TestStability_SingleSampleIsStable(t *testing.T) {
	require.Equal(t, 1.0, stability([]int{3}))
}

func TestStability_HighVarianceScoresLower(t *testing.T) {
	steady := stability([]int{5, 5, 5, 5})
	volatile := stability([]int{1, 50, 2, 60})
	require.Greater(t, steady, volatile)
}
