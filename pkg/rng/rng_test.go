package rng

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_Deterministic(t *testing.T) {
	a := New(42)
	b := New(42)

	for i := 0; i < 50; i++ {
		require.Equal(t, a.Float64(), b.Float64(), "same seed must produce identical draws")
	}
}

func TestPickRandom_Empty(t *testing.T) {
	s := New(1)
	_, ok := PickRandom(s, []string{})
	require.False(t, ok)
}

func TestPickMultiple_MoreThanAvailable(t *testing.T) {
	s := New(1)
	items := []int{1, 2, 3}
	got := PickMultiple(s, items, 10)
	require.ElementsMatch(t, items, got)
}

func TestPickMultiple_NoDuplicates(t *testing.T) {
	s := New(7)
	items := []int{1, 2, 3, 4, 5, 6, 7, 8}
	got := PickMultiple(s, items, 4)
	require.Len(t, got, 4)

	seen := map[int]bool{}
	for _, v := range got {
		require.False(t, seen[v], "PickMultiple must not repeat an item")
		seen[v] = true
	}
}

func TestWeightedChoice_RespectsWeight(t *testing.T) {
	s := New(9)
	items := []Weighted[string]{
		{Item: "rare", Weight: 1},
		{Item: "common", Weight: 99},
	}

	counts := map[string]int{}
	for i := 0; i < 10000; i++ {
		choice, ok := WeightedChoice(s, items)
		require.True(t, ok)
		counts[choice]++
	}

	require.Greater(t, counts["common"], counts["rare"]*10)
}

func TestWeightedChoice_AllZeroWeight(t *testing.T) {
	s := New(1)
	items := []Weighted[string]{{Item: "a", Weight: 0}, {Item: "b", Weight: 0}}
	_, ok := WeightedChoice(s, items)
	require.False(t, ok)
}

func TestRollProbability_Clamped(t *testing.T) {
	s := New(3)
	for i := 0; i < 100; i++ {
		require.True(t, s.RollProbability(1, 5), "probability above 1 should clamp to always-true")
	}
	for i := 0; i < 100; i++ {
		require.False(t, s.RollProbability(-1, 1), "probability below 0 should clamp to always-false")
	}
}

func TestWeightedSampleWithoutReplacement_Distinct(t *testing.T) {
	s := New(11)
	items := []Weighted[string]{
		{Item: "a", Weight: 5}, {Item: "b", Weight: 3}, {Item: "c", Weight: 2}, {Item: "d", Weight: 1},
	}
	got := WeightedSampleWithoutReplacement(s, items, 3)
	require.Len(t, got, 3)

	seen := map[string]bool{}
	for _, v := range got {
		require.False(t, seen[v])
		seen[v] = true
	}
}
