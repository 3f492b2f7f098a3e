package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chris-arsenault/penguin-tales-sub002/pkg/logger"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/rng"
)

func newTestView(seed int64) (*Store, *TemplateView) {
	s := NewStore(logger.New(), 5)
	return s, NewTemplateView(s, rng.New(seed))
}

func TestTemplateView_CreateAndLoadEntity(t *testing.T) {
	_, v := newTestView(1)
	id := v.CreateEntity(EntitySettings{Kind: KindLocation, Name: "Harbor"})

	e := v.LoadEntity(id)
	require.Equal(t, "Harbor", e.Name)
}

func TestTemplateView_SelectTargets_RespectsCount(t *testing.T) {
	s, v := newTestView(2)
	for i := 0; i < 5; i++ {
		s.CreateEntity(EntitySettings{Kind: KindNPC, Name: "npc"})
	}

	got := v.SelectTargets(KindNPC, 3, Bias{})
	require.Len(t, got, 3)
}

func TestTemplateView_SelectTargets_EmptyPool(t *testing.T) {
	_, v := newTestView(3)
	got := v.SelectTargets(KindNPC, 3, Bias{})
	require.Nil(t, got)
}

func TestTemplateView_SelectTargets_ExcludeHonored(t *testing.T) {
	s, v := newTestView(4)
	a := s.CreateEntity(EntitySettings{Kind: KindNPC, Name: "A"})
	b := s.CreateEntity(EntitySettings{Kind: KindNPC, Name: "B"})

	got := v.SelectTargets(KindNPC, 5, Bias{Exclude: map[string]bool{a: true}})
	require.Len(t, got, 1)
	require.Equal(t, b, got[0].ID)
}

func TestTemplateView_SelectTargets_PreferProminenceBiasesWeighting(t *testing.T) {
	s, v := newTestView(5)
	low := s.CreateEntity(EntitySettings{Kind: KindNPC, Name: "Low", Prominence: ProminenceForgotten})
	high := s.CreateEntity(EntitySettings{Kind: KindNPC, Name: "High", Prominence: ProminenceMythic})

	counts := map[string]int{}
	for i := 0; i < 200; i++ {
		_, v := newTestView(int64(i))
		s2 := v.store
		s2.LoadEntity(&Entity{ID: low, Kind: KindNPC, Name: "Low", Prominence: ProminenceForgotten, Tags: map[string]string{}})
		s2.LoadEntity(&Entity{ID: high, Kind: KindNPC, Name: "High", Prominence: ProminenceMythic, Tags: map[string]string{}})
		got := v.SelectTargets(KindNPC, 1, Bias{PreferProminence: true})
		if len(got) == 1 {
			counts[got[0].ID]++
		}
	}

	require.Greater(t, counts[high], counts[low])
}

func TestTemplateView_AddRelationshipCatalyzed_RecordsAttribution(t *testing.T) {
	s, v := newTestView(6)
	a := v.CreateEntity(EntitySettings{Kind: KindNPC, Name: "A"})
	b := v.CreateEntity(EntitySettings{Kind: KindNPC, Name: "B"})

	require.True(t, v.AddRelationshipCatalyzed("influences", a, b, 0.7, a))

	rels := s.GetRelationships()
	require.Len(t, rels, 1)
	require.NotNil(t, rels[0].CatalyzedBy)
	require.Equal(t, a, *rels[0].CatalyzedBy)
}
