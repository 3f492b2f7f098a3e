package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chris-arsenault/penguin-tales-sub002/pkg/logger"
)

func newTestStore() *Store {
	return NewStore(logger.New(), 5)
}

func TestCreateEntity_AssignsID(t *testing.T) {
	s := newTestStore()
	id := s.CreateEntity(EntitySettings{Kind: KindNPC, Name: "Ashen"})
	require.NotEmpty(t, id)
	require.True(t, s.HasEntity(id))

	e := s.GetEntity(id)
	require.Equal(t, "Ashen", e.Name)
	require.Equal(t, KindNPC, e.Kind)
	require.Equal(t, 0, e.CreatedAt)
}

func TestGetEntity_ReturnsDefensiveCopy(t *testing.T) {
	s := newTestStore()
	id := s.CreateEntity(EntitySettings{Kind: KindNPC, Name: "Ashen", Tags: map[string]string{"role": "scout"}})

	e := s.GetEntity(id)
	e.Name = "Corrupted"
	e.Tags["role"] = "corrupted"

	fresh := s.GetEntity(id)
	require.Equal(t, "Ashen", fresh.Name)
	require.Equal(t, "scout", fresh.Tags["role"])
}

func TestUpdateEntity_ProminenceClampsOneStep(t *testing.T) {
	s := newTestStore()
	id := s.CreateEntity(EntitySettings{Kind: KindNPC, Name: "Ashen", Prominence: ProminenceForgotten})

	target := ProminenceMythic
	s.UpdateEntity(id, EntityPatch{Prominence: &target})

	e := s.GetEntity(id)
	require.Equal(t, ProminenceMarginal, e.Prominence, "prominence must move at most one step per mutation")
}

func TestUpdateEntity_StatusIsMonotone(t *testing.T) {
	s := newTestStore()
	id := s.CreateEntity(EntitySettings{Kind: KindNPC, Name: "Ashen", Status: StatusHistorical})

	active := StatusActive
	s.UpdateEntity(id, EntityPatch{Status: &active})

	e := s.GetEntity(id)
	require.Equal(t, StatusHistorical, e.Status, "historical entities must never return to active")
}

func TestAddRelationship_RejectsMissingEndpoint(t *testing.T) {
	s := newTestStore()
	a := s.CreateEntity(EntitySettings{Kind: KindNPC, Name: "A"})

	ok := s.AddRelationship("ally", a, "does-not-exist", 0.5, nil, "")
	require.False(t, ok)
	require.Empty(t, s.GetRelationships())
}

func TestAddRelationship_RejectsDuplicate(t *testing.T) {
	s := newTestStore()
	a := s.CreateEntity(EntitySettings{Kind: KindNPC, Name: "A"})
	b := s.CreateEntity(EntitySettings{Kind: KindNPC, Name: "B"})

	require.True(t, s.AddRelationship("ally", a, b, 0.5, nil, ""))
	require.False(t, s.AddRelationship("ally", a, b, 0.9, nil, ""), "duplicate (kind,src,dst) must be rejected")
	require.Len(t, s.GetRelationships(), 1)
}

func TestAddRelationship_MirrorsLink(t *testing.T) {
	s := newTestStore()
	a := s.CreateEntity(EntitySettings{Kind: KindNPC, Name: "A"})
	b := s.CreateEntity(EntitySettings{Kind: KindNPC, Name: "B"})

	s.AddRelationship("ally", a, b, 0.5, nil, "")

	src := s.GetEntity(a)
	require.Len(t, src.Links, 1)
	require.Equal(t, Link{Kind: "ally", Dst: b}, src.Links[0])
}

func TestRemoveRelationship_UnmirrorsLink(t *testing.T) {
	s := newTestStore()
	a := s.CreateEntity(EntitySettings{Kind: KindNPC, Name: "A"})
	b := s.CreateEntity(EntitySettings{Kind: KindNPC, Name: "B"})
	s.AddRelationship("ally", a, b, 0.5, nil, "")

	require.True(t, s.RemoveRelationship(a, b, "ally"))
	require.Empty(t, s.GetEntity(a).Links)
	require.Empty(t, s.GetRelationships())
}

func TestRemoveRelationship_RefusesProtectedKind(t *testing.T) {
	s := newTestStore()
	a := s.CreateEntity(EntitySettings{Kind: KindEra, Name: "A"})
	b := s.CreateEntity(EntitySettings{Kind: KindEra, Name: "B"})
	s.AddRelationship(RelationshipSupersedes, a, b, 1.0, nil, "")

	require.False(t, s.RemoveRelationship(a, b, RelationshipSupersedes))
	require.Len(t, s.GetRelationships(), 1)
}

func TestArchiveEntity_ArchivesActiveRelationships(t *testing.T) {
	s := newTestStore()
	a := s.CreateEntity(EntitySettings{Kind: KindNPC, Name: "A"})
	b := s.CreateEntity(EntitySettings{Kind: KindNPC, Name: "B"})
	s.AddRelationship("ally", a, b, 0.5, nil, "")

	require.True(t, s.ArchiveEntity(a, ArchiveOptions{Reason: "died"}))

	require.Equal(t, StatusHistorical, s.GetEntity(a).Status)
	rels := s.GetRelationships()
	require.Len(t, rels, 1)
	require.Equal(t, RelationshipHistorical, rels[0].Status)
}

func TestSupersede_TransfersRelationshipsAndLinksLineage(t *testing.T) {
	s := newTestStore()
	oldEra := s.CreateEntity(EntitySettings{Kind: KindEra, Name: "Old Era"})
	newEra := s.CreateEntity(EntitySettings{Kind: KindEra, Name: "New Era"})
	npc := s.CreateEntity(EntitySettings{Kind: KindNPC, Name: "NPC"})
	s.AddRelationship("member_of", npc, oldEra, 0.8, nil, "")

	require.True(t, s.Supersede(oldEra, newEra))

	require.Equal(t, StatusHistorical, s.GetEntity(oldEra).Status)
	require.True(t, s.HasRelationship(newEra, oldEra, RelationshipSupersedes))
	require.True(t, s.HasRelationship(npc, newEra, "member_of"))
}

func TestFindEntities_ConjunctiveFilterAndOrder(t *testing.T) {
	s := newTestStore()
	first := s.CreateEntity(EntitySettings{Kind: KindNPC, Name: "First", Culture: "north"})
	s.CreateEntity(EntitySettings{Kind: KindFaction, Name: "Faction", Culture: "north"})
	second := s.CreateEntity(EntitySettings{Kind: KindNPC, Name: "Second", Culture: "north"})
	s.CreateEntity(EntitySettings{Kind: KindNPC, Name: "Other culture", Culture: "south"})

	kind := KindNPC
	culture := "north"
	got := s.FindEntities(Criteria{Kind: &kind, Culture: &culture})

	require.Len(t, got, 2)
	require.Equal(t, first, got[0].ID)
	require.Equal(t, second, got[1].ID)
}

func TestCheckInvariants_CleanStoreHasNoProblems(t *testing.T) {
	s := newTestStore()
	a := s.CreateEntity(EntitySettings{Kind: KindNPC, Name: "A"})
	b := s.CreateEntity(EntitySettings{Kind: KindNPC, Name: "B"})
	s.AddRelationship("ally", a, b, 0.5, nil, "")

	require.Empty(t, s.CheckInvariants())
}

func TestCheckInvariants_FlagsMultipleCurrentEras(t *testing.T) {
	s := newTestStore()
	s.CreateEntity(EntitySettings{Kind: KindEra, Name: "Era1", Status: StatusCurrent})
	s.CreateEntity(EntitySettings{Kind: KindEra, Name: "Era2", Status: StatusCurrent})

	problems := s.CheckInvariants()
	require.NotEmpty(t, problems)
}

func TestAdvanceTick_RecordsGrowthSample(t *testing.T) {
	s := newTestStore()
	a := s.CreateEntity(EntitySettings{Kind: KindNPC, Name: "A"})
	b := s.CreateEntity(EntitySettings{Kind: KindNPC, Name: "B"})
	s.AddRelationship("ally", a, b, 0.5, nil, "")

	require.Equal(t, 1, s.RelationshipsSinceLastTick())
	s.AdvanceTick()
	require.Equal(t, 1, s.Tick())
	require.Equal(t, 0, s.RelationshipsSinceLastTick())
	require.Equal(t, []int{1}, s.GrowthMetrics().Samples())
}
