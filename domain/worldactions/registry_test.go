package worldactions

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chris-arsenault/penguin-tales-sub002/domain/graph"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/rng"
)

func TestBuildRegistry_WiresAllFourActionsWithoutDuplicatePanic(t *testing.T) {
	require.NotPanics(t, func() {
		BuildRegistry()
	})
}

func TestHandleFormAlliance_ReturnsAllianceRelationshipWithoutApplyingIt(t *testing.T) {
	store := graph.NewStore(slog.Default(), 10)
	view := graph.NewTemplateView(store, rng.New(1))
	agentID := store.CreateEntity(graph.EntitySettings{Kind: graph.KindFaction, Status: graph.StatusActive})
	targetID := store.CreateEntity(graph.EntitySettings{Kind: graph.KindFaction, Status: graph.StatusActive})

	result := handleFormAlliance(view, agentID)
	require.True(t, result.Success)
	require.Len(t, result.Relationships, 1)
	require.Equal(t, "allied_with", result.Relationships[0].Kind)
	require.Equal(t, agentID, result.Relationships[0].Src)
	require.Equal(t, targetID, result.Relationships[0].Dst)

	// The handler must not have created the relationship itself — only
	// catalyst.Engine.Run applies ActionResult.Relationships.
	require.False(t, view.HasRelationship(agentID, targetID, "allied_with"))
}

func TestHandleFormAlliance_SkipsWhenAlreadyAllied(t *testing.T) {
	store := graph.NewStore(slog.Default(), 10)
	view := graph.NewTemplateView(store, rng.New(1))
	agentID := store.CreateEntity(graph.EntitySettings{Kind: graph.KindFaction, Status: graph.StatusActive})
	targetID := store.CreateEntity(graph.EntitySettings{Kind: graph.KindFaction, Status: graph.StatusActive})
	store.AddRelationship("allied_with", agentID, targetID, 0.6, nil, "")

	result := handleFormAlliance(view, agentID)
	require.False(t, result.Success)
}

func TestHandleInciteConflict_ReturnsRivalryRelationship(t *testing.T) {
	store := graph.NewStore(slog.Default(), 10)
	view := graph.NewTemplateView(store, rng.New(1))
	agentID := store.CreateEntity(graph.EntitySettings{Kind: graph.KindFaction, Status: graph.StatusActive})
	targetID := store.CreateEntity(graph.EntitySettings{Kind: graph.KindFaction, Status: graph.StatusActive})

	result := handleInciteConflict(view, agentID)
	require.True(t, result.Success)
	require.Equal(t, "rival_of", result.Relationships[0].Kind)
	require.Equal(t, targetID, result.Relationships[0].Dst)
}

func TestHandleExpandInfluence_ReturnsInfluenceRelationship(t *testing.T) {
	store := graph.NewStore(slog.Default(), 10)
	view := graph.NewTemplateView(store, rng.New(1))
	agentID := store.CreateEntity(graph.EntitySettings{Kind: graph.KindFaction, Status: graph.StatusActive})
	locationID := store.CreateEntity(graph.EntitySettings{Kind: graph.KindLocation, Status: graph.StatusActive})

	result := handleExpandInfluence(view, agentID)
	require.True(t, result.Success)
	require.Equal(t, "influences", result.Relationships[0].Kind)
	require.Equal(t, locationID, result.Relationships[0].Dst)
}

func TestHandleSpreadRumor_ReturnsRumorRelationshipFromTargetToAgent(t *testing.T) {
	store := graph.NewStore(slog.Default(), 10)
	view := graph.NewTemplateView(store, rng.New(1))
	agentID := store.CreateEntity(graph.EntitySettings{Kind: graph.KindNPC, Status: graph.StatusActive})
	otherID := store.CreateEntity(graph.EntitySettings{Kind: graph.KindNPC, Status: graph.StatusActive})

	result := handleSpreadRumor(view, agentID)
	require.True(t, result.Success)
	require.Equal(t, "heard_rumor_from", result.Relationships[0].Kind)
	require.Equal(t, otherID, result.Relationships[0].Src)
	require.Equal(t, agentID, result.Relationships[0].Dst)
}

func TestHandleFormAlliance_FailsWithNoCandidateFaction(t *testing.T) {
	store := graph.NewStore(slog.Default(), 10)
	view := graph.NewTemplateView(store, rng.New(1))
	agentID := store.CreateEntity(graph.EntitySettings{Kind: graph.KindFaction, Status: graph.StatusActive})

	result := handleFormAlliance(view, agentID)
	require.False(t, result.Success)
}
