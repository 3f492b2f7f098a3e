package worldtemplates

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chris-arsenault/penguin-tales-sub002/domain/graph"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/namegen"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/templatepacks"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/rng"
)

func testDeps() Deps {
	return Deps{RNG: rng.New(1), Names: namegen.NewLogger(), Culture: "north"}
}

func TestBuildRegistry_SkipsUnrecognizedIDs(t *testing.T) {
	pack := &templatepacks.Pack{
		Templates: []templatepacks.TemplateManifest{
			{ID: IDNPCArrival, Produces: []string{"npc"}},
			{ID: "unknown_template"},
		},
	}

	reg := BuildRegistry(pack, testDeps())
	require.Len(t, reg, 1)
	require.Equal(t, IDNPCArrival, reg[0].ID())
}

func TestBuildRegistry_CompilesAllFiveKnownIDs(t *testing.T) {
	pack := &templatepacks.Pack{
		Templates: []templatepacks.TemplateManifest{
			{ID: IDNPCArrival},
			{ID: IDFactionFormation},
			{ID: IDLocationDiscovery},
			{ID: IDAllianceFormation},
			{ID: IDAbilityManifest},
		},
	}

	reg := BuildRegistry(pack, testDeps())
	require.Len(t, reg, 5)
}

func TestNPCArrival_AlwaysApplies(t *testing.T) {
	store := graph.NewStore(slog.Default(), 10)
	view := graph.NewTemplateView(store, rng.New(1))
	tmpl := newNPCArrival(templatepacks.TemplateManifest{ID: IDNPCArrival}, testDeps())

	require.True(t, tmpl.CanApply(view))
	targets := tmpl.FindTargets(view)
	require.Len(t, targets, 1)

	result, err := tmpl.Expand(view, targets)
	require.NoError(t, err)
	require.Len(t, result.EntitiesCreated, 1)

	entity := store.GetEntity(result.EntitiesCreated[0])
	require.NotNil(t, entity)
	require.Equal(t, graph.KindNPC, entity.Kind)
}

func TestFactionFormation_RequiresMinMembers(t *testing.T) {
	store := graph.NewStore(slog.Default(), 10)
	view := graph.NewTemplateView(store, rng.New(1))
	manifest := templatepacks.TemplateManifest{
		ID: IDFactionFormation,
		Parameters: map[string]templatepacks.ParameterManifest{
			"minMembers": {Value: 2},
		},
	}
	tmpl := newFactionFormation(manifest, testDeps())
	require.False(t, tmpl.CanApply(view))

	store.CreateEntity(graph.EntitySettings{Kind: graph.KindNPC, Name: "A"})
	store.CreateEntity(graph.EntitySettings{Kind: graph.KindNPC, Name: "B"})
	require.True(t, tmpl.CanApply(view))

	targets := tmpl.FindTargets(view)
	require.Len(t, targets, 2)

	result, err := tmpl.Expand(view, targets)
	require.NoError(t, err)
	require.Len(t, result.EntitiesCreated, 1)
	require.Equal(t, 2, result.RelationshipsCreated)
}

func TestLocationDiscovery_LinksActiveEra(t *testing.T) {
	store := graph.NewStore(slog.Default(), 10)
	eraID := store.CreateEntity(graph.EntitySettings{Kind: graph.KindEra, Name: "First Era", Status: graph.StatusCurrent})
	store.SetCurrentEra(eraID)
	view := graph.NewTemplateView(store, rng.New(1))
	tmpl := newLocationDiscovery(templatepacks.TemplateManifest{ID: IDLocationDiscovery}, testDeps())

	targets := tmpl.FindTargets(view)
	result, err := tmpl.Expand(view, targets)
	require.NoError(t, err)
	require.Equal(t, 1, result.RelationshipsCreated)
}

func TestAllianceFormation_RequiresTwoUnalliedFactions(t *testing.T) {
	store := graph.NewStore(slog.Default(), 10)
	view := graph.NewTemplateView(store, rng.New(1))
	tmpl := newAllianceFormation(templatepacks.TemplateManifest{ID: IDAllianceFormation}, testDeps())
	require.False(t, tmpl.CanApply(view))

	store.CreateEntity(graph.EntitySettings{Kind: graph.KindFaction, Name: "A"})
	store.CreateEntity(graph.EntitySettings{Kind: graph.KindFaction, Name: "B"})
	require.True(t, tmpl.CanApply(view))

	targets := tmpl.FindTargets(view)
	require.Len(t, targets, 1)

	result, err := tmpl.Expand(view, targets)
	require.NoError(t, err)
	require.Equal(t, 1, result.RelationshipsCreated)

	require.False(t, tmpl.CanApply(view))
}

func TestAbilityManifestation_RequiresPopulation(t *testing.T) {
	store := graph.NewStore(slog.Default(), 10)
	view := graph.NewTemplateView(store, rng.New(1))
	manifest := templatepacks.TemplateManifest{
		ID: IDAbilityManifest,
		Parameters: map[string]templatepacks.ParameterManifest{
			"minPopulation": {Value: 1},
		},
	}
	tmpl := newAbilityManifestation(manifest, testDeps())
	require.False(t, tmpl.CanApply(view))

	store.CreateEntity(graph.EntitySettings{Kind: graph.KindNPC, Name: "Bearer"})
	require.True(t, tmpl.CanApply(view))

	targets := tmpl.FindTargets(view)
	require.Len(t, targets, 1)

	result, err := tmpl.Expand(view, targets)
	require.NoError(t, err)
	require.Len(t, result.EntitiesCreated, 1)
	require.Equal(t, 1, result.RelationshipsCreated)
}
