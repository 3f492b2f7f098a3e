package namegen

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssign_FirstUseReturnsNameUnchanged(t *testing.T) {
	l := NewLogger()
	require.Equal(t, "Eldric", l.Assign("npc", "Eldric"))
}

func TestAssign_CollisionGetsDisambiguatingSuffix(t *testing.T) {
	l := NewLogger()
	require.Equal(t, "Eldric", l.Assign("npc", "Eldric"))
	require.Equal(t, "Eldric (2)", l.Assign("npc", "Eldric"))
	require.Equal(t, "Eldric (3)", l.Assign("npc", "Eldric"))
}

func TestAssign_IsCaseInsensitiveAndScopedByKind(t *testing.T) {
	l := NewLogger()
	require.Equal(t, "Eldric", l.Assign("npc", "Eldric"))
	require.Equal(t, "eldric (2)", l.Assign("npc", "eldric"))
	require.Equal(t, "Eldric", l.Assign("location", "Eldric"))
}

func TestCount_ReflectsAssignments(t *testing.T) {
	l := NewLogger()
	l.Assign("npc", "Eldric")
	l.Assign("npc", "Eldric")
	require.Equal(t, 2, l.Count("npc", "Eldric"))
	require.Equal(t, 0, l.Count("npc", "Other"))
}

func TestLoreRecord_BuildsExportableRecord(t *testing.T) {
	rec := LoreRecord("rec-1", "entity-1", "Eldric")
	require.Equal(t, "rec-1", rec.ID)
	require.Equal(t, "entity-1", rec.TargetID)
	require.Equal(t, "Eldric", rec.Text)
}
