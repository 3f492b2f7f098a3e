package tags

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecord_AccumulatesUsageAcrossEntities(t *testing.T) {
	r := NewRegistry()
	r.Record(map[string]string{"culture": "northern"})
	r.Record(map[string]string{"culture": "northern"})
	r.Record(map[string]string{"culture": "southern"})

	reports := r.Report()
	require.Len(t, reports, 1)
	require.Equal(t, "culture", reports[0].Key)
	require.Equal(t, 2, reports[0].DistinctValues)
	require.True(t, reports[0].HasConflicts)
	require.Equal(t, "northern", reports[0].TopValue)
	require.Equal(t, 2, reports[0].TopValueCount)
}

func TestRecord_SingleValueKeyHasNoConflict(t *testing.T) {
	r := NewRegistry()
	r.Record(map[string]string{"meta-entity": "true"})
	r.Record(map[string]string{"meta-entity": "true"})

	reports := r.Report()
	require.Len(t, reports, 1)
	require.False(t, reports[0].HasConflicts)
	require.Equal(t, 1.0, reports[0].Saturation)
}

func TestCoverage_FractionOfEntitiesCarryingKey(t *testing.T) {
	r := NewRegistry()
	r.Record(map[string]string{"culture": "northern"})
	r.Record(map[string]string{})

	require.Equal(t, 0.5, r.Coverage("culture"))
	require.Equal(t, 0.0, r.Coverage("unused"))
}

func TestCoverage_EmptyRegistry(t *testing.T) {
	r := NewRegistry()
	require.Equal(t, 0.0, r.Coverage("anything"))
}
