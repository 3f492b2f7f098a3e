package snapshotstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/chris-arsenault/penguin-tales-sub002/domain/export"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/graph"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/statistics"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/logger"
)

type recordingLifecycle struct {
	hooks []fx.Hook
}

func (r *recordingLifecycle) Append(h fx.Hook) { r.hooks = append(r.hooks, h) }

func disabledStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(nil, logger.New())
}

func TestNewStore_DisabledWithoutDB(t *testing.T) {
	s := disabledStore(t)
	require.False(t, s.Enabled())
}

func TestStartRun_FailsWhenDisabled(t *testing.T) {
	s := disabledStore(t)
	_, err := s.StartRun(context.Background(), "hash", 1)
	require.ErrorIs(t, err, ErrDisabled)
}

func TestCompleteRun_FailsWhenDisabled(t *testing.T) {
	s := disabledStore(t)
	require.ErrorIs(t, s.CompleteRun(context.Background(), "run-1"), ErrDisabled)
}

func TestSaveSnapshot_FailsWhenDisabled(t *testing.T) {
	s := disabledStore(t)
	err := s.SaveSnapshot(context.Background(), "run-1", export.State{})
	require.ErrorIs(t, err, ErrDisabled)
}

func TestLatestState_FailsWhenDisabled(t *testing.T) {
	s := disabledStore(t)
	_, err := s.LatestState(context.Background(), "run-1")
	require.ErrorIs(t, err, ErrDisabled)
}

func TestMigrator_UpIsNoOpWhenDisabled(t *testing.T) {
	m := NewMigrator(nil, logger.New())
	require.NoError(t, m.Up(context.Background()))
}

func TestRunMigrations_RegistersStartHook(t *testing.T) {
	m := NewMigrator(nil, logger.New())
	lc := &recordingLifecycle{}
	runMigrations(lc, m)

	require.Len(t, lc.hooks, 1)
	require.NoError(t, lc.hooks[0].OnStart(context.Background()))
}

func TestDecodeState_RoundTripsThroughExportMarshal(t *testing.T) {
	store := graph.NewStore(logger.New(), 5)
	store.CreateEntity(graph.EntitySettings{Kind: graph.KindNPC, Name: "Ashen", Prominence: graph.ProminenceRenowned})
	stats := statistics.Collect(store, 0, 0)
	state := export.Build(store, stats, nil)

	data, err := export.Marshal(state)
	require.NoError(t, err)

	snap := Snapshot{ID: "snap-1", RunID: "run-1", Tick: state.Tick, Epoch: state.Epoch, State: data}
	decoded, err := decodeState(snap)
	require.NoError(t, err)

	require.Len(t, decoded.Entities, 1)
	require.Equal(t, "Ashen", decoded.Entities[0].Name)
	require.Equal(t, graph.ProminenceRenowned, decoded.Entities[0].Prominence)
}
