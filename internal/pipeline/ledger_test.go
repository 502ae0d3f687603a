package pipeline

import (
	"testing"

	"github.com/MeKo-Tech/worldforge/internal/types"
	"github.com/stretchr/testify/require"
)

func TestLoadLedgerMissingFileReturnsAllIncomplete(t *testing.T) {
	planetDir := t.TempDir()
	st, err := LoadLedger(planetDir)
	require.NoError(t, err)
	for _, s := range types.StageOrder {
		require.False(t, st.Stages[s].Completed)
	}
}

func TestSaveLoadSaveIsAFixedPoint(t *testing.T) {
	planetDir := t.TempDir()
	st := types.NewPipelineStatus()
	entry := st.Stages[types.StageLandmask]
	entry.Completed = true
	entry.CompletedAtMs = 1234
	st.Stages[types.StageLandmask] = entry

	require.NoError(t, SaveLedger(planetDir, st))
	reloaded, err := LoadLedger(planetDir)
	require.NoError(t, err)
	require.Equal(t, st, reloaded)

	require.NoError(t, SaveLedger(planetDir, reloaded))
	reloadedAgain, err := LoadLedger(planetDir)
	require.NoError(t, err)
	require.Equal(t, reloaded, reloadedAgain)
}

func TestMarkCompletedIsMonotonic(t *testing.T) {
	planetDir := t.TempDir()
	require.NoError(t, MarkCompleted(planetDir, types.StageNormalize))
	st, err := LoadLedger(planetDir)
	require.NoError(t, err)
	require.True(t, st.Stages[types.StageNormalize].Completed)
	firstTimestamp := st.Stages[types.StageNormalize].CompletedAtMs

	require.NoError(t, MarkCompleted(planetDir, types.StageLandmask))
	st2, err := LoadLedger(planetDir)
	require.NoError(t, err)
	require.True(t, st2.Stages[types.StageNormalize].Completed, "marking a later stage must not un-complete an earlier one")
	require.Equal(t, firstTimestamp, st2.Stages[types.StageNormalize].CompletedAtMs)
	require.True(t, st2.Stages[types.StageLandmask].Completed)
}

func TestClearLedgerOnMissingFileIsNotAnError(t *testing.T) {
	planetDir := t.TempDir()
	require.NoError(t, ClearLedger(planetDir))
}
