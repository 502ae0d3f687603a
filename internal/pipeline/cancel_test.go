package pipeline

import (
	"testing"

	"github.com/MeKo-Tech/worldforge/internal/stage"
	"github.com/MeKo-Tech/worldforge/internal/types"
	"github.com/stretchr/testify/require"
)

// TestRunStageCancelledMidPartitionLeavesLedgerIncomplete exercises the
// cancel-mid-stage path (spec §8 scenario 6): a progress callback that
// raises CancelSignal partway through partition's Dijkstra growth must stop
// the stage immediately and leave partition.completed = false, rather than
// letting the stage run to completion.
func TestRunStageCancelledMidPartitionLeavesLedgerIncomplete(t *testing.T) {
	planetDir := t.TempDir()
	writeSyntheticBase(t, planetDir, 64, 64, 4)

	o := NewOrchestrator(nil)
	cfg := stage.DefaultConfig()
	cfg.TargetCount = 8
	for _, s := range types.StageOrder {
		if s == types.StagePartition {
			break
		}
		require.NoError(t, o.RunStage(planetDir, s, cfg, nil))
	}

	var ticks int
	onProgress := stage.ProgressFunc(func(percent int) {
		ticks++
		if ticks == 2 {
			panic(CancelSignal{})
		}
	})
	err := o.RunStage(planetDir, types.StagePartition, cfg, onProgress)
	require.ErrorIs(t, err, ErrCancelled)
	require.Greater(t, ticks, 1, "cancellation must land after at least one progress tick, not before partition starts")

	st, err := o.GetStatus(planetDir)
	require.NoError(t, err)
	require.False(t, st.Stages[types.StagePartition].Completed, "cancelled stage must not be marked completed")
}

// TestRunStageCancelSignalDoesNotCorruptUnrelatedPanics confirms a stage
// panicking for an unrelated reason still propagates as a real panic
// instead of being swallowed as a cancellation.
func TestRunStageCancelSignalDoesNotCorruptUnrelatedPanics(t *testing.T) {
	planetDir := t.TempDir()
	writeSyntheticBase(t, planetDir, 16, 16, 4)

	o := NewOrchestrator(nil)
	onProgress := stage.ProgressFunc(func(percent int) { panic("boom") })

	require.Panics(t, func() {
		_ = o.RunStage(planetDir, types.StageNormalize, stage.DefaultConfig(), onProgress)
	})
}
