// Package pipeline implements the orchestrator that owns a per-planet
// output directory, the persisted stage-completion ledger, prerequisite
// validation, and dispatch of a single stage as a cancellable job.
package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/worldforge/internal/types"
)

// LedgerFile is the ledger's filename under <planetDir>/worldgen.
const LedgerFile = "pipeline_status.json"

func ledgerPath(planetDir string) string {
	return filepath.Join(planetDir, "worldgen", LedgerFile)
}

// LoadLedger reads the persisted ledger, returning a fresh all-incomplete
// one if none exists yet.
func LoadLedger(planetDir string) (*types.PipelineStatus, error) {
	data, err := os.ReadFile(ledgerPath(planetDir))
	if os.IsNotExist(err) {
		return types.NewPipelineStatus(), nil
	}
	if err != nil {
		return nil, err
	}
	st := types.NewPipelineStatus()
	if err := json.Unmarshal(data, st); err != nil {
		return nil, err
	}
	return st, nil
}

// SaveLedger persists the ledger atomically (write-temp-then-rename), so a
// reader never observes a partially written file.
func SaveLedger(planetDir string, st *types.PipelineStatus) error {
	if err := os.MkdirAll(filepath.Dir(ledgerPath(planetDir)), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := ledgerPath(planetDir) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, ledgerPath(planetDir))
}

// MarkCompleted sets stage's completed flag and persists the ledger. Ledger
// monotonicity (spec §8) holds because this is the only write path besides
// Clear, and it's only ever called after a stage's artifacts are written.
func MarkCompleted(planetDir string, stage types.StageName) error {
	st, err := LoadLedger(planetDir)
	if err != nil {
		return err
	}
	st.Stages[stage] = types.StageStatus{Completed: true, CompletedAtMs: time.Now().UnixMilli()}
	return SaveLedger(planetDir, st)
}

// ClearLedger removes the ledger file entirely, used by Clear.
func ClearLedger(planetDir string) error {
	err := os.Remove(ledgerPath(planetDir))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
