package pipeline

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/worldforge/internal/stage"
	"github.com/MeKo-Tech/worldforge/internal/types"
	"github.com/stretchr/testify/require"
)

// writeSyntheticBase writes a W×H checkerboard of blue (water) and green
// (land) cells, the scenario 1 fixture from spec §8.
func writeSyntheticBase(t *testing.T, planetDir string, w, h, cell int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(planetDir, "textures"), 0o755))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			cx, cy := x/cell, y/cell
			if (cx+cy)%2 == 0 {
				img.Set(x, y, color.NRGBA{R: 40, G: 180, B: 40, A: 255}) // green land
			} else {
				img.Set(x, y, color.NRGBA{R: 20, G: 60, B: 200, A: 255}) // blue water
			}
		}
	}
	f, err := os.Create(filepath.Join(planetDir, "textures", "base.png"))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func runAllStages(t *testing.T, o *Orchestrator, planetDir string, cfg stage.Config) {
	t.Helper()
	for _, s := range types.StageOrder {
		err := o.RunStage(planetDir, s, cfg, nil)
		require.NoError(t, err, "stage %s should succeed", s)
	}
}

func TestPipelineChecktboardScenario(t *testing.T) {
	planetDir := t.TempDir()
	writeSyntheticBase(t, planetDir, 64, 32, 8)

	o := NewOrchestrator(nil)
	cfg := stage.DefaultConfig()
	cfg.TargetCount = 8
	runAllStages(t, o, planetDir, cfg)

	st, err := o.GetStatus(planetDir)
	require.NoError(t, err)
	for _, s := range types.StageOrder {
		require.True(t, st.Stages[s].Completed, "stage %s should be marked completed", s)
	}

	land, w, h, err := loadLandmaskForTest(planetDir)
	require.NoError(t, err)
	require.Equal(t, 64, w)
	require.Equal(t, 32, h)

	var landCount int
	for _, v := range land {
		if v {
			landCount++
		}
	}
	require.Greater(t, landCount, 0, "checkerboard should classify some land")
	require.Less(t, landCount, w*h, "checkerboard should classify some water")
}

func TestPipelineAllWaterScenario(t *testing.T) {
	planetDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(planetDir, "textures"), 0o755))
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.NRGBA{R: 10, G: 40, B: 200, A: 255})
		}
	}
	f, err := os.Create(filepath.Join(planetDir, "textures", "base.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	f.Close()

	o := NewOrchestrator(nil)
	cfg := stage.DefaultConfig()
	runAllStages(t, o, planetDir, cfg)

	var seeds []types.Seed
	require.NoError(t, loadJSONForTest(filepath.Join(planetDir, stage.WorldgenDir, stage.SeedsFile), &seeds))
	require.Empty(t, seeds, "all-water planet should have zero seeds")

	var provinces []types.ProvinceRecord
	require.NoError(t, loadJSONForTest(filepath.Join(planetDir, stage.WorldgenDir, stage.ProvincesFile), &provinces))
	require.Empty(t, provinces, "all-water planet should have zero provinces")
}

// writeSingleContinent writes a W×H image with one filled-circle green
// landmass on a blue sea, the scenario 3 fixture from spec §8.
func writeSingleContinent(t *testing.T, planetDir string, w, h int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(planetDir, "textures"), 0o755))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	cx, cy := w/2, h/2
	r := float64(h) * 0.4
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := float64(x-cx), float64(y-cy)
			if dx*dx+dy*dy <= r*r {
				img.Set(x, y, color.NRGBA{R: 40, G: 180, B: 40, A: 255}) // green land
			} else {
				img.Set(x, y, color.NRGBA{R: 20, G: 60, B: 200, A: 255}) // blue water
			}
		}
	}
	f, err := os.Create(filepath.Join(planetDir, "textures", "base.png"))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestPipelineSingleContinentScenario(t *testing.T) {
	planetDir := t.TempDir()
	writeSingleContinent(t, planetDir, 512, 256)

	o := NewOrchestrator(nil)
	cfg := stage.DefaultConfig()
	cfg.TargetCount = 100
	runAllStages(t, o, planetDir, cfg)

	var seeds []types.Seed
	require.NoError(t, loadJSONForTest(filepath.Join(planetDir, stage.WorldgenDir, stage.SeedsFile), &seeds))
	require.GreaterOrEqual(t, len(seeds), 1, "single continent must yield at least the island guarantee of one seed")

	var provinces []types.ProvinceRecord
	require.NoError(t, loadJSONForTest(filepath.Join(planetDir, stage.WorldgenDir, stage.ProvincesFile), &provinces))
	require.NotEmpty(t, provinces)

	var adjacency []types.ProvinceAdjacencyEntry
	require.NoError(t, loadJSONForTest(filepath.Join(planetDir, stage.WorldgenDir, stage.AdjacencyFile), &adjacency))
	if len(provinces) > 1 {
		var totalNeighbors int
		for _, entry := range adjacency {
			totalNeighbors += len(entry.Neighbors)
		}
		require.Greater(t, totalNeighbors, 0, "more than one province over a single landmass must produce at least one adjacency edge")
	}
}

func TestRunStageMissingPrerequisite(t *testing.T) {
	planetDir := t.TempDir()
	writeSyntheticBase(t, planetDir, 16, 16, 4)

	o := NewOrchestrator(nil)
	err := o.RunStage(planetDir, types.StageHeight, stage.DefaultConfig(), nil)
	require.Error(t, err)

	var missing *ErrPrerequisiteMissing
	require.ErrorAs(t, err, &missing)
	require.Equal(t, stage.AlbedoFlatFile, missing.Artifact)
}

func TestRunStageUnknownName(t *testing.T) {
	planetDir := t.TempDir()
	writeSyntheticBase(t, planetDir, 16, 16, 4)

	o := NewOrchestrator(nil)
	err := o.RunStage(planetDir, types.StageName("bogus"), stage.DefaultConfig(), nil)
	require.Error(t, err)

	var unknown *ErrUnknownStage
	require.ErrorAs(t, err, &unknown)
}

func TestClearRemovesLedger(t *testing.T) {
	planetDir := t.TempDir()
	writeSyntheticBase(t, planetDir, 16, 16, 4)

	o := NewOrchestrator(nil)
	require.NoError(t, o.RunStage(planetDir, types.StageNormalize, stage.DefaultConfig(), nil))

	st, err := o.GetStatus(planetDir)
	require.NoError(t, err)
	require.True(t, st.Stages[types.StageNormalize].Completed)

	require.NoError(t, o.Clear(planetDir))

	st2, err := o.GetStatus(planetDir)
	require.NoError(t, err)
	require.False(t, st2.Stages[types.StageNormalize].Completed)
}
