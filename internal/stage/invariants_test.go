package stage

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/worldforge/internal/types"
	"github.com/stretchr/testify/require"
)

// writeCheckerboardInput stages a decoded worldgen/_input.png checkerboard
// directly, the same artifact internal/pipeline.PreparePlanet would have
// produced from textures/base.*, so these tests can drive the stages
// without going through the orchestrator.
func writeCheckerboardInput(t *testing.T, planetDir string, w, h, cell int) {
	t.Helper()
	require.NoError(t, ensureWorldgenDir(planetDir))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			cx, cy := x/cell, y/cell
			if (cx+cy)%2 == 0 {
				img.Set(x, y, color.NRGBA{R: 40, G: 180, B: 40, A: 255}) // land
			} else {
				img.Set(x, y, color.NRGBA{R: 20, G: 60, B: 200, A: 255}) // water
			}
		}
	}
	require.NoError(t, savePNG(filepath.Join(planetDir, WorldgenDir, "_input.png"), img))
}

func runThroughStage(t *testing.T, planetDir string, cfg Config, upTo types.StageName) {
	t.Helper()
	runners := []struct {
		name types.StageName
		run  func(string, Config, ProgressFunc) error
	}{
		{types.StageNormalize, RunNormalize},
		{types.StageLandmask, RunLandmask},
		{types.StageHeight, RunHeight},
		{types.StageRivers, RunRivers},
		{types.StageBiome, RunBiome},
		{types.StageSuitability, RunSuitability},
		{types.StageSeeds, RunSeeds},
		{types.StagePartition, RunPartition},
		{types.StagePostprocess, RunPostprocess},
		{types.StageAdjacency, RunAdjacency},
		{types.StageClustering, RunClustering},
		{types.StageNaming, RunNaming},
	}
	for _, r := range runners {
		require.NoError(t, r.run(planetDir, cfg, nil), "stage %s", r.name)
		if r.name == upTo {
			return
		}
	}
}

func TestHeightRespectsSeaLevelBySide(t *testing.T) {
	planetDir := t.TempDir()
	writeCheckerboardInput(t, planetDir, 32, 32, 8)
	cfg := DefaultConfig()
	runThroughStage(t, planetDir, cfg, types.StageHeight)

	land, w, h, err := loadLandmask(planetDir)
	require.NoError(t, err)
	height, _, _, err := loadHeight16(planetDir)
	require.NoError(t, err)
	require.Equal(t, w*h, len(height))

	for i := range height {
		if land[i] {
			require.GreaterOrEqualf(t, height[i], uint16(types.SeaLevel), "land pixel %d below sea level", i)
		} else {
			require.Lessf(t, height[i], uint16(types.SeaLevel), "water pixel %d at/above sea level", i)
		}
	}
}

func TestRiversOnlyFlowOverLand(t *testing.T) {
	planetDir := t.TempDir()
	writeCheckerboardInput(t, planetDir, 32, 32, 8)
	cfg := DefaultConfig()
	cfg.RiverThreshold = 1 // low threshold so some pixels qualify
	runThroughStage(t, planetDir, cfg, types.StageRivers)

	land, _, _, err := loadLandmask(planetDir)
	require.NoError(t, err)
	riverMask, _, _, err := loadGray8(worldgenPath(planetDir, RiverMaskFile))
	require.NoError(t, err)

	for i, v := range riverMask {
		if v > 0 {
			require.Truef(t, land[i], "river pixel %d is not on land", i)
		}
	}
}

func TestBiomeOceanIffNotLand(t *testing.T) {
	planetDir := t.TempDir()
	writeCheckerboardInput(t, planetDir, 32, 32, 8)
	cfg := DefaultConfig()
	runThroughStage(t, planetDir, cfg, types.StageBiome)

	land, _, _, err := loadLandmask(planetDir)
	require.NoError(t, err)
	biome, _, _, err := loadGray8(worldgenPath(planetDir, BiomeFile))
	require.NoError(t, err)

	for i, b := range biome {
		if land[i] {
			require.NotEqualf(t, types.BiomeOcean, b, "land pixel %d classified as ocean", i)
		} else {
			require.Equalf(t, types.BiomeOcean, b, "water pixel %d not classified as ocean", i)
		}
	}
}

func TestSeedsRespectMinimumSpacingAndCoverEveryIsland(t *testing.T) {
	planetDir := t.TempDir()
	writeCheckerboardInput(t, planetDir, 64, 32, 8)
	cfg := DefaultConfig()
	cfg.TargetCount = 12
	cfg.RMin = 6
	cfg.RMax = 20
	runThroughStage(t, planetDir, cfg, types.StageSeeds)

	var seeds []types.Seed
	require.NoError(t, loadJSON(worldgenPath(planetDir, SeedsFile), &seeds))
	require.NotEmpty(t, seeds)

	for i := range seeds {
		for j := i + 1; j < len(seeds); j++ {
			d := wrapDist(64, int(seeds[i].X), int(seeds[i].Y), int(seeds[j].X), int(seeds[j].Y))
			require.GreaterOrEqualf(t, d, cfg.RMin*0.999, "seeds %d and %d closer than rMin", seeds[i].ID, seeds[j].ID)
		}
	}

	land, w, h, err := loadLandmask(planetDir)
	require.NoError(t, err)
	grid := gridOf(w, h)
	components := connectedComponents4(grid, land)
	for ci, comp := range components {
		covered := false
		for _, s := range seeds {
			idx, _ := grid.Idx(int(s.X), int(s.Y))
			if comp[idx] {
				covered = true
				break
			}
		}
		require.Truef(t, covered, "land component %d has no seed", ci)
	}
}

func TestPartitionLabelsOnlyLandAndWaterStaysUnlabeled(t *testing.T) {
	planetDir := t.TempDir()
	writeCheckerboardInput(t, planetDir, 32, 32, 8)
	cfg := DefaultConfig()
	cfg.TargetCount = 6
	runThroughStage(t, planetDir, cfg, types.StagePartition)

	land, _, _, err := loadLandmask(planetDir)
	require.NoError(t, err)
	img, err := loadPNG(worldgenPath(planetDir, ProvinceIDFile))
	require.NoError(t, err)
	labels, _, _ := unpackIDImage(img)

	for i, l := range labels {
		if land[i] {
			require.NotEqualf(t, types.UnlabeledProvince, l, "land pixel %d left unlabeled", i)
		} else {
			require.Equalf(t, types.UnlabeledProvince, l, "water pixel %d was labeled %d", i, l)
		}
	}
}

func TestPostprocessEveryLabelIsOneComponent(t *testing.T) {
	planetDir := t.TempDir()
	writeCheckerboardInput(t, planetDir, 48, 32, 8)
	cfg := DefaultConfig()
	cfg.TargetCount = 10
	cfg.MinArea = 4
	cfg.SmoothIterations = 2
	runThroughStage(t, planetDir, cfg, types.StagePostprocess)

	img, err := loadPNG(worldgenPath(planetDir, ProvinceIDFile))
	require.NoError(t, err)
	labels, w, h := unpackIDImage(img)
	grid := gridOf(w, h)

	byLabel := make(map[uint32][][]int)
	visited := make([]bool, len(labels))
	stack := make([]int, 0, 64)
	for start := range labels {
		lbl := labels[start]
		if lbl == types.UnlabeledProvince || visited[start] {
			continue
		}
		comp := []int{}
		stack = append(stack[:0], start)
		visited[start] = true
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			comp = append(comp, i)
			x, y := grid.XY(i)
			for _, ni := range grid.Neighbors8(x, y, nil) {
				if labels[ni] == lbl && !visited[ni] {
					visited[ni] = true
					stack = append(stack, ni)
				}
			}
		}
		byLabel[lbl] = append(byLabel[lbl], comp)
	}

	for lbl, comps := range byLabel {
		require.Lenf(t, comps, 1, "label %d has %d disjoint components after postprocess", lbl, len(comps))
	}
}

func TestAdjacencyEdgesAreSymmetric(t *testing.T) {
	planetDir := t.TempDir()
	writeCheckerboardInput(t, planetDir, 48, 32, 8)
	cfg := DefaultConfig()
	cfg.TargetCount = 10
	runThroughStage(t, planetDir, cfg, types.StageAdjacency)

	var entries []types.ProvinceAdjacencyEntry
	require.NoError(t, loadJSON(worldgenPath(planetDir, AdjacencyFile), &entries))
	require.NotEmpty(t, entries)

	byProvince := make(map[uint32]types.ProvinceAdjacencyEntry, len(entries))
	for _, e := range entries {
		byProvince[e.ProvinceID] = e
	}

	for _, e := range entries {
		for _, nb := range e.Neighbors {
			other, ok := byProvince[nb.NeighborID]
			require.Truef(t, ok, "province %d has neighbor %d with no reverse entry", e.ProvinceID, nb.NeighborID)
			found := false
			for _, back := range other.Neighbors {
				if back.NeighborID == e.ProvinceID {
					require.Equalf(t, nb.SharedBorderLen, back.SharedBorderLen,
						"asymmetric border length between %d and %d", e.ProvinceID, nb.NeighborID)
					found = true
					break
				}
			}
			require.Truef(t, found, "province %d does not list %d back as a neighbor", nb.NeighborID, e.ProvinceID)
		}
	}
}

func TestClusteringEveryProvinceHasAKingdomViaDuchy(t *testing.T) {
	planetDir := t.TempDir()
	writeCheckerboardInput(t, planetDir, 48, 32, 8)
	cfg := DefaultConfig()
	cfg.TargetCount = 10
	cfg.DuchySizeMax = 3
	cfg.KingdomSizeMax = 2
	runThroughStage(t, planetDir, cfg, types.StageClustering)

	var provinces []types.ProvinceRecord
	require.NoError(t, loadJSON(worldgenPath(planetDir, ProvincesFile), &provinces))
	var duchies []types.DuchyRecord
	require.NoError(t, loadJSON(worldgenPath(planetDir, DuchiesFile), &duchies))
	var kingdoms []types.KingdomRecord
	require.NoError(t, loadJSON(worldgenPath(planetDir, KingdomsFile), &kingdoms))

	require.NotEmpty(t, provinces)
	require.NotEmpty(t, duchies)
	require.NotEmpty(t, kingdoms)

	duchyByID := make(map[uint32]types.DuchyRecord, len(duchies))
	for _, d := range duchies {
		duchyByID[d.ID] = d
	}
	kingdomByID := make(map[uint32]bool, len(kingdoms))
	for _, k := range kingdoms {
		kingdomByID[k.ID] = true
	}

	for _, p := range provinces {
		d, ok := duchyByID[p.DuchyID]
		require.Truef(t, ok, "province %d points at unknown duchy %d", p.ID, p.DuchyID)
		require.Truef(t, kingdomByID[d.KingdomID], "duchy %d points at unknown kingdom %d", d.ID, d.KingdomID)

		memberOfDuchy := false
		for _, m := range d.MemberIDs {
			if m == p.ID {
				memberOfDuchy = true
				break
			}
		}
		require.Truef(t, memberOfDuchy, "province %d not listed in its own duchy %d's members", p.ID, d.ID)
	}
}

func TestRunAllStagesDeterministicAcrossRuns(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetCount = 8

	dirA := t.TempDir()
	writeCheckerboardInput(t, dirA, 32, 16, 4)
	runThroughStage(t, dirA, cfg, types.StageNaming)

	dirB := t.TempDir()
	writeCheckerboardInput(t, dirB, 32, 16, 4)
	runThroughStage(t, dirB, cfg, types.StageNaming)

	heightA, _, _, err := loadHeight16(dirA)
	require.NoError(t, err)
	heightB, _, _, err := loadHeight16(dirB)
	require.NoError(t, err)
	require.Equal(t, heightA, heightB, "same seed should reproduce the same height field")

	var provincesA, provincesB []types.ProvinceRecord
	require.NoError(t, loadJSON(worldgenPath(dirA, ProvincesFile), &provincesA))
	require.NoError(t, loadJSON(worldgenPath(dirB, ProvincesFile), &provincesB))
	require.Equal(t, provincesA, provincesB, "same seed should reproduce the same province set")

	var duchiesA, duchiesB []types.DuchyRecord
	require.NoError(t, loadJSON(worldgenPath(dirA, DuchiesFile), &duchiesA))
	require.NoError(t, loadJSON(worldgenPath(dirB, DuchiesFile), &duchiesB))
	require.Equal(t, duchiesA, duchiesB, "same seed should reproduce the same duchy membership and names")

	var kingdomsA, kingdomsB []types.KingdomRecord
	require.NoError(t, loadJSON(worldgenPath(dirA, KingdomsFile), &kingdomsA))
	require.NoError(t, loadJSON(worldgenPath(dirB, KingdomsFile), &kingdomsB))
	require.Equal(t, kingdomsA, kingdomsB, "same seed should reproduce the same kingdom membership and names")

	kingdomImgA, err := loadPNG(worldgenPath(dirA, KingdomIDFile))
	require.NoError(t, err)
	kingdomImgB, err := loadPNG(worldgenPath(dirB, KingdomIDFile))
	require.NoError(t, err)
	kingdomIDA, _, _ := unpackIDImage(kingdomImgA)
	kingdomIDB, _, _ := unpackIDImage(kingdomImgB)
	require.Equal(t, kingdomIDA, kingdomIDB, "same seed should reproduce an identical kingdom_id.png across runs")
}

func TestSingleColumnAndSingleRowGridsDoNotPanic(t *testing.T) {
	for _, dims := range [][2]int{{1, 8}, {8, 1}, {1, 1}} {
		w, h := dims[0], dims[1]
		planetDir := t.TempDir()
		require.NoError(t, ensureWorldgenDir(planetDir))
		img := image.NewNRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.Set(x, y, color.NRGBA{R: 40, G: 180, B: 40, A: 255})
			}
		}
		require.NoError(t, savePNG(filepath.Join(planetDir, WorldgenDir, "_input.png"), img))

		cfg := DefaultConfig()
		cfg.TargetCount = 2
		runThroughStage(t, planetDir, cfg, types.StageNaming)
	}
}

func TestEmptyLandmaskProducesNoSeedsOrProvinces(t *testing.T) {
	planetDir := t.TempDir()
	require.NoError(t, ensureWorldgenDir(planetDir))
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.NRGBA{R: 10, G: 40, B: 200, A: 255}) // all water
		}
	}
	require.NoError(t, savePNG(filepath.Join(planetDir, WorldgenDir, "_input.png"), img))

	cfg := DefaultConfig()
	runThroughStage(t, planetDir, cfg, types.StageNaming)

	var seeds []types.Seed
	require.NoError(t, loadJSON(worldgenPath(planetDir, SeedsFile), &seeds))
	require.Empty(t, seeds)

	var provinces []types.ProvinceRecord
	require.NoError(t, loadJSON(worldgenPath(planetDir, ProvincesFile), &provinces))
	require.Empty(t, provinces)
}

func TestAllLandImageStillPartitionsIntoProvinces(t *testing.T) {
	planetDir := t.TempDir()
	require.NoError(t, ensureWorldgenDir(planetDir))
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.NRGBA{R: 60, G: 160, B: 40, A: 255}) // all land
		}
	}
	require.NoError(t, savePNG(filepath.Join(planetDir, WorldgenDir, "_input.png"), img))

	cfg := DefaultConfig()
	cfg.TargetCount = 6
	runThroughStage(t, planetDir, cfg, types.StageClustering)

	land, _, _, err := loadLandmask(planetDir)
	require.NoError(t, err)
	for _, v := range land {
		require.True(t, v)
	}

	var provinces []types.ProvinceRecord
	require.NoError(t, loadJSON(worldgenPath(planetDir, ProvincesFile), &provinces))
	require.NotEmpty(t, provinces)
}

func TestNamingStageRunsAfterDuchiesAndKingdomsAreAlreadyNamed(t *testing.T) {
	planetDir := t.TempDir()
	writeCheckerboardInput(t, planetDir, 32, 32, 8)
	cfg := DefaultConfig()
	cfg.TargetCount = 8
	runThroughStage(t, planetDir, cfg, types.StageNaming)

	var duchies []types.DuchyRecord
	require.NoError(t, loadJSON(worldgenPath(planetDir, DuchiesFile), &duchies))
	var kingdoms []types.KingdomRecord
	require.NoError(t, loadJSON(worldgenPath(planetDir, KingdomsFile), &kingdoms))

	for _, d := range duchies {
		require.NotEmpty(t, d.Name, "duchy %d should have a name assigned during clustering", d.ID)
	}
	for _, k := range kingdoms {
		require.NotEmpty(t, k.Name, "kingdom %d should have a name assigned during clustering", k.ID)
	}

	if _, err := os.Stat(worldgenPath(planetDir, ProvincesFile)); err != nil {
		t.Fatalf("expected provinces.json to exist: %v", err)
	}
}
