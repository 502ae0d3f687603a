package pipeline

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/MeKo-Tech/worldforge/internal/stage"
	"github.com/MeKo-Tech/worldforge/internal/types"
)

// prerequisites names, per stage, the worldgen/ artifacts that must already
// exist on disk before that stage can run. Checked by the orchestrator
// before a worker is ever spawned (spec §4.15 step 3).
var prerequisites = map[types.StageName][]string{
	types.StageNormalize:   {},
	types.StageLandmask:    {stage.AlbedoFlatFile},
	types.StageHeight:      {stage.AlbedoFlatFile, stage.LandmaskFile},
	types.StageRivers:      {stage.LandmaskFile, stage.HeightFile},
	types.StageBiome:       {stage.LandmaskFile, stage.HeightFile},
	types.StageSuitability: {stage.LandmaskFile, stage.HeightFile, stage.RiverMaskFile, stage.BiomeFile},
	types.StageSeeds:       {stage.LandmaskFile, stage.SuitabilityFile},
	types.StagePartition:   {stage.LandmaskFile, stage.HeightFile, stage.RiverMaskFile, stage.SeedsFile},
	types.StagePostprocess: {stage.ProvinceIDFile},
	types.StageAdjacency:   {stage.ProvinceIDFile, stage.HeightFile, stage.RiverMaskFile},
	types.StageClustering:  {stage.ProvinceIDFile, stage.BiomeFile, stage.AdjacencyFile},
	types.StageNaming:      {},
}

var runners = map[types.StageName]func(string, stage.Config, stage.ProgressFunc) error{
	types.StageNormalize:   stage.RunNormalize,
	types.StageLandmask:    stage.RunLandmask,
	types.StageHeight:      stage.RunHeight,
	types.StageRivers:      stage.RunRivers,
	types.StageBiome:       stage.RunBiome,
	types.StageSuitability: stage.RunSuitability,
	types.StageSeeds:       stage.RunSeeds,
	types.StagePartition:   stage.RunPartition,
	types.StagePostprocess: stage.RunPostprocess,
	types.StageAdjacency:   stage.RunAdjacency,
	types.StageClustering:  stage.RunClustering,
	types.StageNaming:      stage.RunNaming,
}

// Orchestrator owns a per-planet output directory, serializing runs of the
// same planet with a lazily-created mutex per planet id — the same
// lazy-mutex-per-key idiom the teacher's ondemand tile server uses for
// per-tile locks.
type Orchestrator struct {
	log    *slog.Logger
	locks  sync.Map // planetDir -> *sync.Mutex
}

// NewOrchestrator returns an Orchestrator; a nil logger falls back to
// slog.Default().
func NewOrchestrator(log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{log: log}
}

func (o *Orchestrator) lockFor(planetDir string) *sync.Mutex {
	v, _ := o.locks.LoadOrStore(planetDir, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// ErrPrerequisiteMissing identifies the missing artifact a stage needs.
type ErrPrerequisiteMissing struct {
	Stage    types.StageName
	Artifact string
}

func (e *ErrPrerequisiteMissing) Error() string {
	return fmt.Sprintf("prerequisite %s missing for stage %s", e.Artifact, e.Stage)
}

// ErrUnknownStage is returned for a stage name outside the fixed 12-item
// enumeration.
type ErrUnknownStage struct{ Name types.StageName }

func (e *ErrUnknownStage) Error() string {
	return fmt.Sprintf("unknown stage %q", e.Name)
}

// ErrBaseImageMissing is returned when the planet directory has no base
// albedo image at all.
var ErrBaseImageMissing = fmt.Errorf("planet directory missing base albedo image (%s)", stage.BaseImageRel)

// ErrCancelled is returned by RunStage when the onProgress callback it was
// given raised a CancelSignal panic. The ledger is left untouched, so the
// stage stays incomplete exactly as if it had never run.
var ErrCancelled = fmt.Errorf("pipeline: stage cancelled")

// CancelSignal is the panic payload a cancellation-aware progress callback
// raises to abort a stage early. stage.ProgressFunc has no return value, so
// there is no way for a stage's internal loop to learn of cancellation from
// its own progress(percent) call except by unwinding the stack — RunStage
// recovers the signal at the one place every stage already calls back into,
// turning it into ErrCancelled without any of the twelve stage functions
// needing to poll a cancellation flag themselves.
type CancelSignal struct{}

func recoverCancel(err *error) {
	if r := recover(); r != nil {
		if _, ok := r.(CancelSignal); ok {
			*err = ErrCancelled
			return
		}
		panic(r)
	}
}

// ValidatePrerequisites checks stageName is known, the base image exists,
// and every artifact the stage needs is already on disk. It does not spawn
// a worker (spec §4.15 steps 1-3 happen synchronously, before any job
// exists).
func (o *Orchestrator) ValidatePrerequisites(planetDir string, stageName types.StageName) error {
	if !stageName.Valid() {
		return &ErrUnknownStage{Name: stageName}
	}
	if !hasBaseImage(planetDir) {
		return ErrBaseImageMissing
	}
	for _, artifact := range prerequisites[stageName] {
		p := filepath.Join(planetDir, stage.WorldgenDir, artifact)
		if _, err := os.Stat(p); err != nil {
			return &ErrPrerequisiteMissing{Stage: stageName, Artifact: artifact}
		}
	}
	return nil
}

func hasBaseImage(planetDir string) bool {
	for _, ext := range []string{".jpg", ".jpeg", ".png"} {
		p := filepath.Join(planetDir, "textures", "base"+ext)
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}

// PreparePlanet decodes whatever format textures/base.* is in into
// worldgen/_input.png, once, so every stage can assume a PNG on disk. A
// no-op if the decoded file already exists and is newer than the source.
func PreparePlanet(planetDir string) error {
	if err := os.MkdirAll(filepath.Join(planetDir, stage.WorldgenDir), 0o755); err != nil {
		return err
	}
	dst := filepath.Join(planetDir, stage.WorldgenDir, "_input.png")

	var src string
	var decode func(f *os.File) (image.Image, error)
	for _, candidate := range []struct {
		ext    string
		decode func(f *os.File) (image.Image, error)
	}{
		{".png", func(f *os.File) (image.Image, error) { return png.Decode(f) }},
		{".jpg", func(f *os.File) (image.Image, error) { return jpeg.Decode(f) }},
		{".jpeg", func(f *os.File) (image.Image, error) { return jpeg.Decode(f) }},
	} {
		p := filepath.Join(planetDir, "textures", "base"+candidate.ext)
		if _, err := os.Stat(p); err == nil {
			src = p
			decode = candidate.decode
			break
		}
	}
	if src == "" {
		return ErrBaseImageMissing
	}
	if dstInfo, err := os.Stat(dst); err == nil {
		if srcInfo, err := os.Stat(src); err == nil && dstInfo.ModTime().After(srcInfo.ModTime()) {
			return nil
		}
	}

	f, err := os.Open(src)
	if err != nil {
		return err
	}
	img, err := decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("pipeline: decoding base image %s: %w", src, err)
	}

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

// RunStage runs stageName synchronously against planetDir, serialized per
// planet. On success it writes pipeline_status.json; on failure the ledger
// is left unchanged (spec §4.15 steps 5-6). Progress is forwarded to
// onProgress, which may be nil.
func (o *Orchestrator) RunStage(planetDir string, stageName types.StageName, cfg stage.Config, onProgress stage.ProgressFunc) (err error) {
	defer recoverCancel(&err)
	if err := o.ValidatePrerequisites(planetDir, stageName); err != nil {
		return err
	}
	if stageName == types.StageNormalize {
		if err := PreparePlanet(planetDir); err != nil {
			return err
		}
	}

	mu := o.lockFor(planetDir)
	mu.Lock()
	defer mu.Unlock()

	run := runners[stageName]
	o.log.Info("pipeline: running stage", "planetDir", planetDir, "stage", stageName)
	if err := run(planetDir, cfg, onProgress); err != nil {
		o.log.Error("pipeline: stage failed", "stage", stageName, "error", err)
		return err
	}
	return MarkCompleted(planetDir, stageName)
}

// GetStatus returns the persisted ledger for planetDir.
func (o *Orchestrator) GetStatus(planetDir string) (*types.PipelineStatus, error) {
	return LoadLedger(planetDir)
}

// Clear deletes every generated artifact and the ledger, leaving the base
// image untouched.
func (o *Orchestrator) Clear(planetDir string) error {
	mu := o.lockFor(planetDir)
	mu.Lock()
	defer mu.Unlock()

	dir := filepath.Join(planetDir, stage.WorldgenDir)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
