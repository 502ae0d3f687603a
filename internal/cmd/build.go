package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/worldforge/internal/pipeline"
	"github.com/MeKo-Tech/worldforge/internal/stage"
	"github.com/MeKo-Tech/worldforge/internal/types"
	"github.com/MeKo-Tech/worldforge/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run all twelve pipeline stages over a planet, in order",
	RunE:  runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().String("planet", "", "Planet id (subdirectory of --planets-dir)")
	buildCmd.Flags().String("input", "", "Path to the source albedo image, copied into textures/base.* if given")
	buildCmd.Flags().Int("counties", 0, "Target province count (0 = stage default)")
	buildCmd.Flags().Int64("seed", 0, "Deterministic seed (0 = stage default)")
	buildCmd.Flags().Bool("progress", true, "Show a progress bar across the twelve stages")

	mustBind := func(key, flag string) {
		if err := viper.BindPFlag(key, buildCmd.Flags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", flag, err))
		}
	}
	mustBind("build.planet", "planet")
	mustBind("build.input", "input")
	mustBind("build.counties", "counties")
	mustBind("build.seed", "seed")
	mustBind("build.progress", "progress")
}

func runBuild(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	planetID := viper.GetString("build.planet")
	if planetID == "" {
		return fmt.Errorf("--planet is required")
	}
	planetDir := filepath.Join(viper.GetString("planets-dir"), planetID)

	if input := viper.GetString("build.input"); input != "" {
		if err := copyBaseImage(input, planetDir); err != nil {
			return fmt.Errorf("copying base image: %w", err)
		}
	}

	cfg := stage.DefaultConfig()
	if seed := viper.GetInt64("build.seed"); seed != 0 {
		cfg.Seed = seed
	}
	// --counties maps onto Seeds' TargetCount: the spec's "county" is this
	// pipeline's province, one seed per eventual province.
	if counties := viper.GetInt("build.counties"); counties != 0 {
		cfg.TargetCount = counties
	}

	o := pipeline.NewOrchestrator(logger)
	showProgress := viper.GetBool("build.progress")
	bar := worker.NewProgress(len(types.StageOrder), showProgress)

	for i, stageName := range types.StageOrder {
		bar.StartStep(i, string(stageName))
		if err := o.RunStage(planetDir, stageName, cfg, bar.Callback()); err != nil {
			bar.Done()
			return fmt.Errorf("stage %s: %w", stageName, err)
		}
	}
	bar.Done()

	fmt.Printf("planet %q built at %s\n", planetID, planetDir)
	return nil
}

// copyBaseImage stages the source image at textures/base.<ext> under
// planetDir, preserving whatever format the caller supplied; the
// orchestrator's normalize stage decodes it into worldgen/_input.png.
func copyBaseImage(src, planetDir string) error {
	ext := filepath.Ext(src)
	if ext == "" {
		ext = ".png"
	}
	dst := filepath.Join(planetDir, "textures", "base"+ext)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
