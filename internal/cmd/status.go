package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/worldforge/internal/pipeline"
	"github.com/MeKo-Tech/worldforge/internal/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a planet's pipeline_status.json ledger as a stage checklist",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().String("planet", "", "Planet id (subdirectory of --planets-dir)")
	if err := viper.BindPFlag("status.planet", statusCmd.Flags().Lookup("planet")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	planetID := viper.GetString("status.planet")
	if planetID == "" {
		return fmt.Errorf("--planet is required")
	}
	planetDir := filepath.Join(viper.GetString("planets-dir"), planetID)

	o := pipeline.NewOrchestrator(logger)
	st, err := o.GetStatus(planetDir)
	if err != nil {
		return err
	}

	for _, stageName := range types.StageOrder {
		entry := st.Stages[stageName]
		mark := " "
		if entry.Completed {
			mark = "x"
		}
		line := fmt.Sprintf("[%s] %-12s", mark, stageName)
		if entry.Completed && entry.CompletedAtMs > 0 {
			line += " " + time.UnixMilli(entry.CompletedAtMs).Format(time.RFC3339)
		}
		fmt.Println(line)
	}
	return nil
}
