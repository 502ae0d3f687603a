package cmd

import (
	"fmt"
	"net/http"
	"path/filepath"
	"runtime"
	"time"

	"github.com/MeKo-Tech/worldforge/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the terrain generator and pipeline HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().String("cache-dir", filepath.Join(".", "cache"), "Directory for the content-addressed preview cache")
	serveCmd.Flags().Int("workers", runtime.NumCPU(), "Max concurrent background jobs (default: number of CPUs)")

	mustBind := func(key, flag string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", flag, err))
		}
	}
	mustBind("serve.addr", "addr")
	mustBind("serve.cache_dir", "cache-dir")
	mustBind("serve.workers", "workers")
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	addr := viper.GetString("serve.addr")
	cacheDir := viper.GetString("serve.cache_dir")
	workers := viper.GetInt("serve.workers")
	planetsRoot := viper.GetString("planets-dir")

	srv, err := server.New(cacheDir, server.Config{
		PlanetsRoot: planetsRoot,
		Workers:     workers,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer srv.Close()

	logger.Info("worldforge server listening",
		"addr", addr,
		"planets_dir", planetsRoot,
		"cache_dir", cacheDir,
		"workers", workers,
	)

	httpSrv := &http.Server{Addr: addr, Handler: srv.Routes(), ReadHeaderTimeout: 5 * time.Second}
	return httpSrv.ListenAndServe()
}
