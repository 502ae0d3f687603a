// Package server implements the HTTP surface (spec.md §6): job submit/poll/
// cancel for both the terrain generator and the pipeline stages, a
// content-addressed "saved" listing, and the external-collaborator stubs.
package server

import (
	"log/slog"
	"net/http"

	"github.com/MeKo-Tech/worldforge/internal/cache"
	"github.com/MeKo-Tech/worldforge/internal/pipeline"
	"github.com/MeKo-Tech/worldforge/internal/worker"
)

// Config configures a Server.
type Config struct {
	PlanetsRoot string // root directory containing one subdirectory per planet id
	Workers     int    // worker pool size, 0 = GOMAXPROCS
	ImageGen    ExternalImageGenerator
	Upscaler    Upscaler
	Logger      *slog.Logger
}

// Server holds the process-wide registry, cache, and pipeline orchestrator
// backing every handler.
type Server struct {
	planetsRoot  string
	registry     *worker.Registry
	cache        *cache.Cache
	orchestrator *pipeline.Orchestrator
	imageGen     ExternalImageGenerator
	upscaler     Upscaler
	log          *slog.Logger
}

// New builds a Server. cacheDir is where the content-addressed preview
// cache (spec §4.16) keeps its blobs and index.
func New(cacheDir string, cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	c, err := cache.Open(cacheDir)
	if err != nil {
		return nil, err
	}
	imageGen := cfg.ImageGen
	if imageGen == nil {
		imageGen = stubImageGenerator{}
	}
	upscaler := cfg.Upscaler
	if upscaler == nil {
		upscaler = stubUpscaler{}
	}
	return &Server{
		planetsRoot:  cfg.PlanetsRoot,
		registry:     worker.NewRegistry(cfg.Workers),
		cache:        c,
		orchestrator: pipeline.NewOrchestrator(cfg.Logger),
		imageGen:     imageGen,
		upscaler:     upscaler,
		log:          cfg.Logger,
	}, nil
}

// Close releases the cache index handle.
func (s *Server) Close() error { return s.cache.Close() }

// Routes builds the full mux per spec.md §6's HTTP surface table.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /api/terrain/generate", s.handleTerrainGenerate)
	mux.HandleFunc("GET /api/terrain/jobs/{id}", s.handleTerrainJobStatus)
	mux.HandleFunc("DELETE /api/terrain/jobs/{id}", s.handleTerrainJobCancel)

	mux.HandleFunc("POST /api/planet/preview", s.handlePlanetExternal("preview"))
	mux.HandleFunc("POST /api/planet/hybrid", s.handlePlanetExternal("hybrid"))
	mux.HandleFunc("POST /api/planet/ecology", s.handlePlanetExternal("ecology"))
	mux.HandleFunc("POST /api/planet/humanity", s.handlePlanetExternal("humanity"))
	mux.HandleFunc("POST /api/planet/upscale", s.handlePlanetUpscale)
	mux.HandleFunc("POST /api/planet/cells/job", s.handlePlanetCellsJob)
	mux.HandleFunc("GET /api/planet/saved", s.handlePlanetSavedList)
	mux.HandleFunc("GET /api/planet/saved/{key}", s.handlePlanetSavedGet)

	mux.HandleFunc("GET /api/worldgen/{planetId}/status", s.handleWorldgenStatus)
	mux.HandleFunc("POST /api/worldgen/{planetId}/run/{stage}", s.handleWorldgenRun)
	mux.HandleFunc("GET /api/worldgen/{planetId}/job/{jobId}", s.handleWorldgenJob)
	mux.HandleFunc("DELETE /api/worldgen/{planetId}/clear", s.handleWorldgenClear)

	return withCORS(mux)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
