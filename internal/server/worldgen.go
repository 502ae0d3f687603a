package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"

	"github.com/MeKo-Tech/worldforge/internal/pipeline"
	"github.com/MeKo-Tech/worldforge/internal/stage"
	"github.com/MeKo-Tech/worldforge/internal/types"
)

func (s *Server) planetDir(planetID string) string {
	return filepath.Join(s.planetsRoot, planetID)
}

func (s *Server) handleWorldgenStatus(w http.ResponseWriter, r *http.Request) {
	dir := s.planetDir(r.PathValue("planetId"))
	status, err := s.orchestrator.GetStatus(dir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleWorldgenRun validates the stage name and prerequisites synchronously
// (spec §4.15 steps 1-3 happen before any job is created) then hands the
// actual stage run to the worker pool.
func (s *Server) handleWorldgenRun(w http.ResponseWriter, r *http.Request) {
	dir := s.planetDir(r.PathValue("planetId"))
	stageName := types.StageName(r.PathValue("stage"))

	var cfg stage.Config
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	if err := s.orchestrator.ValidatePrerequisites(dir, stageName); err != nil {
		var unknown *pipeline.ErrUnknownStage
		if errors.As(err, &unknown) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	jobID := s.registry.Submit(func(report func(float64, string), cancelled func() bool) (interface{}, error) {
		// Checked on every progress tick, so a cancel request lands within
		// one tick of the stage's own granularity instead of waiting for
		// the whole stage to run to completion first.
		onProgress := stage.ProgressFunc(func(percent int) {
			if cancelled() {
				panic(pipeline.CancelSignal{})
			}
			report(float64(percent), string(stageName))
		})
		if err := s.orchestrator.RunStage(dir, stageName, cfg, onProgress); err != nil {
			return nil, err
		}
		return s.orchestrator.GetStatus(dir)
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID})
}

func (s *Server) handleWorldgenJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("jobId")
	job, ok := s.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, jobStatusResponse(id, job))
}

func (s *Server) handleWorldgenClear(w http.ResponseWriter, r *http.Request) {
	dir := s.planetDir(r.PathValue("planetId"))
	if err := s.orchestrator.Clear(dir); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
