package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/MeKo-Tech/worldforge/internal/cache"
	"github.com/MeKo-Tech/worldforge/internal/previewgen"
)

// GenerateRequest is the body for POST /api/terrain/generate.
type GenerateRequest struct {
	Cols       int    `json:"cols"`
	Rows       int    `json:"rows"`
	Seed       int64  `json:"seed"`
	PlateCount int    `json:"plateCount"`
	ImageB64   string `json:"imageB64,omitempty"`
}

// GenerateResponse is the cacheable result of a terrain generation job; it
// is what GET /api/planet/saved/{key} returns on a cache hit.
type GenerateResponse struct {
	Grid *previewgen.Grid `json:"grid"`
}

func (s *Server) handleTerrainGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Cols <= 0 {
		req.Cols = previewgen.DefaultRequest().Cols
	}
	if req.Rows <= 0 {
		req.Rows = previewgen.DefaultRequest().Rows
	}
	if req.PlateCount <= 0 {
		req.PlateCount = previewgen.DefaultRequest().PlateCount
	}

	key, err := cache.Key(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lock loss: "+err.Error())
		return
	}

	if cached, ok, err := s.cache.Lookup(key); err == nil && ok {
		var resp GenerateResponse
		if json.Unmarshal(cached, &resp) == nil {
			jobID := s.registry.Submit(func(report func(float64, string), cancelled func() bool) (interface{}, error) {
				return resp, nil
			})
			writeJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID})
			return
		}
	}

	pgReq := previewgen.Request{Cols: req.Cols, Rows: req.Rows, Seed: req.Seed, PlateCount: req.PlateCount}
	if req.ImageB64 != "" {
		img, err := base64.StdEncoding.DecodeString(req.ImageB64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid imageB64: "+err.Error())
			return
		}
		pgReq.Image = img
	}

	jobID := s.registry.Submit(func(report func(float64, string), cancelled func() bool) (interface{}, error) {
		grid, err := previewgen.Generate(context.Background(), pgReq, previewgen.ProgressFunc(report), cancelled)
		if err != nil {
			return nil, err
		}
		resp := GenerateResponse{Grid: grid}
		if blob, err := json.Marshal(resp); err == nil {
			_ = s.cache.Store(key, blob)
		}
		return resp, nil
	})

	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID})
}

func (s *Server) handleTerrainJobStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, ok := s.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, jobStatusResponse(id, job))
}

func (s *Server) handleTerrainJobCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.registry.Cancel(id) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancel requested"})
}
