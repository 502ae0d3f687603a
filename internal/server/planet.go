package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/MeKo-Tech/worldforge/internal/cache"
	"github.com/MeKo-Tech/worldforge/internal/previewgen"
)

// handlePlanetExternal builds the handler for the external-generative-API
// backed endpoints (/api/planet/preview, /hybrid, /ecology, /humanity):
// each submits a job whose work is a single call into ExternalImageGenerator,
// which returns ErrNotConfigured until a real client is wired in — the
// generative-image/text API is an explicit spec.md Non-goal.
func (s *Server) handlePlanetExternal(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)

		jobID := s.registry.Submit(func(report func(float64, string), cancelled func() bool) (interface{}, error) {
			report(0, kind)
			data, err := s.imageGen.GenerateImage(context.Background(), body)
			if err != nil {
				return nil, err
			}
			return data, nil
		})
		writeJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID})
	}
}

func (s *Server) handlePlanetUpscale(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ImageB64 string `json:"imageB64"`
		Factor   int    `json:"factor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	jobID := s.registry.Submit(func(report func(float64, string), cancelled func() bool) (interface{}, error) {
		report(0, "upscale")
		data, err := s.upscaler.Upscale(context.Background(), []byte(req.ImageB64), req.Factor)
		if err != nil {
			return nil, err
		}
		return data, nil
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID})
}

// handlePlanetCellsJob submits a previewgen run over an already-decoded
// image (the image-driven mode of §4.14), distinct from
// /api/terrain/generate's procedural-or-image dispatch: this endpoint's
// contract is specifically "run cells over this picture".
func (s *Server) handlePlanetCellsJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Cols  int    `json:"cols"`
		Rows  int    `json:"rows"`
		Seed  int64  `json:"seed"`
		Image []byte `json:"image"`
	}
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

	pgReq := previewgen.Request{Cols: req.Cols, Rows: req.Rows, Seed: req.Seed, Image: req.Image}
	// previewgen.Request tags Image json:"-" (it is never echoed back in a
	// GenerateResponse), so the cache key is computed over a stand-in that
	// includes the image bytes — otherwise two different images at the same
	// cols/rows/seed would collide on the same cache key.
	key, err := cache.Key(struct {
		Cols  int    `json:"cols"`
		Rows  int    `json:"rows"`
		Seed  int64  `json:"seed"`
		Image []byte `json:"image"`
	}{req.Cols, req.Rows, req.Seed, req.Image})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
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

func (s *Server) handlePlanetSavedList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.cache.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handlePlanetSavedGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	data, ok, err := s.cache.Lookup(key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no cached entry for key")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
