package server

import (
	"encoding/json"
	"net/http"

	"github.com/MeKo-Tech/worldforge/internal/worker"
)

// JobStatusResponse matches spec.md §6's "Job status" shape exactly:
// {jobId, status, progress, currentStage, result?, error?}.
type JobStatusResponse struct {
	JobID        string      `json:"jobId"`
	Status       string      `json:"status"`
	Progress     float64     `json:"progress"`
	CurrentStage string      `json:"currentStage"`
	Result       interface{} `json:"result,omitempty"`
	Error        string      `json:"error,omitempty"`
}

func jobStatusResponse(id string, j worker.Job) JobStatusResponse {
	return JobStatusResponse{
		JobID:        id,
		Status:       string(j.State),
		Progress:     j.Progress,
		CurrentStage: j.Stage,
		Result:       j.Result,
		Error:        j.Err,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
