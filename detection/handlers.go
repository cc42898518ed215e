package detection

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
)

type CheckRequest struct {
	URL           string `json:"url"`
	IncludeVector bool   `json:"include_vector,omitempty"`
}

type BatchRequest struct {
	URLs []string `json:"urls"`
}

type errorResponse struct {
	Error     string `json:"error"`
	ErrorType string `json:"error_type"`
}

// Handlers exposes the pipeline over HTTP.
type Handlers struct {
	pipeline *Pipeline
	store    *ModelStore
}

func NewHandlers(pl *Pipeline, store *ModelStore) *Handlers {
	return &Handlers{pipeline: pl, store: store}
}

// Check classifies a single URL.
func (h *Handlers) Check(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "BadRequest")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url required", "BadRequest")
		return
	}

	result, err := h.pipeline.CheckURL(r.Context(), req.URL)
	if err != nil {
		status, kind := statusFor(err)
		if kind == "SchemaMismatch" {
			// Drift between binary and artifact; every request will hit
			// this until the deployment is fixed.
			log.Printf("[PIPELINE] FATAL schema drift: %v", err)
		}
		writeError(w, status, err.Error(), kind)
		return
	}

	if !req.IncludeVector {
		result.Vector = nil
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// Batch classifies a list of URLs.
func (h *Handlers) Batch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "BadRequest")
		return
	}
	if len(req.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "urls required", "BadRequest")
		return
	}

	results := h.pipeline.CheckBatch(r.Context(), req.URLs)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

// Health reports bundle state so orchestration can gate traffic on a valid
// model load.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	bundle, err := h.store.Bundle()
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{"ready": false, "error": err.Error()})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"ready":    true,
		"version":  bundle.Version,
		"features": bundle.Schema.Len(),
	})
}

func writeError(w http.ResponseWriter, status int, msg, kind string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg, ErrorType: kind})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusUnprocessableEntity, "InvalidInput"
	case errors.Is(err, ErrSchemaMismatch):
		return http.StatusInternalServerError, "SchemaMismatch"
	case errors.Is(err, ErrArtifactIncompatible), errors.Is(err, ErrModelLoad):
		return http.StatusServiceUnavailable, "ModelUnavailable"
	default:
		return http.StatusInternalServerError, "InternalError"
	}
}

func errorType(err error) string {
	_, kind := statusFor(err)
	return kind
}
