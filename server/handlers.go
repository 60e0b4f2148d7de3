package server

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/r3co87/iris/fetch"
)

// sha256HexPattern matches a lowercase or uppercase SHA-256 hex digest.
var sha256HexPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// ErrorResponse is the JSON body for request-level failures.
type ErrorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string        `json:"status"`
	Browser       BrowserHealth `json:"browser"`
	Cache         CacheHealth   `json:"cache"`
	Version       string        `json:"version"`
	ActivePages   int64         `json:"active_pages"`
	UptimeSeconds float64       `json:"uptime_seconds"`
}

// BrowserHealth reports browser driver status.
type BrowserHealth struct {
	Up   bool   `json:"up"`
	Type string `json:"type"`
}

// CacheHealth reports response cache status and lifetime counters.
type CacheHealth struct {
	Up     bool  `json:"up"`
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// handleFetch handles POST /fetch. Fetch errors are carried in the
// response body; only malformed requests produce a non-200 status.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	var req fetch.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid JSON: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if err := req.Validate(); err != nil {
		s.sendError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	result := s.fetcher.Fetch(r.Context(), &req)

	if result.Error != nil {
		s.logger.Warn("fetch failed", "url", req.URL, "error_type", string(result.Error.Type), "message", result.Error.Message)
	} else {
		s.logger.Info("fetch completed", "url", result.URL, "status", result.StatusCode, "cached", result.Cached, "elapsed_ms", result.ElapsedMS)
	}

	s.sendJSON(w, result, http.StatusOK)
}

// handleBatch handles POST /batch: up to fetch.MaxBatchSize requests,
// results in request order.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req fetch.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid JSON: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if len(req.Requests) == 0 {
		s.sendError(w, "batch requires at least one request", http.StatusUnprocessableEntity)
		return
	}
	if len(req.Requests) > fetch.MaxBatchSize {
		s.sendError(w, "batch size exceeds maximum of 10", http.StatusUnprocessableEntity)
		return
	}
	for _, item := range req.Requests {
		if err := item.Validate(); err != nil {
			s.sendError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
	}

	result, err := s.fetcher.FetchBatch(r.Context(), req.Requests)
	if err != nil {
		s.sendError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	s.logger.Info("batch completed", "count", len(result.Results), "total_time_ms", result.TotalTimeMS)
	s.sendJSON(w, result, http.StatusOK)
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	hits, misses := s.cache.Stats()

	status := "ok"
	if !s.driver.Healthy() {
		status = "degraded"
	}

	s.sendJSON(w, &HealthResponse{
		Status: status,
		Browser: BrowserHealth{
			Up:   s.driver.Healthy(),
			Type: s.driver.Type(),
		},
		Cache: CacheHealth{
			Up:     s.cache.Ping(r.Context()),
			Hits:   hits,
			Misses: misses,
		},
		Version:       Version,
		ActivePages:   s.fetcher.ActivePages(),
		UptimeSeconds: time.Since(s.started).Seconds(),
	}, http.StatusOK)
}

// handleInvalidateCache handles DELETE /cache/{hash}. Idempotent: 204
// whether or not the entry existed, 400 on a malformed hash.
func (s *Server) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	hash := strings.ToLower(chi.URLParam(r, "hash"))
	if !sha256HexPattern.MatchString(hash) {
		s.sendError(w, "cache key must be a sha256 hex digest", http.StatusBadRequest)
		return
	}

	deleted := s.cache.Invalidate(r.Context(), hash)
	s.logger.Info("cache invalidated", "fingerprint", hash, "deleted", deleted)
	w.WriteHeader(http.StatusNoContent)
}

// sendJSON writes a JSON response with the given status code.
func (s *Server) sendJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// sendError writes a JSON error response.
func (s *Server) sendError(w http.ResponseWriter, message string, status int) {
	s.sendJSON(w, &ErrorResponse{Error: message, StatusCode: status}, status)
}
