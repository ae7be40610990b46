// Package chi is the HTTP transport: request decoding, response DTOs and
// domain error mapping for the search API.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/toolvec/internal/cache"
	"github.com/kailas-cloud/toolvec/internal/domain"
)

// Searcher is the consumer interface for the search usecase.
type Searcher interface {
	Search(ctx context.Context, q domain.Query) (domain.Response, error)
	BreakerStates() map[string]string
}

// CacheStats exposes embedding cache counters for the stats endpoint.
type CacheStats interface {
	Stats() cache.Stats
}

// ResultCacheLen exposes the result cache size for the stats endpoint.
type ResultCacheLen interface {
	Len() int
}

// EmbeddingChecker probes the embedding provider.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server handles the HTTP API.
type Server struct {
	search       Searcher
	embCache     CacheStats
	resCache     ResultCacheLen
	pinger       Pinger
	embedChecker EmbeddingChecker
	logger       *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	search Searcher,
	embCache CacheStats,
	resCache ResultCacheLen,
	pinger Pinger,
	embedChecker EmbeddingChecker,
	logger *zap.Logger,
) *Server {
	return &Server{
		search:       search,
		embCache:     embCache,
		resCache:     resCache,
		pinger:       pinger,
		embedChecker: embedChecker,
		logger:       logger,
	}
}

// Routes mounts the API on a router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/search", s.handleSearch)
	r.Get("/v1/stats", s.handleStats)
	r.Get("/health", s.handleHealth)
}

// --- DTOs ---

type searchRequest struct {
	Query       string            `json:"query"`
	VectorTypes []string          `json:"vector_types,omitempty"`
	Limit       int               `json:"limit,omitempty"`
	Filter      map[string]string `json:"filter,omitempty"`
	Strategy    string            `json:"strategy,omitempty"`
	RRFK        int               `json:"rrf_k,omitempty"`
}

type sourceDTO struct {
	VectorType string  `json:"vector_type"`
	Score      float64 `json:"score"`
	Rank       int     `json:"rank"`
	Weight     float64 `json:"weight,omitempty"`
}

type itemDTO struct {
	ID         string         `json:"id"`
	Score      float64        `json:"score"`
	Payload    map[string]any `json:"payload,omitempty"`
	MergedFrom int            `json:"merged_from"`
	Sources    []sourceDTO    `json:"sources,omitempty"`
}

type typeMetricsDTO struct {
	Count     int     `json:"count"`
	LatencyMs int64   `json:"latency_ms"`
	AvgScore  float64 `json:"avg_score"`
	Error     string  `json:"error,omitempty"`
}

type searchResponse struct {
	Items       []itemDTO                 `json:"items"`
	PerType     map[string]typeMetricsDTO `json:"per_type"`
	TotalTimeMs int64                     `json:"total_time_ms"`
	Cached      bool                      `json:"cached"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- Handlers ---

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	q := domain.Query{
		Text:        req.Query,
		VectorTypes: req.VectorTypes,
		Limit:       req.Limit,
		Filter:      req.Filter,
		Strategy:    domain.Strategy(req.Strategy),
		RRFK:        req.RRFK,
	}
	if q.Limit == 0 {
		q.Limit = 10
	}

	resp, err := s.search.Search(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSearchResponse(resp))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.embCache.Stats()

	writeJSON(w, http.StatusOK, map[string]any{
		"embedding_cache": map[string]any{
			"entries":           stats.Size,
			"memory_bytes":      stats.MemoryBytes,
			"hits":              stats.Hits,
			"misses":            stats.Misses,
			"semantic_hits":     stats.SemanticHits,
			"hit_rate":          stats.HitRate,
			"semantic_hit_rate": stats.SemanticHitRate,
			"evictions":         stats.Evictions,
			"compressions":      stats.Compressions,
			"avg_ttl_sec":       stats.AvgTTL.Seconds(),
		},
		"result_cache": map[string]any{
			"entries": s.resCache.Len(),
		},
		"breakers": s.search.BreakerStates(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"database":  "ok",
		"embedding": "ok",
	}
	status := "healthy"
	httpStatus := http.StatusOK

	if err := s.pinger.Ping(r.Context()); err != nil {
		checks["database"] = err.Error()
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}
	if s.embedChecker != nil {
		if err := s.embedChecker.HealthCheck(r.Context()); err != nil {
			checks["embedding"] = err.Error()
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": status,
		"checks": checks,
	})
}

// handleDomainError maps sentinel errors to HTTP statuses.
func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, "invalid_query", safeDomainMessage(err))
	case errors.Is(err, domain.ErrCircuitOpen):
		writeError(w, http.StatusServiceUnavailable, "circuit_open", safeDomainMessage(err))
	case errors.Is(err, domain.ErrEmbedding):
		writeError(w, http.StatusBadGateway, "embedding_failed", safeDomainMessage(err))
	case errors.Is(err, domain.ErrNoResults):
		writeError(w, http.StatusServiceUnavailable, "all_vector_types_failed", safeDomainMessage(err))
	case errors.Is(err, domain.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "timeout", safeDomainMessage(err))
	default:
		s.logger.Error("Unhandled search error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func toSearchResponse(resp domain.Response) searchResponse {
	items := make([]itemDTO, len(resp.Items))
	for i, item := range resp.Items {
		sources := make([]sourceDTO, len(item.Sources))
		for j, src := range item.Sources {
			sources[j] = sourceDTO{
				VectorType: src.VectorType,
				Score:      src.Score,
				Rank:       src.Rank,
				Weight:     src.Weight,
			}
		}
		items[i] = itemDTO{
			ID:         item.ID,
			Score:      item.CombinedScore,
			Payload:    item.Payload,
			MergedFrom: item.MergedFrom,
			Sources:    sources,
		}
	}

	perType := make(map[string]typeMetricsDTO, len(resp.PerType))
	for vt, m := range resp.PerType {
		perType[vt] = typeMetricsDTO{
			Count:     m.Count,
			LatencyMs: m.Latency.Milliseconds(),
			AvgScore:  m.AvgScore,
			Error:     m.Error,
		}
	}

	return searchResponse{
		Items:       items,
		PerType:     perType,
		TotalTimeMs: resp.TotalTime.Milliseconds(),
		Cached:      resp.Cached,
	}
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidQuery,
		domain.ErrCircuitOpen,
		domain.ErrEmbedding,
		domain.ErrNoResults,
		domain.ErrTimeout,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
