// Package server exposes the orchestrator over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/jobsearch-cli/internal/aggregate"
	"github.com/sells-group/jobsearch-cli/internal/model"
)

const maxBodyBytes = 1 << 20

// Aggregator is the part of *aggregate.Orchestrator the API needs.
type Aggregator interface {
	Aggregate(ctx context.Context, q model.Query) (*model.Response, error)
	Sources() []aggregate.SourceStatus
}

// NewRouter builds the HTTP API. An empty corsOrigins allows every origin.
func NewRouter(agg Aggregator, corsOrigins []string) http.Handler {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	h := &handlers{agg: agg}
	r.Get("/health", h.health)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/jobs/search", h.searchJobs)
		r.Post("/contacts/search", h.searchContacts)
		r.Get("/sources", h.sources)
	})
	return r
}

type handlers struct {
	agg Aggregator
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) searchJobs(w http.ResponseWriter, r *http.Request) {
	var jq model.JobQuery
	if !decode(w, r, &jq) {
		return
	}
	h.aggregate(w, r, model.NewJobQuery(jq))
}

func (h *handlers) searchContacts(w http.ResponseWriter, r *http.Request) {
	var cq model.ContactQuery
	if !decode(w, r, &cq) {
		return
	}
	h.aggregate(w, r, model.NewContactQuery(cq))
}

func (h *handlers) aggregate(w http.ResponseWriter, r *http.Request, q model.Query) {
	resp, err := h.agg.Aggregate(r.Context(), q)
	switch {
	case errors.Is(err, model.ErrMalformedQuery):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		zap.L().Error("server: aggregate failed",
			zap.String("kind", string(q.Kind)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "aggregation failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) sources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sources": h.agg.Sources()})
}

// decode reads a JSON body into v, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
