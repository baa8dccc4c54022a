// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/acmecorp/hrdesk/internal/appconfig"
	"github.com/acmecorp/hrdesk/internal/attrition"
	"github.com/acmecorp/hrdesk/internal/fault"
	"github.com/acmecorp/hrdesk/internal/history"
	"github.com/acmecorp/hrdesk/internal/logging"
	"github.com/acmecorp/hrdesk/internal/metrics"
	"github.com/acmecorp/hrdesk/internal/rag"
	"github.com/acmecorp/hrdesk/internal/store"

	"github.com/xeipuuv/gojsonschema"
)

// maxBodyBytes caps the size of request bodies the API will read.
const maxBodyBytes = 1 << 20

// QueryService answers chat questions against the document index.
// *rag.Service satisfies it; tests substitute a scripted fake.
type QueryService interface {
	Query(ctx context.Context, req rag.QueryRequest) (rag.QueryResponse, error)
}

// Server exposes the chat, attrition, and operational endpoints over HTTP.
type Server struct {
	queries QueryService
	history *history.Store
	dataset *attrition.Dataset
	store   store.Store
	stats   *metrics.Aggregator

	addr            string
	backend         string
	shutdownTimeout time.Duration

	chatSchema      *gojsonschema.Schema
	attritionSchema *gojsonschema.Schema
}

// New wires the HTTP layer around its collaborators. It compiles the
// request schemas once so handlers only pay for validation.
func New(queries QueryService, hist *history.Store, dataset *attrition.Dataset, st store.Store, stats *metrics.Aggregator, cfg appconfig.Config) (*Server, error) {
	chatSchema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(chatRequestSchema))
	if err != nil {
		return nil, fmt.Errorf("compiling chat request schema: %w", err)
	}
	attritionSchema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(attritionRequestSchema))
	if err != nil {
		return nil, fmt.Errorf("compiling attrition request schema: %w", err)
	}

	return &Server{
		queries:         queries,
		history:         hist,
		dataset:         dataset,
		store:           st,
		stats:           stats,
		addr:            cfg.Addr(),
		backend:         cfg.Store.Backend,
		shutdownTimeout: cfg.ShutdownTimeout(),
		chatSchema:      chatSchema,
		attritionSchema: attritionSchema,
	}, nil
}

// Handler builds the route table for the API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chats", s.handleChat)
	mux.HandleFunc("GET /chats/{session_id}", s.handleGetSession)
	mux.HandleFunc("DELETE /chats/{session_id}", s.handleDeleteSession)
	mux.HandleFunc("POST /attrition/summary", s.handleAttritionSummary)
	mux.HandleFunc("GET /attrition/options", s.handleAttritionOptions)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	return accessLog(mux)
}

// Run serves the API until ctx is cancelled, then drains in-flight
// requests within the configured shutdown window.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logging.LogEvent("[SERVER] Listening on http://%s", s.addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logging.LogEvent("[SERVER] Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

// ErrResp is the JSON error envelope returned by every failing endpoint.
type ErrResp struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// okResp acknowledges requests that have no other payload.
type okResp struct {
	OK bool `json:"ok"`
}

// writeJSON marshals v with a status code. Encoding failures are logged
// rather than surfaced since the header has already been written.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.LogEvent("[SERVER] Failed to encode response: %v", err)
	}
}

// writeError maps the error's fault kind onto an HTTP status and emits
// the standard error envelope.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusForError(err), ErrResp{OK: false, Error: err.Error()})
}

func statusForError(err error) int {
	switch fault.KindOf(err) {
	case fault.KindValidation:
		return http.StatusBadRequest
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindUpstream:
		return http.StatusBadGateway
	case fault.KindStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// statusRecorder captures the status code written by a handler so the
// access log can report it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// accessLog records one line per request with method, path, and timing.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.LogAccess(r.Method, r.URL.Path, r.RemoteAddr, rec.status, time.Since(start).Milliseconds())
	})
}
