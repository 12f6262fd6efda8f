package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alfredjeanlab/confengine/internal/model"
	"github.com/alfredjeanlab/confengine/internal/rules"
	"github.com/alfredjeanlab/confengine/internal/store"
)

// HTTPOptions configures the HTTP handler.
type HTTPOptions struct {
	// AuthToken, when non-empty, requires Authorization: Bearer <token> on
	// every route except /, /health and /metrics.
	AuthToken   string
	CORSOrigins []string
	Title       string
	Version     string
}

// Error codes carried in the error_code field of error bodies.
const (
	codeInvalidInput = "invalid_input"
	codeNotFound     = "not_found"
	codeDuplicateKey = "duplicate_key"
	codeUnauthorized = "unauthorized"
	codeInternal     = "internal"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
func (s *ConfigServer) NewHTTPHandler(opts HTTPOptions) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/configurations", s.handleListConfigurations)
	mux.HandleFunc("POST /api/v1/configurations", s.handleCreateConfiguration)
	mux.HandleFunc("GET /api/v1/configurations/parent-options", s.handleParentOptions)
	mux.HandleFunc("GET /api/v1/configurations/parent-options/by/{id}", s.handleParentOptions)
	mux.HandleFunc("GET /api/v1/configurations/{id}", s.handleGetConfiguration)
	mux.HandleFunc("PUT /api/v1/configurations/{id}", s.handleUpdateConfiguration)
	mux.HandleFunc("DELETE /api/v1/configurations/{id}", s.handleDeleteConfiguration)
	mux.HandleFunc("GET /api/v1/configurations/{id}/events", s.handleGetEvents)
	mux.HandleFunc("GET /api/v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /{$}", rootHandler(opts))

	var h http.Handler = AuthMiddleware(opts.AuthToken, mux)
	h = MetricsMiddleware(h)
	h = LoggingMiddleware(h)
	h = CorrelationMiddleware(h)
	if len(opts.CORSOrigins) > 0 {
		h = cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Correlation-ID", "X-Actor", "Last-Event-ID"},
			ExposedHeaders:   []string{"X-Correlation-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		})(h)
	}
	return h
}

func rootHandler(opts HTTPOptions) http.HandlerFunc {
	title := opts.Title
	if title == "" {
		title = "Configuration Engine"
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": title + " API",
			"version": opts.Version,
		})
	}
}

// handleHealth handles GET /health.
func (s *ConfigServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.health(r.Context()); err != nil {
		slog.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": message, "error_code": code})
}

// writeServiceError maps err to a status and writes it. Unexpected errors
// are logged and reported as a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ie inputError
		kt keyTakenError
		ve *model.ValidationError
		se *rules.SectionError
		de *model.DecodeError
	)
	switch {
	case errors.Is(err, errNotFound), errors.Is(err, sql.ErrNoRows):
		writeError(w, http.StatusNotFound, codeNotFound, errNotFound.Error())
	case errors.As(err, &kt):
		writeError(w, http.StatusBadRequest, codeDuplicateKey, kt.Error())
	case errors.Is(err, store.ErrDuplicateKey):
		writeError(w, http.StatusBadRequest, codeDuplicateKey, err.Error())
	case errors.As(err, &ie):
		writeError(w, http.StatusBadRequest, codeInvalidInput, ie.Error())
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, codeInvalidInput, ve.Error())
	case errors.As(err, &se):
		writeError(w, http.StatusBadRequest, codeInvalidInput, se.Error())
	case errors.As(err, &de):
		writeError(w, http.StatusBadRequest, codeInvalidInput, de.Error())
	default:
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal server error")
	}
}

// decodeBody decodes the JSON request body into v. Malformed rule values
// surface as their decode error, anything else as "invalid JSON body".
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var de *model.DecodeError
		if errors.As(err, &de) {
			return de
		}
		return inputError("invalid JSON body")
	}
	return nil
}
