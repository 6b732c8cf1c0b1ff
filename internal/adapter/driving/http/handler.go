// Package httphandler serves the read-only operations API.
package httphandler

import (
	"log/slog"
	"net/http"

	"github.com/benbjohnson/clock"

	"github.com/ericfisherdev/forumbridge/internal/application"
	"github.com/ericfisherdev/forumbridge/internal/domain/model"
)

const (
	healthPath   = "/api/v1/health"
	mappingsPath = "/api/v1/mappings"
)

// CredentialStatusSource reports the installation credential lifecycle.
type CredentialStatusSource interface {
	Status() application.CredentialStatus
}

// MappingSource exposes the thread-to-issue mapping read-only.
type MappingSource interface {
	Snapshot() []model.ThreadIssue
	Len() int
}

// Handler is the HTTP driving adapter for health checks and mapping inspection.
type Handler struct {
	creds    CredentialStatusSource
	mappings MappingSource
	clock    clock.Clock
	logger   *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(creds CredentialStatusSource, mappings MappingSource, clk clock.Clock, logger *slog.Logger) *Handler {
	return &Handler{
		creds:    creds,
		mappings: mappings,
		clock:    clk,
		logger:   logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+healthPath, h.Health)
	mux.HandleFunc("GET "+mappingsPath, h.ListMappings)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health handles GET /api/v1/health. It answers 503 while no usable
// installation credential is installed, which happens before the first
// exchange and after renewals have failed long enough.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	now := h.clock.Now()
	status := h.creds.Status()

	resp := HealthResponse{
		Status:              "ok",
		Time:                formatTime(now),
		CredentialExpiresAt: formatTime(status.ExpiresAt),
		NextRenewalAt:       formatTime(status.NextRenewalAt),
		LastRenewalError:    status.LastRenewalError,
		Mappings:            h.mappings.Len(),
	}

	code := http.StatusOK
	if !status.Initialized || status.ExpiresAt.Sub(now) < application.SafetyMargin {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, resp)
}

// ListMappings handles GET /api/v1/mappings, ordered by thread ID.
func (h *Handler) ListMappings(w http.ResponseWriter, _ *http.Request) {
	entries := h.mappings.Snapshot()

	resp := make([]MappingResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toMappingResponse(e))
	}

	writeJSON(w, http.StatusOK, resp)
}
