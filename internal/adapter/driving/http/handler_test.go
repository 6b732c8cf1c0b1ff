package httphandler_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "github.com/ericfisherdev/forumbridge/internal/adapter/driving/http"
	"github.com/ericfisherdev/forumbridge/internal/application"
	"github.com/ericfisherdev/forumbridge/internal/domain/model"
)

// --- Mock implementations ---

type mockCredentialStatus struct {
	status application.CredentialStatus
}

func (m *mockCredentialStatus) Status() application.CredentialStatus { return m.status }

type mockMappings struct {
	entries []model.ThreadIssue
}

func (m *mockMappings) Snapshot() []model.ThreadIssue { return m.entries }
func (m *mockMappings) Len() int                      { return len(m.entries) }

// panicMappings panics on every call to exercise the recovery middleware.
type panicMappings struct{}

func (panicMappings) Snapshot() []model.ThreadIssue { panic("snapshot exploded") }
func (panicMappings) Len() int                      { return 0 }

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupMux(creds *mockCredentialStatus, mappings httphandler.MappingSource) http.Handler {
	clk := clock.NewMock()
	clk.Set(now)
	logger := slog.New(slog.DiscardHandler)
	return httphandler.NewServeMux(httphandler.NewHandler(creds, mappings, clk, logger), logger)
}

func TestHealth_OK(t *testing.T) {
	creds := &mockCredentialStatus{status: application.CredentialStatus{
		Initialized:   true,
		ExpiresAt:     now.Add(50 * time.Minute),
		NextRenewalAt: now.Add(34 * time.Minute),
	}}
	mux := setupMux(creds, &mockMappings{entries: []model.ThreadIssue{{ThreadID: 1, IssueNumber: 2}}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var resp httphandler.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "2026-03-01T12:00:00Z", resp.Time)
	assert.Equal(t, "2026-03-01T12:50:00Z", resp.CredentialExpiresAt)
	assert.Equal(t, "2026-03-01T12:34:00Z", resp.NextRenewalAt)
	assert.Equal(t, 1, resp.Mappings)
}

func TestHealth_Degraded(t *testing.T) {
	tests := []struct {
		name   string
		status application.CredentialStatus
	}{
		{name: "not initialized", status: application.CredentialStatus{}},
		{name: "inside safety margin", status: application.CredentialStatus{
			Initialized:      true,
			ExpiresAt:        now.Add(10 * time.Minute),
			LastRenewalError: "github app authentication failed: 500",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := setupMux(&mockCredentialStatus{status: tt.status}, &mockMappings{})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

			var resp httphandler.HealthResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, "degraded", resp.Status)
			assert.Equal(t, tt.status.LastRenewalError, resp.LastRenewalError)
		})
	}
}

func TestListMappings(t *testing.T) {
	mappings := &mockMappings{entries: []model.ThreadIssue{
		{ThreadID: 1098765432109876543, IssueNumber: 12},
		{ThreadID: 1098765432109876544, IssueNumber: 15},
	}}
	mux := setupMux(&mockCredentialStatus{}, mappings)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/mappings", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"thread_id":"1098765432109876543","issue_number":12},
		{"thread_id":"1098765432109876544","issue_number":15}
	]`, rec.Body.String())
}

func TestListMappings_Empty(t *testing.T) {
	mux := setupMux(&mockCredentialStatus{}, &mockMappings{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/mappings", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestMethodNotAllowed(t *testing.T) {
	mux := setupMux(&mockCredentialStatus{}, &mockMappings{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/mappings", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	mux := setupMux(&mockCredentialStatus{}, panicMappings{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/mappings", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}
