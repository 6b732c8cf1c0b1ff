package httphandler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/forumbridge/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it with the given status code. If
// marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON body of the health endpoint.
type HealthResponse struct {
	Status              string `json:"status"`
	Time                string `json:"time"`
	CredentialExpiresAt string `json:"credential_expires_at,omitempty"`
	NextRenewalAt       string `json:"next_renewal_at,omitempty"`
	LastRenewalError    string `json:"last_renewal_error,omitempty"`
	Mappings            int    `json:"mappings"`
}

// MappingResponse is one thread-to-issue entry. Thread IDs are strings
// because snowflakes do not fit a JavaScript number.
type MappingResponse struct {
	ThreadID    string `json:"thread_id"`
	IssueNumber int    `json:"issue_number"`
}

func toMappingResponse(e model.ThreadIssue) MappingResponse {
	return MappingResponse{
		ThreadID:    strconv.FormatUint(e.ThreadID, 10),
		IssueNumber: e.IssueNumber,
	}
}

// formatTime renders t as RFC 3339 in UTC, or "" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
