package api_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PetJs/Soroban-Registry/pkg/api"
	"github.com/PetJs/Soroban-Registry/pkg/multisig"
	"github.com/PetJs/Soroban-Registry/pkg/registry"
)

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) api.ProblemDetail {
	t.Helper()
	var p api.ProblemDetail
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	return p
}

func TestWriteError_ProblemShape(t *testing.T) {
	w := httptest.NewRecorder()
	api.WriteError(w, http.StatusBadRequest, "Bad Request", "threshold must be at least 1")

	if got := w.Header().Get("Content-Type"); got != "application/problem+json" {
		t.Errorf("Content-Type = %q, want application/problem+json", got)
	}
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}

	p := decodeProblem(t, w)
	if p.Status != http.StatusBadRequest || p.Title != "Bad Request" {
		t.Errorf("problem = %+v", p)
	}
	if p.Detail != "threshold must be at least 1" {
		t.Errorf("detail = %q", p.Detail)
	}
	if !strings.HasSuffix(p.Type, "/errors/400") {
		t.Errorf("type = %q, want /errors/400 suffix", p.Type)
	}
}

func TestConvenienceWriters(t *testing.T) {
	cases := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		detail string
	}{
		{"bad request", func(w http.ResponseWriter) { api.WriteBadRequest(w, "missing contract_id") }, http.StatusBadRequest, "missing contract_id"},
		{"unauthorized default", func(w http.ResponseWriter) { api.WriteUnauthorized(w, "") }, http.StatusUnauthorized, "Authentication required"},
		{"forbidden default", func(w http.ResponseWriter) { api.WriteForbidden(w, "") }, http.StatusForbidden, "Insufficient permissions"},
		{"not found", func(w http.ResponseWriter) { api.WriteNotFound(w, "no such proposal") }, http.StatusNotFound, "no such proposal"},
		{"conflict", func(w http.ResponseWriter) { api.WriteConflict(w, "stale version") }, http.StatusConflict, "stale version"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tc.write(w)

			if w.Code != tc.status {
				t.Errorf("status = %d, want %d", w.Code, tc.status)
			}
			if p := decodeProblem(t, w); p.Detail != tc.detail {
				t.Errorf("detail = %q, want %q", p.Detail, tc.detail)
			}
		})
	}
}

func TestWriteMethodNotAllowed(t *testing.T) {
	w := httptest.NewRecorder()
	api.WriteMethodNotAllowed(w)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestWriteInternal_HidesCause(t *testing.T) {
	w := httptest.NewRecorder()
	api.WriteInternal(w, errors.New("pq: connection refused to host=10.0.0.1"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	p := decodeProblem(t, w)
	if strings.Contains(p.Detail, "10.0.0.1") || strings.Contains(p.Detail, "pq:") {
		t.Errorf("cause leaked to the client: %q", p.Detail)
	}
}

func TestWriteTooManyRequests_SetsRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	api.WriteTooManyRequests(w, 30)

	if got := w.Header().Get("Retry-After"); got != "30" {
		t.Errorf("Retry-After = %q, want 30", got)
	}
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
}

func TestWriteErrorR_EnrichesWithRequestContext(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/contracts/abc", nil)
	w := httptest.NewRecorder()
	w.Header().Set("X-Request-ID", "req-123")

	api.WriteErrorR(w, req, http.StatusBadRequest, "Bad Request", "bad input")

	p := decodeProblem(t, w)
	if p.Instance != "/api/v1/contracts/abc" {
		t.Fatalf("instance = %q, want /api/v1/contracts/abc", p.Instance)
	}
	if p.TraceID != "req-123" {
		t.Fatalf("trace_id = %q, want req-123", p.TraceID)
	}
}

func TestWriteDomainError_StatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{multisig.ErrNotFound, http.StatusNotFound},
		{registry.ErrNotFound, http.StatusNotFound},
		{multisig.ErrInvalidPolicy, http.StatusBadRequest},
		{multisig.ErrInvalidProposal, http.StatusBadRequest},
		{registry.ErrInvalidRecord, http.StatusBadRequest},
		{registry.ErrInvalidVersion, http.StatusBadRequest},
		{registry.ErrInvalidPatch, http.StatusBadRequest},
		{multisig.ErrUnauthorizedSigner, http.StatusForbidden},
		{multisig.ErrInvalidSignature, http.StatusUnprocessableEntity},
		{multisig.ErrDuplicateSignature, http.StatusConflict},
		{multisig.ErrProposalTerminal, http.StatusConflict},
		{multisig.ErrNotApproved, http.StatusConflict},
		{multisig.ErrExpired, http.StatusConflict},
		{multisig.ErrAlreadyExecuted, http.StatusConflict},
		{registry.ErrOutsideRollout, http.StatusConflict},
		{multisig.ErrExecutionFailed, http.StatusBadGateway},
		{errors.New("unmapped"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		req := httptest.NewRequest("POST", "/api/v1/multisig/proposals", nil)
		w := httptest.NewRecorder()

		api.WriteDomainError(w, req, fmt.Errorf("context: %w", tc.err))

		if w.Code != tc.status {
			t.Errorf("WriteDomainError(%v) status = %d, want %d", tc.err, w.Code, tc.status)
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
			t.Errorf("WriteDomainError(%v) content type = %q", tc.err, ct)
		}
	}
}
