// Package api is the HTTP operator surface: governance and registry
// handlers, RFC 7807 error responses, and the request middleware stack.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/PetJs/Soroban-Registry/pkg/artifacts"
	"github.com/PetJs/Soroban-Registry/pkg/multisig"
	"github.com/PetJs/Soroban-Registry/pkg/registry"
)

// ProblemDetail implements RFC 7807 (Problem Details for HTTP APIs).
// All API error responses use this format.
type ProblemDetail struct {
	// Type is a URI reference that identifies the problem type.
	Type string `json:"type"`
	// Title is a short, human-readable summary of the problem type.
	Title string `json:"title"`
	// Status is the HTTP status code.
	Status int `json:"status"`
	// Detail is a human-readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`
	// Instance is a URI reference identifying the specific occurrence.
	Instance string `json:"instance,omitempty"`
	// TraceID links the response to the request that produced it.
	TraceID string `json:"trace_id,omitempty"`
}

// Error implements the error interface.
func (p *ProblemDetail) Error() string {
	return fmt.Sprintf("%s: %s", p.Title, p.Detail)
}

// WriteError writes an RFC 7807 Problem Detail JSON response.
func WriteError(w http.ResponseWriter, status int, title, detail string) {
	problem := &ProblemDetail{
		Type:   fmt.Sprintf("https://soroban-registry.dev/errors/%d", status),
		Title:  title,
		Status: status,
		Detail: detail,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem)
}

// WriteErrorR writes an RFC 7807 response enriched with request context
// (trace_id from X-Request-ID, instance from the request path).
func WriteErrorR(w http.ResponseWriter, r *http.Request, status int, title, detail string) {
	problem := &ProblemDetail{
		Type:     fmt.Sprintf("https://soroban-registry.dev/errors/%d", status),
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
		TraceID:  w.Header().Get("X-Request-ID"),
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem)
}

// WriteBadRequest writes a 400 error response.
func WriteBadRequest(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusBadRequest, "Bad Request", detail)
}

// WriteUnauthorized writes a 401 error response.
func WriteUnauthorized(w http.ResponseWriter, detail string) {
	if detail == "" {
		detail = "Authentication required"
	}
	WriteError(w, http.StatusUnauthorized, "Unauthorized", detail)
}

// WriteForbidden writes a 403 error response.
func WriteForbidden(w http.ResponseWriter, detail string) {
	if detail == "" {
		detail = "Insufficient permissions"
	}
	WriteError(w, http.StatusForbidden, "Forbidden", detail)
}

// WriteNotFound writes a 404 error response.
func WriteNotFound(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusNotFound, "Not Found", detail)
}

// WriteMethodNotAllowed writes a 405 error response.
func WriteMethodNotAllowed(w http.ResponseWriter) {
	WriteError(w, http.StatusMethodNotAllowed, "Method Not Allowed", "This endpoint does not support the request method")
}

// WriteConflict writes a 409 error response.
func WriteConflict(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusConflict, "Conflict", detail)
}

// WriteTooManyRequests writes a 429 error response with a Retry-After header.
func WriteTooManyRequests(w http.ResponseWriter, retryAfterSecs int) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
	WriteError(w, http.StatusTooManyRequests, "Too Many Requests", "Rate limit exceeded, retry after the indicated interval")
}

// WriteInternal writes a 500 error response.
// The err parameter is logged but never exposed to the client.
func WriteInternal(w http.ResponseWriter, err error) {
	slog.Error("internal server error", "error", err)
	WriteError(w, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred. Please try again later.")
}

// WriteDomainError maps governance and registry sentinel errors onto
// problem responses. Domain errors carry operator-facing detail verbatim;
// anything unrecognized is treated as internal.
func WriteDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, multisig.ErrNotFound),
		errors.Is(err, registry.ErrNotFound),
		errors.Is(err, artifacts.ErrNotFound):
		WriteErrorR(w, r, http.StatusNotFound, "Not Found", err.Error())

	case errors.Is(err, multisig.ErrInvalidPolicy),
		errors.Is(err, multisig.ErrInvalidProposal),
		errors.Is(err, registry.ErrInvalidRecord),
		errors.Is(err, registry.ErrInvalidVersion),
		errors.Is(err, registry.ErrInvalidPatch):
		WriteErrorR(w, r, http.StatusBadRequest, "Bad Request", err.Error())

	case errors.Is(err, multisig.ErrUnauthorizedSigner):
		WriteErrorR(w, r, http.StatusForbidden, "Forbidden", err.Error())

	case errors.Is(err, multisig.ErrInvalidSignature):
		WriteErrorR(w, r, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())

	case errors.Is(err, multisig.ErrDuplicateSignature),
		errors.Is(err, multisig.ErrProposalTerminal),
		errors.Is(err, multisig.ErrNotApproved),
		errors.Is(err, multisig.ErrExpired),
		errors.Is(err, multisig.ErrAlreadyExecuted),
		errors.Is(err, registry.ErrOutsideRollout):
		WriteErrorR(w, r, http.StatusConflict, "Conflict", err.Error())

	case errors.Is(err, multisig.ErrExecutionFailed):
		// The Executed transition committed but the deployment action did
		// not succeed. Operators inspect the proposal for the recorded
		// outcome.
		WriteErrorR(w, r, http.StatusBadGateway, "Bad Gateway", err.Error())

	default:
		WriteInternal(w, err)
	}
}
