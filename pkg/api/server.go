package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/PetJs/Soroban-Registry/pkg/audit"
	"github.com/PetJs/Soroban-Registry/pkg/multisig"
	"github.com/PetJs/Soroban-Registry/pkg/registry"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Server holds the services behind the operator API.
type Server struct {
	governance *multisig.Service
	executor   *multisig.Coordinator
	contracts  *registry.Service
	auditLog   *audit.Log
	logger     *slog.Logger
	ready      func(context.Context) error
}

// NewServer creates the API server over the governance and registry
// services.
func NewServer(governance *multisig.Service, executor *multisig.Coordinator, contracts *registry.Service) *Server {
	return &Server{
		governance: governance,
		executor:   executor,
		contracts:  contracts,
		logger:     slog.Default(),
	}
}

// WithAuditLog exposes the audit log on the API.
func (s *Server) WithAuditLog(log *audit.Log) *Server {
	s.auditLog = log
	return s
}

// WithLogger overrides the default logger.
func (s *Server) WithLogger(logger *slog.Logger) *Server {
	s.logger = logger
	return s
}

// WithReadyCheck installs the probe behind /readyz, typically a database
// ping.
func (s *Server) WithReadyCheck(check func(context.Context) error) *Server {
	s.ready = check
	return s
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/multisig/policies", s.handleCreatePolicy)
	mux.HandleFunc("GET /api/v1/multisig/policies", s.handleListPolicies)
	mux.HandleFunc("GET /api/v1/multisig/policies/{id}", s.handleGetPolicy)

	mux.HandleFunc("POST /api/v1/multisig/proposals", s.handleCreateProposal)
	mux.HandleFunc("GET /api/v1/multisig/proposals", s.handleListProposals)
	mux.HandleFunc("GET /api/v1/multisig/proposals/{id}", s.handleGetProposal)
	mux.HandleFunc("POST /api/v1/multisig/proposals/{id}/signatures", s.handleAddSignature)
	mux.HandleFunc("POST /api/v1/multisig/proposals/{id}/execute", s.handleExecuteProposal)

	mux.HandleFunc("POST /api/v1/contracts", s.handlePublishContract)
	mux.HandleFunc("GET /api/v1/contracts", s.handleListContracts)
	mux.HandleFunc("GET /api/v1/contracts/{contractId}", s.handleGetContract)
	mux.HandleFunc("GET /api/v1/contracts/{contractId}/versions", s.handleContractVersions)

	mux.HandleFunc("POST /api/v1/patches", s.handleCreatePatch)
	mux.HandleFunc("GET /api/v1/patches", s.handleListPatches)
	mux.HandleFunc("GET /api/v1/patches/{id}", s.handleGetPatch)
	mux.HandleFunc("POST /api/v1/patches/{id}/apply", s.handleApplyPatch)

	if s.auditLog != nil {
		mux.HandleFunc("GET /api/v1/audit", s.handleAuditLog)
		mux.HandleFunc("GET /api/v1/audit/verify", s.handleAuditVerify)
	}

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
}

// Handler builds the route mux wrapped in the given middleware, first
// listed outermost.
func (s *Server) Handler(mw ...Middleware) http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return Chain(mux, mw...)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", "error", err)
			WriteError(w, http.StatusServiceUnavailable, "Service Unavailable", "dependencies not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type auditLogResponse struct {
	Head    string        `json:"head"`
	Length  int           `json:"length"`
	Entries []audit.Entry `json:"entries"`
}

func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(r)
	if !ok {
		WriteErrorR(w, r, http.StatusBadRequest, "Bad Request", "limit must be a non-negative integer")
		return
	}
	if limit == 0 {
		limit = 50
	}
	writeJSON(w, http.StatusOK, auditLogResponse{
		Head:    s.auditLog.Head(),
		Length:  s.auditLog.Length(),
		Entries: s.auditLog.Recent(limit),
	})
}

func (s *Server) handleAuditVerify(w http.ResponseWriter, _ *http.Request) {
	ok, detail := s.auditLog.Verify()
	writeJSON(w, http.StatusOK, map[string]any{"valid": ok, "detail": detail})
}

// decode reads a JSON body into dst, bounding its size. On failure it
// writes the problem response and reports false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteErrorR(w, r, http.StatusBadRequest, "Bad Request", "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// queryLimit parses the optional limit query parameter. Zero means the
// handler's default.
func queryLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
