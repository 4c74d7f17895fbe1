package api

import (
	"net/http"
	"strconv"

	"github.com/PetJs/Soroban-Registry/pkg/registry"
)

func (s *Server) handlePublishContract(w http.ResponseWriter, r *http.Request) {
	var in registry.PublishInput
	if !s.decode(w, r, &in) {
		return
	}

	record, err := s.contracts.Publish(r.Context(), in)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleGetContract(w http.ResponseWriter, r *http.Request) {
	record, err := s.contracts.Get(r.Context(), r.PathValue("contractId"))
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleContractVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.contracts.Versions(r.Context(), r.PathValue("contractId"))
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

// handleListContracts serves both listing and search. Any of the query,
// category or verified parameters switches the request to relevance-ranked
// search; a bare GET lists by recency.
func (s *Server) handleListContracts(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(r)
	if !ok {
		WriteErrorR(w, r, http.StatusBadRequest, "Bad Request", "limit must be a non-negative integer")
		return
	}

	q := r.URL.Query()
	if q.Has("query") || q.Has("category") || q.Has("verified") {
		verified := false
		if raw := q.Get("verified"); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				WriteErrorR(w, r, http.StatusBadRequest, "Bad Request", "verified must be a boolean")
				return
			}
			verified = v
		}

		records, err := s.contracts.Search(r.Context(), registry.SearchQuery{
			Query:        q.Get("query"),
			Category:     q.Get("category"),
			VerifiedOnly: verified,
			Limit:        limit,
		})
		if err != nil {
			WriteDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, records)
		return
	}

	records, err := s.contracts.List(r.Context(), limit)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleCreatePatch(w http.ResponseWriter, r *http.Request) {
	var in registry.PatchInput
	if !s.decode(w, r, &in) {
		return
	}

	patch, err := s.contracts.CreatePatch(r.Context(), in)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, patch)
}

func (s *Server) handleGetPatch(w http.ResponseWriter, r *http.Request) {
	patch, err := s.contracts.GetPatch(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, patch)
}

func (s *Server) handleListPatches(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(r)
	if !ok {
		WriteErrorR(w, r, http.StatusBadRequest, "Bad Request", "limit must be a non-negative integer")
		return
	}
	patches, err := s.contracts.ListPatches(r.Context(), limit)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, patches)
}

type applyPatchRequest struct {
	ContractID string `json:"contract_id"`
}

func (s *Server) handleApplyPatch(w http.ResponseWriter, r *http.Request) {
	var req applyPatchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.ContractID == "" {
		WriteErrorR(w, r, http.StatusBadRequest, "Bad Request", "contract_id is required")
		return
	}

	app, err := s.contracts.ApplyPatch(r.Context(), req.ContractID, r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}
