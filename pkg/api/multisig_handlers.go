package api

import (
	"net/http"

	"github.com/PetJs/Soroban-Registry/pkg/deploy"
	"github.com/PetJs/Soroban-Registry/pkg/multisig"
)

type createPolicyRequest struct {
	Name          string   `json:"name"`
	Signers       []string `json:"signers"`
	Threshold     int      `json:"threshold"`
	ExpirySeconds int64    `json:"expiry_secs,omitempty"`
	CreatedBy     string   `json:"created_by"`
}

func (s *Server) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req createPolicyRequest
	if !s.decode(w, r, &req) {
		return
	}

	policy, err := s.governance.CreatePolicy(r.Context(),
		req.Name, req.Signers, req.Threshold, req.ExpirySeconds, req.CreatedBy)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, policy)
}

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	policy, err := s.governance.GetPolicy(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(r)
	if !ok {
		WriteErrorR(w, r, http.StatusBadRequest, "Bad Request", "limit must be a non-negative integer")
		return
	}
	policies, err := s.governance.ListPolicies(r.Context(), limit)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, policies)
}

type createProposalRequest struct {
	PolicyID     string `json:"policy_id"`
	ContractName string `json:"contract_name"`
	ContractID   string `json:"contract_id"`
	WasmHash     string `json:"wasm_hash"`
	Network      string `json:"network,omitempty"`
	Proposer     string `json:"proposer"`
	Description  string `json:"description,omitempty"`
}

func (s *Server) handleCreateProposal(w http.ResponseWriter, r *http.Request) {
	var req createProposalRequest
	if !s.decode(w, r, &req) {
		return
	}
	network, err := deploy.ResolveNetwork(req.Network)
	if err != nil {
		WriteErrorR(w, r, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	proposal, err := s.governance.CreateProposal(r.Context(),
		req.PolicyID, req.ContractName, req.ContractID, req.WasmHash,
		network.String(), req.Proposer, req.Description)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, proposal)
}

func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	proposal, err := s.governance.GetProposal(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proposal)
}

func (s *Server) handleListProposals(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(r)
	if !ok {
		WriteErrorR(w, r, http.StatusBadRequest, "Bad Request", "limit must be a non-negative integer")
		return
	}

	var statusFilter *multisig.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := multisig.ParseStatus(raw)
		if !ok {
			WriteErrorR(w, r, http.StatusBadRequest, "Bad Request",
				"status must be one of PENDING, APPROVED, EXECUTED, EXPIRED")
			return
		}
		statusFilter = &status
	}

	proposals, err := s.governance.ListProposals(r.Context(), statusFilter, limit)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proposals)
}

type addSignatureRequest struct {
	Signer        string `json:"signer"`
	SignatureData string `json:"signature_data,omitempty"`
}

func (s *Server) handleAddSignature(w http.ResponseWriter, r *http.Request) {
	var req addSignatureRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Signer == "" {
		WriteErrorR(w, r, http.StatusBadRequest, "Bad Request", "signer is required")
		return
	}

	proposal, err := s.governance.AddSignature(r.Context(), r.PathValue("id"), req.Signer, req.SignatureData)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proposal)
}

func (s *Server) handleExecuteProposal(w http.ResponseWriter, r *http.Request) {
	result, err := s.executor.Execute(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
