package multisig

import (
	"github.com/PetJs/Soroban-Registry/pkg/canonicalize"
)

// signingPayload is the canonical tuple a signature artifact commits to.
// It is fixed for the proposal's lifetime, so a signature can never be
// replayed against a different proposal, contract, artifact, or network.
type signingPayload struct {
	PolicyID   string `json:"policy_id"`
	ContractID string `json:"contract_id"`
	WasmHash   string `json:"wasm_hash"`
	Network    string `json:"network"`
}

// SigningPayload returns the canonical byte form (RFC 8785) of the
// proposal's approval payload. Signers sign these bytes; verifiers verify
// against them.
func SigningPayload(p *Proposal) ([]byte, error) {
	return canonicalize.JCS(signingPayload{
		PolicyID:   p.PolicyID,
		ContractID: p.ContractID,
		WasmHash:   p.WasmHash,
		Network:    p.Network,
	})
}
