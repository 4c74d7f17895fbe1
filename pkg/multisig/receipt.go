package multisig

import (
	"crypto/ed25519"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/PetJs/Soroban-Registry/pkg/canonicalize"
)

// ReceiptSigner signs execution receipts so operators can attest that an
// outcome was produced by this registry. Implementations may back onto an
// in-memory key, a derived key, or an external KMS.
type ReceiptSigner interface {
	Sign(msg []byte) ([]byte, error)
	PublicKey() ed25519.PublicKey
}

// ExecutionReceipt is an immutable attestation of an execution outcome.
// ContentHash commits to the receipt body; Signature, when present, is the
// registry key's signature over the content hash.
type ExecutionReceipt struct {
	ReceiptID   string          `json:"receipt_id"`
	ProposalID  string          `json:"proposal_id"`
	ContractID  string          `json:"contract_id"`
	WasmHash    string          `json:"wasm_hash"`
	Network     string          `json:"network"`
	Deployment  DeploymentState `json:"deployment"`
	Outcome     string          `json:"outcome,omitempty"`
	Error       string          `json:"error,omitempty"`
	ExecutedAt  time.Time       `json:"executed_at"`
	ContentHash string          `json:"content_hash"`
	Signature   string          `json:"signature,omitempty"`
	SignedBy    string          `json:"signed_by,omitempty"`
}

// buildReceipt produces the receipt for an executed proposal, signing it
// when a receipt signer is configured. Hash or signing failures degrade to
// an unsigned receipt; the execution outcome is already durable.
func (c *Coordinator) buildReceipt(proposal *Proposal) *ExecutionReceipt {
	executedAt := time.Time{}
	if proposal.ExecutedAt != nil {
		executedAt = *proposal.ExecutedAt
	}
	receipt := &ExecutionReceipt{
		ReceiptID:  uuid.New().String(),
		ProposalID: proposal.ID,
		ContractID: proposal.ContractID,
		WasmHash:   proposal.WasmHash,
		Network:    proposal.Network,
		Deployment: proposal.DeploymentState,
		Outcome:    proposal.DeployOutcome,
		Error:      proposal.ExecutionError,
		ExecutedAt: executedAt,
	}

	hashable := struct {
		ProposalID string          `json:"proposal_id"`
		ContractID string          `json:"contract_id"`
		WasmHash   string          `json:"wasm_hash"`
		Network    string          `json:"network"`
		Deployment DeploymentState `json:"deployment"`
		Outcome    string          `json:"outcome,omitempty"`
	}{
		ProposalID: receipt.ProposalID,
		ContractID: receipt.ContractID,
		WasmHash:   receipt.WasmHash,
		Network:    receipt.Network,
		Deployment: receipt.Deployment,
		Outcome:    receipt.Outcome,
	}
	hash, err := canonicalize.CanonicalHash(hashable)
	if err != nil {
		c.logger.Error("receipt content hash failed", "proposal_id", proposal.ID, "error", err)
		return receipt
	}
	receipt.ContentHash = "sha256:" + hash

	if c.signer == nil {
		return receipt
	}
	sig, err := c.signer.Sign([]byte(receipt.ContentHash))
	if err != nil {
		c.logger.Error("receipt signing failed", "proposal_id", proposal.ID, "error", err)
		return receipt
	}
	receipt.Signature = hex.EncodeToString(sig)
	receipt.SignedBy = hex.EncodeToString(c.signer.PublicKey())
	return receipt
}
