// Package multisig implements the governance engine that gates contract
// deployment behind multi-party signature policies.
//
// A Policy names a fixed set of authorized signers and the approval
// threshold they must reach. A Proposal carries one immutable deployment
// payload and accumulates signatures until it is approved, executed, or
// expired. All coordination between concurrent callers happens through
// the persisted proposal record, guarded by version-conditional writes.
package multisig

import (
	"slices"
	"strings"
	"time"
)

// Status is the lifecycle state of a proposal.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusExecuted Status = "EXECUTED"
	StatusExpired  Status = "EXPIRED"
)

// Terminal reports whether no further transition may leave this status.
func (s Status) Terminal() bool {
	return s == StatusExecuted || s == StatusExpired
}

// ParseStatus converts boundary input (CLI flags, query params) into a
// Status. Matching is case-insensitive.
func ParseStatus(raw string) (Status, bool) {
	switch Status(strings.ToUpper(strings.TrimSpace(raw))) {
	case StatusPending:
		return StatusPending, true
	case StatusApproved:
		return StatusApproved, true
	case StatusExecuted:
		return StatusExecuted, true
	case StatusExpired:
		return StatusExpired, true
	}
	return "", false
}

// DeploymentState records the outcome of the deployment action attached to
// an executed proposal. It qualifies StatusExecuted and never affects the
// state machine itself.
type DeploymentState string

const (
	// DeploymentPending is set inside the execute transition, before the
	// deployment action has been invoked.
	DeploymentPending DeploymentState = "PENDING"
	// DeploymentSucceeded means the deployment action returned success.
	DeploymentSucceeded DeploymentState = "SUCCEEDED"
	// DeploymentFailed means the deployment action returned an error.
	DeploymentFailed DeploymentState = "FAILED"
	// DeploymentUnknown means the deployment action timed out or was
	// cancelled after the transition committed; the on-chain outcome is
	// indeterminate and must be checked manually.
	DeploymentUnknown DeploymentState = "UNKNOWN"
)

// Policy is an immutable multi-party approval rule. Once created it is
// never mutated; changing signers or threshold means creating a new policy.
type Policy struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Signers       []string  `json:"signers"`
	Threshold     int       `json:"threshold"`
	ExpirySeconds int64     `json:"expiry_secs,omitempty"` // 0 means proposals never expire
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// HasSigner reports whether identity is a member of the policy's signer set.
func (p *Policy) HasSigner(identity string) bool {
	return slices.Contains(p.Signers, identity)
}

// Signature is one signer's approval of a proposal. SignatureData is an
// opaque artifact; it may be empty for identities that authenticate by
// other means.
type Signature struct {
	Signer        string    `json:"signer"`
	SignatureData string    `json:"signature_data,omitempty"`
	SignedAt      time.Time `json:"signed_at"`
}

// Proposal is a deployment action awaiting approval under a policy. The
// payload fields (ContractName, ContractID, WasmHash, Network) are fixed at
// creation; only Signatures, Status and the execution outcome fields change
// afterward, and Signatures is append-only.
type Proposal struct {
	ID           string      `json:"id"`
	PolicyID     string      `json:"policy_id"`
	ContractName string      `json:"contract_name"`
	ContractID   string      `json:"contract_id"`
	WasmHash     string      `json:"wasm_hash"`
	Network      string      `json:"network"`
	Proposer     string      `json:"proposer"`
	Description  string      `json:"description,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	ExpiresAt    *time.Time  `json:"expires_at,omitempty"`
	Signatures   []Signature `json:"signatures"`
	Status       Status      `json:"status"`

	// Execution outcome, populated only after the Executed transition.
	ExecutedAt      *time.Time      `json:"executed_at,omitempty"`
	DeploymentState DeploymentState `json:"deployment_state,omitempty"`
	DeployOutcome   string          `json:"deploy_outcome,omitempty"`
	ExecutionError  string          `json:"execution_error,omitempty"`

	// Version is the optimistic-concurrency token maintained by the store.
	// It increments on every persisted update.
	Version int64 `json:"version"`
}

// HasSigner reports whether identity has already signed this proposal.
func (p *Proposal) HasSigner(identity string) bool {
	for _, sig := range p.Signatures {
		if sig.Signer == identity {
			return true
		}
	}
	return false
}

// Expired reports whether the proposal's expiry window has passed at the
// given instant. Proposals without an expiry never expire.
func (p *Proposal) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && now.After(*p.ExpiresAt)
}

// Clone returns a deep copy so callers can hand out views without exposing
// the stored record to mutation.
func (p *Proposal) Clone() *Proposal {
	cp := *p
	cp.Signatures = slices.Clone(p.Signatures)
	if p.ExpiresAt != nil {
		t := *p.ExpiresAt
		cp.ExpiresAt = &t
	}
	if p.ExecutedAt != nil {
		t := *p.ExecutedAt
		cp.ExecutedAt = &t
	}
	return &cp
}

// Clone returns a deep copy of the policy.
func (p *Policy) Clone() *Policy {
	cp := *p
	cp.Signers = slices.Clone(p.Signers)
	return &cp
}
