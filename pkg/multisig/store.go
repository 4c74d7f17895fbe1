package multisig

import "context"

// PolicyStore persists immutable policy records.
type PolicyStore interface {
	// CreatePolicy stores a new policy record.
	CreatePolicy(ctx context.Context, policy *Policy) error
	// GetPolicy returns the policy or ErrNotFound.
	GetPolicy(ctx context.Context, id string) (*Policy, error)
	// ListPolicies returns policies ordered by creation time descending.
	// A limit of 0 means no limit.
	ListPolicies(ctx context.Context, limit int) ([]*Policy, error)
}

// ProposalStore persists proposal records. The proposal row is the unit of
// coordination between concurrent callers: every mutation is a conditional
// write guarded by the record's version.
type ProposalStore interface {
	// CreateProposal stores a new proposal record at version 1.
	CreateProposal(ctx context.Context, proposal *Proposal) error
	// GetProposal returns the proposal or ErrNotFound.
	GetProposal(ctx context.Context, id string) (*Proposal, error)
	// UpdateProposal persists proposal only if the stored record is still
	// at expectedVersion. On success the store bumps the version and writes
	// it back into proposal.Version. Returns ErrVersionConflict if a
	// concurrent writer got there first, and ErrNotFound if the record
	// vanished.
	UpdateProposal(ctx context.Context, proposal *Proposal, expectedVersion int64) error
	// ListProposals returns proposals ordered by creation time descending.
	ListProposals(ctx context.Context, filter ProposalFilter) ([]*Proposal, error)
}

// ProposalFilter narrows ListProposals. Status filters on the stored
// status; the service layer re-evaluates effective status on top of it.
type ProposalFilter struct {
	Status *Status
	// Limit caps the result count; 0 means no limit.
	Limit int
}
