package multisig

import "errors"

// Domain errors surfaced verbatim to operators. Callers branch with
// errors.Is; the HTTP layer maps each to a problem response.
var (
	// ErrInvalidPolicy rejects policy creation with an empty name, an
	// empty or duplicated signer set, or a threshold outside [1, |signers|].
	ErrInvalidPolicy = errors.New("multisig: invalid policy")

	// ErrInvalidProposal rejects proposal creation with missing payload
	// fields.
	ErrInvalidProposal = errors.New("multisig: invalid proposal")

	// ErrNotFound covers unknown policy and proposal identifiers.
	ErrNotFound = errors.New("multisig: not found")

	// ErrUnauthorizedSigner rejects signatures from identities outside the
	// policy's signer set.
	ErrUnauthorizedSigner = errors.New("multisig: signer not authorized by policy")

	// ErrDuplicateSignature rejects a second signature from the same signer.
	ErrDuplicateSignature = errors.New("multisig: signer already signed proposal")

	// ErrInvalidSignature rejects a signature artifact that fails
	// verification against the canonical proposal payload.
	ErrInvalidSignature = errors.New("multisig: signature verification failed")

	// ErrProposalTerminal rejects signatures on executed or expired
	// proposals.
	ErrProposalTerminal = errors.New("multisig: proposal is in a terminal state")

	// ErrNotApproved rejects execution of a proposal that has not reached
	// quorum.
	ErrNotApproved = errors.New("multisig: proposal not approved")

	// ErrExpired rejects execution after the proposal's expiry window.
	ErrExpired = errors.New("multisig: proposal expired")

	// ErrAlreadyExecuted is returned to every execute caller that loses the
	// one-time transition race.
	ErrAlreadyExecuted = errors.New("multisig: proposal already executed")

	// ErrExecutionFailed marks a committed execution whose deployment
	// action failed or timed out. The proposal stays Executed; retry means
	// a fresh proposal.
	ErrExecutionFailed = errors.New("multisig: deployment action failed")
)

// Infrastructure errors, deliberately distinct from the domain taxonomy.
var (
	// ErrVersionConflict is returned by stores when a conditional update
	// loses against a concurrent writer. Services retry; if retries
	// exhaust, the conflict propagates as an infrastructure failure.
	ErrVersionConflict = errors.New("multisig: proposal version conflict")
)
