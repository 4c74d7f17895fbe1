package multisig

import "time"

// Evaluate computes the effective status of a proposal from its policy, its
// accumulated signatures, and the current time. It is pure and idempotent:
// it never mutates its inputs and never performs I/O, so it can be invoked
// on every read and write. Terminal states are absorbing.
func Evaluate(policy *Policy, proposal *Proposal, now time.Time) Status {
	if proposal.Status.Terminal() {
		return proposal.Status
	}
	if proposal.Expired(now) {
		return StatusExpired
	}
	if len(proposal.Signatures) >= policy.Threshold {
		return StatusApproved
	}
	return StatusPending
}
