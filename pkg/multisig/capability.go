package multisig

import (
	"context"
	"time"
)

// Verifier checks a submitted signature artifact against the canonical
// proposal payload. Implementations are chain-specific; the engine only
// cares about the boolean outcome. A returned error means the check itself
// could not run (malformed key, malformed artifact) and is treated as a
// failed verification.
type Verifier interface {
	Verify(ctx context.Context, signer string, payload []byte, artifact string) (bool, error)
}

// Deployer performs the external deployment action for an executed
// proposal. It is invoked only after the Executed transition has durably
// committed, bounded by the caller's context. The returned outcome is an
// implementation-defined detail string (transaction hash, ledger sequence).
type Deployer interface {
	Deploy(ctx context.Context, contractID, wasmHash, network string) (string, error)
}

// Event is a governance action notification emitted by the engine.
type Event struct {
	Kind       string         `json:"kind"`
	PolicyID   string         `json:"policy_id,omitempty"`
	ProposalID string         `json:"proposal_id,omitempty"`
	Actor      string         `json:"actor,omitempty"`
	At         time.Time      `json:"at"`
	Detail     map[string]any `json:"detail,omitempty"`
}

// Event kinds emitted by the service and coordinator.
const (
	EventPolicyCreated       = "policy.created"
	EventProposalCreated     = "proposal.created"
	EventSignatureAdded      = "signature.added"
	EventProposalApproved    = "proposal.approved"
	EventProposalExpired     = "proposal.expired"
	EventProposalExecuted    = "proposal.executed"
	EventDeploymentSucceeded = "deployment.succeeded"
	EventDeploymentFailed    = "deployment.failed"
)

// EventSink receives governance events. Sinks must be non-blocking or fast;
// they are called inline on the mutation path. Errors are the sink's
// problem, not the caller's.
type EventSink interface {
	Record(ctx context.Context, ev Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(ctx context.Context, ev Event)

// Record implements EventSink.
func (f EventSinkFunc) Record(ctx context.Context, ev Event) { f(ctx, ev) }

// FanoutSink forwards each event to every sink in order.
type FanoutSink []EventSink

// Record implements EventSink.
func (s FanoutSink) Record(ctx context.Context, ev Event) {
	for _, sink := range s {
		sink.Record(ctx, ev)
	}
}
