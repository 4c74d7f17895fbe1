package multisig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Coordinator owns the one-time transition from Approved to Executed and
// the deployment action that follows it. The transition is a
// version-conditional write: under N concurrent execute calls exactly one
// commits and invokes the deployer, every other caller observes
// ErrAlreadyExecuted. The deployment action runs strictly after the
// transition is durable and is never held inside the critical section.
type Coordinator struct {
	policies      PolicyStore
	proposals     ProposalStore
	deployer      Deployer
	signer        ReceiptSigner
	events        EventSink
	clock         func() time.Time
	logger        *slog.Logger
	deployTimeout time.Duration
}

// ExecutionResult is returned by Execute. Proposal reflects the committed
// record including its deployment outcome; Receipt is present when a
// receipt signer is configured or the proposal executed.
type ExecutionResult struct {
	Proposal *Proposal         `json:"proposal"`
	Receipt  *ExecutionReceipt `json:"receipt,omitempty"`
}

// NewCoordinator creates an execution coordinator. deployer must not be nil.
func NewCoordinator(policies PolicyStore, proposals ProposalStore, deployer Deployer) *Coordinator {
	return &Coordinator{
		policies:      policies,
		proposals:     proposals,
		deployer:      deployer,
		clock:         time.Now,
		logger:        slog.Default(),
		deployTimeout: 30 * time.Second,
	}
}

// WithReceiptSigner installs the keyring used to sign execution receipts.
func (c *Coordinator) WithReceiptSigner(signer ReceiptSigner) *Coordinator {
	c.signer = signer
	return c
}

// WithEvents installs a sink for governance events.
func (c *Coordinator) WithEvents(sink EventSink) *Coordinator {
	c.events = sink
	return c
}

// WithClock overrides the clock for deterministic testing.
func (c *Coordinator) WithClock(clock func() time.Time) *Coordinator {
	c.clock = clock
	return c
}

// WithLogger overrides the default logger.
func (c *Coordinator) WithLogger(logger *slog.Logger) *Coordinator {
	c.logger = logger
	return c
}

// WithDeployTimeout bounds the deployment action when the caller's context
// carries no deadline of its own. Zero disables the fallback bound.
func (c *Coordinator) WithDeployTimeout(d time.Duration) *Coordinator {
	c.deployTimeout = d
	return c
}

// Execute transitions an approved proposal to Executed exactly once and
// invokes the deployment action with its immutable payload.
//
// When the transition commits but the deployment action fails or times out,
// Execute returns a non-nil result describing the committed record together
// with an error wrapping ErrExecutionFailed. The proposal is never rolled
// back to Approved; operators retry with a fresh proposal.
func (c *Coordinator) Execute(ctx context.Context, proposalID string) (*ExecutionResult, error) {
	for attempt := 0; attempt < conflictRetries; attempt++ {
		proposal, err := c.proposals.GetProposal(ctx, proposalID)
		if err != nil {
			return nil, fmt.Errorf("load proposal %q: %w", proposalID, err)
		}
		policy, err := c.policies.GetPolicy(ctx, proposal.PolicyID)
		if err != nil {
			return nil, fmt.Errorf("load policy %q: %w", proposal.PolicyID, err)
		}

		now := c.clock().UTC()
		if proposal.Status == StatusExecuted {
			return nil, fmt.Errorf("proposal %q: %w", proposalID, ErrAlreadyExecuted)
		}
		if proposal.Status == StatusExpired {
			return nil, fmt.Errorf("proposal %q: %w", proposalID, ErrExpired)
		}
		if proposal.Expired(now) {
			if err := c.expire(ctx, proposal, now); err != nil && !errors.Is(err, ErrVersionConflict) {
				return nil, fmt.Errorf("persist expiry of %q: %w", proposalID, err)
			}
			return nil, fmt.Errorf("proposal %q expired at %s: %w",
				proposalID, proposal.ExpiresAt.UTC().Format(time.RFC3339), ErrExpired)
		}
		if Evaluate(policy, proposal, now) != StatusApproved {
			return nil, fmt.Errorf("proposal %q has %d of %d signatures: %w",
				proposalID, len(proposal.Signatures), policy.Threshold, ErrNotApproved)
		}

		// The compare-and-transition. Only the caller whose conditional
		// write lands flips the record; everyone else loses the version
		// race, reloads, and observes Executed.
		expected := proposal.Version
		executedAt := now
		proposal.Status = StatusExecuted
		proposal.ExecutedAt = &executedAt
		proposal.DeploymentState = DeploymentPending

		err = c.proposals.UpdateProposal(ctx, proposal, expected)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("commit executed transition for %q: %w", proposalID, err)
		}

		c.emit(ctx, Event{
			Kind:       EventProposalExecuted,
			PolicyID:   proposal.PolicyID,
			ProposalID: proposal.ID,
			At:         now,
			Detail:     map[string]any{"contract_id": proposal.ContractID, "network": proposal.Network},
		})
		c.logger.Info("proposal executed", "proposal_id", proposal.ID,
			"contract_id", proposal.ContractID, "network", proposal.Network)

		return c.runDeployment(ctx, proposal)
	}
	return nil, fmt.Errorf("execute %q: retries exhausted: %w", proposalID, ErrVersionConflict)
}

// runDeployment invokes the deployment action after the Executed transition
// has committed, then records the outcome on the proposal.
func (c *Coordinator) runDeployment(ctx context.Context, proposal *Proposal) (*ExecutionResult, error) {
	dctx := ctx
	if _, bounded := ctx.Deadline(); !bounded && c.deployTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, c.deployTimeout)
		defer cancel()
	}

	outcome, deployErr := c.deployer.Deploy(dctx, proposal.ContractID, proposal.WasmHash, proposal.Network)
	now := c.clock().UTC()

	if deployErr != nil {
		state := DeploymentFailed
		if errors.Is(deployErr, context.DeadlineExceeded) || errors.Is(deployErr, context.Canceled) {
			// The action may have landed on chain; the outcome is
			// indeterminate, not known-failed.
			state = DeploymentUnknown
		}
		proposal.DeploymentState = state
		proposal.ExecutionError = deployErr.Error()
		c.persistOutcome(ctx, proposal)

		c.emit(ctx, Event{
			Kind:       EventDeploymentFailed,
			PolicyID:   proposal.PolicyID,
			ProposalID: proposal.ID,
			At:         now,
			Detail:     map[string]any{"state": string(state), "error": deployErr.Error()},
		})
		c.logger.Error("deployment action failed", "proposal_id", proposal.ID,
			"contract_id", proposal.ContractID, "state", state, "error", deployErr)

		result := &ExecutionResult{Proposal: proposal, Receipt: c.buildReceipt(proposal)}
		return result, fmt.Errorf("deploy %q on %s: %v: %w",
			proposal.ContractID, proposal.Network, deployErr, ErrExecutionFailed)
	}

	proposal.DeploymentState = DeploymentSucceeded
	proposal.DeployOutcome = outcome
	c.persistOutcome(ctx, proposal)

	c.emit(ctx, Event{
		Kind:       EventDeploymentSucceeded,
		PolicyID:   proposal.PolicyID,
		ProposalID: proposal.ID,
		At:         now,
		Detail:     map[string]any{"outcome": outcome},
	})
	c.logger.Info("deployment succeeded", "proposal_id", proposal.ID,
		"contract_id", proposal.ContractID, "outcome", outcome)

	return &ExecutionResult{Proposal: proposal, Receipt: c.buildReceipt(proposal)}, nil
}

// persistOutcome writes the deployment outcome onto the executed record.
// The write is detached from the caller's context so a deployment timeout
// cannot also lose the outcome, and failures only log: the Executed
// transition itself is already durable.
func (c *Coordinator) persistOutcome(ctx context.Context, proposal *Proposal) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := c.proposals.UpdateProposal(pctx, proposal, proposal.Version); err != nil {
		c.logger.Error("persist deployment outcome failed",
			"proposal_id", proposal.ID, "state", proposal.DeploymentState, "error", err)
	}
}

// expire persists a lazy transition to Expired observed during execution.
func (c *Coordinator) expire(ctx context.Context, proposal *Proposal, now time.Time) error {
	updated := proposal.Clone()
	expected := updated.Version
	updated.Status = StatusExpired
	if err := c.proposals.UpdateProposal(ctx, updated, expected); err != nil {
		return err
	}
	proposal.Status = StatusExpired
	proposal.Version = updated.Version
	c.emit(ctx, Event{
		Kind:       EventProposalExpired,
		PolicyID:   proposal.PolicyID,
		ProposalID: proposal.ID,
		At:         now,
	})
	return nil
}

func (c *Coordinator) emit(ctx context.Context, ev Event) {
	if c.events == nil {
		return
	}
	c.events.Record(ctx, ev)
}
