package multisig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// conflictRetries bounds how many times a mutation is replayed after losing
// a version-conditional write before the conflict surfaces to the caller.
const conflictRetries = 5

// DefaultListLimit caps listings when the caller supplies no limit.
const DefaultListLimit = 20

// Service implements policy and proposal governance over pluggable stores.
// All coordination between concurrent callers goes through the proposal
// store's version-conditional updates; the service holds no cross-request
// state of its own.
type Service struct {
	policies  PolicyStore
	proposals ProposalStore
	verifier  Verifier
	events    EventSink
	clock     func() time.Time
	logger    *slog.Logger
}

// NewService creates a governance service over the given stores.
func NewService(policies PolicyStore, proposals ProposalStore) *Service {
	return &Service{
		policies:  policies,
		proposals: proposals,
		clock:     time.Now,
		logger:    slog.Default(),
	}
}

// WithVerifier installs the signature verification capability. Without one,
// signature artifacts are stored opaquely and not verified.
func (s *Service) WithVerifier(v Verifier) *Service {
	s.verifier = v
	return s
}

// WithEvents installs a sink for governance events.
func (s *Service) WithEvents(sink EventSink) *Service {
	s.events = sink
	return s
}

// WithClock overrides the clock for deterministic testing.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// WithLogger overrides the default logger.
func (s *Service) WithLogger(logger *slog.Logger) *Service {
	s.logger = logger
	return s
}

// CreatePolicy validates and stores a new immutable policy.
func (s *Service) CreatePolicy(ctx context.Context, name string, signers []string, threshold int, expirySeconds int64, createdBy string) (*Policy, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidPolicy)
	}
	if createdBy == "" {
		return nil, fmt.Errorf("%w: created_by must not be empty", ErrInvalidPolicy)
	}
	if len(signers) == 0 {
		return nil, fmt.Errorf("%w: signer set must not be empty", ErrInvalidPolicy)
	}
	seen := make(map[string]struct{}, len(signers))
	for _, signer := range signers {
		if signer == "" {
			return nil, fmt.Errorf("%w: signer identity must not be empty", ErrInvalidPolicy)
		}
		if _, dup := seen[signer]; dup {
			return nil, fmt.Errorf("%w: duplicate signer %q", ErrInvalidPolicy, signer)
		}
		seen[signer] = struct{}{}
	}
	if threshold < 1 || threshold > len(signers) {
		return nil, fmt.Errorf("%w: threshold %d outside [1, %d]", ErrInvalidPolicy, threshold, len(signers))
	}
	if expirySeconds < 0 {
		return nil, fmt.Errorf("%w: expiry seconds must not be negative", ErrInvalidPolicy)
	}

	now := s.clock().UTC()
	policy := &Policy{
		ID:            uuid.New().String(),
		Name:          name,
		Signers:       signers,
		Threshold:     threshold,
		ExpirySeconds: expirySeconds,
		CreatedBy:     createdBy,
		CreatedAt:     now,
	}
	if err := s.policies.CreatePolicy(ctx, policy); err != nil {
		return nil, fmt.Errorf("persist policy: %w", err)
	}

	s.emit(ctx, Event{
		Kind:     EventPolicyCreated,
		PolicyID: policy.ID,
		Actor:    createdBy,
		At:       now,
		Detail:   map[string]any{"name": name, "threshold": threshold, "signers": len(signers)},
	})
	s.logger.Info("policy created", "policy_id", policy.ID, "name", name, "threshold", threshold, "signers", len(signers))
	return policy, nil
}

// GetPolicy returns a policy by ID.
func (s *Service) GetPolicy(ctx context.Context, id string) (*Policy, error) {
	policy, err := s.policies.GetPolicy(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load policy %q: %w", id, err)
	}
	return policy, nil
}

// ListPolicies returns policies ordered newest first.
func (s *Service) ListPolicies(ctx context.Context, limit int) ([]*Policy, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.policies.ListPolicies(ctx, limit)
}

// CreateProposal opens a new proposal under the named policy. The expiry
// window, when the policy defines one, starts at creation.
func (s *Service) CreateProposal(ctx context.Context, policyID, contractName, contractID, wasmHash, network, proposer, description string) (*Proposal, error) {
	switch {
	case contractName == "":
		return nil, fmt.Errorf("%w: contract_name must not be empty", ErrInvalidProposal)
	case contractID == "":
		return nil, fmt.Errorf("%w: contract_id must not be empty", ErrInvalidProposal)
	case wasmHash == "":
		return nil, fmt.Errorf("%w: wasm_hash must not be empty", ErrInvalidProposal)
	case network == "":
		return nil, fmt.Errorf("%w: network must not be empty", ErrInvalidProposal)
	case proposer == "":
		return nil, fmt.Errorf("%w: proposer must not be empty", ErrInvalidProposal)
	}

	policy, err := s.policies.GetPolicy(ctx, policyID)
	if err != nil {
		return nil, fmt.Errorf("load policy %q: %w", policyID, err)
	}

	now := s.clock().UTC()
	proposal := &Proposal{
		ID:           uuid.New().String(),
		PolicyID:     policy.ID,
		ContractName: contractName,
		ContractID:   contractID,
		WasmHash:     wasmHash,
		Network:      network,
		Proposer:     proposer,
		Description:  description,
		CreatedAt:    now,
		Signatures:   []Signature{},
		Status:       StatusPending,
		Version:      1,
	}
	if policy.ExpirySeconds > 0 {
		expires := now.Add(time.Duration(policy.ExpirySeconds) * time.Second)
		proposal.ExpiresAt = &expires
	}

	if err := s.proposals.CreateProposal(ctx, proposal); err != nil {
		return nil, fmt.Errorf("persist proposal: %w", err)
	}

	s.emit(ctx, Event{
		Kind:       EventProposalCreated,
		PolicyID:   policy.ID,
		ProposalID: proposal.ID,
		Actor:      proposer,
		At:         now,
		Detail:     map[string]any{"contract_id": contractID, "wasm_hash": wasmHash, "network": network},
	})
	s.logger.Info("proposal created", "proposal_id", proposal.ID, "policy_id", policy.ID, "contract_id", contractID, "network", network)
	return proposal, nil
}

// AddSignature records one signer's approval of a proposal. Checks run
// strictly in order: existence, terminal state (persisting a lazy expiry
// first), signer membership, duplicate signer, then artifact verification.
// The append itself is a version-conditional write; losing the race against
// another signer replays the whole sequence against the fresh record.
func (s *Service) AddSignature(ctx context.Context, proposalID, signer, artifact string) (*Proposal, error) {
	for attempt := 0; attempt < conflictRetries; attempt++ {
		proposal, err := s.proposals.GetProposal(ctx, proposalID)
		if err != nil {
			return nil, fmt.Errorf("load proposal %q: %w", proposalID, err)
		}
		policy, err := s.policies.GetPolicy(ctx, proposal.PolicyID)
		if err != nil {
			return nil, fmt.Errorf("load policy %q: %w", proposal.PolicyID, err)
		}

		now := s.clock().UTC()
		if proposal.Status.Terminal() {
			return nil, fmt.Errorf("proposal %q is %s: %w", proposalID, proposal.Status, ErrProposalTerminal)
		}
		if proposal.Expired(now) {
			if err := s.expire(ctx, proposal, now); err != nil && !errors.Is(err, ErrVersionConflict) {
				return nil, fmt.Errorf("persist expiry of %q: %w", proposalID, err)
			}
			return nil, fmt.Errorf("proposal %q expired at %s: %w",
				proposalID, proposal.ExpiresAt.UTC().Format(time.RFC3339), ErrProposalTerminal)
		}
		if !policy.HasSigner(signer) {
			return nil, fmt.Errorf("signer %q: %w", signer, ErrUnauthorizedSigner)
		}
		if proposal.HasSigner(signer) {
			return nil, fmt.Errorf("signer %q: %w", signer, ErrDuplicateSignature)
		}
		if artifact != "" && s.verifier != nil {
			payload, err := SigningPayload(proposal)
			if err != nil {
				return nil, fmt.Errorf("build signing payload: %w", err)
			}
			ok, verr := s.verifier.Verify(ctx, signer, payload, artifact)
			if verr != nil {
				return nil, fmt.Errorf("signature from %q: %v: %w", signer, verr, ErrInvalidSignature)
			}
			if !ok {
				return nil, fmt.Errorf("signature from %q rejected: %w", signer, ErrInvalidSignature)
			}
		}

		expected := proposal.Version
		proposal.Signatures = append(proposal.Signatures, Signature{
			Signer:        signer,
			SignatureData: artifact,
			SignedAt:      now,
		})
		before := proposal.Status
		proposal.Status = Evaluate(policy, proposal, now)

		err = s.proposals.UpdateProposal(ctx, proposal, expected)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("persist signature: %w", err)
		}

		s.emit(ctx, Event{
			Kind:       EventSignatureAdded,
			PolicyID:   proposal.PolicyID,
			ProposalID: proposal.ID,
			Actor:      signer,
			At:         now,
			Detail:     map[string]any{"signatures": len(proposal.Signatures), "threshold": policy.Threshold},
		})
		if before != StatusApproved && proposal.Status == StatusApproved {
			s.emit(ctx, Event{
				Kind:       EventProposalApproved,
				PolicyID:   proposal.PolicyID,
				ProposalID: proposal.ID,
				At:         now,
				Detail:     map[string]any{"signatures": len(proposal.Signatures), "threshold": policy.Threshold},
			})
		}
		s.logger.Info("signature added", "proposal_id", proposal.ID, "signer", signer,
			"signatures", len(proposal.Signatures), "threshold", policy.Threshold, "status", proposal.Status)
		return proposal, nil
	}
	return nil, fmt.Errorf("add signature to %q: retries exhausted: %w", proposalID, ErrVersionConflict)
}

// GetProposal returns a proposal with its status re-evaluated against the
// current time. An observed expiry is persisted best-effort; the returned
// view is correct either way.
func (s *Service) GetProposal(ctx context.Context, id string) (*Proposal, error) {
	proposal, err := s.proposals.GetProposal(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load proposal %q: %w", id, err)
	}
	policy, err := s.policies.GetPolicy(ctx, proposal.PolicyID)
	if err != nil {
		return nil, fmt.Errorf("load policy %q: %w", proposal.PolicyID, err)
	}

	now := s.clock().UTC()
	if !proposal.Status.Terminal() && proposal.Expired(now) {
		if err := s.expire(ctx, proposal, now); err != nil && !errors.Is(err, ErrVersionConflict) {
			s.logger.Warn("persist lazy expiry failed", "proposal_id", id, "error", err)
		}
	}
	proposal.Status = Evaluate(policy, proposal, now)
	return proposal, nil
}

// ListProposals returns proposals ordered newest first, optionally filtered
// by effective status, truncated to limit (DefaultListLimit when <= 0).
func (s *Service) ListProposals(ctx context.Context, statusFilter *Status, limit int) ([]*Proposal, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	// Executed records are stable, so the store-side filter is exact. For
	// every other filter the stored status can lag behind an expiry, so
	// fetch wide and re-evaluate.
	filter := ProposalFilter{}
	if statusFilter != nil && *statusFilter == StatusExecuted {
		filter = ProposalFilter{Status: statusFilter, Limit: limit}
	} else if statusFilter == nil {
		filter = ProposalFilter{Limit: limit}
	}
	rows, err := s.proposals.ListProposals(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}

	now := s.clock().UTC()
	policies := make(map[string]*Policy)
	out := make([]*Proposal, 0, min(limit, len(rows)))
	for _, proposal := range rows {
		policy, ok := policies[proposal.PolicyID]
		if !ok {
			policy, err = s.policies.GetPolicy(ctx, proposal.PolicyID)
			if err != nil {
				return nil, fmt.Errorf("load policy %q: %w", proposal.PolicyID, err)
			}
			policies[proposal.PolicyID] = policy
		}
		proposal.Status = Evaluate(policy, proposal, now)
		if statusFilter != nil && proposal.Status != *statusFilter {
			continue
		}
		out = append(out, proposal)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// ExpireStale flips every Pending or Approved proposal whose window has
// passed to Expired. Correctness never depends on this sweep; it exists to
// keep the query surface accurate for long-idle proposals.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	rows, err := s.proposals.ListProposals(ctx, ProposalFilter{})
	if err != nil {
		return 0, fmt.Errorf("list proposals: %w", err)
	}
	now := s.clock().UTC()
	expired := 0
	for _, proposal := range rows {
		if proposal.Status.Terminal() || !proposal.Expired(now) {
			continue
		}
		if err := s.expire(ctx, proposal, now); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				continue
			}
			return expired, fmt.Errorf("expire proposal %q: %w", proposal.ID, err)
		}
		expired++
	}
	return expired, nil
}

// RunSweeper runs ExpireStale on the given interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.ExpireStale(ctx)
			if err != nil {
				s.logger.Warn("expiry sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info("expiry sweep", "expired", n)
			}
		}
	}
}

// expire persists the lazy transition to Expired observed during a read or
// write. A version conflict means another caller advanced the record first;
// the proposal value is left untouched in that case.
func (s *Service) expire(ctx context.Context, proposal *Proposal, now time.Time) error {
	updated := proposal.Clone()
	expected := updated.Version
	updated.Status = StatusExpired
	if err := s.proposals.UpdateProposal(ctx, updated, expected); err != nil {
		return err
	}
	proposal.Status = StatusExpired
	proposal.Version = updated.Version
	s.emit(ctx, Event{
		Kind:       EventProposalExpired,
		PolicyID:   proposal.PolicyID,
		ProposalID: proposal.ID,
		At:         now,
	})
	return nil
}

func (s *Service) emit(ctx context.Context, ev Event) {
	if s.events == nil {
		return
	}
	s.events.Record(ctx, ev)
}
