// Package store provides the persistence backends for governance records:
// an in-memory store for tests and lite mode, a SQLite store for embedded
// deployments, and a Postgres store for shared deployments. All three
// implement the same conditional-update contract the engine relies on for
// concurrency control.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/PetJs/Soroban-Registry/pkg/multisig"
)

// Memory keeps policies and proposals in process memory. The mutex makes
// every update a critical section, which gives the same atomicity the SQL
// stores get from version-conditional writes.
type Memory struct {
	mu        sync.RWMutex
	policies  map[string]*multisig.Policy
	proposals map[string]*multisig.Proposal
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		policies:  make(map[string]*multisig.Policy),
		proposals: make(map[string]*multisig.Proposal),
	}
}

// CreatePolicy implements multisig.PolicyStore.
func (m *Memory) CreatePolicy(ctx context.Context, policy *multisig.Policy) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[policy.ID] = policy.Clone()
	return nil
}

// GetPolicy implements multisig.PolicyStore.
func (m *Memory) GetPolicy(ctx context.Context, id string) (*multisig.Policy, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	policy, ok := m.policies[id]
	if !ok {
		return nil, multisig.ErrNotFound
	}
	return policy.Clone(), nil
}

// ListPolicies implements multisig.PolicyStore.
func (m *Memory) ListPolicies(ctx context.Context, limit int) ([]*multisig.Policy, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*multisig.Policy, 0, len(m.policies))
	for _, policy := range m.policies {
		out = append(out, policy.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateProposal implements multisig.ProposalStore.
func (m *Memory) CreateProposal(ctx context.Context, proposal *multisig.Proposal) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	proposal.Version = 1
	m.proposals[proposal.ID] = proposal.Clone()
	return nil
}

// GetProposal implements multisig.ProposalStore.
func (m *Memory) GetProposal(ctx context.Context, id string) (*multisig.Proposal, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	proposal, ok := m.proposals[id]
	if !ok {
		return nil, multisig.ErrNotFound
	}
	return proposal.Clone(), nil
}

// UpdateProposal implements multisig.ProposalStore. The check-and-swap runs
// under the write lock, so at most one concurrent caller can move the
// record from any given version.
func (m *Memory) UpdateProposal(ctx context.Context, proposal *multisig.Proposal, expectedVersion int64) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.proposals[proposal.ID]
	if !ok {
		return multisig.ErrNotFound
	}
	if current.Version != expectedVersion {
		return multisig.ErrVersionConflict
	}
	proposal.Version = expectedVersion + 1
	m.proposals[proposal.ID] = proposal.Clone()
	return nil
}

// ListProposals implements multisig.ProposalStore.
func (m *Memory) ListProposals(ctx context.Context, filter multisig.ProposalFilter) ([]*multisig.Proposal, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*multisig.Proposal, 0, len(m.proposals))
	for _, proposal := range m.proposals {
		if filter.Status != nil && proposal.Status != *filter.Status {
			continue
		}
		out = append(out, proposal.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
