//go:build property
// +build property

// Property-based tests for the proposal state machine.
package multisig_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/PetJs/Soroban-Registry/pkg/multisig"
	"github.com/PetJs/Soroban-Registry/pkg/store"
)

// TestEvaluateDeterminism verifies status evaluation is deterministic.
// Property: Evaluate(policy, proposal, now) == Evaluate(policy, proposal, now)
func TestEvaluateDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	properties.Property("evaluation is deterministic", prop.ForAll(
		func(signerCount, threshold, signed int, expired bool) bool {
			signers := make([]string, 1+signerCount%10)
			for i := range signers {
				signers[i] = fmt.Sprintf("signer-%d", i)
			}
			policy := &multisig.Policy{
				Signers:   signers,
				Threshold: 1 + threshold%len(signers),
			}
			proposal := &multisig.Proposal{Status: multisig.StatusPending}
			for i := 0; i < signed%(len(signers)+1); i++ {
				proposal.Signatures = append(proposal.Signatures,
					multisig.Signature{Signer: signers[i], SignedAt: now})
			}
			if expired {
				past := now.Add(-time.Minute)
				proposal.ExpiresAt = &past
			}

			return multisig.Evaluate(policy, proposal, now) ==
				multisig.Evaluate(policy, proposal, now)
		},
		gen.IntRange(0, 100),
		gen.IntRange(0, 100),
		gen.IntRange(0, 100),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// TestQuorumMonotonicity verifies more signatures never revoke an approval.
// Property: Evaluate(n sigs) == APPROVED implies Evaluate(n+1 sigs) == APPROVED
func TestQuorumMonotonicity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	properties.Property("approval is monotone in signatures", prop.ForAll(
		func(size, threshold int) bool {
			signers := make([]string, 1+size%12)
			for i := range signers {
				signers[i] = fmt.Sprintf("signer-%d", i)
			}
			policy := &multisig.Policy{
				Signers:   signers,
				Threshold: 1 + threshold%len(signers),
			}

			proposal := &multisig.Proposal{Status: multisig.StatusPending}
			approvedSeen := false
			for _, signer := range signers {
				proposal.Signatures = append(proposal.Signatures,
					multisig.Signature{Signer: signer, SignedAt: now})
				status := multisig.Evaluate(policy, proposal, now)
				if approvedSeen && status != multisig.StatusApproved {
					return false
				}
				if status == multisig.StatusApproved {
					approvedSeen = true
				}
			}
			// The full signer set always clears any valid threshold.
			return approvedSeen
		},
		gen.IntRange(0, 100),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}

// TestTerminalAbsorption verifies terminal states never leave.
// Property: Evaluate(terminal proposal) == its status, for any signatures or expiry
func TestTerminalAbsorption(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	policy := &multisig.Policy{Signers: []string{"a", "b"}, Threshold: 1}

	properties.Property("terminal states absorb", prop.ForAll(
		func(executed bool, sigCount int, expired bool) bool {
			status := multisig.StatusExpired
			if executed {
				status = multisig.StatusExecuted
			}
			proposal := &multisig.Proposal{Status: status}
			for i := 0; i < sigCount%3; i++ {
				proposal.Signatures = append(proposal.Signatures,
					multisig.Signature{Signer: fmt.Sprintf("s%d", i)})
			}
			if expired {
				past := now.Add(-time.Hour)
				proposal.ExpiresAt = &past
			}
			return multisig.Evaluate(policy, proposal, now) == status
		},
		gen.Bool(),
		gen.IntRange(0, 100),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// TestThresholdExactness verifies quorum through the real service.
// Property: exactly threshold distinct authorized signatures approve a
// proposal; threshold-1 leave it pending.
func TestThresholdExactness(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("quorum is exact", prop.ForAll(
		func(size, thresholdSeed int) bool {
			ctx := context.Background()
			st := store.NewMemory()
			svc := multisig.NewService(st, st)

			signers := make([]string, 1+size%8)
			for i := range signers {
				signers[i] = fmt.Sprintf("signer-%d", i)
			}
			threshold := 1 + thresholdSeed%len(signers)

			policy, err := svc.CreatePolicy(ctx, "prop", signers, threshold, 0, "ops")
			if err != nil {
				return false
			}
			proposal, err := svc.CreateProposal(ctx, policy.ID,
				"amm", "CC1", "sha256:ff", "testnet", signers[0], "")
			if err != nil {
				return false
			}

			for i := 0; i < threshold-1; i++ {
				updated, err := svc.AddSignature(ctx, proposal.ID, signers[i], "")
				if err != nil || updated.Status != multisig.StatusPending {
					return false
				}
			}
			final, err := svc.AddSignature(ctx, proposal.ID, signers[threshold-1], "")
			return err == nil && final.Status == multisig.StatusApproved
		},
		gen.IntRange(0, 100),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}
