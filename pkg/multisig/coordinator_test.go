package multisig_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PetJs/Soroban-Registry/pkg/crypto"
	"github.com/PetJs/Soroban-Registry/pkg/deploy"
	"github.com/PetJs/Soroban-Registry/pkg/multisig"
	"github.com/PetJs/Soroban-Registry/pkg/store"
)

// approvedProposal builds a store holding one proposal already at quorum.
func approvedProposal(t *testing.T, st *store.Memory, expirySecs int64) *multisig.Proposal {
	t.Helper()
	svc := multisig.NewService(st, st)
	policy := newPolicy(t, svc, []string{"alice", "bob"}, 2, expirySecs)
	proposal := newProposal(t, svc, policy.ID)

	ctx := context.Background()
	_, err := svc.AddSignature(ctx, proposal.ID, "alice", "")
	require.NoError(t, err)
	approved, err := svc.AddSignature(ctx, proposal.ID, "bob", "")
	require.NoError(t, err)
	require.Equal(t, multisig.StatusApproved, approved.Status)
	return approved
}

func TestExecute(t *testing.T) {
	st := store.NewMemory()
	proposal := approvedProposal(t, st, 0)

	recorder := deploy.NewRecorder("tx-0ddba11")
	events := &eventCollector{}
	coord := multisig.NewCoordinator(st, st, recorder).WithEvents(events)

	result, err := coord.Execute(context.Background(), proposal.ID)
	require.NoError(t, err)

	got := result.Proposal
	assert.Equal(t, multisig.StatusExecuted, got.Status)
	assert.Equal(t, multisig.DeploymentSucceeded, got.DeploymentState)
	assert.Equal(t, "tx-0ddba11", got.DeployOutcome)
	require.NotNil(t, got.ExecutedAt)
	assert.Empty(t, got.ExecutionError)

	calls := recorder.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "CCROUTER1", calls[0].ContractID)
	assert.Equal(t, wasmDigest, calls[0].WasmHash)
	assert.Equal(t, "testnet", calls[0].Network)

	// The outcome lands on the stored record too.
	stored, err := st.GetProposal(context.Background(), proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, multisig.StatusExecuted, stored.Status)
	assert.Equal(t, multisig.DeploymentSucceeded, stored.DeploymentState)

	assert.Equal(t, []string{
		multisig.EventProposalExecuted,
		multisig.EventDeploymentSucceeded,
	}, events.kinds())

	require.NotNil(t, result.Receipt)
	assert.Equal(t, proposal.ID, result.Receipt.ProposalID)
	assert.Equal(t, multisig.DeploymentSucceeded, result.Receipt.Deployment)
	assert.Contains(t, result.Receipt.ContentHash, "sha256:")
	assert.Empty(t, result.Receipt.Signature)
}

func TestExecute_NotApproved(t *testing.T) {
	st := store.NewMemory()
	svc := multisig.NewService(st, st)
	policy := newPolicy(t, svc, []string{"alice", "bob"}, 2, 0)
	proposal := newProposal(t, svc, policy.ID)
	_, err := svc.AddSignature(context.Background(), proposal.ID, "alice", "")
	require.NoError(t, err)

	recorder := deploy.NewRecorder("tx")
	coord := multisig.NewCoordinator(st, st, recorder)

	_, err = coord.Execute(context.Background(), proposal.ID)
	assert.ErrorIs(t, err, multisig.ErrNotApproved)
	assert.Empty(t, recorder.Calls())
}

func TestExecute_AlreadyExecuted(t *testing.T) {
	st := store.NewMemory()
	proposal := approvedProposal(t, st, 0)
	recorder := deploy.NewRecorder("tx")
	coord := multisig.NewCoordinator(st, st, recorder)

	_, err := coord.Execute(context.Background(), proposal.ID)
	require.NoError(t, err)
	_, err = coord.Execute(context.Background(), proposal.ID)
	assert.ErrorIs(t, err, multisig.ErrAlreadyExecuted)
	assert.Len(t, recorder.Calls(), 1)
}

func TestExecute_Expired(t *testing.T) {
	st := store.NewMemory()
	clock := newFakeClock()
	svc := multisig.NewService(st, st).WithClock(clock.Now)
	ctx := context.Background()

	policy := newPolicy(t, svc, []string{"alice", "bob"}, 2, 60)
	proposal := newProposal(t, svc, policy.ID)
	_, err := svc.AddSignature(ctx, proposal.ID, "alice", "")
	require.NoError(t, err)
	_, err = svc.AddSignature(ctx, proposal.ID, "bob", "")
	require.NoError(t, err)

	clock.Advance(61 * time.Second)
	recorder := deploy.NewRecorder("tx")
	coord := multisig.NewCoordinator(st, st, recorder).WithClock(clock.Now)

	_, err = coord.Execute(ctx, proposal.ID)
	assert.ErrorIs(t, err, multisig.ErrExpired)
	assert.Empty(t, recorder.Calls())

	stored, err := st.GetProposal(ctx, proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, multisig.StatusExpired, stored.Status)
}

func TestExecute_NotFound(t *testing.T) {
	st := store.NewMemory()
	coord := multisig.NewCoordinator(st, st, deploy.NewRecorder("tx"))
	_, err := coord.Execute(context.Background(), "missing")
	assert.ErrorIs(t, err, multisig.ErrNotFound)
}

func TestExecute_DeploymentFailure(t *testing.T) {
	st := store.NewMemory()
	proposal := approvedProposal(t, st, 0)

	recorder := deploy.NewRecorder("")
	recorder.Err = errors.New("rpc unavailable")
	events := &eventCollector{}
	coord := multisig.NewCoordinator(st, st, recorder).WithEvents(events)

	result, err := coord.Execute(context.Background(), proposal.ID)
	require.ErrorIs(t, err, multisig.ErrExecutionFailed)
	require.NotNil(t, result)

	assert.Equal(t, multisig.StatusExecuted, result.Proposal.Status)
	assert.Equal(t, multisig.DeploymentFailed, result.Proposal.DeploymentState)
	assert.Equal(t, "rpc unavailable", result.Proposal.ExecutionError)

	// The Executed transition is never rolled back: the record stays
	// terminal with the failure on it.
	stored, err := st.GetProposal(context.Background(), proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, multisig.StatusExecuted, stored.Status)
	assert.Equal(t, multisig.DeploymentFailed, stored.DeploymentState)

	assert.Equal(t, []string{
		multisig.EventProposalExecuted,
		multisig.EventDeploymentFailed,
	}, events.kinds())

	// Further execution attempts are refused, not retried.
	_, err = coord.Execute(context.Background(), proposal.ID)
	assert.ErrorIs(t, err, multisig.ErrAlreadyExecuted)
	assert.Len(t, recorder.Calls(), 1)
}

// stallingDeployer blocks until the deployment context is cancelled.
type stallingDeployer struct{}

func (stallingDeployer) Deploy(ctx context.Context, _, _, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestExecute_DeployTimeoutIsIndeterminate(t *testing.T) {
	st := store.NewMemory()
	proposal := approvedProposal(t, st, 0)

	coord := multisig.NewCoordinator(st, st, stallingDeployer{}).
		WithDeployTimeout(20 * time.Millisecond)

	result, err := coord.Execute(context.Background(), proposal.ID)
	require.ErrorIs(t, err, multisig.ErrExecutionFailed)
	require.NotNil(t, result)

	// A timed-out action may still have landed on chain.
	assert.Equal(t, multisig.DeploymentUnknown, result.Proposal.DeploymentState)
	assert.NotEmpty(t, result.Proposal.ExecutionError)

	stored, err := st.GetProposal(context.Background(), proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, multisig.StatusExecuted, stored.Status)
	assert.Equal(t, multisig.DeploymentUnknown, stored.DeploymentState)
}

func TestExecute_ExactlyOnce(t *testing.T) {
	st := store.NewMemory()
	proposal := approvedProposal(t, st, 0)
	recorder := deploy.NewRecorder("tx-race")
	coord := multisig.NewCoordinator(st, st, recorder)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := coord.Execute(context.Background(), proposal.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded, lost := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, multisig.ErrAlreadyExecuted):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, lost)
	assert.Len(t, recorder.Calls(), 1)
}

func TestExecute_SignedReceipt(t *testing.T) {
	st := store.NewMemory()
	proposal := approvedProposal(t, st, 0)

	keys, err := crypto.DeriveKeyring([]byte("master-secret"), "receipt-signing")
	require.NoError(t, err)
	coord := multisig.NewCoordinator(st, st, deploy.NewRecorder("tx-cafe")).
		WithReceiptSigner(keys)

	result, err := coord.Execute(context.Background(), proposal.ID)
	require.NoError(t, err)
	receipt := result.Receipt
	require.NotNil(t, receipt)

	assert.NotEmpty(t, receipt.ReceiptID)
	assert.Equal(t, "CCROUTER1", receipt.ContractID)
	assert.Equal(t, "tx-cafe", receipt.Outcome)
	require.NotEmpty(t, receipt.Signature)
	require.NotEmpty(t, receipt.SignedBy)

	ok, err := crypto.Verify(receipt.SignedBy, receipt.Signature, []byte(receipt.ContentHash))
	require.NoError(t, err)
	assert.True(t, ok, "receipt signature must verify against the registry key")
}
