package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/PetJs/Soroban-Registry/pkg/multisig"
)

// Postgres persists governance records in PostgreSQL. Callers open the
// handle (lib/pq) and run Init once at startup.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an existing database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS multisig_policies (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	signers JSONB NOT NULL,
	threshold INTEGER NOT NULL,
	expiry_secs BIGINT NOT NULL DEFAULT 0,
	created_by TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS multisig_proposals (
	id TEXT PRIMARY KEY,
	policy_id TEXT NOT NULL,
	contract_name TEXT NOT NULL,
	contract_id TEXT NOT NULL,
	wasm_hash TEXT NOT NULL,
	network TEXT NOT NULL,
	proposer TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ,
	signatures JSONB NOT NULL,
	status TEXT NOT NULL,
	executed_at TIMESTAMPTZ,
	deployment_state TEXT NOT NULL DEFAULT '',
	deploy_outcome TEXT NOT NULL DEFAULT '',
	execution_error TEXT NOT NULL DEFAULT '',
	version BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_multisig_proposals_status
	ON multisig_proposals(status);
CREATE INDEX IF NOT EXISTS idx_multisig_proposals_created_at
	ON multisig_proposals(created_at DESC);
`

// Init creates the schema if it does not exist.
func (p *Postgres) Init(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, pgSchema)
	return err
}

// CreatePolicy implements multisig.PolicyStore.
func (p *Postgres) CreatePolicy(ctx context.Context, policy *multisig.Policy) error {
	signersJSON, err := json.Marshal(policy.Signers)
	if err != nil {
		return fmt.Errorf("marshal signers: %w", err)
	}
	query := `INSERT INTO multisig_policies (id, name, signers, threshold, expiry_secs, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = p.db.ExecContext(ctx, query,
		policy.ID, policy.Name, signersJSON, policy.Threshold,
		policy.ExpirySeconds, policy.CreatedBy, policy.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert policy: %w", err)
	}
	return nil
}

// GetPolicy implements multisig.PolicyStore.
func (p *Postgres) GetPolicy(ctx context.Context, id string) (*multisig.Policy, error) {
	query := `SELECT id, name, signers, threshold, expiry_secs, created_by, created_at
		FROM multisig_policies WHERE id = $1`
	var (
		policy      multisig.Policy
		signersJSON []byte
	)
	err := p.db.QueryRowContext(ctx, query, id).Scan(
		&policy.ID, &policy.Name, &signersJSON, &policy.Threshold,
		&policy.ExpirySeconds, &policy.CreatedBy, &policy.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, multisig.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(signersJSON, &policy.Signers); err != nil {
		return nil, fmt.Errorf("unmarshal signers: %w", err)
	}
	return &policy, nil
}

// ListPolicies implements multisig.PolicyStore.
func (p *Postgres) ListPolicies(ctx context.Context, limit int) ([]*multisig.Policy, error) {
	query := `SELECT id, name, signers, threshold, expiry_secs, created_by, created_at
		FROM multisig_policies ORDER BY created_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var policies []*multisig.Policy
	for rows.Next() {
		var (
			policy      multisig.Policy
			signersJSON []byte
		)
		if err := rows.Scan(&policy.ID, &policy.Name, &signersJSON, &policy.Threshold,
			&policy.ExpirySeconds, &policy.CreatedBy, &policy.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(signersJSON, &policy.Signers); err != nil {
			return nil, fmt.Errorf("unmarshal signers: %w", err)
		}
		policies = append(policies, &policy)
	}
	return policies, rows.Err()
}

// CreateProposal implements multisig.ProposalStore.
func (p *Postgres) CreateProposal(ctx context.Context, proposal *multisig.Proposal) error {
	sigsJSON, err := json.Marshal(proposal.Signatures)
	if err != nil {
		return fmt.Errorf("marshal signatures: %w", err)
	}
	proposal.Version = 1
	query := `INSERT INTO multisig_proposals (
		id, policy_id, contract_name, contract_id, wasm_hash, network, proposer, description,
		created_at, expires_at, signatures, status, executed_at,
		deployment_state, deploy_outcome, execution_error, version
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err = p.db.ExecContext(ctx, query,
		proposal.ID, proposal.PolicyID, proposal.ContractName, proposal.ContractID,
		proposal.WasmHash, proposal.Network, proposal.Proposer, proposal.Description,
		proposal.CreatedAt.UTC(), nullableTime(proposal.ExpiresAt), sigsJSON,
		string(proposal.Status), nullableTime(proposal.ExecutedAt),
		string(proposal.DeploymentState), proposal.DeployOutcome, proposal.ExecutionError,
		proposal.Version)
	if err != nil {
		return fmt.Errorf("insert proposal: %w", err)
	}
	return nil
}

const pgProposalColumns = `SELECT id, policy_id, contract_name, contract_id, wasm_hash, network,
	proposer, description, created_at, expires_at, signatures, status, executed_at,
	deployment_state, deploy_outcome, execution_error, version`

// GetProposal implements multisig.ProposalStore.
func (p *Postgres) GetProposal(ctx context.Context, id string) (*multisig.Proposal, error) {
	row := p.db.QueryRowContext(ctx, pgProposalColumns+` FROM multisig_proposals WHERE id = $1`, id)
	proposal, err := scanPGProposal(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, multisig.ErrNotFound
	}
	return proposal, err
}

// UpdateProposal implements multisig.ProposalStore. The version predicate
// makes the update the atomic compare half of the engine's check-and-set:
// of N concurrent writers from the same version, exactly one row update
// lands.
func (p *Postgres) UpdateProposal(ctx context.Context, proposal *multisig.Proposal, expectedVersion int64) error {
	sigsJSON, err := json.Marshal(proposal.Signatures)
	if err != nil {
		return fmt.Errorf("marshal signatures: %w", err)
	}
	query := `UPDATE multisig_proposals SET
		signatures = $1, status = $2, executed_at = $3,
		deployment_state = $4, deploy_outcome = $5, execution_error = $6,
		version = version + 1
		WHERE id = $7 AND version = $8`
	res, err := p.db.ExecContext(ctx, query,
		sigsJSON, string(proposal.Status), nullableTime(proposal.ExecutedAt),
		string(proposal.DeploymentState), proposal.DeployOutcome, proposal.ExecutionError,
		proposal.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update proposal: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return p.updateMiss(ctx, proposal.ID)
	}
	proposal.Version = expectedVersion + 1
	return nil
}

func (p *Postgres) updateMiss(ctx context.Context, id string) error {
	var exists bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM multisig_proposals WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return multisig.ErrNotFound
	}
	return multisig.ErrVersionConflict
}

// ListProposals implements multisig.ProposalStore.
func (p *Postgres) ListProposals(ctx context.Context, filter multisig.ProposalFilter) ([]*multisig.Proposal, error) {
	query := pgProposalColumns + ` FROM multisig_proposals`
	var args []any
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		query += fmt.Sprintf(` WHERE status = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var proposals []*multisig.Proposal
	for rows.Next() {
		proposal, err := scanPGProposal(rows.Scan)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, proposal)
	}
	return proposals, rows.Err()
}

func scanPGProposal(scan func(...any) error) (*multisig.Proposal, error) {
	var (
		proposal   multisig.Proposal
		sigsJSON   []byte
		expiresAt  sql.NullTime
		executedAt sql.NullTime
		status     string
		depState   string
	)
	err := scan(&proposal.ID, &proposal.PolicyID, &proposal.ContractName, &proposal.ContractID,
		&proposal.WasmHash, &proposal.Network, &proposal.Proposer, &proposal.Description,
		&proposal.CreatedAt, &expiresAt, &sigsJSON, &status, &executedAt,
		&depState, &proposal.DeployOutcome, &proposal.ExecutionError, &proposal.Version)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(sigsJSON, &proposal.Signatures); err != nil {
		return nil, fmt.Errorf("unmarshal signatures: %w", err)
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		proposal.ExpiresAt = &t
	}
	if executedAt.Valid {
		t := executedAt.Time
		proposal.ExecutedAt = &t
	}
	proposal.Status = multisig.Status(status)
	proposal.DeploymentState = multisig.DeploymentState(depState)
	return &proposal, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
