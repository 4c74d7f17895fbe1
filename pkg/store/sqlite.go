package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/PetJs/Soroban-Registry/pkg/multisig"

	_ "modernc.org/sqlite"
)

// timeLayout is RFC 3339 with fixed-width nanoseconds so the stored strings
// sort lexicographically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite persists governance records in an embedded SQLite database. It is
// the lite-mode default; the schema is created on construction.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and runs the
// schema migration. Use ":memory:" for throwaway databases.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// modernc.org/sqlite serializes writes per connection; a single
	// connection avoids SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)
	return NewSQLite(db)
}

// NewSQLite wraps an existing database handle and runs the schema migration.
func NewSQLite(db *sql.DB) (*SQLite, error) {
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate sqlite schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS multisig_policies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		signers JSON NOT NULL,
		threshold INTEGER NOT NULL,
		expiry_secs INTEGER NOT NULL DEFAULT 0,
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL
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
		created_at TEXT NOT NULL,
		expires_at TEXT,
		signatures JSON NOT NULL,
		status TEXT NOT NULL,
		executed_at TEXT,
		deployment_state TEXT NOT NULL DEFAULT '',
		deploy_outcome TEXT NOT NULL DEFAULT '',
		execution_error TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_multisig_proposals_status
		ON multisig_proposals(status);
	CREATE INDEX IF NOT EXISTS idx_multisig_proposals_created_at
		ON multisig_proposals(created_at DESC);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// CreatePolicy implements multisig.PolicyStore.
func (s *SQLite) CreatePolicy(ctx context.Context, policy *multisig.Policy) error {
	signersJSON, err := json.Marshal(policy.Signers)
	if err != nil {
		return fmt.Errorf("marshal signers: %w", err)
	}
	query := `INSERT INTO multisig_policies (id, name, signers, threshold, expiry_secs, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		policy.ID, policy.Name, string(signersJSON), policy.Threshold,
		policy.ExpirySeconds, policy.CreatedBy, policy.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert policy: %w", err)
	}
	return nil
}

// GetPolicy implements multisig.PolicyStore.
func (s *SQLite) GetPolicy(ctx context.Context, id string) (*multisig.Policy, error) {
	query := `SELECT id, name, signers, threshold, expiry_secs, created_by, created_at
		FROM multisig_policies WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, id)
	policy, err := scanPolicy(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, multisig.ErrNotFound
	}
	return policy, err
}

// ListPolicies implements multisig.PolicyStore.
func (s *SQLite) ListPolicies(ctx context.Context, limit int) ([]*multisig.Policy, error) {
	query := `SELECT id, name, signers, threshold, expiry_secs, created_by, created_at
		FROM multisig_policies ORDER BY created_at DESC, id`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var policies []*multisig.Policy
	for rows.Next() {
		policy, err := scanPolicy(rows.Scan)
		if err != nil {
			return nil, err
		}
		policies = append(policies, policy)
	}
	return policies, rows.Err()
}

// CreateProposal implements multisig.ProposalStore.
func (s *SQLite) CreateProposal(ctx context.Context, proposal *multisig.Proposal) error {
	sigsJSON, err := json.Marshal(proposal.Signatures)
	if err != nil {
		return fmt.Errorf("marshal signatures: %w", err)
	}
	proposal.Version = 1
	query := `INSERT INTO multisig_proposals (
		id, policy_id, contract_name, contract_id, wasm_hash, network, proposer, description,
		created_at, expires_at, signatures, status, executed_at,
		deployment_state, deploy_outcome, execution_error, version
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		proposal.ID, proposal.PolicyID, proposal.ContractName, proposal.ContractID,
		proposal.WasmHash, proposal.Network, proposal.Proposer, proposal.Description,
		proposal.CreatedAt.UTC().Format(timeLayout), formatNullableTime(proposal.ExpiresAt),
		string(sigsJSON), string(proposal.Status), formatNullableTime(proposal.ExecutedAt),
		string(proposal.DeploymentState), proposal.DeployOutcome, proposal.ExecutionError,
		proposal.Version)
	if err != nil {
		return fmt.Errorf("insert proposal: %w", err)
	}
	return nil
}

// GetProposal implements multisig.ProposalStore.
func (s *SQLite) GetProposal(ctx context.Context, id string) (*multisig.Proposal, error) {
	row := s.db.QueryRowContext(ctx, proposalColumns+` FROM multisig_proposals WHERE id = ?`, id)
	proposal, err := scanProposal(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, multisig.ErrNotFound
	}
	return proposal, err
}

// UpdateProposal implements multisig.ProposalStore. The version predicate
// in the WHERE clause is the compare half of the engine's check-and-set.
func (s *SQLite) UpdateProposal(ctx context.Context, proposal *multisig.Proposal, expectedVersion int64) error {
	sigsJSON, err := json.Marshal(proposal.Signatures)
	if err != nil {
		return fmt.Errorf("marshal signatures: %w", err)
	}
	query := `UPDATE multisig_proposals SET
		signatures = ?, status = ?, executed_at = ?,
		deployment_state = ?, deploy_outcome = ?, execution_error = ?,
		version = version + 1
		WHERE id = ? AND version = ?`
	res, err := s.db.ExecContext(ctx, query,
		string(sigsJSON), string(proposal.Status), formatNullableTime(proposal.ExecutedAt),
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
		return s.updateMiss(ctx, proposal.ID)
	}
	proposal.Version = expectedVersion + 1
	return nil
}

// updateMiss distinguishes a vanished record from a lost version race.
func (s *SQLite) updateMiss(ctx context.Context, id string) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM multisig_proposals WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return multisig.ErrNotFound
	}
	return multisig.ErrVersionConflict
}

// ListProposals implements multisig.ProposalStore.
func (s *SQLite) ListProposals(ctx context.Context, filter multisig.ProposalFilter) ([]*multisig.Proposal, error) {
	query := proposalColumns + ` FROM multisig_proposals`
	var args []any
	if filter.Status != nil {
		query += ` WHERE status = ?`
		args = append(args, string(*filter.Status))
	}
	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var proposals []*multisig.Proposal
	for rows.Next() {
		proposal, err := scanProposal(rows.Scan)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, proposal)
	}
	return proposals, rows.Err()
}

const proposalColumns = `SELECT id, policy_id, contract_name, contract_id, wasm_hash, network,
	proposer, description, created_at, expires_at, signatures, status, executed_at,
	deployment_state, deploy_outcome, execution_error, version`

func scanPolicy(scan func(...any) error) (*multisig.Policy, error) {
	var (
		policy      multisig.Policy
		signersJSON string
		createdAt   string
	)
	err := scan(&policy.ID, &policy.Name, &signersJSON, &policy.Threshold,
		&policy.ExpirySeconds, &policy.CreatedBy, &createdAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(signersJSON), &policy.Signers); err != nil {
		return nil, fmt.Errorf("unmarshal signers: %w", err)
	}
	policy.CreatedAt = parseTime(createdAt)
	return &policy, nil
}

func scanProposal(scan func(...any) error) (*multisig.Proposal, error) {
	var (
		proposal   multisig.Proposal
		sigsJSON   string
		createdAt  string
		expiresAt  sql.NullString
		executedAt sql.NullString
		status     string
		depState   string
	)
	err := scan(&proposal.ID, &proposal.PolicyID, &proposal.ContractName, &proposal.ContractID,
		&proposal.WasmHash, &proposal.Network, &proposal.Proposer, &proposal.Description,
		&createdAt, &expiresAt, &sigsJSON, &status, &executedAt,
		&depState, &proposal.DeployOutcome, &proposal.ExecutionError, &proposal.Version)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(sigsJSON), &proposal.Signatures); err != nil {
		return nil, fmt.Errorf("unmarshal signatures: %w", err)
	}
	proposal.CreatedAt = parseTime(createdAt)
	proposal.ExpiresAt = parseNullableTime(expiresAt)
	proposal.ExecutedAt = parseNullableTime(executedAt)
	proposal.Status = multisig.Status(status)
	proposal.DeploymentState = multisig.DeploymentState(depState)
	return &proposal, nil
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseNullableTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t := parseTime(v.String)
	return &t
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}
