package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// Postgres implements Store and PatchStore with SQL persistence. Records are
// stored whole as JSONB with the lookup keys lifted into columns.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a registry store over an open connection pool.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const pgRegistrySchema = `
CREATE TABLE IF NOT EXISTS registry_contracts (
	id TEXT NOT NULL,
	contract_id TEXT NOT NULL,
	network TEXT NOT NULL,
	version TEXT NOT NULL,
	record_json JSONB NOT NULL,
	published_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (contract_id, network, version)
);

CREATE INDEX IF NOT EXISTS idx_registry_contracts_updated
	ON registry_contracts (updated_at DESC);

CREATE TABLE IF NOT EXISTS registry_patches (
	id TEXT PRIMARY KEY,
	patch_json JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS registry_patch_applications (
	patch_id TEXT NOT NULL,
	contract_id TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (patch_id, contract_id)
);
`

// Init creates the registry tables if they do not exist.
func (r *Postgres) Init(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, pgRegistrySchema)
	return err
}

// Upsert implements Store.
func (r *Postgres) Upsert(ctx context.Context, rec *ContractRecord) error {
	recJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	query := `
		INSERT INTO registry_contracts (id, contract_id, network, version, record_json, published_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (contract_id, network, version) DO UPDATE
		SET record_json = $5, updated_at = $7
	`
	_, err = r.db.ExecContext(ctx, query,
		rec.ID, rec.ContractID, rec.Network, rec.Version, recJSON,
		rec.PublishedAt.UTC(), rec.UpdatedAt.UTC())
	return err
}

func (r *Postgres) versionsRaw(ctx context.Context, contractID string) ([]*ContractRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT record_json FROM registry_contracts WHERE contract_id = $1", contractID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*ContractRecord
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var rec ContractRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Latest implements Store. The highest parseable semver wins.
func (r *Postgres) Latest(ctx context.Context, contractID string) (*ContractRecord, error) {
	records, err := r.versionsRaw(ctx, contractID)
	if err != nil {
		return nil, err
	}

	var best *ContractRecord
	var bestVer *semver.Version
	for _, rec := range records {
		v, err := semver.NewVersion(rec.Version)
		if err != nil {
			continue
		}
		if bestVer == nil || v.GreaterThan(bestVer) {
			best, bestVer = rec, v
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

// Versions implements Store, highest version first.
func (r *Postgres) Versions(ctx context.Context, contractID string) ([]*ContractRecord, error) {
	records, err := r.versionsRaw(ctx, contractID)
	if err != nil {
		return nil, err
	}

	type versioned struct {
		v   *semver.Version
		rec *ContractRecord
	}
	var parsed []versioned
	for _, rec := range records {
		v, err := semver.NewVersion(rec.Version)
		if err != nil {
			continue
		}
		parsed = append(parsed, versioned{v: v, rec: rec})
	}
	if len(parsed) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(parsed, func(i, j int) bool {
		return parsed[i].v.GreaterThan(parsed[j].v)
	})

	out := make([]*ContractRecord, 0, len(parsed))
	for _, p := range parsed {
		out = append(out, p.rec)
	}
	return out, nil
}

// All implements Store: the most recently updated record per contract,
// newest first.
func (r *Postgres) All(ctx context.Context, limit int) ([]*ContractRecord, error) {
	query := `
		SELECT DISTINCT ON (contract_id) record_json
		FROM registry_contracts
		ORDER BY contract_id, updated_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*ContractRecord
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var rec ContractRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ContractID < out[j].ContractID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreatePatch implements PatchStore.
func (r *Postgres) CreatePatch(ctx context.Context, p *PatchRecord) error {
	patchJSON, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal patch: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		"INSERT INTO registry_patches (id, patch_json, created_at) VALUES ($1, $2, $3)",
		p.ID, patchJSON, p.CreatedAt.UTC())
	return err
}

// GetPatch implements PatchStore.
func (r *Postgres) GetPatch(ctx context.Context, id string) (*PatchRecord, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT patch_json FROM registry_patches WHERE id = $1", id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var p PatchRecord
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("unmarshal patch: %w", err)
	}
	return &p, nil
}

// ListPatches implements PatchStore, newest first.
func (r *Postgres) ListPatches(ctx context.Context, limit int) ([]*PatchRecord, error) {
	query := "SELECT patch_json FROM registry_patches ORDER BY created_at DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*PatchRecord
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var p PatchRecord
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("unmarshal patch: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// RecordApplication implements PatchStore.
func (r *Postgres) RecordApplication(ctx context.Context, app *PatchApplication) error {
	query := `
		INSERT INTO registry_patch_applications (patch_id, contract_id, applied_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (patch_id, contract_id) DO UPDATE SET applied_at = $3
	`
	_, err := r.db.ExecContext(ctx, query, app.PatchID, app.ContractID, app.AppliedAt.UTC())
	return err
}

// Applications implements PatchStore.
func (r *Postgres) Applications(ctx context.Context, contractID string) ([]*PatchApplication, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT patch_id, contract_id, applied_at
		FROM registry_patch_applications
		WHERE contract_id = $1
		ORDER BY applied_at DESC
	`, contractID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*PatchApplication
	for rows.Next() {
		var app PatchApplication
		if err := rows.Scan(&app.PatchID, &app.ContractID, &app.AppliedAt); err != nil {
			return nil, err
		}
		out = append(out, &app)
	}
	return out, rows.Err()
}
