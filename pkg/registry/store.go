package registry

import "context"

// Store persists contract records. Implementations return ErrNotFound for
// missing records.
type Store interface {
	// Upsert inserts or replaces the record keyed by
	// (contract_id, network, version).
	Upsert(ctx context.Context, rec *ContractRecord) error
	// Latest returns the highest-version record for a contract ID.
	Latest(ctx context.Context, contractID string) (*ContractRecord, error)
	// Versions returns every version of a contract, highest first.
	Versions(ctx context.Context, contractID string) ([]*ContractRecord, error)
	// All returns the latest record of every contract, most recently
	// published first. limit 0 means no limit.
	All(ctx context.Context, limit int) ([]*ContractRecord, error)
}

// PatchStore persists patch records and their applications.
type PatchStore interface {
	CreatePatch(ctx context.Context, p *PatchRecord) error
	GetPatch(ctx context.Context, id string) (*PatchRecord, error)
	ListPatches(ctx context.Context, limit int) ([]*PatchRecord, error)
	RecordApplication(ctx context.Context, app *PatchApplication) error
	Applications(ctx context.Context, contractID string) ([]*PatchApplication, error)
}
