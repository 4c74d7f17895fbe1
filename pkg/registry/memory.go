package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
)

// Memory is a thread-safe in-memory Store and PatchStore for tests and lite
// deployments.
type Memory struct {
	mu      sync.RWMutex
	records map[string]map[string]*ContractRecord // contractID -> network@version
	patches map[string]*PatchRecord
	applied []*PatchApplication
}

// NewMemory creates an empty in-memory registry store.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]map[string]*ContractRecord),
		patches: make(map[string]*PatchRecord),
	}
}

func recordKey(network, version string) string {
	return network + "@" + version
}

// Upsert implements Store.
func (m *Memory) Upsert(_ context.Context, rec *ContractRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	versions, ok := m.records[rec.ContractID]
	if !ok {
		versions = make(map[string]*ContractRecord)
		m.records[rec.ContractID] = versions
	}
	versions[recordKey(rec.Network, rec.Version)] = rec.Clone()
	return nil
}

// Latest implements Store. The highest parseable semver wins.
func (m *Memory) Latest(_ context.Context, contractID string) (*ContractRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	versions, ok := m.records[contractID]
	if !ok || len(versions) == 0 {
		return nil, ErrNotFound
	}

	var best *ContractRecord
	var bestVer *semver.Version
	for _, rec := range versions {
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
	return best.Clone(), nil
}

// Versions implements Store, highest version first.
func (m *Memory) Versions(_ context.Context, contractID string) ([]*ContractRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	versions, ok := m.records[contractID]
	if !ok || len(versions) == 0 {
		return nil, ErrNotFound
	}

	type versioned struct {
		v   *semver.Version
		rec *ContractRecord
	}
	var parsed []versioned
	for _, rec := range versions {
		v, err := semver.NewVersion(rec.Version)
		if err != nil {
			continue
		}
		parsed = append(parsed, versioned{v: v, rec: rec})
	}
	sort.Slice(parsed, func(i, j int) bool {
		return parsed[i].v.GreaterThan(parsed[j].v)
	})

	out := make([]*ContractRecord, 0, len(parsed))
	for _, p := range parsed {
		out = append(out, p.rec.Clone())
	}
	return out, nil
}

// All implements Store: the most recently updated record per contract,
// newest first.
func (m *Memory) All(_ context.Context, limit int) ([]*ContractRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*ContractRecord, 0, len(m.records))
	for _, versions := range m.records {
		var newest *ContractRecord
		for _, rec := range versions {
			if newest == nil || rec.UpdatedAt.After(newest.UpdatedAt) {
				newest = rec
			}
		}
		if newest != nil {
			out = append(out, newest.Clone())
		}
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
func (m *Memory) CreatePatch(_ context.Context, p *PatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.patches[p.ID] = &cp
	return nil
}

// GetPatch implements PatchStore.
func (m *Memory) GetPatch(_ context.Context, id string) (*PatchRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patches[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// ListPatches implements PatchStore, newest first.
func (m *Memory) ListPatches(_ context.Context, limit int) ([]*PatchRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*PatchRecord, 0, len(m.patches))
	for _, p := range m.patches {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RecordApplication implements PatchStore.
func (m *Memory) RecordApplication(_ context.Context, app *PatchApplication) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.applied {
		if existing.PatchID == app.PatchID && existing.ContractID == app.ContractID {
			cp := *app
			m.applied[i] = &cp
			return nil
		}
	}
	cp := *app
	m.applied = append(m.applied, &cp)
	return nil
}

// Applications implements PatchStore.
func (m *Memory) Applications(_ context.Context, contractID string) ([]*PatchApplication, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*PatchApplication
	for _, app := range m.applied {
		if app.ContractID == contractID {
			cp := *app
			out = append(out, &cp)
		}
	}
	return out, nil
}
