package registry

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/PetJs/Soroban-Registry/pkg/deploy"
)

// DefaultSearchLimit bounds search results when the caller does not pick one.
const DefaultSearchLimit = 10

// DefaultListLimit bounds list results when the caller does not pick one.
const DefaultListLimit = 20

// ArtifactStore is the slice of the artifact CAS the registry needs: store
// bytes, get back the content digest.
type ArtifactStore interface {
	Store(ctx context.Context, data []byte) (string, error)
}

// Service validates and serves contract records and patches.
type Service struct {
	store     Store
	patches   PatchStore
	metadata  *MetadataValidator
	wasm      *WasmValidator
	artifacts ArtifactStore
	clock     func() time.Time
	logger    *slog.Logger
}

// NewService creates a registry service over the given stores.
func NewService(store Store, patches PatchStore) (*Service, error) {
	metadata, err := NewMetadataValidator()
	if err != nil {
		return nil, err
	}
	return &Service{
		store:    store,
		patches:  patches,
		metadata: metadata,
		wasm:     NewWasmValidator(),
		clock:    time.Now,
		logger:   slog.Default(),
	}, nil
}

// WithArtifacts wires the Wasm artifact store. Published artifacts are pinned
// to their content digest.
func (s *Service) WithArtifacts(a ArtifactStore) *Service {
	s.artifacts = a
	return s
}

// WithClock overrides clock for testing.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// WithLogger overrides the logger.
func (s *Service) WithLogger(l *slog.Logger) *Service {
	s.logger = l
	return s
}

// PublishInput is the publish request payload.
type PublishInput struct {
	ContractID  string   `json:"contract_id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Publisher   string   `json:"publisher"`
	Network     string   `json:"network,omitempty"`
	Version     string   `json:"version"`
	WasmHash    string   `json:"wasm_hash,omitempty"`
	Wasm        []byte   `json:"wasm,omitempty"`
}

// Publish validates and upserts a contract record. Republishing the same
// (contractId, network, version) replaces the metadata and keeps the original
// publication time.
func (s *Service) Publish(ctx context.Context, in PublishInput) (*ContractRecord, error) {
	network, err := deploy.ResolveNetwork(in.Network)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if _, err := semver.NewVersion(in.Version); err != nil {
		return nil, fmt.Errorf("%w: version %q: %v", ErrInvalidVersion, in.Version, err)
	}
	if err := s.metadata.Validate(publishDoc(in, network)); err != nil {
		return nil, err
	}

	wasmHash := in.WasmHash
	if len(in.Wasm) > 0 {
		if err := s.wasm.Validate(ctx, in.Wasm); err != nil {
			return nil, err
		}
		if s.artifacts == nil {
			return nil, fmt.Errorf("%w: no artifact store configured for wasm upload", ErrInvalidRecord)
		}
		digest, err := s.artifacts.Store(ctx, in.Wasm)
		if err != nil {
			return nil, fmt.Errorf("store wasm artifact: %w", err)
		}
		if wasmHash != "" && wasmHash != digest {
			return nil, fmt.Errorf("%w: wasm_hash %s does not match artifact digest %s", ErrInvalidRecord, wasmHash, digest)
		}
		wasmHash = digest
	}

	now := s.clock().UTC()
	rec := &ContractRecord{
		ID:          uuid.New().String(),
		ContractID:  in.ContractID,
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		Tags:        append([]string(nil), in.Tags...),
		Publisher:   in.Publisher,
		Network:     network.String(),
		WasmHash:    wasmHash,
		Version:     in.Version,
		PublishedAt: now,
		UpdatedAt:   now,
	}

	if prior := s.priorVersion(ctx, in.ContractID, rec.Network, rec.Version); prior != nil {
		rec.ID = prior.ID
		rec.PublishedAt = prior.PublishedAt
		rec.Verified = prior.Verified
		rec.Downloads = prior.Downloads
	}

	if err := s.store.Upsert(ctx, rec); err != nil {
		return nil, err
	}
	s.logger.Info("contract published",
		"contract_id", rec.ContractID,
		"version", rec.Version,
		"network", rec.Network,
		"publisher", rec.Publisher)
	return rec, nil
}

func publishDoc(in PublishInput, network deploy.Network) map[string]any {
	doc := map[string]any{
		"contract_id": in.ContractID,
		"name":        in.Name,
		"publisher":   in.Publisher,
		"network":     network.String(),
		"version":     in.Version,
	}
	if in.Description != "" {
		doc["description"] = in.Description
	}
	if in.Category != "" {
		doc["category"] = in.Category
	}
	if len(in.Tags) > 0 {
		tags := make([]any, len(in.Tags))
		for i, t := range in.Tags {
			tags[i] = t
		}
		doc["tags"] = tags
	}
	if in.WasmHash != "" {
		doc["wasm_hash"] = in.WasmHash
	}
	return doc
}

func (s *Service) priorVersion(ctx context.Context, contractID, network, version string) *ContractRecord {
	versions, err := s.store.Versions(ctx, contractID)
	if err != nil {
		return nil
	}
	for _, rec := range versions {
		if rec.Network == network && rec.Version == version {
			return rec
		}
	}
	return nil
}

// Get returns the latest version of a contract.
func (s *Service) Get(ctx context.Context, contractID string) (*ContractRecord, error) {
	return s.store.Latest(ctx, contractID)
}

// Versions returns every published version of a contract, highest first.
func (s *Service) Versions(ctx context.Context, contractID string) ([]*ContractRecord, error) {
	return s.store.Versions(ctx, contractID)
}

// List returns the newest record per contract, most recent first.
func (s *Service) List(ctx context.Context, limit int) ([]*ContractRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.store.All(ctx, limit)
}

// Search ranks contracts by relevance to the query, then recency.
func (s *Service) Search(ctx context.Context, q SearchQuery) ([]*ContractRecord, error) {
	records, err := s.store.All(ctx, 0)
	if err != nil {
		return nil, err
	}

	term := Normalize(strings.TrimSpace(q.Query))
	category := Normalize(strings.TrimSpace(q.Category))

	type scored struct {
		score int
		rec   *ContractRecord
	}
	var hits []scored
	for _, rec := range records {
		if q.VerifiedOnly && !rec.Verified {
			continue
		}
		if category != "" && Normalize(rec.Category) != category {
			continue
		}
		score := matchScore(rec, term)
		if score == 0 {
			continue
		}
		hits = append(hits, scored{score: score, rec: rec})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		if !hits[i].rec.UpdatedAt.Equal(hits[j].rec.UpdatedAt) {
			return hits[i].rec.UpdatedAt.After(hits[j].rec.UpdatedAt)
		}
		return hits[i].rec.ContractID < hits[j].rec.ContractID
	})

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]*ContractRecord, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.rec)
	}
	return out, nil
}

// PatchInput is the patch creation payload.
type PatchInput struct {
	Version        string `json:"version"`
	WasmHash       string `json:"wasm_hash"`
	Severity       string `json:"severity,omitempty"`
	RolloutPercent *int   `json:"rollout_percent,omitempty"`
}

// CreatePatch validates and stores a patch record.
func (s *Service) CreatePatch(ctx context.Context, in PatchInput) (*PatchRecord, error) {
	if _, err := semver.NewVersion(in.Version); err != nil {
		return nil, fmt.Errorf("%w: version %q: %v", ErrInvalidPatch, in.Version, err)
	}
	if in.WasmHash == "" {
		return nil, fmt.Errorf("%w: wasm_hash required", ErrInvalidPatch)
	}
	severity, err := ParseSeverity(in.Severity)
	if err != nil {
		return nil, err
	}
	rollout := 100
	if in.RolloutPercent != nil {
		rollout = *in.RolloutPercent
	}
	if rollout < 0 || rollout > 100 {
		return nil, fmt.Errorf("%w: rollout_percent must be 0-100, got %d", ErrInvalidPatch, rollout)
	}

	p := &PatchRecord{
		ID:             uuid.New().String(),
		Version:        in.Version,
		WasmHash:       in.WasmHash,
		Severity:       severity,
		RolloutPercent: rollout,
		CreatedAt:      s.clock().UTC(),
	}
	if err := s.patches.CreatePatch(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("patch created", "patch_id", p.ID, "version", p.Version, "severity", string(p.Severity))
	return p, nil
}

// GetPatch returns a patch by ID.
func (s *Service) GetPatch(ctx context.Context, id string) (*PatchRecord, error) {
	return s.patches.GetPatch(ctx, id)
}

// ListPatches returns patches, newest first.
func (s *Service) ListPatches(ctx context.Context, limit int) ([]*PatchRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.patches.ListPatches(ctx, limit)
}

// ApplyPatch records that a patch was applied to a contract. Contracts
// outside the patch's rollout cohort are refused; redeployment itself goes
// through the governance engine.
func (s *Service) ApplyPatch(ctx context.Context, contractID, patchID string) (*PatchApplication, error) {
	patch, err := s.patches.GetPatch(ctx, patchID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Latest(ctx, contractID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: contract %s", ErrNotFound, contractID)
		}
		return nil, err
	}
	if !inRollout(patchID, contractID, patch.RolloutPercent) {
		return nil, ErrOutsideRollout
	}

	app := &PatchApplication{
		PatchID:    patchID,
		ContractID: contractID,
		AppliedAt:  s.clock().UTC(),
	}
	if err := s.patches.RecordApplication(ctx, app); err != nil {
		return nil, err
	}
	s.logger.Info("patch applied", "patch_id", patchID, "contract_id", contractID)
	return app, nil
}

// inRollout maps the contract deterministically to a slot in 0-9999 and
// admits it when the slot falls under the rollout percentage. The same
// contract always lands in the same cohort for a given patch.
func inRollout(patchID, contractID string, percent int) bool {
	if percent >= 100 {
		return true
	}
	if percent <= 0 {
		return false
	}
	hash := crc32.ChecksumIEEE([]byte(strings.ToLower(patchID + ":" + contractID)))
	slot := int(hash % 10000)
	return slot < percent*100
}
