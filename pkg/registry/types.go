// Package registry holds the contract catalog behind the governance engine:
// published contract records, their versions, and hotfix patch records.
package registry

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound       = errors.New("registry: record not found")
	ErrInvalidRecord  = errors.New("registry: invalid record")
	ErrInvalidVersion = errors.New("registry: invalid version")
	ErrInvalidPatch   = errors.New("registry: invalid patch")
	ErrOutsideRollout = errors.New("registry: contract outside patch rollout cohort")
)

// ContractRecord is one published contract version.
type ContractRecord struct {
	ID          string    `json:"id"`
	ContractID  string    `json:"contract_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Publisher   string    `json:"publisher"`
	Network     string    `json:"network"`
	Verified    bool      `json:"verified"`
	WasmHash    string    `json:"wasm_hash,omitempty"`
	Version     string    `json:"version"`
	Downloads   int64     `json:"downloads"`
	PublishedAt time.Time `json:"published_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Severity classifies how urgent a patch is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity parses a raw severity. Empty input defaults to medium;
// unknown values are rejected.
func ParseSeverity(raw string) (Severity, error) {
	switch Severity(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return SeverityMedium, nil
	case SeverityLow:
		return SeverityLow, nil
	case SeverityMedium:
		return SeverityMedium, nil
	case SeverityHigh:
		return SeverityHigh, nil
	case SeverityCritical:
		return SeverityCritical, nil
	default:
		return "", fmt.Errorf("%w: unknown severity %q", ErrInvalidPatch, raw)
	}
}

// PatchRecord is a hotfix artifact awaiting rollout to contracts.
type PatchRecord struct {
	ID             string    `json:"id"`
	Version        string    `json:"version"`
	WasmHash       string    `json:"wasm_hash"`
	Severity       Severity  `json:"severity"`
	RolloutPercent int       `json:"rollout_percent"`
	CreatedAt      time.Time `json:"created_at"`
}

// PatchApplication records that a patch was applied to a contract.
type PatchApplication struct {
	PatchID    string    `json:"patch_id"`
	ContractID string    `json:"contract_id"`
	AppliedAt  time.Time `json:"applied_at"`
}

// SearchQuery selects contract records.
type SearchQuery struct {
	Query        string
	Category     string
	VerifiedOnly bool
	Limit        int
}

// Clone returns a deep copy of the record.
func (r *ContractRecord) Clone() *ContractRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Tags = append([]string(nil), r.Tags...)
	return &out
}
