// Package audit keeps an append-only, hash-chained record of governance
// actions. Each entry is content-hashed over its canonical form and chained
// to its predecessor, so any rewrite of history is detectable by walking the
// chain.
package audit

import (
	"fmt"
	"sync"
	"time"

	"github.com/PetJs/Soroban-Registry/pkg/canonicalize"
)

// Entry is an immutable, hash-chained audit record.
type Entry struct {
	Sequence    uint64         `json:"sequence"`
	Kind        string         `json:"kind"`
	Actor       string         `json:"actor,omitempty"`
	ContentHash string         `json:"content_hash"`
	PrevHash    string         `json:"prev_hash"`
	Timestamp   time.Time      `json:"timestamp"`
	Data        map[string]any `json:"data"`
}

// Log is an append-only, hash-chained audit log.
type Log struct {
	mu       sync.RWMutex
	entries  []Entry
	headHash string
	clock    func() time.Time
}

// NewLog creates an empty log with the genesis head.
func NewLog() *Log {
	return &Log{
		entries:  make([]Entry, 0),
		headHash: "genesis",
		clock:    time.Now,
	}
}

// WithClock overrides clock for testing.
func (l *Log) WithClock(clock func() time.Time) *Log {
	l.clock = clock
	return l
}

type hashInput struct {
	Seq      uint64         `json:"seq"`
	Kind     string         `json:"kind"`
	Actor    string         `json:"actor"`
	Data     map[string]any `json:"data"`
	PrevHash string         `json:"prev"`
}

// Append adds an entry and returns its sequence number.
func (l *Log) Append(kind, actor string, data map[string]any) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq := uint64(len(l.entries)) + 1
	hash, err := canonicalize.CanonicalHash(hashInput{
		Seq:      seq,
		Kind:     kind,
		Actor:    actor,
		Data:     data,
		PrevHash: l.headHash,
	})
	if err != nil {
		return 0, fmt.Errorf("hash audit entry: %w", err)
	}
	contentHash := "sha256:" + hash

	l.entries = append(l.entries, Entry{
		Sequence:    seq,
		Kind:        kind,
		Actor:       actor,
		ContentHash: contentHash,
		PrevHash:    l.headHash,
		Timestamp:   l.clock(),
		Data:        data,
	})
	l.headHash = contentHash
	return seq, nil
}

// Get retrieves an entry by sequence number.
func (l *Log) Get(seq uint64) (*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if seq == 0 || seq > uint64(len(l.entries)) {
		return nil, fmt.Errorf("entry %d not found", seq)
	}
	entry := l.entries[seq-1]
	return &entry, nil
}

// Recent returns up to limit entries, newest first.
func (l *Log) Recent(limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := len(l.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Entry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, l.entries[i])
	}
	return out
}

// Head returns the current head hash.
func (l *Log) Head() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.headHash
}

// Length returns the number of entries.
func (l *Log) Length() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Verify checks the integrity of the whole chain.
func (l *Log) Verify() (bool, string) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	prevHash := "genesis"
	for i, entry := range l.entries {
		if entry.PrevHash != prevHash {
			return false, fmt.Sprintf("chain broken at entry %d: expected prev %s, got %s", i+1, prevHash, entry.PrevHash)
		}
		hash, err := canonicalize.CanonicalHash(hashInput{
			Seq:      entry.Sequence,
			Kind:     entry.Kind,
			Actor:    entry.Actor,
			Data:     entry.Data,
			PrevHash: entry.PrevHash,
		})
		if err != nil {
			return false, fmt.Sprintf("failed to hash entry %d", i+1)
		}
		if computed := "sha256:" + hash; computed != entry.ContentHash {
			return false, fmt.Sprintf("hash mismatch at entry %d", i+1)
		}
		prevHash = entry.ContentHash
	}
	return true, "chain verified"
}
