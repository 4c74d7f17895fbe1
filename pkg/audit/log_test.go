package audit

import (
	"context"
	"testing"
	"time"

	"github.com/PetJs/Soroban-Registry/pkg/multisig"
)

func TestLogAppend(t *testing.T) {
	l := NewLog()
	seq, err := l.Append("proposal.created", "alice", map[string]any{"proposal_id": "prop-1"})
	if err != nil {
		t.Fatal(err)
	}
	if seq != 1 {
		t.Fatalf("expected seq 1, got %d", seq)
	}
	if l.Length() != 1 {
		t.Fatalf("expected length 1, got %d", l.Length())
	}
}

func TestLogChainIntegrity(t *testing.T) {
	l := NewLog()
	l.Append("policy.created", "admin", map[string]any{"policy_id": "p1"})
	l.Append("proposal.created", "alice", map[string]any{"proposal_id": "prop-1"})
	l.Append("signature.added", "bob", map[string]any{"proposal_id": "prop-1"})

	ok, reason := l.Verify()
	if !ok {
		t.Fatalf("expected valid chain, got: %s", reason)
	}
}

func TestLogTamperDetection(t *testing.T) {
	l := NewLog()
	l.Append("policy.created", "admin", map[string]any{"policy_id": "p1"})
	l.Append("proposal.created", "alice", map[string]any{"proposal_id": "prop-1"})

	l.entries[0].Data["policy_id"] = "p2"

	ok, reason := l.Verify()
	if ok {
		t.Fatal("expected tampered chain to fail verification")
	}
	if reason == "" {
		t.Fatal("expected a reason for the failure")
	}
}

func TestLogHashChaining(t *testing.T) {
	l := NewLog()
	l.Append("a", "sys", map[string]any{"x": 1})
	l.Append("b", "sys", map[string]any{"x": 2})

	e1, _ := l.Get(1)
	e2, _ := l.Get(2)
	if e2.PrevHash != e1.ContentHash {
		t.Fatal("second entry prev_hash should match first content_hash")
	}
}

func TestLogHead(t *testing.T) {
	l := NewLog()
	if l.Head() != "genesis" {
		t.Fatal("expected genesis head")
	}
	l.Append("proposal.executed", "coordinator", map[string]any{"proposal_id": "prop-1"})
	if l.Head() == "genesis" {
		t.Fatal("head should change after append")
	}
}

func TestLogGetNotFound(t *testing.T) {
	l := NewLog()
	if _, err := l.Get(99); err == nil {
		t.Fatal("expected error for missing entry")
	}
}

func TestLogRecent(t *testing.T) {
	l := NewLog()
	l.Append("a", "sys", nil)
	l.Append("b", "sys", nil)
	l.Append("c", "sys", nil)

	recent := l.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(recent))
	}
	if recent[0].Kind != "c" || recent[1].Kind != "b" {
		t.Fatalf("expected newest first, got %s then %s", recent[0].Kind, recent[1].Kind)
	}

	all := l.Recent(0)
	if len(all) != 3 {
		t.Fatalf("expected all entries for limit 0, got %d", len(all))
	}
}

func TestLogDeterministicHash(t *testing.T) {
	l1 := NewLog()
	l1.Append("a", "sys", map[string]any{"x": 1})
	l2 := NewLog()
	l2.Append("a", "sys", map[string]any{"x": 1})

	e1, _ := l1.Get(1)
	e2, _ := l2.Get(1)
	if e1.ContentHash != e2.ContentHash {
		t.Fatal("same input should produce same hash")
	}
}

func TestSinkRecordsEvents(t *testing.T) {
	l := NewLog().WithClock(func() time.Time {
		return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	})
	sink := l.Sink(nil)

	sink.Record(context.Background(), multisig.Event{
		Kind:       multisig.EventSignatureAdded,
		PolicyID:   "pol-1",
		ProposalID: "prop-1",
		Actor:      "alice",
		Detail:     map[string]any{"signatures": 2},
	})

	if l.Length() != 1 {
		t.Fatalf("expected 1 entry, got %d", l.Length())
	}
	entry, _ := l.Get(1)
	if entry.Kind != multisig.EventSignatureAdded {
		t.Errorf("unexpected kind %s", entry.Kind)
	}
	if entry.Actor != "alice" {
		t.Errorf("unexpected actor %s", entry.Actor)
	}
	if entry.Data["proposal_id"] != "prop-1" {
		t.Errorf("detail missing proposal id: %v", entry.Data)
	}
	if ok, reason := l.Verify(); !ok {
		t.Fatalf("chain invalid: %s", reason)
	}
}
