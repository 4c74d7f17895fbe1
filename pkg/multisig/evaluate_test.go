package multisig

import (
	"testing"
	"time"
)

func TestEvaluate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	policy := &Policy{Signers: []string{"a", "b", "c"}, Threshold: 2}
	sigs := func(n int) []Signature {
		out := make([]Signature, n)
		for i := range out {
			out[i] = Signature{Signer: string(rune('a' + i)), SignedAt: past}
		}
		return out
	}

	cases := []struct {
		name     string
		proposal Proposal
		want     Status
	}{
		{"no signatures", Proposal{Status: StatusPending}, StatusPending},
		{"below threshold", Proposal{Status: StatusPending, Signatures: sigs(1)}, StatusPending},
		{"at threshold", Proposal{Status: StatusPending, Signatures: sigs(2)}, StatusApproved},
		{"above threshold", Proposal{Status: StatusPending, Signatures: sigs(3)}, StatusApproved},
		{"expired beats quorum", Proposal{Status: StatusPending, Signatures: sigs(3), ExpiresAt: &past}, StatusExpired},
		{"window still open", Proposal{Status: StatusPending, Signatures: sigs(2), ExpiresAt: &future}, StatusApproved},
		{"executed is absorbing", Proposal{Status: StatusExecuted, ExpiresAt: &past}, StatusExecuted},
		{"expired is absorbing", Proposal{Status: StatusExpired, Signatures: sigs(3)}, StatusExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Evaluate(policy, &tc.proposal, now); got != tc.want {
				t.Errorf("Evaluate() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestEvaluate_IsPure(t *testing.T) {
	now := time.Now().UTC()
	policy := &Policy{Signers: []string{"a"}, Threshold: 1}
	proposal := &Proposal{Status: StatusPending, Signatures: []Signature{{Signer: "a"}}}

	got := Evaluate(policy, proposal, now)
	if got != StatusApproved {
		t.Fatalf("Evaluate() = %s, want APPROVED", got)
	}
	if proposal.Status != StatusPending {
		t.Errorf("Evaluate mutated its input: status = %s", proposal.Status)
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusPending.Terminal() || StatusApproved.Terminal() {
		t.Error("PENDING and APPROVED must not be terminal")
	}
	if !StatusExecuted.Terminal() || !StatusExpired.Terminal() {
		t.Error("EXECUTED and EXPIRED must be terminal")
	}
}

func TestParseStatus(t *testing.T) {
	cases := []struct {
		in   string
		want Status
		ok   bool
	}{
		{"PENDING", StatusPending, true},
		{"pending", StatusPending, true},
		{" Approved ", StatusApproved, true},
		{"executed", StatusExecuted, true},
		{"EXPIRED", StatusExpired, true},
		{"", "", false},
		{"bogus", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseStatus(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseStatus(%q) = (%s, %v), want (%s, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestProposalExpired(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Second)

	open := &Proposal{}
	if open.Expired(now) {
		t.Error("proposal without a window must never expire")
	}
	exact := &Proposal{ExpiresAt: &now}
	if exact.Expired(now) {
		t.Error("expiry boundary is exclusive")
	}
	gone := &Proposal{ExpiresAt: &past}
	if !gone.Expired(now) {
		t.Error("past window must report expired")
	}
}

func TestProposalClone_Independent(t *testing.T) {
	expires := time.Now().UTC()
	orig := &Proposal{
		ID:         "p1",
		Signatures: []Signature{{Signer: "a"}},
		ExpiresAt:  &expires,
	}
	cp := orig.Clone()
	cp.Signatures = append(cp.Signatures, Signature{Signer: "b"})
	*cp.ExpiresAt = expires.Add(time.Hour)

	if len(orig.Signatures) != 1 {
		t.Errorf("clone shares the signature slice: %d entries", len(orig.Signatures))
	}
	if !orig.ExpiresAt.Equal(expires) {
		t.Error("clone shares the expiry pointer")
	}
}

func TestSigningPayload_Deterministic(t *testing.T) {
	p := &Proposal{
		PolicyID:   "pol-1",
		ContractID: "CC1",
		WasmHash:   "sha256:ff",
		Network:    "testnet",
	}
	a, err := SigningPayload(p)
	if err != nil {
		t.Fatal(err)
	}
	b, err := SigningPayload(p)
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Errorf("payload not deterministic: %s vs %s", a, b)
	}

	// Signatures never enter the payload: signing is over the immutable
	// deployment tuple only.
	p.Signatures = []Signature{{Signer: "a"}}
	c, err := SigningPayload(p)
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(c) {
		t.Error("payload must not depend on accumulated signatures")
	}
}
