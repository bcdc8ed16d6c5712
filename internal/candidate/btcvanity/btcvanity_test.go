package btcvanity

import "testing"

func TestCandidateIsDeterministic(t *testing.T) {
	src := Source{}
	a1 := src.Candidate(42)
	a2 := src.Candidate(42)
	if string(a1) != string(a2) {
		t.Fatalf("Candidate(42) is not deterministic: %q vs %q", a1, a2)
	}
	a3 := src.Candidate(43)
	if string(a1) == string(a3) {
		t.Fatalf("Candidate(42) and Candidate(43) collided: %q", a1)
	}
}

func TestCandidateLooksLikeAP2PKHAddress(t *testing.T) {
	src := Source{}
	addr := string(src.Candidate(0))
	if len(addr) < 25 || len(addr) > 35 {
		t.Errorf("address %q has unexpected length %d", addr, len(addr))
	}
	if addr[0] != '1' {
		t.Errorf("address %q does not start with the mainnet P2PKH prefix '1'", addr)
	}
}

func TestMatcherRoundTripsAGeneratedAddress(t *testing.T) {
	src := Source{}
	target := string(src.Candidate(7))

	m, err := NewMatcher(target)
	if err != nil {
		t.Fatalf("NewMatcher(%q): %v", target, err)
	}
	if !m.Match(src.Candidate(7)) {
		t.Error("expected Match to succeed against its own target index")
	}
	if m.Match(src.Candidate(8)) {
		t.Error("expected Match to fail against a different index")
	}
}

func TestNewMatcherRejectsMalformedTargets(t *testing.T) {
	bad := []string{
		"",
		"not-base58check-at-all!!",
		"1A1zP1eP5QGefi2DMPTfTL5SLmv7Div", // truncated, bad checksum
	}
	for _, addr := range bad {
		if _, err := NewMatcher(addr); err == nil {
			t.Errorf("NewMatcher(%q) = nil error, want error", addr)
		}
	}
}

func TestBackendNew(t *testing.T) {
	src := Source{}
	target := string(src.Candidate(1))

	var b Backend
	gotSrc, matcher, err := b.New(target, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !matcher.Match(gotSrc.Candidate(1)) {
		t.Error("backend-constructed matcher did not match the target index")
	}
}

func TestMaxKeyspaceIsPositive(t *testing.T) {
	if MaxKeyspace().Sign() <= 0 {
		t.Error("MaxKeyspace() should be a large positive number")
	}
}
