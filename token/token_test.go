package token

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestVerificationRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	raw, tok, err := IssueVerification(3*time.Hour, now)
	if err != nil {
		t.Fatalf("IssueVerification failed: %v", err)
	}
	if tok.Stored() != raw {
		t.Fatal("verification tokens must be stored as issued")
	}
	if !tok.ExpiresAt().Equal(now.Add(3 * time.Hour)) {
		t.Fatalf("unexpected expiry %v", tok.ExpiresAt())
	}
	if !WellFormed(raw) {
		t.Fatalf("issued token not well formed: %q", raw)
	}

	if !Validate(tok, raw, now.Add(time.Hour)) {
		t.Fatal("expected valid before expiry")
	}
	if Validate(tok, raw, now.Add(3*time.Hour)) {
		t.Fatal("expected invalid at expiry")
	}
	if Validate(tok, raw+"x", now) {
		t.Fatal("expected mismatch to be invalid")
	}
}

func TestResetTokenNeverStoresRaw(t *testing.T) {
	now := time.Now().UTC()
	raw, tok, err := IssueReset(24*time.Hour, now)
	if err != nil {
		t.Fatalf("IssueReset failed: %v", err)
	}
	if tok.Stored() == raw || strings.Contains(tok.Stored(), raw) {
		t.Fatal("reset token stored form must not contain the raw token")
	}
	if tok.Stored() != HashReset(raw) {
		t.Fatal("stored form must be the lookup hash")
	}
	if tok.Kind() != KindReset {
		t.Fatalf("unexpected kind %v", tok.Kind())
	}

	if !Validate(tok, raw, now.Add(23*time.Hour)) {
		t.Fatal("expected valid before expiry")
	}
	if Validate(tok, tok.Stored(), now) {
		t.Fatal("presenting the stored hash must not validate")
	}
	if Validate(tok, raw, now.Add(24*time.Hour+time.Second)) {
		t.Fatal("expected expired token to be invalid")
	}
}

func TestValidateRebuiltFromStore(t *testing.T) {
	now := time.Now().UTC()
	raw, issued, err := IssueReset(time.Hour, now)
	if err != nil {
		t.Fatalf("IssueReset failed: %v", err)
	}
	loaded := StoredReset(issued.Stored(), issued.ExpiresAt())
	if !Validate(loaded, raw, now) {
		t.Fatal("rebuilt reset token must validate")
	}

	vraw, vissued, err := IssueVerification(time.Hour, now)
	if err != nil {
		t.Fatalf("IssueVerification failed: %v", err)
	}
	if !Validate(StoredVerification(vissued.Stored(), vissued.ExpiresAt()), vraw, now) {
		t.Fatal("rebuilt verification token must validate")
	}
}

func TestAbsentAndExpiredAreIndistinguishable(t *testing.T) {
	now := time.Now().UTC()
	raw, tok, err := IssueVerification(time.Minute, now)
	if err != nil {
		t.Fatalf("IssueVerification failed: %v", err)
	}

	absent := Validate(nil, raw, now)
	expired := Validate(tok, raw, now.Add(2*time.Minute))
	if absent != expired || absent {
		t.Fatalf("absent=%v expired=%v must both be false", absent, expired)
	}
}

func TestExtendKeepsValue(t *testing.T) {
	now := time.Now().UTC()
	raw, tok, err := IssueVerification(time.Hour, now)
	if err != nil {
		t.Fatalf("IssueVerification failed: %v", err)
	}
	later := now.Add(2 * time.Hour)
	ext := tok.Extend(3*time.Hour, later)
	if ext.Stored() != raw {
		t.Fatal("extension must not regenerate the token")
	}
	if !Validate(ext, raw, later.Add(time.Hour)) {
		t.Fatal("extended token should be valid")
	}
}

func TestIssueRejectsBadTTL(t *testing.T) {
	if _, _, err := IssueVerification(0, time.Now()); !errors.Is(err, ErrInvalidTTL) {
		t.Fatalf("expected ErrInvalidTTL, got %v", err)
	}
	if _, _, err := IssueReset(-time.Second, time.Now()); !errors.Is(err, ErrInvalidTTL) {
		t.Fatalf("expected ErrInvalidTTL, got %v", err)
	}
}

func TestEmptyInputsNeverValidate(t *testing.T) {
	now := time.Now()
	if Validate(StoredVerification("", now.Add(time.Hour)), "", now) {
		t.Fatal("empty stored value must not validate")
	}
	if Validate(StoredReset("abc", now.Add(time.Hour)), "", now) {
		t.Fatal("empty raw must not validate")
	}
}
