package domain

import (
	"crypto/ed25519"
	"errors"
	"testing"

	"github.com/mr-tron/base58"
)

// generateAccountString returns the base58 encoding of a freshly
// generated ed25519 public key.
func generateAccountString(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	return base58.Encode(pub)
}

func TestParseAccount_Valid(t *testing.T) {
	s := generateAccountString(t)

	account, err := ParseAccount(s)
	if err != nil {
		t.Fatalf("ParseAccount(%s) failed: %v", s, err)
	}
	if string(account) != s {
		t.Errorf("account: got %s, want %s", account, s)
	}
	if account.IsZero() {
		t.Error("generated key parsed as the zero account")
	}
}

func TestParseAccount_ZeroAccount(t *testing.T) {
	account, err := ParseAccount(string(ZeroAccount))
	if err != nil {
		t.Fatalf("ParseAccount failed: %v", err)
	}
	if !account.IsZero() {
		t.Error("zero account not recognized as zero")
	}
}

func TestParseAccount_BadCharacters(t *testing.T) {
	// 0, O, I and l are outside the base58 alphabet.
	_, err := ParseAccount("0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl")
	if !errors.Is(err, ErrInvalidAccount) {
		t.Fatalf("expected ErrInvalidAccount, got %v", err)
	}
}

func TestParseAccount_WrongLength(t *testing.T) {
	short := base58.Encode([]byte("too short"))
	if _, err := ParseAccount(short); !errors.Is(err, ErrInvalidAccount) {
		t.Errorf("short input: expected ErrInvalidAccount, got %v", err)
	}
	if _, err := ParseAccount(""); !errors.Is(err, ErrInvalidAccount) {
		t.Errorf("empty input: expected ErrInvalidAccount, got %v", err)
	}
}

func TestParseAccount_OffCurve(t *testing.T) {
	// Walk the last byte of a valid key until decompression fails.
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	raw := make([]byte, len(pub))
	copy(raw, pub)

	found := false
	for i := 0; i < 256; i++ {
		raw[31] = byte(i)
		if !isOnCurve(raw) {
			found = true
			break
		}
	}
	if !found {
		t.Fatal("could not construct an off-curve point")
	}

	if _, err := ParseAccount(base58.Encode(raw)); !errors.Is(err, ErrInvalidAccount) {
		t.Errorf("off-curve point: expected ErrInvalidAccount, got %v", err)
	}
}

func TestAccountIsZero(t *testing.T) {
	if !Account("").IsZero() {
		t.Error("empty account should be zero")
	}
	if !ZeroAccount.IsZero() {
		t.Error("ZeroAccount should be zero")
	}
	if Account("alice").IsZero() {
		t.Error("ordinary account should not be zero")
	}
}
