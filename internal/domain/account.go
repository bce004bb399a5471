package domain

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ErrInvalidAccount is returned when an account identifier fails validation.
var ErrInvalidAccount = errors.New("invalid account")

// Account identifies a balance holder by its base58-encoded ed25519 public key.
type Account string

// ZeroAccount is the base58 encoding of 32 zero bytes. It acts as the
// mint/burn counterpart and never receives balance snapshots.
const ZeroAccount Account = "11111111111111111111111111111111"

// ParseAccount validates and returns an account identifier.
// The input must decode to exactly 32 base58 bytes that form a valid
// ed25519 curve point (wallet keys, not derived addresses).
func ParseAccount(s string) (Account, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAccount, err)
	}
	if len(raw) != 32 {
		return "", fmt.Errorf("%w: expected 32 bytes, got %d", ErrInvalidAccount, len(raw))
	}
	if !isOnCurve(raw) {
		return "", fmt.Errorf("%w: not an ed25519 curve point", ErrInvalidAccount)
	}
	return Account(s), nil
}

// IsZero reports whether the account is the zero (mint/burn) account.
func (a Account) IsZero() bool {
	return a == ZeroAccount || a == ""
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
