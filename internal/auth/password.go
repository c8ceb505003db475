// Package auth: password hashing utilities.
//
// WHY BCRYPT?
// bcrypt is deliberately slow, which makes brute-forcing a leaked hash expensive.
// It generates a random salt per hash and embeds salt + cost in its output,
// so a single column holds everything needed to verify later.
//
// Hash format (the full output of bcrypt.GenerateFromPassword):
//
//	$2a$10$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (10 rounds → 2^10 iterations)
//	 version
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used when none is configured.
const DefaultCost = 10

// MaxPasswordBytes is bcrypt's input limit. Longer input would be silently
// truncated, so Hash refuses it and Verify treats it as a mismatch.
const MaxPasswordBytes = 72

// ErrPasswordMismatch is returned by Verify when the password is wrong.
var ErrPasswordMismatch = errors.New("auth: invalid password")

// PasswordService provides bcrypt hashing and verification.
//
// It's a struct (not free functions) so the cost can be injected:
// production reads BCRYPT_COST, tests use bcrypt.MinCost to stay fast.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the given cost.
// Out-of-range values fall back to DefaultCost.
func NewPasswordService(cost int) *PasswordService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &PasswordService{cost: cost}
}

// NewPasswordServiceForTest creates a PasswordService with bcrypt's minimum
// cost. Use it in other packages' tests; it is far too weak for production.
func NewPasswordServiceForTest() *PasswordService {
	return &PasswordService{cost: bcrypt.MinCost}
}

// Hash hashes the given plaintext password with bcrypt.
// The output is self-contained: store it as is.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", fmt.Errorf("auth: password must be %d bytes or fewer", MaxPasswordBytes)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks whether plaintext matches a stored bcrypt hash.
// A wrong password yields ErrPasswordMismatch; a corrupt hash yields a
// different error. The comparison is constant-time.
//
// Input longer than MaxPasswordBytes never matches: Hash refuses it, and
// bcrypt would otherwise compare only its first 72 bytes.
func (p *PasswordService) Verify(hash, plaintext string) error {
	if len(plaintext) > MaxPasswordBytes {
		return ErrPasswordMismatch
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
