package utils

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrCorruptCredential is returned by VerifyPassword when the stored hash
// cannot be parsed.  A plain mismatch is not an error.
var ErrCorruptCredential = errors.New("stored password hash is malformed")

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

// HashPassword returns a bcrypt hash using the given cost.  bcrypt draws a
// fresh random salt on every call.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(b), nil
}

// VerifyPassword compares a bcrypt hash with a plaintext password in constant
// time.  It returns (false, nil) on mismatch and ErrCorruptCredential when
// the hash itself is unusable.
func VerifyPassword(hash, plain string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrCorruptCredential, err)
	}
}
