// Package token issues verification tokens and signed unsubscribe links.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// tokenBytes is the entropy of a verification token (256 bits).
const tokenBytes = 32

// Generate returns a new random verification token, hex encoded.
// Only its Digest is ever stored.
func Generate() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Digest returns the hex encoded BLAKE2b-256 digest of a raw token.
func Digest(raw string) string {
	sum := blake2b.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
