// Package auth generates and validates the flat API keys accepted by the
// ingestion server's x-api-key header, and rate-limits callers.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
)

const (
	// KeyPrefixLen is the number of characters of a generated key surfaced
	// as its lookup prefix — enough to narrow a bucket scan without ever
	// persisting anything that lets an attacker reconstruct the key.
	KeyPrefixLen = 8
	keyRawBytes  = 32
)

// GenerateAPIKey creates a new API key. The plaintext is shown to the
// operator exactly once; only prefix and hash are persisted.
func GenerateAPIKey() (plaintext, prefix, hash string, err error) {
	raw := make([]byte, keyRawBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", "", err
	}
	plaintext = "ard_" + base64.RawURLEncoding.EncodeToString(raw)
	prefix = plaintext[:KeyPrefixLen]
	hash = HashKey(plaintext)
	return plaintext, prefix, hash, nil
}

// HashKey returns the SHA-256 hex digest of a key string.
func HashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// ConstantTimeEqual compares two hex digests without leaking timing
// information about where they first differ.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Prefix returns the lookup prefix of a plaintext key, or "" if the key is
// shorter than the fixed prefix length.
func Prefix(key string) string {
	if len(key) < KeyPrefixLen {
		return ""
	}
	return key[:KeyPrefixLen]
}
