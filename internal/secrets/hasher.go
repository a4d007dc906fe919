// Package secrets provides the one-way transform used for refresh
// token and OTP code storage.
package secrets

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Hasher produces deterministic keyed digests. The pepper is held only
// by the service process, so a leaked store cannot be brute-forced
// offline against short OTP codes. Determinism matters: the digest is
// also the store lookup key.
type Hasher struct {
	pepper []byte
}

// NewHasher creates a Hasher with the given pepper.
func NewHasher(pepper string) *Hasher {
	return &Hasher{pepper: []byte(pepper)}
}

// Digest returns the hex HMAC-SHA256 of secret under the pepper.
func (h *Hasher) Digest(secret string) string {
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))
}

// Matches compares a raw secret against a stored digest in constant
// time. This is the only sanctioned comparison; raw secrets are never
// compared or persisted directly.
func (h *Hasher) Matches(secret, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(h.Digest(secret)), []byte(digest)) == 1
}
