package ports

import (
	"context"
	"time"

	"github.com/handyhub/identity/core"
)

// CredentialStore persists refresh credentials keyed by secret hash.
type CredentialStore interface {
	// Save persists a new refresh credential. The record expires from
	// the store at the credential's natural expiry.
	Save(ctx context.Context, cred *core.RefreshCredential) error

	// Revoke marks the credential identified by secretHash as revoked
	// at the given instant, if and only if it is currently live. The
	// check and the write are a single atomic step: of two concurrent
	// calls for the same hash exactly one succeeds. A missing, already
	// revoked or expired credential yields core.ErrNotFoundOrRevoked.
	Revoke(ctx context.Context, secretHash string, at time.Time) (*core.RefreshCredential, error)

	// Get returns the credential for a secret hash, revoked or not.
	// Used for audit; redemption goes through Revoke.
	Get(ctx context.Context, secretHash string) (*core.RefreshCredential, error)
}

// ChallengeStore persists OTP challenges, one live per
// (contact, channel, purpose) tuple.
type ChallengeStore interface {
	// Put inserts a challenge, replacing any prior challenge for the
	// same tuple in the same step.
	Put(ctx context.Context, ch *core.OtpChallenge) error

	// Consume runs a single verification attempt atomically against
	// the live challenge for the tuple. A digest mismatch increments
	// the stored attempt counter. Failures map to
	// core.ErrChallengeNotFound, core.ErrAlreadyUsed,
	// core.ErrTooManyAttempts and core.ErrInvalidCode; success marks
	// the challenge verified and returns it.
	Consume(ctx context.Context, contact string, channel core.Channel, purpose, codeHash string, maxAttempts int, now time.Time) (*core.OtpChallenge, error)
}

// RateStore backs the fixed-window rate limiter.
type RateStore interface {
	// Incr bumps the bucket for key and returns the post-increment
	// count together with the instant the current window resets. The
	// first hit of a window starts it; increment and window bookkeeping
	// are atomic per key.
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}
