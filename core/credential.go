package core

import "time"

// RefreshCredential is the persisted record backing a refresh token.
// The token secret itself is never stored; SecretHash is the keyed
// digest of the presented token and doubles as the lookup key.
type RefreshCredential struct {
	ID          string
	PrincipalID string
	SecretHash  string
	IssuedAt    time.Time
	ExpiresAt   time.Time

	// RevokedAt is zero while the credential is live. It is set
	// exactly once: on rotation, on logout, or on epoch invalidation.
	RevokedAt time.Time

	Client ClientMeta
}

// Live reports whether the credential can still be redeemed at now.
func (c *RefreshCredential) Live(now time.Time) bool {
	return c.RevokedAt.IsZero() && now.Before(c.ExpiresAt)
}
