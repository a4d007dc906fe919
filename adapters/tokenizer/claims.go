package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims combines the standard claims with the trust-layer ones.
// The audience claim carries the token kind, so an access token can
// never be replayed as a refresh token or vice versa.
type SessionClaims struct {
	jwt.RegisteredClaims
	Role  string `json:"rol"`
	Epoch int64  `json:"sep"`
	// RefreshID links an access token to the refresh credential it was
	// issued alongside.
	RefreshID string `json:"rid,omitempty"`
}
