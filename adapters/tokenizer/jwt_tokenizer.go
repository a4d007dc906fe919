package tokenizer

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/handyhub/identity/core"
	"github.com/handyhub/identity/ports"
)

const (
	AudienceAccess  = "session:access"
	AudienceRefresh = "session:refresh"
)

// JWTTokenizer implements the Tokenizer port with HS256 over a
// symmetric secret held only by the service process.
type JWTTokenizer struct {
	signKey []byte
}

// NewJWTTokenizer creates a tokenizer signing with the given secret.
func NewJWTTokenizer(signingSecret string) ports.Tokenizer {
	return &JWTTokenizer{signKey: []byte(signingSecret)}
}

// AccessToken mints an access token for the session.
func (j *JWTTokenizer) AccessToken(s *core.Session) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.PrincipalID,
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceAccess},
		},
		Role:      string(s.Role),
		Epoch:     s.Epoch,
		RefreshID: s.RefreshID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// RefreshToken mints a refresh token for the session. The JWT ID is
// the refresh credential id.
func (j *JWTTokenizer) RefreshToken(s *core.Session) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.PrincipalID,
			ID:        s.RefreshID,
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceRefresh},
		},
		Role:  string(s.Role),
		Epoch: s.Epoch,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return signed, nil
}

// ParseAccess verifies an access token and returns its session view.
func (j *JWTTokenizer) ParseAccess(tokenStr string) (*core.Session, error) {
	claims, err := j.parse(tokenStr, AudienceAccess)
	if err != nil {
		return nil, err
	}

	return &core.Session{
		PrincipalID: claims.Subject,
		Role:        core.Role(claims.Role),
		Epoch:       claims.Epoch,
		RefreshID:   claims.RefreshID,
		IssuedAt:    claims.IssuedAt.Time,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// ParseRefresh verifies a refresh token and returns its session view.
func (j *JWTTokenizer) ParseRefresh(tokenStr string) (*core.Session, error) {
	claims, err := j.parse(tokenStr, AudienceRefresh)
	if err != nil {
		return nil, err
	}

	return &core.Session{
		PrincipalID: claims.Subject,
		Role:        core.Role(claims.Role),
		Epoch:       claims.Epoch,
		RefreshID:   claims.ID,
		IssuedAt:    claims.IssuedAt.Time,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

func (j *JWTTokenizer) parse(tokenStr, audience string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.signKey, nil
	}, jwt.WithAudience(audience))

	if err != nil {
		return nil, mapParseError(err)
	}
	if !token.Valid {
		return nil, core.ErrMalformed
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, core.ErrMalformed
	}

	return claims, nil
}

// mapParseError collapses jwt library failures onto the trust-layer
// taxonomy. Expiry must stay distinguishable: the gateway only attempts
// transparent rotation for expired tokens, never for invalid ones.
func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return core.ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return core.ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return core.ErrKindMismatch
	default:
		return core.ErrMalformed
	}
}
