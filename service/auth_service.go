// Package service contains the orchestration logic of the identity
// trust layer: session issuance and rotation, OTP challenges and
// admission control.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/handyhub/identity/core"
	"github.com/handyhub/identity/internal/secrets"
	"github.com/handyhub/identity/ports"
	"github.com/rs/zerolog"
)

// TokenPair is an access/refresh pair with the expiries the transport
// needs to set cookie lifetimes.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// AuthConfig holds session lifetimes.
type AuthConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// AuthService manages the refresh credential lifecycle: login issues a
// pair, rotation atomically replaces a credential with its successor,
// logout revokes. All failure kinds stay internal; the transport
// collapses them to a uniform re-authenticate response.
type AuthService struct {
	tokenizer ports.Tokenizer
	creds     ports.CredentialStore
	directory ports.Directory
	events    ports.EventPublisher
	hasher    *secrets.Hasher
	log       zerolog.Logger

	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	tokenizer ports.Tokenizer,
	creds ports.CredentialStore,
	directory ports.Directory,
	events ports.EventPublisher,
	hasher *secrets.Hasher,
	cfg AuthConfig,
	log zerolog.Logger,
) *AuthService {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 10 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}

	return &AuthService{
		tokenizer:  tokenizer,
		creds:      creds,
		directory:  directory,
		events:     events,
		hasher:     hasher,
		log:        log,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}
}

// Login issues a fresh access/refresh pair for the principal and
// persists the refresh credential.
func (s *AuthService) Login(ctx context.Context, principal *core.Principal, client core.ClientMeta) (*TokenPair, error) {
	if principal.Status == core.StatusBlocked {
		return nil, core.ErrPrincipalBlocked
	}

	pair, err := s.issue(ctx, principal, client)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("principal", principal.ID).
		Str("role", string(principal.Role)).
		Msg("session issued")

	return pair, nil
}

// Rotate redeems a refresh token: the presented credential is revoked
// and a successor pair is issued. A refresh secret is single-use; any
// replay of an already-rotated token fails with ErrNotFoundOrRevoked.
func (s *AuthService) Rotate(ctx context.Context, refreshToken string, client core.ClientMeta) (*TokenPair, *core.Principal, error) {
	sess, err := s.tokenizer.ParseRefresh(refreshToken)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()

	// Revoke-iff-live is the atomic gate: of two concurrent rotations
	// with the same secret exactly one passes this point.
	cred, err := s.creds.Revoke(ctx, s.hasher.Digest(refreshToken), now)
	if err != nil {
		if errors.Is(err, core.ErrNotFoundOrRevoked) {
			s.log.Warn().
				Str("principal", sess.PrincipalID).
				Str("credential", sess.RefreshID).
				Msg("refresh replay or unknown credential")
		}
		return nil, nil, err
	}

	principal, err := s.directory.Lookup(ctx, sess.PrincipalID)
	if err != nil {
		if errors.Is(err, core.ErrPrincipalNotFound) {
			return nil, nil, core.ErrSessionInvalidated
		}
		return nil, nil, err
	}
	if principal.Status == core.StatusBlocked {
		return nil, nil, core.ErrPrincipalBlocked
	}
	if principal.SessionEpoch != sess.Epoch {
		s.log.Warn().
			Str("principal", principal.ID).
			Int64("token_epoch", sess.Epoch).
			Int64("current_epoch", principal.SessionEpoch).
			Msg("rotation rejected, session epoch mismatch")
		return nil, nil, core.ErrSessionInvalidated
	}

	// The predecessor is already revoked at this point. If persisting
	// the successor fails the session terminates: fail closed rather
	// than report a success the store never recorded.
	pair, err := s.issue(ctx, principal, client)
	if err != nil {
		s.log.Error().
			Str("principal", principal.ID).
			Str("credential", cred.ID).
			Err(err).
			Msg("successor persistence failed after revocation")
		return nil, nil, err
	}

	return pair, principal, nil
}

// Logout revokes the presented refresh credential. Missing, malformed
// or already-revoked tokens are not errors; logout is idempotent.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	sess, err := s.tokenizer.ParseRefresh(refreshToken)
	if err != nil {
		return nil
	}

	cred, err := s.creds.Revoke(ctx, s.hasher.Digest(refreshToken), time.Now())
	if err != nil {
		if errors.Is(err, core.ErrNotFoundOrRevoked) {
			return nil
		}
		return err
	}

	if err := s.events.PublishLogout(ctx, cred.PrincipalID, cred.ID); err != nil {
		// The credential is already revoked, which is the part that
		// matters; delivery is fire-and-forget.
		s.log.Warn().Err(err).Msg("failed to publish logout event")
	}

	s.log.Info().
		Str("principal", sess.PrincipalID).
		Str("credential", cred.ID).
		Msg("session revoked")

	return nil
}

// LogoutAll increments the principal's session epoch, invalidating
// every outstanding refresh credential at once.
func (s *AuthService) LogoutAll(ctx context.Context, principalID string) (int64, error) {
	epoch, err := s.directory.IncrementEpoch(ctx, principalID)
	if err != nil {
		return 0, err
	}

	s.log.Info().
		Str("principal", principalID).
		Int64("epoch", epoch).
		Msg("all sessions invalidated")

	return epoch, nil
}

// Authenticate validates an access token: signature, expiry, the
// principal's directory status and the session epoch.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*core.Principal, error) {
	sess, err := s.tokenizer.ParseAccess(accessToken)
	if err != nil {
		return nil, err
	}

	principal, err := s.directory.Lookup(ctx, sess.PrincipalID)
	if err != nil {
		if errors.Is(err, core.ErrPrincipalNotFound) {
			return nil, core.ErrSessionInvalidated
		}
		return nil, err
	}
	if principal.Status == core.StatusBlocked {
		return nil, core.ErrPrincipalBlocked
	}
	if principal.SessionEpoch != sess.Epoch {
		return nil, core.ErrSessionInvalidated
	}

	return principal, nil
}

// issue mints a pair under the principal's current role and epoch and
// persists the refresh credential.
func (s *AuthService) issue(ctx context.Context, principal *core.Principal, client core.ClientMeta) (*TokenPair, error) {
	now := time.Now()
	refreshID := uuid.New().String()

	accessSess := &core.Session{
		PrincipalID: principal.ID,
		Role:        principal.Role,
		Epoch:       principal.SessionEpoch,
		RefreshID:   refreshID,
		IssuedAt:    now,
		ExpiresAt:   now.Add(s.accessTTL),
	}
	refreshSess := &core.Session{
		PrincipalID: principal.ID,
		Role:        principal.Role,
		Epoch:       principal.SessionEpoch,
		RefreshID:   refreshID,
		IssuedAt:    now,
		ExpiresAt:   now.Add(s.refreshTTL),
	}

	accessToken, err := s.tokenizer.AccessToken(accessSess)
	if err != nil {
		return nil, fmt.Errorf("failed to mint access token: %w", err)
	}
	refreshToken, err := s.tokenizer.RefreshToken(refreshSess)
	if err != nil {
		return nil, fmt.Errorf("failed to mint refresh token: %w", err)
	}

	cred := &core.RefreshCredential{
		ID:          refreshID,
		PrincipalID: principal.ID,
		SecretHash:  s.hasher.Digest(refreshToken),
		IssuedAt:    now,
		ExpiresAt:   refreshSess.ExpiresAt,
		Client:      client,
	}
	if err := s.creds.Save(ctx, cred); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessSess.ExpiresAt,
		RefreshExpiresAt: refreshSess.ExpiresAt,
	}, nil
}
