package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/handyhub/identity/core"
	"github.com/handyhub/identity/internal/secrets"
	"github.com/handyhub/identity/ports"
	"github.com/rs/zerolog"
)

// OtpConfig holds one-time code parameters.
type OtpConfig struct {
	TTL         time.Duration
	Digits      int
	MaxAttempts int
}

// OtpService manages one-time code challenges: creation with the
// one-live-challenge-per-tuple invariant, verification with attempt
// lockout, delivery handed off to the notification pipeline.
type OtpService struct {
	store  ports.ChallengeStore
	events ports.EventPublisher
	hasher *secrets.Hasher
	log    zerolog.Logger

	ttl         time.Duration
	digits      int
	maxAttempts int
}

// NewOtpService creates a new OTP service.
func NewOtpService(
	store ports.ChallengeStore,
	events ports.EventPublisher,
	hasher *secrets.Hasher,
	cfg OtpConfig,
	log zerolog.Logger,
) *OtpService {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.Digits <= 0 {
		cfg.Digits = 6
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}

	return &OtpService{
		store:       store,
		events:      events,
		hasher:      hasher,
		log:         log,
		ttl:         cfg.TTL,
		digits:      cfg.Digits,
		maxAttempts: cfg.MaxAttempts,
	}
}

// Create issues a new challenge for the tuple, replacing any prior
// live one, and hands delivery to the notification pipeline. The raw
// code is returned to the caller solely so demo mode can surface it;
// the production transport never does.
func (s *OtpService) Create(ctx context.Context, contact string, channel core.Channel, purpose string) (*core.OtpChallenge, string, error) {
	contact = NormalizeContact(contact, channel)

	code, err := generateCode(s.digits)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate code: %w", err)
	}

	now := time.Now()
	ch := &core.OtpChallenge{
		ID:        uuid.New().String(),
		Contact:   contact,
		Channel:   channel,
		Purpose:   purpose,
		CodeHash:  s.hasher.Digest(code),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	if err := s.store.Put(ctx, ch); err != nil {
		return nil, "", err
	}

	if err := s.events.PublishOtpDispatch(ctx, contact, channel, purpose, ch.ID); err != nil {
		// Delivery is fire-and-forget; the challenge stands either way.
		s.log.Warn().Err(err).Str("challenge", ch.ID).Msg("failed to publish otp dispatch")
	}

	s.log.Info().
		Str("challenge", ch.ID).
		Str("channel", string(channel)).
		Str("purpose", purpose).
		Msg("otp challenge created")

	return ch, code, nil
}

// Verify runs one verification attempt against the live challenge for
// the tuple.
func (s *OtpService) Verify(ctx context.Context, contact string, channel core.Channel, purpose, code string) (*core.OtpChallenge, error) {
	contact = NormalizeContact(contact, channel)

	ch, err := s.store.Consume(ctx, contact, channel, purpose, s.hasher.Digest(code), s.maxAttempts, time.Now())
	if err != nil {
		s.log.Warn().
			Str("channel", string(channel)).
			Str("purpose", purpose).
			Err(err).
			Msg("otp verification failed")
		return nil, err
	}

	s.log.Info().
		Str("challenge", ch.ID).
		Str("purpose", purpose).
		Msg("otp challenge verified")

	return ch, nil
}

// NormalizeContact canonicalizes a contact before it is used as a
// challenge tuple component or directory lookup key.
func NormalizeContact(contact string, channel core.Channel) string {
	contact = strings.TrimSpace(contact)
	if channel == core.ChannelEmail {
		return strings.ToLower(contact)
	}

	// Phone-style channels: strip formatting, keep a single leading +.
	var b strings.Builder
	for i, r := range contact {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	normalized := b.String()
	if normalized != "" && normalized[0] != '+' {
		normalized = "+" + normalized
	}
	return normalized
}

// generateCode returns a uniformly sampled fixed-length numeric code.
func generateCode(digits int) (string, error) {
	bound := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
