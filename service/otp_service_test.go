package service

import (
	"context"
	"testing"

	"github.com/handyhub/identity/adapters/store"
	"github.com/handyhub/identity/core"
	"github.com/handyhub/identity/internal/secrets"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wrongCode returns a code guaranteed to differ from the real one.
func wrongCode(code string) string {
	if code == "000000" {
		return "000001"
	}
	return "000000"
}

func newOtpService(t *testing.T, cfg OtpConfig) *OtpService {
	t.Helper()
	return NewOtpService(
		store.NewMemoryChallengeStore(),
		nopPublisher{},
		secrets.NewHasher("test-pepper"),
		cfg,
		zerolog.Nop(),
	)
}

func TestOtpCreateAndVerify(t *testing.T) {
	ctx := context.Background()
	s := newOtpService(t, OtpConfig{})

	ch, code, err := s.Create(ctx, "alice@example.com", core.ChannelEmail, "auth")
	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.NotEqual(t, code, ch.CodeHash)

	verified, err := s.Verify(ctx, "alice@example.com", core.ChannelEmail, "auth", code)
	require.NoError(t, err)
	assert.Equal(t, ch.ID, verified.ID)
	assert.False(t, verified.VerifiedAt.IsZero())
}

func TestOtpWrongCodesThenCorrect(t *testing.T) {
	ctx := context.Background()
	s := newOtpService(t, OtpConfig{})

	_, code, err := s.Create(ctx, "+1 (555) 123-4567", core.ChannelSMS, "auth")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := s.Verify(ctx, "+15551234567", core.ChannelSMS, "auth", wrongCode(code))
		assert.ErrorIs(t, err, core.ErrInvalidCode)
	}

	ch, err := s.Verify(ctx, "+15551234567", core.ChannelSMS, "auth", code)
	require.NoError(t, err)
	assert.Equal(t, 3, ch.Attempts)

	// Single use: the verified challenge is gone.
	_, err = s.Verify(ctx, "+15551234567", core.ChannelSMS, "auth", code)
	assert.ErrorIs(t, err, core.ErrAlreadyUsed)
}

func TestOtpAttemptLockout(t *testing.T) {
	ctx := context.Background()
	s := newOtpService(t, OtpConfig{MaxAttempts: 5})

	_, code, err := s.Create(ctx, "alice@example.com", core.ChannelEmail, "auth")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := s.Verify(ctx, "alice@example.com", core.ChannelEmail, "auth", wrongCode(code))
		assert.ErrorIs(t, err, core.ErrInvalidCode)
	}

	// Locked: the correct code is refused once the ceiling is hit.
	_, err = s.Verify(ctx, "alice@example.com", core.ChannelEmail, "auth", code)
	assert.ErrorIs(t, err, core.ErrTooManyAttempts)
}

func TestOtpNewChallengeSupersedesOld(t *testing.T) {
	ctx := context.Background()
	s := newOtpService(t, OtpConfig{})

	_, first, err := s.Create(ctx, "alice@example.com", core.ChannelEmail, "auth")
	require.NoError(t, err)
	second, secondCode, err := s.Create(ctx, "alice@example.com", core.ChannelEmail, "auth")
	require.NoError(t, err)

	if first != secondCode {
		_, err = s.Verify(ctx, "alice@example.com", core.ChannelEmail, "auth", first)
		assert.ErrorIs(t, err, core.ErrInvalidCode)
	}

	ch, err := s.Verify(ctx, "alice@example.com", core.ChannelEmail, "auth", secondCode)
	require.NoError(t, err)
	assert.Equal(t, second.ID, ch.ID)
}

func TestOtpPurposesAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := newOtpService(t, OtpConfig{})

	_, authCode, err := s.Create(ctx, "alice@example.com", core.ChannelEmail, "auth")
	require.NoError(t, err)
	_, resetCode, err := s.Create(ctx, "alice@example.com", core.ChannelEmail, "password_reset")
	require.NoError(t, err)

	_, err = s.Verify(ctx, "alice@example.com", core.ChannelEmail, "auth", authCode)
	require.NoError(t, err)
	_, err = s.Verify(ctx, "alice@example.com", core.ChannelEmail, "password_reset", resetCode)
	require.NoError(t, err)
}

func TestOtpMissingChallenge(t *testing.T) {
	s := newOtpService(t, OtpConfig{})

	_, err := s.Verify(context.Background(), "nobody@example.com", core.ChannelEmail, "auth", "123456")
	assert.ErrorIs(t, err, core.ErrChallengeNotFound)
}

func TestNormalizeContact(t *testing.T) {
	cases := []struct {
		in      string
		channel core.Channel
		want    string
	}{
		{"  Alice@Example.COM ", core.ChannelEmail, "alice@example.com"},
		{"+1 (555) 123-4567", core.ChannelSMS, "+15551234567"},
		{"555 123 4567", core.ChannelSMS, "+5551234567"},
		{"+44 7700 900123", core.ChannelWhatsApp, "+447700900123"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeContact(tc.in, tc.channel), "input %q", tc.in)
	}
}

func TestGenerateCodeLength(t *testing.T) {
	for _, digits := range []int{4, 6, 8} {
		code, err := generateCode(digits)
		require.NoError(t, err)
		assert.Len(t, code, digits)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9')
		}
	}
}
