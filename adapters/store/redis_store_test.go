package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/handyhub/identity/core"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedis(t *testing.T) redis.UniversalClient {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func testCredential(hash string, ttl time.Duration) *core.RefreshCredential {
	now := time.Now()
	return &core.RefreshCredential{
		ID:          "cred-" + hash,
		PrincipalID: "p-1",
		SecretHash:  hash,
		IssuedAt:    now,
		ExpiresAt:   now.Add(ttl),
		Client:      core.ClientMeta{Address: "203.0.113.9", UserAgent: "test-agent"},
	}
}

func TestRedisCredentialRevokeOnce(t *testing.T) {
	ctx := context.Background()
	s := NewRedisCredentialStore(testRedis(t))

	require.NoError(t, s.Save(ctx, testCredential("hash-1", time.Hour)))

	cred, err := s.Revoke(ctx, "hash-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "p-1", cred.PrincipalID)
	assert.False(t, cred.RevokedAt.IsZero())
	assert.Equal(t, "203.0.113.9", cred.Client.Address)

	_, err = s.Revoke(ctx, "hash-1", time.Now())
	assert.ErrorIs(t, err, core.ErrNotFoundOrRevoked)
}

func TestRedisCredentialRevokeUnknown(t *testing.T) {
	s := NewRedisCredentialStore(testRedis(t))

	_, err := s.Revoke(context.Background(), "no-such-hash", time.Now())
	assert.ErrorIs(t, err, core.ErrNotFoundOrRevoked)
}

func TestRedisCredentialRevokeExpired(t *testing.T) {
	ctx := context.Background()
	s := NewRedisCredentialStore(testRedis(t))

	require.NoError(t, s.Save(ctx, testCredential("hash-exp", time.Hour)))

	_, err := s.Revoke(ctx, "hash-exp", time.Now().Add(2*time.Hour))
	assert.ErrorIs(t, err, core.ErrNotFoundOrRevoked)
}

func TestRedisCredentialConcurrentRevoke(t *testing.T) {
	ctx := context.Background()
	s := NewRedisCredentialStore(testRedis(t))

	require.NoError(t, s.Save(ctx, testCredential("hash-race", time.Hour)))

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Revoke(ctx, "hash-race", time.Now())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, failures int
	for err := range results {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, core.ErrNotFoundOrRevoked)
			failures++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, failures)
}

func TestRedisCredentialGet(t *testing.T) {
	ctx := context.Background()
	s := NewRedisCredentialStore(testRedis(t))

	require.NoError(t, s.Save(ctx, testCredential("hash-get", time.Hour)))

	cred, err := s.Get(ctx, "hash-get")
	require.NoError(t, err)
	assert.True(t, cred.RevokedAt.IsZero())

	_, err = s.Revoke(ctx, "hash-get", time.Now())
	require.NoError(t, err)

	cred, err = s.Get(ctx, "hash-get")
	require.NoError(t, err)
	assert.False(t, cred.RevokedAt.IsZero())
}

func testChallenge(contact, codeHash string, ttl time.Duration) *core.OtpChallenge {
	now := time.Now()
	return &core.OtpChallenge{
		ID:        "ch-" + codeHash,
		Contact:   contact,
		Channel:   core.ChannelSMS,
		Purpose:   "auth",
		CodeHash:  codeHash,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

func TestRedisChallengeConsumeFlow(t *testing.T) {
	ctx := context.Background()
	s := NewRedisChallengeStore(testRedis(t))
	now := time.Now()

	require.NoError(t, s.Put(ctx, testChallenge("+15551234567", "digest-good", time.Minute)))

	// Three wrong attempts, counted.
	for i := 1; i <= 3; i++ {
		_, err := s.Consume(ctx, "+15551234567", core.ChannelSMS, "auth", "digest-bad", 5, now)
		assert.ErrorIs(t, err, core.ErrInvalidCode)
	}

	ch, err := s.Consume(ctx, "+15551234567", core.ChannelSMS, "auth", "digest-good", 5, now)
	require.NoError(t, err)
	assert.Equal(t, 3, ch.Attempts)
	assert.False(t, ch.VerifiedAt.IsZero())

	// A verified challenge can never verify again.
	_, err = s.Consume(ctx, "+15551234567", core.ChannelSMS, "auth", "digest-good", 5, now)
	assert.ErrorIs(t, err, core.ErrAlreadyUsed)
}

func TestRedisChallengeAttemptCeiling(t *testing.T) {
	ctx := context.Background()
	s := NewRedisChallengeStore(testRedis(t))
	now := time.Now()

	require.NoError(t, s.Put(ctx, testChallenge("+15550001111", "digest-good", time.Minute)))

	for i := 0; i < 5; i++ {
		_, err := s.Consume(ctx, "+15550001111", core.ChannelSMS, "auth", "digest-bad", 5, now)
		assert.ErrorIs(t, err, core.ErrInvalidCode)
	}

	// Ceiling reached: even the correct code is refused.
	_, err := s.Consume(ctx, "+15550001111", core.ChannelSMS, "auth", "digest-good", 5, now)
	assert.ErrorIs(t, err, core.ErrTooManyAttempts)
}

func TestRedisChallengeReplacedByNewer(t *testing.T) {
	ctx := context.Background()
	s := NewRedisChallengeStore(testRedis(t))
	now := time.Now()

	require.NoError(t, s.Put(ctx, testChallenge("+15552223333", "digest-old", time.Minute)))
	require.NoError(t, s.Put(ctx, testChallenge("+15552223333", "digest-new", time.Minute)))

	// The superseded code no longer verifies.
	_, err := s.Consume(ctx, "+15552223333", core.ChannelSMS, "auth", "digest-old", 5, now)
	assert.ErrorIs(t, err, core.ErrInvalidCode)

	ch, err := s.Consume(ctx, "+15552223333", core.ChannelSMS, "auth", "digest-new", 5, now)
	require.NoError(t, err)
	assert.Equal(t, "ch-digest-new", ch.ID)
}

func TestRedisChallengeExpired(t *testing.T) {
	ctx := context.Background()
	s := NewRedisChallengeStore(testRedis(t))

	require.NoError(t, s.Put(ctx, testChallenge("+15554445555", "digest-good", time.Minute)))

	_, err := s.Consume(ctx, "+15554445555", core.ChannelSMS, "auth", "digest-good", 5, time.Now().Add(2*time.Minute))
	assert.ErrorIs(t, err, core.ErrChallengeNotFound)
}

func TestRedisChallengeMissing(t *testing.T) {
	s := NewRedisChallengeStore(testRedis(t))

	_, err := s.Consume(context.Background(), "+15559990000", core.ChannelSMS, "auth", "digest", 5, time.Now())
	assert.ErrorIs(t, err, core.ErrChallengeNotFound)
}

func TestRedisRateIncr(t *testing.T) {
	ctx := context.Background()
	s := NewRedisRateStore(testRedis(t))

	for i := int64(1); i <= 3; i++ {
		count, resetAt, err := s.Incr(ctx, "otp:client-1", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, count)
		assert.True(t, resetAt.After(time.Now()))
	}

	// Separate keys get separate buckets.
	count, _, err := s.Incr(ctx, "otp:client-2", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRedisRateWindowReset(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	s := NewRedisRateStore(client)

	count, _, err := s.Incr(ctx, "otp:client-3", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	mr.FastForward(2 * time.Minute)

	count, _, err = s.Incr(ctx, "otp:client-3", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
