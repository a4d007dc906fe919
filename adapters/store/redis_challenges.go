package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/handyhub/identity/core"
	"github.com/handyhub/identity/ports"
	"github.com/redis/go-redis/v9"
)

// consumeChallengeLua runs one verification attempt as a single
// server-side step: state checks, attempt accounting and the verified
// mark cannot interleave with a concurrent attempt on the same tuple.
var consumeChallengeLua = redis.NewScript(`
local verified = redis.call("HGET", KEYS[1], "verified_at")
if verified == false then
  return {err = "not_found"}
end
if verified ~= "0" then
  return {err = "already_used"}
end
local expires = tonumber(redis.call("HGET", KEYS[1], "expires_at"))
if expires <= tonumber(ARGV[2]) then
  redis.call("DEL", KEYS[1])
  return {err = "not_found"}
end
local attempts = tonumber(redis.call("HGET", KEYS[1], "attempts"))
if attempts >= tonumber(ARGV[3]) then
  return {err = "attempts_exceeded"}
end
if redis.call("HGET", KEYS[1], "code_hash") ~= ARGV[1] then
  redis.call("HINCRBY", KEYS[1], "attempts", 1)
  return {err = "code_mismatch"}
end
redis.call("HSET", KEYS[1], "verified_at", ARGV[2])
return redis.call("HMGET", KEYS[1], "id", "attempts", "issued_at", "expires_at", "verified_at")
`)

// RedisChallengeStore is a Redis implementation of the ChallengeStore
// port. A tuple maps to exactly one key, so replacing the key is what
// enforces the one-live-challenge invariant; TTL cleans up whatever
// expires unverified.
type RedisChallengeStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisChallengeStore creates a Redis challenge store.
func NewRedisChallengeStore(client redis.UniversalClient) ports.ChallengeStore {
	return &RedisChallengeStore{
		client: client,
		prefix: "identity:otp:",
	}
}

func (s *RedisChallengeStore) key(contact string, channel core.Channel, purpose string) string {
	return s.prefix + string(channel) + ":" + purpose + ":" + contact
}

// Put inserts a challenge, replacing any prior one for the tuple.
func (s *RedisChallengeStore) Put(ctx context.Context, ch *core.OtpChallenge) error {
	key := s.key(ch.Contact, ch.Channel, ch.Purpose)

	// MULTI/EXEC so the replacement is atomic with respect to a
	// concurrent create for the same tuple.
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		"id", ch.ID,
		"code_hash", ch.CodeHash,
		"attempts", strconv.Itoa(ch.Attempts),
		"issued_at", strconv.FormatInt(ch.IssuedAt.Unix(), 10),
		"expires_at", strconv.FormatInt(ch.ExpiresAt.Unix(), 10),
		"verified_at", "0",
	)
	pipe.ExpireAt(ctx, key, ch.ExpiresAt)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	return nil
}

// Consume runs one verification attempt against the live challenge.
func (s *RedisChallengeStore) Consume(ctx context.Context, contact string, channel core.Channel, purpose, codeHash string, maxAttempts int, now time.Time) (*core.OtpChallenge, error) {
	result, err := consumeChallengeLua.Run(ctx, s.client,
		[]string{s.key(contact, channel, purpose)},
		codeHash,
		strconv.FormatInt(now.Unix(), 10),
		strconv.Itoa(maxAttempts),
	).Result()

	if err != nil {
		switch err.Error() {
		case "not_found":
			return nil, core.ErrChallengeNotFound
		case "already_used":
			return nil, core.ErrAlreadyUsed
		case "attempts_exceeded":
			return nil, core.ErrTooManyAttempts
		case "code_mismatch":
			return nil, core.ErrInvalidCode
		default:
			return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
		}
	}

	fields, ok := result.([]interface{})
	if !ok || len(fields) != 5 {
		return nil, fmt.Errorf("%w: unexpected consume script result", core.ErrStoreUnavailable)
	}
	strs := make([]string, len(fields))
	for i, f := range fields {
		v, ok := f.(string)
		if !ok {
			return nil, fmt.Errorf("%w: malformed challenge record", core.ErrStoreUnavailable)
		}
		strs[i] = v
	}

	attempts, err := strconv.Atoi(strs[1])
	if err != nil {
		return nil, fmt.Errorf("%w: malformed challenge record", core.ErrStoreUnavailable)
	}
	issuedAt, err := strconv.ParseInt(strs[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed challenge record", core.ErrStoreUnavailable)
	}
	expiresAt, err := strconv.ParseInt(strs[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed challenge record", core.ErrStoreUnavailable)
	}
	verifiedAt, err := strconv.ParseInt(strs[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed challenge record", core.ErrStoreUnavailable)
	}

	return &core.OtpChallenge{
		ID:         strs[0],
		Contact:    contact,
		Channel:    channel,
		Purpose:    purpose,
		CodeHash:   codeHash,
		Attempts:   attempts,
		IssuedAt:   time.Unix(issuedAt, 0),
		ExpiresAt:  time.Unix(expiresAt, 0),
		VerifiedAt: time.Unix(verifiedAt, 0),
	}, nil
}
