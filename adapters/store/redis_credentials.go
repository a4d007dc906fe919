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

// revokeCredentialLua performs the revoke-iff-live conditional update
// in a single server-side step. Two concurrent rotations presenting the
// same secret therefore get exactly one success; the loser sees the
// revocation the winner just wrote.
var revokeCredentialLua = redis.NewScript(`
local revoked = redis.call("HGET", KEYS[1], "revoked_at")
if revoked == false then
  return {err = "not_found"}
end
if revoked ~= "0" then
  return {err = "revoked"}
end
local expires = tonumber(redis.call("HGET", KEYS[1], "expires_at"))
if expires <= tonumber(ARGV[1]) then
  return {err = "expired"}
end
redis.call("HSET", KEYS[1], "revoked_at", ARGV[1])
return redis.call("HMGET", KEYS[1], "id", "principal_id", "issued_at", "expires_at", "revoked_at", "address", "user_agent")
`)

// RedisCredentialStore is a Redis implementation of the CredentialStore
// port. Records live in hashes keyed by secret digest and expire with
// the credential, so revoked predecessors stay visible for replay
// detection until their natural expiry and then self-clean.
type RedisCredentialStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCredentialStore creates a Redis credential store.
func NewRedisCredentialStore(client redis.UniversalClient) ports.CredentialStore {
	return &RedisCredentialStore{
		client: client,
		prefix: "identity:refresh:",
	}
}

func (s *RedisCredentialStore) key(secretHash string) string {
	return s.prefix + secretHash
}

// Save persists a refresh credential keyed by its secret hash.
func (s *RedisCredentialStore) Save(ctx context.Context, cred *core.RefreshCredential) error {
	key := s.key(cred.SecretHash)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		"id", cred.ID,
		"principal_id", cred.PrincipalID,
		"issued_at", strconv.FormatInt(cred.IssuedAt.Unix(), 10),
		"expires_at", strconv.FormatInt(cred.ExpiresAt.Unix(), 10),
		"revoked_at", "0",
		"address", cred.Client.Address,
		"user_agent", cred.Client.UserAgent,
	)
	pipe.ExpireAt(ctx, key, cred.ExpiresAt)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	return nil
}

// Revoke marks the credential revoked iff it is still live.
func (s *RedisCredentialStore) Revoke(ctx context.Context, secretHash string, at time.Time) (*core.RefreshCredential, error) {
	result, err := revokeCredentialLua.Run(ctx, s.client,
		[]string{s.key(secretHash)},
		strconv.FormatInt(at.Unix(), 10),
	).Result()

	if err != nil {
		switch err.Error() {
		case "not_found", "revoked", "expired":
			return nil, core.ErrNotFoundOrRevoked
		default:
			return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
		}
	}

	fields, ok := result.([]interface{})
	if !ok || len(fields) != 7 {
		return nil, fmt.Errorf("%w: unexpected revoke script result", core.ErrStoreUnavailable)
	}

	return credentialFromFields(secretHash, fields)
}

// Get returns the credential for a secret hash regardless of state.
func (s *RedisCredentialStore) Get(ctx context.Context, secretHash string) (*core.RefreshCredential, error) {
	values, err := s.client.HMGet(ctx, s.key(secretHash),
		"id", "principal_id", "issued_at", "expires_at", "revoked_at", "address", "user_agent",
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	if values[0] == nil {
		return nil, core.ErrNotFoundOrRevoked
	}

	return credentialFromFields(secretHash, values)
}

func credentialFromFields(secretHash string, fields []interface{}) (*core.RefreshCredential, error) {
	strs := make([]string, len(fields))
	for i, f := range fields {
		s, ok := f.(string)
		if !ok {
			return nil, fmt.Errorf("%w: malformed credential record", core.ErrStoreUnavailable)
		}
		strs[i] = s
	}

	issuedAt, err := strconv.ParseInt(strs[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed credential record", core.ErrStoreUnavailable)
	}
	expiresAt, err := strconv.ParseInt(strs[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed credential record", core.ErrStoreUnavailable)
	}
	revokedAt, err := strconv.ParseInt(strs[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed credential record", core.ErrStoreUnavailable)
	}

	cred := &core.RefreshCredential{
		ID:          strs[0],
		PrincipalID: strs[1],
		SecretHash:  secretHash,
		IssuedAt:    time.Unix(issuedAt, 0),
		ExpiresAt:   time.Unix(expiresAt, 0),
		Client: core.ClientMeta{
			Address:   strs[5],
			UserAgent: strs[6],
		},
	}
	if revokedAt != 0 {
		cred.RevokedAt = time.Unix(revokedAt, 0)
	}

	return cred, nil
}
