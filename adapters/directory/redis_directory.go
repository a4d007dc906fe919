// Package directory adapts the external user store to the Directory
// port. User records are owned by the marketplace backend; this
// adapter only reads them and bumps the session epoch.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/handyhub/identity/core"
	"github.com/handyhub/identity/ports"
	"github.com/redis/go-redis/v9"
)

// RedisDirectory reads principals from the shared Redis instance.
// Records live at identity:user:<id> with a contact index at
// identity:contact:<channel>:<contact>.
type RedisDirectory struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisDirectory creates a Redis-backed directory.
func NewRedisDirectory(client redis.UniversalClient) ports.Directory {
	return &RedisDirectory{
		client: client,
		prefix: "identity:",
	}
}

func (d *RedisDirectory) userKey(id string) string {
	return d.prefix + "user:" + id
}

func (d *RedisDirectory) contactKey(contact string, channel core.Channel) string {
	return d.prefix + "contact:" + string(channel) + ":" + contact
}

// Lookup returns the principal for an id.
func (d *RedisDirectory) Lookup(ctx context.Context, principalID string) (*core.Principal, error) {
	values, err := d.client.HMGet(ctx, d.userKey(principalID), "role", "status", "epoch").Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	if values[0] == nil {
		return nil, core.ErrPrincipalNotFound
	}

	role, _ := values[0].(string)
	status, _ := values[1].(string)
	epochStr, _ := values[2].(string)
	epoch, err := strconv.ParseInt(epochStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed user record", core.ErrStoreUnavailable)
	}

	return &core.Principal{
		ID:           principalID,
		Role:         core.Role(role),
		Status:       core.Status(status),
		SessionEpoch: epoch,
	}, nil
}

// LookupByContact resolves a normalized contact to its principal.
func (d *RedisDirectory) LookupByContact(ctx context.Context, contact string, channel core.Channel) (*core.Principal, error) {
	id, err := d.client.Get(ctx, d.contactKey(contact, channel)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	return d.Lookup(ctx, id)
}

// IncrementEpoch bumps the principal's session epoch atomically.
func (d *RedisDirectory) IncrementEpoch(ctx context.Context, principalID string) (int64, error) {
	exists, err := d.client.Exists(ctx, d.userKey(principalID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	if exists == 0 {
		return 0, core.ErrPrincipalNotFound
	}

	epoch, err := d.client.HIncrBy(ctx, d.userKey(principalID), "epoch", 1).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	return epoch, nil
}
