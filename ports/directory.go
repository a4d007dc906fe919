package ports

import (
	"context"

	"github.com/handyhub/identity/core"
)

// Directory is the external user store boundary. The trust layer reads
// principals and increments their session epoch; it never owns the
// records.
type Directory interface {
	Lookup(ctx context.Context, principalID string) (*core.Principal, error)
	LookupByContact(ctx context.Context, contact string, channel core.Channel) (*core.Principal, error)

	// IncrementEpoch bumps the principal's session epoch and returns
	// the new value, invalidating every outstanding refresh credential.
	IncrementEpoch(ctx context.Context, principalID string) (int64, error)
}
