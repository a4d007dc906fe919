package directory

import (
	"context"
	"sync"

	"github.com/handyhub/identity/core"
	"github.com/handyhub/identity/ports"
)

// MemoryDirectory is an in-memory Directory for tests and demos.
type MemoryDirectory struct {
	principals map[string]*core.Principal
	contacts   map[string]string
	mu         sync.Mutex
}

// NewMemoryDirectory creates an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		principals: make(map[string]*core.Principal),
		contacts:   make(map[string]string),
	}
}

// Seed registers a principal and optionally a contact pointing at it.
func (d *MemoryDirectory) Seed(p *core.Principal, contact string, channel core.Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()

	copied := *p
	d.principals[p.ID] = &copied
	if contact != "" {
		d.contacts[string(channel)+":"+contact] = p.ID
	}
}

// SetStatus updates a seeded principal's status.
func (d *MemoryDirectory) SetStatus(principalID string, status core.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.principals[principalID]; ok {
		p.Status = status
	}
}

// Lookup returns the principal for an id.
func (d *MemoryDirectory) Lookup(ctx context.Context, principalID string) (*core.Principal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.principals[principalID]
	if !ok {
		return nil, core.ErrPrincipalNotFound
	}

	copied := *p
	return &copied, nil
}

// LookupByContact resolves a normalized contact to its principal.
func (d *MemoryDirectory) LookupByContact(ctx context.Context, contact string, channel core.Channel) (*core.Principal, error) {
	d.mu.Lock()
	id, ok := d.contacts[string(channel)+":"+contact]
	d.mu.Unlock()
	if !ok {
		return nil, core.ErrPrincipalNotFound
	}

	return d.Lookup(ctx, id)
}

// IncrementEpoch bumps the principal's session epoch.
func (d *MemoryDirectory) IncrementEpoch(ctx context.Context, principalID string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.principals[principalID]
	if !ok {
		return 0, core.ErrPrincipalNotFound
	}

	p.SessionEpoch++
	return p.SessionEpoch, nil
}

var _ ports.Directory = (*MemoryDirectory)(nil)
