package store

import (
	"context"
	"sync"
	"time"

	"github.com/handyhub/identity/core"
	"github.com/handyhub/identity/ports"
)

// MemoryCredentialStore is an in-memory implementation of the
// CredentialStore port, intended for tests and single-process demos.
type MemoryCredentialStore struct {
	creds map[string]*core.RefreshCredential
	mu    sync.Mutex
}

// NewMemoryCredentialStore creates an in-memory credential store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		creds: make(map[string]*core.RefreshCredential),
	}
}

// Save persists a refresh credential keyed by its secret hash.
func (s *MemoryCredentialStore) Save(ctx context.Context, cred *core.RefreshCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *cred
	s.creds[cred.SecretHash] = &copied
	return nil
}

// Revoke marks the credential revoked iff it is still live. The check
// and the write happen under one lock, mirroring the conditional
// update the Redis adapter does in Lua.
func (s *MemoryCredentialStore) Revoke(ctx context.Context, secretHash string, at time.Time) (*core.RefreshCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.creds[secretHash]
	if !ok || !cred.Live(at) {
		return nil, core.ErrNotFoundOrRevoked
	}

	cred.RevokedAt = at
	copied := *cred
	return &copied, nil
}

// Get returns the credential for a secret hash regardless of state.
func (s *MemoryCredentialStore) Get(ctx context.Context, secretHash string) (*core.RefreshCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.creds[secretHash]
	if !ok {
		return nil, core.ErrNotFoundOrRevoked
	}

	copied := *cred
	return &copied, nil
}

var _ ports.CredentialStore = (*MemoryCredentialStore)(nil)
