package store

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/handyhub/identity/core"
	"github.com/handyhub/identity/ports"
)

// MemoryChallengeStore is an in-memory implementation of the
// ChallengeStore port, intended for tests and single-process demos.
type MemoryChallengeStore struct {
	challenges map[string]*core.OtpChallenge
	mu         sync.Mutex
}

// NewMemoryChallengeStore creates an in-memory challenge store.
func NewMemoryChallengeStore() *MemoryChallengeStore {
	return &MemoryChallengeStore{
		challenges: make(map[string]*core.OtpChallenge),
	}
}

func challengeKey(contact string, channel core.Channel, purpose string) string {
	return string(channel) + ":" + purpose + ":" + contact
}

// Put inserts a challenge, replacing any prior one for the tuple.
func (s *MemoryChallengeStore) Put(ctx context.Context, ch *core.OtpChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *ch
	s.challenges[challengeKey(ch.Contact, ch.Channel, ch.Purpose)] = &copied
	return nil
}

// Consume runs one verification attempt against the live challenge.
func (s *MemoryChallengeStore) Consume(ctx context.Context, contact string, channel core.Channel, purpose, codeHash string, maxAttempts int, now time.Time) (*core.OtpChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := challengeKey(contact, channel, purpose)
	ch, ok := s.challenges[key]
	if !ok {
		return nil, core.ErrChallengeNotFound
	}
	if !ch.VerifiedAt.IsZero() {
		return nil, core.ErrAlreadyUsed
	}
	if !now.Before(ch.ExpiresAt) {
		delete(s.challenges, key)
		return nil, core.ErrChallengeNotFound
	}
	if ch.Attempts >= maxAttempts {
		return nil, core.ErrTooManyAttempts
	}
	if subtle.ConstantTimeCompare([]byte(ch.CodeHash), []byte(codeHash)) != 1 {
		ch.Attempts++
		return nil, core.ErrInvalidCode
	}

	ch.VerifiedAt = now
	copied := *ch
	return &copied, nil
}

var _ ports.ChallengeStore = (*MemoryChallengeStore)(nil)
