package service

import (
	"context"
	"time"

	"github.com/handyhub/identity/ports"
	"github.com/rs/zerolog"
)

// Operation names used as rate bucket key prefixes.
const (
	OpOtpRequest = "otp_request"
	OpOtpVerify  = "otp_verify"
	OpRefresh    = "refresh"
)

// RatePolicy caps an operation at Limit admissions per Window.
type RatePolicy struct {
	Limit  int
	Window time.Duration
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter gates the authentication endpoints with fixed-window
// counters keyed by operation and client identity. A denied request
// fails before any credential state is touched.
type RateLimiter struct {
	store    ports.RateStore
	policies map[string]RatePolicy
	log      zerolog.Logger
}

// NewRateLimiter creates a limiter with per-operation policies.
// Operations without a policy are admitted unconditionally.
func NewRateLimiter(store ports.RateStore, policies map[string]RatePolicy, log zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		store:    store,
		policies: policies,
		log:      log,
	}
}

// Admit checks whether the client may perform the operation within the
// current window. Storage failures propagate; unavailability is never
// treated as admission.
func (l *RateLimiter) Admit(ctx context.Context, op, client string) (Decision, error) {
	policy, ok := l.policies[op]
	if !ok || policy.Limit <= 0 {
		return Decision{Allowed: true}, nil
	}

	count, resetAt, err := l.store.Incr(ctx, op+":"+client, policy.Window)
	if err != nil {
		return Decision{}, err
	}

	if count > int64(policy.Limit) {
		retryAfter := time.Until(resetAt)
		if retryAfter < 0 {
			retryAfter = 0
		}
		l.log.Warn().
			Str("op", op).
			Str("client", client).
			Int64("count", count).
			Msg("request rate limited")
		return Decision{Allowed: false, RetryAfter: retryAfter}, nil
	}

	return Decision{Allowed: true, Remaining: policy.Limit - int(count)}, nil
}
