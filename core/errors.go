package core

import "errors"

var (
	// ErrMalformed is returned when a token cannot be parsed at all.
	ErrMalformed = errors.New("token is malformed")

	// ErrSignatureInvalid is returned when a token signature does not verify.
	ErrSignatureInvalid = errors.New("token signature is invalid")

	// ErrExpired is returned when a token is past its expiry.
	ErrExpired = errors.New("token has expired")

	// ErrKindMismatch is returned when a token of one kind is presented
	// where the other kind is expected.
	ErrKindMismatch = errors.New("token kind mismatch")

	// ErrNotFoundOrRevoked is returned when a refresh credential cannot
	// be redeemed: unknown hash, already rotated, already revoked, or
	// past expiry. The cases are deliberately not distinguished.
	ErrNotFoundOrRevoked = errors.New("refresh credential not found or revoked")

	// ErrSessionInvalidated is returned when a token's session epoch no
	// longer matches the principal's current epoch.
	ErrSessionInvalidated = errors.New("session has been invalidated")

	// ErrChallengeNotFound is returned when no live challenge exists
	// for the requested tuple.
	ErrChallengeNotFound = errors.New("otp challenge not found")

	// ErrTooManyAttempts is returned when a challenge has reached its
	// attempt ceiling.
	ErrTooManyAttempts = errors.New("otp attempt limit reached")

	// ErrInvalidCode is returned when the supplied code does not match.
	ErrInvalidCode = errors.New("otp code mismatch")

	// ErrAlreadyUsed is returned when a verified challenge is presented again.
	ErrAlreadyUsed = errors.New("otp challenge already used")

	// ErrRateLimited is returned when an operation exceeds its admission budget.
	ErrRateLimited = errors.New("rate limited")

	// ErrPrincipalBlocked is returned when the principal's directory
	// status forbids authentication.
	ErrPrincipalBlocked = errors.New("principal is blocked")

	// ErrPrincipalNotFound is returned when the directory has no record
	// for the principal.
	ErrPrincipalNotFound = errors.New("principal not found")

	// ErrStoreUnavailable is returned when a storage operation fails.
	// It is always fatal to the current request.
	ErrStoreUnavailable = errors.New("store operation failed")
)
