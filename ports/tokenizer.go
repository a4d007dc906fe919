package ports

import "github.com/handyhub/identity/core"

// Tokenizer signs and verifies the two token kinds. Access and refresh
// tokens use distinct signing contexts so one can never stand in for
// the other.
type Tokenizer interface {
	AccessToken(s *core.Session) (string, error)
	RefreshToken(s *core.Session) (string, error)

	// ParseAccess verifies an access token and returns its session
	// view. Failures are core.ErrMalformed, core.ErrSignatureInvalid,
	// core.ErrExpired or core.ErrKindMismatch.
	ParseAccess(token string) (*core.Session, error)

	// ParseRefresh is ParseAccess for the refresh kind.
	ParseRefresh(token string) (*core.Session, error)
}
