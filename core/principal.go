package core

import "time"

// Role is the capability tier assigned to a principal.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleWorker   Role = "worker"
	RoleAdmin    Role = "admin"
)

// Valid reports whether the role is one of the known tiers.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleWorker, RoleAdmin:
		return true
	}
	return false
}

// Status is the account state of a principal in the user directory.
type Status string

const (
	StatusActive  Status = "active"
	StatusBlocked Status = "blocked"
)

// Principal is the identity subject as seen by the trust layer. The
// record itself is owned by the external user directory; this layer
// only reads it and increments SessionEpoch.
type Principal struct {
	ID     string
	Role   Role
	Status Status

	// SessionEpoch invalidates every outstanding refresh credential
	// when incremented. Tokens embed the epoch they were minted under
	// and rotation rejects any mismatch.
	SessionEpoch int64
}

// ClientMeta is the issuing client metadata recorded on a refresh
// credential for audit.
type ClientMeta struct {
	Address   string
	UserAgent string
}

// Session is the claim set carried by an access/refresh token pair.
type Session struct {
	PrincipalID string
	Role        Role
	Epoch       int64
	RefreshID   string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}
