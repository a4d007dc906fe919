package core

import "time"

// Channel is the delivery channel for a one-time code.
type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

// Valid reports whether the channel is one of the supported ones.
func (c Channel) Valid() bool {
	switch c {
	case ChannelSMS, ChannelEmail, ChannelWhatsApp:
		return true
	}
	return false
}

// OtpChallenge is a persisted one-time code bound to a contact,
// channel and purpose. At most one live challenge exists per tuple;
// creating a new one replaces any predecessor.
type OtpChallenge struct {
	ID        string
	Contact   string
	Channel   Channel
	Purpose   string
	CodeHash  string
	Attempts  int
	IssuedAt  time.Time
	ExpiresAt time.Time

	// VerifiedAt is zero until the challenge is successfully
	// consumed. A verified challenge can never verify again.
	VerifiedAt time.Time
}
