package ports

import (
	"context"

	"github.com/handyhub/identity/core"
)

// EventPublisher hands events to the external notification pipeline.
// Delivery is fire-and-forget: the trust layer logs failures but never
// blocks its own invariants on them.
type EventPublisher interface {
	// PublishOtpDispatch asks the notification service to deliver the
	// code for a challenge. The code itself never rides the event; the
	// dispatcher reads it from the challenge store.
	PublishOtpDispatch(ctx context.Context, contact string, channel core.Channel, purpose, challengeID string) error

	// PublishLogout notifies other instances that a session ended.
	PublishLogout(ctx context.Context, principalID, credentialID string) error
}
