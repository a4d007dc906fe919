package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/handyhub/identity/core"
	"github.com/handyhub/identity/ports"
)

const (
	// TopicOtpDispatch carries delivery requests for the external
	// notification service (SMS/email/WhatsApp senders).
	TopicOtpDispatch = "identity.otp.dispatch"

	// TopicLogout carries session-ended notifications for other
	// marketplace services.
	TopicLogout = "identity.logout"
)

// OtpDispatchEvent asks the notification pipeline to deliver the code
// for a challenge. The code itself is never part of the event.
type OtpDispatchEvent struct {
	Contact     string `json:"contact"`
	Channel     string `json:"channel"`
	Purpose     string `json:"purpose"`
	ChallengeID string `json:"challenge_id"`
}

// LogoutEvent notifies other services that a session ended.
type LogoutEvent struct {
	PrincipalID  string `json:"principal_id"`
	CredentialID string `json:"credential_id"`
}

// WatermillPublisher implements the EventPublisher port using Watermill.
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher.
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishOtpDispatch publishes a delivery request for a challenge.
func (p *WatermillPublisher) PublishOtpDispatch(ctx context.Context, contact string, channel core.Channel, purpose, challengeID string) error {
	event := OtpDispatchEvent{
		Contact:     contact,
		Channel:     string(channel),
		Purpose:     purpose,
		ChallengeID: challengeID,
	}

	return p.publish(TopicOtpDispatch, challengeID, event)
}

// PublishLogout publishes a session-ended event.
func (p *WatermillPublisher) PublishLogout(ctx context.Context, principalID, credentialID string) error {
	event := LogoutEvent{
		PrincipalID:  principalID,
		CredentialID: credentialID,
	}

	return p.publish(TopicLogout, credentialID, event)
}

func (p *WatermillPublisher) publish(topic, id string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if id == "" {
		id = uuid.New().String()
	}
	msg := message.NewMessage(id, payload)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
