package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/warden/ports"
)

// Event types carried in SessionEvent.Type
const (
	TypeSignedUp  = "user.signed_up"
	TypeLoggedIn  = "session.logged_in"
	TypeRefreshed = "session.refreshed"
	TypeLoggedOut = "session.logged_out"
)

// DefaultTopic is used when no topic is configured
const DefaultTopic = "warden.sessions"

// SessionEvent is the payload published for every session lifecycle change
type SessionEvent struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id,omitempty"`
	Email      string    `json:"email,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
	now       func() time.Time
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher, topic string) ports.EventPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &WatermillPublisher{
		publisher: publisher,
		topic:     topic,
		now:       time.Now,
	}
}

// PublishSignup publishes a user.signed_up event
func (p *WatermillPublisher) PublishSignup(ctx context.Context, userID, email string) error {
	return p.publish(ctx, SessionEvent{Type: TypeSignedUp, UserID: userID, Email: email})
}

// PublishLogin publishes a session.logged_in event
func (p *WatermillPublisher) PublishLogin(ctx context.Context, userID string) error {
	return p.publish(ctx, SessionEvent{Type: TypeLoggedIn, UserID: userID})
}

// PublishRefresh publishes a session.refreshed event
func (p *WatermillPublisher) PublishRefresh(ctx context.Context, userID string) error {
	return p.publish(ctx, SessionEvent{Type: TypeRefreshed, UserID: userID})
}

// PublishLogout publishes a session.logged_out event. userID is empty when
// the client logged out without a readable refresh token.
func (p *WatermillPublisher) PublishLogout(ctx context.Context, userID string) error {
	return p.publish(ctx, SessionEvent{Type: TypeLoggedOut, UserID: userID})
}

func (p *WatermillPublisher) publish(ctx context.Context, event SessionEvent) error {
	event.OccurredAt = p.now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("type", event.Type)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// NopPublisher discards all events
type NopPublisher struct{}

func (NopPublisher) PublishSignup(context.Context, string, string) error { return nil }
func (NopPublisher) PublishLogin(context.Context, string) error          { return nil }
func (NopPublisher) PublishRefresh(context.Context, string) error        { return nil }
func (NopPublisher) PublishLogout(context.Context, string) error         { return nil }
