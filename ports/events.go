package ports

import "context"

// EventPublisher publishes session lifecycle events to other services
type EventPublisher interface {
	PublishSignup(ctx context.Context, userID, email string) error
	PublishLogin(ctx context.Context, userID string) error
	PublishRefresh(ctx context.Context, userID string) error
	PublishLogout(ctx context.Context, userID string) error
}
