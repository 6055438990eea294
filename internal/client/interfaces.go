package client

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_interfaces.go -package=mock_client

import (
	"context"
)

// Mailer sends one HTML e-mail.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// EventPublisher fans notification events out to other services. Publishing
// is best-effort; implementations log failures instead of returning them.
type EventPublisher interface {
	PublishServiceOrderEvent(ctx context.Context, event *NotificationEvent)
}

// BlobStore keeps attachment bytes under an opaque key.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
