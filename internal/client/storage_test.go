package client

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/errors"
)

func TestMemoryStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	payload := []byte("%PDF-1.4 test")
	require.NoError(t, s.Put(ctx, "attachments/a.pdf", "application/pdf", payload))
	require.Equal(t, 1, s.Len())

	// Mutating the caller's slice must not change the stored object.
	payload[0] = 'X'
	got, err := s.Get(ctx, "attachments/a.pdf")
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4 test", string(got))

	require.NoError(t, s.Delete(ctx, "attachments/a.pdf"))
	_, err = s.Get(ctx, "attachments/a.pdf")
	require.True(t, errors.HasCode(err, errors.ErrCodeNotFound))
	require.Zero(t, s.Len())
}

func TestNotificationPublisherWithoutConnectionIsNoop(t *testing.T) {
	p, err := NewNotificationPublisher(nil, zerolog.Nop())
	require.NoError(t, err)
	p.PublishServiceOrderEvent(context.Background(), &NotificationEvent{
		EventType:  "os_updated",
		Recipients: []string{"u1"},
	})
}
