package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/client"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/domain"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/logger"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/repository"
)

const mailTimeout = 30 * time.Second

// notice describes one notification fan-out. Recipients are the listed users
// plus every active user holding one of Roles; the actor is always removed.
type notice struct {
	Type    domain.NotificationType
	Title   string
	Message string
	Users   []string
	Roles   []domain.Role
}

type outboundEmail struct {
	To      string
	Subject string
	Body    string
}

// outbox collects what an operation sends once it has committed.
type outbox struct {
	orderID       string
	orderNumber   string
	actorID       string
	notifications []*domain.Notification
	events        []*client.NotificationEvent
	emails        []outboundEmail
}

// notify resolves recipients inside the transaction and queues one
// notification per recipient plus one event for the whole batch.
func (c *core) notify(ctx context.Context, t *txn, n notice) error {
	recipients := make([]string, 0, len(n.Users))
	seen := map[string]bool{t.actor.ID: true}
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		recipients = append(recipients, id)
	}

	for _, id := range n.Users {
		add(id)
	}
	if len(n.Roles) > 0 {
		users, err := t.repos.Users.ListByRoles(ctx, n.Roles...)
		if err != nil {
			return err
		}
		for _, u := range users {
			add(u.ID)
		}
	}
	if len(recipients) == 0 {
		return nil
	}

	url := c.orderURL(t.order.ID)
	orderID := t.order.ID
	for _, userID := range recipients {
		t.out.notifications = append(t.out.notifications, &domain.Notification{
			ID:             newID(),
			UserID:         userID,
			ServiceOrderID: &orderID,
			Type:           n.Type,
			Title:          n.Title,
			Message:        n.Message,
			ActionURL:      &url,
			ActionText:     strPtr("Ver OS"),
			CreatedAt:      t.now,
		})
	}
	t.out.events = append(t.out.events, &client.NotificationEvent{
		EventType:      strings.ToLower(string(n.Type)),
		ServiceOrderID: orderID,
		OrderNumber:    t.order.Number,
		ActorID:        t.actor.ID,
		Recipients:     recipients,
		Title:          n.Title,
		Message:        n.Message,
		ActionURL:      url,
		Payload:        map[string]any{"status": string(t.order.Status)},
	})
	return nil
}

// notifyStakeholders notifies the creator and the assignee.
func (c *core) notifyStakeholders(ctx context.Context, t *txn, typ domain.NotificationType, title, message string, roles ...domain.Role) error {
	return c.notify(ctx, t, notice{
		Type:    typ,
		Title:   title,
		Message: message,
		Users:   t.order.Stakeholders(),
		Roles:   roles,
	})
}

func (t *txn) email(to, subject, body string) {
	if to == "" {
		return
	}
	t.out.emails = append(t.out.emails, outboundEmail{To: to, Subject: subject, Body: body})
}

// Dispatcher delivers an outbox after commit. Every failure is logged and
// swallowed: the workflow change is already durable.
type Dispatcher struct {
	store     repository.Store
	publisher client.EventPublisher
	mailer    client.Mailer
	log       *logger.Logger
	wg        sync.WaitGroup
}

// NewDispatcher creates a dispatcher. publisher and mailer may be nil.
func NewDispatcher(store repository.Store, publisher client.EventPublisher, mailer client.Mailer, log *logger.Logger) *Dispatcher {
	return &Dispatcher{store: store, publisher: publisher, mailer: mailer, log: log}
}

// Dispatch stores the notifications and publishes their events
// synchronously. E-mails go out in the background.
func (d *Dispatcher) Dispatch(ctx context.Context, out *outbox) {
	if len(out.notifications) > 0 {
		if err := d.store.Repos().Notifications.CreateBatch(ctx, out.notifications); err != nil {
			d.log.Warn().Err(err).
				Str("service_order_id", out.orderID).
				Int("count", len(out.notifications)).
				Msg("failed to store notifications (non-fatal)")
		}
	}

	if d.publisher != nil {
		for _, ev := range out.events {
			d.publisher.PublishServiceOrderEvent(ctx, ev)
		}
	}

	if d.mailer == nil {
		return
	}
	for _, m := range out.emails {
		d.wg.Add(1)
		go func(m outboundEmail) {
			defer d.wg.Done()
			sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mailTimeout)
			defer cancel()
			if err := d.mailer.Send(sendCtx, m.To, m.Subject, m.Body); err != nil {
				d.log.Warn().Err(err).
					Str("service_order_id", out.orderID).
					Str("to", m.To).
					Msg("failed to send e-mail (non-fatal)")
			}
		}(m)
	}
}

// Wait blocks until all background e-mails have been attempted.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
