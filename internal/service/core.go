package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/client"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/document"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/domain"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/errors"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/logger"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/repository"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/workflow"
)

// Options wires the services to their collaborators. Publisher may be nil.
type Options struct {
	Store                  repository.Store
	Publisher              client.EventPublisher
	Mailer                 client.Mailer
	Blobs                  client.BlobStore
	Renderer               document.Renderer
	Log                    *logger.Logger
	PublicBaseURL          string
	QuoteValidityDays      int
	MaxSignedDocumentBytes int64
	Now                    func() time.Time
}

// Services groups the workflow services sharing one store and dispatcher.
type Services struct {
	Orders     *ServiceOrderService
	Quotes     *QuoteService
	Documents  *DocumentService
	Directory  *DirectoryService
	dispatcher *Dispatcher
}

// New builds every service.
func New(opts Options) *Services {
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.QuoteValidityDays <= 0 {
		opts.QuoteValidityDays = 7
	}
	if opts.MaxSignedDocumentBytes <= 0 {
		opts.MaxSignedDocumentBytes = 10 << 20
	}
	if opts.Renderer == nil {
		opts.Renderer = document.PDFRenderer{}
	}

	d := NewDispatcher(opts.Store, opts.Publisher, opts.Mailer, opts.Log.Component("dispatcher"))
	c := &core{
		store:      opts.Store,
		blobs:      opts.Blobs,
		renderer:   opts.Renderer,
		dispatcher: d,
		log:        opts.Log,
		tracer:     otel.Tracer("github.com/MarioTrazzi/portal-moncoes-sub000/internal/service"),
		now:        func() time.Time { return opts.Now().UTC() },
		baseURL:    opts.PublicBaseURL,
		validity:   time.Duration(opts.QuoteValidityDays) * 24 * time.Hour,
		maxSigned:  opts.MaxSignedDocumentBytes,
		validate:   validator.New(),
	}

	return &Services{
		Orders:     &ServiceOrderService{c},
		Quotes:     &QuoteService{c},
		Documents:  &DocumentService{c},
		Directory:  &DirectoryService{c},
		dispatcher: d,
	}
}

// Wait blocks until every queued e-mail has been attempted.
func (s *Services) Wait() {
	s.dispatcher.Wait()
}

type core struct {
	store      repository.Store
	blobs      client.BlobStore
	renderer   document.Renderer
	dispatcher *Dispatcher
	log        *logger.Logger
	tracer     trace.Tracer
	now        func() time.Time
	baseURL    string
	validity   time.Duration
	maxSigned  int64
	validate   *validator.Validate
}

// ── Funnel ────────────────────────────────────────────────────────────────────

// txn is the unit of work of one operation on one order. Every state change
// goes through it so that each successful operation writes the order, exactly
// one audit row and its notifications together.
type txn struct {
	repos  repository.Repos
	actor  domain.Actor
	now    time.Time
	order  *domain.ServiceOrder
	before domain.Status

	created bool
	dirty   bool
	action  domain.AuditAction
	details map[string]any
	auditID string

	out      outbox
	blobKeys []string
}

// withOrder locks orderID, runs fn and commits its changes. Blobs written by
// fn are removed again when the transaction does not commit.
func (c *core) withOrder(ctx context.Context, actor domain.Actor, orderID string, fn func(ctx context.Context, t *txn) error) (*txn, error) {
	return c.run(ctx, actor, func(ctx context.Context, r repository.Repos) (*domain.ServiceOrder, error) {
		return r.Orders.GetForUpdate(ctx, orderID)
	}, fn)
}

func (c *core) run(
	ctx context.Context,
	actor domain.Actor,
	load func(ctx context.Context, r repository.Repos) (*domain.ServiceOrder, error),
	fn func(ctx context.Context, t *txn) error,
) (*txn, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var t *txn
	err := c.store.InTx(ctx, func(r repository.Repos) error {
		order, err := load(ctx, r)
		if err != nil {
			return err
		}
		t = &txn{repos: r, actor: actor, now: c.now(), order: order}
		if order != nil {
			t.before = order.Status
		}
		if err := fn(ctx, t); err != nil {
			return err
		}
		return c.flush(ctx, t)
	})
	if err != nil {
		if t != nil {
			c.discardBlobs(ctx, t.blobKeys)
		}
		return nil, err
	}

	t.out.orderID = t.order.ID
	t.out.orderNumber = t.order.Number
	t.out.actorID = actor.ID
	c.dispatcher.Dispatch(ctx, &t.out)
	return t, nil
}

func (c *core) flush(ctx context.Context, t *txn) error {
	if t.action == "" {
		return errors.New(errors.ErrCodeInternal, "operation finished without an audit action")
	}

	switch {
	case t.created:
		if err := t.repos.Orders.Create(ctx, t.order); err != nil {
			return err
		}
	case t.dirty:
		t.order.UpdatedAt = t.now
		if err := t.repos.Orders.Update(ctx, t.order); err != nil {
			return err
		}
	}

	entry := &domain.AuditEntry{
		ServiceOrderID: t.order.ID,
		UserID:         t.actor.ID,
		Action:         t.action,
		Details:        t.details,
	}
	if err := t.repos.Audit.Append(ctx, entry); err != nil {
		return err
	}
	t.auditID = entry.ID
	return nil
}

func (c *core) discardBlobs(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := c.blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
			c.log.Warn().Err(err).Str("storage_key", key).Msg("failed to remove orphaned blob")
		}
	}
}

// record sets the single audit row of the operation.
func (t *txn) record(action domain.AuditAction, details map[string]any) {
	t.action = action
	t.details = details
}

// transition moves the order and applies the automatic timestamps. Callers
// authorize first.
func (t *txn) transition(to domain.Status) {
	t.order.Status = to
	workflow.ApplyTimestamps(t.order, t.now)
	t.dirty = true
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func requireActor(actor domain.Actor) error {
	if actor.ID == "" || !actor.Role.IsValid() {
		return errors.New(errors.ErrCodeUnauthenticated, "a known actor is required")
	}
	return nil
}

func requireRole(actor domain.Actor, action string, roles ...domain.Role) error {
	if !actor.Role.In(roles...) {
		return errors.UnauthorizedRole("role " + string(actor.Role) + " cannot " + action)
	}
	return nil
}

func newID() string {
	return uuid.NewString()
}

func (c *core) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(errors.CodeOf(err)))
	}
	span.End()
}

func (c *core) orderURL(orderID string) string {
	return c.baseURL + "/os/" + orderID
}

func strPtr(s string) *string {
	return &s
}
