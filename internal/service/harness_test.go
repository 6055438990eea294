package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/client"
	mock_client "github.com/MarioTrazzi/portal-moncoes-sub000/internal/client/mocks"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/domain"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/errors"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/logger"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/repository"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/repository/memory"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/workflow"
)

var (
	funcionario  = domain.Actor{ID: "u-func", Role: domain.RoleFuncionario}
	funcionario2 = domain.Actor{ID: "u-func2", Role: domain.RoleFuncionario}
	tecnico      = domain.Actor{ID: "u-tec", Role: domain.RoleTecnico}
	tecnico2     = domain.Actor{ID: "u-tec2", Role: domain.RoleTecnico}
	aprovador    = domain.Actor{ID: "u-apr", Role: domain.RoleAprovador}
	gestor       = domain.Actor{ID: "u-ger", Role: domain.RoleGestor}
	admin        = domain.Actor{ID: "u-adm", Role: domain.RoleAdmin}
)

var signedPDF = []byte("%PDF-1.7\n1 0 obj <<>> endobj\ntrailer <<>>\n%%EOF\n")

type sentMail struct {
	To      string
	Subject string
}

type harness struct {
	svc    *Services
	store  *memory.Store
	blobs  *client.MemoryStorage
	now    time.Time
	opts   Options
	mu     sync.Mutex
	mails  []sentMail
	events []*client.NotificationEvent
	// mailErr is returned by every Send.
	mailErr error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)

	h := &harness{
		store: memory.NewStore(),
		blobs: client.NewMemoryStorage(),
		now:   time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	dept := "Secretaria de Saúde"
	for _, u := range []*domain.User{
		{ID: funcionario.ID, Name: "Ana Souza", Email: "ana@moncoes.sp.gov.br", Role: domain.RoleFuncionario, Department: &dept, Active: true},
		{ID: funcionario2.ID, Name: "Bruno Lima", Email: "bruno@moncoes.sp.gov.br", Role: domain.RoleFuncionario, Active: true},
		{ID: tecnico.ID, Name: "Carlos Técnico", Email: "carlos@moncoes.sp.gov.br", Role: domain.RoleTecnico, Active: true},
		{ID: tecnico2.ID, Name: "Diego Técnico", Email: "diego@moncoes.sp.gov.br", Role: domain.RoleTecnico, Active: true},
		{ID: aprovador.ID, Name: "Elisa Aprovadora", Email: "elisa@moncoes.sp.gov.br", Role: domain.RoleAprovador, Active: true},
		{ID: gestor.ID, Name: "Fábio Gestor", Email: "fabio@moncoes.sp.gov.br", Role: domain.RoleGestor, Active: true},
		{ID: admin.ID, Name: "Gabriela Admin", Email: "gabriela@moncoes.sp.gov.br", Role: domain.RoleAdmin, Active: true},
		{ID: "u-tec-off", Name: "Hugo Inativo", Email: "hugo@moncoes.sp.gov.br", Role: domain.RoleTecnico, Active: false},
	} {
		h.store.PutUser(u)
	}
	for _, sp := range []*domain.Supplier{
		{ID: "s1", Name: "Info Center Ltda", Email: "vendas@infocenter.com.br", Active: true},
		{ID: "s2", Name: "Tech Supply ME", Email: "orcamento@techsupply.com.br", Active: true},
		{ID: "s3", Name: "Rede Forte", Email: "contato@redeforte.com.br", Active: true},
		{ID: "s-off", Name: "Fechada SA", Email: "x@fechada.com.br", Active: false},
	} {
		h.store.PutSupplier(sp)
	}

	mailer := mock_client.NewMockMailer(ctrl)
	mailer.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, to, subject, _ string) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.mails = append(h.mails, sentMail{To: to, Subject: subject})
			return h.mailErr
		}).AnyTimes()
	publisher := mock_client.NewMockEventPublisher(ctrl)
	publisher.EXPECT().PublishServiceOrderEvent(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, ev *client.NotificationEvent) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.events = append(h.events, ev)
		}).AnyTimes()

	h.opts = Options{
		Store:         h.store,
		Publisher:     publisher,
		Mailer:        mailer,
		Blobs:         h.blobs,
		Log:           logger.Nop(),
		PublicBaseURL: "https://portal.moncoes.test",
		Now:           func() time.Time { return h.now },
	}
	h.svc = New(h.opts)
	t.Cleanup(h.svc.Wait)
	return h
}

// sentMails waits for background e-mails and returns them.
func (h *harness) sentMails() []sentMail {
	h.svc.Wait()
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]sentMail(nil), h.mails...)
}

func (h *harness) publishedEvents() []*client.NotificationEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*client.NotificationEvent(nil), h.events...)
}

func (h *harness) order(t *testing.T, id string) *domain.ServiceOrder {
	t.Helper()
	o, err := h.store.Repos().Orders.GetByID(context.Background(), id)
	require.NoError(t, err)
	return o
}

func (h *harness) quote(t *testing.T, id string) *domain.Quote {
	t.Helper()
	q, err := h.store.Repos().Quotes.GetByID(context.Background(), id)
	require.NoError(t, err)
	return q
}

func (h *harness) auditActions(t *testing.T, orderID string) []domain.AuditAction {
	t.Helper()
	entries, err := h.store.Repos().Audit.ListByServiceOrder(context.Background(), orderID)
	require.NoError(t, err)
	out := make([]domain.AuditAction, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}

func (h *harness) notificationsFor(t *testing.T, userID string) []*domain.Notification {
	t.Helper()
	ns, err := h.store.Repos().Notifications.ListByUser(context.Background(), userID, false, 100)
	require.NoError(t, err)
	return ns
}

// seed stores an order directly in the given status.
func (h *harness) seed(t *testing.T, id string, status domain.Status) *domain.ServiceOrder {
	t.Helper()
	o := &domain.ServiceOrder{
		ID:          id,
		Number:      "OS-2024-" + id,
		Title:       "Seeded",
		Description: "Seeded order",
		Category:    domain.CategoryHardware,
		Priority:    domain.PriorityNormal,
		CreatedByID: funcionario.ID,
		Status:      status,
		Version:     1,
		CreatedAt:   h.now,
		UpdatedAt:   h.now,
	}
	require.NoError(t, h.store.InTx(context.Background(), func(r repository.Repos) error {
		return r.Orders.Create(context.Background(), o)
	}))
	return o
}

func (h *harness) createOrder(t *testing.T) *domain.ServiceOrder {
	t.Helper()
	o, err := h.svc.Orders.Create(context.Background(), funcionario, &CreateServiceOrderRequest{
		Title:       "Computador não liga",
		Description: "O computador da recepção não liga desde ontem",
		Category:    domain.CategoryHardware,
		Priority:    domain.PriorityAlta,
	})
	require.NoError(t, err)
	return o
}

func (h *harness) transition(t *testing.T, actor domain.Actor, id string, to domain.Status, p TransitionPayload) *TransitionResult {
	t.Helper()
	res, err := h.svc.Orders.Transition(context.Background(), actor, &TransitionRequest{OrderID: id, TargetStatus: to, Payload: p})
	require.NoError(t, err)
	return res
}

func materialPayload() TransitionPayload {
	desc := "Fonte ATX 500W"
	just := "Fonte queimada, sem reparo"
	return TransitionPayload{FieldUpdate: workflow.FieldUpdate{
		MaterialDescription:   &desc,
		MaterialJustification: &just,
	}}
}

// awaitingMaterial returns an order in AGUARDANDO_MATERIAL assigned to tecnico.
func (h *harness) awaitingMaterial(t *testing.T) *domain.ServiceOrder {
	t.Helper()
	o := h.createOrder(t)
	h.transition(t, tecnico, o.ID, domain.StatusEmAnalise, TransitionPayload{})
	h.transition(t, tecnico, o.ID, domain.StatusAguardandoMaterial, materialPayload())
	return h.order(t, o.ID)
}

func (h *harness) solicit(t *testing.T, orderID string, supplierIDs ...string) []*domain.Quote {
	t.Helper()
	quotes, err := h.svc.Quotes.Solicit(context.Background(), gestor, &SolicitQuotesRequest{
		OrderID:     orderID,
		SupplierIDs: supplierIDs,
		Items:       []ItemRequest{{Description: "Fonte ATX 500W", Quantity: 2}},
	})
	require.NoError(t, err)
	return quotes
}

func (h *harness) register(t *testing.T, quoteID, unitPrice string, quantity int) *domain.Quote {
	t.Helper()
	q, err := h.svc.Quotes.Register(context.Background(), aprovador, &RegisterQuoteRequest{
		QuoteID: quoteID,
		Items:   []ItemRequest{{Description: "Fonte ATX 500W", Quantity: quantity, UnitPrice: decimal.RequireFromString(unitPrice)}},
	})
	require.NoError(t, err)
	return q
}

// awaitingSignature returns an order in AGUARDANDO_ASSINATURA with an
// approved quote and its purchase order.
func (h *harness) awaitingSignature(t *testing.T) (*domain.ServiceOrder, *domain.Quote) {
	t.Helper()
	o := h.awaitingMaterial(t)
	quotes := h.solicit(t, o.ID, "s1", "s2")
	h.register(t, quotes[0].ID, "60.00", 2)
	h.register(t, quotes[1].ID, "75.00", 2)
	_, err := h.svc.Quotes.Approve(context.Background(), aprovador, quotes[0].ID, ApproveQuoteRequest{})
	require.NoError(t, err)
	return h.order(t, o.ID), h.quote(t, quotes[0].ID)
}

func requireCode(t *testing.T, err error, code errors.Code) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, errors.CodeOf(err), "error: %v", err)
}

func strPtrT(s string) *string { return &s }
