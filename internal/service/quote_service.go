package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/domain"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/errors"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/repository"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/workflow"
)

// QuoteService runs the procurement sub-flow: quote solicitation, receipt,
// review, approval or rejection, and purchase order delivery.
type QuoteService struct {
	*core
}

// rejectedBySibling is the reason stored on quotes closed by another approval.
const rejectedBySibling = "outro orçamento aprovado"

// ItemRequest is one requested or quoted line.
type ItemRequest struct {
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// SolicitQuotesRequest represents a quote solicitation request
type SolicitQuotesRequest struct {
	OrderID      string
	SupplierIDs  []string
	Items        []ItemRequest
	Observations *string
}

// RegisterQuoteRequest records a supplier answer. QuoteID selects a quote
// already SOLICITADO; without it a new quote is created for SupplierID.
type RegisterQuoteRequest struct {
	OrderID      string
	QuoteID      string
	SupplierID   string
	Items        []ItemRequest
	DeliveryDays *int
	Validity     *time.Time
	Observations *string
}

// ApproveQuoteRequest carries the optional data of an approval.
type ApproveQuoteRequest struct {
	DeliveryAddress *string
	Observations    *string
}

// Quote decision actions.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// DecideQuoteRequest represents a quote decision request
type DecideQuoteRequest struct {
	QuoteID         string
	Action          string
	Reason          string
	Observations    *string
	DeliveryAddress *string
}

// DecisionResult is returned by Approve, Reject and Decide.
type DecisionResult struct {
	Quote               *domain.Quote        `json:"quote"`
	Order               *domain.ServiceOrder `json:"order"`
	AuditEntryID        string               `json:"auditEntryId"`
	PurchaseOrderNumber *string              `json:"purchaseOrderNumber,omitempty"`
}

// ── Solicitation ──────────────────────────────────────────────────────────────

// Solicit creates one SOLICITADO quote per supplier and moves the order to
// AGUARDANDO_ORCAMENTO. At least two distinct suppliers are required.
func (s *QuoteService) Solicit(ctx context.Context, actor domain.Actor, req *SolicitQuotesRequest) ([]*domain.Quote, error) {
	ctx, span := s.startSpan(ctx, "QuoteService.Solicit", attribute.String("service_order_id", req.OrderID))
	var err error
	defer func() { endSpan(span, err) }()

	supplierIDs := distinct(req.SupplierIDs)
	if len(supplierIDs) < 2 {
		err = errors.InvalidInput("supplierIds", "at least two distinct suppliers are required")
		return nil, err
	}
	var items []domain.QuoteItem
	if items, err = requestedItems(req.Items); err != nil {
		return nil, err
	}

	var created []*domain.Quote
	_, err = s.withOrder(ctx, actor, req.OrderID, func(ctx context.Context, t *txn) error {
		from := t.order.Status
		switch from {
		case domain.StatusAguardandoMaterial:
			if err := workflow.Authorize(from, actor.Role, domain.StatusAguardandoOrcamento); err != nil {
				return err
			}
		case domain.StatusAguardandoOrcamento:
			if err := requireRole(actor, "solicit quotes", domain.RoleGestor, domain.RoleAdmin); err != nil {
				return err
			}
		default:
			return errors.IllegalTransition(fmt.Sprintf("quotes cannot be solicited while the service order is %s", from))
		}

		existing, err := t.repos.Quotes.ListByServiceOrder(ctx, t.order.ID)
		if err != nil {
			return err
		}
		open := map[string]bool{}
		for _, q := range existing {
			if !q.Status.IsTerminal() {
				open[q.SupplierID] = true
			}
		}

		suppliers := make([]*domain.Supplier, 0, len(supplierIDs))
		for _, id := range supplierIDs {
			sp, err := t.repos.Suppliers.GetByID(ctx, id)
			if err != nil {
				return err
			}
			if !sp.Active {
				return errors.InvalidInput("supplierIds", "supplier "+sp.Name+" is inactive")
			}
			if open[id] {
				return errors.InvalidInput("supplierIds", "supplier "+sp.Name+" already has an open quote for this service order")
			}
			suppliers = append(suppliers, sp)
		}

		validity := t.now.Add(s.validity)
		observations := trimmedOrNil(req.Observations)
		quoteIDs := make([]string, 0, len(suppliers))
		for _, sp := range suppliers {
			q := &domain.Quote{
				ID:             newID(),
				ServiceOrderID: t.order.ID,
				SupplierID:     sp.ID,
				RequestedByID:  actor.ID,
				Items:          domain.CloneItems(items),
				TotalValue:     decimal.Zero,
				Validity:       &validity,
				Observations:   observations,
				Status:         domain.QuoteSolicitado,
				CreatedAt:      t.now,
				UpdatedAt:      t.now,
			}
			if err := t.repos.Quotes.Create(ctx, q); err != nil {
				return err
			}
			created = append(created, q)
			quoteIDs = append(quoteIDs, q.ID)

			body, err := renderQuoteRequest(quoteRequestEmail{
				Supplier:     sp.Name,
				OrderNumber:  t.order.Number,
				Items:        items,
				Validity:     validity,
				Observations: deref(observations),
			})
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to render quote request e-mail")
			}
			t.email(sp.Email, "Solicitação de orçamento - "+t.order.Number, body)
		}

		if from != domain.StatusAguardandoOrcamento {
			t.transition(domain.StatusAguardandoOrcamento)
		}
		t.record(domain.ActionQuotesRequested, map[string]any{
			"from":        string(from),
			"to":          string(t.order.Status),
			"supplierIds": supplierIDs,
			"quoteIds":    quoteIDs,
			"itemCount":   len(items),
		})
		return s.notifyStakeholders(ctx, t, domain.NotificationQuotesRequested,
			"Orçamentos solicitados - OS "+t.order.Number,
			fmt.Sprintf("%d fornecedores consultados", len(suppliers)),
			domain.RoleGestor, domain.RoleAprovador)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("service_order_id", req.OrderID).
		Int("quotes", len(created)).
		Msg("quotes solicited")
	return created, nil
}

// ── Receipt ───────────────────────────────────────────────────────────────────

// Register records a supplier's prices. The first received quote of an
// order in AGUARDANDO_ORCAMENTO advances it to ORCAMENTOS_RECEBIDOS.
func (s *QuoteService) Register(ctx context.Context, actor domain.Actor, req *RegisterQuoteRequest) (*domain.Quote, error) {
	ctx, span := s.startSpan(ctx, "QuoteService.Register", attribute.String("service_order_id", req.OrderID))
	var err error
	defer func() { endSpan(span, err) }()

	if err = requireRole(actor, "register quotes", domain.RoleGestor, domain.RoleAprovador, domain.RoleAdmin); err != nil {
		return nil, err
	}
	var items []domain.QuoteItem
	if items, err = pricedItems(req.Items); err != nil {
		return nil, err
	}
	if req.DeliveryDays != nil && *req.DeliveryDays < 0 {
		err = errors.InvalidInput("deliveryTime", "delivery time cannot be negative")
		return nil, err
	}

	orderID := req.OrderID
	if orderID == "" && req.QuoteID != "" {
		var q *domain.Quote
		if q, err = s.store.Repos().Quotes.GetByID(ctx, req.QuoteID); err != nil {
			return nil, err
		}
		orderID = q.ServiceOrderID
	}

	var quote *domain.Quote
	_, err = s.withOrder(ctx, actor, orderID, func(ctx context.Context, t *txn) error {
		from := t.order.Status
		if from != domain.StatusAguardandoOrcamento && from != domain.StatusOrcamentosRecebidos {
			return errors.IllegalTransition(fmt.Sprintf("quotes cannot be registered while the service order is %s", from))
		}

		var err error
		fresh := req.QuoteID == ""
		if fresh {
			if quote, err = s.newReceivedQuote(ctx, t, req.SupplierID); err != nil {
				return err
			}
		} else {
			if quote, err = t.repos.Quotes.GetByID(ctx, req.QuoteID); err != nil {
				return err
			}
			if quote.ServiceOrderID != t.order.ID {
				return errors.InvalidInput("quoteId", "quote belongs to another service order")
			}
			if quote.Status != domain.QuoteSolicitado {
				return errors.IllegalTransition(fmt.Sprintf("quote is %s, only SOLICITADO quotes can be registered", quote.Status))
			}
		}

		quote.Items = items
		quote.TotalValue = domain.ItemsTotal(items)
		quote.DeliveryDays = req.DeliveryDays
		if req.Validity != nil {
			quote.Validity = req.Validity
		}
		if obs := trimmedOrNil(req.Observations); obs != nil {
			quote.Observations = obs
		}
		quote.Status = domain.QuoteRecebido
		quote.UpdatedAt = t.now

		if fresh {
			err = t.repos.Quotes.Create(ctx, quote)
		} else {
			err = t.repos.Quotes.Update(ctx, quote)
		}
		if err != nil {
			return err
		}

		if from == domain.StatusAguardandoOrcamento {
			if err := workflow.AuthorizeSystem(from, domain.StatusOrcamentosRecebidos); err != nil {
				return err
			}
			t.transition(domain.StatusOrcamentosRecebidos)
		}
		t.record(domain.ActionQuoteReceived, map[string]any{
			"quoteId":    quote.ID,
			"supplierId": quote.SupplierID,
			"totalValue": quote.TotalValue.StringFixed(2),
			"from":       string(from),
			"to":         string(t.order.Status),
		})
		return s.notifyStakeholders(ctx, t, domain.NotificationQuoteReceived,
			"Orçamento recebido - OS "+t.order.Number,
			"Valor total: "+quote.TotalValue.StringFixed(2),
			domain.RoleAprovador)
	})
	if err != nil {
		return nil, err
	}
	return quote, nil
}

func (s *QuoteService) newReceivedQuote(ctx context.Context, t *txn, supplierID string) (*domain.Quote, error) {
	if supplierID == "" {
		return nil, errors.InvalidInput("supplierId", "supplier is required")
	}
	sp, err := t.repos.Suppliers.GetByID(ctx, supplierID)
	if err != nil {
		return nil, err
	}
	if !sp.Active {
		return nil, errors.InvalidInput("supplierId", "supplier "+sp.Name+" is inactive")
	}
	validity := t.now.Add(s.validity)
	return &domain.Quote{
		ID:             newID(),
		ServiceOrderID: t.order.ID,
		SupplierID:     sp.ID,
		RequestedByID:  t.actor.ID,
		Validity:       &validity,
		CreatedAt:      t.now,
	}, nil
}

// StartReview marks a received quote as under analysis.
func (s *QuoteService) StartReview(ctx context.Context, actor domain.Actor, quoteID string) (*domain.Quote, error) {
	if err := requireRole(actor, "review quotes", domain.RoleAprovador, domain.RoleAdmin); err != nil {
		return nil, err
	}

	var quote *domain.Quote
	_, err := s.withQuote(ctx, actor, quoteID, func(ctx context.Context, t *txn, q *domain.Quote) error {
		if q.Status != domain.QuoteRecebido {
			return errors.IllegalTransition(fmt.Sprintf("quote is %s, only RECEBIDO quotes can be reviewed", q.Status))
		}
		q.Status = domain.QuoteEmAnalise
		q.UpdatedAt = t.now
		if err := t.repos.Quotes.Update(ctx, q); err != nil {
			return err
		}
		quote = q
		t.record(domain.ActionQuoteInReview, map[string]any{"quoteId": q.ID})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return quote, nil
}

// withQuote loads the quote and locks its order for fn.
func (s *QuoteService) withQuote(ctx context.Context, actor domain.Actor, quoteID string, fn func(ctx context.Context, t *txn, q *domain.Quote) error) (*txn, error) {
	var quote *domain.Quote
	return s.run(ctx, actor,
		func(ctx context.Context, r repository.Repos) (*domain.ServiceOrder, error) {
			q, err := r.Quotes.GetByID(ctx, quoteID)
			if err != nil {
				return nil, err
			}
			order, err := r.Orders.GetForUpdate(ctx, q.ServiceOrderID)
			if err != nil {
				return nil, err
			}
			// Re-read under the order lock.
			if quote, err = r.Quotes.GetByID(ctx, quoteID); err != nil {
				return nil, err
			}
			return order, nil
		},
		func(ctx context.Context, t *txn) error { return fn(ctx, t, quote) })
}

// ── Decision ──────────────────────────────────────────────────────────────────

// Decide approves or rejects a quote.
func (s *QuoteService) Decide(ctx context.Context, actor domain.Actor, req *DecideQuoteRequest) (*DecisionResult, error) {
	switch req.Action {
	case DecisionApprove:
		return s.Approve(ctx, actor, req.QuoteID, ApproveQuoteRequest{
			DeliveryAddress: req.DeliveryAddress,
			Observations:    req.Observations,
		})
	case DecisionReject:
		return s.Reject(ctx, actor, req.QuoteID, req.Reason)
	default:
		return nil, errors.InvalidInput("action", "action must be approve or reject")
	}
}

// Approve approves a priced quote. Sibling rejection, purchase order creation,
// the approval document and the move to AGUARDANDO_ASSINATURA happen in one
// transaction.
func (s *QuoteService) Approve(ctx context.Context, actor domain.Actor, quoteID string, req ApproveQuoteRequest) (*DecisionResult, error) {
	ctx, span := s.startSpan(ctx, "QuoteService.Approve", attribute.String("quote_id", quoteID))
	var err error
	defer func() { endSpan(span, err) }()

	var quote *domain.Quote
	var po *domain.PurchaseOrder
	var t *txn
	t, err = s.withQuote(ctx, actor, quoteID, func(ctx context.Context, t *txn, q *domain.Quote) error {
		var err error
		po, err = s.approveLocked(ctx, t, q, req)
		quote = q
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("service_order_id", t.order.ID).
		Str("quote_id", quote.ID).
		Str("purchase_order", po.Number).
		Msg("quote approved")
	return &DecisionResult{Quote: quote, Order: t.order, AuditEntryID: t.auditID, PurchaseOrderNumber: &po.Number}, nil
}

// approveLocked is shared by Approve and the transition to
// AGUARDANDO_ASSINATURA with a selected quote.
func (c *core) approveLocked(ctx context.Context, t *txn, quote *domain.Quote, req ApproveQuoteRequest) (*domain.PurchaseOrder, error) {
	from := t.order.Status
	if err := workflow.Authorize(from, t.actor.Role, domain.StatusAguardandoAssinatura); err != nil {
		return nil, err
	}
	if !quote.Status.IsPriced() {
		return nil, errors.IllegalTransition(fmt.Sprintf("quote is %s, only RECEBIDO or EM_ANALISE quotes can be approved", quote.Status))
	}
	if len(quote.Items) == 0 {
		return nil, errors.InvalidInput("items", "quote has no items")
	}
	supplier, err := t.repos.Suppliers.GetByID(ctx, quote.SupplierID)
	if err != nil {
		return nil, err
	}
	quotes, err := t.repos.Quotes.ListByServiceOrder(ctx, t.order.ID)
	if err != nil {
		return nil, err
	}

	rejected := make([]string, 0)
	for _, sib := range quotes {
		if sib.ID == quote.ID || sib.Status.IsTerminal() {
			continue
		}
		sib.Status = domain.QuoteRejeitado
		sib.RejectedAt = &t.now
		sib.RejectionReason = strPtr(rejectedBySibling)
		sib.UpdatedAt = t.now
		if err := t.repos.Quotes.Update(ctx, sib); err != nil {
			return nil, err
		}
		rejected = append(rejected, sib.ID)
	}

	quote.Status = domain.QuoteAprovado
	quote.ApprovedAt = &t.now
	quote.UpdatedAt = t.now
	if obs := trimmedOrNil(req.Observations); obs != nil {
		quote.Observations = obs
	}
	if err := t.repos.Quotes.Update(ctx, quote); err != nil {
		return nil, err
	}

	seq, err := t.repos.Sequences.Next(ctx, domain.PrefixPurchaseOrder, t.now.Year())
	if err != nil {
		return nil, err
	}
	po := &domain.PurchaseOrder{
		ID:              newID(),
		Number:          domain.FormatNumber(domain.PrefixPurchaseOrder, t.now.Year(), seq),
		ServiceOrderID:  t.order.ID,
		QuoteID:         quote.ID,
		SupplierID:      quote.SupplierID,
		Items:           domain.CloneItems(quote.Items),
		TotalValue:      quote.TotalValue,
		DeliveryAddress: trimmedOrNil(req.DeliveryAddress),
		Status:          domain.PurchaseOrderPendente,
		ApprovedAt:      t.now,
		CreatedAt:       t.now,
		UpdatedAt:       t.now,
	}
	if err := t.repos.PurchaseOrders.Create(ctx, po); err != nil {
		return nil, err
	}

	// Refresh so the document shows the sibling rejections.
	if quotes, err = t.repos.Quotes.ListByServiceOrder(ctx, t.order.ID); err != nil {
		return nil, err
	}
	att, err := c.generateApprovalDocument(ctx, t, quotes, quote.ID, po.Number)
	if err != nil {
		return nil, err
	}

	t.transition(domain.StatusAguardandoAssinatura)
	t.record(domain.ActionPurchaseApproved, map[string]any{
		"from":                string(from),
		"to":                  string(domain.StatusAguardandoAssinatura),
		"quoteId":             quote.ID,
		"supplierId":          quote.SupplierID,
		"purchaseOrderId":     po.ID,
		"purchaseOrderNumber": po.Number,
		"totalValue":          po.TotalValue.StringFixed(2),
		"rejectedQuoteIds":    rejected,
		"attachmentId":        att.ID,
	})

	body, err := renderQuoteApproved(po, supplier, t.order.Number)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to render approval e-mail")
	}
	t.email(supplier.Email, "Orçamento aprovado - "+po.Number, body)

	if err := c.notify(ctx, t, notice{
		Type:    domain.NotificationSignaturePending,
		Title:   "Pedido " + po.Number + " aguardando assinatura",
		Message: fmt.Sprintf("OS %s: orçamento de %s aprovado no valor de %s", t.order.Number, supplier.Name, po.TotalValue.StringFixed(2)),
		Roles:   []domain.Role{domain.RoleAdmin},
	}); err != nil {
		return nil, err
	}
	if err := c.notifyStakeholders(ctx, t, domain.NotificationStatusChanged,
		fmt.Sprintf("OS %s: %s", t.order.Number, statusLabel(domain.StatusAguardandoAssinatura)),
		"Orçamento aprovado, aguardando assinatura do pedido "+po.Number); err != nil {
		return nil, err
	}
	return po, nil
}

// Reject closes a quote with a reason. When no open quote remains the order
// goes back to AGUARDANDO_MATERIAL so new quotes can be solicited.
func (s *QuoteService) Reject(ctx context.Context, actor domain.Actor, quoteID, reason string) (*DecisionResult, error) {
	ctx, span := s.startSpan(ctx, "QuoteService.Reject", attribute.String("quote_id", quoteID))
	var err error
	defer func() { endSpan(span, err) }()

	if err = requireRole(actor, "reject quotes", domain.RoleAprovador, domain.RoleGestor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		err = errors.InvalidInput("reason", "a rejection reason is required")
		return nil, err
	}

	var quote *domain.Quote
	var t *txn
	t, err = s.withQuote(ctx, actor, quoteID, func(ctx context.Context, t *txn, q *domain.Quote) error {
		from := t.order.Status
		if from != domain.StatusAguardandoOrcamento && from != domain.StatusOrcamentosRecebidos {
			return errors.IllegalTransition(fmt.Sprintf("quotes cannot be rejected while the service order is %s", from))
		}
		if q.Status.IsTerminal() {
			return errors.IllegalTransition(fmt.Sprintf("quote is already %s", q.Status))
		}

		q.Status = domain.QuoteRejeitado
		q.RejectedAt = &t.now
		q.RejectionReason = &reason
		q.UpdatedAt = t.now
		if err := t.repos.Quotes.Update(ctx, q); err != nil {
			return err
		}
		quote = q

		quotes, err := t.repos.Quotes.ListByServiceOrder(ctx, t.order.ID)
		if err != nil {
			return err
		}
		remaining := 0
		for _, other := range quotes {
			if !other.Status.IsTerminal() {
				remaining++
			}
		}

		details := map[string]any{"quoteId": q.ID, "reason": reason, "remainingOpen": remaining}
		if remaining > 0 {
			t.record(domain.ActionQuoteRejected, details)
			return nil
		}

		if err := workflow.AuthorizeSystem(from, domain.StatusAguardandoMaterial); err != nil {
			return err
		}
		t.transition(domain.StatusAguardandoMaterial)
		details["from"] = string(from)
		details["to"] = string(domain.StatusAguardandoMaterial)
		t.record(domain.ActionQuoteRejected, details)
		return s.notifyStakeholders(ctx, t, domain.NotificationQuoteRejected,
			"Orçamentos rejeitados - OS "+t.order.Number,
			"Todos os orçamentos foram rejeitados. Solicite novos orçamentos.",
			domain.RoleGestor)
	})
	if err != nil {
		return nil, err
	}
	return &DecisionResult{Quote: quote, Order: t.order, AuditEntryID: t.auditID}, nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

// List returns the quotes of an order, oldest first.
func (s *QuoteService) List(ctx context.Context, actor domain.Actor, orderID string) ([]*domain.Quote, error) {
	if err := s.canSeeOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}
	return s.store.Repos().Quotes.ListByServiceOrder(ctx, orderID)
}

// GetPurchaseOrder returns the purchase order generated for an order.
func (s *QuoteService) GetPurchaseOrder(ctx context.Context, actor domain.Actor, orderID string) (*domain.PurchaseOrder, error) {
	if err := s.canSeeOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}
	return s.store.Repos().PurchaseOrders.GetByServiceOrder(ctx, orderID)
}

func (c *core) canSeeOrder(ctx context.Context, actor domain.Actor, orderID string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	order, err := c.store.Repos().Orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	return canView(actor, order)
}

// ── Delivery ──────────────────────────────────────────────────────────────────

// RecordDelivery marks a signed purchase order as delivered.
func (s *QuoteService) RecordDelivery(ctx context.Context, actor domain.Actor, purchaseOrderID string) (*domain.PurchaseOrder, error) {
	if err := requireRole(actor, "record deliveries", domain.RoleGestor, domain.RoleAdmin); err != nil {
		return nil, err
	}

	var po *domain.PurchaseOrder
	_, err := s.run(ctx, actor,
		func(ctx context.Context, r repository.Repos) (*domain.ServiceOrder, error) {
			p, err := r.PurchaseOrders.GetByID(ctx, purchaseOrderID)
			if err != nil {
				return nil, err
			}
			return r.Orders.GetForUpdate(ctx, p.ServiceOrderID)
		},
		func(ctx context.Context, t *txn) error {
			var err error
			if po, err = t.repos.PurchaseOrders.GetByID(ctx, purchaseOrderID); err != nil {
				return err
			}
			if po.Status != domain.PurchaseOrderAssinado {
				return errors.IllegalTransition(fmt.Sprintf("purchase order is %s, only ASSINADO orders can be delivered", po.Status))
			}
			po.Status = domain.PurchaseOrderEntregue
			po.DeliveredAt = &t.now
			po.UpdatedAt = t.now
			if err := t.repos.PurchaseOrders.Update(ctx, po); err != nil {
				return err
			}
			t.record(domain.ActionPurchaseDelivered, map[string]any{
				"purchaseOrderId":     po.ID,
				"purchaseOrderNumber": po.Number,
			})
			return s.notifyStakeholders(ctx, t, domain.NotificationMaterialDelivered,
				"Material entregue - OS "+t.order.Number,
				"O material do pedido "+po.Number+" foi entregue")
		})
	if err != nil {
		return nil, err
	}
	return po, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// requestedItems builds the items of a solicitation. Prices are unknown yet.
func requestedItems(in []ItemRequest) ([]domain.QuoteItem, error) {
	if len(in) == 0 {
		return nil, errors.InvalidInput("items", "at least one item is required")
	}
	items := make([]domain.QuoteItem, 0, len(in))
	for _, it := range in {
		item, err := domain.NewQuoteItem(it.Description, it.Quantity, decimal.Zero)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func pricedItems(in []ItemRequest) ([]domain.QuoteItem, error) {
	if len(in) == 0 {
		return nil, errors.InvalidInput("items", "at least one item is required")
	}
	items := make([]domain.QuoteItem, 0, len(in))
	for _, it := range in {
		item, err := domain.NewQuoteItem(it.Description, it.Quantity, it.UnitPrice)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func distinct(ids []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
