package service

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/domain"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/errors"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/repository"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/workflow"
)

// ServiceOrderService handles the service-order lifecycle: creation, field
// updates, assignment and every status transition requested directly.
type ServiceOrderService struct {
	*core
}

// CreateServiceOrderRequest represents a create service order request
type CreateServiceOrderRequest struct {
	Title       string
	Description string
	Category    domain.Category
	Priority    domain.Priority
	Location    *string
	Department  *string
}

// TransitionPayload carries the optional data sent with a transition.
type TransitionPayload struct {
	workflow.FieldUpdate
	SelectedQuoteID *string
	DeliveryAddress *string
}

// TransitionRequest represents a status change request
type TransitionRequest struct {
	OrderID      string
	TargetStatus domain.Status
	Payload      TransitionPayload
}

// TransitionResult is returned by every operation that moves an order.
type TransitionResult struct {
	Order               *domain.ServiceOrder `json:"order"`
	NewStatus           domain.Status        `json:"newStatus"`
	AuditEntryID        string               `json:"auditEntryId"`
	PurchaseOrderNumber *string              `json:"purchaseOrderNumber,omitempty"`
}

func resultOf(t *txn) *TransitionResult {
	return &TransitionResult{Order: t.order, NewStatus: t.order.Status, AuditEntryID: t.auditID}
}

// ── Creation ──────────────────────────────────────────────────────────────────

// Create opens a new order in ABERTA with the next OS number of the year.
func (s *ServiceOrderService) Create(ctx context.Context, actor domain.Actor, req *CreateServiceOrderRequest) (*domain.ServiceOrder, error) {
	ctx, span := s.startSpan(ctx, "ServiceOrderService.Create")
	var err error
	defer func() { endSpan(span, err) }()

	title := strings.TrimSpace(req.Title)
	if title == "" {
		err = errors.InvalidInput("title", "title is required")
		return nil, err
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		err = errors.InvalidInput("description", "description is required")
		return nil, err
	}
	if !req.Category.IsValid() {
		err = errors.InvalidInput("category", fmt.Sprintf("invalid category %q", req.Category))
		return nil, err
	}
	priority := req.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}
	if !priority.IsValid() {
		err = errors.InvalidInput("priority", fmt.Sprintf("invalid priority %q", req.Priority))
		return nil, err
	}

	now := s.now()
	order := &domain.ServiceOrder{
		ID:          newID(),
		Title:       title,
		Description: description,
		Category:    req.Category,
		Priority:    priority,
		Location:    trimmedOrNil(req.Location),
		Department:  trimmedOrNil(req.Department),
		CreatedByID: actor.ID,
		Status:      domain.StatusAberta,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var t *txn
	t, err = s.run(ctx, actor,
		func(context.Context, repository.Repos) (*domain.ServiceOrder, error) { return order, nil },
		func(ctx context.Context, t *txn) error {
			seq, err := t.repos.Sequences.Next(ctx, domain.PrefixServiceOrder, now.Year())
			if err != nil {
				return err
			}
			t.order.Number = domain.FormatNumber(domain.PrefixServiceOrder, now.Year(), seq)
			t.created = true
			t.record(domain.ActionOSCreated, map[string]any{
				"number":   t.order.Number,
				"title":    t.order.Title,
				"category": string(t.order.Category),
				"priority": string(t.order.Priority),
			})
			return s.notify(ctx, t, notice{
				Type:    domain.NotificationCreated,
				Title:   "Nova OS " + t.order.Number,
				Message: t.order.Title,
				Roles:   []domain.Role{domain.RoleTecnico},
			})
		})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("service_order_id", t.order.ID).
		Str("number", t.order.Number).
		Str("actor_id", actor.ID).
		Msg("service order created")
	return t.order, nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

// Get returns one order. FUNCIONARIO users only see their own orders.
func (s *ServiceOrderService) Get(ctx context.Context, actor domain.Actor, id string) (*domain.ServiceOrder, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	order, err := s.store.Repos().Orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canView(actor, order); err != nil {
		return nil, err
	}
	return order, nil
}

// List returns a page of orders and the total count.
func (s *ServiceOrderService) List(ctx context.Context, actor domain.Actor, filter repository.ServiceOrderFilter) ([]*domain.ServiceOrder, int, error) {
	if err := requireActor(actor); err != nil {
		return nil, 0, err
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, 0, errors.InvalidInput("status", fmt.Sprintf("invalid status %q", *filter.Status))
	}
	if actor.Role == domain.RoleFuncionario {
		filter.CreatedByID = &actor.ID
	}
	return s.store.Repos().Orders.List(ctx, filter)
}

// AuditTrail returns the order's audit rows, oldest first.
func (s *ServiceOrderService) AuditTrail(ctx context.Context, actor domain.Actor, id string) ([]*domain.AuditEntry, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.store.Repos().Audit.ListByServiceOrder(ctx, id)
}

// AllowedTransitions lists the statuses the actor may request next.
func (s *ServiceOrderService) AllowedTransitions(ctx context.Context, actor domain.Actor, id string) ([]domain.Status, error) {
	order, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	var out []domain.Status
	for _, to := range workflow.NextStatuses(order.Status, actor.Role) {
		if workflow.AuthorizeRequest(order.Status, actor.Role, to) == nil {
			out = append(out, to)
		}
	}
	return out, nil
}

func canView(actor domain.Actor, order *domain.ServiceOrder) error {
	if actor.Role == domain.RoleFuncionario && order.CreatedByID != actor.ID {
		return errors.UnauthorizedRole("FUNCIONARIO can only see service orders they opened")
	}
	return nil
}

// ── Field updates ─────────────────────────────────────────────────────────────

// Update writes order fields without changing status. Every field guard is
// checked before anything is written. An update that changes nothing records
// nothing.
func (s *ServiceOrderService) Update(ctx context.Context, actor domain.Actor, id string, u workflow.FieldUpdate) (*domain.ServiceOrder, error) {
	ctx, span := s.startSpan(ctx, "ServiceOrderService.Update", attribute.String("service_order_id", id))
	var err error
	defer func() { endSpan(span, err) }()

	var unchanged *domain.ServiceOrder
	var t *txn
	t, err = s.withOrder(ctx, actor, id, func(ctx context.Context, t *txn) error {
		if t.order.Status.IsTerminal() {
			return errors.IllegalTransition(fmt.Sprintf("service order is %s and can no longer be edited", t.order.Status))
		}
		if err := workflow.CheckFieldWrites(t.order, actor, u); err != nil {
			return err
		}

		changed := workflow.ApplyFields(t.order, u)
		if len(changed) == 0 {
			unchanged = t.order
			return errNoChange
		}
		t.dirty = true
		t.record(domain.ActionOSUpdated, map[string]any{"fields": changed})
		return s.notifyStakeholders(ctx, t, domain.NotificationUpdated,
			"OS "+t.order.Number+" atualizada",
			"Campos alterados: "+strings.Join(changed, ", "))
	})
	if unchanged != nil && errors.Is(err, errNoChange) {
		err = nil
		return unchanged, nil
	}
	if err != nil {
		return nil, err
	}
	return t.order, nil
}

// errNoChange aborts a transaction that has nothing to write.
var errNoChange = errors.New(errors.ErrCodeInternal, "no change")

// ── Assignment ────────────────────────────────────────────────────────────────

// Assign sets the responsible technician. GESTOR and ADMIN assign anyone
// holding the TECNICO role; a TECNICO may only take the order for themself.
func (s *ServiceOrderService) Assign(ctx context.Context, actor domain.Actor, id, technicianID string) (*domain.ServiceOrder, error) {
	ctx, span := s.startSpan(ctx, "ServiceOrderService.Assign", attribute.String("service_order_id", id))
	var err error
	defer func() { endSpan(span, err) }()

	if technicianID == "" {
		err = errors.InvalidInput("technicianId", "technician is required")
		return nil, err
	}
	switch actor.Role {
	case domain.RoleGestor, domain.RoleAdmin:
	case domain.RoleTecnico:
		if technicianID != actor.ID {
			err = errors.UnauthorizedRole("a technician can only assign a service order to themself")
			return nil, err
		}
	default:
		err = errors.UnauthorizedRole("role " + string(actor.Role) + " cannot assign service orders")
		return nil, err
	}

	var t *txn
	t, err = s.withOrder(ctx, actor, id, func(ctx context.Context, t *txn) error {
		if t.order.Status.IsTerminal() {
			return errors.IllegalTransition(fmt.Sprintf("service order is %s and cannot be reassigned", t.order.Status))
		}
		tech, err := t.repos.Users.GetByID(ctx, technicianID)
		if err != nil {
			return err
		}
		if tech.Role != domain.RoleTecnico || !tech.Active {
			return errors.InvalidInput("technicianId", "assignee must be an active TECNICO")
		}

		var previous any
		if t.order.AssignedToID != nil {
			previous = *t.order.AssignedToID
		}
		if !workflow.Assign(t.order, technicianID, t.now) {
			return errors.InvalidInput("technicianId", "service order is already assigned to this technician")
		}
		t.dirty = true
		t.record(domain.ActionOSAssigned, map[string]any{"from": previous, "to": technicianID})
		return s.notifyStakeholders(ctx, t, domain.NotificationAssigned,
			"OS "+t.order.Number+" atribuída",
			"Técnico responsável: "+tech.Name)
	})
	if err != nil {
		return nil, err
	}
	return t.order, nil
}

// ── Transitions ───────────────────────────────────────────────────────────────

// Transition applies a requested status change. Transitions owned by the
// procurement sub-flow are refused here and must go through QuoteService or
// DocumentService.
func (s *ServiceOrderService) Transition(ctx context.Context, actor domain.Actor, req *TransitionRequest) (*TransitionResult, error) {
	ctx, span := s.startSpan(ctx, "ServiceOrderService.Transition",
		attribute.String("service_order_id", req.OrderID),
		attribute.String("target_status", string(req.TargetStatus)),
		attribute.String("actor_role", string(actor.Role)),
	)
	var err error
	defer func() { endSpan(span, err) }()

	if !req.TargetStatus.IsValid() {
		err = errors.InvalidInput("targetStatus", fmt.Sprintf("invalid status %q", req.TargetStatus))
		return nil, err
	}

	var poNumber *string
	var t *txn
	t, err = s.withOrder(ctx, actor, req.OrderID, func(ctx context.Context, t *txn) error {
		n, err := s.applyTransition(ctx, t, req.TargetStatus, req.Payload)
		poNumber = n
		return err
	})
	if err != nil {
		s.log.Debug().Err(err).
			Str("service_order_id", req.OrderID).
			Str("target_status", string(req.TargetStatus)).
			Msg("transition refused")
		return nil, err
	}

	s.log.Info().
		Str("service_order_id", t.order.ID).
		Str("from", string(t.before)).
		Str("to", string(t.order.Status)).
		Str("actor_id", actor.ID).
		Msg("service order transitioned")

	res := resultOf(t)
	res.PurchaseOrderNumber = poNumber
	return res, nil
}

// applyTransition validates everything, then mutates. It owns the audit row
// and the notifications of a requested transition.
func (s *ServiceOrderService) applyTransition(ctx context.Context, t *txn, to domain.Status, p TransitionPayload) (*string, error) {
	from := t.order.Status
	if err := workflow.AuthorizeRequest(from, t.actor.Role, to); err != nil {
		return nil, err
	}
	if err := workflow.CheckFieldWrites(t.order, t.actor, p.FieldUpdate); err != nil {
		return nil, err
	}
	if to == domain.StatusAguardandoMaterial {
		if err := workflow.RequireMaterialFields(p.FieldUpdate); err != nil {
			return nil, err
		}
	}
	if p.SelectedQuoteID != nil && to != domain.StatusAguardandoAssinatura {
		return nil, errors.InvalidInput("selectedQuoteId", "a quote can only be selected when sending the order for signature")
	}

	if to == domain.StatusAguardandoAssinatura {
		return s.sendForSignature(ctx, t, p)
	}

	changed := workflow.ApplyFields(t.order, p.FieldUpdate)
	if from == domain.StatusAberta && to == domain.StatusEmAnalise && t.order.AssignedToID == nil {
		workflow.Assign(t.order, t.actor.ID, t.now)
	}
	if to == domain.StatusAguardandoMaterial {
		t.order.RequiresMaterial = true
	}
	t.transition(to)

	details := map[string]any{"from": string(from), "to": string(to)}
	if len(changed) > 0 {
		details["fields"] = changed
	}

	title := fmt.Sprintf("OS %s: %s", t.order.Number, statusLabel(to))
	switch to {
	case domain.StatusAguardandoMaterial:
		details["materialDescription"] = *t.order.MaterialDescription
		t.record(domain.ActionMaterialRequested, details)
		return nil, s.notifyStakeholders(ctx, t, domain.NotificationMaterialRequested, title,
			"Material solicitado: "+*t.order.MaterialDescription, domain.RoleGestor)
	case domain.StatusMaterialAprovado:
		t.record(domain.ActionMaterialApproved, details)
		return nil, s.notifyStakeholders(ctx, t, domain.NotificationMaterialApproved, title,
			"Material aprovado sem assinatura digital")
	default:
		t.record(domain.ActionOSUpdated, details)
		return nil, s.notifyStakeholders(ctx, t, domain.NotificationStatusChanged, title,
			fmt.Sprintf("Status alterado de %s para %s", statusLabel(from), statusLabel(to)))
	}
}

// sendForSignature handles AGUARDANDO_ORCAMENTO|ORCAMENTOS_RECEBIDOS ->
// AGUARDANDO_ASSINATURA. It is always a quote approval, so a purchase order
// exists before the signed document is uploaded. Documents.GenerateApprovalDocument
// renders the document without moving the order.
func (s *ServiceOrderService) sendForSignature(ctx context.Context, t *txn, p TransitionPayload) (*string, error) {
	if p.SelectedQuoteID == nil || strings.TrimSpace(*p.SelectedQuoteID) == "" {
		return nil, errors.InvalidInput("selectedQuoteId", "a RECEBIDO or EM_ANALISE quote must be selected to send the service order for signature")
	}
	quote, err := t.repos.Quotes.GetByID(ctx, *p.SelectedQuoteID)
	if err != nil {
		return nil, err
	}
	if quote.ServiceOrderID != t.order.ID {
		return nil, errors.InvalidInput("selectedQuoteId", "quote belongs to another service order")
	}
	changed := workflow.ApplyFields(t.order, p.FieldUpdate)
	po, err := s.approveLocked(ctx, t, quote, ApproveQuoteRequest{DeliveryAddress: p.DeliveryAddress})
	if err != nil {
		return nil, err
	}
	if len(changed) > 0 {
		t.details["fields"] = changed
	}
	return &po.Number, nil
}

func statusLabel(s domain.Status) string {
	switch s {
	case domain.StatusAberta:
		return "Aberta"
	case domain.StatusEmAnalise:
		return "Em análise"
	case domain.StatusAguardandoMaterial:
		return "Aguardando material"
	case domain.StatusAguardandoOrcamento:
		return "Aguardando orçamento"
	case domain.StatusOrcamentosRecebidos:
		return "Orçamentos recebidos"
	case domain.StatusAguardandoAssinatura:
		return "Aguardando assinatura"
	case domain.StatusAguardandoAprovacao:
		return "Aguardando aprovação"
	case domain.StatusMaterialAprovado:
		return "Material aprovado"
	case domain.StatusAguardandoDeslocamento:
		return "Aguardando deslocamento"
	case domain.StatusEmExecucao:
		return "Em execução"
	case domain.StatusFinalizada:
		return "Finalizada"
	case domain.StatusCancelada:
		return "Cancelada"
	}
	return string(s)
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
