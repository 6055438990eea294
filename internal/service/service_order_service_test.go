package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/domain"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/errors"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/repository"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/workflow"
)

func TestCreateServiceOrder(t *testing.T) {
	h := newHarness(t)

	o := h.createOrder(t)
	require.Equal(t, "OS-2025-001", o.Number)
	require.Equal(t, domain.StatusAberta, o.Status)
	require.Equal(t, funcionario.ID, o.CreatedByID)
	require.Equal(t, []domain.AuditAction{domain.ActionOSCreated}, h.auditActions(t, o.ID))

	second := h.createOrder(t)
	require.Equal(t, "OS-2025-002", second.Number)

	// Every technician hears about new orders; the requester does not.
	for _, id := range []string{tecnico.ID, tecnico2.ID} {
		ns := h.notificationsFor(t, id)
		require.Len(t, ns, 2)
		require.Equal(t, domain.NotificationCreated, ns[0].Type)
		require.Equal(t, "https://portal.moncoes.test/os/"+second.ID, *ns[0].ActionURL)
	}
	require.Empty(t, h.notificationsFor(t, funcionario.ID))
	require.Empty(t, h.notificationsFor(t, "u-tec-off"))
	require.Len(t, h.publishedEvents(), 2)
	require.Equal(t, "os_created", h.publishedEvents()[0].EventType)
}

func TestCreateServiceOrderValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		actor domain.Actor
		req   CreateServiceOrderRequest
		code  errors.Code
	}{
		{"missing title", funcionario, CreateServiceOrderRequest{Description: "d", Category: domain.CategoryRede}, errors.ErrCodeValidation},
		{"missing description", funcionario, CreateServiceOrderRequest{Title: "t", Category: domain.CategoryRede}, errors.ErrCodeValidation},
		{"bad category", funcionario, CreateServiceOrderRequest{Title: "t", Description: "d", Category: "MOVEIS"}, errors.ErrCodeValidation},
		{"bad priority", funcionario, CreateServiceOrderRequest{Title: "t", Description: "d", Category: domain.CategoryRede, Priority: "MAXIMA"}, errors.ErrCodeValidation},
		{"anonymous", domain.Actor{}, CreateServiceOrderRequest{Title: "t", Description: "d", Category: domain.CategoryRede}, errors.ErrCodeUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.Orders.Create(ctx, tt.actor, &tt.req)
			requireCode(t, err, tt.code)
		})
	}

	o, err := h.svc.Orders.Create(ctx, funcionario, &CreateServiceOrderRequest{Title: "t", Description: "d", Category: domain.CategoryRede})
	require.NoError(t, err)
	require.Equal(t, domain.PriorityNormal, o.Priority)
	require.Equal(t, "OS-2025-001", o.Number)
}

func TestConcurrentCreatesNeverShareNumber(t *testing.T) {
	h := newHarness(t)
	const n = 25

	var wg sync.WaitGroup
	numbers := make(chan string, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, err := h.svc.Orders.Create(context.Background(), funcionario, &CreateServiceOrderRequest{
				Title: "Sem rede", Description: "Sem acesso à rede", Category: domain.CategoryRede,
			})
			if err != nil {
				errs <- err
				return
			}
			numbers <- o.Number
		}()
	}
	wg.Wait()
	close(numbers)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	seen := map[string]bool{}
	for num := range numbers {
		require.False(t, seen[num], "duplicate number %s", num)
		seen[num] = true
	}
	require.Len(t, seen, n)
	for i := 1; i <= n; i++ {
		require.True(t, seen[fmt.Sprintf("OS-2025-%03d", i)])
	}
}

func TestConcurrentTransitionsFromSameStatus(t *testing.T) {
	h := newHarness(t)
	o := h.createOrder(t)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, actor := range []domain.Actor{tecnico, tecnico2} {
		wg.Add(1)
		go func(actor domain.Actor) {
			defer wg.Done()
			_, err := h.svc.Orders.Transition(context.Background(), actor, &TransitionRequest{
				OrderID: o.ID, TargetStatus: domain.StatusEmAnalise,
			})
			errs <- err
		}(actor)
	}
	wg.Wait()
	close(errs)

	var succeeded, refused int
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		requireCode(t, err, errors.ErrCodeIllegalTransition)
		refused++
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, refused)

	got := h.order(t, o.ID)
	require.Equal(t, domain.StatusEmAnalise, got.Status)
	require.Contains(t, []string{tecnico.ID, tecnico2.ID}, *got.AssignedToID)
	require.Equal(t, []domain.AuditAction{domain.ActionOSCreated, domain.ActionOSUpdated}, h.auditActions(t, o.ID))
}

func TestStartAnalysis(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.createOrder(t)

	res := h.transition(t, tecnico, o.ID, domain.StatusEmAnalise, TransitionPayload{})
	require.Equal(t, domain.StatusEmAnalise, res.NewStatus)
	require.NotEmpty(t, res.AuditEntryID)
	require.Nil(t, res.PurchaseOrderNumber)

	got := h.order(t, o.ID)
	require.Equal(t, domain.StatusEmAnalise, got.Status)
	require.Equal(t, tecnico.ID, *got.AssignedToID)
	require.NotNil(t, got.AssignedAt)
	require.Equal(t, []domain.AuditAction{domain.ActionOSCreated, domain.ActionOSUpdated}, h.auditActions(t, o.ID))

	entries, err := h.store.Repos().Audit.ListByServiceOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, res.AuditEntryID, entries[1].ID)
	require.Equal(t, "ABERTA", entries[1].Details["from"])
	require.Equal(t, "EM_ANALISE", entries[1].Details["to"])

	_, err = h.svc.Quotes.GetPurchaseOrder(ctx, tecnico, o.ID)
	requireCode(t, err, errors.ErrCodeNotFound)

	// The requester hears about it, the acting technician does not.
	ns := h.notificationsFor(t, funcionario.ID)
	require.Len(t, ns, 1)
	require.Equal(t, domain.NotificationStatusChanged, ns[0].Type)
}

func TestRequireMaterialNeedsDescription(t *testing.T) {
	h := newHarness(t)
	o := h.createOrder(t)
	h.transition(t, tecnico, o.ID, domain.StatusEmAnalise, TransitionPayload{})
	before := h.auditActions(t, o.ID)

	p := materialPayload()
	p.MaterialDescription = strPtrT("")
	_, err := h.svc.Orders.Transition(context.Background(), tecnico, &TransitionRequest{
		OrderID: o.ID, TargetStatus: domain.StatusAguardandoMaterial, Payload: p,
	})
	requireCode(t, err, errors.ErrCodeValidation)

	got := h.order(t, o.ID)
	require.Equal(t, domain.StatusEmAnalise, got.Status)
	require.Nil(t, got.MaterialJustification)
	require.False(t, got.RequiresMaterial)
	require.Equal(t, before, h.auditActions(t, o.ID))
}

func TestRequireMaterial(t *testing.T) {
	h := newHarness(t)
	o := h.awaitingMaterial(t)

	require.Equal(t, domain.StatusAguardandoMaterial, o.Status)
	require.True(t, o.RequiresMaterial)
	require.Equal(t, "Fonte ATX 500W", *o.MaterialDescription)
	actions := h.auditActions(t, o.ID)
	require.Equal(t, domain.ActionMaterialRequested, actions[len(actions)-1])

	ns := h.notificationsFor(t, gestor.ID)
	require.Len(t, ns, 1)
	require.Equal(t, domain.NotificationMaterialRequested, ns[0].Type)
}

func TestEveryUnlistedTransitionIsRefused(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i, from := range domain.Statuses {
		order := h.seed(t, fmt.Sprintf("%03d", i), from)
		for _, role := range domain.Roles {
			actor := domain.Actor{ID: "actor-" + string(role), Role: role}
			for _, to := range domain.Statuses {
				row, listed := workflow.Lookup(from, to)
				if listed && role.In(row.Roles...) && row.Via == "" && !from.IsTerminal() {
					continue
				}
				_, err := h.svc.Orders.Transition(ctx, actor, &TransitionRequest{OrderID: order.ID, TargetStatus: to})
				require.Error(t, err, "%s %s -> %s", role, from, to)
				code := errors.CodeOf(err)
				require.Contains(t,
					[]errors.Code{errors.ErrCodeIllegalTransition, errors.ErrCodeUnauthorizedRole},
					code, "%s %s -> %s returned %v", role, from, to, err)
			}
		}
		require.Equal(t, from, h.order(t, order.ID).Status)
		require.Empty(t, h.auditActions(t, order.ID))
	}
}

func TestOwnedTransitionsPointToTheirOperation(t *testing.T) {
	h := newHarness(t)
	o := h.awaitingMaterial(t)

	_, err := h.svc.Orders.Transition(context.Background(), gestor, &TransitionRequest{
		OrderID: o.ID, TargetStatus: domain.StatusAguardandoOrcamento,
	})
	requireCode(t, err, errors.ErrCodeIllegalTransition)
	require.Contains(t, err.Error(), workflow.ViaQuoteSolicitation)
}

func TestStartedAtIsSetOnce(t *testing.T) {
	h := newHarness(t)
	o := h.createOrder(t)
	h.transition(t, tecnico, o.ID, domain.StatusEmAnalise, TransitionPayload{})

	h.now = h.now.Add(time.Hour)
	started := h.now
	h.transition(t, tecnico, o.ID, domain.StatusEmExecucao, TransitionPayload{})
	require.True(t, started.Equal(*h.order(t, o.ID).StartedAt))

	h.now = h.now.Add(2 * time.Hour)
	_, err := h.svc.Orders.Update(context.Background(), tecnico, o.ID, workflow.FieldUpdate{Diagnosis: strPtrT("Memória RAM com defeito")})
	require.NoError(t, err)

	h.now = h.now.Add(time.Hour)
	finished := h.now
	h.transition(t, tecnico, o.ID, domain.StatusFinalizada, TransitionPayload{FieldUpdate: workflow.FieldUpdate{Solution: strPtrT("Troca do pente de memória")}})

	got := h.order(t, o.ID)
	require.Equal(t, domain.StatusFinalizada, got.Status)
	require.True(t, started.Equal(*got.StartedAt))
	require.True(t, finished.Equal(*got.CompletedAt))
	require.Equal(t, "Troca do pente de memória", *got.Solution)

	_, err = h.svc.Orders.Update(context.Background(), tecnico, o.ID, workflow.FieldUpdate{Observations: strPtrT("depois")})
	requireCode(t, err, errors.ErrCodeIllegalTransition)
}

func TestFuncionarioCannotWriteDiagnosis(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.createOrder(t)

	_, err := h.svc.Orders.Update(ctx, funcionario, o.ID, workflow.FieldUpdate{Diagnosis: strPtrT("acho que é a fonte")})
	requireCode(t, err, errors.ErrCodeUnauthorizedRole)
	require.Nil(t, h.order(t, o.ID).Diagnosis)

	_, err = h.svc.Orders.Update(ctx, funcionario, o.ID, workflow.FieldUpdate{Diagnosis: strPtrT("   ")})
	requireCode(t, err, errors.ErrCodeUnauthorizedRole)
	require.Equal(t, []domain.AuditAction{domain.ActionOSCreated}, h.auditActions(t, o.ID))

	// The creator may still write observations.
	got, err := h.svc.Orders.Update(ctx, funcionario, o.ID, workflow.FieldUpdate{Observations: strPtrT("Urgente, atendimento ao público")})
	require.NoError(t, err)
	require.Equal(t, "Urgente, atendimento ao público", *got.Observations)
}

func TestUpdateIsAllOrNothing(t *testing.T) {
	h := newHarness(t)
	o := h.createOrder(t)

	_, err := h.svc.Orders.Update(context.Background(), gestor, o.ID, workflow.FieldUpdate{
		Observations: strPtrT("verificar"),
		Diagnosis:    strPtrT("fonte"),
	})
	requireCode(t, err, errors.ErrCodeUnauthorizedRole)

	got := h.order(t, o.ID)
	require.Nil(t, got.Observations)
	require.Nil(t, got.Diagnosis)
	require.Equal(t, []domain.AuditAction{domain.ActionOSCreated}, h.auditActions(t, o.ID))
}

func TestUpdateWithoutChangesRecordsNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.createOrder(t)

	_, err := h.svc.Orders.Update(ctx, tecnico, o.ID, workflow.FieldUpdate{Diagnosis: strPtrT("Fonte queimada")})
	require.NoError(t, err)
	version := h.order(t, o.ID).Version

	got, err := h.svc.Orders.Update(ctx, tecnico, o.ID, workflow.FieldUpdate{Diagnosis: strPtrT("  Fonte queimada "), Solution: strPtrT("   ")})
	require.NoError(t, err)
	require.Equal(t, "Fonte queimada", *got.Diagnosis)
	require.Equal(t, version, h.order(t, o.ID).Version)
	require.Equal(t, []domain.AuditAction{domain.ActionOSCreated, domain.ActionOSUpdated}, h.auditActions(t, o.ID))
}

func TestAssign(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.createOrder(t)

	got, err := h.svc.Orders.Assign(ctx, gestor, o.ID, tecnico.ID)
	require.NoError(t, err)
	require.Equal(t, tecnico.ID, *got.AssignedToID)
	assignedAt := *got.AssignedAt

	h.now = h.now.Add(time.Hour)
	got, err = h.svc.Orders.Assign(ctx, tecnico2, o.ID, tecnico2.ID)
	require.NoError(t, err)
	require.Equal(t, tecnico2.ID, *got.AssignedToID)
	require.True(t, assignedAt.Equal(*got.AssignedAt))

	tests := []struct {
		name  string
		actor domain.Actor
		tech  string
		code  errors.Code
	}{
		{"technician assigning someone else", tecnico, tecnico2.ID, errors.ErrCodeUnauthorizedRole},
		{"requester", funcionario, tecnico.ID, errors.ErrCodeUnauthorizedRole},
		{"approver", aprovador, tecnico.ID, errors.ErrCodeUnauthorizedRole},
		{"non technician", gestor, aprovador.ID, errors.ErrCodeValidation},
		{"inactive technician", admin, "u-tec-off", errors.ErrCodeValidation},
		{"same technician", admin, tecnico2.ID, errors.ErrCodeValidation},
		{"unknown user", admin, "ghost", errors.ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.Orders.Assign(ctx, tt.actor, o.ID, tt.tech)
			requireCode(t, err, tt.code)
		})
	}

	require.Equal(t,
		[]domain.AuditAction{domain.ActionOSCreated, domain.ActionOSAssigned, domain.ActionOSAssigned},
		h.auditActions(t, o.ID))
}

func TestFuncionarioSeesOnlyOwnOrders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mine := h.createOrder(t)
	other, err := h.svc.Orders.Create(ctx, funcionario2, &CreateServiceOrderRequest{
		Title: "Telefone mudo", Description: "Ramal 204 sem linha", Category: domain.CategoryTelefonia,
	})
	require.NoError(t, err)

	_, err = h.svc.Orders.Get(ctx, funcionario, other.ID)
	requireCode(t, err, errors.ErrCodeUnauthorizedRole)
	_, err = h.svc.Orders.AuditTrail(ctx, funcionario, other.ID)
	requireCode(t, err, errors.ErrCodeUnauthorizedRole)

	list, total, err := h.svc.Orders.List(ctx, funcionario, repository.ServiceOrderFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, mine.ID, list[0].ID)

	_, total, err = h.svc.Orders.List(ctx, tecnico, repository.ServiceOrderFilter{})
	require.NoError(t, err)
	require.Equal(t, 2, total)

	bad := domain.Status("PERDIDA")
	_, _, err = h.svc.Orders.List(ctx, tecnico, repository.ServiceOrderFilter{Status: &bad})
	requireCode(t, err, errors.ErrCodeValidation)
}

func TestLegacyMaterialApproval(t *testing.T) {
	h := newHarness(t)
	o := h.seed(t, "legacy", domain.StatusAguardandoAprovacao)

	_, err := h.svc.Orders.Transition(context.Background(), aprovador, &TransitionRequest{OrderID: o.ID, TargetStatus: domain.StatusMaterialAprovado})
	requireCode(t, err, errors.ErrCodeUnauthorizedRole)

	res := h.transition(t, gestor, o.ID, domain.StatusMaterialAprovado, TransitionPayload{})
	require.Equal(t, domain.StatusMaterialAprovado, res.NewStatus)
	require.Equal(t, []domain.AuditAction{domain.ActionMaterialApproved}, h.auditActions(t, o.ID))
}

func TestAllowedTransitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.createOrder(t)

	next, err := h.svc.Orders.AllowedTransitions(ctx, tecnico, o.ID)
	require.NoError(t, err)
	require.Equal(t, []domain.Status{domain.StatusEmAnalise}, next)

	next, err = h.svc.Orders.AllowedTransitions(ctx, gestor, o.ID)
	require.NoError(t, err)
	require.Empty(t, next)

	m := h.awaitingMaterial(t)
	next, err = h.svc.Orders.AllowedTransitions(ctx, gestor, m.ID)
	require.NoError(t, err)
	require.Empty(t, next)
}

func TestSelectedQuoteOnlyWhenSendingForSignature(t *testing.T) {
	h := newHarness(t)
	o := h.createOrder(t)

	_, err := h.svc.Orders.Transition(context.Background(), tecnico, &TransitionRequest{
		OrderID:      o.ID,
		TargetStatus: domain.StatusEmAnalise,
		Payload:      TransitionPayload{SelectedQuoteID: strPtrT("q1")},
	})
	requireCode(t, err, errors.ErrCodeValidation)
	require.Equal(t, domain.StatusAberta, h.order(t, o.ID).Status)
}

func TestTransitionRequiresKnownActor(t *testing.T) {
	h := newHarness(t)
	o := h.createOrder(t)

	_, err := h.svc.Orders.Transition(context.Background(), domain.Actor{ID: "x", Role: "CHEFE"}, &TransitionRequest{
		OrderID: o.ID, TargetStatus: domain.StatusEmAnalise,
	})
	requireCode(t, err, errors.ErrCodeUnauthenticated)

	_, err = h.svc.Orders.Transition(context.Background(), tecnico, &TransitionRequest{OrderID: o.ID, TargetStatus: "PERDIDA"})
	requireCode(t, err, errors.ErrCodeValidation)

	_, err = h.svc.Orders.Transition(context.Background(), tecnico, &TransitionRequest{OrderID: "missing", TargetStatus: domain.StatusEmAnalise})
	requireCode(t, err, errors.ErrCodeNotFound)
}
