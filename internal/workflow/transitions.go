// Package workflow holds the service-order state machine: the transition
// table, the field write guards and the automatic timestamps. Everything here
// is pure; persistence, audit and notifications live in the service layer.
package workflow

import (
	"fmt"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/domain"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/errors"
)

// Transition is one row of the table.
type Transition struct {
	From  domain.Status
	To    domain.Status
	Roles []domain.Role
	// Via names the operation that owns the transition when it cannot be
	// requested directly (it carries a side effect the generic request lacks).
	Via string
}

// Operations that own a transition.
const (
	ViaQuoteSolicitation = "quote_solicitation"
	ViaSignedUpload      = "signed_document_upload"
)

var table = []Transition{
	{From: domain.StatusAberta, To: domain.StatusEmAnalise, Roles: []domain.Role{domain.RoleTecnico}},
	{From: domain.StatusEmAnalise, To: domain.StatusAguardandoMaterial, Roles: []domain.Role{domain.RoleTecnico}},
	{From: domain.StatusEmAnalise, To: domain.StatusEmExecucao, Roles: []domain.Role{domain.RoleTecnico}},
	{From: domain.StatusAguardandoMaterial, To: domain.StatusAguardandoOrcamento, Roles: []domain.Role{domain.RoleGestor, domain.RoleAdmin}, Via: ViaQuoteSolicitation},
	{From: domain.StatusAguardandoOrcamento, To: domain.StatusAguardandoAssinatura, Roles: []domain.Role{domain.RoleAprovador, domain.RoleAdmin}},
	{From: domain.StatusOrcamentosRecebidos, To: domain.StatusAguardandoAssinatura, Roles: []domain.Role{domain.RoleAprovador, domain.RoleAdmin}},
	{From: domain.StatusAguardandoAssinatura, To: domain.StatusMaterialAprovado, Roles: []domain.Role{domain.RoleAdmin}, Via: ViaSignedUpload},
	// Legacy approval without a signed document. Kept because stored orders
	// may still sit in AGUARDANDO_APROVACAO.
	{From: domain.StatusAguardandoAprovacao, To: domain.StatusMaterialAprovado, Roles: []domain.Role{domain.RoleGestor, domain.RoleAdmin}},
	{From: domain.StatusMaterialAprovado, To: domain.StatusAguardandoDeslocamento, Roles: []domain.Role{domain.RoleTecnico}},
	{From: domain.StatusAguardandoDeslocamento, To: domain.StatusEmExecucao, Roles: []domain.Role{domain.RoleTecnico}},
	{From: domain.StatusEmExecucao, To: domain.StatusFinalizada, Roles: []domain.Role{domain.RoleTecnico}},
}

// systemTable lists transitions the procurement sub-flow performs on its own.
// No actor role is consulted for them.
var systemTable = []Transition{
	{From: domain.StatusAguardandoOrcamento, To: domain.StatusOrcamentosRecebidos},
	{From: domain.StatusAguardandoOrcamento, To: domain.StatusAguardandoMaterial},
	{From: domain.StatusOrcamentosRecebidos, To: domain.StatusAguardandoMaterial},
}

// Table returns a copy of the role-gated transition table.
func Table() []Transition {
	out := make([]Transition, len(table))
	copy(out, table)
	return out
}

// Lookup finds the row for from -> to.
func Lookup(from, to domain.Status) (Transition, bool) {
	for _, t := range table {
		if t.From == from && t.To == to {
			return t, true
		}
	}
	return Transition{}, false
}

// CanTransition reports whether role may move an order from -> to.
func CanTransition(from domain.Status, role domain.Role, to domain.Status) bool {
	t, ok := Lookup(from, to)
	return ok && role.In(t.Roles...)
}

// Authorize explains why a transition is refused. ILLEGAL_TRANSITION means no
// row links from -> to; UNAUTHORIZED_ROLE means the row exists but the role is
// not listed on it.
func Authorize(from domain.Status, role domain.Role, to domain.Status) error {
	if from.IsTerminal() {
		return errors.IllegalTransition(fmt.Sprintf("service order is %s and cannot change status", from))
	}
	t, ok := Lookup(from, to)
	if !ok {
		return errors.IllegalTransition(fmt.Sprintf("transition %s -> %s is not permitted", from, to))
	}
	if !role.In(t.Roles...) {
		return errors.UnauthorizedRole(fmt.Sprintf("role %s cannot move a service order from %s to %s", role, from, to))
	}
	return nil
}

// AuthorizeRequest is Authorize for transitions asked for through the
// generic transition request. Rows owned by a dedicated operation are refused
// there, after the role check, so the caller learns which operation to use.
func AuthorizeRequest(from domain.Status, role domain.Role, to domain.Status) error {
	if err := Authorize(from, role, to); err != nil {
		return err
	}
	t, _ := Lookup(from, to)
	if t.Via != "" {
		return errors.IllegalTransition(fmt.Sprintf("transition %s -> %s is performed by %s", from, to, t.Via))
	}
	return nil
}

// AuthorizeSystem checks a transition the sub-flow performs by itself.
func AuthorizeSystem(from, to domain.Status) error {
	for _, t := range systemTable {
		if t.From == from && t.To == to {
			return nil
		}
	}
	return errors.IllegalTransition(fmt.Sprintf("automatic transition %s -> %s is not permitted", from, to))
}

// NextStatuses lists the statuses role may request from from.
func NextStatuses(from domain.Status, role domain.Role) []domain.Status {
	var out []domain.Status
	for _, t := range table {
		if t.From == from && role.In(t.Roles...) {
			out = append(out, t.To)
		}
	}
	return out
}
