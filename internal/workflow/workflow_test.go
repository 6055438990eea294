package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/domain"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/errors"
)

func strPtr(s string) *string { return &s }

func TestAuthorizeEveryTriple(t *testing.T) {
	allowed := map[[3]string]bool{}
	for _, tr := range Table() {
		for _, role := range tr.Roles {
			allowed[[3]string{string(tr.From), string(role), string(tr.To)}] = true
		}
	}

	for _, from := range domain.Statuses {
		for _, role := range domain.Roles {
			for _, to := range domain.Statuses {
				key := [3]string{string(from), string(role), string(to)}
				err := Authorize(from, role, to)

				if allowed[key] {
					require.NoError(t, err, "%v should be allowed", key)
					require.True(t, CanTransition(from, role, to))
					continue
				}

				require.Error(t, err, "%v should be refused", key)
				require.False(t, CanTransition(from, role, to))
				code := errors.CodeOf(err)
				require.Contains(t,
					[]errors.Code{errors.ErrCodeIllegalTransition, errors.ErrCodeUnauthorizedRole},
					code, "%v returned %s", key, code)
			}
		}
	}
}

func TestAuthorizeDistinguishesRoleFromState(t *testing.T) {
	// Row exists, wrong role.
	err := Authorize(domain.StatusAberta, domain.RoleFuncionario, domain.StatusEmAnalise)
	require.True(t, errors.HasCode(err, errors.ErrCodeUnauthorizedRole))

	// No row at all.
	err = Authorize(domain.StatusAberta, domain.RoleTecnico, domain.StatusFinalizada)
	require.True(t, errors.HasCode(err, errors.ErrCodeIllegalTransition))

	// Terminal source.
	err = Authorize(domain.StatusFinalizada, domain.RoleAdmin, domain.StatusEmExecucao)
	require.True(t, errors.HasCode(err, errors.ErrCodeIllegalTransition))

	// Signature step is ADMIN only.
	err = Authorize(domain.StatusAguardandoAssinatura, domain.RoleAprovador, domain.StatusMaterialAprovado)
	require.True(t, errors.HasCode(err, errors.ErrCodeUnauthorizedRole))
}

func TestAuthorizeRequestRefusesOperationOwnedRows(t *testing.T) {
	err := AuthorizeRequest(domain.StatusAguardandoMaterial, domain.RoleGestor, domain.StatusAguardandoOrcamento)
	require.True(t, errors.HasCode(err, errors.ErrCodeIllegalTransition))

	err = AuthorizeRequest(domain.StatusAguardandoAssinatura, domain.RoleAdmin, domain.StatusMaterialAprovado)
	require.True(t, errors.HasCode(err, errors.ErrCodeIllegalTransition))

	// Role is still checked first.
	err = AuthorizeRequest(domain.StatusAguardandoAssinatura, domain.RoleTecnico, domain.StatusMaterialAprovado)
	require.True(t, errors.HasCode(err, errors.ErrCodeUnauthorizedRole))

	require.NoError(t, AuthorizeRequest(domain.StatusEmAnalise, domain.RoleTecnico, domain.StatusEmExecucao))
}

func TestAuthorizeSystem(t *testing.T) {
	require.NoError(t, AuthorizeSystem(domain.StatusAguardandoOrcamento, domain.StatusOrcamentosRecebidos))
	require.NoError(t, AuthorizeSystem(domain.StatusOrcamentosRecebidos, domain.StatusAguardandoMaterial))
	require.Error(t, AuthorizeSystem(domain.StatusAberta, domain.StatusFinalizada))
}

func TestNextStatuses(t *testing.T) {
	next := NextStatuses(domain.StatusEmAnalise, domain.RoleTecnico)
	require.ElementsMatch(t, []domain.Status{domain.StatusAguardandoMaterial, domain.StatusEmExecucao}, next)
	require.Empty(t, NextStatuses(domain.StatusEmAnalise, domain.RoleFuncionario))
}

func TestCheckFieldWrites(t *testing.T) {
	order := &domain.ServiceOrder{CreatedByID: "emp-1"}
	hours := 2.5
	negative := -1.0

	tests := []struct {
		name    string
		actor   domain.Actor
		update  FieldUpdate
		wantErr errors.Code
	}{
		{"technician writes diagnosis", domain.Actor{ID: "t", Role: domain.RoleTecnico}, FieldUpdate{Diagnosis: strPtr("HD com setores defeituosos")}, ""},
		{"employee writes diagnosis", domain.Actor{ID: "e", Role: domain.RoleFuncionario}, FieldUpdate{Diagnosis: strPtr("acho que é o HD")}, errors.ErrCodeUnauthorizedRole},
		{"admin writes solution", domain.Actor{ID: "a", Role: domain.RoleAdmin}, FieldUpdate{Solution: strPtr("trocado")}, errors.ErrCodeUnauthorizedRole},
		{"blank diagnosis from employee", domain.Actor{ID: "e", Role: domain.RoleFuncionario}, FieldUpdate{Diagnosis: strPtr("   ")}, errors.ErrCodeUnauthorizedRole},
		{"blank diagnosis from technician", domain.Actor{ID: "t", Role: domain.RoleTecnico}, FieldUpdate{Diagnosis: strPtr("")}, ""},
		{"creator writes observations", domain.Actor{ID: "emp-1", Role: domain.RoleFuncionario}, FieldUpdate{Observations: strPtr("urgente para sexta")}, ""},
		{"other employee writes observations", domain.Actor{ID: "emp-2", Role: domain.RoleFuncionario}, FieldUpdate{Observations: strPtr("oi")}, errors.ErrCodeUnauthorizedRole},
		{"gestor writes observations", domain.Actor{ID: "g", Role: domain.RoleGestor}, FieldUpdate{Observations: strPtr("ok")}, ""},
		{"one refused field fails all", domain.Actor{ID: "emp-1", Role: domain.RoleFuncionario}, FieldUpdate{Observations: strPtr("ok"), Solution: strPtr("x")}, errors.ErrCodeUnauthorizedRole},
		{"technician writes hours", domain.Actor{ID: "t", Role: domain.RoleTecnico}, FieldUpdate{EstimatedHours: &hours}, ""},
		{"negative hours", domain.Actor{ID: "t", Role: domain.RoleTecnico}, FieldUpdate{ActualHours: &negative}, errors.ErrCodeValidation},
		{"gestor writes hours", domain.Actor{ID: "g", Role: domain.RoleGestor}, FieldUpdate{ActualHours: &hours}, errors.ErrCodeUnauthorizedRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckFieldWrites(order, tt.actor, tt.update)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Equal(t, tt.wantErr, errors.CodeOf(err))
		})
	}
}

func TestApplyFieldsSkipsBlankAndUnchanged(t *testing.T) {
	order := &domain.ServiceOrder{Diagnosis: strPtr("fonte")}

	changed := ApplyFields(order, FieldUpdate{
		Diagnosis:    strPtr("fonte"),
		Solution:     strPtr("  trocada a fonte  "),
		Observations: strPtr(""),
	})

	require.Equal(t, []string{"solution"}, changed)
	require.Equal(t, "trocada a fonte", *order.Solution)
	require.Nil(t, order.Observations)
	require.Equal(t, "fonte", *order.Diagnosis)
}

func TestRequireMaterialFields(t *testing.T) {
	require.Error(t, RequireMaterialFields(FieldUpdate{MaterialDescription: strPtr(""), MaterialJustification: strPtr("x")}))
	require.Error(t, RequireMaterialFields(FieldUpdate{MaterialDescription: strPtr("SSD")}))
	require.NoError(t, RequireMaterialFields(FieldUpdate{MaterialDescription: strPtr("SSD"), MaterialJustification: strPtr("HD falhou")}))
}

func TestApplyTimestampsIsIdempotent(t *testing.T) {
	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	later := first.Add(48 * time.Hour)

	order := &domain.ServiceOrder{Status: domain.StatusEmExecucao}
	ApplyTimestamps(order, first)
	require.Equal(t, first, *order.StartedAt)

	ApplyTimestamps(order, later)
	require.Equal(t, first, *order.StartedAt)
	require.Nil(t, order.CompletedAt)

	order.Status = domain.StatusFinalizada
	ApplyTimestamps(order, later)
	require.Equal(t, later, *order.CompletedAt)
	require.Equal(t, first, *order.StartedAt)
}

func TestAssignKeepsFirstAssignedAt(t *testing.T) {
	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	order := &domain.ServiceOrder{}

	require.True(t, Assign(order, "tech-1", first))
	require.False(t, Assign(order, "tech-1", first.Add(time.Hour)))
	require.True(t, Assign(order, "tech-2", first.Add(2*time.Hour)))

	require.Equal(t, "tech-2", *order.AssignedToID)
	require.Equal(t, first, *order.AssignedAt)
}
