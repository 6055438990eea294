package main

import (
	"time"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/domain"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/repository/memory"
)

// seedDemoDirectory gives the in-memory store one user per role and two
// suppliers, enough to walk an order through the whole workflow.
func seedDemoDirectory(store *memory.Store) {
	ti := "Departamento de TI"
	for _, u := range []*domain.User{
		{ID: "funcionario", Name: "Funcionário Demo", Email: "funcionario@moncoes.sp.gov.br", Role: domain.RoleFuncionario, Active: true},
		{ID: "tecnico", Name: "Técnico Demo", Email: "tecnico@moncoes.sp.gov.br", Role: domain.RoleTecnico, Department: &ti, Active: true},
		{ID: "aprovador", Name: "Aprovador Demo", Email: "aprovador@moncoes.sp.gov.br", Role: domain.RoleAprovador, Active: true},
		{ID: "gestor", Name: "Gestor Demo", Email: "gestor@moncoes.sp.gov.br", Role: domain.RoleGestor, Department: &ti, Active: true},
		{ID: "admin", Name: "Administrador Demo", Email: "admin@moncoes.sp.gov.br", Role: domain.RoleAdmin, Active: true},
	} {
		store.PutUser(u)
	}

	now := time.Now().UTC()
	for _, sp := range []*domain.Supplier{
		{ID: "fornecedor-1", Name: "Info Center Ltda", Email: "vendas@infocenter.com.br", Active: true, CreatedAt: now},
		{ID: "fornecedor-2", Name: "Tech Supply ME", Email: "orcamento@techsupply.com.br", Active: true, CreatedAt: now},
	} {
		store.PutSupplier(sp)
	}
}
