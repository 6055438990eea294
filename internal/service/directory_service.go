package service

import (
	"context"
	"strings"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/domain"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/errors"
)

// DirectoryService exposes suppliers, users and per-user notifications.
type DirectoryService struct {
	*core
}

// CreateSupplierRequest represents a create supplier request
type CreateSupplierRequest struct {
	Name  string
	CNPJ  *string
	Email string
	Phone *string
}

// CreateSupplier registers an active supplier.
func (s *DirectoryService) CreateSupplier(ctx context.Context, actor domain.Actor, req *CreateSupplierRequest) (*domain.Supplier, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := requireRole(actor, "register suppliers", domain.RoleGestor, domain.RoleAdmin); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errors.InvalidInput("name", "name is required")
	}
	email := strings.TrimSpace(req.Email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, errors.InvalidInput("email", "a valid e-mail is required")
	}
	cnpj := trimmedOrNil(req.CNPJ)
	if cnpj != nil {
		digits := onlyDigits(*cnpj)
		if len(digits) != 14 {
			return nil, errors.InvalidInput("cnpj", "CNPJ must have 14 digits")
		}
		cnpj = &digits
	}

	sp := &domain.Supplier{
		ID:        newID(),
		Name:      name,
		CNPJ:      cnpj,
		Email:     email,
		Phone:     trimmedOrNil(req.Phone),
		Active:    true,
		CreatedAt: s.now(),
	}
	if err := s.store.Repos().Suppliers.Create(ctx, sp); err != nil {
		return nil, err
	}

	s.log.Info().Str("supplier_id", sp.ID).Str("name", sp.Name).Msg("supplier created")
	return sp, nil
}

// ListSuppliers lists suppliers by name.
func (s *DirectoryService) ListSuppliers(ctx context.Context, actor domain.Actor, activeOnly bool) ([]*domain.Supplier, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return s.store.Repos().Suppliers.List(ctx, activeOnly)
}

// ResolveActor looks up an active user and returns it as an actor.
func (s *DirectoryService) ResolveActor(ctx context.Context, userID string) (domain.Actor, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Actor{}, errors.New(errors.ErrCodeUnauthenticated, "user id is required")
	}
	u, err := s.store.Repos().Users.GetByID(ctx, userID)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeNotFound) {
			return domain.Actor{}, errors.New(errors.ErrCodeUnauthenticated, "unknown user")
		}
		return domain.Actor{}, err
	}
	if !u.Active {
		return domain.Actor{}, errors.New(errors.ErrCodeUnauthenticated, "user is inactive")
	}
	return domain.Actor{ID: u.ID, Role: u.Role}, nil
}

// ListNotifications returns the actor's notifications, newest first.
func (s *DirectoryService) ListNotifications(ctx context.Context, actor domain.Actor, unreadOnly bool, limit int) ([]*domain.Notification, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return s.store.Repos().Notifications.ListByUser(ctx, actor.ID, unreadOnly, limit)
}

// MarkNotificationRead marks one of the actor's notifications as read.
func (s *DirectoryService) MarkNotificationRead(ctx context.Context, actor domain.Actor, id string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	return s.store.Repos().Notifications.MarkRead(ctx, actor.ID, id)
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
