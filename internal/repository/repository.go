package repository

import (
	"context"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/domain"
)

// Store gives access to the repositories, either directly or bound to one
// transaction. Everything a workflow operation writes goes through a single
// InTx call so a failure leaves no partial state behind.
type Store interface {
	InTx(ctx context.Context, fn func(r Repos) error) error
	Repos() Repos
}

// Repos groups the repositories of one store (or one transaction).
type Repos struct {
	Orders         ServiceOrderRepository
	Quotes         QuoteRepository
	PurchaseOrders PurchaseOrderRepository
	Attachments    AttachmentRepository
	Audit          AuditRepository
	Notifications  NotificationRepository
	Users          UserRepository
	Suppliers      SupplierRepository
	Sequences      SequenceRepository
}

// ServiceOrderFilter narrows ListServiceOrders.
type ServiceOrderFilter struct {
	Status       *domain.Status
	AssignedToID *string
	CreatedByID  *string
	Page         int
	PageSize     int
}

type ServiceOrderRepository interface {
	Create(ctx context.Context, order *domain.ServiceOrder) error
	GetByID(ctx context.Context, id string) (*domain.ServiceOrder, error)
	// GetForUpdate loads the order and, inside a transaction, locks it until commit.
	GetForUpdate(ctx context.Context, id string) (*domain.ServiceOrder, error)
	// Update persists order if its Version still matches the stored one and
	// bumps Version. A mismatch returns CONFLICT.
	Update(ctx context.Context, order *domain.ServiceOrder) error
	List(ctx context.Context, filter ServiceOrderFilter) ([]*domain.ServiceOrder, int, error)
}

type QuoteRepository interface {
	Create(ctx context.Context, quote *domain.Quote) error
	GetByID(ctx context.Context, id string) (*domain.Quote, error)
	ListByServiceOrder(ctx context.Context, serviceOrderID string) ([]*domain.Quote, error)
	Update(ctx context.Context, quote *domain.Quote) error
}

type PurchaseOrderRepository interface {
	Create(ctx context.Context, po *domain.PurchaseOrder) error
	GetByID(ctx context.Context, id string) (*domain.PurchaseOrder, error)
	GetByServiceOrder(ctx context.Context, serviceOrderID string) (*domain.PurchaseOrder, error)
	Update(ctx context.Context, po *domain.PurchaseOrder) error
}

type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.Attachment) error
	GetByID(ctx context.Context, id string) (*domain.Attachment, error)
	ListByServiceOrder(ctx context.Context, serviceOrderID string) ([]*domain.Attachment, error)
}

// AuditRepository is append-only.
type AuditRepository interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
	ListByServiceOrder(ctx context.Context, serviceOrderID string) ([]*domain.AuditEntry, error)
}

type NotificationRepository interface {
	CreateBatch(ctx context.Context, notifications []*domain.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	ListByRoles(ctx context.Context, roles ...domain.Role) ([]*domain.User, error)
}

type SupplierRepository interface {
	Create(ctx context.Context, supplier *domain.Supplier) error
	GetByID(ctx context.Context, id string) (*domain.Supplier, error)
	List(ctx context.Context, activeOnly bool) ([]*domain.Supplier, error)
}

// SequenceRepository hands out yearly sequence values. Next must never return
// the same value twice for a prefix and year, even under concurrent callers.
type SequenceRepository interface {
	Next(ctx context.Context, prefix string, year int) (int, error)
}
