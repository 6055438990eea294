package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/database"
)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Repos returns repositories running on the pool, outside any transaction.
func (s *PostgresStore) Repos() Repos {
	return newRepos(s.db.Pool)
}

// InTx runs fn with repositories bound to one transaction.
func (s *PostgresStore) InTx(ctx context.Context, fn func(r Repos) error) error {
	return s.db.InTransaction(ctx, func(tx pgx.Tx) error {
		return fn(newRepos(tx))
	})
}

func newRepos(q database.Querier) Repos {
	return Repos{
		Orders:         NewServiceOrderRepository(q),
		Quotes:         NewQuoteRepository(q),
		PurchaseOrders: NewPurchaseOrderRepository(q),
		Attachments:    NewAttachmentRepository(q),
		Audit:          NewAuditRepository(q),
		Notifications:  NewNotificationRepository(q),
		Users:          NewUserRepository(q),
		Suppliers:      NewSupplierRepository(q),
		Sequences:      NewSequenceRepository(q),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}
