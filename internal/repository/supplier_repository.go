package repository

import (
	"context"
	stderrors "errors"

	"github.com/jackc/pgx/v5"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/domain"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/database"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/errors"
)

// PgSupplierRepository stores the supplier catalog.
type PgSupplierRepository struct {
	db database.Querier
}

// NewSupplierRepository creates a new PgSupplierRepository.
func NewSupplierRepository(db database.Querier) *PgSupplierRepository {
	return &PgSupplierRepository{db: db}
}

const supplierColumns = `id, name, cnpj, email, phone, active, created_at`

func (r *PgSupplierRepository) Create(ctx context.Context, s *domain.Supplier) error {
	query := `INSERT INTO suppliers (` + supplierColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query, s.ID, s.Name, s.CNPJ, s.Email, s.Phone, s.Active, s.CreatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create supplier")
	}
	return nil
}

func (r *PgSupplierRepository) GetByID(ctx context.Context, id string) (*domain.Supplier, error) {
	query := `SELECT ` + supplierColumns + ` FROM suppliers WHERE id = $1`

	s := &domain.Supplier{}
	err := r.db.QueryRow(ctx, query, id).Scan(&s.ID, &s.Name, &s.CNPJ, &s.Email, &s.Phone, &s.Active, &s.CreatedAt)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("supplier", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get supplier")
	}
	return s, nil
}

func (r *PgSupplierRepository) List(ctx context.Context, activeOnly bool) ([]*domain.Supplier, error) {
	query := `SELECT ` + supplierColumns + ` FROM suppliers`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list suppliers")
	}
	defer rows.Close()

	suppliers := make([]*domain.Supplier, 0)
	for rows.Next() {
		s := &domain.Supplier{}
		if err := rows.Scan(&s.ID, &s.Name, &s.CNPJ, &s.Email, &s.Phone, &s.Active, &s.CreatedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan supplier")
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, rows.Err()
}
