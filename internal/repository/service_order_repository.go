package repository

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/domain"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/database"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/errors"
)

// PgServiceOrderRepository stores service orders. Updates carry an optimistic
// version check on top of the row lock taken by GetForUpdate.
type PgServiceOrderRepository struct {
	db database.Querier
}

// NewServiceOrderRepository creates a new PgServiceOrderRepository.
func NewServiceOrderRepository(db database.Querier) *PgServiceOrderRepository {
	return &PgServiceOrderRepository{db: db}
}

const serviceOrderColumns = `
	id, number, title, description, category, priority, location, department,
	created_by_id, status, assigned_to_id, diagnosis, solution, observations,
	material_description, material_justification, requires_material,
	estimated_hours, actual_hours, attached_document, version,
	created_at, updated_at, assigned_at, started_at, completed_at`

// Create inserts a new order.
func (r *PgServiceOrderRepository) Create(ctx context.Context, o *domain.ServiceOrder) error {
	query := `
		INSERT INTO service_orders (` + serviceOrderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8,
		        $9, $10, $11, $12, $13, $14,
		        $15, $16, $17,
		        $18, $19, $20, $21,
		        $22, $23, $24, $25, $26)
	`

	_, err := r.db.Exec(ctx, query,
		o.ID, o.Number, o.Title, o.Description, o.Category, o.Priority, o.Location, o.Department,
		o.CreatedByID, o.Status, o.AssignedToID, o.Diagnosis, o.Solution, o.Observations,
		o.MaterialDescription, o.MaterialJustification, o.RequiresMaterial,
		o.EstimatedHours, o.ActualHours, o.AttachedDocument, o.Version,
		o.CreatedAt, o.UpdatedAt, o.AssignedAt, o.StartedAt, o.CompletedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create service order")
	}
	return nil
}

// GetByID retrieves an order by its primary key.
func (r *PgServiceOrderRepository) GetByID(ctx context.Context, id string) (*domain.ServiceOrder, error) {
	query := `SELECT ` + serviceOrderColumns + ` FROM service_orders WHERE id = $1`
	return r.get(ctx, query, id)
}

// GetForUpdate retrieves an order and locks its row until the transaction ends.
func (r *PgServiceOrderRepository) GetForUpdate(ctx context.Context, id string) (*domain.ServiceOrder, error) {
	query := `SELECT ` + serviceOrderColumns + ` FROM service_orders WHERE id = $1 FOR UPDATE`
	return r.get(ctx, query, id)
}

func (r *PgServiceOrderRepository) get(ctx context.Context, query, id string) (*domain.ServiceOrder, error) {
	o, err := scanServiceOrder(r.db.QueryRow(ctx, query, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("service_order", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get service order")
	}
	return o, nil
}

// Update writes every mutable column when the stored version matches.
func (r *PgServiceOrderRepository) Update(ctx context.Context, o *domain.ServiceOrder) error {
	query := `
		UPDATE service_orders
		SET status = $3,
		    assigned_to_id = $4,
		    diagnosis = $5,
		    solution = $6,
		    observations = $7,
		    material_description = $8,
		    material_justification = $9,
		    requires_material = $10,
		    estimated_hours = $11,
		    actual_hours = $12,
		    attached_document = $13,
		    assigned_at = $14,
		    started_at = $15,
		    completed_at = $16,
		    updated_at = $17,
		    version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING version
	`

	var version int
	err := r.db.QueryRow(ctx, query,
		o.ID, o.Version,
		o.Status, o.AssignedToID, o.Diagnosis, o.Solution, o.Observations,
		o.MaterialDescription, o.MaterialJustification, o.RequiresMaterial,
		o.EstimatedHours, o.ActualHours, o.AttachedDocument,
		o.AssignedAt, o.StartedAt, o.CompletedAt, o.UpdatedAt,
	).Scan(&version)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return errors.Conflict(fmt.Sprintf("service order %s was modified concurrently", o.ID))
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update service order")
	}

	o.Version = version
	return nil
}

// List returns a page of orders, newest first, and the total match count.
func (r *PgServiceOrderRepository) List(ctx context.Context, f ServiceOrderFilter) ([]*domain.ServiceOrder, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	argCount := 1

	if f.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, *f.Status)
		argCount++
	}
	if f.AssignedToID != nil {
		where += fmt.Sprintf(" AND assigned_to_id = $%d", argCount)
		args = append(args, *f.AssignedToID)
		argCount++
	}
	if f.CreatedByID != nil {
		where += fmt.Sprintf(" AND created_by_id = $%d", argCount)
		args = append(args, *f.CreatedByID)
		argCount++
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM service_orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to count service orders")
	}

	limit, offset := pageBounds(f.Page, f.PageSize)
	query := `SELECT ` + serviceOrderColumns + ` FROM service_orders` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argCount, argCount+1)

	rows, err := r.db.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to list service orders")
	}
	defer rows.Close()

	orders := make([]*domain.ServiceOrder, 0)
	for rows.Next() {
		o, err := scanServiceOrder(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan service order")
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to iterate service orders")
	}

	return orders, total, nil
}

func scanServiceOrder(sc rowScanner) (*domain.ServiceOrder, error) {
	o := &domain.ServiceOrder{}
	err := sc.Scan(
		&o.ID, &o.Number, &o.Title, &o.Description, &o.Category, &o.Priority, &o.Location, &o.Department,
		&o.CreatedByID, &o.Status, &o.AssignedToID, &o.Diagnosis, &o.Solution, &o.Observations,
		&o.MaterialDescription, &o.MaterialJustification, &o.RequiresMaterial,
		&o.EstimatedHours, &o.ActualHours, &o.AttachedDocument, &o.Version,
		&o.CreatedAt, &o.UpdatedAt, &o.AssignedAt, &o.StartedAt, &o.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// pageBounds turns a 1-based page into LIMIT/OFFSET with a default page size of 50.
func pageBounds(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}
	return pageSize, (page - 1) * pageSize
}
