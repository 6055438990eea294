package repository

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/domain"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/database"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/errors"
)

// PgQuoteRepository stores supplier quotes. Items live in a JSONB column and
// are rebuilt through domain.NewQuoteItem when read.
type PgQuoteRepository struct {
	db database.Querier
}

// NewQuoteRepository creates a new PgQuoteRepository.
func NewQuoteRepository(db database.Querier) *PgQuoteRepository {
	return &PgQuoteRepository{db: db}
}

const quoteColumns = `
	id, service_order_id, supplier_id, requested_by_id, items, total_value::text,
	delivery_days, validity, observations, status, approved_at, rejected_at,
	rejection_reason, created_at, updated_at`

// Create inserts a quote.
func (r *PgQuoteRepository) Create(ctx context.Context, q *domain.Quote) error {
	itemsJSON, err := json.Marshal(itemsOrEmpty(q.Items))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal quote items")
	}

	query := `
		INSERT INTO quotes
		    (id, service_order_id, supplier_id, requested_by_id, items, total_value,
		     delivery_days, validity, observations, status, approved_at, rejected_at,
		     rejection_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric,
		        $7, $8, $9, $10, $11, $12,
		        $13, $14, $15)
	`

	_, err = r.db.Exec(ctx, query,
		q.ID, q.ServiceOrderID, q.SupplierID, q.RequestedByID, itemsJSON, q.TotalValue.String(),
		q.DeliveryDays, q.Validity, q.Observations, q.Status, q.ApprovedAt, q.RejectedAt,
		q.RejectionReason, q.CreatedAt, q.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create quote")
	}
	return nil
}

// GetByID retrieves a quote.
func (r *PgQuoteRepository) GetByID(ctx context.Context, id string) (*domain.Quote, error) {
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE id = $1`

	q, err := scanQuote(r.db.QueryRow(ctx, query, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("quote", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get quote")
	}
	return q, nil
}

// ListByServiceOrder returns an order's quotes, oldest first.
func (r *PgQuoteRepository) ListByServiceOrder(ctx context.Context, serviceOrderID string) ([]*domain.Quote, error) {
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE service_order_id = $1 ORDER BY created_at ASC, id ASC`

	rows, err := r.db.Query(ctx, query, serviceOrderID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list quotes")
	}
	defer rows.Close()

	quotes := make([]*domain.Quote, 0)
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan quote")
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

// Update writes the mutable quote columns.
func (r *PgQuoteRepository) Update(ctx context.Context, q *domain.Quote) error {
	itemsJSON, err := json.Marshal(itemsOrEmpty(q.Items))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal quote items")
	}

	query := `
		UPDATE quotes
		SET items = $2,
		    total_value = $3::numeric,
		    delivery_days = $4,
		    validity = $5,
		    observations = $6,
		    status = $7,
		    approved_at = $8,
		    rejected_at = $9,
		    rejection_reason = $10,
		    updated_at = $11
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query,
		q.ID, itemsJSON, q.TotalValue.String(), q.DeliveryDays, q.Validity, q.Observations,
		q.Status, q.ApprovedAt, q.RejectedAt, q.RejectionReason, q.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update quote")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("quote", q.ID)
	}
	return nil
}

func scanQuote(sc rowScanner) (*domain.Quote, error) {
	q := &domain.Quote{}
	var itemsJSON []byte
	var total string

	err := sc.Scan(
		&q.ID, &q.ServiceOrderID, &q.SupplierID, &q.RequestedByID, &itemsJSON, &total,
		&q.DeliveryDays, &q.Validity, &q.Observations, &q.Status, &q.ApprovedAt, &q.RejectedAt,
		&q.RejectionReason, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &q.Items); err != nil {
		return nil, err
	}
	if q.TotalValue, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	return q, nil
}

func itemsOrEmpty(items []domain.QuoteItem) []domain.QuoteItem {
	if items == nil {
		return []domain.QuoteItem{}
	}
	return items
}
