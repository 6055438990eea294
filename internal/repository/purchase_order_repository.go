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

// PgPurchaseOrderRepository stores purchase orders. Items and total are
// written once at creation and never updated.
type PgPurchaseOrderRepository struct {
	db database.Querier
}

// NewPurchaseOrderRepository creates a new PgPurchaseOrderRepository.
func NewPurchaseOrderRepository(db database.Querier) *PgPurchaseOrderRepository {
	return &PgPurchaseOrderRepository{db: db}
}

const purchaseOrderColumns = `
	id, number, service_order_id, quote_id, supplier_id, items, total_value::text,
	delivery_address, status, approved_at, signed_at, delivered_at, created_at, updated_at`

// Create inserts a purchase order.
func (r *PgPurchaseOrderRepository) Create(ctx context.Context, po *domain.PurchaseOrder) error {
	itemsJSON, err := json.Marshal(itemsOrEmpty(po.Items))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal purchase order items")
	}

	query := `
		INSERT INTO purchase_orders
		    (id, number, service_order_id, quote_id, supplier_id, items, total_value,
		     delivery_address, status, approved_at, signed_at, delivered_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric,
		        $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = r.db.Exec(ctx, query,
		po.ID, po.Number, po.ServiceOrderID, po.QuoteID, po.SupplierID, itemsJSON, po.TotalValue.String(),
		po.DeliveryAddress, po.Status, po.ApprovedAt, po.SignedAt, po.DeliveredAt, po.CreatedAt, po.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create purchase order")
	}
	return nil
}

// GetByID retrieves a purchase order.
func (r *PgPurchaseOrderRepository) GetByID(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	query := `SELECT ` + purchaseOrderColumns + ` FROM purchase_orders WHERE id = $1`
	po, err := scanPurchaseOrder(r.db.QueryRow(ctx, query, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("purchase_order", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get purchase order")
	}
	return po, nil
}

// GetByServiceOrder retrieves the purchase order generated for an order.
func (r *PgPurchaseOrderRepository) GetByServiceOrder(ctx context.Context, serviceOrderID string) (*domain.PurchaseOrder, error) {
	query := `SELECT ` + purchaseOrderColumns + ` FROM purchase_orders WHERE service_order_id = $1 ORDER BY created_at DESC LIMIT 1`
	po, err := scanPurchaseOrder(r.db.QueryRow(ctx, query, serviceOrderID))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("purchase_order for service_order", serviceOrderID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get purchase order")
	}
	return po, nil
}

// Update writes status, delivery address and the signature/delivery timestamps.
func (r *PgPurchaseOrderRepository) Update(ctx context.Context, po *domain.PurchaseOrder) error {
	query := `
		UPDATE purchase_orders
		SET delivery_address = $2,
		    status = $3,
		    signed_at = $4,
		    delivered_at = $5,
		    updated_at = $6
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, po.ID, po.DeliveryAddress, po.Status, po.SignedAt, po.DeliveredAt, po.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update purchase order")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("purchase_order", po.ID)
	}
	return nil
}

func scanPurchaseOrder(sc rowScanner) (*domain.PurchaseOrder, error) {
	po := &domain.PurchaseOrder{}
	var itemsJSON []byte
	var total string

	err := sc.Scan(
		&po.ID, &po.Number, &po.ServiceOrderID, &po.QuoteID, &po.SupplierID, &itemsJSON, &total,
		&po.DeliveryAddress, &po.Status, &po.ApprovedAt, &po.SignedAt, &po.DeliveredAt, &po.CreatedAt, &po.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &po.Items); err != nil {
		return nil, err
	}
	if po.TotalValue, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	return po, nil
}
