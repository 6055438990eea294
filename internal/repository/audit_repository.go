package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/domain"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/database"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/errors"
)

// PgAuditRepository appends and reads immutable audit log entries.
type PgAuditRepository struct {
	db database.Querier
}

// NewAuditRepository creates a new PgAuditRepository.
func NewAuditRepository(db database.Querier) *PgAuditRepository {
	return &PgAuditRepository{db: db}
}

// Append inserts one audit entry. The table has an update/delete-prevention
// trigger so this is the only mutation operation exposed.
func (r *PgAuditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	var detailsJSON []byte
	if entry.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(entry.Details)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal audit details")
		}
	}

	query := `
		INSERT INTO audit_logs (service_order_id, user_id, action, details)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		entry.ServiceOrderID,
		entry.UserID,
		entry.Action,
		detailsJSON,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to append audit entry")
	}
	return nil
}

// ListByServiceOrder returns the full audit trail for an order, oldest first.
func (r *PgAuditRepository) ListByServiceOrder(ctx context.Context, serviceOrderID string) ([]*domain.AuditEntry, error) {
	query := `
		SELECT id, service_order_id, user_id, action, details, created_at
		FROM audit_logs
		WHERE service_order_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, serviceOrderID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get audit log")
	}
	defer rows.Close()

	return scanAuditRows(rows)
}

// ── scan helpers ──────────────────────────────────────────────────────────────

func scanAuditRows(rows pgx.Rows) ([]*domain.AuditEntry, error) {
	entries := make([]*domain.AuditEntry, 0)
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan audit entry")
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanAuditEntry(sc rowScanner) (*domain.AuditEntry, error) {
	entry := &domain.AuditEntry{}
	var detailsJSON []byte

	if err := sc.Scan(
		&entry.ID,
		&entry.ServiceOrderID,
		&entry.UserID,
		&entry.Action,
		&detailsJSON,
		&entry.CreatedAt,
	); err != nil {
		return nil, err
	}

	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &entry.Details); err != nil {
			return nil, err
		}
	}
	return entry, nil
}
