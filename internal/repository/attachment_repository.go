package repository

import (
	"context"
	stderrors "errors"

	"github.com/jackc/pgx/v5"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/domain"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/database"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/errors"
)

// PgAttachmentRepository stores attachment metadata. The bytes live in the
// blob store under StorageKey.
type PgAttachmentRepository struct {
	db database.Querier
}

// NewAttachmentRepository creates a new PgAttachmentRepository.
func NewAttachmentRepository(db database.Querier) *PgAttachmentRepository {
	return &PgAttachmentRepository{db: db}
}

const attachmentColumns = `
	id, service_order_id, kind, file_name, content_type, size_bytes,
	storage_key, uploaded_by_id, created_at`

func (r *PgAttachmentRepository) Create(ctx context.Context, a *domain.Attachment) error {
	query := `
		INSERT INTO attachments (` + attachmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		a.ID, a.ServiceOrderID, a.Kind, a.FileName, a.ContentType, a.Size,
		a.StorageKey, a.UploadedByID, a.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create attachment")
	}
	return nil
}

func (r *PgAttachmentRepository) GetByID(ctx context.Context, id string) (*domain.Attachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM attachments WHERE id = $1`

	a, err := scanAttachment(r.db.QueryRow(ctx, query, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("attachment", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get attachment")
	}
	return a, nil
}

func (r *PgAttachmentRepository) ListByServiceOrder(ctx context.Context, serviceOrderID string) ([]*domain.Attachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM attachments WHERE service_order_id = $1 ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, serviceOrderID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list attachments")
	}
	defer rows.Close()

	attachments := make([]*domain.Attachment, 0)
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan attachment")
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}

func scanAttachment(sc rowScanner) (*domain.Attachment, error) {
	a := &domain.Attachment{}
	err := sc.Scan(
		&a.ID, &a.ServiceOrderID, &a.Kind, &a.FileName, &a.ContentType, &a.Size,
		&a.StorageKey, &a.UploadedByID, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}
