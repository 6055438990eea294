package service

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/document"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/domain"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/errors"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/repository"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/workflow"
)

// DocumentService generates approval documents and gates the signature step.
type DocumentService struct {
	*core
}

const contentTypePDF = "application/pdf"

// UploadSignedDocumentRequest carries the signed approval document.
type UploadSignedDocumentRequest struct {
	OrderID     string
	FileName    string
	ContentType string
	Data        []byte
}

// AttachmentContent is a stored attachment with its bytes.
type AttachmentContent struct {
	Attachment *domain.Attachment
	Data       []byte
}

// GenerateApprovalDocument renders the approval document of an order that is
// collecting quotes. The order status does not change.
func (s *DocumentService) GenerateApprovalDocument(ctx context.Context, actor domain.Actor, orderID string) (*domain.Attachment, error) {
	ctx, span := s.startSpan(ctx, "DocumentService.GenerateApprovalDocument", attribute.String("service_order_id", orderID))
	var err error
	defer func() { endSpan(span, err) }()

	if err = requireRole(actor, "generate approval documents", domain.RoleAprovador, domain.RoleGestor, domain.RoleAdmin); err != nil {
		return nil, err
	}

	var att *domain.Attachment
	_, err = s.withOrder(ctx, actor, orderID, func(ctx context.Context, t *txn) error {
		if st := t.order.Status; st != domain.StatusAguardandoOrcamento && st != domain.StatusOrcamentosRecebidos {
			return errors.IllegalTransition(fmt.Sprintf("approval documents cannot be generated while the service order is %s", st))
		}
		quotes, err := t.repos.Quotes.ListByServiceOrder(ctx, t.order.ID)
		if err != nil {
			return err
		}
		if len(quotes) == 0 {
			return errors.InvalidInput("quotes", "at least one quote is required to generate the approval document")
		}
		if att, err = s.generateApprovalDocument(ctx, t, quotes, "", ""); err != nil {
			return err
		}
		t.record(domain.ActionPDFGerado, map[string]any{
			"attachmentId": att.ID,
			"quoteCount":   len(quotes),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return att, nil
}

// generateApprovalDocument renders, stores and links the document. The blob
// key is tracked on t so a failed transaction removes it again.
func (c *core) generateApprovalDocument(ctx context.Context, t *txn, quotes []*domain.Quote, selectedQuoteID, poNumber string) (*domain.Attachment, error) {
	snap := document.Snapshot{
		Order:               t.order,
		PurchaseOrderNumber: poNumber,
		GeneratedAt:         t.now,
	}
	var err error
	if snap.Requester, err = person(ctx, t.repos, t.order.CreatedByID); err != nil {
		return nil, err
	}
	if snap.GeneratedBy, err = person(ctx, t.repos, t.actor.ID); err != nil {
		return nil, err
	}
	if t.order.AssignedToID != nil {
		tech, err := person(ctx, t.repos, *t.order.AssignedToID)
		if err != nil {
			return nil, err
		}
		snap.Technician = &tech
	}

	for _, q := range quotes {
		qs := document.QuoteSnapshot{
			ID:           q.ID,
			SupplierName: q.SupplierID,
			Status:       q.Status,
			Items:        q.Items,
			TotalValue:   q.TotalValue,
			DeliveryDays: q.DeliveryDays,
			Selected:     q.ID == selectedQuoteID,
		}
		sp, err := t.repos.Suppliers.GetByID(ctx, q.SupplierID)
		switch {
		case err == nil:
			qs.SupplierName = sp.Name
			if sp.CNPJ != nil {
				qs.SupplierCNPJ = *sp.CNPJ
			}
		case !errors.HasCode(err, errors.ErrCodeNotFound):
			return nil, err
		}
		snap.Quotes = append(snap.Quotes, qs)
	}

	data, err := c.renderer.RenderApproval(snap)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to render approval document")
	}

	att := &domain.Attachment{
		ID:             newID(),
		ServiceOrderID: t.order.ID,
		Kind:           domain.AttachmentApprovalDocument,
		ContentType:    contentTypePDF,
		Size:           int64(len(data)),
		UploadedByID:   t.actor.ID,
		CreatedAt:      t.now,
	}
	att.FileName = fmt.Sprintf("aprovacao-%s.pdf", t.order.Number)
	att.StorageKey = storageKey(t.order.ID, "approval-"+att.ID+".pdf")

	if err := c.blobs.Put(ctx, att.StorageKey, contentTypePDF, data); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to store approval document")
	}
	t.blobKeys = append(t.blobKeys, att.StorageKey)

	if err := t.repos.Attachments.Create(ctx, att); err != nil {
		return nil, err
	}
	return att, nil
}

// person resolves a user for printing. Users missing from the directory are
// printed by id.
func person(ctx context.Context, r repository.Repos, userID string) (document.Person, error) {
	u, err := r.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeNotFound) {
			return document.Person{Name: userID}, nil
		}
		return document.Person{}, err
	}
	p := document.Person{Name: u.Name, Email: u.Email}
	if u.Department != nil {
		p.Department = *u.Department
	}
	return p, nil
}

// UploadSignedDocument stores the signed approval document, marks the
// purchase order signed and moves the order to MATERIAL_APROVADO.
func (s *DocumentService) UploadSignedDocument(ctx context.Context, actor domain.Actor, req *UploadSignedDocumentRequest) (*TransitionResult, error) {
	ctx, span := s.startSpan(ctx, "DocumentService.UploadSignedDocument", attribute.String("service_order_id", req.OrderID))
	var err error
	defer func() { endSpan(span, err) }()

	if err = requireActor(actor); err != nil {
		return nil, err
	}
	// Cheap state check before touching storage; repeated under the lock.
	var order *domain.ServiceOrder
	if order, err = s.store.Repos().Orders.GetByID(ctx, req.OrderID); err != nil {
		return nil, err
	}
	if err = checkSignatureGate(order, actor); err != nil {
		return nil, err
	}
	if err = s.validateSignedDocument(req); err != nil {
		return nil, err
	}

	attID := newID()
	key := storageKey(req.OrderID, "signed-"+attID+".pdf")
	if err = s.blobs.Put(ctx, key, contentTypePDF, req.Data); err != nil {
		err = errors.Wrap(err, errors.ErrCodeInternal, "failed to store signed document")
		return nil, err
	}

	var t *txn
	t, err = s.withOrder(ctx, actor, req.OrderID, func(ctx context.Context, t *txn) error {
		t.blobKeys = append(t.blobKeys, key)
		if err := checkSignatureGate(t.order, actor); err != nil {
			return err
		}

		att := &domain.Attachment{
			ID:             attID,
			ServiceOrderID: t.order.ID,
			Kind:           domain.AttachmentSignedDocument,
			FileName:       signedFileName(req.FileName, t.order.Number),
			ContentType:    contentTypePDF,
			Size:           int64(len(req.Data)),
			StorageKey:     key,
			UploadedByID:   actor.ID,
			CreatedAt:      t.now,
		}
		if err := t.repos.Attachments.Create(ctx, att); err != nil {
			return err
		}

		details := map[string]any{
			"from":         string(t.order.Status),
			"to":           string(domain.StatusMaterialAprovado),
			"attachmentId": att.ID,
			"fileName":     att.FileName,
			"size":         att.Size,
		}
		po, err := t.repos.PurchaseOrders.GetByServiceOrder(ctx, t.order.ID)
		if err != nil {
			if errors.HasCode(err, errors.ErrCodeNotFound) {
				return errors.IllegalTransition("service order has no approved purchase order to sign")
			}
			return err
		}
		if po.Status == domain.PurchaseOrderPendente {
			po.Status = domain.PurchaseOrderAssinado
			po.SignedAt = &t.now
			po.UpdatedAt = t.now
			if err := t.repos.PurchaseOrders.Update(ctx, po); err != nil {
				return err
			}
		}
		details["purchaseOrderNumber"] = po.Number

		t.order.AttachedDocument = &att.ID
		t.transition(domain.StatusMaterialAprovado)
		t.record(domain.ActionDocumentoAnexado, details)
		return s.notifyStakeholders(ctx, t, domain.NotificationMaterialApproved,
			fmt.Sprintf("OS %s: %s", t.order.Number, statusLabel(domain.StatusMaterialAprovado)),
			"Documento assinado anexado, material aprovado",
			domain.RoleGestor)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("service_order_id", t.order.ID).
		Str("attachment_id", attID).
		Msg("signed document attached")
	return resultOf(t), nil
}

func checkSignatureGate(order *domain.ServiceOrder, actor domain.Actor) error {
	if order.Status != domain.StatusAguardandoAssinatura {
		return errors.IllegalTransition(fmt.Sprintf("signed documents can only be attached while the service order is %s, it is %s",
			domain.StatusAguardandoAssinatura, order.Status))
	}
	return workflow.Authorize(order.Status, actor.Role, domain.StatusMaterialAprovado)
}

func (c *core) validateSignedDocument(req *UploadSignedDocumentRequest) error {
	ct := strings.ToLower(strings.TrimSpace(req.ContentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct != contentTypePDF {
		return errors.InvalidInput("file", "signed document must be application/pdf")
	}
	if len(req.Data) == 0 {
		return errors.InvalidInput("file", "signed document is empty")
	}
	if int64(len(req.Data)) > c.maxSigned {
		return errors.InvalidInput("file", fmt.Sprintf("signed document exceeds %d bytes", c.maxSigned))
	}
	if !bytes.HasPrefix(req.Data, []byte("%PDF-")) {
		return errors.InvalidInput("file", "signed document is not a PDF")
	}
	return nil
}

func signedFileName(name, orderNumber string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return fmt.Sprintf("aprovacao-%s-assinado.pdf", orderNumber)
	}
	return name
}

func storageKey(orderID, name string) string {
	return "service-orders/" + orderID + "/" + name
}

// ListAttachments returns the attachments of an order.
func (s *DocumentService) ListAttachments(ctx context.Context, actor domain.Actor, orderID string) ([]*domain.Attachment, error) {
	if err := s.canSeeOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}
	return s.store.Repos().Attachments.ListByServiceOrder(ctx, orderID)
}

// DownloadAttachment returns an attachment and its bytes.
func (s *DocumentService) DownloadAttachment(ctx context.Context, actor domain.Actor, attachmentID string) (*AttachmentContent, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	att, err := s.store.Repos().Attachments.GetByID(ctx, attachmentID)
	if err != nil {
		return nil, err
	}
	if err := s.canSeeOrder(ctx, actor, att.ServiceOrderID); err != nil {
		return nil, err
	}
	data, err := s.blobs.Get(ctx, att.StorageKey)
	if err != nil {
		return nil, err
	}
	return &AttachmentContent{Attachment: att, Data: data}, nil
}
