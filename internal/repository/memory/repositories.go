package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/domain"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/errors"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/repository"
)

// ── service orders ────────────────────────────────────────────────────────────

type orderRepo struct{ sc *scope }

func (r *orderRepo) Create(_ context.Context, o *domain.ServiceOrder) error {
	var err error
	r.sc.with(func(d *data) {
		if _, ok := d.orders[o.ID]; ok {
			err = errors.Conflict(fmt.Sprintf("service order %s already exists", o.ID))
			return
		}
		for _, existing := range d.orders {
			if existing.Number == o.Number {
				err = errors.Conflict(fmt.Sprintf("service order number %s already exists", o.Number))
				return
			}
		}
		d.orders[o.ID] = o.Clone()
		d.orderIDs = append(d.orderIDs, o.ID)
	})
	return err
}

func (r *orderRepo) GetByID(_ context.Context, id string) (*domain.ServiceOrder, error) {
	var out *domain.ServiceOrder
	r.sc.with(func(d *data) {
		if o, ok := d.orders[id]; ok {
			out = o.Clone()
		}
	})
	if out == nil {
		return nil, errors.NotFound("service_order", id)
	}
	return out, nil
}

// GetForUpdate needs no lock of its own: transactions are already serialized.
func (r *orderRepo) GetForUpdate(ctx context.Context, id string) (*domain.ServiceOrder, error) {
	return r.GetByID(ctx, id)
}

func (r *orderRepo) Update(_ context.Context, o *domain.ServiceOrder) error {
	var err error
	r.sc.with(func(d *data) {
		stored, ok := d.orders[o.ID]
		if !ok {
			err = errors.NotFound("service_order", o.ID)
			return
		}
		if stored.Version != o.Version {
			err = errors.Conflict(fmt.Sprintf("service order %s was modified concurrently", o.ID))
			return
		}
		o.Version++
		d.orders[o.ID] = o.Clone()
	})
	return err
}

func (r *orderRepo) List(_ context.Context, f repository.ServiceOrderFilter) ([]*domain.ServiceOrder, int, error) {
	var matched []*domain.ServiceOrder
	r.sc.with(func(d *data) {
		for _, id := range d.orderIDs {
			o := d.orders[id]
			if f.Status != nil && o.Status != *f.Status {
				continue
			}
			if f.AssignedToID != nil && (o.AssignedToID == nil || *o.AssignedToID != *f.AssignedToID) {
				continue
			}
			if f.CreatedByID != nil && o.CreatedByID != *f.CreatedByID {
				continue
			}
			matched = append(matched, o.Clone())
		}
	})

	// Newest first; insertion order breaks ties.
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	limit, offset := pageBounds(f.Page, f.PageSize)
	total := len(matched)
	if offset >= total {
		return []*domain.ServiceOrder{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func pageBounds(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}
	return pageSize, (page - 1) * pageSize
}

// ── quotes ────────────────────────────────────────────────────────────────────

type quoteRepo struct{ sc *scope }

func (r *quoteRepo) Create(_ context.Context, q *domain.Quote) error {
	var err error
	r.sc.with(func(d *data) {
		if _, ok := d.quotes[q.ID]; ok {
			err = errors.Conflict(fmt.Sprintf("quote %s already exists", q.ID))
			return
		}
		if q.Status == domain.QuoteAprovado && hasApproved(d, q.ServiceOrderID, q.ID) {
			err = errors.Conflict("service order already has an approved quote")
			return
		}
		d.quotes[q.ID] = q.Clone()
		d.quoteIDs = append(d.quoteIDs, q.ID)
	})
	return err
}

func (r *quoteRepo) GetByID(_ context.Context, id string) (*domain.Quote, error) {
	var out *domain.Quote
	r.sc.with(func(d *data) {
		if q, ok := d.quotes[id]; ok {
			out = q.Clone()
		}
	})
	if out == nil {
		return nil, errors.NotFound("quote", id)
	}
	return out, nil
}

func (r *quoteRepo) ListByServiceOrder(_ context.Context, serviceOrderID string) ([]*domain.Quote, error) {
	out := make([]*domain.Quote, 0)
	r.sc.with(func(d *data) {
		for _, id := range d.quoteIDs {
			if q := d.quotes[id]; q.ServiceOrderID == serviceOrderID {
				out = append(out, q.Clone())
			}
		}
	})
	return out, nil
}

func (r *quoteRepo) Update(_ context.Context, q *domain.Quote) error {
	var err error
	r.sc.with(func(d *data) {
		if _, ok := d.quotes[q.ID]; !ok {
			err = errors.NotFound("quote", q.ID)
			return
		}
		if q.Status == domain.QuoteAprovado && hasApproved(d, q.ServiceOrderID, q.ID) {
			err = errors.Conflict("service order already has an approved quote")
			return
		}
		d.quotes[q.ID] = q.Clone()
	})
	return err
}

// hasApproved mirrors the partial unique index on approved quotes.
func hasApproved(d *data, serviceOrderID, exceptID string) bool {
	for id, q := range d.quotes {
		if id != exceptID && q.ServiceOrderID == serviceOrderID && q.Status == domain.QuoteAprovado {
			return true
		}
	}
	return false
}

// ── purchase orders ───────────────────────────────────────────────────────────

type purchaseOrderRepo struct{ sc *scope }

func (r *purchaseOrderRepo) Create(_ context.Context, po *domain.PurchaseOrder) error {
	var err error
	r.sc.with(func(d *data) {
		for _, existing := range d.purchases {
			if existing.QuoteID == po.QuoteID {
				err = errors.Conflict(fmt.Sprintf("quote %s already has a purchase order", po.QuoteID))
				return
			}
			if existing.Number == po.Number {
				err = errors.Conflict(fmt.Sprintf("purchase order number %s already exists", po.Number))
				return
			}
		}
		d.purchases[po.ID] = po.Clone()
		d.purchaseIDs = append(d.purchaseIDs, po.ID)
	})
	return err
}

func (r *purchaseOrderRepo) GetByID(_ context.Context, id string) (*domain.PurchaseOrder, error) {
	var out *domain.PurchaseOrder
	r.sc.with(func(d *data) {
		if po, ok := d.purchases[id]; ok {
			out = po.Clone()
		}
	})
	if out == nil {
		return nil, errors.NotFound("purchase_order", id)
	}
	return out, nil
}

func (r *purchaseOrderRepo) GetByServiceOrder(_ context.Context, serviceOrderID string) (*domain.PurchaseOrder, error) {
	var out *domain.PurchaseOrder
	r.sc.with(func(d *data) {
		for i := len(d.purchaseIDs) - 1; i >= 0; i-- {
			if po := d.purchases[d.purchaseIDs[i]]; po.ServiceOrderID == serviceOrderID {
				out = po.Clone()
				return
			}
		}
	})
	if out == nil {
		return nil, errors.NotFound("purchase_order for service_order", serviceOrderID)
	}
	return out, nil
}

func (r *purchaseOrderRepo) Update(_ context.Context, po *domain.PurchaseOrder) error {
	var err error
	r.sc.with(func(d *data) {
		stored, ok := d.purchases[po.ID]
		if !ok {
			err = errors.NotFound("purchase_order", po.ID)
			return
		}
		// Items and total stay frozen.
		next := po.Clone()
		next.Items = domain.CloneItems(stored.Items)
		next.TotalValue = stored.TotalValue
		d.purchases[po.ID] = next
	})
	return err
}

// ── attachments ───────────────────────────────────────────────────────────────

type attachmentRepo struct{ sc *scope }

func (r *attachmentRepo) Create(_ context.Context, a *domain.Attachment) error {
	r.sc.with(func(d *data) {
		v := *a
		d.attachments[a.ID] = &v
		d.attachmentIDs = append(d.attachmentIDs, a.ID)
	})
	return nil
}

func (r *attachmentRepo) GetByID(_ context.Context, id string) (*domain.Attachment, error) {
	var out *domain.Attachment
	r.sc.with(func(d *data) {
		if a, ok := d.attachments[id]; ok {
			v := *a
			out = &v
		}
	})
	if out == nil {
		return nil, errors.NotFound("attachment", id)
	}
	return out, nil
}

func (r *attachmentRepo) ListByServiceOrder(_ context.Context, serviceOrderID string) ([]*domain.Attachment, error) {
	out := make([]*domain.Attachment, 0)
	r.sc.with(func(d *data) {
		for _, id := range d.attachmentIDs {
			if a := d.attachments[id]; a.ServiceOrderID == serviceOrderID {
				v := *a
				out = append(out, &v)
			}
		}
	})
	return out, nil
}

// ── audit ─────────────────────────────────────────────────────────────────────

type auditRepo struct{ sc *scope }

func (r *auditRepo) Append(_ context.Context, entry *domain.AuditEntry) error {
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now().UTC()
	r.sc.with(func(d *data) {
		v := *entry
		d.audit = append(d.audit, &v)
	})
	return nil
}

func (r *auditRepo) ListByServiceOrder(_ context.Context, serviceOrderID string) ([]*domain.AuditEntry, error) {
	out := make([]*domain.AuditEntry, 0)
	r.sc.with(func(d *data) {
		for _, e := range d.audit {
			if e.ServiceOrderID == serviceOrderID {
				v := *e
				out = append(out, &v)
			}
		}
	})
	return out, nil
}

// ── notifications ─────────────────────────────────────────────────────────────

type notificationRepo struct{ sc *scope }

func (r *notificationRepo) CreateBatch(_ context.Context, notifications []*domain.Notification) error {
	r.sc.with(func(d *data) {
		for _, n := range notifications {
			v := *n
			d.notifications = append(d.notifications, &v)
		}
	})
	return nil
}

func (r *notificationRepo) ListByUser(_ context.Context, userID string, unreadOnly bool, limit int) ([]*domain.Notification, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}
	out := make([]*domain.Notification, 0)
	r.sc.with(func(d *data) {
		for i := len(d.notifications) - 1; i >= 0 && len(out) < limit; i-- {
			n := d.notifications[i]
			if n.UserID != userID || (unreadOnly && n.Read) {
				continue
			}
			v := *n
			out = append(out, &v)
		}
	})
	return out, nil
}

func (r *notificationRepo) MarkRead(_ context.Context, userID, id string) error {
	found := false
	r.sc.with(func(d *data) {
		for _, n := range d.notifications {
			if n.ID == id && n.UserID == userID {
				n.Read = true
				found = true
				return
			}
		}
	})
	if !found {
		return errors.NotFound("notification", id)
	}
	return nil
}

// ── users ─────────────────────────────────────────────────────────────────────

type userRepo struct{ sc *scope }

func (r *userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	var out *domain.User
	r.sc.with(func(d *data) {
		if u, ok := d.users[id]; ok {
			v := *u
			out = &v
		}
	})
	if out == nil {
		return nil, errors.NotFound("user", id)
	}
	return out, nil
}

func (r *userRepo) ListByRoles(_ context.Context, roles ...domain.Role) ([]*domain.User, error) {
	out := make([]*domain.User, 0)
	r.sc.with(func(d *data) {
		for _, u := range d.users {
			if u.Active && u.Role.In(roles...) {
				v := *u
				out = append(out, &v)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ── suppliers ─────────────────────────────────────────────────────────────────

type supplierRepo struct{ sc *scope }

func (r *supplierRepo) Create(_ context.Context, s *domain.Supplier) error {
	var err error
	r.sc.with(func(d *data) {
		for _, existing := range d.suppliers {
			if s.CNPJ != nil && existing.CNPJ != nil && *existing.CNPJ == *s.CNPJ {
				err = errors.Conflict(fmt.Sprintf("supplier with CNPJ %s already exists", *s.CNPJ))
				return
			}
		}
		v := *s
		d.suppliers[s.ID] = &v
		d.supplierIDs = append(d.supplierIDs, s.ID)
	})
	return err
}

func (r *supplierRepo) GetByID(_ context.Context, id string) (*domain.Supplier, error) {
	var out *domain.Supplier
	r.sc.with(func(d *data) {
		if s, ok := d.suppliers[id]; ok {
			v := *s
			out = &v
		}
	})
	if out == nil {
		return nil, errors.NotFound("supplier", id)
	}
	return out, nil
}

func (r *supplierRepo) List(_ context.Context, activeOnly bool) ([]*domain.Supplier, error) {
	out := make([]*domain.Supplier, 0)
	r.sc.with(func(d *data) {
		for _, id := range d.supplierIDs {
			s := d.suppliers[id]
			if activeOnly && !s.Active {
				continue
			}
			v := *s
			out = append(out, &v)
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ── sequences ─────────────────────────────────────────────────────────────────

type sequenceRepo struct{ sc *scope }

func (r *sequenceRepo) Next(_ context.Context, prefix string, year int) (int, error) {
	if prefix != domain.PrefixServiceOrder && prefix != domain.PrefixPurchaseOrder {
		return 0, errors.InvalidInput("prefix", fmt.Sprintf("unknown sequence prefix %q", prefix))
	}

	var value int
	r.sc.with(func(d *data) {
		key := sequenceKey{prefix: prefix, year: year}
		last, ok := d.sequences[key]
		if !ok {
			last = highestNumber(d, prefix, year)
		}
		value = last + 1
		d.sequences[key] = value
	})
	return value, nil
}

func highestNumber(d *data, prefix string, year int) int {
	var numbers []string
	switch prefix {
	case domain.PrefixServiceOrder:
		for _, o := range d.orders {
			numbers = append(numbers, o.Number)
		}
	case domain.PrefixPurchaseOrder:
		for _, po := range d.purchases {
			numbers = append(numbers, po.Number)
		}
	}

	highest := 0
	for _, n := range numbers {
		if seq, ok := domain.ParseSequence(n, prefix, year); ok && seq > highest {
			highest = seq
		}
	}
	return highest
}
