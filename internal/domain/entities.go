package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Actor is the authenticated caller of every workflow operation. It is always
// passed explicitly.
type Actor struct {
	ID   string
	Role Role
}

// ServiceOrder (OS) is the central work ticket.
type ServiceOrder struct {
	ID          string   `json:"id"`
	Number      string   `json:"number"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Priority    Priority `json:"priority"`
	Location    *string  `json:"location,omitempty"`
	Department  *string  `json:"department,omitempty"`
	CreatedByID string   `json:"createdById"`

	Status                Status   `json:"status"`
	AssignedToID          *string  `json:"assignedToId,omitempty"`
	Diagnosis             *string  `json:"diagnosis,omitempty"`
	Solution              *string  `json:"solution,omitempty"`
	Observations          *string  `json:"observations,omitempty"`
	MaterialDescription   *string  `json:"materialDescription,omitempty"`
	MaterialJustification *string  `json:"materialJustification,omitempty"`
	RequiresMaterial      bool     `json:"requiresMaterial"`
	EstimatedHours        *float64 `json:"estimatedHours,omitempty"`
	ActualHours           *float64 `json:"actualHours,omitempty"`
	AttachedDocument      *string  `json:"attachedDocument,omitempty"`

	Version     int        `json:"version"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	AssignedAt  *time.Time `json:"assignedAt,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Clone returns a deep copy, so a before-image survives mutation.
func (o *ServiceOrder) Clone() *ServiceOrder {
	c := *o
	c.Location = cloneString(o.Location)
	c.Department = cloneString(o.Department)
	c.AssignedToID = cloneString(o.AssignedToID)
	c.Diagnosis = cloneString(o.Diagnosis)
	c.Solution = cloneString(o.Solution)
	c.Observations = cloneString(o.Observations)
	c.MaterialDescription = cloneString(o.MaterialDescription)
	c.MaterialJustification = cloneString(o.MaterialJustification)
	c.AttachedDocument = cloneString(o.AttachedDocument)
	c.EstimatedHours = cloneFloat(o.EstimatedHours)
	c.ActualHours = cloneFloat(o.ActualHours)
	c.AssignedAt = cloneTime(o.AssignedAt)
	c.StartedAt = cloneTime(o.StartedAt)
	c.CompletedAt = cloneTime(o.CompletedAt)
	return &c
}

// Stakeholders returns the creator and the assignee, without duplicates.
func (o *ServiceOrder) Stakeholders() []string {
	ids := []string{o.CreatedByID}
	if o.AssignedToID != nil && *o.AssignedToID != o.CreatedByID {
		ids = append(ids, *o.AssignedToID)
	}
	return ids
}

// Quote is one supplier's offer for an order's material.
type Quote struct {
	ID              string          `json:"id"`
	ServiceOrderID  string          `json:"serviceOrderId"`
	SupplierID      string          `json:"supplierId"`
	RequestedByID   string          `json:"requestedById"`
	Items           []QuoteItem     `json:"items"`
	TotalValue      decimal.Decimal `json:"totalValue"`
	DeliveryDays    *int            `json:"deliveryTime,omitempty"`
	Validity        *time.Time      `json:"validity,omitempty"`
	Observations    *string         `json:"observations,omitempty"`
	Status          QuoteStatus     `json:"status"`
	ApprovedAt      *time.Time      `json:"approvedAt,omitempty"`
	RejectedAt      *time.Time      `json:"rejectedAt,omitempty"`
	RejectionReason *string         `json:"rejectionReason,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func (q *Quote) Clone() *Quote {
	c := *q
	c.Items = CloneItems(q.Items)
	if q.DeliveryDays != nil {
		d := *q.DeliveryDays
		c.DeliveryDays = &d
	}
	c.Validity = cloneTime(q.Validity)
	c.Observations = cloneString(q.Observations)
	c.ApprovedAt = cloneTime(q.ApprovedAt)
	c.RejectedAt = cloneTime(q.RejectedAt)
	c.RejectionReason = cloneString(q.RejectionReason)
	return &c
}

// PurchaseOrder is created once per approved quote and freezes its items.
type PurchaseOrder struct {
	ID              string              `json:"id"`
	Number          string              `json:"number"`
	ServiceOrderID  string              `json:"serviceOrderId"`
	QuoteID         string              `json:"quoteId"`
	SupplierID      string              `json:"supplierId"`
	Items           []QuoteItem         `json:"items"`
	TotalValue      decimal.Decimal     `json:"totalValue"`
	DeliveryAddress *string             `json:"deliveryAddress,omitempty"`
	Status          PurchaseOrderStatus `json:"status"`
	ApprovedAt      time.Time           `json:"approvedAt"`
	SignedAt        *time.Time          `json:"signedAt,omitempty"`
	DeliveredAt     *time.Time          `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

func (p *PurchaseOrder) Clone() *PurchaseOrder {
	c := *p
	c.Items = CloneItems(p.Items)
	c.DeliveryAddress = cloneString(p.DeliveryAddress)
	c.SignedAt = cloneTime(p.SignedAt)
	c.DeliveredAt = cloneTime(p.DeliveredAt)
	return &c
}

// Attachment is a stored file linked to an order.
type Attachment struct {
	ID             string         `json:"id"`
	ServiceOrderID string         `json:"serviceOrderId"`
	Kind           AttachmentKind `json:"kind"`
	FileName       string         `json:"fileName"`
	ContentType    string         `json:"contentType"`
	Size           int64          `json:"size"`
	StorageKey     string         `json:"-"`
	UploadedByID   string         `json:"uploadedById"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// AuditEntry is one immutable audit log row.
type AuditEntry struct {
	ID             string         `json:"id"`
	ServiceOrderID string         `json:"serviceOrderId"`
	UserID         string         `json:"userId"`
	Action         AuditAction    `json:"action"`
	Details        map[string]any `json:"details,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Notification is an in-app message for one user.
type Notification struct {
	ID             string           `json:"id"`
	UserID         string           `json:"userId"`
	ServiceOrderID *string          `json:"serviceOrderId,omitempty"`
	Type           NotificationType `json:"type"`
	Title          string           `json:"title"`
	Message        string           `json:"message"`
	ActionURL      *string          `json:"actionUrl,omitempty"`
	ActionText     *string          `json:"actionText,omitempty"`
	Read           bool             `json:"read"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// User is read from the municipal directory.
type User struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Role       Role    `json:"role"`
	Department *string `json:"department,omitempty"`
	Active     bool    `json:"active"`
}

// Supplier receives quote requests and purchase orders.
type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CNPJ      *string   `json:"cnpj,omitempty"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
