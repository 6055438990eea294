package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/domain"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/service"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/workflow"
)

type createServiceOrderBody struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"required"`
	Category    domain.Category `json:"category" validate:"required"`
	Priority    domain.Priority `json:"priority"`
	Location    *string         `json:"location,omitempty"`
	Department  *string         `json:"department,omitempty"`
}

func (b createServiceOrderBody) request() *service.CreateServiceOrderRequest {
	return &service.CreateServiceOrderRequest{
		Title:       b.Title,
		Description: b.Description,
		Category:    b.Category,
		Priority:    b.Priority,
		Location:    b.Location,
		Department:  b.Department,
	}
}

type assignBody struct {
	TechnicianID string `json:"technicianId" validate:"required"`
}

type transitionBody struct {
	TargetStatus domain.Status `json:"targetStatus" validate:"required"`
	workflow.FieldUpdate
	SelectedQuoteID *string `json:"selectedQuoteId,omitempty"`
	DeliveryAddress *string `json:"deliveryAddress,omitempty"`
}

func (b transitionBody) request(orderID string) *service.TransitionRequest {
	return &service.TransitionRequest{
		OrderID:      orderID,
		TargetStatus: b.TargetStatus,
		Payload: service.TransitionPayload{
			FieldUpdate:     b.FieldUpdate,
			SelectedQuoteID: b.SelectedQuoteID,
			DeliveryAddress: b.DeliveryAddress,
		},
	}
}

type itemBody struct {
	Description string          `json:"description" validate:"required"`
	Quantity    int             `json:"quantity" validate:"gt=0"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

func items(in []itemBody) []service.ItemRequest {
	out := make([]service.ItemRequest, 0, len(in))
	for _, it := range in {
		out = append(out, service.ItemRequest{Description: it.Description, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return out
}

type solicitBody struct {
	SupplierIDs  []string   `json:"supplierIds" validate:"min=2,dive,required"`
	Items        []itemBody `json:"items" validate:"min=1,dive"`
	Observations *string    `json:"observations,omitempty"`
}

type registerQuoteBody struct {
	SupplierID   string     `json:"supplierId"`
	Items        []itemBody `json:"items" validate:"min=1,dive"`
	DeliveryDays *int       `json:"deliveryDays,omitempty" validate:"omitempty,gte=0"`
	Validity     *time.Time `json:"validity,omitempty"`
	Observations *string    `json:"observations,omitempty"`
}

func (b registerQuoteBody) request(orderID, quoteID string) *service.RegisterQuoteRequest {
	return &service.RegisterQuoteRequest{
		OrderID:      orderID,
		QuoteID:      quoteID,
		SupplierID:   b.SupplierID,
		Items:        items(b.Items),
		DeliveryDays: b.DeliveryDays,
		Validity:     b.Validity,
		Observations: b.Observations,
	}
}

type decisionBody struct {
	Action          string  `json:"action" validate:"required,oneof=approve reject"`
	Reason          string  `json:"reason"`
	Observations    *string `json:"observations,omitempty"`
	DeliveryAddress *string `json:"deliveryAddress,omitempty"`
}

type createSupplierBody struct {
	Name  string  `json:"name" validate:"required"`
	CNPJ  *string `json:"cnpj,omitempty"`
	Email string  `json:"email" validate:"required,email"`
	Phone *string `json:"phone,omitempty"`
}

type listResponse[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page,omitempty"`
	PageSize int `json:"pageSize,omitempty"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}
