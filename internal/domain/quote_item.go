package domain

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/errors"
)

// QuoteItem is one priced line of a quote. TotalPrice is always derived from
// UnitPrice and Quantity; values coming from clients are never trusted.
type QuoteItem struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
}

// NewQuoteItem validates and builds an item.
func NewQuoteItem(description string, quantity int, unitPrice decimal.Decimal) (QuoteItem, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return QuoteItem{}, errors.InvalidInput("items.description", "description is required")
	}
	if quantity <= 0 {
		return QuoteItem{}, errors.InvalidInput("items.quantity", "quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return QuoteItem{}, errors.InvalidInput("items.unitPrice", "unit price cannot be negative")
	}
	if !unitPrice.Equal(unitPrice.Round(2)) {
		return QuoteItem{}, errors.InvalidInput("items.unitPrice", "unit price must have at most 2 decimal places")
	}

	return QuoteItem{
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		TotalPrice:  unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}, nil
}

// UnmarshalJSON rebuilds the item through NewQuoteItem so stored or incoming
// JSON cannot carry an inconsistent total.
func (i *QuoteItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		Description string          `json:"description"`
		Quantity    int             `json:"quantity"`
		UnitPrice   decimal.Decimal `json:"unitPrice"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	item, err := NewQuoteItem(raw.Description, raw.Quantity, raw.UnitPrice)
	if err != nil {
		return err
	}
	*i = item
	return nil
}

// ItemsTotal sums the line totals.
func ItemsTotal(items []QuoteItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.TotalPrice)
	}
	return total
}

// CloneItems returns an independent copy of items.
func CloneItems(items []QuoteItem) []QuoteItem {
	if items == nil {
		return nil
	}
	out := make([]QuoteItem, len(items))
	copy(out, items)
	return out
}
