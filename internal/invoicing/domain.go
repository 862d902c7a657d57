// Package invoicing computes invoice totals from line items and tracks
// payments against them.
package invoicing

import (
	"time"

	"github.com/fieldops/fieldops/internal/money"
)

// Item is one invoice line. Total is Quantity × UnitPrice.
type Item struct {
	ID          string       `json:"id"`
	Description string       `json:"description"`
	Quantity    int          `json:"quantity"`
	UnitPrice   money.Amount `json:"unitPrice"`
	Total       money.Amount `json:"total"`
	InvoiceID   string       `json:"invoiceId"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Payment is money received against an invoice.
type Payment struct {
	ID        string       `json:"id"`
	Amount    money.Amount `json:"amount"`
	InvoiceID string       `json:"invoiceId"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Invoice is the priced statement of work for a single job.
type Invoice struct {
	ID        string       `json:"id"`
	JobID     string       `json:"jobId"`
	Subtotal  money.Amount `json:"subtotal"`
	Tax       money.Amount `json:"tax"`
	Total     money.Amount `json:"total"`
	Items     []Item       `json:"items,omitempty"`
	Payments  []Payment    `json:"payments,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Balance is derived from an invoice and its payments; it is never stored.
type Balance struct {
	Total     money.Amount `json:"total"`
	Paid      money.Amount `json:"paid"`
	Remaining money.Amount `json:"remaining"`
	Overpaid  money.Amount `json:"overpaid"`
	Settled   bool         `json:"settled"`
}

// InvoiceWithBalance is an invoice row as shown in the console.
type InvoiceWithBalance struct {
	Invoice
	Balance Balance `json:"balance"`
}

// ItemInput is one line of the "generate invoice" form.
type ItemInput struct {
	Description string       `json:"description" validate:"required,max=500"`
	Quantity    int          `json:"quantity" validate:"gte=1,lte=1000000"`
	UnitPrice   money.Amount `json:"unitPrice" validate:"gte=0"`
}

// GenerateInput is the "generate invoice" form.
type GenerateInput struct {
	Items   []ItemInput `json:"items" validate:"min=1,dive"`
	TaxRate money.Rate  `json:"taxRate"`
}

// PaymentInput is the "collect payment" form.
type PaymentInput struct {
	Amount money.Amount `json:"amount"`
}

// Line is a computed invoice line.
type Line struct {
	Description string       `json:"description"`
	Quantity    int          `json:"quantity"`
	UnitPrice   money.Amount `json:"unitPrice"`
	Total       money.Amount `json:"total"`
}

// Totals is the result of pricing a set of items at a tax rate.
type Totals struct {
	Lines    []Line       `json:"lines"`
	Subtotal money.Amount `json:"subtotal"`
	Tax      money.Amount `json:"tax"`
	Total    money.Amount `json:"total"`
}
