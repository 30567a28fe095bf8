package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment status values for a ticket purchase. Transitions only move
// forward from pending; completed and failed are terminal.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

type TicketPurchase struct {
	ID              string          `json:"id"`
	ReferenceNumber string          `json:"reference_number"`
	TicketType      string          `json:"ticket_type"`
	Quantity        int             `json:"quantity"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Currency        string          `json:"currency"`
	PaymentStatus   string          `json:"payment_status"` // pending, completed, failed

	// Reconciliation fields, populated by the IPN flow only.
	PaymentMethod    string     `json:"payment_method,omitempty"`
	TransactionID    string     `json:"transaction_id,omitempty"`
	PaymentAccount   string     `json:"payment_account,omitempty"`
	ConfirmationCode string     `json:"confirmation_code,omitempty"`
	PaymentDate      *time.Time `json:"payment_date,omitempty"`

	BuyerName  string `json:"buyer_name"`
	BuyerEmail string `json:"buyer_email"`
	BuyerPhone string `json:"buyer_phone,omitempty"`

	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// IsPending reports whether the purchase is still waiting for a gateway
// outcome and may be transitioned.
func (p *TicketPurchase) IsPending() bool {
	return p.PaymentStatus == PaymentStatusPending
}

// CanTransition reports whether the purchase may move to the given status.
// Only pending purchases transition, and only to a terminal status.
func (p *TicketPurchase) CanTransition(status string) bool {
	if !p.IsPending() {
		return false
	}
	return status == PaymentStatusCompleted || status == PaymentStatusFailed
}

// ReconcileUpdate carries the fields the IPN flow writes onto a pending
// purchase. Zero-value fields are not written.
type ReconcileUpdate struct {
	PaymentStatus    string
	PaymentMethod    string
	TransactionID    string
	PaymentAccount   string
	ConfirmationCode string
	PaymentDate      time.Time
}
