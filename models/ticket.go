package models

import (
	"github.com/shopspring/decimal"
)

type TicketType struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	MaxPerOrder int             `json:"max_per_order"`
	Available   bool            `json:"available"`
}

// TicketData is what the artifact generator renders onto a ticket.
type TicketData struct {
	ReferenceNumber string `json:"reference_number"`
	TicketType      string `json:"ticket_type"`
	Quantity        int    `json:"quantity"`
	AttendeeName    string `json:"attendee_name"`
	AttendeeEmail   string `json:"attendee_email"`
	TotalAmount     string `json:"total_amount"`
	Currency        string `json:"currency"`
}
