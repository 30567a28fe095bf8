package services

import (
	"context"

	"unite-tickets/internal/services/pesapal"
)

// PaymentGateway is the surface of the payment provider the payment
// service depends on. The concrete Pesapal gateway is constructed in cmd
// and passed in.
type PaymentGateway interface {
	// RegisterIPN binds a callback URL on the gateway side. Done once per
	// deployment; the returned registration id is persisted and threaded
	// into every order submission.
	RegisterIPN(ctx context.Context, callbackURL string, nt pesapal.NotificationType) (*pesapal.IPNRegistration, error)

	// SubmitOrder submits a purchase and returns the hosted payment redirect.
	SubmitOrder(ctx context.Context, o *pesapal.OrderRequest) (*pesapal.OrderResponse, error)

	// GetTransactionStatus queries the current status of a tracking id.
	GetTransactionStatus(ctx context.Context, orderTrackingID string) (*pesapal.TransactionStatus, error)
}

// Publisher pushes realtime payment events to the payment page.
type Publisher interface {
	Publish(channel string, message map[string]any)
}
