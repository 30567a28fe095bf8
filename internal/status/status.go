package status

import "errors"

var (
	ErrPurchaseNotFound   = errors.New("purchase: reference number not found")
	ErrAlreadyReconciled  = errors.New("purchase: already in a terminal payment status")
	ErrIPNNotRegistered   = errors.New("pesapal: ipn url not registered")
	ErrGatewayUnavailable = errors.New("pesapal: gateway unavailable")
)
