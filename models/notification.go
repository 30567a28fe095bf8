package models

// IPNNotification is the payload Pesapal delivers to the IPN endpoint,
// either as query parameters (GET) or as a JSON body (POST).
type IPNNotification struct {
	OrderTrackingID        string `json:"OrderTrackingId"`
	OrderMerchantReference string `json:"OrderMerchantReference"`
	OrderNotificationType  string `json:"OrderNotificationType"`
}

// Valid reports whether the notification carries the fields reconciliation
// needs. The notification type is informational and may be empty.
func (n *IPNNotification) Valid() bool {
	return n.OrderTrackingID != "" && n.OrderMerchantReference != ""
}

// IPNAcknowledgment is the response body the gateway expects on every
// notification delivery. The transport status is always HTTP 200; Status
// inside the body carries 200 on accepted notifications and 500 on
// malformed ones.
type IPNAcknowledgment struct {
	OrderNotificationType  string `json:"orderNotificationType"`
	OrderTrackingID        string `json:"orderTrackingId"`
	OrderMerchantReference string `json:"orderMerchantReference"`
	Status                 int    `json:"status"`
}

// Ack builds the acknowledgment envelope for this notification.
func (n *IPNNotification) Ack(status int) IPNAcknowledgment {
	return IPNAcknowledgment{
		OrderNotificationType:  n.OrderNotificationType,
		OrderTrackingID:        n.OrderTrackingID,
		OrderMerchantReference: n.OrderMerchantReference,
		Status:                 status,
	}
}
