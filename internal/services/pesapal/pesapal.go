package pesapal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NotificationType selects the transport the gateway uses for IPN
// deliveries to the registered callback URL.
type NotificationType string

const (
	NotifyGET  NotificationType = "GET"
	NotifyPOST NotificationType = "POST"
)

// ParseNotificationType maps a config string onto a NotificationType,
// defaulting to GET.
func ParseNotificationType(s string) NotificationType {
	if strings.EqualFold(s, string(NotifyPOST)) {
		return NotifyPOST
	}
	return NotifyGET
}

// Transaction status codes as reported by the gateway.
const (
	StatusCodeInvalid   = 0
	StatusCodeCompleted = 1
	StatusCodeFailed    = 2
	StatusCodeReversed  = 3
)

type (
	Config struct {
		BaseURL        string `json:"baseUrl" mapstructure:"base_url"`
		ConsumerKey    string `json:"consumerKey" mapstructure:"consumer_key"`
		ConsumerSecret string `json:"consumerSecret" mapstructure:"consumer_secret"`
	}

	// IPNRegistration is the gateway-side binding of a callback URL.
	// The IPNID must be threaded into every subsequent order submission.
	IPNRegistration struct {
		IPNID            string           `json:"ipn_id"`
		URL              string           `json:"url"`
		NotificationType NotificationType `json:"notification_type"`
	}

	// OrderRequest is the internal purchase intent submitted to the gateway.
	OrderRequest struct {
		Reference      string          `json:"reference"`
		Amount         decimal.Decimal `json:"amount"`
		Currency       string          `json:"currency"`
		Description    string          `json:"description"`
		CallbackURL    string          `json:"callback_url"`
		NotificationID string          `json:"notification_id"`
		BuyerEmail     string          `json:"buyer_email"`
		BuyerPhone     string          `json:"buyer_phone,omitempty"`
		BuyerFirstName string          `json:"buyer_first_name,omitempty"`
		BuyerLastName  string          `json:"buyer_last_name,omitempty"`
	}

	// OrderResponse carries what the payment page needs: the tracking id
	// for later status queries and the hosted payment redirect.
	OrderResponse struct {
		OrderTrackingID   string `json:"order_tracking_id"`
		MerchantReference string `json:"merchant_reference"`
		RedirectURL       string `json:"redirect_url"`
	}

	// TransactionStatus is the gateway's view of a submitted order.
	TransactionStatus struct {
		PaymentStatus     string          `json:"payment_status"`
		StatusCode        int             `json:"status_code"`
		PaymentMethod     string          `json:"payment_method"`
		PaymentAccount    string          `json:"payment_account"`
		ConfirmationCode  string          `json:"confirmation_code"`
		MerchantReference string          `json:"merchant_reference"`
		Amount            decimal.Decimal `json:"amount"`
		Currency          string          `json:"currency"`
		CreatedAt         time.Time       `json:"created_at"`
	}
)

// Completed reports whether the gateway settled the payment. Both the
// descriptive status and the numeric code must agree.
func (t *TransactionStatus) Completed() bool {
	return t.PaymentStatus == "Completed" && t.StatusCode == StatusCodeCompleted
}

// Failed reports whether the gateway rejected the payment.
func (t *TransactionStatus) Failed() bool {
	return t.PaymentStatus == "Failed"
}

// Gateway is the Pesapal v3 API client.
type Gateway struct {
	client *client
}

// New connects to the Pesapal backend, obtains an access token and starts
// the background token refresher.
func New(ctx context.Context, cfg *Config) (*Gateway, error) {
	c := newClient(ctx, &ClientConfig{
		BaseURL:        cfg.BaseURL,
		ConsumerKey:    cfg.ConsumerKey,
		ConsumerSecret: cfg.ConsumerSecret,
	})

	// Connect to the Pesapal backend. Get access token.
	token, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	c.setAccessToken(token)

	// Notify access token expired.
	go c.notifyAccessTokenExpired(ctx)

	return &Gateway{client: c}, nil
}

// RegisterIPN registers the callback URL with the gateway. Done once per
// deployment; the caller persists the returned IPNID.
func (g *Gateway) RegisterIPN(ctx context.Context, callbackURL string, nt NotificationType) (*IPNRegistration, error) {
	reply, err := g.client.registerIPN(ctx, callbackURL, string(nt))
	if err != nil {
		return nil, err
	}

	return &IPNRegistration{
		IPNID:            reply.IPNID,
		URL:              reply.URL,
		NotificationType: nt,
	}, nil
}

// SubmitOrder submits a purchase to the gateway and returns the hosted
// payment redirect.
func (g *Gateway) SubmitOrder(ctx context.Context, o *OrderRequest) (*OrderResponse, error) {
	if o.NotificationID == "" {
		return nil, fmt.Errorf("submitOrder: missing notification_id for reference %s", o.Reference)
	}

	reply, err := g.client.submitOrder(ctx, &orderPayload{
		ID:             o.Reference,
		Currency:       o.Currency,
		Amount:         o.Amount,
		Description:    o.Description,
		CallbackURL:    o.CallbackURL,
		NotificationID: o.NotificationID,
		Billing: billingAddress{
			EmailAddress: o.BuyerEmail,
			PhoneNumber:  o.BuyerPhone,
			FirstName:    o.BuyerFirstName,
			LastName:     o.BuyerLastName,
		},
	})
	if err != nil {
		return nil, err
	}

	return &OrderResponse{
		OrderTrackingID:   reply.OrderTrackingID,
		MerchantReference: reply.MerchantReference,
		RedirectURL:       reply.RedirectURL,
	}, nil
}

// GetTransactionStatus queries the gateway for the current status of a
// tracking id.
func (g *Gateway) GetTransactionStatus(ctx context.Context, orderTrackingID string) (*TransactionStatus, error) {
	reply, err := g.client.checkTransaction(ctx, orderTrackingID)
	if err != nil {
		return nil, err
	}

	return reply.toDomain(), nil
}

func (r *transactionStatusReply) toDomain() *TransactionStatus {
	// The gateway formats created_date without a zone; treat it as local,
	// the way the payment dashboard displays it.
	ts, err := time.ParseInLocation("2006-01-02T15:04:05.999", r.CreatedDate, time.Local)
	if err != nil {
		ts = time.Time{}
	}

	return &TransactionStatus{
		PaymentStatus:     r.PaymentStatusDesc,
		StatusCode:        r.StatusCode,
		PaymentMethod:     r.PaymentMethod,
		PaymentAccount:    r.PaymentAccount,
		ConfirmationCode:  r.ConfirmationCode,
		MerchantReference: r.MerchantReference,
		Amount:            r.Amount,
		Currency:          r.Currency,
		CreatedAt:         ts,
	}
}
