package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"unite-tickets/config"
	"unite-tickets/internal/services/pesapal"
	"unite-tickets/internal/status"
	"unite-tickets/models"
	"unite-tickets/monitoring"
	"unite-tickets/utils"

	pubnub "github.com/pubnub/go"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const ipnIDKey = "pesapal:ipn_id"

// Reconciliation outcomes reported back to the IPN handler.
const (
	OutcomeCompleted         = "completed"
	OutcomeFailed            = "failed"
	OutcomeIgnored           = "ignored"
	OutcomeUnmatched         = "unmatched"
	OutcomeAlreadyReconciled = "already_reconciled"
)

// ReconcileResult is what an IPN delivery did to local state. The handler
// decides how to surface it; the gateway always gets the acknowledgment
// envelope regardless.
type ReconcileResult struct {
	Outcome         string `json:"outcome"`
	Reference       string `json:"reference"`
	OrderTrackingID string `json:"order_tracking_id"`
}

type PaymentService struct {
	Redis     *redis.Client
	store     PurchaseStore
	gateway   PaymentGateway
	publisher Publisher
	breaker   *utils.CircuitBreaker
	cfg       *config.Config
}

func NewPaymentService(redisClient *redis.Client, store PurchaseStore, gateway PaymentGateway, publisher Publisher, cfg *config.Config) *PaymentService {
	return &PaymentService{
		Redis:     redisClient,
		store:     store,
		gateway:   gateway,
		publisher: publisher,
		breaker:   utils.NewCircuitBreaker("pesapal"),
		cfg:       cfg,
	}
}

// EnsureIPNRegistration makes sure the gateway knows this deployment's IPN
// endpoint. The registration id is kept in Redis and reused; registering
// runs once per deployment, not per order.
func (s *PaymentService) EnsureIPNRegistration(ctx context.Context) (string, error) {
	ipnID, err := s.Redis.Get(ctx, ipnIDKey).Result()
	if err == nil && ipnID != "" {
		return ipnID, nil
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("EnsureIPNRegistration: redis.Get: %w", err)
	}

	callbackURL := s.cfg.Pesapal.CallbackBaseURL + "/api/tickets/ipn-notification"
	nt := pesapal.ParseNotificationType(s.cfg.Pesapal.IPNNotificationType)

	reg, err := s.gateway.RegisterIPN(ctx, callbackURL, nt)
	if err != nil {
		return "", fmt.Errorf("EnsureIPNRegistration: gateway.RegisterIPN: %w", err)
	}

	if err := s.Redis.Set(ctx, ipnIDKey, reg.IPNID, 0).Err(); err != nil {
		return "", fmt.Errorf("EnsureIPNRegistration: redis.Set: %w", err)
	}

	slog.Info("registered IPN endpoint with gateway", "url", reg.URL, "ipn_id", reg.IPNID)
	return reg.IPNID, nil
}

type PurchaseRequest struct {
	TicketType string `json:"ticket_type"`
	Quantity   int    `json:"quantity"`
	BuyerName  string `json:"buyer_name"`
	BuyerEmail string `json:"buyer_email"`
	BuyerPhone string `json:"buyer_phone"`
}

type PurchaseResponse struct {
	ReferenceNumber string `json:"reference_number"`
	OrderTrackingID string `json:"order_tracking_id"`
	RedirectURL     string `json:"redirect_url"`
}

// InitiateOrder creates a pending purchase record and submits the order to
// the gateway, returning the hosted payment redirect. The purchase record
// is mutated afterwards only by reconciliation.
func (s *PaymentService) InitiateOrder(ctx context.Context, req PurchaseRequest) (*PurchaseResponse, error) {
	if req.BuyerName == "" || req.BuyerEmail == "" {
		return nil, fmt.Errorf("InitiateOrder: missing buyer name or email")
	}
	if req.Quantity < 1 || req.Quantity > s.cfg.MaxTicketsPerOrder {
		return nil, fmt.Errorf("InitiateOrder: quantity out of range: %d", req.Quantity)
	}

	ticketType, err := s.store.FindTicketType(ctx, req.TicketType)
	if err != nil {
		return nil, fmt.Errorf("InitiateOrder: unknown ticket type %q", req.TicketType)
	}
	if !ticketType.Available {
		return nil, fmt.Errorf("InitiateOrder: ticket type %q not on sale", ticketType.Name)
	}
	if ticketType.MaxPerOrder > 0 && req.Quantity > ticketType.MaxPerOrder {
		return nil, fmt.Errorf("InitiateOrder: quantity above limit for %q", ticketType.Name)
	}

	ipnID, err := s.EnsureIPNRegistration(ctx)
	if err != nil {
		return nil, status.ErrIPNNotRegistered
	}

	reference, err := utils.GenerateReference()
	if err != nil {
		return nil, fmt.Errorf("InitiateOrder: utils.GenerateReference: %w", err)
	}

	currency := ticketType.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}
	total := ticketType.Price.Mul(decimalFromInt(req.Quantity))

	purchase, err := s.store.CreatePurchase(ctx, &models.TicketPurchase{
		ReferenceNumber: reference,
		TicketType:      ticketType.Name,
		Quantity:        req.Quantity,
		TotalAmount:     total,
		Currency:        currency,
		PaymentStatus:   models.PaymentStatusPending,
		BuyerName:       req.BuyerName,
		BuyerEmail:      req.BuyerEmail,
		BuyerPhone:      req.BuyerPhone,
	})
	if err != nil {
		return nil, fmt.Errorf("InitiateOrder: store.CreatePurchase: %w", err)
	}

	firstName, lastName := splitName(req.BuyerName)
	order, err := s.gateway.SubmitOrder(ctx, &pesapal.OrderRequest{
		Reference:      purchase.ReferenceNumber,
		Amount:         total,
		Currency:       currency,
		Description:    fmt.Sprintf("UNITE Expo 2025 - %s x%d", ticketType.Name, req.Quantity),
		CallbackURL:    s.cfg.Pesapal.CallbackBaseURL + "/tickets/payment",
		NotificationID: ipnID,
		BuyerEmail:     req.BuyerEmail,
		BuyerPhone:     req.BuyerPhone,
		BuyerFirstName: firstName,
		BuyerLastName:  lastName,
	})
	if err != nil {
		// The pending record stays; the buyer can retry from the payment
		// page without losing the reference.
		return nil, fmt.Errorf("InitiateOrder: gateway.SubmitOrder: %w", err)
	}

	s.cacheStatus(ctx, purchase.ReferenceNumber, map[string]any{
		"status":            models.PaymentStatusPending,
		"order_tracking_id": order.OrderTrackingID,
		"amount":            total.String(),
		"currency":          currency,
	})

	return &PurchaseResponse{
		ReferenceNumber: purchase.ReferenceNumber,
		OrderTrackingID: order.OrderTrackingID,
		RedirectURL:     order.RedirectURL,
	}, nil
}

// ProcessIPN reconciles one gateway notification against the purchase
// record it references. The returned error reports internal failures to
// the handler; it never changes the acknowledgment owed to the gateway.
func (s *PaymentService) ProcessIPN(ctx context.Context, n models.IPNNotification) (*ReconcileResult, error) {
	result := &ReconcileResult{
		Reference:       n.OrderMerchantReference,
		OrderTrackingID: n.OrderTrackingID,
	}

	started := time.Now()
	res, err := s.breaker.Execute(ctx, func() (any, error) {
		return s.gateway.GetTransactionStatus(ctx, n.OrderTrackingID)
	})
	monitoring.TrackGatewayRequest("get_transaction_status", time.Since(started), err == nil)
	if err != nil {
		if errors.Is(err, utils.ErrCircuitOpen) || errors.Is(err, utils.ErrTooManyRequests) {
			return result, status.ErrGatewayUnavailable
		}
		return result, fmt.Errorf("ProcessIPN: gateway.GetTransactionStatus: %w", err)
	}
	ts := res.(*pesapal.TransactionStatus)

	var upd models.ReconcileUpdate
	switch {
	case ts.Completed():
		upd = models.ReconcileUpdate{
			PaymentStatus:    models.PaymentStatusCompleted,
			PaymentMethod:    ts.PaymentMethod,
			TransactionID:    n.OrderTrackingID,
			PaymentAccount:   ts.PaymentAccount,
			ConfirmationCode: ts.ConfirmationCode,
			PaymentDate:      time.Now(),
		}

	case ts.Failed():
		upd = models.ReconcileUpdate{
			PaymentStatus: models.PaymentStatusFailed,
			TransactionID: n.OrderTrackingID,
			PaymentDate:   time.Now(),
		}

	default:
		// Gateway still reports pending (or an unknown status); keep the
		// record untouched and let the next notification settle it.
		result.Outcome = OutcomeIgnored
		return result, nil
	}

	purchase, err := s.store.ApplyReconcile(ctx, n.OrderMerchantReference, upd)
	switch {
	case errors.Is(err, status.ErrPurchaseNotFound):
		// Acknowledged to the gateway anyway; nothing local to update.
		slog.Warn("IPN for unknown merchant reference",
			"reference", n.OrderMerchantReference,
			"order_tracking_id", n.OrderTrackingID,
		)
		result.Outcome = OutcomeUnmatched
		return result, nil

	case errors.Is(err, status.ErrAlreadyReconciled):
		// Replayed or concurrent delivery; first write won.
		result.Outcome = OutcomeAlreadyReconciled
		return result, nil

	case err != nil:
		return result, fmt.Errorf("ProcessIPN: store.ApplyReconcile: %w", err)
	}

	result.Outcome = upd.PaymentStatus
	s.publishTransition(purchase)
	s.cacheStatus(ctx, purchase.ReferenceNumber, map[string]any{
		"status":            purchase.PaymentStatus,
		"order_tracking_id": purchase.TransactionID,
		"payment_method":    purchase.PaymentMethod,
		"confirmation_code": purchase.ConfirmationCode,
	})

	return result, nil
}

// PurchaseStatus serves the payment page's polling. The Redis cache is
// convenience only; the record is authoritative.
func (s *PaymentService) PurchaseStatus(ctx context.Context, reference string) (map[string]string, error) {
	statusKey := fmt.Sprintf("payment:%s", reference)
	cached, err := s.Redis.HGetAll(ctx, statusKey).Result()
	if err == nil && len(cached) > 0 {
		return cached, nil
	}

	purchase, err := s.store.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	data := map[string]string{
		"status":            purchase.PaymentStatus,
		"order_tracking_id": purchase.TransactionID,
		"amount":            purchase.TotalAmount.String(),
		"currency":          purchase.Currency,
	}
	s.cacheStatus(ctx, reference, map[string]any{
		"status":            purchase.PaymentStatus,
		"order_tracking_id": purchase.TransactionID,
		"amount":            purchase.TotalAmount.String(),
		"currency":          purchase.Currency,
	})

	return data, nil
}

// Purchase returns the full purchase record for artifact generation.
func (s *PaymentService) Purchase(ctx context.Context, reference string) (*models.TicketPurchase, error) {
	return s.store.FindByReference(ctx, reference)
}

func (s *PaymentService) publishTransition(p *models.TicketPurchase) {
	if s.publisher == nil {
		return
	}

	channel := fmt.Sprintf("purchase-%s", p.ReferenceNumber)
	s.publisher.Publish(channel, map[string]any{
		"type":             "payment_" + p.PaymentStatus,
		"reference_number": p.ReferenceNumber,
		"transaction_id":   p.TransactionID,
	})
}

func (s *PaymentService) cacheStatus(ctx context.Context, reference string, fields map[string]any) {
	statusKey := fmt.Sprintf("payment:%s", reference)
	for k, v := range fields {
		s.Redis.HSet(ctx, statusKey, k, v)
	}
	s.Redis.Expire(ctx, statusKey, s.cfg.StatusCacheTTL)
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
}

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

// PubNubPublisher adapts the PubNub client to the Publisher interface.
type PubNubPublisher struct {
	PN *pubnub.PubNub
}

func (p *PubNubPublisher) Publish(channel string, message map[string]any) {
	if p.PN == nil {
		return
	}
	if _, _, err := p.PN.Publish().Channel(channel).Message(message).Execute(); err != nil {
		slog.Error("pubnub publish failed", "channel", channel, "error", err)
	}
}
