package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"unite-tickets/internal/services"
	"unite-tickets/internal/status"
	"unite-tickets/models"
	"unite-tickets/monitoring"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type PaymentHandler struct {
	app            *pocketbase.PocketBase
	paymentService *services.PaymentService
	publisher      services.Publisher
}

func NewPaymentHandler(app *pocketbase.PocketBase, paymentService *services.PaymentService, publisher services.Publisher) *PaymentHandler {
	return &PaymentHandler{
		app:            app,
		paymentService: paymentService,
		publisher:      publisher,
	}
}

// IPNNotificationGET - gateway notification with parameters in the query string
func (h *PaymentHandler) IPNNotificationGET(e *core.RequestEvent) error {
	return h.reconcile(e, parseIPNQuery(e.Request.URL.Query()))
}

func parseIPNQuery(q url.Values) models.IPNNotification {
	return models.IPNNotification{
		OrderTrackingID:        q.Get("OrderTrackingId"),
		OrderMerchantReference: q.Get("OrderMerchantReference"),
		OrderNotificationType:  q.Get("OrderNotificationType"),
	}
}

// IPNNotificationPOST - gateway notification with a JSON body
func (h *PaymentHandler) IPNNotificationPOST(e *core.RequestEvent) error {
	var n models.IPNNotification
	if err := e.BindBody(&n); err != nil {
		// Unparseable body is the same as missing fields: the gateway
		// still expects its acknowledgment shape on HTTP 200.
		return e.JSON(http.StatusOK, n.Ack(http.StatusInternalServerError))
	}

	return h.reconcile(e, n)
}

// reconcile runs the shared IPN path. The transport status is always
// HTTP 200; the body's status field tells the gateway whether the
// notification was acceptable.
func (h *PaymentHandler) reconcile(e *core.RequestEvent, n models.IPNNotification) error {
	if !n.Valid() {
		monitoring.TrackIPNNotification("invalid")
		return e.JSON(http.StatusOK, n.Ack(http.StatusInternalServerError))
	}

	result, err := h.paymentService.ProcessIPN(e.Request.Context(), n)
	if err != nil {
		// Internal failure stays internal: log it, count it, and still
		// acknowledge so the gateway's retry policy can redeliver.
		slog.Error("IPN reconciliation failed",
			"reference", n.OrderMerchantReference,
			"order_tracking_id", n.OrderTrackingID,
			"error", err,
		)
		monitoring.TrackIPNNotification("error")
		return e.JSON(http.StatusOK, n.Ack(http.StatusOK))
	}

	monitoring.TrackIPNNotification(result.Outcome)
	return e.JSON(http.StatusOK, n.Ack(http.StatusOK))
}

// SubmitPurchase - create a pending purchase and return the gateway redirect
func (h *PaymentHandler) SubmitPurchase(e *core.RequestEvent) error {
	var req services.PurchaseRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	resp, err := h.paymentService.InitiateOrder(e.Request.Context(), req)
	if err != nil {
		if errors.Is(err, status.ErrIPNNotRegistered) {
			slog.Error("order submission without IPN registration", "error", err)
			return apis.NewInternalServerError("payment gateway unavailable", err)
		}
		return apis.NewBadRequestError("Failed to submit purchase", err)
	}

	return e.JSON(http.StatusOK, resp)
}

// CheckPurchaseStatus - payment page polling endpoint
func (h *PaymentHandler) CheckPurchaseStatus(e *core.RequestEvent) error {
	reference := e.Request.PathValue("reference")

	data, err := h.paymentService.PurchaseStatus(e.Request.Context(), reference)
	if err != nil {
		return apis.NewNotFoundError("Purchase not found", nil)
	}

	return e.JSON(http.StatusOK, data)
}

// SimulatePayment - push a payment event to the purchase channel (for testing)
func (h *PaymentHandler) SimulatePayment(e *core.RequestEvent) error {
	var req struct {
		ReferenceNumber string `json:"reference_number"`
		Status          string `json:"status"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	h.publisher.Publish("purchase-"+req.ReferenceNumber, map[string]any{
		"type":             "payment_" + req.Status,
		"reference_number": req.ReferenceNumber,
	})

	return e.JSON(http.StatusOK, map[string]any{"message": "Payment simulation sent"})
}
