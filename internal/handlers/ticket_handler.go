package handlers

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"

	"unite-tickets/internal/services"
	"unite-tickets/internal/services/artifact"
	"unite-tickets/models"
	"unite-tickets/monitoring"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type TicketHandler struct {
	app            *pocketbase.PocketBase
	paymentService *services.PaymentService
}

func NewTicketHandler(app *pocketbase.PocketBase, paymentService *services.PaymentService) *TicketHandler {
	return &TicketHandler{
		app:            app,
		paymentService: paymentService,
	}
}

// completedPurchase loads a purchase and rejects anything without a
// settled payment; only paid tickets get artifacts.
func (h *TicketHandler) completedPurchase(e *core.RequestEvent) (*models.TicketPurchase, error) {
	reference := e.Request.PathValue("reference")

	purchase, err := h.paymentService.Purchase(e.Request.Context(), reference)
	if err != nil {
		return nil, apis.NewNotFoundError("Ticket not found", nil)
	}
	if purchase.PaymentStatus != models.PaymentStatusCompleted {
		return nil, apis.NewBadRequestError("Ticket payment not completed", nil)
	}

	return purchase, nil
}

// DownloadTicketPDF - printable ticket for a completed purchase
func (h *TicketHandler) DownloadTicketPDF(e *core.RequestEvent) error {
	purchase, err := h.completedPurchase(e)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	err = artifact.TicketPDF(&buf, models.TicketData{
		ReferenceNumber: purchase.ReferenceNumber,
		TicketType:      purchase.TicketType,
		Quantity:        purchase.Quantity,
		AttendeeName:    purchase.BuyerName,
		AttendeeEmail:   purchase.BuyerEmail,
		TotalAmount:     purchase.TotalAmount.String(),
		Currency:        purchase.Currency,
	})
	if err != nil {
		slog.Error("ticket PDF generation failed", "reference", purchase.ReferenceNumber, "error", err)
		return apis.NewInternalServerError("internal error", err)
	}

	monitoring.TrackArtifactDownload("pdf")

	e.Response.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "unite-expo-ticket-"+purchase.ReferenceNumber+".pdf"))
	return e.Blob(http.StatusOK, "application/pdf", buf.Bytes())
}

// TicketQR - QR payload and data URL for inline rendering
func (h *TicketHandler) TicketQR(e *core.RequestEvent) error {
	purchase, err := h.completedPurchase(e)
	if err != nil {
		return err
	}

	content := artifact.QRContent(purchase.ReferenceNumber, purchase.BuyerEmail)
	dataURL, err := artifact.QRDataURL(content)
	if err != nil {
		slog.Error("ticket QR generation failed", "reference", purchase.ReferenceNumber, "error", err)
		return apis.NewInternalServerError("internal error", err)
	}

	monitoring.TrackArtifactDownload("qr")

	return e.JSON(http.StatusOK, map[string]any{
		"reference_number": purchase.ReferenceNumber,
		"content":          content,
		"data_url":         dataURL,
	})
}
