// Package artifact renders the verifiable ticket artifacts a completed
// purchase entitles the buyer to: the QR payload scanned at the venue
// gate, its PNG encoding, and the printable PDF ticket.
package artifact

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"unite-tickets/models"

	"github.com/go-pdf/fpdf"
	qrcode "github.com/skip2/go-qrcode"
)

const eventLabel = "UNITE-EXPO-2025"

// qrPayload is what gate scanners verify. Field order is fixed by the
// struct, so encoding is deterministic.
type qrPayload struct {
	Event  string `json:"event"`
	Ticket string `json:"ticket"`
	Email  string `json:"email"`
}

// QRContent builds the JSON payload encoded into a ticket's QR code.
// Pure: same inputs always produce the same output.
func QRContent(ticketNumber, attendeeEmail string) string {
	b, _ := json.Marshal(qrPayload{
		Event:  eventLabel,
		Ticket: ticketNumber,
		Email:  attendeeEmail,
	})
	return string(b)
}

// QRPNG encodes content into a 256px PNG QR code.
func QRPNG(content string) ([]byte, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("QRPNG: qrcode.Encode: %w", err)
	}
	return png, nil
}

// QRDataURL encodes content into an image data URL for inline rendering.
func QRDataURL(content string) (string, error) {
	png, err := QRPNG(content)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// TicketPDF composes the printable ticket and writes it to w.
func TicketPDF(w io.Writer, d models.TicketData) error {
	png, err := QRPNG(QRContent(d.ReferenceNumber, d.AttendeeEmail))
	if err != nil {
		return err
	}

	pdf := fpdf.New("P", "mm", "A5", "")
	pdf.SetTitle(fmt.Sprintf("UNITE Expo 2025 Ticket %s", d.ReferenceNumber), false)
	pdf.AddPage()

	// Header band
	pdf.SetFillColor(26, 54, 93)
	pdf.Rect(0, 0, 148, 28, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetXY(10, 8)
	pdf.Cell(0, 8, "UNITE Expo 2025")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetXY(10, 17)
	pdf.Cell(0, 6, "Uganda Next - Investment & Trade Expo")

	pdf.SetTextColor(0, 0, 0)

	writeField := func(label, value string) {
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 5, label, "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 12)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(0, 7, value, "", 1, "L", false, 0, "")
		pdf.Ln(2)
	}

	pdf.SetXY(10, 36)
	writeField("Attendee", d.AttendeeName)
	writeField("Ticket", fmt.Sprintf("%s x%d", d.TicketType, d.Quantity))
	writeField("Reference", d.ReferenceNumber)
	writeField("Amount Paid", fmt.Sprintf("%s %s", d.Currency, d.TotalAmount))

	// QR block on the right
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("ticket-qr", opts, bytes.NewReader(png))
	pdf.ImageOptions("ticket-qr", 95, 40, 42, 42, false, opts, 0, "")

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.SetXY(95, 84)
	pdf.CellFormat(42, 4, "Scan at the entrance", "", 0, "C", false, 0, "")

	pdf.SetXY(10, 190)
	pdf.CellFormat(0, 4, "Kampala International Convention Centre - valid with photo ID", "", 1, "L", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("TicketPDF: pdf.Output: %w", err)
	}
	return nil
}
