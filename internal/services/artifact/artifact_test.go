package artifact

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"unite-tickets/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQRContent(t *testing.T) {
	content := QRContent("UNITE-A1B2C3D4E5F60708", "grace@example.com")

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(content), &payload))
	assert.Equal(t, "UNITE-EXPO-2025", payload["event"])
	assert.Equal(t, "UNITE-A1B2C3D4E5F60708", payload["ticket"])
	assert.Equal(t, "grace@example.com", payload["email"])
}

func TestQRContent_Deterministic(t *testing.T) {
	// Gate scanners compare payloads byte for byte.
	a := QRContent("UNITE-REF", "a@b.c")
	b := QRContent("UNITE-REF", "a@b.c")
	assert.Equal(t, a, b)

	c := QRContent("UNITE-OTHER", "a@b.c")
	assert.NotEqual(t, a, c)
}

func TestQRPNG(t *testing.T) {
	png, err := QRPNG(QRContent("UNITE-REF", "a@b.c"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestQRDataURL(t *testing.T) {
	url, err := QRDataURL(QRContent("UNITE-REF", "a@b.c"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
	assert.Greater(t, len(url), len("data:image/png;base64,"))
}

func TestTicketPDF(t *testing.T) {
	var buf bytes.Buffer
	err := TicketPDF(&buf, models.TicketData{
		ReferenceNumber: "UNITE-A1B2C3D4E5F60708",
		TicketType:      "Investor Pass",
		Quantity:        2,
		AttendeeName:    "Adong Grace",
		AttendeeEmail:   "grace@example.com",
		TotalAmount:     "500000",
		Currency:        "UGX",
	})
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
	assert.Greater(t, buf.Len(), 1000)
}
