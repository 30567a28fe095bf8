package pesapal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestGateway spins up a fake Pesapal backend. The handler map is keyed
// by path; auth is always served so New() can connect.
func newTestGateway(t *testing.T, handlers map[string]http.HandlerFunc) (*Gateway, *httptest.Server) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/Auth/RequestToken", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var creds struct {
			ConsumerKey    string `json:"consumer_key"`
			ConsumerSecret string `json:"consumer_secret"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "test-key", creds.ConsumerKey)
		assert.Equal(t, "test-secret", creds.ConsumerSecret)

		json.NewEncoder(w).Encode(map[string]any{
			"token":      "test-token",
			"expiryDate": "2026-08-30T12:05:00.000Z",
			"status":     "200",
		})
	})
	for path, h := range handlers {
		mux.HandleFunc(path, h)
	}

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	gw, err := New(context.Background(), &Config{
		BaseURL:        srv.URL,
		ConsumerKey:    "test-key",
		ConsumerSecret: "test-secret",
	})
	require.NoError(t, err)

	return gw, srv
}

func TestNew_AuthFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/Auth/RequestToken", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status": "500",
			"error": map[string]any{
				"error_type": "api_error",
				"code":       "invalid_consumer_key_or_secret_provided",
				"message":    "Invalid Access Request.",
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := New(context.Background(), &Config{
		BaseURL:        srv.URL,
		ConsumerKey:    "bad",
		ConsumerSecret: "bad",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_consumer_key_or_secret_provided")
}

func TestGateway_RegisterIPN(t *testing.T) {
	gw, _ := newTestGateway(t, map[string]http.HandlerFunc{
		"/api/URLSetup/RegisterIPN": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

			var body struct {
				URL              string `json:"url"`
				NotificationType string `json:"ipn_notification_type"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "https://tickets.example.com/api/tickets/ipn-notification", body.URL)
			assert.Equal(t, "GET", body.NotificationType)

			json.NewEncoder(w).Encode(map[string]any{
				"url":                               body.URL,
				"created_date":                      "2026-08-30T10:00:00.000",
				"ipn_id":                            "e32182ca-0983-4fa0-91bc-c3bb813ba750",
				"ipn_notification_type_description": "GET",
				"ipn_status_decription":             "Active",
				"status":                            "200",
			})
		},
	})

	reg, err := gw.RegisterIPN(context.Background(), "https://tickets.example.com/api/tickets/ipn-notification", NotifyGET)
	require.NoError(t, err)
	assert.Equal(t, "e32182ca-0983-4fa0-91bc-c3bb813ba750", reg.IPNID)
	assert.Equal(t, NotifyGET, reg.NotificationType)
}

func TestGateway_SubmitOrder(t *testing.T) {
	gw, _ := newTestGateway(t, map[string]http.HandlerFunc{
		"/api/Transactions/SubmitOrderRequest": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

			var body struct {
				ID             string          `json:"id"`
				Currency       string          `json:"currency"`
				Amount         decimal.Decimal `json:"amount"`
				NotificationID string          `json:"notification_id"`
				Billing        struct {
					EmailAddress string `json:"email_address"`
					FirstName    string `json:"first_name"`
					LastName     string `json:"last_name"`
				} `json:"billing_address"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "UNITE-A1B2C3D4E5F60708", body.ID)
			assert.Equal(t, "UGX", body.Currency)
			assert.True(t, body.Amount.Equal(decimal.NewFromInt(250000)))
			assert.Equal(t, "ipn-123", body.NotificationID)
			assert.Equal(t, "grace@example.com", body.Billing.EmailAddress)
			assert.Equal(t, "Adong", body.Billing.FirstName)
			assert.Equal(t, "Grace", body.Billing.LastName)

			json.NewEncoder(w).Encode(map[string]any{
				"order_tracking_id":  "b945e4af-80a5-4ec1-8706-e03f8332fb04",
				"merchant_reference": body.ID,
				"redirect_url":       "https://pay.pesapal.com/iframe/xyz",
				"status":             "200",
			})
		},
	})

	resp, err := gw.SubmitOrder(context.Background(), &OrderRequest{
		Reference:      "UNITE-A1B2C3D4E5F60708",
		Amount:         decimal.NewFromInt(250000),
		Currency:       "UGX",
		Description:    "UNITE Expo 2025 - Investor Pass x1",
		CallbackURL:    "https://tickets.example.com/payment/complete",
		NotificationID: "ipn-123",
		BuyerEmail:     "grace@example.com",
		BuyerFirstName: "Adong",
		BuyerLastName:  "Grace",
	})
	require.NoError(t, err)
	assert.Equal(t, "b945e4af-80a5-4ec1-8706-e03f8332fb04", resp.OrderTrackingID)
	assert.Equal(t, "UNITE-A1B2C3D4E5F60708", resp.MerchantReference)
	assert.Equal(t, "https://pay.pesapal.com/iframe/xyz", resp.RedirectURL)
}

func TestGateway_SubmitOrder_MissingNotificationID(t *testing.T) {
	gw, _ := newTestGateway(t, nil)

	_, err := gw.SubmitOrder(context.Background(), &OrderRequest{
		Reference: "UNITE-NOIPN",
		Amount:    decimal.NewFromInt(1000),
		Currency:  "UGX",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing notification_id")
}

func TestGateway_GetTransactionStatus(t *testing.T) {
	gw, _ := newTestGateway(t, map[string]http.HandlerFunc{
		"/api/Transactions/GetTransactionStatus": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "b945e4af-80a5-4ec1-8706-e03f8332fb04", r.URL.Query().Get("orderTrackingId"))

			json.NewEncoder(w).Encode(map[string]any{
				"payment_method":             "MpesaKE",
				"amount":                     250000,
				"created_date":               "2026-08-30T11:22:33.583",
				"confirmation_code":          "QLR7A2M3PX",
				"payment_status_description": "Completed",
				"payment_account":            "0700***123",
				"status_code":                1,
				"merchant_reference":         "UNITE-A1B2C3D4E5F60708",
				"currency":                   "UGX",
				"status":                     "200",
			})
		},
	})

	ts, err := gw.GetTransactionStatus(context.Background(), "b945e4af-80a5-4ec1-8706-e03f8332fb04")
	require.NoError(t, err)
	assert.Equal(t, "Completed", ts.PaymentStatus)
	assert.Equal(t, StatusCodeCompleted, ts.StatusCode)
	assert.True(t, ts.Completed())
	assert.False(t, ts.Failed())
	assert.Equal(t, "MpesaKE", ts.PaymentMethod)
	assert.Equal(t, "QLR7A2M3PX", ts.ConfirmationCode)
	assert.Equal(t, "UNITE-A1B2C3D4E5F60708", ts.MerchantReference)
	assert.True(t, ts.Amount.Equal(decimal.NewFromInt(250000)))
	assert.False(t, ts.CreatedAt.IsZero())
}

func TestGateway_GetTransactionStatus_Failed(t *testing.T) {
	gw, _ := newTestGateway(t, map[string]http.HandlerFunc{
		"/api/Transactions/GetTransactionStatus": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"payment_status_description": "Failed",
				"status_code":                2,
				"description":                "Insufficient balance",
				"merchant_reference":         "UNITE-FAIL",
				"status":                     "200",
			})
		},
	})

	ts, err := gw.GetTransactionStatus(context.Background(), "tracking-failed")
	require.NoError(t, err)
	assert.True(t, ts.Failed())
	assert.False(t, ts.Completed())
}

func TestGateway_GetTransactionStatus_ErrorReply(t *testing.T) {
	gw, _ := newTestGateway(t, map[string]http.HandlerFunc{
		"/api/Transactions/GetTransactionStatus": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"status": "500",
				"error": map[string]any{
					"error_type": "api_error",
					"code":       "payment_details_not_found",
					"message":    "Pesapal identifier is invalid",
				},
			})
		},
	})

	_, err := gw.GetTransactionStatus(context.Background(), "unknown-tracking-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payment_details_not_found")
}

func TestGateway_ServerError(t *testing.T) {
	gw, _ := newTestGateway(t, map[string]http.HandlerFunc{
		"/api/Transactions/GetTransactionStatus": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
	})

	_, err := gw.GetTransactionStatus(context.Background(), "any")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestParseNotificationType(t *testing.T) {
	assert.Equal(t, NotifyPOST, ParseNotificationType("POST"))
	assert.Equal(t, NotifyPOST, ParseNotificationType("post"))
	assert.Equal(t, NotifyGET, ParseNotificationType("GET"))
	assert.Equal(t, NotifyGET, ParseNotificationType(""))
	assert.Equal(t, NotifyGET, ParseNotificationType("whatever"))
}

func TestTransactionStatus_Completed(t *testing.T) {
	// The descriptive status and numeric code must agree before a purchase
	// is marked paid.
	ts := &TransactionStatus{PaymentStatus: "Completed", StatusCode: StatusCodeCompleted}
	assert.True(t, ts.Completed())

	ts = &TransactionStatus{PaymentStatus: "Completed", StatusCode: StatusCodeInvalid}
	assert.False(t, ts.Completed())

	ts = &TransactionStatus{PaymentStatus: "Pending", StatusCode: StatusCodeCompleted}
	assert.False(t, ts.Completed())
}
