package pesapal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type ClientConfig struct {
	BaseURL        string `json:"baseUrl" mapstructure:"base_url"`
	ConsumerKey    string `json:"consumerKey" mapstructure:"consumer_key"`
	ConsumerSecret string `json:"consumerSecret" mapstructure:"consumer_secret"`
}

type client struct {
	// baseURL is the base url of the Pesapal v3 API.
	baseURL string

	// consumerKey identifies the merchant account.
	consumerKey string

	// consumerSecret authenticates the merchant account.
	consumerSecret string

	// accessToken is the bearer token used on every API call.
	accessToken string

	// mu is used to lock access token.
	mu sync.Mutex

	// toggleTokenRefresher is used to notify token refresher to refresh token.
	toggleTokenRefresher chan struct{}

	// hc is the http client.
	hc *http.Client
}

func newClient(_ context.Context, c *ClientConfig) *client {
	return &client{
		baseURL:        c.BaseURL,
		consumerKey:    c.ConsumerKey,
		consumerSecret: c.ConsumerSecret,

		// make a buffered channel to avoid blocking.
		toggleTokenRefresher: make(chan struct{}, 1),

		// set http client with timeout.
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// replyError is the error object Pesapal embeds in every reply. A nil or
// zero value means the call succeeded.
type replyError struct {
	ErrorType string `json:"error_type"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

func (e *replyError) isError() bool {
	return e != nil && (e.Code != "" || e.Message != "")
}

// notifyAccessTokenExpired do infinite loop with period of time
// to perform auto renew token from the Pesapal backend with
// exponential backOff strategy. Pesapal tokens expire after five minutes.
func (c *client) notifyAccessTokenExpired(ctx context.Context) {
	ticker := time.NewTicker(4 * time.Minute)
	for {
		select {
		case <-ctx.Done():
			ticker.Stop()
			return

		case <-ticker.C:

		case <-c.toggleTokenRefresher:
			log.Println("notifyAccessTokenExpired: toggleTokenRefresher => token refreshed")
		}

		// reconnect with exponential backOff strategy
		backOff := time.Second

	Retry:
		for {
			token, err := c.connect(ctx)
			switch err {
			case nil:
				c.setAccessToken(token)

				break Retry

			default:
				log.Printf("notifyAccessTokenExpired: %v", err)
				select {
				case <-ctx.Done():
					return

				case <-time.After(backOff):
					backOff *= 2
				}
			}
		}
	}
}

// setAccessToken set access token to client.
func (c *client) setAccessToken(accessToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = accessToken
}

// getAccessToken get access token from client.
func (c *client) getAccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// connect makes http call to perform authentication with the Pesapal backend.
func (c *client) connect(ctx context.Context) (string, error) {
	body := fmt.Sprintf(`{"consumer_key":%q,"consumer_secret":%q}`, c.consumerKey, c.consumerSecret)
	bodyReader := bytes.NewReader([]byte(body))

	_baseURL, _ := url.Parse(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s%s", _baseURL.String(), "/api/Auth/RequestToken"), bodyReader)
	if err != nil {
		return "", fmt.Errorf("connectPesapal: http.NewReq: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("connectPesapal: http.Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("connectPesapal: resp.StatusCode: %d", resp.StatusCode)
	}

	var reply struct {
		Token      string      `json:"token"`
		ExpiryDate string      `json:"expiryDate"`
		Error      *replyError `json:"error"`
		Status     string      `json:"status"`
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return "", fmt.Errorf("connectPesapal: json.Decode: %v", err)
	}
	if reply.Error.isError() || reply.Token == "" {
		return "", fmt.Errorf("connectPesapal: reply.Status: %v, reply.Error: %+v", reply.Status, reply.Error)
	}

	return fmt.Sprintf("Bearer %s", reply.Token), nil
}

// registerIPNPayload mirrors /api/URLSetup/RegisterIPN.
type registerIPNReply struct {
	URL                  string      `json:"url"`
	CreatedDate          string      `json:"created_date"`
	IPNID                string      `json:"ipn_id"`
	NotificationTypeDesc string      `json:"ipn_notification_type_description"`
	IPNStatusDesc        string      `json:"ipn_status_decription"`
	Error                *replyError `json:"error"`
	Status               string      `json:"status"`
}

// registerIPN registers (or re-registers) a callback URL with the gateway.
func (c *client) registerIPN(ctx context.Context, callbackURL string, notificationType string) (*registerIPNReply, error) {
	body := fmt.Sprintf(`{"url":%q,"ipn_notification_type":%q}`, callbackURL, notificationType)
	bodyReader := bytes.NewReader([]byte(body))

	_baseURL, _ := url.Parse(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s%s", _baseURL.String(), "/api/URLSetup/RegisterIPN"), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("registerIPN: http.NewReq: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.getAccessToken())

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registerIPN: http.Do: %v", err)
	}
	defer resp.Body.Close()

	// toggle token refresher if unauthorized
	if resp.StatusCode == http.StatusUnauthorized {
		c.toggleTokenRefresher <- struct{}{}
		return nil, errors.New("registerIPN: resp.StatusCode: 401 => Unauthorized")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registerIPN: resp.StatusCode: %d", resp.StatusCode)
	}

	var reply registerIPNReply
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return nil, fmt.Errorf("registerIPN: json.Decode: %v", err)
	}
	if reply.Error.isError() || reply.IPNID == "" {
		return nil, fmt.Errorf("registerIPN: reply.Status: %v, reply.Error: %+v", reply.Status, reply.Error)
	}

	return &reply, nil
}

// orderPayload mirrors /api/Transactions/SubmitOrderRequest.
type orderPayload struct {
	ID             string          `json:"id"`
	Currency       string          `json:"currency"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description"`
	CallbackURL    string          `json:"callback_url"`
	NotificationID string          `json:"notification_id"`
	Billing        billingAddress  `json:"billing_address"`
}

type billingAddress struct {
	EmailAddress string `json:"email_address"`
	PhoneNumber  string `json:"phone_number,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
}

type submitOrderReply struct {
	OrderTrackingID   string      `json:"order_tracking_id"`
	MerchantReference string      `json:"merchant_reference"`
	RedirectURL       string      `json:"redirect_url"`
	Error             *replyError `json:"error"`
	Status            string      `json:"status"`
}

// submitOrder submits an order payload to the gateway.
func (c *client) submitOrder(ctx context.Context, p *orderPayload) (*submitOrderReply, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("submitOrder: json.Marshal: %v", err)
	}
	body := bytes.NewBuffer(b)

	_baseURL, _ := url.Parse(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s%s", _baseURL.String(), "/api/Transactions/SubmitOrderRequest"), body)
	if err != nil {
		return nil, fmt.Errorf("submitOrder: http.NewReq: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.getAccessToken())

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submitOrder: http.Do: %v", err)
	}
	defer resp.Body.Close()

	// toggle token refresher if unauthorized
	if resp.StatusCode == http.StatusUnauthorized {
		c.toggleTokenRefresher <- struct{}{}
		return nil, errors.New("submitOrder: resp.StatusCode: 401 => Unauthorized")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("submitOrder: resp.StatusCode: %d", resp.StatusCode)
	}

	var reply submitOrderReply
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return nil, fmt.Errorf("submitOrder: json.Decode: %v", err)
	}
	if reply.Error.isError() || reply.OrderTrackingID == "" {
		return nil, fmt.Errorf("submitOrder: reply.Status: %v, reply.Error: %+v", reply.Status, reply.Error)
	}

	return &reply, nil
}

// transactionStatusReply mirrors /api/Transactions/GetTransactionStatus.
type transactionStatusReply struct {
	PaymentMethod     string          `json:"payment_method"`
	Amount            decimal.Decimal `json:"amount"`
	CreatedDate       string          `json:"created_date"`
	ConfirmationCode  string          `json:"confirmation_code"`
	PaymentStatusDesc string          `json:"payment_status_description"`
	Description       string          `json:"description"`
	Message           string          `json:"message"`
	PaymentAccount    string          `json:"payment_account"`
	CallBackURL       string          `json:"call_back_url"`
	StatusCode        int             `json:"status_code"`
	MerchantReference string          `json:"merchant_reference"`
	Currency          string          `json:"currency"`
	Error             *replyError     `json:"error"`
	Status            string          `json:"status"`
}

// checkTransaction queries transaction status by tracking id.
func (c *client) checkTransaction(ctx context.Context, orderTrackingID string) (*transactionStatusReply, error) {
	queryParams := url.Values{}
	queryParams.Set("orderTrackingId", orderTrackingID)

	_baseURL, _ := url.Parse(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/Transactions/GetTransactionStatus?%s", _baseURL.String(), queryParams.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("checkTransaction: http.NewReq: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.getAccessToken())

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checkTransaction: http.Do: %v", err)
	}
	defer resp.Body.Close()

	// toggle token refresher if unauthorized
	if resp.StatusCode == http.StatusUnauthorized {
		c.toggleTokenRefresher <- struct{}{}
		return nil, errors.New("checkTransaction: resp.StatusCode: 401 => Unauthorized")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("checkTransaction: resp.StatusCode: %d", resp.StatusCode)
	}

	var reply transactionStatusReply
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return nil, fmt.Errorf("checkTransaction: json.Decode: %v", err)
	}
	if reply.Error.isError() {
		return nil, fmt.Errorf("checkTransaction: reply.Status: %v, reply.Error: %+v", reply.Status, reply.Error)
	}

	return &reply, nil
}
