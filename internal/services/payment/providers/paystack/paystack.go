package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bisonbooks/backend/internal/models"
	"github.com/bisonbooks/backend/internal/utils"
)

// PaystackProvider talks to the Paystack transactions API
type PaystackProvider struct {
	secretKey  string
	publicKey  string
	baseURL    string
	httpClient *http.Client
}

// PaystackConfig holds configuration for the Paystack provider
type PaystackConfig struct {
	SecretKey string
	PublicKey string
	BaseURL   string
	Timeout   time.Duration
}

// NewPaystackProvider creates a new Paystack provider
func NewPaystackProvider(config PaystackConfig) *PaystackProvider {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &PaystackProvider{
		secretKey:  config.SecretKey,
		publicKey:  config.PublicKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// InitializeTransactionRequest is the body of POST /transaction/initialize
type InitializeTransactionRequest struct {
	Amount      int64                   `json:"amount"`
	Email       string                  `json:"email"`
	Currency    string                  `json:"currency,omitempty"`
	Reference   string                  `json:"reference,omitempty"`
	CallbackURL string                  `json:"callback_url,omitempty"`
	Metadata    models.CheckoutMetadata `json:"metadata"`
}

// InitializeTransactionResponse represents a response from Paystack
type InitializeTransactionResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

// TransactionData is the transaction object Paystack returns from verify
// and embeds in webhook events
type TransactionData struct {
	ID              int64           `json:"id"`
	Domain          string          `json:"domain"`
	Status          string          `json:"status"`
	Reference       string          `json:"reference"`
	Amount          int64           `json:"amount"`
	Currency        string          `json:"currency"`
	GatewayResponse string          `json:"gateway_response"`
	Channel         string          `json:"channel"`
	PaidAt          string          `json:"paid_at"`
	Metadata        json.RawMessage `json:"metadata"`
	Authorization   struct {
		AuthorizationCode string `json:"authorization_code"`
		CardType          string `json:"card_type"`
		Last4             string `json:"last4"`
		Bank              string `json:"bank"`
		Reusable          bool   `json:"reusable"`
	} `json:"authorization"`
	Customer struct {
		ID           int64  `json:"id"`
		Email        string `json:"email"`
		CustomerCode string `json:"customer_code"`
	} `json:"customer"`
}

// VerifyTransactionResponse represents a response from Paystack verification
type VerifyTransactionResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    TransactionData `json:"data"`
}

// WebhookEvent represents a Paystack webhook payload
type WebhookEvent struct {
	Event string          `json:"event"`
	Data  TransactionData `json:"data"`
}

// CreatePaymentLink initializes a transaction and returns the hosted checkout link
func (p *PaystackProvider) CreatePaymentLink(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutSession, error) {
	body := InitializeTransactionRequest{
		Amount:      req.Amount,
		Email:       req.Email,
		Currency:    string(req.Currency),
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
		Metadata:    req.Metadata,
	}

	var resp InitializeTransactionResponse
	if err := p.do(ctx, http.MethodPost, "/transaction/initialize", body, &resp); err != nil {
		return nil, err
	}

	if !resp.Status {
		return nil, fmt.Errorf("paystack error: %s", resp.Message)
	}

	return &models.CheckoutSession{
		AuthorizationURL: resp.Data.AuthorizationURL,
		AccessCode:       resp.Data.AccessCode,
		Reference:        resp.Data.Reference,
	}, nil
}

// VerifyPayment looks up a transaction by reference
func (p *PaystackProvider) VerifyPayment(ctx context.Context, reference string) (*models.PaymentVerification, error) {
	if reference == "" {
		return nil, fmt.Errorf("paystack: empty reference")
	}

	var resp VerifyTransactionResponse
	if err := p.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &resp); err != nil {
		return nil, err
	}

	if !resp.Status {
		return nil, fmt.Errorf("paystack error: %s", resp.Message)
	}

	return resp.Data.toVerification()
}

// VerifyWebhookSignature checks the X-Paystack-Signature header against the raw body
func (p *PaystackProvider) VerifyWebhookSignature(body []byte, signature string) bool {
	if signature == "" || p.secretKey == "" {
		return false
	}
	return utils.VerifyHMACSHA512Hex(body, signature, p.secretKey)
}

// ParseWebhook decodes a webhook body into an event and its verification view
func (p *PaystackProvider) ParseWebhook(body []byte) (string, *models.PaymentVerification, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return "", nil, fmt.Errorf("error parsing webhook payload: %w", err)
	}

	verification, err := event.Data.toVerification()
	if err != nil {
		return event.Event, nil, err
	}
	return event.Event, verification, nil
}

func (d TransactionData) toVerification() (*models.PaymentVerification, error) {
	metadata, err := decodeMetadata(d.Metadata)
	if err != nil {
		return nil, err
	}

	return &models.PaymentVerification{
		Reference:         d.Reference,
		Status:            models.PaymentStatus(d.Status),
		Amount:            d.Amount,
		Currency:          models.Currency(d.Currency),
		AuthorizationCode: d.Authorization.AuthorizationCode,
		CustomerCode:      d.Customer.CustomerCode,
		CustomerEmail:     d.Customer.Email,
		Metadata:          metadata,
	}, nil
}

// decodeMetadata accepts metadata as an object, a JSON-encoded string, or
// empty. Paystack echoes back whichever form the transaction was created with.
func decodeMetadata(raw json.RawMessage) (models.CheckoutMetadata, error) {
	var metadata models.CheckoutMetadata
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte(`""`)) {
		return metadata, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return metadata, fmt.Errorf("error parsing metadata: %w", err)
		}
		raw = []byte(s)
	}

	if err := json.Unmarshal(raw, &metadata); err != nil {
		return metadata, fmt.Errorf("error parsing metadata: %w", err)
	}
	return metadata, nil
}

func (p *PaystackProvider) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reqBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error marshaling request: %w", err)
		}
		reader = bytes.NewReader(reqBody)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+p.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("error parsing response (status %d): %w", resp.StatusCode, err)
	}

	return nil
}
