package provider

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/irevahq/payments/internal/domain/model"
)

// CryptoPaymentProvider defines the interface for crypto payment providers
// (CoinGate and compatible gateways).
type CryptoPaymentProvider interface {
	// CreatePayment creates a new payment order with the provider
	CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*CreatePaymentResponse, error)

	// GetPayment fetches the current state of a payment from the provider.
	// Used by the reconciliation poller for transactions stuck in pending.
	GetPayment(ctx context.Context, providerPaymentID string) (*PaymentInfo, error)

	// VerifyWebhook authenticates a webhook delivery against the raw request
	// bytes and the signature header value. A verification error means the
	// request never reaches a handler that touches state.
	VerifyWebhook(rawBody []byte, signature string) error

	// ParseWebhook decodes a verified webhook payload
	ParseWebhook(rawBody []byte) (*WebhookEvent, error)

	// MapStatus translates the provider's status vocabulary into the internal
	// transaction status. The second return reports whether the provider
	// status was recognized; unknown statuses map to pending.
	MapStatus(providerStatus string) (model.TransactionStatus, bool)

	// GetProviderName returns the provider name
	GetProviderName() string
}

// CreatePaymentRequest represents a provider-agnostic payment creation request
type CreatePaymentRequest struct {
	OrderID         string          `json:"order_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	ReceiveCurrency string          `json:"receive_currency,omitempty"`
	Title           string          `json:"title,omitempty"`
	Description     string          `json:"description,omitempty"`
	CallbackURL     string          `json:"callback_url,omitempty"`
}

// CreatePaymentResponse represents the response from payment creation
type CreatePaymentResponse struct {
	ProviderPaymentID string          `json:"provider_payment_id"`
	Status            string          `json:"status"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	PaymentAddress    string          `json:"payment_address,omitempty"`
	PaymentURL        string          `json:"payment_url,omitempty"`
	ExpiresAt         *time.Time      `json:"expires_at,omitempty"`
}

// PaymentInfo is the provider's view of an existing payment
type PaymentInfo struct {
	ProviderPaymentID string          `json:"provider_payment_id"`
	Status            string          `json:"status"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	TxHash            *string         `json:"tx_hash,omitempty"`
	Network           *string         `json:"network,omitempty"`
	Confirmations     int             `json:"confirmations"`
}

// WebhookEvent represents a parsed provider webhook event
type WebhookEvent struct {
	EventID           string                 `json:"event_id"`
	EventType         string                 `json:"event_type"`
	ProviderPaymentID string                 `json:"provider_payment_id"`
	OrderID           string                 `json:"order_id,omitempty"`
	Status            string                 `json:"status"`
	Amount            decimal.Decimal        `json:"amount"`
	Currency          string                 `json:"currency"`
	TxHash            *string                `json:"tx_hash,omitempty"`
	Network           *string                `json:"network,omitempty"`
	Confirmations     int                    `json:"confirmations"`
	Data              map[string]interface{} `json:"data"`
	CreatedAt         time.Time              `json:"created_at"`
}

// ProviderType represents the type of crypto payment provider
type ProviderType string

const (
	ProviderTypeCoinGate ProviderType = "coingate"
)

// Error types for provider operations
type ProviderError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *ProviderError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}
