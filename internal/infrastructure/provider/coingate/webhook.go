package coingate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/irevahq/payments/internal/domain/model"
	"github.com/irevahq/payments/internal/domain/provider"
)

// ErrInvalidSignature is returned when a webhook signature does not match
var ErrInvalidSignature = &provider.ProviderError{
	Code:    "INVALID_SIGNATURE",
	Message: "webhook signature verification failed",
}

// VerifyWebhook checks the hex-encoded HMAC-SHA256 of the raw body against
// the signature header value using a constant-time comparison.
func (p *CoinGateProvider) VerifyWebhook(rawBody []byte, signature string) error {
	if signature == "" {
		return &provider.ProviderError{
			Code:    "MISSING_SIGNATURE",
			Message: "webhook signature header is missing",
		}
	}
	if len(rawBody) == 0 {
		return &provider.ProviderError{
			Code:    "EMPTY_BODY",
			Message: "webhook body is empty",
		}
	}

	mac := hmac.New(sha256.New, p.webhookSecret)
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// webhookPayload mirrors the CoinGate callback body
type webhookPayload struct {
	ID            int64           `json:"id"`
	OrderID       string          `json:"order_id"`
	Status        string          `json:"status"`
	PriceAmount   decimal.Decimal `json:"price_amount"`
	PriceCurrency string          `json:"price_currency"`
	TxHash        string          `json:"tx_hash"`
	Network       string          `json:"network"`
	Confirmations int             `json:"confirmations"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ParseWebhook decodes a verified callback body into a provider event
func (p *CoinGateProvider) ParseWebhook(rawBody []byte) (*provider.WebhookEvent, error) {
	var payload webhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, &provider.ProviderError{
			Code:    "PARSE_ERROR",
			Message: "failed to parse webhook payload",
			Details: err.Error(),
		}
	}
	if payload.ID == 0 {
		return nil, &provider.ProviderError{
			Code:    "MISSING_PAYMENT_ID",
			Message: "webhook payload has no payment id",
		}
	}

	var data map[string]interface{}
	if err := json.Unmarshal(rawBody, &data); err != nil {
		data = map[string]interface{}{}
	}

	providerPaymentID := strconv.FormatInt(payload.ID, 10)
	createdAt := payload.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	event := &provider.WebhookEvent{
		// CoinGate callbacks carry no event id of their own; the payment id
		// plus status uniquely identifies the state change being reported.
		EventID:           fmt.Sprintf("coingate-%s-%s", providerPaymentID, payload.Status),
		EventType:         "order." + payload.Status,
		ProviderPaymentID: providerPaymentID,
		OrderID:           payload.OrderID,
		Status:            payload.Status,
		Amount:            payload.PriceAmount,
		Currency:          payload.PriceCurrency,
		Confirmations:     payload.Confirmations,
		Data:              data,
		CreatedAt:         createdAt,
	}
	if payload.TxHash != "" {
		h := payload.TxHash
		event.TxHash = &h
	}
	if payload.Network != "" {
		n := payload.Network
		event.Network = &n
	}
	return event, nil
}

// MapStatus translates CoinGate's status vocabulary into the internal enum.
// Unknown statuses map to pending; the caller logs them (they are never
// dropped and never crash the handler).
func (p *CoinGateProvider) MapStatus(providerStatus string) (model.TransactionStatus, bool) {
	switch providerStatus {
	case "new", "pending", "confirming":
		return model.TransactionStatusPending, true
	case "paid":
		return model.TransactionStatusConfirmed, true
	case "invalid", "canceled", "refunded":
		return model.TransactionStatusFailed, true
	case "expired":
		return model.TransactionStatusExpired, true
	default:
		p.logger.Warn("Unknown CoinGate payment status",
			zap.String("status", providerStatus))
		return model.TransactionStatusPending, false
	}
}
