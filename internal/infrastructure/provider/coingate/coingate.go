package coingate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/irevahq/payments/internal/domain/provider"
)

const defaultBaseURL = "https://api.coingate.com/v2"

// CoinGateProvider implements the CryptoPaymentProvider interface for CoinGate
type CoinGateProvider struct {
	apiKey        string
	webhookSecret []byte
	baseURL       string
	client        *http.Client
	logger        *zap.Logger
}

// NewCoinGateProvider creates a new CoinGate provider. The webhook secret is
// required; config validation rejects an empty one before this is reached.
func NewCoinGateProvider(apiKey, webhookSecret, baseURL string, logger *zap.Logger) *CoinGateProvider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &CoinGateProvider{
		apiKey:        apiKey,
		webhookSecret: []byte(webhookSecret),
		baseURL:       baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// GetProviderName returns the provider name
func (p *CoinGateProvider) GetProviderName() string {
	return string(provider.ProviderTypeCoinGate)
}

// CreatePayment creates a new payment order with CoinGate
// POST /v2/orders
func (p *CoinGateProvider) CreatePayment(ctx context.Context, req *provider.CreatePaymentRequest) (*provider.CreatePaymentResponse, error) {
	form := url.Values{}
	form.Set("order_id", req.OrderID)
	form.Set("price_amount", req.Amount.String())
	form.Set("price_currency", req.Currency)
	if req.ReceiveCurrency != "" {
		form.Set("receive_currency", req.ReceiveCurrency)
	}
	if req.Title != "" {
		form.Set("title", req.Title)
	}
	if req.Description != "" {
		form.Set("description", req.Description)
	}
	if req.CallbackURL != "" {
		form.Set("callback_url", req.CallbackURL)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/orders", bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    "REQUEST_ERROR",
			Message: "Failed to create request",
			Details: err.Error(),
		}
	}
	httpReq.Header.Set("Authorization", "Token "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	respBody, status, err := p.do(httpReq)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, p.apiError(status, respBody)
	}

	var order orderResponse
	if err := json.Unmarshal(respBody, &order); err != nil {
		return nil, &provider.ProviderError{
			Code:    "PARSE_ERROR",
			Message: "Failed to parse response",
			Details: err.Error(),
		}
	}

	p.logger.Info("CoinGate order created",
		zap.Int64("coingate_id", order.ID),
		zap.String("order_id", req.OrderID),
		zap.String("status", order.Status))

	return &provider.CreatePaymentResponse{
		ProviderPaymentID: strconv.FormatInt(order.ID, 10),
		Status:            order.Status,
		Amount:            order.PriceAmount,
		Currency:          order.PriceCurrency,
		PaymentAddress:    order.PaymentAddress,
		PaymentURL:        order.PaymentURL,
		ExpiresAt:         order.ExpireAt,
	}, nil
}

// GetPayment fetches an order from CoinGate
// GET /v2/orders/{id}
func (p *CoinGateProvider) GetPayment(ctx context.Context, providerPaymentID string) (*provider.PaymentInfo, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/orders/"+url.PathEscape(providerPaymentID), nil)
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    "REQUEST_ERROR",
			Message: "Failed to create request",
			Details: err.Error(),
		}
	}
	httpReq.Header.Set("Authorization", "Token "+p.apiKey)

	respBody, status, err := p.do(httpReq)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, p.apiError(status, respBody)
	}

	var order orderResponse
	if err := json.Unmarshal(respBody, &order); err != nil {
		return nil, &provider.ProviderError{
			Code:    "PARSE_ERROR",
			Message: "Failed to parse response",
			Details: err.Error(),
		}
	}

	info := &provider.PaymentInfo{
		ProviderPaymentID: strconv.FormatInt(order.ID, 10),
		Status:            order.Status,
		Amount:            order.PriceAmount,
		Currency:          order.PriceCurrency,
		Confirmations:     order.Confirmations,
	}
	if order.TxHash != "" {
		h := order.TxHash
		info.TxHash = &h
	}
	if order.Network != "" {
		n := order.Network
		info.Network = &n
	}
	return info, nil
}

func (p *CoinGateProvider) do(req *http.Request) ([]byte, int, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Error("CoinGate API request failed",
			zap.String("url", req.URL.String()),
			zap.Error(err))
		return nil, 0, &provider.ProviderError{
			Code:    "API_ERROR",
			Message: "CoinGate API request failed",
			Details: err.Error(),
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &provider.ProviderError{
			Code:    "RESPONSE_ERROR",
			Message: "Failed to read response",
			Details: err.Error(),
		}
	}
	return respBody, resp.StatusCode, nil
}

func (p *CoinGateProvider) apiError(status int, respBody []byte) error {
	var errResp struct {
		Reason  string `json:"reason"`
		Message string `json:"message"`
	}
	json.Unmarshal(respBody, &errResp)

	p.logger.Error("CoinGate API error",
		zap.Int("status_code", status),
		zap.String("reason", errResp.Reason),
		zap.String("response", string(respBody)))

	return &provider.ProviderError{
		Code:    fmt.Sprintf("HTTP_%d", status),
		Message: errResp.Message,
		Details: errResp.Reason,
	}
}

// orderResponse mirrors the fields of a CoinGate order we consume
type orderResponse struct {
	ID             int64           `json:"id"`
	Status         string          `json:"status"`
	PriceAmount    decimal.Decimal `json:"price_amount"`
	PriceCurrency  string          `json:"price_currency"`
	PaymentAddress string          `json:"payment_address"`
	PaymentURL     string          `json:"payment_url"`
	TxHash         string          `json:"tx_hash"`
	Network        string          `json:"network"`
	Confirmations  int             `json:"confirmations"`
	ExpireAt       *time.Time      `json:"expire_at"`
}
