package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/irevahq/payments/internal/usecase"
)

// CryptoWebhookHandler handles crypto payment provider webhook callbacks
type CryptoWebhookHandler struct {
	logger          *zap.Logger
	payments        *usecase.PaymentService
	signatureHeader string
}

// NewCryptoWebhookHandler creates a new CryptoWebhookHandler instance. The
// signature header name comes from configuration (provider documentation),
// never an assumption baked into code.
func NewCryptoWebhookHandler(logger *zap.Logger, payments *usecase.PaymentService, signatureHeader string) *CryptoWebhookHandler {
	return &CryptoWebhookHandler{
		logger:          logger,
		payments:        payments,
		signatureHeader: signatureHeader,
	}
}

// Handle processes one webhook delivery. Authentication and payload errors
// answer 4xx with no state touched; infrastructure errors answer 5xx so the
// provider's retry mechanism redelivers.
func (h *CryptoWebhookHandler) Handle(c echo.Context) error {
	ctx := c.Request().Context()

	rawBody, ok := RawBody(c)
	if !ok {
		h.logger.Error("Webhook route missing raw body capture middleware")
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Internal error",
			"code":  "INTERNAL_ERROR",
		})
	}

	signature := c.Request().Header.Get(h.signatureHeader)

	err := h.payments.ProcessWebhook(ctx, rawBody, signature)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrWebhookAuthentication):
			h.logger.Warn("Rejected webhook with bad signature",
				zap.String("remote_ip", c.RealIP()))
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"error": "Invalid signature",
				"code":  "INVALID_SIGNATURE",
			})
		case errors.Is(err, usecase.ErrWebhookPayload):
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error": "Invalid payload",
				"code":  "INVALID_PAYLOAD",
			})
		default:
			h.logger.Error("Webhook processing failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{
				"error": "Failed to process webhook",
				"code":  "WEBHOOK_PROCESSING_FAILED",
			})
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status": "ok",
	})
}
