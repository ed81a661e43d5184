package http

import (
	"bytes"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const rawBodyContextKey = "raw_webhook_body"

// CaptureRawBody buffers the exact request bytes before any parsing touches
// them. Signature verification must run over the bytes the provider signed;
// re-serializing parsed JSON would break it.
func CaptureRawBody(maxBytes int64, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			body, err := io.ReadAll(io.LimitReader(req.Body, maxBytes+1))
			if err != nil {
				logger.Warn("Failed to read webhook body",
					zap.String("path", req.URL.Path),
					zap.Error(err))
				return c.JSON(http.StatusBadRequest, echo.Map{
					"error": "Failed to read request body",
					"code":  "INVALID_REQUEST",
				})
			}
			if int64(len(body)) > maxBytes {
				logger.Warn("Webhook body exceeds size limit",
					zap.String("path", req.URL.Path),
					zap.Int64("limit", maxBytes))
				return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{
					"error": "Request body too large",
					"code":  "BODY_TOO_LARGE",
				})
			}

			c.Set(rawBodyContextKey, body)
			req.Body = io.NopCloser(bytes.NewReader(body))
			return next(c)
		}
	}
}

// RawBody returns the captured request bytes
func RawBody(c echo.Context) ([]byte, bool) {
	body, ok := c.Get(rawBodyContextKey).([]byte)
	return body, ok
}
