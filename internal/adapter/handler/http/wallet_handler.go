package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/irevahq/payments/internal/domain/repository"
	"github.com/irevahq/payments/internal/middleware/auth"
)

// WalletHandler exposes wallet balances and ledger history
type WalletHandler struct {
	logger  *zap.Logger
	wallets repository.WalletRepository
}

// NewWalletHandler creates a new WalletHandler instance
func NewWalletHandler(logger *zap.Logger, wallets repository.WalletRepository) *WalletHandler {
	return &WalletHandler{
		logger:  logger,
		wallets: wallets,
	}
}

// GetBalance returns the authenticated user's balance for a currency
func (h *WalletHandler) GetBalance(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	currency := c.QueryParam("currency")
	if currency == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "currency query parameter is required",
			"code":  "MISSING_CURRENCY",
		})
	}

	balance, err := h.wallets.GetBalance(c.Request().Context(), user.UserID, currency)
	if err != nil {
		h.logger.Error("Failed to get wallet balance",
			zap.String("user_id", user.UserID.String()),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to get balance",
			"code":  "BALANCE_QUERY_FAILED",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"owner_id": balance.OwnerID,
		"currency": balance.Currency,
		"balance":  balance.Balance.String(),
	})
}

// GetEntry returns the caller's ledger entry recorded under a reference id
// (a workflow id or deposit reference)
func (h *WalletHandler) GetEntry(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	referenceID := c.Param("reference")
	entry, err := h.wallets.GetEntryByReference(c.Request().Context(), referenceID)
	if err != nil {
		h.logger.Error("Failed to get ledger entry",
			zap.String("reference_id", referenceID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to get ledger entry",
			"code":  "LEDGER_QUERY_FAILED",
		})
	}
	// Another user's entry is reported as missing, not forbidden.
	if entry == nil || entry.OwnerID != user.UserID {
		return c.JSON(http.StatusNotFound, echo.Map{
			"error": "No ledger entry for this reference",
			"code":  "ENTRY_NOT_FOUND",
		})
	}

	return c.JSON(http.StatusOK, entry)
}

// ListEntries returns the authenticated user's ledger history
func (h *WalletHandler) ListEntries(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := h.wallets.ListEntries(c.Request().Context(), user.UserID, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list ledger entries",
			zap.String("user_id", user.UserID.String()),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to list ledger entries",
			"code":  "LEDGER_QUERY_FAILED",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"entries": entries,
		"limit":   limit,
		"offset":  offset,
	})
}
