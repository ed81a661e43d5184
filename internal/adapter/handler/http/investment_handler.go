package http

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	customErr "github.com/irevahq/payments/internal/domain/errors"
	"github.com/irevahq/payments/internal/middleware/auth"
	"github.com/irevahq/payments/internal/usecase"
	"github.com/irevahq/payments/internal/workflow"
)

// InvestmentHandler handles investment initiation and workflow inspection
type InvestmentHandler struct {
	logger      *zap.Logger
	investments *usecase.InvestmentService
}

// NewInvestmentHandler creates a new InvestmentHandler instance
func NewInvestmentHandler(logger *zap.Logger, investments *usecase.InvestmentService) *InvestmentHandler {
	return &InvestmentHandler{
		logger:      logger,
		investments: investments,
	}
}

// CreateInvestmentRequest is the investment initiation payload
type CreateInvestmentRequest struct {
	PropertyID    string `json:"property_id" validate:"required,uuid"`
	Units         int64  `json:"units" validate:"required,min=1"`
	PaymentMethod string `json:"payment_method" validate:"omitempty,oneof=crypto"`
}

// CreateInvestment starts an investment for the authenticated user
func (h *InvestmentHandler) CreateInvestment(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	var req CreateInvestmentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid request body",
			"code":  "INVALID_REQUEST",
		})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": err.Error(),
			"code":  "VALIDATION_FAILED",
		})
	}

	propertyID, err := uuid.Parse(req.PropertyID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "property_id must be a valid UUID",
			"code":  "INVALID_PROPERTY_ID",
		})
	}

	paymentMethod := req.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = "crypto"
	}

	resp, err := h.investments.StartInvestment(c.Request().Context(), usecase.StartInvestmentRequest{
		UserID:        user.UserID,
		PropertyID:    propertyID,
		Units:         req.Units,
		PaymentMethod: paymentMethod,
	})
	if err != nil {
		var capErr *customErr.PropertyCapExceededError
		switch {
		case errors.Is(err, usecase.ErrPropertyNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{
				"error": "Property not found",
				"code":  "PROPERTY_NOT_FOUND",
			})
		case errors.As(err, &capErr):
			return c.JSON(http.StatusConflict, echo.Map{
				"error": capErr.Error(),
				"code":  "PROPERTY_CAP_EXCEEDED",
			})
		default:
			h.logger.Error("Failed to start investment",
				zap.String("user_id", user.UserID.String()),
				zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{
				"error": "Failed to start investment",
				"code":  "INVESTMENT_START_FAILED",
			})
		}
	}

	return c.JSON(http.StatusCreated, resp)
}

// GetWorkflow returns the current state of a workflow run
func (h *InvestmentHandler) GetWorkflow(c echo.Context) error {
	if _, err := auth.RequireAuth(c); err != nil {
		return err
	}

	workflowID := c.Param("id")
	run, err := h.investments.GetWorkflow(c.Request().Context(), workflowID)
	if err != nil {
		h.logger.Error("Failed to query workflow",
			zap.String("workflow_id", workflowID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to query workflow",
			"code":  "WORKFLOW_QUERY_FAILED",
		})
	}
	if run == nil {
		return c.JSON(http.StatusNotFound, echo.Map{
			"error": "Workflow not found",
			"code":  "WORKFLOW_NOT_FOUND",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"workflow_id":    run.ID,
		"kind":           run.Kind,
		"status":         run.Status,
		"current_step":   run.CurrentStep,
		"result":         run.Result,
		"failure_reason": run.FailureReason,
		"started_at":     run.StartedAt,
		"finished_at":    run.FinishedAt,
	})
}

// CancelWorkflow requests cooperative cancellation (admin only, wired behind
// the role-gated group)
func (h *InvestmentHandler) CancelWorkflow(c echo.Context) error {
	workflowID := c.Param("id")

	err := h.investments.CancelWorkflow(c.Request().Context(), workflowID)
	if err != nil {
		if errors.Is(err, workflow.ErrWorkflowNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{
				"error": "Workflow not found",
				"code":  "WORKFLOW_NOT_FOUND",
			})
		}
		h.logger.Error("Failed to cancel workflow",
			zap.String("workflow_id", workflowID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to cancel workflow",
			"code":  "WORKFLOW_CANCEL_FAILED",
		})
	}

	return c.NoContent(http.StatusNoContent)
}
