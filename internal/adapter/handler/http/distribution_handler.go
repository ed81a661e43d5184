package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/irevahq/payments/internal/domain/repository"
	"github.com/irevahq/payments/internal/usecase"
	"github.com/irevahq/payments/internal/workflow"
)

// DistributionHandler handles admin-triggered ROI distribution runs
type DistributionHandler struct {
	logger        *zap.Logger
	investments   *usecase.InvestmentService
	distributions repository.DistributionRepository
}

// NewDistributionHandler creates a new DistributionHandler instance
func NewDistributionHandler(logger *zap.Logger, investments *usecase.InvestmentService, distributions repository.DistributionRepository) *DistributionHandler {
	return &DistributionHandler{
		logger:        logger,
		investments:   investments,
		distributions: distributions,
	}
}

// CreateDistributionRequest is the distribution trigger payload
type CreateDistributionRequest struct {
	PropertyID       string `json:"property_id" validate:"required,uuid"`
	TotalAmount      string `json:"total_amount" validate:"required"`
	Currency         string `json:"currency" validate:"required,len=3|len=4"`
	DistributionDate string `json:"distribution_date" validate:"required,datetime=2006-01-02"`
	DistributionType string `json:"distribution_type" validate:"omitempty,oneof=rental_income appreciation special"`
}

// CreateDistribution starts an ROI distribution run for a property
func (h *DistributionHandler) CreateDistribution(c echo.Context) error {
	var req CreateDistributionRequest
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

	totalAmount, err := decimal.NewFromString(req.TotalAmount)
	if err != nil || !totalAmount.IsPositive() {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "total_amount must be a positive decimal",
			"code":  "INVALID_AMOUNT",
		})
	}

	distributionDate, err := time.Parse("2006-01-02", req.DistributionDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "distribution_date must be YYYY-MM-DD",
			"code":  "INVALID_DATE",
		})
	}

	workflowID, err := h.investments.StartDistribution(c.Request().Context(), workflow.ROIDistributionInput{
		PropertyID:       propertyID,
		TotalAmount:      totalAmount,
		Currency:         req.Currency,
		DistributionDate: distributionDate,
		DistributionType: req.DistributionType,
	})
	if err != nil {
		h.logger.Error("Failed to start distribution",
			zap.String("property_id", req.PropertyID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to start distribution",
			"code":  "DISTRIBUTION_START_FAILED",
		})
	}

	return c.JSON(http.StatusAccepted, echo.Map{
		"workflow_id": workflowID,
	})
}

// GetDistribution returns a distribution run with its per-investor
// allocations, looked up by workflow id
func (h *DistributionHandler) GetDistribution(c echo.Context) error {
	workflowID := c.Param("id")

	dist, err := h.distributions.GetByWorkflowID(c.Request().Context(), workflowID)
	if err != nil {
		h.logger.Error("Failed to get distribution",
			zap.String("workflow_id", workflowID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to get distribution",
			"code":  "DISTRIBUTION_QUERY_FAILED",
		})
	}
	if dist == nil {
		return c.JSON(http.StatusNotFound, echo.Map{
			"error": "Distribution not found",
			"code":  "DISTRIBUTION_NOT_FOUND",
		})
	}

	return c.JSON(http.StatusOK, dist)
}
