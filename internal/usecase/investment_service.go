package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	customErr "github.com/irevahq/payments/internal/domain/errors"
	"github.com/irevahq/payments/internal/domain/model"
	"github.com/irevahq/payments/internal/domain/provider"
	"github.com/irevahq/payments/internal/domain/repository"
	"github.com/irevahq/payments/internal/workflow"
)

// ErrPropertyNotFound is returned when an investment targets an unknown property
var ErrPropertyNotFound = errors.New("property not found")

// StartInvestmentRequest is the validated input of an investment initiation
type StartInvestmentRequest struct {
	UserID        uuid.UUID
	PropertyID    uuid.UUID
	Units         int64
	PaymentMethod string
}

// StartInvestmentResponse carries what the investor needs to pay and track
type StartInvestmentResponse struct {
	WorkflowID        string          `json:"workflow_id"`
	ProviderPaymentID string          `json:"provider_payment_id"`
	PaymentURL        string          `json:"payment_url,omitempty"`
	Amount            string          `json:"amount"`
	Currency          string          `json:"currency"`
	ExpiresAt         *time.Time      `json:"expires_at,omitempty"`
}

// InvestmentService initiates crypto-funded investments: it creates the
// provider payment, records the pending transaction, and starts the
// investment workflow that waits for confirmation.
type InvestmentService struct {
	provider     provider.CryptoPaymentProvider
	transactions repository.TransactionRepository
	holdings     repository.HoldingRepository
	workflows    workflow.Client
	callbackURL  string
	logger       *zap.Logger
}

// NewInvestmentService creates a new investment service
func NewInvestmentService(
	paymentProvider provider.CryptoPaymentProvider,
	transactions repository.TransactionRepository,
	holdings repository.HoldingRepository,
	workflows workflow.Client,
	callbackURL string,
	logger *zap.Logger,
) *InvestmentService {
	return &InvestmentService{
		provider:     paymentProvider,
		transactions: transactions,
		holdings:     holdings,
		workflows:    workflows,
		callbackURL:  callbackURL,
		logger:       logger,
	}
}

// StartInvestment creates the payment order and starts the workflow. The
// workflow id is derived deterministically, so a retried call for the same
// pending payment resolves to the same run.
func (s *InvestmentService) StartInvestment(ctx context.Context, req StartInvestmentRequest) (*StartInvestmentResponse, error) {
	property, err := s.holdings.GetProperty(ctx, req.PropertyID)
	if err != nil {
		return nil, err
	}
	if property == nil {
		return nil, ErrPropertyNotFound
	}
	if property.UnitsAvailable() < req.Units {
		// Early rejection; the workflow re-checks under a lock before allocating.
		return nil, customErr.NewPropertyCapExceededError(req.Units, property.UnitsAvailable())
	}

	amount := property.UnitPrice.Mul(decimal.NewFromInt(req.Units))
	orderID := fmt.Sprintf("inv-%s", uuid.New())

	payment, err := s.provider.CreatePayment(ctx, &provider.CreatePaymentRequest{
		OrderID:     orderID,
		Amount:      amount,
		Currency:    property.Currency,
		Title:       fmt.Sprintf("Investment in %s", property.Name),
		Description: fmt.Sprintf("%d ownership units", req.Units),
		CallbackURL: s.callbackURL,
	})
	if err != nil {
		s.logger.Error("Failed to create provider payment",
			zap.String("user_id", req.UserID.String()),
			zap.String("property_id", req.PropertyID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	units := req.Units
	tx := &model.CryptoTransaction{
		UserID:            &req.UserID,
		PropertyID:        &req.PropertyID,
		Units:             &units,
		ProviderPaymentID: payment.ProviderPaymentID,
		Amount:            amount,
		Currency:          property.Currency,
		Status:            model.TransactionStatusPending,
	}
	if err := s.transactions.Create(ctx, tx); err != nil {
		return nil, err
	}

	workflowID := workflow.InvestmentWorkflowID(req.UserID, req.PropertyID, tx.CreatedAt)
	input, err := workflow.EncodeInput(workflow.InvestmentInput{
		UserID:            req.UserID,
		PropertyID:        req.PropertyID,
		ProviderPaymentID: payment.ProviderPaymentID,
		Units:             req.Units,
		Amount:            amount,
		Currency:          property.Currency,
		PaymentMethod:     req.PaymentMethod,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.workflows.Start(ctx, model.WorkflowKindInvestment, workflowID, input); err != nil {
		return nil, err
	}

	s.logger.Info("Investment initiated",
		zap.String("workflow_id", workflowID),
		zap.String("user_id", req.UserID.String()),
		zap.String("property_id", req.PropertyID.String()),
		zap.String("provider_payment_id", payment.ProviderPaymentID),
		zap.String("amount", amount.String()))

	return &StartInvestmentResponse{
		WorkflowID:        workflowID,
		ProviderPaymentID: payment.ProviderPaymentID,
		PaymentURL:        payment.PaymentURL,
		Amount:            amount.String(),
		Currency:          property.Currency,
		ExpiresAt:         payment.ExpiresAt,
	}, nil
}

// StartDistribution starts an ROI distribution run for a property, keyed by
// (property, distribution date) so repeated triggers resolve to one run.
func (s *InvestmentService) StartDistribution(ctx context.Context, in workflow.ROIDistributionInput) (string, error) {
	workflowID := workflow.ROIWorkflowID(in.PropertyID, in.DistributionDate)

	input, err := workflow.EncodeInput(in)
	if err != nil {
		return "", err
	}

	if _, err := s.workflows.Start(ctx, model.WorkflowKindROIDistribution, workflowID, input); err != nil {
		return "", err
	}

	s.logger.Info("ROI distribution started",
		zap.String("workflow_id", workflowID),
		zap.String("property_id", in.PropertyID.String()),
		zap.String("total_amount", in.TotalAmount.String()))

	return workflowID, nil
}

// GetWorkflow returns the persisted state of a run, or nil
func (s *InvestmentService) GetWorkflow(ctx context.Context, workflowID string) (*model.WorkflowRun, error) {
	return s.workflows.Query(ctx, workflowID)
}

// CancelWorkflow requests cooperative cancellation of a running workflow
func (s *InvestmentService) CancelWorkflow(ctx context.Context, workflowID string) error {
	return s.workflows.Cancel(ctx, workflowID)
}
