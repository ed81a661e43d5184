package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	customErr "github.com/irevahq/payments/internal/domain/errors"
	"github.com/irevahq/payments/internal/domain/model"
	"github.com/irevahq/payments/internal/domain/provider"
	"github.com/irevahq/payments/internal/workflow"
)

func openProperty(propertyID uuid.UUID) *model.Property {
	return &model.Property{
		ID:             propertyID,
		Name:           "Lekki Gardens Phase 2",
		Currency:       "USD",
		UnitPrice:      decimalFrom("150"),
		UnitsTotal:     100,
		UnitsAllocated: 40,
		Status:         "open",
	}
}

func newInvestmentServiceForTest() (*InvestmentService, *MockCryptoPaymentProvider, *MockTransactionRepository, *MockHoldingRepository, *MockWorkflowClient) {
	paymentProvider := new(MockCryptoPaymentProvider)
	transactions := new(MockTransactionRepository)
	holdings := new(MockHoldingRepository)
	workflows := new(MockWorkflowClient)
	svc := NewInvestmentService(paymentProvider, transactions, holdings, workflows,
		"https://payments.ireva.test/webhooks/coingate", zap.NewNop())
	return svc, paymentProvider, transactions, holdings, workflows
}

func TestStartInvestment_CreatesPaymentAndWorkflow(t *testing.T) {
	svc, paymentProvider, transactions, holdings, workflows := newInvestmentServiceForTest()

	userID := uuid.New()
	propertyID := uuid.New()
	holdings.On("GetProperty", mock.Anything, propertyID).Return(openProperty(propertyID), nil)

	paymentProvider.On("CreatePayment", mock.Anything, mock.MatchedBy(func(req *provider.CreatePaymentRequest) bool {
		return req.Amount.Equal(decimalFrom("1500")) &&
			req.Currency == "USD" &&
			req.CallbackURL == "https://payments.ireva.test/webhooks/coingate"
	})).Return(&provider.CreatePaymentResponse{
		ProviderPaymentID: "12345",
		Status:            "new",
		Amount:            decimalFrom("1500"),
		Currency:          "USD",
		PaymentURL:        "https://coingate.test/invoice/12345",
	}, nil)

	createdAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	transactions.On("Create", mock.Anything, mock.MatchedBy(func(tx *model.CryptoTransaction) bool {
		return tx.ProviderPaymentID == "12345" &&
			tx.Status == model.TransactionStatusPending &&
			tx.UserID != nil && *tx.UserID == userID &&
			tx.Units != nil && *tx.Units == 10
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*model.CryptoTransaction).CreatedAt = createdAt
	}).Return(nil)

	expectedWorkflowID := workflow.InvestmentWorkflowID(userID, propertyID, createdAt)
	workflows.On("Start", mock.Anything, model.WorkflowKindInvestment, expectedWorkflowID, mock.Anything).
		Return(&stubHandle{id: expectedWorkflowID}, nil)

	resp, err := svc.StartInvestment(context.Background(), StartInvestmentRequest{
		UserID:        userID,
		PropertyID:    propertyID,
		Units:         10,
		PaymentMethod: "crypto",
	})
	require.NoError(t, err)

	assert.Equal(t, expectedWorkflowID, resp.WorkflowID)
	assert.Equal(t, "12345", resp.ProviderPaymentID)
	assert.Equal(t, "1500", resp.Amount)
	assert.Equal(t, "USD", resp.Currency)
	assert.Equal(t, "https://coingate.test/invoice/12345", resp.PaymentURL)

	paymentProvider.AssertExpectations(t)
	transactions.AssertExpectations(t)
	workflows.AssertExpectations(t)
}

func TestStartInvestment_UnknownProperty(t *testing.T) {
	svc, paymentProvider, _, holdings, _ := newInvestmentServiceForTest()

	propertyID := uuid.New()
	holdings.On("GetProperty", mock.Anything, propertyID).Return(nil, nil)

	_, err := svc.StartInvestment(context.Background(), StartInvestmentRequest{
		UserID:     uuid.New(),
		PropertyID: propertyID,
		Units:      10,
	})
	assert.ErrorIs(t, err, ErrPropertyNotFound)
	paymentProvider.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything)
}

func TestStartInvestment_CapExceededBeforePayment(t *testing.T) {
	svc, paymentProvider, _, holdings, _ := newInvestmentServiceForTest()

	propertyID := uuid.New()
	holdings.On("GetProperty", mock.Anything, propertyID).Return(openProperty(propertyID), nil)

	// 60 units available, 61 requested: rejected before any money moves.
	_, err := svc.StartInvestment(context.Background(), StartInvestmentRequest{
		UserID:     uuid.New(),
		PropertyID: propertyID,
		Units:      61,
	})

	var capErr *customErr.PropertyCapExceededError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, int64(61), capErr.Requested)
	assert.Equal(t, int64(60), capErr.Available)
	paymentProvider.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything)
}

func TestStartInvestment_ProviderFailure(t *testing.T) {
	svc, paymentProvider, transactions, holdings, _ := newInvestmentServiceForTest()

	propertyID := uuid.New()
	holdings.On("GetProperty", mock.Anything, propertyID).Return(openProperty(propertyID), nil)
	paymentProvider.On("CreatePayment", mock.Anything, mock.Anything).
		Return(nil, errors.New("gateway timeout"))

	_, err := svc.StartInvestment(context.Background(), StartInvestmentRequest{
		UserID:     uuid.New(),
		PropertyID: propertyID,
		Units:      5,
	})
	assert.Error(t, err)
	transactions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestStartDistribution_DeterministicWorkflowID(t *testing.T) {
	svc, _, _, _, workflows := newInvestmentServiceForTest()

	propertyID := uuid.New()
	date := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	expectedID := workflow.ROIWorkflowID(propertyID, date)

	workflows.On("Start", mock.Anything, model.WorkflowKindROIDistribution, expectedID, mock.Anything).
		Return(&stubHandle{id: expectedID}, nil)

	workflowID, err := svc.StartDistribution(context.Background(), workflow.ROIDistributionInput{
		PropertyID:       propertyID,
		TotalAmount:      decimalFrom("10000"),
		Currency:         "USD",
		DistributionDate: date,
	})
	require.NoError(t, err)
	assert.Equal(t, expectedID, workflowID)
	workflows.AssertExpectations(t)
}

func TestCancelWorkflowPassesThrough(t *testing.T) {
	svc, _, _, _, workflows := newInvestmentServiceForTest()

	workflows.On("Cancel", mock.Anything, "run-1").Return(workflow.ErrWorkflowNotFound)

	err := svc.CancelWorkflow(context.Background(), "run-1")
	assert.ErrorIs(t, err, workflow.ErrWorkflowNotFound)
}

func TestGetWorkflowPassesThrough(t *testing.T) {
	svc, _, _, _, workflows := newInvestmentServiceForTest()

	workflows.On("Query", mock.Anything, "run-1").
		Return(&model.WorkflowRun{ID: "run-1", Status: model.WorkflowStatusRunning}, nil)

	run, err := svc.GetWorkflow(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
}
