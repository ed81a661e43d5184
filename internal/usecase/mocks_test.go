package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/irevahq/payments/internal/domain/model"
	"github.com/irevahq/payments/internal/domain/provider"
	"github.com/irevahq/payments/internal/domain/repository"
	"github.com/irevahq/payments/internal/workflow"
)

type MockCryptoPaymentProvider struct {
	mock.Mock
}

func (m *MockCryptoPaymentProvider) CreatePayment(ctx context.Context, req *provider.CreatePaymentRequest) (*provider.CreatePaymentResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.CreatePaymentResponse), args.Error(1)
}

func (m *MockCryptoPaymentProvider) GetPayment(ctx context.Context, providerPaymentID string) (*provider.PaymentInfo, error) {
	args := m.Called(ctx, providerPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.PaymentInfo), args.Error(1)
}

func (m *MockCryptoPaymentProvider) VerifyWebhook(rawBody []byte, signature string) error {
	args := m.Called(rawBody, signature)
	return args.Error(0)
}

func (m *MockCryptoPaymentProvider) ParseWebhook(rawBody []byte) (*provider.WebhookEvent, error) {
	args := m.Called(rawBody)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.WebhookEvent), args.Error(1)
}

func (m *MockCryptoPaymentProvider) MapStatus(providerStatus string) (model.TransactionStatus, bool) {
	args := m.Called(providerStatus)
	return args.Get(0).(model.TransactionStatus), args.Bool(1)
}

func (m *MockCryptoPaymentProvider) GetProviderName() string {
	args := m.Called()
	return args.String(0)
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx *model.CryptoTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*model.CryptoTransaction, error) {
	args := m.Called(ctx, providerPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CryptoTransaction), args.Error(1)
}

func (m *MockTransactionRepository) ApplyStatusUpdate(ctx context.Context, providerPaymentID string, newStatus model.TransactionStatus, meta repository.StatusMetadata) (*model.CryptoTransaction, bool, error) {
	args := m.Called(ctx, providerPaymentID, newStatus, meta)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.CryptoTransaction), args.Bool(1), args.Error(2)
}

func (m *MockTransactionRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*model.CryptoTransaction, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.CryptoTransaction), args.Error(1)
}

type MockWebhookRepository struct {
	mock.Mock
}

func (m *MockWebhookRepository) SaveEvent(ctx context.Context, event *model.ProviderWebhookEvent) (*model.ProviderWebhookEvent, bool, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.ProviderWebhookEvent), args.Bool(1), args.Error(2)
}

func (m *MockWebhookRepository) GetEvent(ctx context.Context, providerEventID string) (*model.ProviderWebhookEvent, error) {
	args := m.Called(ctx, providerEventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProviderWebhookEvent), args.Error(1)
}

func (m *MockWebhookRepository) MarkProcessed(ctx context.Context, providerEventID string) error {
	args := m.Called(ctx, providerEventID)
	return args.Error(0)
}

func (m *MockWebhookRepository) MarkFailed(ctx context.Context, providerEventID string, processingErr error) error {
	args := m.Called(ctx, providerEventID, processingErr)
	return args.Error(0)
}

func (m *MockWebhookRepository) GetPendingEvents(ctx context.Context, before time.Time, limit int) ([]*model.ProviderWebhookEvent, error) {
	args := m.Called(ctx, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.ProviderWebhookEvent), args.Error(1)
}

type MockHoldingRepository struct {
	mock.Mock
}

func (m *MockHoldingRepository) GetProperty(ctx context.Context, propertyID uuid.UUID) (*model.Property, error) {
	args := m.Called(ctx, propertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Property), args.Error(1)
}

func (m *MockHoldingRepository) AllocateUnits(ctx context.Context, propertyID, userID uuid.UUID, units int64, referenceID string) (*model.InvestmentHolding, bool, error) {
	args := m.Called(ctx, propertyID, userID, units, referenceID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.InvestmentHolding), args.Bool(1), args.Error(2)
}

func (m *MockHoldingRepository) ListHoldings(ctx context.Context, propertyID uuid.UUID) ([]*model.InvestmentHolding, error) {
	args := m.Called(ctx, propertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.InvestmentHolding), args.Error(1)
}

type MockWorkflowClient struct {
	mock.Mock
}

func (m *MockWorkflowClient) Start(ctx context.Context, kind, workflowID string, input model.JSONB) (workflow.Handle, error) {
	args := m.Called(ctx, kind, workflowID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(workflow.Handle), args.Error(1)
}

func (m *MockWorkflowClient) GetHandle(workflowID string) workflow.Handle {
	args := m.Called(workflowID)
	return args.Get(0).(workflow.Handle)
}

func (m *MockWorkflowClient) Result(ctx context.Context, workflowID string) (*workflow.Result, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.Result), args.Error(1)
}

func (m *MockWorkflowClient) Cancel(ctx context.Context, workflowID string) error {
	args := m.Called(ctx, workflowID)
	return args.Error(0)
}

func (m *MockWorkflowClient) Query(ctx context.Context, workflowID string) (*model.WorkflowRun, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WorkflowRun), args.Error(1)
}

// stubHandle satisfies workflow.Handle for mocked Start returns
type stubHandle struct {
	id string
}

func (h *stubHandle) WorkflowID() string { return h.id }

func (h *stubHandle) Result(ctx context.Context) (*workflow.Result, error) {
	return &workflow.Result{WorkflowID: h.id, Status: model.WorkflowStatusCompleted}, nil
}

func decimalFrom(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
