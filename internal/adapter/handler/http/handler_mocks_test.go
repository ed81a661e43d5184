package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/irevahq/payments/internal/domain/model"
	"github.com/irevahq/payments/internal/domain/provider"
	"github.com/irevahq/payments/internal/domain/repository"
	"github.com/irevahq/payments/internal/middleware/auth"
	"github.com/irevahq/payments/internal/workflow"
)

const (
	testJWTSecret       = "test-secret"
	testSignatureHeader = "X-CoinGate-Signature"
)

type testValidator struct {
	validate *validator.Validate
}

func (v *testValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = &testValidator{validate: validator.New()}
	return e
}

// bearerToken signs a JWT the auth middleware accepts
func bearerToken(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID.String(),
		"email": "investor@example.com",
		"role":  role,
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func mustDate(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

// jwtWrapped runs a handler behind the JWT middleware the routes use
func jwtWrapped(handler echo.HandlerFunc) echo.HandlerFunc {
	return auth.JWTMiddleware(auth.JWTConfig{Secret: testJWTSecret, Logger: zap.NewNop()})(handler)
}

// serveAuthenticated runs a handler behind the same JWT middleware the routes
// use, with a token for the given user.
func serveAuthenticated(t *testing.T, e *echo.Echo, handler echo.HandlerFunc, req *http.Request, userID uuid.UUID, role string) *httptest.ResponseRecorder {
	t.Helper()
	req.Header.Set("Authorization", bearerToken(t, userID, role))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	wrapped := auth.JWTMiddleware(auth.JWTConfig{Secret: testJWTSecret, Logger: zap.NewNop()})(handler)
	require.NoError(t, wrapped(c))
	return rec
}

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
	return "coingate"
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

type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) Credit(ctx context.Context, ownerID uuid.UUID, currency string, amount decimal.Decimal, entryType model.LedgerEntryType, description string, referenceID string) (*model.WalletBalance, *model.LedgerEntry, error) {
	args := m.Called(ctx, ownerID, currency, amount, entryType, description, referenceID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*model.WalletBalance), args.Get(1).(*model.LedgerEntry), args.Error(2)
}

func (m *MockWalletRepository) Debit(ctx context.Context, ownerID uuid.UUID, currency string, amount decimal.Decimal, entryType model.LedgerEntryType, description string, referenceID string) (*model.WalletBalance, *model.LedgerEntry, error) {
	args := m.Called(ctx, ownerID, currency, amount, entryType, description, referenceID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*model.WalletBalance), args.Get(1).(*model.LedgerEntry), args.Error(2)
}

func (m *MockWalletRepository) GetBalance(ctx context.Context, ownerID uuid.UUID, currency string) (*model.WalletBalance, error) {
	args := m.Called(ctx, ownerID, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WalletBalance), args.Error(1)
}

func (m *MockWalletRepository) GetEntryByReference(ctx context.Context, referenceID string) (*model.LedgerEntry, error) {
	args := m.Called(ctx, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LedgerEntry), args.Error(1)
}

func (m *MockWalletRepository) ListEntries(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*model.LedgerEntry, error) {
	args := m.Called(ctx, ownerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.LedgerEntry), args.Error(1)
}

type MockDistributionRepository struct {
	mock.Mock
}

func (m *MockDistributionRepository) CreateDistribution(ctx context.Context, dist *model.ROIDistribution, allocations []*model.ROIAllocation) (*model.ROIDistribution, bool, error) {
	args := m.Called(ctx, dist, allocations)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.ROIDistribution), args.Bool(1), args.Error(2)
}

func (m *MockDistributionRepository) GetByWorkflowID(ctx context.Context, workflowID string) (*model.ROIDistribution, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ROIDistribution), args.Error(1)
}

func (m *MockDistributionRepository) UpdateAllocationStatus(ctx context.Context, allocationID int64, status model.AllocationStatus, failureReason *string) error {
	args := m.Called(ctx, allocationID, status, failureReason)
	return args.Error(0)
}

func (m *MockDistributionRepository) FinishDistribution(ctx context.Context, distributionID int64, status model.WorkflowStatus) error {
	args := m.Called(ctx, distributionID, status)
	return args.Error(0)
}

type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockNotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Notification, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Notification), args.Error(1)
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
