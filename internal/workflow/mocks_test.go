package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/irevahq/payments/internal/domain/model"
	"github.com/irevahq/payments/internal/domain/repository"
)

// fakeRunRepo is an in-memory WorkflowRunRepository. The engine tests need
// stateful insert-or-get semantics, which a call-by-call mock expresses badly.
type fakeRunRepo struct {
	mu   sync.Mutex
	runs map[string]*model.WorkflowRun
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: make(map[string]*model.WorkflowRun)}
}

func (r *fakeRunRepo) Insert(_ context.Context, run *model.WorkflowRun) (*model.WorkflowRun, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.runs[run.ID]; ok {
		cp := *existing
		return &cp, false, nil
	}
	cp := *run
	cp.StartedAt = time.Now().UTC()
	r.runs[run.ID] = &cp
	out := cp
	return &out, true, nil
}

func (r *fakeRunRepo) Get(_ context.Context, id string) (*model.WorkflowRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, nil
	}
	cp := *run
	return &cp, nil
}

func (r *fakeRunRepo) SetStep(_ context.Context, id, step string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run, ok := r.runs[id]; ok {
		run.CurrentStep = step
	}
	return nil
}

func (r *fakeRunRepo) Finish(_ context.Context, id string, status model.WorkflowStatus, result model.JSONB, failureReason *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok || run.Status.IsTerminal() {
		return nil
	}
	now := time.Now().UTC()
	run.Status = status
	run.Result = result
	run.FailureReason = failureReason
	run.FinishedAt = &now
	return nil
}

func (r *fakeRunRepo) ListRunning(_ context.Context, _ int) ([]*model.WorkflowRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.WorkflowRun
	for _, run := range r.runs {
		if run.Status == model.WorkflowStatusRunning {
			cp := *run
			out = append(out, &cp)
		}
	}
	return out, nil
}

var _ repository.WorkflowRunRepository = (*fakeRunRepo)(nil)

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
	var balance *model.WalletBalance
	var entry *model.LedgerEntry
	if args.Get(0) != nil {
		balance = args.Get(0).(*model.WalletBalance)
	}
	if args.Get(1) != nil {
		entry = args.Get(1).(*model.LedgerEntry)
	}
	return balance, entry, args.Error(2)
}

func (m *MockWalletRepository) Debit(ctx context.Context, ownerID uuid.UUID, currency string, amount decimal.Decimal, entryType model.LedgerEntryType, description string, referenceID string) (*model.WalletBalance, *model.LedgerEntry, error) {
	args := m.Called(ctx, ownerID, currency, amount, entryType, description, referenceID)
	var balance *model.WalletBalance
	var entry *model.LedgerEntry
	if args.Get(0) != nil {
		balance = args.Get(0).(*model.WalletBalance)
	}
	if args.Get(1) != nil {
		entry = args.Get(1).(*model.LedgerEntry)
	}
	return balance, entry, args.Error(2)
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
