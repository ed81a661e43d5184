package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/irevahq/payments/internal/domain/model"
)

// StatusMetadata carries on-chain details persisted atomically with a status
// transition. Amount and Currency are only used when the webhook creates the
// record because it beat the initiation flow.
type StatusMetadata struct {
	TxHash        *string
	BlockNumber   *int64
	Confirmations int
	ProviderData  model.JSONB
	ConfirmedAt   *time.Time
	Amount        *decimal.Decimal
	Currency      string
}

// TransactionRepository persists crypto transactions keyed by provider
// payment id and enforces at-most-once status progression.
type TransactionRepository interface {
	// Create inserts a new pending transaction at payment initiation
	Create(ctx context.Context, tx *model.CryptoTransaction) error

	// GetByProviderPaymentID returns the transaction for a provider payment
	// id, or nil when none exists
	GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*model.CryptoTransaction, error)

	// ApplyStatusUpdate applies a status transition for the given provider
	// payment id. Updates for the same id are serialized with a row lock.
	// A transaction already in a terminal state is left untouched and
	// applied=false is returned. When no transaction exists the record is
	// created in the target status (webhook raced the initiation flow).
	ApplyStatusUpdate(ctx context.Context, providerPaymentID string, newStatus model.TransactionStatus, meta StatusMetadata) (tx *model.CryptoTransaction, applied bool, err error)

	// ListPendingOlderThan returns pending transactions created before the
	// cutoff, for reconciliation polling
	ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*model.CryptoTransaction, error)
}
