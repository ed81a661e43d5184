package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/irevahq/payments/internal/domain/model"
)

// WalletRepository applies wallet balance mutations as append-only ledger
// entries. No caller writes balances directly.
type WalletRepository interface {
	// Credit adds funds to a wallet. When a ledger entry with the same
	// reference id already exists the entry is returned unchanged and no
	// second credit is applied (idempotency by natural key).
	Credit(ctx context.Context, ownerID uuid.UUID, currency string, amount decimal.Decimal, entryType model.LedgerEntryType, description string, referenceID string) (*model.WalletBalance, *model.LedgerEntry, error)

	// Debit removes funds from a wallet with the same reference-id
	// idempotency contract. Fails with InsufficientBalanceError when the
	// balance cannot cover the amount.
	Debit(ctx context.Context, ownerID uuid.UUID, currency string, amount decimal.Decimal, entryType model.LedgerEntryType, description string, referenceID string) (*model.WalletBalance, *model.LedgerEntry, error)

	// GetBalance returns the current balance, zero-valued when the wallet
	// has no entries yet
	GetBalance(ctx context.Context, ownerID uuid.UUID, currency string) (*model.WalletBalance, error)

	// GetEntryByReference returns the ledger entry recorded under a
	// reference id, or nil when none exists
	GetEntryByReference(ctx context.Context, referenceID string) (*model.LedgerEntry, error)

	// ListEntries returns a wallet's ledger history, newest first
	ListEntries(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*model.LedgerEntry, error)
}
