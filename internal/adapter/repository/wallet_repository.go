package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	customErr "github.com/irevahq/payments/internal/domain/errors"
	"github.com/irevahq/payments/internal/domain/model"
	domainRepo "github.com/irevahq/payments/internal/domain/repository"
)

// walletRepository implements the WalletRepository interface
type walletRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewWalletRepository creates a new wallet repository instance
func NewWalletRepository(db *gorm.DB, logger *zap.Logger) domainRepo.WalletRepository {
	return &walletRepository{
		db:     db,
		logger: logger,
	}
}

// GetBalance retrieves the current wallet balance for an owner and currency
func (r *walletRepository) GetBalance(ctx context.Context, ownerID uuid.UUID, currency string) (*model.WalletBalance, error) {
	var balance model.WalletBalance

	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND currency = ?", ownerID, currency).
		First(&balance).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &model.WalletBalance{
				OwnerID:  ownerID,
				Currency: currency,
				Balance:  decimal.Zero,
			}, nil
		}
		r.logger.Error("Failed to get wallet balance",
			zap.String("owner_id", ownerID.String()),
			zap.String("currency", currency),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get wallet balance: %w", err)
	}

	return &balance, nil
}

// Credit adds funds to a wallet atomically with its ledger entry
func (r *walletRepository) Credit(ctx context.Context, ownerID uuid.UUID, currency string, amount decimal.Decimal, entryType model.LedgerEntryType, description string, referenceID string) (*model.WalletBalance, *model.LedgerEntry, error) {
	return r.apply(ctx, ownerID, currency, amount, entryType, description, referenceID)
}

// Debit removes funds from a wallet atomically with its ledger entry
func (r *walletRepository) Debit(ctx context.Context, ownerID uuid.UUID, currency string, amount decimal.Decimal, entryType model.LedgerEntryType, description string, referenceID string) (*model.WalletBalance, *model.LedgerEntry, error) {
	return r.apply(ctx, ownerID, currency, amount.Neg(), entryType, description, referenceID)
}

// apply records a signed ledger entry and moves the balance under a row lock.
// A reference id that already has an entry short-circuits without a second
// application.
func (r *walletRepository) apply(ctx context.Context, ownerID uuid.UUID, currency string, amount decimal.Decimal, entryType model.LedgerEntryType, description string, referenceID string) (*model.WalletBalance, *model.LedgerEntry, error) {
	var balance *model.WalletBalance
	var entry *model.LedgerEntry

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if referenceID != "" {
			var existing model.LedgerEntry
			err := tx.Where("reference_id = ?", referenceID).First(&existing).Error
			if err == nil {
				entry = &existing

				var currentBalance model.WalletBalance
				if err := tx.Where("owner_id = ? AND currency = ?", ownerID, currency).First(&currentBalance).Error; err == nil {
					balance = &currentBalance
				}

				r.logger.Info("Ledger entry already recorded (idempotency)",
					zap.String("reference_id", referenceID),
					zap.String("owner_id", ownerID.String()))
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to check existing entry: %w", err)
			}
		}

		var currentBalance model.WalletBalance
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("owner_id = ? AND currency = ?", ownerID, currency).
			FirstOrCreate(&currentBalance, model.WalletBalance{
				OwnerID:  ownerID,
				Currency: currency,
				Balance:  decimal.Zero,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to lock balance: %w", err)
		}

		newBalance := currentBalance.Balance.Add(amount)
		if newBalance.IsNegative() {
			return customErr.NewInsufficientBalanceError(amount.Neg(), currentBalance.Balance)
		}

		entry = &model.LedgerEntry{
			OwnerID:      ownerID,
			Currency:     currency,
			EntryType:    entryType,
			Amount:       amount,
			BalanceAfter: newBalance,
			Description:  description,
		}
		if referenceID != "" {
			entry.ReferenceID = &referenceID
		}

		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to create ledger entry: %w", err)
		}

		currentBalance.Balance = newBalance
		currentBalance.LastEntryAt = entry.CreatedAt

		if err := tx.Save(&currentBalance).Error; err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}

		balance = &currentBalance
		return nil
	})

	if err != nil {
		var insufficientErr *customErr.InsufficientBalanceError
		if errors.As(err, &insufficientErr) {
			return nil, nil, err
		}
		r.logger.Error("Failed to apply ledger entry",
			zap.String("owner_id", ownerID.String()),
			zap.String("currency", currency),
			zap.String("amount", amount.String()),
			zap.String("reference_id", referenceID),
			zap.Error(err))
		return nil, nil, fmt.Errorf("failed to apply ledger entry: %w", err)
	}

	r.logger.Info("Ledger entry applied",
		zap.String("owner_id", ownerID.String()),
		zap.String("currency", currency),
		zap.String("amount", amount.String()),
		zap.String("new_balance", balance.Balance.String()),
		zap.String("reference_id", referenceID))

	return balance, entry, nil
}

// GetEntryByReference retrieves a ledger entry by its reference id
func (r *walletRepository) GetEntryByReference(ctx context.Context, referenceID string) (*model.LedgerEntry, error) {
	var entry model.LedgerEntry

	err := r.db.WithContext(ctx).
		Where("reference_id = ?", referenceID).
		First(&entry).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get ledger entry by reference",
			zap.String("reference_id", referenceID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}

	return &entry, nil
}

// ListEntries retrieves a wallet's ledger history, newest first
func (r *walletRepository) ListEntries(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*model.LedgerEntry, error) {
	var entries []*model.LedgerEntry

	query := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&entries).Error; err != nil {
		r.logger.Error("Failed to list ledger entries",
			zap.String("owner_id", ownerID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}

	return entries, nil
}
