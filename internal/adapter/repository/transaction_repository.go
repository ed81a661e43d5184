package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/irevahq/payments/internal/domain/model"
	domainRepo "github.com/irevahq/payments/internal/domain/repository"
)

// transactionRepository implements the TransactionRepository interface
type transactionRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewTransactionRepository creates a new crypto transaction repository
func NewTransactionRepository(db *gorm.DB, logger *zap.Logger) domainRepo.TransactionRepository {
	return &transactionRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new pending transaction at payment initiation
func (r *transactionRepository) Create(ctx context.Context, tx *model.CryptoTransaction) error {
	if tx.Status == "" {
		tx.Status = model.TransactionStatusPending
	}
	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		r.logger.Error("Failed to create crypto transaction",
			zap.String("provider_payment_id", tx.ProviderPaymentID),
			zap.Error(err))
		return fmt.Errorf("failed to create crypto transaction: %w", err)
	}
	return nil
}

// GetByProviderPaymentID returns the transaction for a provider payment id
func (r *transactionRepository) GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*model.CryptoTransaction, error) {
	var tx model.CryptoTransaction

	err := r.db.WithContext(ctx).
		Where("provider_payment_id = ?", providerPaymentID).
		First(&tx).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get crypto transaction",
			zap.String("provider_payment_id", providerPaymentID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get crypto transaction: %w", err)
	}

	return &tx, nil
}

// ApplyStatusUpdate applies a status transition under a row lock so two
// near-simultaneous webhook deliveries for the same provider payment id
// cannot both win. Terminal states are immutable; re-delivery of an event
// that already took effect is a safe no-op.
func (r *transactionRepository) ApplyStatusUpdate(ctx context.Context, providerPaymentID string, newStatus model.TransactionStatus, meta domainRepo.StatusMetadata) (*model.CryptoTransaction, bool, error) {
	var result *model.CryptoTransaction
	var applied bool

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current model.CryptoTransaction
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("provider_payment_id = ?", providerPaymentID).
			First(&current).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Webhook arrived before the initiation flow persisted its
			// record; create it in the target status.
			created := model.CryptoTransaction{
				ProviderPaymentID: providerPaymentID,
				Status:            newStatus,
				Amount:            decimal.Zero,
				Currency:          meta.Currency,
			}
			if meta.Amount != nil {
				created.Amount = *meta.Amount
			}
			applyMetadata(&created, meta)
			if err := tx.Create(&created).Error; err != nil {
				return fmt.Errorf("failed to create transaction from webhook: %w", err)
			}
			r.logger.Info("Created crypto transaction from webhook (initiation raced)",
				zap.String("provider_payment_id", providerPaymentID),
				zap.String("status", string(newStatus)))
			result = &created
			applied = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to lock transaction: %w", err)
		}

		if current.Status.IsTerminal() {
			r.logger.Info("Ignoring status update for terminal transaction",
				zap.String("provider_payment_id", providerPaymentID),
				zap.String("current_status", string(current.Status)),
				zap.String("requested_status", string(newStatus)))
			result = &current
			applied = false
			return nil
		}

		if newStatus == current.Status {
			// Same-status redelivery; merge metadata only.
			applyMetadata(&current, meta)
			if err := tx.Save(&current).Error; err != nil {
				return fmt.Errorf("failed to update transaction metadata: %w", err)
			}
			result = &current
			applied = false
			return nil
		}

		if !current.Status.CanTransitionTo(newStatus) {
			r.logger.Warn("Rejecting invalid status transition",
				zap.String("provider_payment_id", providerPaymentID),
				zap.String("from", string(current.Status)),
				zap.String("to", string(newStatus)))
			result = &current
			applied = false
			return nil
		}

		current.Status = newStatus
		applyMetadata(&current, meta)
		if newStatus == model.TransactionStatusConfirmed && current.ConfirmedAt == nil {
			now := time.Now().UTC()
			current.ConfirmedAt = &now
		}

		if err := tx.Save(&current).Error; err != nil {
			return fmt.Errorf("failed to apply status update: %w", err)
		}

		r.logger.Info("Crypto transaction status updated",
			zap.String("provider_payment_id", providerPaymentID),
			zap.String("status", string(newStatus)))

		result = &current
		applied = true
		return nil
	})

	if err != nil {
		r.logger.Error("Failed to apply status update",
			zap.String("provider_payment_id", providerPaymentID),
			zap.String("status", string(newStatus)),
			zap.Error(err))
		return nil, false, fmt.Errorf("failed to apply status update: %w", err)
	}

	return result, applied, nil
}

// ListPendingOlderThan returns pending transactions created before the cutoff
func (r *transactionRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*model.CryptoTransaction, error) {
	var txs []*model.CryptoTransaction

	query := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.TransactionStatusPending, cutoff).
		Order("created_at ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&txs).Error; err != nil {
		r.logger.Error("Failed to list pending transactions", zap.Error(err))
		return nil, fmt.Errorf("failed to list pending transactions: %w", err)
	}

	return txs, nil
}

func applyMetadata(tx *model.CryptoTransaction, meta domainRepo.StatusMetadata) {
	if meta.TxHash != nil {
		tx.TxHash = meta.TxHash
	}
	if meta.BlockNumber != nil {
		tx.BlockNumber = meta.BlockNumber
	}
	if meta.Confirmations > tx.Confirmations {
		tx.Confirmations = meta.Confirmations
	}
	if meta.ProviderData != nil {
		tx.ProviderData = meta.ProviderData
	}
	if meta.ConfirmedAt != nil {
		tx.ConfirmedAt = meta.ConfirmedAt
	}
}
