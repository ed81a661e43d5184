package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	customErr "github.com/irevahq/payments/internal/domain/errors"
	"github.com/irevahq/payments/internal/domain/model"
	domainRepo "github.com/irevahq/payments/internal/domain/repository"
)

// holdingRepository implements the HoldingRepository interface
type holdingRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewHoldingRepository creates a new holding repository instance
func NewHoldingRepository(db *gorm.DB, logger *zap.Logger) domainRepo.HoldingRepository {
	return &holdingRepository{
		db:     db,
		logger: logger,
	}
}

// GetProperty returns a property by id
func (r *holdingRepository) GetProperty(ctx context.Context, propertyID uuid.UUID) (*model.Property, error) {
	var property model.Property

	err := r.db.WithContext(ctx).
		Where("id = ?", propertyID).
		First(&property).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get property",
			zap.String("property_id", propertyID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get property: %w", err)
	}

	return &property, nil
}

// AllocateUnits allocates ownership units under a lock on the property row so
// the cap cannot be oversubscribed by concurrent investments. A holding that
// already exists for the reference id is returned without re-applying.
func (r *holdingRepository) AllocateUnits(ctx context.Context, propertyID, userID uuid.UUID, units int64, referenceID string) (*model.InvestmentHolding, bool, error) {
	var holding *model.InvestmentHolding
	var created bool

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if referenceID != "" {
			var existing model.InvestmentHolding
			err := tx.Where("reference_id = ?", referenceID).First(&existing).Error
			if err == nil {
				r.logger.Info("Units already allocated (idempotency)",
					zap.String("reference_id", referenceID),
					zap.String("user_id", userID.String()))
				holding = &existing
				created = false
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to check existing holding: %w", err)
			}
		}

		var property model.Property
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", propertyID).
			First(&property).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("property not found: %s", propertyID)
			}
			return fmt.Errorf("failed to lock property: %w", err)
		}

		if property.UnitsAvailable() < units {
			return customErr.NewPropertyCapExceededError(units, property.UnitsAvailable())
		}

		holding = &model.InvestmentHolding{
			PropertyID: propertyID,
			UserID:     userID,
			Units:      units,
		}
		if referenceID != "" {
			holding.ReferenceID = &referenceID
		}

		if err := tx.Create(holding).Error; err != nil {
			return fmt.Errorf("failed to create holding: %w", err)
		}

		property.UnitsAllocated += units
		if err := tx.Save(&property).Error; err != nil {
			return fmt.Errorf("failed to update property allocation: %w", err)
		}

		created = true
		return nil
	})

	if err != nil {
		var capErr *customErr.PropertyCapExceededError
		if errors.As(err, &capErr) {
			return nil, false, err
		}
		r.logger.Error("Failed to allocate units",
			zap.String("property_id", propertyID.String()),
			zap.String("user_id", userID.String()),
			zap.Int64("units", units),
			zap.Error(err))
		return nil, false, fmt.Errorf("failed to allocate units: %w", err)
	}

	if created {
		r.logger.Info("Ownership units allocated",
			zap.String("property_id", propertyID.String()),
			zap.String("user_id", userID.String()),
			zap.Int64("units", units),
			zap.String("reference_id", referenceID))
	}

	return holding, created, nil
}

// ListHoldings returns all holdings for a property
func (r *holdingRepository) ListHoldings(ctx context.Context, propertyID uuid.UUID) ([]*model.InvestmentHolding, error) {
	var holdings []*model.InvestmentHolding

	err := r.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Order("created_at ASC").
		Find(&holdings).Error

	if err != nil {
		r.logger.Error("Failed to list holdings",
			zap.String("property_id", propertyID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}

	return holdings, nil
}
