package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/irevahq/payments/internal/domain/model"
	domainRepo "github.com/irevahq/payments/internal/domain/repository"
)

// distributionRepository implements the DistributionRepository interface
type distributionRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewDistributionRepository creates a new distribution repository instance
func NewDistributionRepository(db *gorm.DB, logger *zap.Logger) domainRepo.DistributionRepository {
	return &distributionRepository{
		db:     db,
		logger: logger,
	}
}

// CreateDistribution inserts the distribution run with its computed
// allocations in one transaction. The workflow id is unique, so a re-run of
// the same distribution resolves to the stored record.
func (r *distributionRepository) CreateDistribution(ctx context.Context, dist *model.ROIDistribution, allocations []*model.ROIAllocation) (*model.ROIDistribution, bool, error) {
	var created bool

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(dist)
		if result.Error != nil {
			return fmt.Errorf("failed to create distribution: %w", result.Error)
		}

		if result.RowsAffected == 0 {
			var existing model.ROIDistribution
			if err := tx.Preload("Allocations").Where("workflow_id = ?", dist.WorkflowID).First(&existing).Error; err != nil {
				return fmt.Errorf("failed to fetch existing distribution: %w", err)
			}
			*dist = existing
			created = false
			r.logger.Info("Distribution already exists (idempotent start)",
				zap.String("workflow_id", dist.WorkflowID))
			return nil
		}

		for _, alloc := range allocations {
			alloc.DistributionID = dist.ID
			if alloc.Status == "" {
				alloc.Status = model.AllocationStatusPending
			}
		}
		if len(allocations) > 0 {
			if err := tx.Create(&allocations).Error; err != nil {
				return fmt.Errorf("failed to create allocations: %w", err)
			}
		}

		created = true
		return nil
	})

	if err != nil {
		r.logger.Error("Failed to create distribution",
			zap.String("workflow_id", dist.WorkflowID),
			zap.Error(err))
		return nil, false, err
	}

	if created {
		r.logger.Info("Distribution created",
			zap.String("workflow_id", dist.WorkflowID),
			zap.Int64("distribution_id", dist.ID),
			zap.Int("allocations", len(allocations)))
	}

	return dist, created, nil
}

// GetByWorkflowID returns a distribution with its allocations, or nil
func (r *distributionRepository) GetByWorkflowID(ctx context.Context, workflowID string) (*model.ROIDistribution, error) {
	var dist model.ROIDistribution

	err := r.db.WithContext(ctx).
		Preload("Allocations").
		Where("workflow_id = ?", workflowID).
		First(&dist).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get distribution",
			zap.String("workflow_id", workflowID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get distribution: %w", err)
	}

	return &dist, nil
}

// UpdateAllocationStatus records one investor's outcome
func (r *distributionRepository) UpdateAllocationStatus(ctx context.Context, allocationID int64, status model.AllocationStatus, failureReason *string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if failureReason != nil {
		updates["failure_reason"] = *failureReason
	}

	err := r.db.WithContext(ctx).
		Model(&model.ROIAllocation{}).
		Where("id = ?", allocationID).
		Updates(updates).Error

	if err != nil {
		r.logger.Error("Failed to update allocation status",
			zap.Int64("allocation_id", allocationID),
			zap.String("status", string(status)),
			zap.Error(err))
		return fmt.Errorf("failed to update allocation status: %w", err)
	}
	return nil
}

// FinishDistribution moves the run to a terminal status
func (r *distributionRepository) FinishDistribution(ctx context.Context, distributionID int64, status model.WorkflowStatus) error {
	err := r.db.WithContext(ctx).
		Model(&model.ROIDistribution{}).
		Where("id = ?", distributionID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).Error

	if err != nil {
		r.logger.Error("Failed to finish distribution",
			zap.Int64("distribution_id", distributionID),
			zap.String("status", string(status)),
			zap.Error(err))
		return fmt.Errorf("failed to finish distribution: %w", err)
	}

	r.logger.Info("Distribution finished",
		zap.Int64("distribution_id", distributionID),
		zap.String("status", string(status)))
	return nil
}
