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

// workflowRunRepository implements the WorkflowRunRepository interface
type workflowRunRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewWorkflowRunRepository creates a new workflow run repository instance
func NewWorkflowRunRepository(db *gorm.DB, logger *zap.Logger) domainRepo.WorkflowRunRepository {
	return &workflowRunRepository{
		db:     db,
		logger: logger,
	}
}

// Insert creates the run record. The workflow id is the primary key; when a
// run with the same id already exists the insert does nothing and the stored
// run is returned with created=false.
func (r *workflowRunRepository) Insert(ctx context.Context, run *model.WorkflowRun) (*model.WorkflowRun, bool, error) {
	if run.Status == "" {
		run.Status = model.WorkflowStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(run)

	if result.Error != nil {
		r.logger.Error("Failed to insert workflow run",
			zap.String("workflow_id", run.ID),
			zap.Error(result.Error))
		return nil, false, fmt.Errorf("failed to insert workflow run: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		var existing model.WorkflowRun
		if err := r.db.WithContext(ctx).Where("id = ?", run.ID).First(&existing).Error; err != nil {
			return nil, false, fmt.Errorf("failed to fetch existing workflow run: %w", err)
		}
		r.logger.Info("Workflow run already exists (idempotent start)",
			zap.String("workflow_id", run.ID),
			zap.String("status", string(existing.Status)))
		return &existing, false, nil
	}

	return run, true, nil
}

// Get returns a run by workflow id, or nil when none exists
func (r *workflowRunRepository) Get(ctx context.Context, id string) (*model.WorkflowRun, error) {
	var run model.WorkflowRun

	err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get workflow run",
			zap.String("workflow_id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow run: %w", err)
	}

	return &run, nil
}

// SetStep records the step the run is currently executing
func (r *workflowRunRepository) SetStep(ctx context.Context, id, step string) error {
	err := r.db.WithContext(ctx).
		Model(&model.WorkflowRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_step": step,
			"updated_at":   time.Now().UTC(),
		}).Error

	if err != nil {
		r.logger.Error("Failed to set workflow step",
			zap.String("workflow_id", id),
			zap.String("step", step),
			zap.Error(err))
		return fmt.Errorf("failed to set workflow step: %w", err)
	}
	return nil
}

// Finish moves the run to a terminal status. The status guard keeps a
// finished run from being finished again with a different outcome.
func (r *workflowRunRepository) Finish(ctx context.Context, id string, status model.WorkflowStatus, result model.JSONB, failureReason *string) error {
	now := time.Now().UTC()

	updates := map[string]interface{}{
		"status":      status,
		"finished_at": now,
		"updated_at":  now,
	}
	if result != nil {
		updates["result"] = result
	}
	if failureReason != nil {
		updates["failure_reason"] = *failureReason
	}

	res := r.db.WithContext(ctx).
		Model(&model.WorkflowRun{}).
		Where("id = ? AND status = ?", id, model.WorkflowStatusRunning).
		Updates(updates)

	if res.Error != nil {
		r.logger.Error("Failed to finish workflow run",
			zap.String("workflow_id", id),
			zap.String("status", string(status)),
			zap.Error(res.Error))
		return fmt.Errorf("failed to finish workflow run: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		r.logger.Info("Workflow run already finished",
			zap.String("workflow_id", id),
			zap.String("requested_status", string(status)))
		return nil
	}

	r.logger.Info("Workflow run finished",
		zap.String("workflow_id", id),
		zap.String("status", string(status)))
	return nil
}

// ListRunning returns non-terminal runs, oldest first
func (r *workflowRunRepository) ListRunning(ctx context.Context, limit int) ([]*model.WorkflowRun, error) {
	var runs []*model.WorkflowRun

	query := r.db.WithContext(ctx).
		Where("status = ?", model.WorkflowStatusRunning).
		Order("started_at ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&runs).Error; err != nil {
		r.logger.Error("Failed to list running workflows", zap.Error(err))
		return nil, fmt.Errorf("failed to list running workflows: %w", err)
	}

	return runs, nil
}
