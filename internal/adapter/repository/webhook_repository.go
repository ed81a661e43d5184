package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/irevahq/payments/internal/domain/model"
	domainRepo "github.com/irevahq/payments/internal/domain/repository"
)

// webhookRepository implements the WebhookRepository interface
type webhookRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewWebhookRepository creates a new webhook repository instance
func NewWebhookRepository(db *gorm.DB, logger *zap.Logger) domainRepo.WebhookRepository {
	return &webhookRepository{
		db:     db,
		logger: logger,
	}
}

// SaveEvent records a delivery. The provider event id is unique, so a
// repeated delivery of the same event is detected here before any state is
// touched.
func (r *webhookRepository) SaveEvent(ctx context.Context, event *model.ProviderWebhookEvent) (*model.ProviderWebhookEvent, bool, error) {
	if event.Status == "" {
		event.Status = model.WebhookStatusPending
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(event)

	if result.Error != nil {
		r.logger.Error("Failed to save webhook event",
			zap.String("provider_event_id", event.ProviderEventID),
			zap.Error(result.Error))
		return nil, false, fmt.Errorf("failed to save webhook event: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		var existing model.ProviderWebhookEvent
		if err := r.db.WithContext(ctx).Where("provider_event_id = ?", event.ProviderEventID).First(&existing).Error; err != nil {
			return nil, false, fmt.Errorf("failed to fetch existing webhook event: %w", err)
		}
		r.logger.Info("Webhook event already recorded (duplicate delivery)",
			zap.String("provider_event_id", event.ProviderEventID),
			zap.String("status", string(existing.Status)))
		return &existing, false, nil
	}

	return event, true, nil
}

// GetEvent returns an event by provider event id, or nil
func (r *webhookRepository) GetEvent(ctx context.Context, providerEventID string) (*model.ProviderWebhookEvent, error) {
	var event model.ProviderWebhookEvent

	err := r.db.WithContext(ctx).
		Where("provider_event_id = ?", providerEventID).
		First(&event).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get webhook event",
			zap.String("provider_event_id", providerEventID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}

	return &event, nil
}

// MarkProcessed marks the event completed
func (r *webhookRepository) MarkProcessed(ctx context.Context, providerEventID string) error {
	now := time.Now().UTC()

	err := r.db.WithContext(ctx).
		Model(&model.ProviderWebhookEvent{}).
		Where("provider_event_id = ?", providerEventID).
		Updates(map[string]interface{}{
			"status":        model.WebhookStatusCompleted,
			"processed_at":  now,
			"last_error":    nil,
			"next_retry_at": nil,
		}).Error

	if err != nil {
		r.logger.Error("Failed to mark webhook event processed",
			zap.String("provider_event_id", providerEventID),
			zap.Error(err))
		return fmt.Errorf("failed to mark webhook event processed: %w", err)
	}
	return nil
}

// MarkFailed records a processing failure and schedules the next retry with
// exponential backoff (1m, 2m, 4m, ... capped at 1h).
func (r *webhookRepository) MarkFailed(ctx context.Context, providerEventID string, processingErr error) error {
	var event model.ProviderWebhookEvent
	if err := r.db.WithContext(ctx).Where("provider_event_id = ?", providerEventID).First(&event).Error; err != nil {
		return fmt.Errorf("failed to get webhook event for failure: %w", err)
	}

	attempts := event.ProcessingAttempts + 1
	backoff := time.Duration(math.Min(
		float64(time.Minute)*math.Pow(2, float64(attempts-1)),
		float64(time.Hour),
	))
	nextRetry := time.Now().UTC().Add(backoff)
	errMsg := processingErr.Error()

	err := r.db.WithContext(ctx).
		Model(&model.ProviderWebhookEvent{}).
		Where("provider_event_id = ?", providerEventID).
		Updates(map[string]interface{}{
			"status":              model.WebhookStatusFailed,
			"processing_attempts": attempts,
			"last_error":          errMsg,
			"next_retry_at":       nextRetry,
		}).Error

	if err != nil {
		r.logger.Error("Failed to mark webhook event failed",
			zap.String("provider_event_id", providerEventID),
			zap.Error(err))
		return fmt.Errorf("failed to mark webhook event failed: %w", err)
	}

	r.logger.Warn("Webhook event processing failed",
		zap.String("provider_event_id", providerEventID),
		zap.Int("attempts", attempts),
		zap.Time("next_retry_at", nextRetry),
		zap.String("error", errMsg))
	return nil
}

// GetPendingEvents returns failed or pending events due for retry
func (r *webhookRepository) GetPendingEvents(ctx context.Context, before time.Time, limit int) ([]*model.ProviderWebhookEvent, error) {
	var events []*model.ProviderWebhookEvent

	query := r.db.WithContext(ctx).
		Where("status IN ? AND (next_retry_at IS NULL OR next_retry_at <= ?)",
			[]model.WebhookStatus{model.WebhookStatusPending, model.WebhookStatusFailed}, before).
		Order("created_at ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&events).Error; err != nil {
		r.logger.Error("Failed to get pending webhook events", zap.Error(err))
		return nil, fmt.Errorf("failed to get pending webhook events: %w", err)
	}

	return events, nil
}
