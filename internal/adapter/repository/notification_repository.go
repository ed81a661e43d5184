package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/irevahq/payments/internal/domain/model"
	domainRepo "github.com/irevahq/payments/internal/domain/repository"
)

// notificationRepository implements the NotificationRepository interface
type notificationRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository instance
func NewNotificationRepository(db *gorm.DB, logger *zap.Logger) domainRepo.NotificationRepository {
	return &notificationRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a notification
func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		r.logger.Error("Failed to create notification",
			zap.String("user_id", n.UserID.String()),
			zap.String("type", string(n.Type)),
			zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListByUser returns a user's notifications, newest first
func (r *notificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Notification, error) {
	var notifications []*model.Notification

	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&notifications).Error; err != nil {
		r.logger.Error("Failed to list notifications",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	return notifications, nil
}
