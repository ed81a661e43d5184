package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/irevahq/payments/internal/domain/model"
)

// NotificationRepository stores user-visible notifications. Writes are
// best-effort from the caller's perspective; a failed notification never
// rolls back a ledger update.
type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Notification, error)
}
