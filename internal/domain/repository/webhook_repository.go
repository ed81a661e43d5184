package repository

import (
	"context"
	"time"

	"github.com/irevahq/payments/internal/domain/model"
)

// WebhookRepository stores received provider webhook deliveries for
// dedupe and retry bookkeeping.
type WebhookRepository interface {
	// SaveEvent records a delivery. When the provider event id was already
	// recorded the stored event is returned with created=false.
	SaveEvent(ctx context.Context, event *model.ProviderWebhookEvent) (existing *model.ProviderWebhookEvent, created bool, err error)

	// GetEvent returns an event by provider event id, or nil
	GetEvent(ctx context.Context, providerEventID string) (*model.ProviderWebhookEvent, error)

	// MarkProcessed marks the event completed
	MarkProcessed(ctx context.Context, providerEventID string) error

	// MarkFailed records a processing failure and schedules the next retry
	// with exponential backoff
	MarkFailed(ctx context.Context, providerEventID string, processingErr error) error

	// GetPendingEvents returns failed or pending events due for retry
	GetPendingEvents(ctx context.Context, before time.Time, limit int) ([]*model.ProviderWebhookEvent, error)
}
