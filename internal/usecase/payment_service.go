package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/irevahq/payments/internal/domain/model"
	"github.com/irevahq/payments/internal/domain/provider"
	"github.com/irevahq/payments/internal/domain/repository"
	"github.com/irevahq/payments/internal/workflow"
)

// Webhook processing errors the handler maps to response codes
var (
	// ErrWebhookAuthentication covers a missing or invalid signature
	ErrWebhookAuthentication = errors.New("webhook authentication failed")
	// ErrWebhookPayload covers an authenticated but unparseable payload
	ErrWebhookPayload = errors.New("webhook payload invalid")
)

// PaymentService processes verified provider webhook events through the
// idempotent transaction state machine and starts the investment workflow
// when a payment confirms.
type PaymentService struct {
	provider     provider.CryptoPaymentProvider
	transactions repository.TransactionRepository
	webhooks     repository.WebhookRepository
	workflows    workflow.Client
	logger       *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	paymentProvider provider.CryptoPaymentProvider,
	transactions repository.TransactionRepository,
	webhooks repository.WebhookRepository,
	workflows workflow.Client,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		provider:     paymentProvider,
		transactions: transactions,
		webhooks:     webhooks,
		workflows:    workflows,
		logger:       logger,
	}
}

// ProcessWebhook verifies and applies one webhook delivery. Authentication
// and payload errors return the sentinel errors above and mutate nothing;
// any other error is infrastructure, and the caller responds 5xx so the
// provider redelivers.
func (s *PaymentService) ProcessWebhook(ctx context.Context, rawBody []byte, signature string) error {
	if err := s.provider.VerifyWebhook(rawBody, signature); err != nil {
		s.logger.Warn("Webhook signature verification failed",
			zap.String("provider", s.provider.GetProviderName()),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrWebhookAuthentication, err)
	}

	event, err := s.provider.ParseWebhook(rawBody)
	if err != nil {
		s.logger.Warn("Webhook payload parse failed",
			zap.String("provider", s.provider.GetProviderName()),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrWebhookPayload, err)
	}

	s.logger.Info("Processing webhook event",
		zap.String("event_id", event.EventID),
		zap.String("provider_payment_id", event.ProviderPaymentID),
		zap.String("provider_status", event.Status))

	record := &model.ProviderWebhookEvent{
		ProviderEventID:   event.EventID,
		EventType:         event.EventType,
		Data:              model.JSONB(event.Data),
		ProviderCreatedAt: &event.CreatedAt,
	}
	stored, created, err := s.webhooks.SaveEvent(ctx, record)
	if err != nil {
		return err
	}
	if !created && stored.Status == model.WebhookStatusCompleted {
		s.logger.Info("Webhook event already processed, skipping",
			zap.String("event_id", event.EventID))
		return nil
	}

	if err := s.applyEvent(ctx, event); err != nil {
		if markErr := s.webhooks.MarkFailed(ctx, event.EventID, err); markErr != nil {
			s.logger.Error("Failed to record webhook failure",
				zap.String("event_id", event.EventID),
				zap.Error(markErr))
		}
		return err
	}

	if err := s.webhooks.MarkProcessed(ctx, event.EventID); err != nil {
		s.logger.Error("Failed to mark webhook event processed",
			zap.String("event_id", event.EventID),
			zap.Error(err))
	}
	return nil
}

// RetryPendingEvents re-applies stored webhook events whose processing failed
// and whose retry backoff has elapsed. The stored payload is replayed through
// the same parse-and-apply path a live delivery takes, so a retried event can
// never diverge from a redelivered one.
func (s *PaymentService) RetryPendingEvents(ctx context.Context, limit int) error {
	events, err := s.webhooks.GetPendingEvents(ctx, time.Now().UTC(), limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	s.logger.Info("Retrying stored webhook events", zap.Int("count", len(events)))

	for _, stored := range events {
		if err := ctx.Err(); err != nil {
			return err
		}

		body, err := json.Marshal(stored.Data)
		if err != nil {
			s.logger.Error("Failed to encode stored webhook payload",
				zap.String("provider_event_id", stored.ProviderEventID),
				zap.Error(err))
			continue
		}

		event, err := s.provider.ParseWebhook(body)
		if err != nil {
			if markErr := s.webhooks.MarkFailed(ctx, stored.ProviderEventID, err); markErr != nil {
				s.logger.Error("Failed to record webhook retry failure",
					zap.String("provider_event_id", stored.ProviderEventID),
					zap.Error(markErr))
			}
			continue
		}

		if err := s.applyEvent(ctx, event); err != nil {
			if markErr := s.webhooks.MarkFailed(ctx, stored.ProviderEventID, err); markErr != nil {
				s.logger.Error("Failed to record webhook retry failure",
					zap.String("provider_event_id", stored.ProviderEventID),
					zap.Error(markErr))
			}
			continue
		}

		if err := s.webhooks.MarkProcessed(ctx, stored.ProviderEventID); err != nil {
			s.logger.Error("Failed to mark webhook event processed",
				zap.String("provider_event_id", stored.ProviderEventID),
				zap.Error(err))
		}
	}
	return nil
}

// applyEvent maps the provider status and feeds it through the transaction
// state machine, then starts the investment workflow on confirmation.
func (s *PaymentService) applyEvent(ctx context.Context, event *provider.WebhookEvent) error {
	status, known := s.provider.MapStatus(event.Status)
	if !known {
		s.logger.Warn("Webhook carried unknown provider status, mapped to pending",
			zap.String("event_id", event.EventID),
			zap.String("provider_status", event.Status))
	}

	meta := repository.StatusMetadata{
		TxHash:        event.TxHash,
		Confirmations: event.Confirmations,
		ProviderData:  model.JSONB(event.Data),
		Currency:      event.Currency,
	}
	if event.Amount.IsPositive() {
		amount := event.Amount
		meta.Amount = &amount
	}

	tx, applied, err := s.transactions.ApplyStatusUpdate(ctx, event.ProviderPaymentID, status, meta)
	if err != nil {
		return err
	}

	if applied && tx.Status == model.TransactionStatusConfirmed {
		s.startInvestmentIfLinked(ctx, tx)
	}
	return nil
}

// startInvestmentIfLinked starts the investment workflow for a confirmed
// payment that carries investment context. Deterministic workflow ids make
// this idempotent against the initiation flow having already started it.
func (s *PaymentService) startInvestmentIfLinked(ctx context.Context, tx *model.CryptoTransaction) {
	if tx.UserID == nil || tx.PropertyID == nil || tx.Units == nil {
		s.logger.Info("Confirmed payment has no investment context, skipping workflow",
			zap.String("provider_payment_id", tx.ProviderPaymentID))
		return
	}

	workflowID := workflow.InvestmentWorkflowID(*tx.UserID, *tx.PropertyID, tx.CreatedAt)
	input, err := workflow.EncodeInput(workflow.InvestmentInput{
		UserID:            *tx.UserID,
		PropertyID:        *tx.PropertyID,
		ProviderPaymentID: tx.ProviderPaymentID,
		Units:             *tx.Units,
		Amount:            tx.Amount,
		Currency:          tx.Currency,
		PaymentMethod:     "crypto",
	})
	if err != nil {
		s.logger.Error("Failed to encode investment workflow input",
			zap.String("provider_payment_id", tx.ProviderPaymentID),
			zap.Error(err))
		return
	}

	if _, err := s.workflows.Start(ctx, model.WorkflowKindInvestment, workflowID, input); err != nil {
		s.logger.Error("Failed to start investment workflow from webhook",
			zap.String("workflow_id", workflowID),
			zap.String("provider_payment_id", tx.ProviderPaymentID),
			zap.Error(err))
		return
	}

	s.logger.Info("Investment workflow started from confirmed payment",
		zap.String("workflow_id", workflowID),
		zap.String("provider_payment_id", tx.ProviderPaymentID))
}
