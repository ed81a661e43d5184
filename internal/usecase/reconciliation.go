package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/irevahq/payments/internal/domain/model"
	"github.com/irevahq/payments/internal/domain/provider"
	"github.com/irevahq/payments/internal/domain/repository"
)

// Reconciler polls the provider for transactions stuck in pending beyond a
// threshold. Webhook deliveries get lost; the poller feeds the provider's
// answer through the same idempotent status-update path the webhook uses, so
// the two sources can never disagree on the final state.
type Reconciler struct {
	provider     provider.CryptoPaymentProvider
	transactions repository.TransactionRepository
	payments     *PaymentService
	logger       *zap.Logger

	schedule     string
	pendingAfter time.Duration
	batchSize    int
	cron         *cron.Cron
}

// NewReconciler creates a reconciliation poller. The schedule is a cron
// expression; pendingAfter is how long a transaction must sit in pending
// before it is re-queried.
func NewReconciler(
	paymentProvider provider.CryptoPaymentProvider,
	transactions repository.TransactionRepository,
	payments *PaymentService,
	schedule string,
	pendingAfter time.Duration,
	batchSize int,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		provider:     paymentProvider,
		transactions: transactions,
		payments:     payments,
		logger:       logger,
		schedule:     schedule,
		pendingAfter: pendingAfter,
		batchSize:    batchSize,
	}
}

// Start schedules the poller. Returns an error when the cron expression is
// invalid, so a misconfiguration fails at boot instead of silently never
// running.
func (r *Reconciler) Start() error {
	c := cron.New()
	_, err := c.AddFunc(r.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := r.Run(ctx); err != nil {
			r.logger.Error("Reconciliation run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid reconciliation schedule %q: %w", r.schedule, err)
	}
	c.Start()
	r.cron = c

	r.logger.Info("Reconciliation poller started",
		zap.String("schedule", r.schedule),
		zap.Duration("pending_after", r.pendingAfter))
	return nil
}

// Stop halts the scheduler and waits for an in-flight run to finish
func (r *Reconciler) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// Run executes one reconciliation pass: stuck pending transactions are
// re-queried at the provider, then stored webhook events due for retry are
// replayed.
func (r *Reconciler) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-r.pendingAfter)
	stuck, err := r.transactions.ListPendingOlderThan(ctx, cutoff, r.batchSize)
	if err != nil {
		return err
	}

	if len(stuck) > 0 {
		r.logger.Info("Reconciling stuck pending transactions",
			zap.Int("count", len(stuck)))

		for _, tx := range stuck {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := r.reconcileOne(ctx, tx); err != nil {
				r.logger.Warn("Failed to reconcile transaction",
					zap.String("provider_payment_id", tx.ProviderPaymentID),
					zap.Error(err))
			}
		}
	}

	return r.payments.RetryPendingEvents(ctx, r.batchSize)
}

func (r *Reconciler) reconcileOne(ctx context.Context, tx *model.CryptoTransaction) error {
	info, err := r.provider.GetPayment(ctx, tx.ProviderPaymentID)
	if err != nil {
		return err
	}

	status, known := r.provider.MapStatus(info.Status)
	if !known {
		r.logger.Warn("Provider returned unknown status during reconciliation",
			zap.String("provider_payment_id", tx.ProviderPaymentID),
			zap.String("provider_status", info.Status))
	}
	if status == model.TransactionStatusPending {
		return nil
	}

	meta := repository.StatusMetadata{
		TxHash:        info.TxHash,
		Confirmations: info.Confirmations,
	}
	updated, applied, err := r.transactions.ApplyStatusUpdate(ctx, tx.ProviderPaymentID, status, meta)
	if err != nil {
		return err
	}

	if applied {
		r.logger.Info("Transaction reconciled",
			zap.String("provider_payment_id", tx.ProviderPaymentID),
			zap.String("status", string(status)))
		if updated.Status == model.TransactionStatusConfirmed {
			r.payments.startInvestmentIfLinked(ctx, updated)
		}
	}
	return nil
}
