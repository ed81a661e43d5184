package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	customErr "github.com/irevahq/payments/internal/domain/errors"
	"github.com/irevahq/payments/internal/domain/model"
	"github.com/irevahq/payments/internal/domain/repository"
)

// How long the workflow waits for a payment to confirm before giving up.
// CoinGate invoices expire well inside this window, so the expired webhook
// normally ends the wait first.
const (
	confirmationWindow       = 6 * time.Hour
	confirmationPollInterval = 10 * time.Second
)

// InvestmentInput is the typed input of an investment run
type InvestmentInput struct {
	UserID            uuid.UUID       `json:"user_id"`
	PropertyID        uuid.UUID       `json:"property_id"`
	ProviderPaymentID string          `json:"provider_payment_id"`
	Units             int64           `json:"units"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	PaymentMethod     string          `json:"payment_method"`
}

// InvestmentWorkflow processes a confirmed crypto payment into an ownership
// allocation and its ledger entries. Every step keys its side effect on the
// workflow id, so re-execution after a crash or retry never double-applies.
type InvestmentWorkflow struct {
	transactions  repository.TransactionRepository
	holdings      repository.HoldingRepository
	wallets       repository.WalletRepository
	notifications repository.NotificationRepository
	logger        *zap.Logger
}

// NewInvestmentWorkflow creates the investment workflow definition
func NewInvestmentWorkflow(
	transactions repository.TransactionRepository,
	holdings repository.HoldingRepository,
	wallets repository.WalletRepository,
	notifications repository.NotificationRepository,
	logger *zap.Logger,
) *InvestmentWorkflow {
	return &InvestmentWorkflow{
		transactions:  transactions,
		holdings:      holdings,
		wallets:       wallets,
		notifications: notifications,
		logger:        logger,
	}
}

// Run executes the investment steps: validate → confirm payment → allocate
// units → record ledger → notify.
func (w *InvestmentWorkflow) Run(rc *RunContext, input model.JSONB) (model.JSONB, error) {
	var in InvestmentInput
	if err := DecodeInput(input, &in); err != nil {
		return nil, Permanent(err)
	}

	output, err := w.run(rc, in)
	if err != nil && !errors.Is(err, context.Canceled) {
		w.notifyFailure(in, err)
	}
	return output, err
}

func (w *InvestmentWorkflow) run(rc *RunContext, in InvestmentInput) (model.JSONB, error) {
	if err := w.validate(in); err != nil {
		return nil, Permanent(err)
	}

	workflowID := rc.WorkflowID()

	// The payment confirms out of band (webhook or reconciliation), so this
	// step long-polls the transaction store instead of leaning on the engine's
	// bounded retry policy.
	err := rc.Step("confirm_payment", func(ctx context.Context) error {
		deadline := time.Now().Add(confirmationWindow)
		ticker := time.NewTicker(confirmationPollInterval)
		defer ticker.Stop()

		for {
			tx, err := w.transactions.GetByProviderPaymentID(ctx, in.ProviderPaymentID)
			if err != nil {
				return err
			}
			if tx != nil {
				switch tx.Status {
				case model.TransactionStatusConfirmed:
					return nil
				case model.TransactionStatusPending:
					// keep waiting
				default:
					return Permanent(&customErr.PaymentNotConfirmedError{
						ProviderPaymentID: in.ProviderPaymentID,
						Status:            string(tx.Status),
					})
				}
			}

			if time.Now().After(deadline) {
				return Permanent(&customErr.PaymentNotConfirmedError{
					ProviderPaymentID: in.ProviderPaymentID,
					Status:            "unconfirmed after wait window",
				})
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})
	if err != nil {
		return nil, err
	}

	var holding *model.InvestmentHolding
	err = rc.Step("allocate_units", func(ctx context.Context) error {
		h, _, err := w.holdings.AllocateUnits(ctx, in.PropertyID, in.UserID, in.Units, workflowID)
		if err != nil {
			var capErr *customErr.PropertyCapExceededError
			if errors.As(err, &capErr) {
				return Permanent(err)
			}
			return err
		}
		holding = h
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = rc.Step("record_ledger", func(ctx context.Context) error {
		// The confirmed payment is deposited, then immediately consumed by
		// the investment. Both entries are idempotent by reference id.
		_, _, err := w.wallets.Credit(ctx, in.UserID, in.Currency, in.Amount,
			model.LedgerEntryTypeDeposit,
			fmt.Sprintf("Crypto payment %s confirmed", in.ProviderPaymentID),
			"deposit-"+workflowID)
		if err != nil {
			return err
		}

		_, _, err = w.wallets.Debit(ctx, in.UserID, in.Currency, in.Amount,
			model.LedgerEntryTypeInvestment,
			fmt.Sprintf("Investment of %d units in property %s", in.Units, in.PropertyID),
			workflowID)
		if err != nil {
			var balErr *customErr.InsufficientBalanceError
			if errors.As(err, &balErr) {
				return Permanent(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Best-effort: a lost notification never fails a recorded investment.
	err = rc.Step("notify", func(ctx context.Context) error {
		notifErr := w.notifications.Create(ctx, &model.Notification{
			UserID:  in.UserID,
			Type:    model.NotificationInvestmentConfirmed,
			Title:   "Investment confirmed",
			Message: fmt.Sprintf("Your investment of %s %s (%d units) has been confirmed.", in.Amount, in.Currency, in.Units),
			Metadata: model.JSONB{
				"workflow_id":         workflowID,
				"property_id":         in.PropertyID.String(),
				"provider_payment_id": in.ProviderPaymentID,
			},
		})
		if notifErr != nil {
			w.logger.Warn("Failed to create investment notification",
				zap.String("workflow_id", workflowID),
				zap.String("user_id", in.UserID.String()),
				zap.Error(notifErr))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return model.JSONB{
		"holding_id":          holding.ID,
		"units":               in.Units,
		"amount":              in.Amount.String(),
		"currency":            in.Currency,
		"property_id":         in.PropertyID.String(),
		"provider_payment_id": in.ProviderPaymentID,
	}, nil
}

func (w *InvestmentWorkflow) validate(in InvestmentInput) error {
	if in.UserID == uuid.Nil {
		return errors.New("user id is required")
	}
	if in.PropertyID == uuid.Nil {
		return errors.New("property id is required")
	}
	if in.ProviderPaymentID == "" {
		return errors.New("provider payment id is required")
	}
	if in.Units <= 0 {
		return errors.New("units must be positive")
	}
	if !in.Amount.IsPositive() {
		return errors.New("amount must be positive")
	}
	if in.Currency == "" {
		return errors.New("currency is required")
	}
	return nil
}

func (w *InvestmentWorkflow) notifyFailure(in InvestmentInput, cause error) {
	if in.UserID == uuid.Nil {
		return
	}
	err := w.notifications.Create(context.Background(), &model.Notification{
		UserID:  in.UserID,
		Type:    model.NotificationInvestmentFailed,
		Title:   "Investment failed",
		Message: fmt.Sprintf("Your investment in property %s could not be completed: %s", in.PropertyID, cause),
		Metadata: model.JSONB{
			"property_id":         in.PropertyID.String(),
			"provider_payment_id": in.ProviderPaymentID,
		},
	})
	if err != nil {
		w.logger.Warn("Failed to create investment failure notification",
			zap.String("user_id", in.UserID.String()),
			zap.Error(err))
	}
}
