package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/irevahq/payments/internal/domain/model"
	"github.com/irevahq/payments/internal/domain/repository"
)

// amountScale is the decimal precision allocations are truncated to
const amountScale = 8

// ROIDistributionInput is the typed input of a distribution run
type ROIDistributionInput struct {
	PropertyID       uuid.UUID       `json:"property_id"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Currency         string          `json:"currency"`
	DistributionDate time.Time       `json:"distribution_date"`
	DistributionType string          `json:"distribution_type"`
}

// ROIDistributionWorkflow pays out returns to a property's investors
// proportionally to their holdings. Per-investor credits run concurrently and
// fail independently; the aggregate result accounts for every allocation.
type ROIDistributionWorkflow struct {
	holdings      repository.HoldingRepository
	wallets       repository.WalletRepository
	distributions repository.DistributionRepository
	notifications repository.NotificationRepository
	logger        *zap.Logger
}

// NewROIDistributionWorkflow creates the distribution workflow definition
func NewROIDistributionWorkflow(
	holdings repository.HoldingRepository,
	wallets repository.WalletRepository,
	distributions repository.DistributionRepository,
	notifications repository.NotificationRepository,
	logger *zap.Logger,
) *ROIDistributionWorkflow {
	return &ROIDistributionWorkflow{
		holdings:      holdings,
		wallets:       wallets,
		distributions: distributions,
		notifications: notifications,
		logger:        logger,
	}
}

// ComputeAllocations splits the total proportionally by held units. Shares
// are truncated to the amount scale; the rounding remainder goes to the
// largest holder (ties broken by user id) and is recorded on that allocation,
// so the sum of all allocations equals the total exactly.
func ComputeAllocations(total decimal.Decimal, holdings []*model.InvestmentHolding) []*model.ROIAllocation {
	unitsByUser := make(map[uuid.UUID]int64)
	var totalUnits int64
	for _, h := range holdings {
		unitsByUser[h.UserID] += h.Units
		totalUnits += h.Units
	}
	if totalUnits == 0 {
		return nil
	}

	users := make([]uuid.UUID, 0, len(unitsByUser))
	for userID := range unitsByUser {
		users = append(users, userID)
	}
	sort.Slice(users, func(i, j int) bool {
		ui, uj := unitsByUser[users[i]], unitsByUser[users[j]]
		if ui != uj {
			return ui > uj
		}
		return users[i].String() < users[j].String()
	})

	totalUnitsDec := decimal.NewFromInt(totalUnits)
	allocations := make([]*model.ROIAllocation, 0, len(users))
	allocated := decimal.Zero

	for _, userID := range users {
		units := unitsByUser[userID]
		share := total.Mul(decimal.NewFromInt(units)).Div(totalUnitsDec).Truncate(amountScale)
		allocated = allocated.Add(share)
		allocations = append(allocations, &model.ROIAllocation{
			UserID:    userID,
			Units:     units,
			Amount:    share,
			Remainder: decimal.Zero,
			Status:    model.AllocationStatusPending,
		})
	}

	remainder := total.Sub(allocated)
	if !remainder.IsZero() {
		// users is sorted largest holder first
		allocations[0].Amount = allocations[0].Amount.Add(remainder)
		allocations[0].Remainder = remainder
	}

	return allocations
}

// Run executes the distribution steps: load holdings → compute allocations →
// persist run → credit investors concurrently → notify → aggregate.
func (w *ROIDistributionWorkflow) Run(rc *RunContext, input model.JSONB) (model.JSONB, error) {
	var in ROIDistributionInput
	if err := DecodeInput(input, &in); err != nil {
		return nil, Permanent(err)
	}
	if in.PropertyID == uuid.Nil {
		return nil, Permanent(errors.New("property id is required"))
	}
	if !in.TotalAmount.IsPositive() {
		return nil, Permanent(errors.New("total amount must be positive"))
	}
	if in.Currency == "" {
		return nil, Permanent(errors.New("currency is required"))
	}
	if in.DistributionType == "" {
		in.DistributionType = "rental_income"
	}

	workflowID := rc.WorkflowID()

	var holdings []*model.InvestmentHolding
	err := rc.Step("load_holdings", func(ctx context.Context) error {
		h, err := w.holdings.ListHoldings(ctx, in.PropertyID)
		if err != nil {
			return err
		}
		if len(h) == 0 {
			return Permanent(fmt.Errorf("property %s has no investors", in.PropertyID))
		}
		holdings = h
		return nil
	})
	if err != nil {
		return nil, err
	}

	computed := ComputeAllocations(in.TotalAmount, holdings)

	var dist *model.ROIDistribution
	err = rc.Step("create_distribution", func(ctx context.Context) error {
		d := &model.ROIDistribution{
			PropertyID:       in.PropertyID,
			WorkflowID:       workflowID,
			TotalAmount:      in.TotalAmount,
			Currency:         in.Currency,
			DistributionDate: in.DistributionDate,
			DistributionType: in.DistributionType,
			Status:           model.WorkflowStatusRunning,
		}
		stored, _, err := w.distributions.CreateDistribution(ctx, d, computed)
		if err != nil {
			return err
		}
		dist = stored
		return nil
	})
	if err != nil {
		return nil, err
	}

	// A resumed run picks up the persisted allocations so investors already
	// credited are skipped.
	allocations := computed
	if len(dist.Allocations) > 0 {
		allocations = make([]*model.ROIAllocation, len(dist.Allocations))
		for i := range dist.Allocations {
			allocations[i] = &dist.Allocations[i]
		}
	}

	succeeded, failures := w.creditInvestors(rc.Context(), in, dist, allocations)

	if err := rc.Context().Err(); err != nil {
		// Cancellation mid-fan-out surfaces as per-credit context errors;
		// report the cancellation itself, not a failed batch. The
		// distribution row stays running so a resumed run picks it up.
		return nil, err
	}

	if succeeded == 0 && len(failures) == len(allocations) {
		// Every credit failed; likely infrastructure, leave the run failed so
		// a restart retries the whole batch (credits are idempotent).
		if err := w.distributions.FinishDistribution(rc.Context(), dist.ID, model.WorkflowStatusFailed); err != nil {
			w.logger.Error("Failed to finish distribution",
				zap.String("workflow_id", workflowID),
				zap.Error(err))
		}
		return nil, fmt.Errorf("all %d allocations failed", len(allocations))
	}

	finalStatus := model.WorkflowStatusCompleted
	if len(failures) > 0 {
		finalStatus = model.WorkflowStatusFailed
	}
	if err := w.distributions.FinishDistribution(rc.Context(), dist.ID, finalStatus); err != nil {
		return nil, err
	}

	failureMap := model.JSONB{}
	for userID, reason := range failures {
		failureMap[userID] = reason
	}

	return model.JSONB{
		"distribution_id": dist.ID,
		"property_id":     in.PropertyID.String(),
		"total_amount":    in.TotalAmount.String(),
		"currency":        in.Currency,
		"investors":       len(allocations),
		"succeeded":       succeeded,
		"failed":          len(failures),
		"failures":        failureMap,
	}, nil
}

// creditInvestors fans the wallet credits out concurrently. One investor's
// failure never blocks the others; outcomes are recorded per allocation.
func (w *ROIDistributionWorkflow) creditInvestors(ctx context.Context, in ROIDistributionInput, dist *model.ROIDistribution, allocations []*model.ROIAllocation) (int, map[string]string) {
	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		succeeded int
		failures  = make(map[string]string)
	)

	// Allocations credited by a previous run are counted before any worker
	// starts; from here on the counter is only written under mu.
	pending := make([]*model.ROIAllocation, 0, len(allocations))
	for _, alloc := range allocations {
		if alloc.Status == model.AllocationStatusSucceeded {
			succeeded++
			continue
		}
		pending = append(pending, alloc)
	}

	for _, alloc := range pending {
		wg.Add(1)
		go func(alloc *model.ROIAllocation) {
			defer wg.Done()

			referenceID := fmt.Sprintf("%s-%s", dist.WorkflowID, alloc.UserID)
			_, _, err := w.wallets.Credit(ctx, alloc.UserID, in.Currency, alloc.Amount,
				model.LedgerEntryTypeROIDistribution,
				fmt.Sprintf("ROI distribution for property %s", in.PropertyID),
				referenceID)

			if err != nil {
				reason := err.Error()
				if updateErr := w.distributions.UpdateAllocationStatus(ctx, alloc.ID, model.AllocationStatusFailed, &reason); updateErr != nil {
					w.logger.Error("Failed to record allocation failure",
						zap.Int64("allocation_id", alloc.ID),
						zap.Error(updateErr))
				}
				mu.Lock()
				failures[alloc.UserID.String()] = reason
				mu.Unlock()
				return
			}

			if err := w.distributions.UpdateAllocationStatus(ctx, alloc.ID, model.AllocationStatusSucceeded, nil); err != nil {
				w.logger.Error("Failed to record allocation success",
					zap.Int64("allocation_id", alloc.ID),
					zap.Error(err))
			}

			w.notifyInvestor(ctx, in, alloc)

			mu.Lock()
			succeeded++
			mu.Unlock()
		}(alloc)
	}

	wg.Wait()
	return succeeded, failures
}

func (w *ROIDistributionWorkflow) notifyInvestor(ctx context.Context, in ROIDistributionInput, alloc *model.ROIAllocation) {
	err := w.notifications.Create(ctx, &model.Notification{
		UserID:  alloc.UserID,
		Type:    model.NotificationROIReceived,
		Title:   "ROI payment received",
		Message: fmt.Sprintf("You received %s %s from property %s.", alloc.Amount, in.Currency, in.PropertyID),
		Metadata: model.JSONB{
			"property_id":       in.PropertyID.String(),
			"distribution_date": in.DistributionDate.Format("2006-01-02"),
			"units":             alloc.Units,
		},
	})
	if err != nil {
		w.logger.Warn("Failed to create ROI notification",
			zap.String("user_id", alloc.UserID.String()),
			zap.Error(err))
	}
}
