package repository

import (
	"context"

	"github.com/irevahq/payments/internal/domain/model"
)

// DistributionRepository persists ROI distribution runs and their
// per-investor allocations.
type DistributionRepository interface {
	// CreateDistribution inserts the distribution run with its computed
	// allocations. When a distribution with the same workflow id already
	// exists it is returned with created=false.
	CreateDistribution(ctx context.Context, dist *model.ROIDistribution, allocations []*model.ROIAllocation) (existing *model.ROIDistribution, created bool, err error)

	// GetByWorkflowID returns a distribution with its allocations, or nil
	GetByWorkflowID(ctx context.Context, workflowID string) (*model.ROIDistribution, error)

	// UpdateAllocationStatus records one investor's outcome
	UpdateAllocationStatus(ctx context.Context, allocationID int64, status model.AllocationStatus, failureReason *string) error

	// FinishDistribution moves the run to a terminal status
	FinishDistribution(ctx context.Context, distributionID int64, status model.WorkflowStatus) error
}
