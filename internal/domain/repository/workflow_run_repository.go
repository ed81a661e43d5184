package repository

import (
	"context"

	"github.com/irevahq/payments/internal/domain/model"
)

// WorkflowRunRepository persists durable workflow run records. The workflow
// id is the primary key, so inserting an id that already exists resolves to
// the existing run instead of starting a duplicate.
type WorkflowRunRepository interface {
	// Insert creates the run record. When a run with the same id already
	// exists it is returned with created=false.
	Insert(ctx context.Context, run *model.WorkflowRun) (existing *model.WorkflowRun, created bool, err error)

	// Get returns a run by workflow id, or nil when none exists
	Get(ctx context.Context, id string) (*model.WorkflowRun, error)

	// SetStep records the step the run is currently executing
	SetStep(ctx context.Context, id, step string) error

	// Finish moves the run to a terminal status with its result or failure
	// reason. Finishing an already-finished run is a no-op.
	Finish(ctx context.Context, id string, status model.WorkflowStatus, result model.JSONB, failureReason *string) error

	// ListRunning returns non-terminal runs, oldest first, so interrupted
	// workflows can be resumed at startup
	ListRunning(ctx context.Context, limit int) ([]*model.WorkflowRun, error)
}
