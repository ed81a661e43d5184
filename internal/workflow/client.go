package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/irevahq/payments/internal/domain/model"
)

// Client is the orchestration surface exposed to the rest of the service.
// Implementations must guarantee idempotent start: starting a workflow id that
// is already running or finished resolves to the existing run instead of
// executing a duplicate.
type Client interface {
	// Start begins (or resolves to) the workflow with the given id. The kind
	// selects a registered workflow definition.
	Start(ctx context.Context, kind, workflowID string, input model.JSONB) (Handle, error)

	// GetHandle returns a handle to an existing run without starting anything
	GetHandle(workflowID string) Handle

	// Result blocks until the run reaches a terminal state or ctx expires.
	// A ctx expiry means "unknown, check again later", not failure.
	Result(ctx context.Context, workflowID string) (*Result, error)

	// Cancel requests cooperative cancellation of a running workflow
	Cancel(ctx context.Context, workflowID string) error

	// Query returns the current persisted state of a run, or nil
	Query(ctx context.Context, workflowID string) (*model.WorkflowRun, error)
}

// Handle refers to one workflow run
type Handle interface {
	WorkflowID() string

	// Result blocks until the run reaches a terminal state or ctx expires
	Result(ctx context.Context) (*Result, error)
}

// Result is the terminal outcome of a workflow run
type Result struct {
	WorkflowID    string
	Status        model.WorkflowStatus
	Output        model.JSONB
	FailureReason string
}

// Succeeded reports whether the run completed without failure
func (r *Result) Succeeded() bool {
	return r.Status == model.WorkflowStatusCompleted
}

// InvestmentWorkflowID derives the deterministic id for an investment run.
// The timestamp comes from the caller (payment initiation time) so a retry of
// the same investment resolves to the same id.
func InvestmentWorkflowID(userID, propertyID uuid.UUID, initiatedAt time.Time) string {
	return fmt.Sprintf("invest-%s-%s-%d", userID, propertyID, initiatedAt.UTC().Unix())
}

// ROIWorkflowID derives the deterministic id for a distribution run, keyed by
// property and distribution date.
func ROIWorkflowID(propertyID uuid.UUID, distributionDate time.Time) string {
	return fmt.Sprintf("roi-%s-%s", propertyID, distributionDate.UTC().Format("2006-01-02"))
}

// EncodeInput converts a typed workflow input into the persisted JSONB form
func EncodeInput(v interface{}) (model.JSONB, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode workflow input: %w", err)
	}
	var m model.JSONB
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("failed to encode workflow input: %w", err)
	}
	return m, nil
}

// DecodeInput converts persisted JSONB input back into its typed form
func DecodeInput(in model.JSONB, v interface{}) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to decode workflow input: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("failed to decode workflow input: %w", err)
	}
	return nil
}
