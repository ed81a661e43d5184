package model

import (
	"database/sql/driver"
	"time"
)

// WorkflowStatus represents the lifecycle state of a workflow run
type WorkflowStatus string

const (
	WorkflowStatusRunning   WorkflowStatus = "running"
	WorkflowStatusCompleted WorkflowStatus = "completed"
	WorkflowStatusFailed    WorkflowStatus = "failed"
	WorkflowStatusCanceled  WorkflowStatus = "canceled"
)

// Scan implements sql.Scanner interface
func (s *WorkflowStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = WorkflowStatus(v)
	case []byte:
		*s = WorkflowStatus(v)
	default:
		*s = WorkflowStatusRunning
	}
	return nil
}

// Value implements driver.Valuer interface
func (s WorkflowStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// IsTerminal reports whether the workflow run has finished.
func (s WorkflowStatus) IsTerminal() bool {
	switch s {
	case WorkflowStatusCompleted, WorkflowStatusFailed, WorkflowStatusCanceled:
		return true
	}
	return false
}

// Workflow kinds
const (
	WorkflowKindInvestment      = "investment"
	WorkflowKindROIDistribution = "roi_distribution"
)

// WorkflowRun is the durable record of a workflow execution. The primary key
// is the workflow id, so starting the same logical workflow twice resolves to
// one row.
type WorkflowRun struct {
	ID            string         `gorm:"primaryKey;size:200" json:"id"`
	Kind          string         `gorm:"size:50;not null;index" json:"kind"`
	Input         JSONB          `gorm:"type:jsonb;not null" json:"input"`
	CurrentStep   string         `gorm:"size:100" json:"current_step"`
	Status        WorkflowStatus `gorm:"type:workflow_status;default:'running';index" json:"status"`
	Result        JSONB          `gorm:"type:jsonb" json:"result,omitempty"`
	FailureReason *string        `json:"failure_reason,omitempty"`
	StartedAt     time.Time      `gorm:"default:now()" json:"started_at"`
	FinishedAt    *time.Time     `json:"finished_at,omitempty"`
	UpdatedAt     time.Time      `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (WorkflowRun) TableName() string {
	return "workflow_runs"
}
