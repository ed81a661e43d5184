package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationStatus represents the per-investor outcome within a distribution
type AllocationStatus string

const (
	AllocationStatusPending   AllocationStatus = "pending"
	AllocationStatusSucceeded AllocationStatus = "succeeded"
	AllocationStatusFailed    AllocationStatus = "failed"
)

// Scan implements sql.Scanner interface
func (s *AllocationStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = AllocationStatus(v)
	case []byte:
		*s = AllocationStatus(v)
	default:
		*s = AllocationStatusPending
	}
	return nil
}

// Value implements driver.Valuer interface
func (s AllocationStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// ROIDistribution is a distribution run of returns to a property's investors.
// The workflow id makes the run idempotent per (property, distribution date).
type ROIDistribution struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	PropertyID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"property_id"`
	WorkflowID       string          `gorm:"unique;not null;size:200" json:"workflow_id"`
	TotalAmount      decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"total_amount"`
	Currency         string          `gorm:"size:10;not null" json:"currency"`
	DistributionDate time.Time       `gorm:"not null" json:"distribution_date"`
	DistributionType string          `gorm:"size:50;default:'rental_income'" json:"distribution_type"`
	Status           WorkflowStatus  `gorm:"type:workflow_status;default:'running'" json:"status"`
	CreatedAt        time.Time       `gorm:"default:now()" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"default:now()" json:"updated_at"`

	// Relations
	Allocations []ROIAllocation `gorm:"foreignKey:DistributionID" json:"allocations,omitempty"`
}

// TableName specifies the table name for GORM
func (ROIDistribution) TableName() string {
	return "roi_distributions"
}

// ROIAllocation is one investor's share of a distribution run. The rounding
// remainder, when applied, is recorded so the payout stays auditable.
type ROIAllocation struct {
	ID             int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	DistributionID int64            `gorm:"not null;uniqueIndex:idx_roi_allocations_dist_user" json:"distribution_id"`
	UserID         uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_roi_allocations_dist_user" json:"user_id"`
	Units          int64            `gorm:"not null" json:"units"`
	Amount         decimal.Decimal  `gorm:"type:decimal(20,8);not null" json:"amount"`
	Remainder      decimal.Decimal  `gorm:"type:decimal(20,8);default:0" json:"remainder"`
	Status         AllocationStatus `gorm:"type:allocation_status;default:'pending'" json:"status"`
	FailureReason  *string          `json:"failure_reason,omitempty"`
	CreatedAt      time.Time        `gorm:"default:now()" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (ROIAllocation) TableName() string {
	return "roi_allocations"
}
