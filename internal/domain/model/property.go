package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Property represents a crowdfunded real-estate property offering
type Property struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string          `gorm:"not null" json:"name"`
	Currency       string          `gorm:"size:10;not null" json:"currency"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"unit_price"`
	UnitsTotal     int64           `gorm:"not null" json:"units_total"`
	UnitsAllocated int64           `gorm:"not null;default:0" json:"units_allocated"`
	Status         string          `gorm:"size:50;default:'open'" json:"status"`
	CreatedAt      time.Time       `gorm:"default:now()" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Property) TableName() string {
	return "properties"
}

// UnitsAvailable returns the number of ownership units still unallocated.
func (p *Property) UnitsAvailable() int64 {
	return p.UnitsTotal - p.UnitsAllocated
}

// InvestmentHolding represents ownership units held by an investor in a
// property. A holding row is created per allocation; the reference id carries
// the workflow id so re-running an allocation step is detectable.
type InvestmentHolding struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PropertyID  uuid.UUID `gorm:"type:uuid;not null;index:idx_holdings_property" json:"property_id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Units       int64     `gorm:"not null" json:"units"`
	ReferenceID *string   `gorm:"size:200;unique" json:"reference_id,omitempty"`
	CreatedAt   time.Time `gorm:"default:now()" json:"created_at"`
}

// TableName specifies the table name for GORM
func (InvestmentHolding) TableName() string {
	return "investment_holdings"
}
