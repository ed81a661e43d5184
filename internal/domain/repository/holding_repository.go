package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/irevahq/payments/internal/domain/model"
)

// HoldingRepository manages properties and investor ownership units.
type HoldingRepository interface {
	// GetProperty returns a property by id, or nil when none exists
	GetProperty(ctx context.Context, propertyID uuid.UUID) (*model.Property, error)

	// AllocateUnits allocates ownership units to an investor atomically with
	// the property's allocation counter, enforcing the property cap. When a
	// holding with the same reference id already exists it is returned with
	// created=false and nothing is re-applied.
	AllocateUnits(ctx context.Context, propertyID, userID uuid.UUID, units int64, referenceID string) (holding *model.InvestmentHolding, created bool, err error)

	// ListHoldings returns all holdings for a property
	ListHoldings(ctx context.Context, propertyID uuid.UUID) ([]*model.InvestmentHolding, error)
}
