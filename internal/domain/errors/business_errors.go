package errors

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// InsufficientBalanceError is returned when a wallet cannot cover a debit
type InsufficientBalanceError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient wallet balance: requested %s, available %s", e.Requested.String(), e.Available.String())
}

// NewInsufficientBalanceError creates a new InsufficientBalanceError
func NewInsufficientBalanceError(requested, available decimal.Decimal) *InsufficientBalanceError {
	return &InsufficientBalanceError{
		Requested: requested,
		Available: available,
	}
}

// PropertyCapExceededError is returned when an investment would allocate more
// ownership units than the property has left.
type PropertyCapExceededError struct {
	Requested int64
	Available int64
}

func (e *PropertyCapExceededError) Error() string {
	return fmt.Sprintf("investment exceeds property cap: requested %d units, %d available", e.Requested, e.Available)
}

// NewPropertyCapExceededError creates a new PropertyCapExceededError
func NewPropertyCapExceededError(requested, available int64) *PropertyCapExceededError {
	return &PropertyCapExceededError{
		Requested: requested,
		Available: available,
	}
}

// PaymentNotConfirmedError is returned when an investment workflow cannot
// find a confirmed payment for its provider payment id.
type PaymentNotConfirmedError struct {
	ProviderPaymentID string
	Status            string
}

func (e *PaymentNotConfirmedError) Error() string {
	return fmt.Sprintf("payment %s is not confirmed (status: %s)", e.ProviderPaymentID, e.Status)
}
