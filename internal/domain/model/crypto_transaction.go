package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus represents the internal state of a crypto transaction
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusConfirmed TransactionStatus = "confirmed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusExpired   TransactionStatus = "expired"
)

// Scan implements sql.Scanner interface
func (s *TransactionStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = TransactionStatus(v)
	case []byte:
		*s = TransactionStatus(v)
	default:
		*s = TransactionStatusPending
	}
	return nil
}

// Value implements driver.Valuer interface
func (s TransactionStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// IsTerminal reports whether the status is final. Terminal states are immutable.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionStatusConfirmed, TransactionStatusFailed, TransactionStatusExpired:
		return true
	}
	return false
}

// CanTransitionTo reports whether a transition from s to next is a valid
// forward move. The only valid transitions are pending -> {confirmed, failed,
// expired}. Re-applying the current status is not a transition.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	if s.IsTerminal() || next == s {
		return false
	}
	return s == TransactionStatusPending && next.IsTerminal()
}

// CryptoTransaction represents a crypto payment tracked against a provider
// payment id. Records are never hard-deleted; they are retained for audit.
type CryptoTransaction struct {
	ID                int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID            *uuid.UUID        `gorm:"type:uuid;index" json:"user_id,omitempty"`
	PropertyID        *uuid.UUID        `gorm:"type:uuid;index" json:"property_id,omitempty"`
	Units             *int64            `json:"units,omitempty"`
	ProviderPaymentID string            `gorm:"unique;not null;size:100;index" json:"provider_payment_id"`
	Amount            decimal.Decimal   `gorm:"type:decimal(20,8);not null" json:"amount"`
	Currency          string            `gorm:"size:10;not null" json:"currency"`
	Status            TransactionStatus `gorm:"type:crypto_transaction_status;default:'pending';index" json:"status"`
	WalletAddress     *string           `gorm:"size:128" json:"wallet_address,omitempty"`
	Network           *string           `gorm:"size:50" json:"network,omitempty"`
	TxHash            *string           `gorm:"size:128" json:"tx_hash,omitempty"`
	BlockNumber       *int64            `json:"block_number,omitempty"`
	Confirmations     int               `gorm:"default:0" json:"confirmations"`
	ProviderData      JSONB             `gorm:"type:jsonb" json:"provider_data,omitempty"`
	ConfirmedAt       *time.Time        `json:"confirmed_at,omitempty"`
	CreatedAt         time.Time         `gorm:"default:now()" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (CryptoTransaction) TableName() string {
	return "crypto_transactions"
}
