package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerEntryType represents the type of wallet ledger entry
type LedgerEntryType string

const (
	LedgerEntryTypeROIDistribution LedgerEntryType = "roi_distribution"
	LedgerEntryTypeInvestment      LedgerEntryType = "investment"
	LedgerEntryTypeDeposit         LedgerEntryType = "deposit"
	LedgerEntryTypeRefund          LedgerEntryType = "refund"
	LedgerEntryTypeAdjustment      LedgerEntryType = "adjustment"
)

// Scan implements sql.Scanner interface
func (t *LedgerEntryType) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*t = LedgerEntryType(v)
	case []byte:
		*t = LedgerEntryType(v)
	default:
		return nil
	}
	return nil
}

// Value implements driver.Valuer interface
func (t LedgerEntryType) Value() (driver.Value, error) {
	return string(t), nil
}

// LedgerEntry is an append-only record of a wallet balance mutation.
// Balances are only ever changed by applying ledger entries.
type LedgerEntry struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_ledger_entries_owner_created" json:"owner_id"`
	Currency     string          `gorm:"size:10;not null" json:"currency"`
	EntryType    LedgerEntryType `gorm:"type:ledger_entry_type;not null" json:"entry_type"`
	Amount       decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount"`
	BalanceAfter decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"balance_after"`
	Description  string          `gorm:"not null" json:"description"`
	ReferenceID  *string         `gorm:"size:200;index:idx_ledger_entries_reference,where:reference_id IS NOT NULL" json:"reference_id,omitempty"`
	Metadata     JSONB           `gorm:"type:jsonb;default:'{}'" json:"metadata"`
	CreatedAt    time.Time       `gorm:"default:now();index:idx_ledger_entries_owner_created" json:"created_at"`
}

// TableName specifies the table name for GORM
func (LedgerEntry) TableName() string {
	return "wallet_ledger_entries"
}

// WalletBalance is the reduced current balance per owner and currency.
type WalletBalance struct {
	OwnerID     uuid.UUID       `gorm:"type:uuid;primaryKey" json:"owner_id"`
	Currency    string          `gorm:"size:10;primaryKey" json:"currency"`
	Balance     decimal.Decimal `gorm:"type:decimal(20,8)" json:"balance"`
	LastEntryAt time.Time       `json:"last_entry_at"`
}

// TableName specifies the table name for GORM
func (WalletBalance) TableName() string {
	return "wallet_balances"
}
