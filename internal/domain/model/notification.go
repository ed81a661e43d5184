package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
)

// NotificationType is the closed set of user-visible notification kinds.
// Adding a kind means extending this enum and every switch over it.
type NotificationType string

const (
	NotificationInvestmentConfirmed NotificationType = "investment_confirmed"
	NotificationInvestmentFailed    NotificationType = "investment_failed"
	NotificationROIReceived         NotificationType = "roi_received"
	NotificationPaymentExpired      NotificationType = "payment_expired"
)

// Scan implements sql.Scanner interface
func (t *NotificationType) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*t = NotificationType(v)
	case []byte:
		*t = NotificationType(v)
	default:
		return nil
	}
	return nil
}

// Value implements driver.Valuer interface
func (t NotificationType) Value() (driver.Value, error) {
	return string(t), nil
}

// Notification is a user-visible notification record. Delivery is
// best-effort; the ledger is authoritative.
type Notification struct {
	ID        int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	Type      NotificationType `gorm:"type:notification_type;not null" json:"type"`
	Title     string           `gorm:"not null" json:"title"`
	Message   string           `gorm:"not null" json:"message"`
	Metadata  JSONB            `gorm:"type:jsonb;default:'{}'" json:"metadata"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
	CreatedAt time.Time        `gorm:"default:now()" json:"created_at"`
}

// TableName specifies the table name for GORM
func (Notification) TableName() string {
	return "notifications"
}
