package models

import "time"

// Refund records one partial refund of a single registration. Immutable after
// creation.
type Refund struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	OrderID          string    `gorm:"type:varchar(36);not null;index" json:"order_id"`
	RegistrationID   string    `gorm:"type:varchar(36);not null;index" json:"registration_id"`
	AmountCents      int64     `gorm:"not null" json:"amount_cents"`
	ExternalRefundID string    `gorm:"type:varchar(191);not null;default:''" json:"external_refund_id"`
	Reason           string    `gorm:"type:varchar(500);default:''" json:"reason"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}
