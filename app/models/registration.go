package models

import "time"

// Registration lifecycle. The status mirrors but lags the owning order.
const (
	RegistrationStatusDraft          = "DRAFT"
	RegistrationStatusPendingPayment = "PENDING_PAYMENT"
	RegistrationStatusPaid           = "PAID"
	RegistrationStatusCheckedIn      = "CHECKED_IN"
	RegistrationStatusCanceled       = "CANCELED"
	RegistrationStatusRefunded       = "REFUNDED"
)

// Registration is one participant inside an order. It is owned exclusively by
// its order and is never deleted once paid, except through a refund.
type Registration struct {
	ID            string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrderID       string     `gorm:"type:varchar(36);not null;index" json:"order_id"`
	EventID       string     `gorm:"type:varchar(36);not null;index:idx_registrations_event_taxid,priority:1" json:"event_id"`
	FullName      string     `gorm:"type:varchar(200);not null" json:"full_name"`
	TaxID         string     `gorm:"type:varchar(14);not null;index:idx_registrations_event_taxid,priority:2" json:"tax_id"`
	BirthDate     *time.Time `gorm:"type:date;default:null" json:"birth_date,omitempty"`
	RegionID      string     `gorm:"type:varchar(36);default:'';index" json:"region_id"`
	PhotoURL      string     `gorm:"type:varchar(500);default:''" json:"photo_url"`
	PriceCents    int64      `gorm:"not null;default:0" json:"price_cents"`
	Status        string     `gorm:"type:varchar(32);not null;default:'PENDING_PAYMENT';index" json:"status"`
	PaymentMethod string     `gorm:"type:varchar(32);not null;default:'PIX'" json:"payment_method"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	PaidAt        *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
}
