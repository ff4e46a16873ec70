package models

import "time"

// Pricing rules applied to pending orders when the active lot changes.
const (
	PendingPricingKeepOriginal = "KEEP_ORIGINAL"
	PendingPricingActiveLot    = "UPDATE_TO_ACTIVE_LOT"
)

// Event is the minimal slice of the catalog the payment core needs: whether
// registrations are open, the fallback unit price and the owner entitled to
// payouts. Full catalog CRUD lives outside this service.
type Event struct {
	ID                 string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title              string    `gorm:"type:varchar(200);not null" json:"title"`
	OwnerPayeeID       string    `gorm:"type:varchar(36);default:'';index" json:"owner_payee_id"`
	PriceCents         int64     `gorm:"not null;default:0" json:"price_cents"`
	MinAgeYears        int       `gorm:"not null;default:0" json:"min_age_years"`
	IsFree             bool      `gorm:"default:false" json:"is_free"`
	IsActive           bool      `gorm:"default:true;index" json:"is_active"`
	PendingPricingRule string    `gorm:"type:varchar(32);not null;default:'UPDATE_TO_ACTIVE_LOT'" json:"pending_pricing_rule"`
	PaymentMethodsCSV  string    `gorm:"type:varchar(200);default:''" json:"payment_methods_csv"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// PriceLot is a time-bounded unit price ("lot") for an event. The active lot
// at purchase or payment time determines the charged amount.
type PriceLot struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	EventID    string     `gorm:"type:varchar(36);not null;index" json:"event_id"`
	Name       string     `gorm:"type:varchar(100);not null;default:''" json:"name"`
	PriceCents int64      `gorm:"not null" json:"price_cents"`
	StartsAt   time.Time  `gorm:"type:timestamp;not null" json:"starts_at"`
	EndsAt     *time.Time `gorm:"type:timestamp;default:null" json:"ends_at,omitempty"`
	Active     bool       `gorm:"default:true;index" json:"active"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
