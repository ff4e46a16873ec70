package models

import "time"

// Order lifecycle states. PAID is terminal with respect to re-entry: a paid
// order never transitions back and repeated payment notifications are no-ops.
const (
	OrderStatusPending           = "PENDING"
	OrderStatusPaid              = "PAID"
	OrderStatusPartiallyRefunded = "PARTIALLY_REFUNDED"
	OrderStatusCanceled          = "CANCELED"
	OrderStatusExpired           = "EXPIRED"
)

// Transfer state of an order relative to payout batching.
const (
	OrderTransferPending     = "PENDING"
	OrderTransferTransferred = "TRANSFERRED"
	OrderTransferFailed      = "FAILED"
)

// Order is one purchase transaction grouping registrations for an event.
type Order struct {
	ID                string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	EventID           string     `gorm:"type:varchar(36);not null;index" json:"event_id"`
	PayerTaxID        string     `gorm:"type:varchar(14);not null;index" json:"payer_tax_id"`
	TotalCents        int64      `gorm:"not null;default:0" json:"total_cents"`
	FeeCents          int64      `gorm:"not null;default:0" json:"fee_cents"`
	NetAmountCents    int64      `gorm:"not null;default:0" json:"net_amount_cents"`
	Status            string     `gorm:"type:varchar(32);not null;default:'PENDING';index" json:"status"`
	PaymentMethod     string     `gorm:"type:varchar(32);not null;default:'PIX'" json:"payment_method"`
	ChargeRef         string     `gorm:"type:varchar(191);default:''" json:"charge_ref"`
	PreferenceRef     string     `gorm:"type:varchar(191);default:''" json:"preference_ref"`
	ManualReference   string     `gorm:"type:varchar(191);default:''" json:"manual_reference"`
	PaymentProofURL   string     `gorm:"type:varchar(500);default:''" json:"payment_proof_url,omitempty"`
	PreferenceVersion int        `gorm:"not null;default:0" json:"preference_version"`
	PricingLotID      *uint      `gorm:"default:null" json:"pricing_lot_id,omitempty"`
	AmountToTransfer  int64      `gorm:"not null;default:0" json:"amount_to_transfer"`
	TransferStatus    string     `gorm:"type:varchar(32);default:'';index" json:"transfer_status"`
	TransferBatchID   string     `gorm:"type:varchar(36);default:'';index" json:"transfer_batch_id"`
	Registrations     []Registration `gorm:"foreignKey:OrderID" json:"registrations,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	PaidAt            *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	ExpiresAt         *time.Time `gorm:"type:timestamp;default:null" json:"expires_at,omitempty"`
}

// NeedsTransfer reports whether the order is still eligible for a payout
// batch. FAILED orders stay eligible so a later run can retry them.
func (o *Order) NeedsTransfer() bool {
	return o.Status == OrderStatusPaid &&
		(o.TransferStatus == "" || o.TransferStatus == OrderTransferPending || o.TransferStatus == OrderTransferFailed)
}
