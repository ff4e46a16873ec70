package models

import (
	"encoding/json"
	"time"
)

// Transfer batch states. A transfer moves from PENDING to SUCCESS or FAILED
// exactly once; retried executions create a new Transfer row.
const (
	TransferStatusPending = "PENDING"
	TransferStatusSuccess = "SUCCESS"
	TransferStatusFailed  = "FAILED"
)

// Payee dimensions a transfer can settle.
const (
	PayeeTypeRegion     = "region"
	PayeeTypeEventOwner = "event_owner"
)

// Transfer is one payout batch to a payee, capturing the payout destination
// and the exact set of orders it settles at execution time.
type Transfer struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	PayeeType    string    `gorm:"type:varchar(20);not null;index:idx_transfers_payee,priority:1" json:"payee_type"`
	PayeeID      string    `gorm:"type:varchar(36);not null;index:idx_transfers_payee,priority:2" json:"payee_id"`
	AmountCents  int64     `gorm:"not null" json:"amount_cents"`
	Status       string    `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	ExternalID   string    `gorm:"type:varchar(191);default:''" json:"external_id"`
	ErrorMessage string    `gorm:"type:text" json:"error_message"`
	OrderIDsJSON string    `gorm:"type:longtext;not null" json:"-"`
	PixKeyType   string    `gorm:"type:varchar(20);default:''" json:"pix_key_type"`
	PixKey       string    `gorm:"type:varchar(191);not null" json:"pix_key"`
	PixOwnerName string    `gorm:"type:varchar(200);default:''" json:"pix_owner_name"`
	PixOwnerDoc  string    `gorm:"type:varchar(20);default:''" json:"pix_owner_doc"`
	PixBankName  string    `gorm:"type:varchar(100);default:''" json:"pix_bank_name"`
	CreatedByID  string    `gorm:"type:varchar(36);default:''" json:"created_by_id"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// OrderIDs decodes the settled order id set.
func (t *Transfer) OrderIDs() []string {
	if t.OrderIDsJSON == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(t.OrderIDsJSON), &ids); err != nil {
		return nil
	}
	return ids
}

// SetOrderIDs encodes the settled order id set.
func (t *Transfer) SetOrderIDs(ids []string) {
	raw, err := json.Marshal(ids)
	if err != nil {
		t.OrderIDsJSON = "[]"
		return
	}
	t.OrderIDsJSON = string(raw)
}
