package models

import "time"

// Region is an organizational branch whose regional administrator receives
// payouts for the orders registered under it.
type Region struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(200);not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Payee is anyone entitled to receive payouts: a regional administrator or an
// event owner. The pix fields are the payout destination snapshot source.
type Payee struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(200);not null" json:"name"`
	Email        string    `gorm:"type:varchar(200);default:''" json:"email"`
	Type         string    `gorm:"type:varchar(20);not null;index:idx_payees_type_region,priority:1" json:"type"`
	RegionID     string    `gorm:"type:varchar(36);default:'';index:idx_payees_type_region,priority:2" json:"region_id"`
	PixKeyType   string    `gorm:"type:varchar(20);default:''" json:"pix_key_type"`
	PixKey       string    `gorm:"type:varchar(191);default:''" json:"pix_key"`
	PixOwnerName string    `gorm:"type:varchar(200);default:''" json:"pix_owner_name"`
	PixOwnerDoc  string    `gorm:"type:varchar(20);default:''" json:"pix_owner_doc"`
	PixBankName  string    `gorm:"type:varchar(100);default:''" json:"pix_bank_name"`
	Active       bool      `gorm:"default:true;index" json:"active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
