package models

import "time"

// PixGatewayConfig selects the active PIX provider and holds its credentials.
// Read-only to the payment core; owned by the admin configuration surface.
type PixGatewayConfig struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Provider        string    `gorm:"type:varchar(32);not null" json:"provider"`
	ClientID        string    `gorm:"type:varchar(191);default:''" json:"client_id"`
	ClientSecret    string    `gorm:"type:text" json:"-"`
	APIKey          string    `gorm:"type:text" json:"-"`
	WebhookURL      string    `gorm:"type:varchar(500);default:''" json:"webhook_url"`
	CertificatePath string    `gorm:"type:varchar(500);default:''" json:"certificate_path"`
	Active          bool      `gorm:"default:false;index" json:"active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
