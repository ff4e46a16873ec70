package models

import "time"

// WebhookEvent is the admission record for one inbound provider notification.
// The unique idempotency key is the sole serialization point guarding against
// duplicate or concurrently racing deliveries: a second insert with the same
// key fails and must not re-trigger side effects.
type WebhookEvent struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Provider       string     `gorm:"type:varchar(32);not null;index" json:"provider"`
	EventType      string     `gorm:"type:varchar(100);not null;default:'unknown'" json:"event_type"`
	OrderID        string     `gorm:"type:varchar(36);not null;index" json:"order_id"`
	PayloadJSON    string     `gorm:"type:longtext;not null" json:"payload_json"`
	IdempotencyKey string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_webhook_events_idempotency_key" json:"idempotency_key"`
	ProcessedAt    *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}
