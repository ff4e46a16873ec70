package models

import "time"

// AuditLog is one append-only entry recorded after every state-changing
// operation in the payment core.
type AuditLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ActorID      string    `gorm:"type:varchar(36);default:'';index" json:"actor_id"`
	Action       string    `gorm:"type:varchar(50);not null;index" json:"action"`
	Entity       string    `gorm:"type:varchar(50);not null" json:"entity"`
	EntityID     string    `gorm:"type:varchar(36);not null;index" json:"entity_id"`
	MetadataJSON string    `gorm:"type:longtext" json:"metadata_json"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
