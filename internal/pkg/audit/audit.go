package audit

import (
	"encoding/json"

	"gorm.io/gorm"

	"github.com/evpago/evpago/app/models"
)

// Entry is one audit record emitted after a state-changing operation.
type Entry struct {
	ActorID  string
	Action   string
	Entity   string
	EntityID string
	Metadata map[string]interface{}
}

// Sink receives audit entries.
type Sink interface {
	Log(entry Entry) error
}

type gormSink struct {
	db *gorm.DB
}

// NewSink creates an audit sink writing to the audit_logs table.
func NewSink(db *gorm.DB) Sink {
	return &gormSink{db: db}
}

func (s *gormSink) Log(entry Entry) error {
	metadataJSON := ""
	if entry.Metadata != nil {
		if raw, err := json.Marshal(entry.Metadata); err == nil {
			metadataJSON = string(raw)
		}
	}
	return s.db.Create(&models.AuditLog{
		ActorID:      entry.ActorID,
		Action:       entry.Action,
		Entity:       entry.Entity,
		EntityID:     entry.EntityID,
		MetadataJSON: metadataJSON,
	}).Error
}

// NopSink discards entries; used in tests.
type NopSink struct{}

func (NopSink) Log(Entry) error { return nil }
