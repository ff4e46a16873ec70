package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/evpago/evpago/app/models"
)

type gormWebhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a webhook event repository backed by GORM.
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &gormWebhookEventRepository{db: db}
}

// CreateIfNotExists inserts the event unless its idempotency key is already
// present. The constraint violation is the normal "already handled" signal,
// not a failure: callers get created=false and the stored row.
func (r *gormWebhookEventRepository) CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "idempotency_key"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("idempotency_key = ?", event.IdempotencyKey).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormWebhookEventRepository) MarkProcessed(id uint) error {
	now := time.Now()
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).
		Update("processed_at", &now).Error
}

func (r *gormWebhookEventRepository) ListByOrder(orderID string) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.Where("order_id = ?", orderID).Order("created_at ASC").Find(&events).Error
	return events, err
}
