package repository

import (
	"gorm.io/gorm"

	"github.com/evpago/evpago/app/models"
)

type gormPixConfigRepository struct {
	db *gorm.DB
}

// NewPixConfigRepository creates a gateway configuration repository backed by GORM.
func NewPixConfigRepository(db *gorm.DB) PixConfigRepository {
	return &gormPixConfigRepository{db: db}
}

func (r *gormPixConfigRepository) GetActive() (*models.PixGatewayConfig, error) {
	var config models.PixGatewayConfig
	err := r.db.Where("active = ?", true).Order("id DESC").First(&config).Error
	if err != nil {
		return nil, err
	}
	return &config, nil
}

func (r *gormPixConfigRepository) List() ([]models.PixGatewayConfig, error) {
	var configs []models.PixGatewayConfig
	err := r.db.Order("id DESC").Find(&configs).Error
	return configs, err
}

func (r *gormPixConfigRepository) Create(config *models.PixGatewayConfig) error {
	return r.db.Create(config).Error
}

// Activate enables one configuration and deactivates all others so at most
// one provider is live at a time.
func (r *gormPixConfigRepository) Activate(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PixGatewayConfig{}).Where("id <> ?", id).
			Update("active", false).Error; err != nil {
			return err
		}
		return tx.Model(&models.PixGatewayConfig{}).Where("id = ?", id).
			Update("active", true).Error
	})
}
