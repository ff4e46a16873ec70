package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/evpago/evpago/app/models"
)

type gormCatalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository creates the catalog read surface backed by GORM.
func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &gormCatalogRepository{db: db}
}

func (r *gormCatalogRepository) GetEvent(id string) (*models.Event, error) {
	var event models.Event
	if err := r.db.Where("id = ?", id).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// FindActiveLot resolves the price lot in effect at the given time. Open
// ended lots (no ends_at) stay active until superseded by a later one.
func (r *gormCatalogRepository) FindActiveLot(eventID string, at time.Time) (*models.PriceLot, error) {
	var lot models.PriceLot
	err := r.db.Where("event_id = ? AND active = ? AND starts_at <= ?", eventID, true, at).
		Where("ends_at IS NULL OR ends_at > ?", at).
		Order("starts_at DESC").
		First(&lot).Error
	if err != nil {
		return nil, err
	}
	return &lot, nil
}

func (r *gormCatalogRepository) GetPayee(id string) (*models.Payee, error) {
	var payee models.Payee
	if err := r.db.Where("id = ?", id).First(&payee).Error; err != nil {
		return nil, err
	}
	return &payee, nil
}

// FindRegionAdmin returns the oldest active regional administrator, matching
// the payout convention that the first configured admin receives transfers.
func (r *gormCatalogRepository) FindRegionAdmin(regionID string) (*models.Payee, error) {
	var payee models.Payee
	err := r.db.Where("type = ? AND region_id = ? AND active = ?", models.PayeeTypeRegion, regionID, true).
		Order("created_at ASC").
		First(&payee).Error
	if err != nil {
		return nil, err
	}
	return &payee, nil
}

func (r *gormCatalogRepository) GetRegion(id string) (*models.Region, error) {
	var region models.Region
	if err := r.db.Where("id = ?", id).First(&region).Error; err != nil {
		return nil, err
	}
	return &region, nil
}

func (r *gormCatalogRepository) ListRegions() ([]models.Region, error) {
	var regions []models.Region
	err := r.db.Order("name ASC").Find(&regions).Error
	return regions, err
}

func (r *gormCatalogRepository) ListEventOwners() ([]models.Payee, error) {
	var payees []models.Payee
	err := r.db.Where("type = ? AND active = ?", models.PayeeTypeEventOwner, true).
		Order("name ASC").Find(&payees).Error
	return payees, err
}
