package repository

import (
	"gorm.io/gorm"

	"github.com/evpago/evpago/app/models"
)

type gormTransferRepository struct {
	db *gorm.DB
}

// NewTransferRepository creates a transfer repository backed by GORM.
func NewTransferRepository(db *gorm.DB) TransferRepository {
	return &gormTransferRepository{db: db}
}

func (r *gormTransferRepository) Create(transfer *models.Transfer) error {
	return r.db.Create(transfer).Error
}

func (r *gormTransferRepository) GetByID(id string) (*models.Transfer, error) {
	var transfer models.Transfer
	if err := r.db.Where("id = ?", id).First(&transfer).Error; err != nil {
		return nil, err
	}
	return &transfer, nil
}

// MarkSuccess finalizes a successful execution in one transaction: the
// transfer row turns SUCCESS, every settled order is stamped TRANSFERRED with
// the batch reference, and orders whose recorded payable drifted from the
// just-computed one are reconciled.
func (r *gormTransferRepository) MarkSuccess(transferID, externalID string, orderAmounts map[string]int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Transfer{}).Where("id = ?", transferID).Updates(map[string]interface{}{
			"status":        models.TransferStatusSuccess,
			"external_id":   externalID,
			"error_message": "",
		}).Error; err != nil {
			return err
		}

		orderIDs := make([]string, 0, len(orderAmounts))
		for id := range orderAmounts {
			orderIDs = append(orderIDs, id)
		}
		if err := tx.Model(&models.Order{}).Where("id IN ?", orderIDs).Updates(map[string]interface{}{
			"transfer_status":   models.OrderTransferTransferred,
			"transfer_batch_id": transferID,
		}).Error; err != nil {
			return err
		}

		for orderID, amount := range orderAmounts {
			if err := tx.Model(&models.Order{}).
				Where("id = ? AND amount_to_transfer <> ?", orderID, amount).
				Update("amount_to_transfer", amount).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *gormTransferRepository) MarkFailed(transferID, errorMessage string) error {
	return r.db.Model(&models.Transfer{}).Where("id = ?", transferID).Updates(map[string]interface{}{
		"status":        models.TransferStatusFailed,
		"error_message": errorMessage,
	}).Error
}

func (r *gormTransferRepository) ListByPayee(payeeType, payeeID string) ([]models.Transfer, error) {
	var transfers []models.Transfer
	err := r.db.Where("payee_type = ? AND payee_id = ?", payeeType, payeeID).
		Order("created_at DESC").Find(&transfers).Error
	return transfers, err
}
