package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/evpago/evpago/app/models"
)

type gormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates an order repository backed by GORM.
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &gormOrderRepository{db: db}
}

func (r *gormOrderRepository) CreateWithRegistrations(order *models.Order, registrations []models.Registration) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		for i := range registrations {
			registrations[i].OrderID = order.ID
			if err := tx.Create(&registrations[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *gormOrderRepository) DeleteWithRegistrations(orderID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", orderID).Delete(&models.Registration{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", orderID).Delete(&models.Order{}).Error
	})
}

func (r *gormOrderRepository) GetByID(id string) (*models.Order, error) {
	var order models.Order
	err := r.db.Preload("Registrations").Where("id = ?", id).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *gormOrderRepository) Update(order *models.Order) error {
	return r.db.Save(order).Error
}

func (r *gormOrderRepository) UpdateFields(orderID string, fields map[string]interface{}) error {
	return r.db.Model(&models.Order{}).Where("id = ?", orderID).Updates(fields).Error
}

func (r *gormOrderRepository) ListPendingByPayer(payerTaxID string) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Preload("Registrations").
		Where("payer_tax_id = ? AND status = ?", payerTaxID, models.OrderStatusPending).
		Find(&orders).Error
	return orders, err
}

func (r *gormOrderRepository) ListPendingByEventAndPayer(eventID, payerTaxID string) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Preload("Registrations").
		Where("event_id = ? AND payer_tax_id = ? AND status = ?", eventID, payerTaxID, models.OrderStatusPending).
		Find(&orders).Error
	return orders, err
}

func (r *gormOrderRepository) ListByFilter(eventID, status string) ([]models.Order, error) {
	q := r.db.Preload("Registrations").Order("created_at DESC")
	if eventID != "" {
		q = q.Where("event_id = ?", eventID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var orders []models.Order
	err := q.Find(&orders).Error
	return orders, err
}

func (r *gormOrderRepository) ListPending() ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Preload("Registrations").
		Where("status = ?", models.OrderStatusPending).
		Find(&orders).Error
	return orders, err
}

func (r *gormOrderRepository) CountActiveRegistrations(eventID, taxID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Registration{}).
		Where("event_id = ? AND tax_id = ? AND status NOT IN ?", eventID, taxID,
			[]string{models.RegistrationStatusCanceled, models.RegistrationStatusRefunded}).
		Count(&count).Error
	return count, err
}

func (r *gormOrderRepository) GetRegistrationsByIDs(ids []string) ([]models.Registration, error) {
	var registrations []models.Registration
	err := r.db.Where("id IN ?", ids).Find(&registrations).Error
	return registrations, err
}

func (r *gormOrderRepository) ApplyPayment(orderID string, application PaymentApplication) (*models.Order, error) {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":           models.OrderStatusPaid,
			"charge_ref":       application.PaymentID,
			"payment_method":   application.PaymentMethod,
			"manual_reference": application.ManualReference,
			"fee_cents":        application.FeeCents,
			"net_amount_cents": application.NetAmountCents,
			"paid_at":          application.PaidAt,
		}
		if err := tx.Model(&models.Order{}).Where("id = ?", orderID).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Model(&models.Registration{}).Where("order_id = ?", orderID).Updates(map[string]interface{}{
			"status":         models.RegistrationStatusPaid,
			"payment_method": application.PaymentMethod,
			"paid_at":        application.PaidAt,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(orderID)
}

func (r *gormOrderRepository) ApplyRefund(orderID, registrationID string, refund *models.Refund) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Registration{}).Where("id = ?", registrationID).
			Update("status", models.RegistrationStatusRefunded).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Order{}).Where("id = ?", orderID).
			Update("status", models.OrderStatusPartiallyRefunded).Error; err != nil {
			return err
		}
		return tx.Create(refund).Error
	})
}

func (r *gormOrderRepository) Reprice(orderID string, unitPriceCents int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Registration{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Registration{}).Where("order_id = ?", orderID).
			Update("price_cents", unitPriceCents).Error; err != nil {
			return err
		}
		return tx.Model(&models.Order{}).Where("id = ?", orderID).
			Update("total_cents", unitPriceCents*count).Error
	})
}

func (r *gormOrderRepository) ExpireOrders(orderIDs []string, auditEntries []models.AuditLog) error {
	if len(orderIDs) == 0 {
		return nil
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Registration{}).
			Where("order_id IN ? AND status IN ?", orderIDs,
				[]string{models.RegistrationStatusPendingPayment, models.RegistrationStatusDraft}).
			Update("status", models.RegistrationStatusCanceled).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Order{}).Where("id IN ?", orderIDs).
			Update("status", models.OrderStatusExpired).Error; err != nil {
			return err
		}
		if len(auditEntries) > 0 {
			if err := tx.Create(&auditEntries).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// SplitRegistration moves one registration into the given fresh order and
// re-totals the old order, bumping its preference version so any charge still
// referencing the old composition is invalidated.
func (r *gormOrderRepository) SplitRegistration(registrationID string, newOrder *models.Order) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var registration models.Registration
		if err := tx.Where("id = ?", registrationID).First(&registration).Error; err != nil {
			return err
		}
		oldOrderID := registration.OrderID

		if err := tx.Create(newOrder).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Registration{}).Where("id = ?", registrationID).Updates(map[string]interface{}{
			"order_id":       newOrder.ID,
			"payment_method": newOrder.PaymentMethod,
		}).Error; err != nil {
			return err
		}

		var remaining []models.Registration
		if err := tx.Where("order_id = ?", oldOrderID).Find(&remaining).Error; err != nil {
			return err
		}
		var newTotal int64
		for _, reg := range remaining {
			newTotal += reg.PriceCents
		}
		status := models.OrderStatusPending
		if newTotal == 0 && len(remaining) == 0 {
			status = models.OrderStatusCanceled
		}
		return tx.Model(&models.Order{}).Where("id = ?", oldOrderID).Updates(map[string]interface{}{
			"total_cents":        newTotal,
			"status":             status,
			"preference_ref":     "",
			"charge_ref":         "",
			"preference_version": gorm.Expr("preference_version + 1"),
		}).Error
	})
}

func (r *gormOrderRepository) SetCharge(orderID, chargeRef, preferenceRef string, version int, expiresAt *time.Time) error {
	updates := map[string]interface{}{
		"charge_ref":         chargeRef,
		"preference_ref":     preferenceRef,
		"preference_version": version,
	}
	if expiresAt != nil {
		updates["expires_at"] = expiresAt
	}
	return r.db.Model(&models.Order{}).Where("id = ?", orderID).Updates(updates).Error
}

func (r *gormOrderRepository) ListPaidNeedingTransferByRegion(regionID string) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Preload("Registrations").
		Where("status = ?", models.OrderStatusPaid).
		Where("transfer_status = '' OR transfer_status IN ?",
			[]string{models.OrderTransferPending, models.OrderTransferFailed}).
		Where("id IN (?)", r.db.Model(&models.Registration{}).
			Select("order_id").Where("region_id = ?", regionID)).
		Order("paid_at DESC").
		Find(&orders).Error
	return orders, err
}

func (r *gormOrderRepository) ListPaidNeedingTransferByEventOwner(payeeID string) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Preload("Registrations").
		Where("status = ?", models.OrderStatusPaid).
		Where("transfer_status = '' OR transfer_status IN ?",
			[]string{models.OrderTransferPending, models.OrderTransferFailed}).
		Where("event_id IN (?)", r.db.Model(&models.Event{}).
			Select("id").Where("owner_payee_id = ?", payeeID)).
		Order("paid_at DESC").
		Find(&orders).Error
	return orders, err
}
