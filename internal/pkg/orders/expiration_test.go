package orders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/evpago/evpago/app/models"
	"github.com/evpago/evpago/internal/pkg/env"
)

func TestIsExpired(t *testing.T) {
	env.Env = map[string]string{"ORDER_EXPIRATION_MINUTES": "45"}
	defer func() { env.Env = nil }()

	now := time.Now()

	t.Run("explicit expiry passed", func(t *testing.T) {
		expired := now.Add(-time.Minute)
		order := &models.Order{PaymentMethod: models.PaymentMethodPix, CreatedAt: now, ExpiresAt: &expired}
		assert.True(t, IsExpired(order, now))
	})

	t.Run("window passed without explicit expiry", func(t *testing.T) {
		order := &models.Order{PaymentMethod: models.PaymentMethodCash, CreatedAt: now.Add(-46 * time.Minute)}
		assert.True(t, IsExpired(order, now))
	})

	t.Run("still inside window", func(t *testing.T) {
		order := &models.Order{PaymentMethod: models.PaymentMethodCash, CreatedAt: now.Add(-44 * time.Minute)}
		assert.False(t, IsExpired(order, now))
	})

	t.Run("pix window is 72 hours regardless of default", func(t *testing.T) {
		order := &models.Order{PaymentMethod: models.PaymentMethodPix, CreatedAt: now.Add(-2 * time.Hour)}
		assert.False(t, IsExpired(order, now))

		old := &models.Order{PaymentMethod: models.PaymentMethodPix, CreatedAt: now.Add(-73 * time.Hour)}
		assert.True(t, IsExpired(old, now))
	})
}

func TestRunExpirationSweep(t *testing.T) {
	env.Env = map[string]string{"ORDER_EXPIRATION_MINUTES": "45"}
	defer func() { env.Env = nil }()

	repo := newFakeOrderRepo()
	service := newTestService(repo, paidEvent(), &fakeGateway{})

	stale := &models.Order{
		ID:            "order-stale",
		EventID:       "event-1",
		PayerTaxID:    "12345678901",
		TotalCents:    10000,
		Status:        models.OrderStatusPending,
		PaymentMethod: models.PaymentMethodCash,
	}
	staleReg := []models.Registration{{
		ID:      "reg-stale",
		OrderID: stale.ID,
		EventID: "event-1",
		TaxID:   "11122233344",
		Status:  models.RegistrationStatusPendingPayment,
	}}
	assert.NoError(t, repo.CreateWithRegistrations(stale, staleReg))
	repo.orders[stale.ID].CreatedAt = time.Now().Add(-46 * time.Minute)

	fresh := &models.Order{
		ID:            "order-fresh",
		EventID:       "event-1",
		PayerTaxID:    "98765432100",
		TotalCents:    10000,
		Status:        models.OrderStatusPending,
		PaymentMethod: models.PaymentMethodCash,
	}
	assert.NoError(t, repo.CreateWithRegistrations(fresh, nil))

	expired, err := service.RunExpirationSweep(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, expired)

	staleOrder, _ := repo.GetByID("order-stale")
	assert.Equal(t, models.OrderStatusExpired, staleOrder.Status)
	assert.Equal(t, models.RegistrationStatusCanceled, staleOrder.Registrations[0].Status)

	freshOrder, _ := repo.GetByID("order-fresh")
	assert.Equal(t, models.OrderStatusPending, freshOrder.Status)

	if assert.Len(t, repo.auditEntries, 1) {
		assert.Equal(t, "order.expired", repo.auditEntries[0].Action)
		assert.Equal(t, "order-stale", repo.auditEntries[0].EntityID)
	}

	// A second run finds nothing and writes nothing.
	expired, err = service.RunExpirationSweep(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, expired)
	assert.Len(t, repo.auditEntries, 1)
}
