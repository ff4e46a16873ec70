package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/evpago/evpago/app/models"
	"github.com/evpago/evpago/internal/pkg/env"
	"github.com/evpago/evpago/internal/pkg/metrics"
)

// PIX charges stay payable for 72 hours, so PIX orders get the longer window
// regardless of the configured default.
const pixExpirationMinutes = 72 * 60

func defaultExpirationMinutes() int {
	return env.GetEnvInt("ORDER_EXPIRATION_MINUTES", 2880)
}

// ExpirationWindow returns the window after creation during which an unpaid
// order of the given payment method remains valid.
func ExpirationWindow(paymentMethod string) time.Duration {
	if paymentMethod == models.PaymentMethodPix {
		return pixExpirationMinutes * time.Minute
	}
	return time.Duration(defaultExpirationMinutes()) * time.Minute
}

// IsExpired reports whether an unpaid order should be considered expired at
// the given instant: either its explicit expiry has passed, or its creation
// time plus the method window has passed.
func IsExpired(order *models.Order, now time.Time) bool {
	if order.ExpiresAt != nil && now.After(*order.ExpiresAt) {
		return true
	}
	return now.After(order.CreatedAt.Add(ExpirationWindow(order.PaymentMethod)))
}

// RunExpirationSweep expires every pending order past its deadline: the
// orders move to EXPIRED, their unpaid registrations to CANCELED, and one
// audit entry is written per order, all in a single transaction. It returns
// the number of orders expired.
func (s *Service) RunExpirationSweep(ctx context.Context) (int, error) {
	pending, err := s.orders.ListPending()
	if err != nil {
		return 0, err
	}

	now := time.Now()
	var orderIDs []string
	var auditEntries []models.AuditLog
	for i := range pending {
		order := &pending[i]
		if !IsExpired(order, now) {
			continue
		}
		orderIDs = append(orderIDs, order.ID)
		auditEntries = append(auditEntries, models.AuditLog{
			ActorID:      "system",
			Action:       "order.expired",
			Entity:       "order",
			EntityID:     order.ID,
			MetadataJSON: fmt.Sprintf(`{"payment_method":%q,"total_cents":%d}`, order.PaymentMethod, order.TotalCents),
		})
	}

	if len(orderIDs) == 0 {
		return 0, nil
	}

	if err := s.orders.ExpireOrders(orderIDs, auditEntries); err != nil {
		return 0, err
	}
	metrics.OrdersExpired.Add(float64(len(orderIDs)))
	log.Infof("expired %d unpaid orders", len(orderIDs))
	return len(orderIDs), nil
}
