package webhooks

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/evpago/evpago/app/models"
	"github.com/evpago/evpago/app/repository"
	"github.com/evpago/evpago/internal/pkg/apperr"
	"github.com/evpago/evpago/internal/pkg/metrics"
	"github.com/evpago/evpago/internal/pkg/orders"
	"github.com/evpago/evpago/internal/pkg/payments"
)

// Ingestion results. "processed" means the notification was newly admitted
// and applied to every order it covers, "recorded" that it was admitted
// without a terminal state change, "ignored" that it was a duplicate.
const (
	ResultProcessed = "processed"
	ResultRecorded  = "recorded"
	ResultIgnored   = "ignored"
)

const bulkReferencePrefix = "BULK:"

// OrderLifecycle is the slice of the order service ingestion drives.
type OrderLifecycle interface {
	MarkPaid(ctx context.Context, orderID string, confirmation orders.PaymentConfirmation) (*models.Order, error)
	RefundOrder(ctx context.Context, orderID, externalRefundID, reason, actorID string) error
}

// GatewayResolver yields gateways for webhook normalization and charge
// lookups.
type GatewayResolver interface {
	Resolve() (payments.Gateway, error)
	ActiveProvider() (string, error)
}

// Service admits inbound payment notifications exactly once and drives the
// order lifecycle from them.
type Service struct {
	events   repository.WebhookEventRepository
	orders   OrderLifecycle
	resolver GatewayResolver
}

func NewService(events repository.WebhookEventRepository, orderService OrderLifecycle, resolver GatewayResolver) *Service {
	return &Service{events: events, orders: orderService, resolver: resolver}
}

// IngestInput is one raw inbound notification. Query carries the request's
// query parameters, which legacy IPN deliveries use instead of the body.
type IngestInput struct {
	Provider string
	Payload  []byte
	Headers  map[string]string
	Query    map[string]string
}

// IngestResult reports what ingestion did with the notification.
type IngestResult struct {
	Result    string   `json:"result"`
	Provider  string   `json:"provider"`
	PaymentID string   `json:"payment_id,omitempty"`
	OrderIDs  []string `json:"order_ids,omitempty"`
}

// Ingest normalizes a notification, admits it through the idempotency ledger
// and applies approved or refunded terminal states to the referenced orders.
// Bulk references are split into one ledger row per constituent order; the
// notification counts as processed only when every constituent order was
// newly applied.
func (s *Service) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	provider, err := s.detectProvider(input)
	if err != nil {
		return nil, err
	}

	gateway, err := s.gatewayFor(provider)
	if err != nil {
		return nil, err
	}

	notification, err := gateway.NormalizeWebhook(input.Payload, input.Headers, input.Query)
	if err != nil {
		return nil, err
	}

	// The notification body may not carry the order reference; resolve it,
	// together with status and settlement, from the provider.
	var state *payments.ChargeState
	if notification.OrderID == "" && notification.PaymentID != "" {
		state, err = gateway.GetChargeStatus(ctx, notification.PaymentID)
		if err != nil {
			return nil, err
		}
		notification.OrderID = state.OrderRef
		if notification.Status == "" {
			notification.Status = state.RawStatus
		}
	}
	if notification.OrderID == "" {
		return nil, apperr.Validation("notification carries no order reference")
	}

	orderIDs := splitOrderReference(notification.OrderID)
	result := &IngestResult{
		Provider:  provider,
		PaymentID: notification.PaymentID,
		OrderIDs:  orderIDs,
	}

	admitted := 0
	applied := 0
	for _, orderID := range orderIDs {
		key := idempotencyKey(provider, notification.PaymentID, orderID, notification.EventType)
		created, stored, err := s.events.CreateIfNotExists(&models.WebhookEvent{
			Provider:       provider,
			EventType:      notification.EventType,
			OrderID:        orderID,
			PayloadJSON:    string(input.Payload),
			IdempotencyKey: key,
		})
		if err != nil {
			return nil, err
		}
		if !created {
			log.Infof("duplicate notification %s for order %s ignored", key, orderID)
			continue
		}
		admitted++

		didApply, err := s.apply(ctx, orderID, notification, state)
		if err != nil {
			return nil, err
		}
		if didApply {
			applied++
			if err := s.events.MarkProcessed(stored.ID); err != nil {
				log.Errorf("failed to mark webhook event %d processed: %v", stored.ID, err)
			}
		}
	}

	switch {
	case admitted == 0:
		result.Result = ResultIgnored
	case applied == len(orderIDs):
		result.Result = ResultProcessed
	default:
		result.Result = ResultRecorded
	}
	metrics.WebhooksIngested.WithLabelValues(provider, result.Result).Inc()
	return result, nil
}

// ListByOrder returns every admitted notification touching one order, used by
// the admin notification-history surface.
func (s *Service) ListByOrder(orderID string) ([]models.WebhookEvent, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, apperr.Validation("order id is required")
	}
	return s.events.ListByOrder(orderID)
}

// apply drives the order state machine for one admitted notification.
// Returns whether a terminal state was applied.
func (s *Service) apply(ctx context.Context, orderID string, notification *payments.WebhookNotification, state *payments.ChargeState) (bool, error) {
	switch {
	case payments.IsApprovedStatus(notification.Status) || notification.Status == payments.ChargePaid:
		confirmation := orders.PaymentConfirmation{
			PaymentID:     notification.PaymentID,
			PaymentMethod: models.PaymentMethodPix,
		}
		if state != nil {
			confirmation.PaidAt = state.PaidAt
			confirmation.PreferenceVersion = state.PreferenceVersion
			confirmation.Settlement = state.Settlement
		}
		if _, err := s.orders.MarkPaid(ctx, orderID, confirmation); err != nil {
			return false, err
		}
		return true, nil

	case payments.IsRefundedStatus(notification.Status):
		err := s.orders.RefundOrder(ctx, orderID, notification.PaymentID, "provider refund notification", "system")
		if err != nil {
			if apperr.IsKind(err, apperr.KindConflict) {
				log.Warnf("refund notification for order %s not applicable: %v", orderID, err)
				return false, nil
			}
			return false, err
		}
		return true, nil

	default:
		return false, nil
	}
}

// detectProvider resolves the provider from the explicit hint, the request
// shape, or the active configuration, in that order.
func (s *Service) detectProvider(input IngestInput) (string, error) {
	if input.Provider != "" {
		return payments.NormalizeProvider(input.Provider), nil
	}

	if detected := detectProviderFromRequest(input.Payload, input.Headers, input.Query); detected != "" {
		return detected, nil
	}

	active, err := s.resolver.ActiveProvider()
	if err != nil {
		return "", err
	}
	if active != "" {
		return active, nil
	}
	return payments.ProviderMercadoPago, nil
}

func (s *Service) gatewayFor(provider string) (payments.Gateway, error) {
	gateway, err := s.resolver.Resolve()
	if err != nil {
		return nil, err
	}
	if gateway.Provider() == provider {
		return gateway, nil
	}
	return payments.GatewayFor(provider, nil), nil
}

// detectProviderFromRequest inspects headers, query parameters and payload
// shape for provider fingerprints.
func detectProviderFromRequest(payload []byte, headers, query map[string]string) string {
	for key := range headers {
		switch strings.ToLower(key) {
		case "x-signature", "x-request-id":
			return payments.ProviderMercadoPago
		case "x-openpix-signature", "x-webhook-signature":
			return payments.ProviderOpenPix
		}
	}

	// Mercado Pago IPN announces itself purely via query parameters.
	if query["topic"] != "" && query["id"] != "" {
		return payments.ProviderMercadoPago
	}
	if query["data.id"] != "" || query["type"] == "payment" {
		return payments.ProviderMercadoPago
	}

	body := string(payload)
	switch {
	case strings.Contains(body, `"topic"`) || strings.Contains(body, `"data"`) && strings.Contains(body, `"action"`):
		return payments.ProviderMercadoPago
	case strings.Contains(body, `"charge"`) || strings.Contains(body, `"pix"`):
		return payments.ProviderOpenPix
	}
	return ""
}

// splitOrderReference expands a bulk reference into its constituent order
// ids; a plain reference yields itself.
func splitOrderReference(reference string) []string {
	if !strings.HasPrefix(reference, bulkReferencePrefix) {
		return []string{reference}
	}

	var ids []string
	for _, id := range strings.Split(strings.TrimPrefix(reference, bulkReferencePrefix), ",") {
		id = strings.TrimSpace(id)
		if id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []string{reference}
	}
	return ids
}

func idempotencyKey(provider, paymentID, orderID, eventType string) string {
	return fmt.Sprintf("%s:%s:%s:%s", provider, paymentID, orderID, eventType)
}
