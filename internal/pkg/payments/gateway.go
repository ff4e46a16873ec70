package payments

import (
	"context"
	"strings"
	"time"
)

// Known PIX providers. Only mercadopago is fully wired; the others exist as
// explicit stubs so a misconfigured provider fails loudly at call time
// instead of silently falling back.
const (
	ProviderMercadoPago = "mercadopago"
	ProviderOpenPix     = "openpix"
	ProviderSicoob      = "sicoob"
	ProviderGerencianet = "gerencianet"
	ProviderItau        = "itau"
	ProviderUnknown     = "unknown"
)

// Normalized charge states.
const (
	ChargePending  = "PENDING"
	ChargePaid     = "PAID"
	ChargeExpired  = "EXPIRED"
	ChargeCanceled = "CANCELED"
	ChargeUnknown  = "UNKNOWN"
)

// ChargeItem is one registration line inside a charge.
type ChargeItem struct {
	RegistrationID string
	FullName       string
	PriceCents     int64
}

// OrderContext is the order slice a gateway needs to create a charge.
type OrderContext struct {
	ID                string
	EventTitle        string
	PayerTaxID        string
	TotalCents        int64
	PaymentMethod     string
	PreferenceVersion int
	Items             []ChargeItem
	CreatedAt         time.Time
	ExpiresAt         *time.Time
}

// ChargeHandle is the provider reference returned by charge creation,
// including the scannable/copyable PIX instruction when available.
type ChargeHandle struct {
	ChargeID      string
	PreferenceRef string
	QRCode        string
	QRCodeBase64  string
	Payload       string
	ExpiresAt     *time.Time
}

// ChargeState is the normalized view of a provider-side charge. RawStatus
// keeps the provider wording so callers can distinguish refund-class statuses
// the normalized set folds away.
type ChargeState struct {
	ChargeID          string
	OrderRef          string
	Status            string
	RawStatus         string
	PaidAt            *time.Time
	PreferenceVersion int
	Settlement        *SettlementDetails
}

// WebhookNotification is the provider-agnostic shape every inbound
// notification is normalized into before touching the order aggregate.
type WebhookNotification struct {
	Provider       string
	OrderID        string
	PaymentID      string
	Status         string
	EventType      string
	IdempotencyKey string
}

// Gateway is the per-provider payment capability. Providers that are not
// wired in this environment return an unimplemented error from every call.
// Notifications may announce themselves in the body, the headers or the query
// string (Mercado Pago IPN sends only topic/id query parameters), so
// normalization sees all three.
type Gateway interface {
	Provider() string
	CreateCharge(ctx context.Context, order *OrderContext) (*ChargeHandle, error)
	GetChargeStatus(ctx context.Context, chargeID string) (*ChargeState, error)
	NormalizeWebhook(payload []byte, headers, query map[string]string) (*WebhookNotification, error)
}

// PaymentFinder is the optional gateway capability of searching payments by
// order reference, used to reconcile orders whose charge reference was lost
// or never stored.
type PaymentFinder interface {
	FindLatestPaymentByReference(ctx context.Context, orderID string) (*ChargeState, error)
}

var approvedChargeStatuses = map[string]bool{
	"paid":       true,
	"approved":   true,
	"authorized": true,
	"completed":  true,
	"confirmed":  true,
	"success":    true,
	"succeeded":  true,
}

var refundedChargeStatuses = map[string]bool{
	"refunded":     true,
	"charged_back": true,
}

// IsApprovedStatus reports whether a raw provider status maps to the approved
// terminal state.
func IsApprovedStatus(status string) bool {
	return approvedChargeStatuses[strings.ToLower(strings.TrimSpace(status))]
}

// IsRefundedStatus reports whether a raw provider status signals a refund or
// chargeback.
func IsRefundedStatus(status string) bool {
	return refundedChargeStatuses[strings.ToLower(strings.TrimSpace(status))]
}

// MapChargeStatus folds a raw provider status into the normalized set.
func MapChargeStatus(raw string) string {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case approvedChargeStatuses[normalized]:
		return ChargePaid
	case normalized == "cancelled" || normalized == "canceled" || normalized == "rejected" || normalized == "charged_back":
		return ChargeCanceled
	case normalized == "expired":
		return ChargeExpired
	case normalized != "":
		return ChargePending
	default:
		return ChargeUnknown
	}
}

// NormalizeProvider folds raw provider names and aliases into the canonical
// set. Bank-branded providers without a dedicated integration share the itau
// stub.
func NormalizeProvider(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "mercadopago", "mp":
		return ProviderMercadoPago
	case "openpix", "asaas", "juno":
		return ProviderOpenPix
	case "sicoob":
		return ProviderSicoob
	case "gerencianet", "gn":
		return ProviderGerencianet
	case "itau", "bradesco", "santander", "sicredi", "inter", "nubank":
		return ProviderItau
	default:
		return ProviderMercadoPago
	}
}
