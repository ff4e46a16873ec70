package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/evpago/evpago/app/models"
	"github.com/evpago/evpago/internal/pkg/apperr"
	"github.com/evpago/evpago/internal/pkg/env"
)

const defaultMercadoPagoBaseURL = "https://api.mercadopago.com"

// MercadoPagoGateway is the fully wired PIX provider.
type MercadoPagoGateway struct {
	AccessToken string
	BaseURL     string

	HTTPClient *http.Client
}

// NewMercadoPagoGateway builds a gateway from the active configuration,
// falling back to the environment access token when the config carries none.
func NewMercadoPagoGateway(config *models.PixGatewayConfig) *MercadoPagoGateway {
	token := ""
	if config != nil {
		token = strings.TrimSpace(config.APIKey)
	}
	if token == "" {
		token = strings.TrimSpace(env.GetEnv("MP_ACCESS_TOKEN", ""))
	}

	return &MercadoPagoGateway{
		AccessToken: token,
		BaseURL:     strings.TrimRight(env.GetEnv("MP_API_BASE_URL", defaultMercadoPagoBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (g *MercadoPagoGateway) Provider() string {
	return ProviderMercadoPago
}

type mpTransactionData struct {
	QRCode       string `json:"qr_code"`
	QRCodeBase64 string `json:"qr_code_base64"`
}

type mpPointOfInteraction struct {
	TransactionData *mpTransactionData `json:"transaction_data"`
}

type mpPayment struct {
	ID                 json.Number            `json:"id"`
	Status             string                 `json:"status"`
	StatusDetail       string                 `json:"status_detail"`
	ExternalReference  string                 `json:"external_reference"`
	DateApproved       string                 `json:"date_approved"`
	DateOfExpiration   string                 `json:"date_of_expiration"`
	Metadata           map[string]interface{} `json:"metadata"`
	TransactionDetails *SettlementDetails     `json:"transaction_details"`
	PointOfInteraction *mpPointOfInteraction  `json:"point_of_interaction"`
}

type mpErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Cause   []struct {
		Description string `json:"description"`
	} `json:"cause"`
}

// CreateCharge creates a PIX payment bound to the order via
// external_reference and stamps the current preference version into the
// payment metadata so stale charges can be detected later.
func (g *MercadoPagoGateway) CreateCharge(ctx context.Context, order *OrderContext) (*ChargeHandle, error) {
	if strings.TrimSpace(g.AccessToken) == "" {
		return nil, apperr.Upstream("mercadopago access token is not configured")
	}

	taxID := strings.TrimSpace(order.PayerTaxID)
	if len(taxID) != 11 {
		return nil, apperr.Validation("payer tax id is missing or invalid for PIX charge")
	}

	description := fmt.Sprintf("Order %s", order.ID)
	if order.EventTitle != "" {
		description = fmt.Sprintf("%s - %s", order.EventTitle, order.ID)
	}

	body := map[string]interface{}{
		"transaction_amount": float64(order.TotalCents) / 100,
		"description":        description,
		"payment_method_id":  "pix",
		"external_reference": order.ID,
		"payer": map[string]interface{}{
			"email": taxID + "@payer.invalid",
			"identification": map[string]string{
				"type":   "CPF",
				"number": taxID,
			},
		},
		"metadata": map[string]interface{}{
			"preference_version": order.PreferenceVersion,
		},
	}
	if url := resolveNotificationURL(); url != "" {
		body["notification_url"] = url
	}
	if order.ExpiresAt != nil {
		body["date_of_expiration"] = order.ExpiresAt.UTC().Format("2006-01-02T15:04:05.000-07:00")
	}

	var payment mpPayment
	if err := g.doJSON(ctx, http.MethodPost, "/v1/payments", body, &payment); err != nil {
		return nil, err
	}

	handle := &ChargeHandle{
		ChargeID:  payment.ID.String(),
		ExpiresAt: parseMPTime(payment.DateOfExpiration),
	}
	if payment.PointOfInteraction != nil && payment.PointOfInteraction.TransactionData != nil {
		handle.QRCode = payment.PointOfInteraction.TransactionData.QRCode
		handle.QRCodeBase64 = payment.PointOfInteraction.TransactionData.QRCodeBase64
		handle.Payload = handle.QRCode
	}
	return handle, nil
}

// GetChargeStatus fetches and normalizes one payment, including the
// settlement details used for fee computation and the preference version
// stamped at charge creation.
func (g *MercadoPagoGateway) GetChargeStatus(ctx context.Context, chargeID string) (*ChargeState, error) {
	if strings.TrimSpace(chargeID) == "" {
		return nil, apperr.Validation("charge id is required")
	}

	var payment mpPayment
	if err := g.doJSON(ctx, http.MethodGet, "/v1/payments/"+chargeID, nil, &payment); err != nil {
		return nil, err
	}

	return &ChargeState{
		ChargeID:          payment.ID.String(),
		OrderRef:          payment.ExternalReference,
		Status:            MapChargeStatus(payment.Status),
		RawStatus:         payment.Status,
		PaidAt:            parseMPTime(payment.DateApproved),
		PreferenceVersion: ExtractPreferenceVersion(payment.Metadata),
		Settlement:        payment.TransactionDetails,
	}, nil
}

// NormalizeWebhook reduces a Mercado Pago notification to the payment
// reference it announces. Webhook deliveries carry it in the body; legacy IPN
// deliveries carry only topic/id query parameters with an uninformative body.
// The order reference is resolved by a follow-up GetChargeStatus call since
// neither shape carries it.
func (g *MercadoPagoGateway) NormalizeWebhook(payload []byte, headers, query map[string]string) (*WebhookNotification, error) {
	var body struct {
		ID     json.Number `json:"id"`
		Type   string      `json:"type"`
		Action string      `json:"action"`
		Topic  string      `json:"topic"`
		Data   struct {
			ID json.Number `json:"id"`
		} `json:"data"`
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, "malformed webhook payload", err)
		}
	}

	paymentID := body.Data.ID.String()
	if paymentID == "" {
		paymentID = body.ID.String()
	}
	if paymentID == "" {
		paymentID = strings.TrimSpace(query["id"])
	}
	if paymentID == "" {
		paymentID = strings.TrimSpace(query["data.id"])
	}
	if paymentID == "" {
		return nil, apperr.Validation("webhook notification carries no payment id")
	}

	eventType := body.Type
	if eventType == "" {
		eventType = body.Action
	}
	if eventType == "" {
		eventType = body.Topic
	}
	if eventType == "" {
		eventType = strings.TrimSpace(query["topic"])
	}
	if eventType == "" {
		eventType = strings.TrimSpace(query["type"])
	}
	if eventType == "" {
		eventType = "unknown"
	}

	return &WebhookNotification{
		Provider:  ProviderMercadoPago,
		PaymentID: paymentID,
		EventType: eventType,
	}, nil
}

// FindLatestPaymentByReference looks up the newest payment created for the
// given order reference. Returns nil when none exists.
func (g *MercadoPagoGateway) FindLatestPaymentByReference(ctx context.Context, orderID string) (*ChargeState, error) {
	path := fmt.Sprintf("/v1/payments/search?external_reference=%s&sort=date_created&criteria=desc&limit=1", orderID)
	var result struct {
		Results []mpPayment `json:"results"`
	}
	if err := g.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	if len(result.Results) == 0 {
		return nil, nil
	}
	payment := result.Results[0]
	return &ChargeState{
		ChargeID:          payment.ID.String(),
		OrderRef:          payment.ExternalReference,
		Status:            MapChargeStatus(payment.Status),
		RawStatus:         payment.Status,
		PaidAt:            parseMPTime(payment.DateApproved),
		PreferenceVersion: ExtractPreferenceVersion(payment.Metadata),
		Settlement:        payment.TransactionDetails,
	}, nil
}

func (g *MercadoPagoGateway) doJSON(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindUpstream, "mercadopago request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperr.Wrap(apperr.KindUpstream, "mercadopago response read failed", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody mpErrorBody
		_ = json.Unmarshal(raw, &errBody)
		message := errBody.Message
		if message == "" && len(errBody.Cause) > 0 {
			message = errBody.Cause[0].Description
		}
		if message == "" {
			message = errBody.Error
		}
		if message == "" {
			message = fmt.Sprintf("mercadopago returned status %d", resp.StatusCode)
		}
		if resp.StatusCode == http.StatusNotFound {
			return apperr.Wrap(apperr.KindNotFound, message, errors.New(http.StatusText(resp.StatusCode)))
		}
		return apperr.Upstream(message)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return apperr.Wrap(apperr.KindUpstream, "mercadopago response decode failed", err)
		}
	}
	return nil
}

// ExtractPreferenceVersion reads the preference version counter from payment
// metadata, tolerating the key spellings providers echo back.
func ExtractPreferenceVersion(metadata map[string]interface{}) int {
	if metadata == nil {
		return 0
	}
	for _, key := range []string{"preference_version", "preferenceVersion", "preference-version", "preferenceversion"} {
		raw, ok := metadata[key]
		if !ok || raw == nil {
			continue
		}
		switch v := raw.(type) {
		case float64:
			return int(v)
		case string:
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		case json.Number:
			if parsed, err := v.Int64(); err == nil {
				return int(parsed)
			}
		}
	}
	return 0
}

func parseMPTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000-07:00"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return &parsed
		}
	}
	return nil
}

func resolveNotificationURL() string {
	base := strings.TrimSpace(env.GetEnv("WEBHOOK_PUBLIC_URL", ""))
	if base == "" {
		base = strings.TrimSpace(env.GetEnv("API_URL", ""))
	}
	if base == "" || !strings.HasPrefix(strings.ToLower(base), "https://") {
		return ""
	}
	return strings.TrimRight(base, "/") + "/webhooks/mercadopago"
}
