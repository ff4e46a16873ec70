package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evpago/evpago/internal/pkg/apperr"
)

func newTestGateway(server *httptest.Server) *MercadoPagoGateway {
	return &MercadoPagoGateway{
		AccessToken: "test-token",
		BaseURL:     server.URL,
		HTTPClient:  server.Client(),
	}
}

func TestGetChargeStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/42", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":                 42,
			"status":             "approved",
			"external_reference": "order-1",
			"date_approved":      "2026-08-01T10:30:00.000-03:00",
			"metadata":           map[string]interface{}{"preference_version": 3},
			"transaction_details": map[string]interface{}{
				"net_received_amount": 98.12,
			},
		})
	}))
	defer server.Close()

	state, err := newTestGateway(server).GetChargeStatus(context.Background(), "42")
	assert.NoError(t, err)
	assert.Equal(t, "42", state.ChargeID)
	assert.Equal(t, "order-1", state.OrderRef)
	assert.Equal(t, ChargePaid, state.Status)
	assert.Equal(t, "approved", state.RawStatus)
	assert.Equal(t, 3, state.PreferenceVersion)
	assert.NotNil(t, state.PaidAt)
	if assert.NotNil(t, state.Settlement) {
		assert.InDelta(t, 98.12, *state.Settlement.NetReceivedAmount, 0.001)
	}
}

func TestGetChargeStatusNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Payment not found"}`))
	}))
	defer server.Close()

	_, err := newTestGateway(server).GetChargeStatus(context.Background(), "999")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestCreateCharge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payments", r.URL.Path)

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 200.0, body["transaction_amount"])
		assert.Equal(t, "pix", body["payment_method_id"])
		assert.Equal(t, "order-1", body["external_reference"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "777",
			"status": "pending",
			"point_of_interaction": map[string]interface{}{
				"transaction_data": map[string]interface{}{
					"qr_code":        "pix-copy-paste",
					"qr_code_base64": "aW1hZ2U=",
				},
			},
		})
	}))
	defer server.Close()

	handle, err := newTestGateway(server).CreateCharge(context.Background(), &OrderContext{
		ID:                "order-1",
		PayerTaxID:        "12345678901",
		TotalCents:        20000,
		PreferenceVersion: 1,
	})
	assert.NoError(t, err)
	assert.Equal(t, "777", handle.ChargeID)
	assert.Equal(t, "pix-copy-paste", handle.QRCode)
	assert.Equal(t, "aW1hZ2U=", handle.QRCodeBase64)
}

func TestCreateChargeRejectsInvalidTaxID(t *testing.T) {
	gateway := &MercadoPagoGateway{AccessToken: "token", BaseURL: "http://unused", HTTPClient: http.DefaultClient}
	_, err := gateway.CreateCharge(context.Background(), &OrderContext{ID: "order-1", PayerTaxID: "123"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestNormalizeWebhook(t *testing.T) {
	gateway := &MercadoPagoGateway{}

	t.Run("payment id from data block", func(t *testing.T) {
		notification, err := gateway.NormalizeWebhook([]byte(`{"type":"payment","data":{"id":123}}`), nil, nil)
		assert.NoError(t, err)
		assert.Equal(t, ProviderMercadoPago, notification.Provider)
		assert.Equal(t, "123", notification.PaymentID)
		assert.Equal(t, "payment", notification.EventType)
	})

	t.Run("legacy topic format", func(t *testing.T) {
		notification, err := gateway.NormalizeWebhook([]byte(`{"id":456,"topic":"payment"}`), nil, nil)
		assert.NoError(t, err)
		assert.Equal(t, "456", notification.PaymentID)
		assert.Equal(t, "payment", notification.EventType)
	})

	t.Run("IPN delivery with empty body and query parameters only", func(t *testing.T) {
		notification, err := gateway.NormalizeWebhook(nil, nil, map[string]string{"topic": "payment", "id": "456"})
		assert.NoError(t, err)
		assert.Equal(t, "456", notification.PaymentID)
		assert.Equal(t, "payment", notification.EventType)
	})

	t.Run("query data.id fallback", func(t *testing.T) {
		notification, err := gateway.NormalizeWebhook([]byte(`{}`), nil, map[string]string{"data.id": "789", "type": "payment"})
		assert.NoError(t, err)
		assert.Equal(t, "789", notification.PaymentID)
		assert.Equal(t, "payment", notification.EventType)
	})

	t.Run("missing payment id", func(t *testing.T) {
		_, err := gateway.NormalizeWebhook([]byte(`{"type":"payment"}`), nil, nil)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	})

	t.Run("malformed body", func(t *testing.T) {
		_, err := gateway.NormalizeWebhook([]byte(`not-json`), nil, nil)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	})
}

func TestFindLatestPaymentByReference(t *testing.T) {
	t.Run("returns the newest payment for the reference", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/payments/search", r.URL.Path)
			assert.Equal(t, "order-1", r.URL.Query().Get("external_reference"))
			assert.Equal(t, "date_created", r.URL.Query().Get("sort"))

			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"results": []map[string]interface{}{{
					"id":                 42,
					"status":             "approved",
					"external_reference": "order-1",
					"date_approved":      "2026-08-01T10:30:00.000-03:00",
				}},
			})
		}))
		defer server.Close()

		state, err := newTestGateway(server).FindLatestPaymentByReference(context.Background(), "order-1")
		assert.NoError(t, err)
		if assert.NotNil(t, state) {
			assert.Equal(t, "42", state.ChargeID)
			assert.Equal(t, ChargePaid, state.Status)
			assert.NotNil(t, state.PaidAt)
		}
	})

	t.Run("no results yields nil without error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"results":[]}`))
		}))
		defer server.Close()

		state, err := newTestGateway(server).FindLatestPaymentByReference(context.Background(), "order-1")
		assert.NoError(t, err)
		assert.Nil(t, state)
	})
}

func TestExtractPreferenceVersion(t *testing.T) {
	assert.Equal(t, 0, ExtractPreferenceVersion(nil))
	assert.Equal(t, 2, ExtractPreferenceVersion(map[string]interface{}{"preference_version": float64(2)}))
	assert.Equal(t, 3, ExtractPreferenceVersion(map[string]interface{}{"preferenceVersion": "3"}))
	assert.Equal(t, 0, ExtractPreferenceVersion(map[string]interface{}{"preference_version": "abc"}))
}
