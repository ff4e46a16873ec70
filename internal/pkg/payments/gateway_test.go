package payments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evpago/evpago/internal/pkg/apperr"
)

func TestNormalizeProvider(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"mercadopago", ProviderMercadoPago},
		{"MP", ProviderMercadoPago},
		{" MercadoPago ", ProviderMercadoPago},
		{"openpix", ProviderOpenPix},
		{"asaas", ProviderOpenPix},
		{"juno", ProviderOpenPix},
		{"sicoob", ProviderSicoob},
		{"gerencianet", ProviderGerencianet},
		{"gn", ProviderGerencianet},
		{"itau", ProviderItau},
		{"bradesco", ProviderItau},
		{"nubank", ProviderItau},
		{"", ProviderMercadoPago},
		{"something-else", ProviderMercadoPago},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeProvider(tt.raw))
		})
	}
}

func TestMapChargeStatus(t *testing.T) {
	assert.Equal(t, ChargePaid, MapChargeStatus("approved"))
	assert.Equal(t, ChargePaid, MapChargeStatus("PAID"))
	assert.Equal(t, ChargeCanceled, MapChargeStatus("cancelled"))
	assert.Equal(t, ChargeCanceled, MapChargeStatus("rejected"))
	assert.Equal(t, ChargeCanceled, MapChargeStatus("charged_back"))
	assert.Equal(t, ChargeExpired, MapChargeStatus("expired"))
	assert.Equal(t, ChargePending, MapChargeStatus("in_process"))
	assert.Equal(t, ChargeUnknown, MapChargeStatus(""))
}

func TestApprovedAndRefundedStatuses(t *testing.T) {
	assert.True(t, IsApprovedStatus("approved"))
	assert.True(t, IsApprovedStatus(" Paid "))
	assert.False(t, IsApprovedStatus("pending"))
	assert.False(t, IsApprovedStatus(""))

	assert.True(t, IsRefundedStatus("refunded"))
	assert.True(t, IsRefundedStatus("charged_back"))
	assert.False(t, IsRefundedStatus("approved"))
}

func TestStubGatewayFailsLoudly(t *testing.T) {
	gateway := GatewayFor(ProviderSicoob, nil)
	assert.Equal(t, ProviderSicoob, gateway.Provider())

	_, err := gateway.CreateCharge(context.Background(), &OrderContext{ID: "o1"})
	assert.True(t, apperr.IsKind(err, apperr.KindUnimplemented))

	_, err = gateway.GetChargeStatus(context.Background(), "123")
	assert.True(t, apperr.IsKind(err, apperr.KindUnimplemented))

	_, err = gateway.NormalizeWebhook([]byte(`{}`), nil, nil)
	assert.True(t, apperr.IsKind(err, apperr.KindUnimplemented))
}

func TestGatewayForDefaultsToMercadoPago(t *testing.T) {
	gateway := GatewayFor("not-a-provider", nil)
	assert.Equal(t, ProviderMercadoPago, gateway.Provider())
}
