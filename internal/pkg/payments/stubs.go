package payments

import (
	"context"
	"fmt"

	"github.com/evpago/evpago/internal/pkg/apperr"
)

// StubGateway stands in for providers that are configured but not wired in
// this environment. Every call fails with an explicit unimplemented error so
// configuration mistakes surface at call time, not at wiring time.
type StubGateway struct {
	provider string
	label    string
}

func newStubGateway(provider, label string) *StubGateway {
	return &StubGateway{provider: provider, label: label}
}

func (g *StubGateway) Provider() string {
	return g.provider
}

func (g *StubGateway) CreateCharge(ctx context.Context, order *OrderContext) (*ChargeHandle, error) {
	return nil, g.unimplemented()
}

func (g *StubGateway) GetChargeStatus(ctx context.Context, chargeID string) (*ChargeState, error) {
	return nil, g.unimplemented()
}

func (g *StubGateway) NormalizeWebhook(payload []byte, headers, query map[string]string) (*WebhookNotification, error) {
	return nil, g.unimplemented()
}

func (g *StubGateway) unimplemented() error {
	return apperr.Unimplemented(fmt.Sprintf("PIX gateway %s is not implemented in this environment", g.label))
}
