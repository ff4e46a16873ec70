package payments

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/evpago/evpago/app/models"
	"github.com/evpago/evpago/app/repository"
	"github.com/evpago/evpago/internal/pkg/cache"
)

const (
	activeConfigCacheKey = "payments:active_gateway_config"
	activeConfigCacheTTL = time.Minute
)

// Resolver instantiates the gateway matching the active configuration. The
// configuration is an explicit value read through the repository (cached
// briefly in redis), never ambient state.
type Resolver struct {
	configs repository.PixConfigRepository
}

func NewResolver(configs repository.PixConfigRepository) *Resolver {
	return &Resolver{configs: configs}
}

// ActiveConfig returns the active gateway configuration or nil when none is
// configured.
func (r *Resolver) ActiveConfig() (*models.PixGatewayConfig, error) {
	if raw, err := cache.Get(activeConfigCacheKey); err == nil && raw != "" {
		var config models.PixGatewayConfig
		if err := json.Unmarshal([]byte(raw), &config); err == nil {
			return &config, nil
		}
	}

	config, err := r.configs.GetActive()
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if raw, err := json.Marshal(config); err == nil {
		if err := cache.Set(activeConfigCacheKey, string(raw), activeConfigCacheTTL); err != nil {
			log.Warnf("failed to cache active gateway config: %v", err)
		}
	}
	return config, nil
}

// InvalidateCache drops the cached configuration; called after config changes.
func (r *Resolver) InvalidateCache() {
	if err := cache.Delete(activeConfigCacheKey); err != nil {
		log.Warnf("failed to invalidate gateway config cache: %v", err)
	}
}

// Resolve returns the gateway for the active provider, defaulting to
// mercadopago when no configuration exists.
func (r *Resolver) Resolve() (Gateway, error) {
	config, err := r.ActiveConfig()
	if err != nil {
		return nil, err
	}
	if config == nil {
		log.Warn("no active PIX gateway configuration found, falling back to mercadopago")
		return NewMercadoPagoGateway(nil), nil
	}
	return GatewayFor(NormalizeProvider(config.Provider), config), nil
}

// ActiveProvider returns the normalized provider name of the active
// configuration, or empty when none exists.
func (r *Resolver) ActiveProvider() (string, error) {
	config, err := r.ActiveConfig()
	if err != nil {
		return "", err
	}
	if config == nil {
		return "", nil
	}
	return NormalizeProvider(config.Provider), nil
}

// GatewayFor maps a normalized provider to its implementation.
func GatewayFor(provider string, config *models.PixGatewayConfig) Gateway {
	switch provider {
	case ProviderMercadoPago:
		return NewMercadoPagoGateway(config)
	case ProviderOpenPix:
		return newStubGateway(ProviderOpenPix, "OpenPix")
	case ProviderSicoob:
		return newStubGateway(ProviderSicoob, "Sicoob")
	case ProviderGerencianet:
		return newStubGateway(ProviderGerencianet, "Gerencianet")
	case ProviderItau:
		return newStubGateway(ProviderItau, "Itau")
	default:
		return NewMercadoPagoGateway(config)
	}
}
