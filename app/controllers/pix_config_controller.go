package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/evpago/evpago/app/models"
	"github.com/evpago/evpago/app/repository"
	"github.com/evpago/evpago/internal/pkg/apperr"
	"github.com/evpago/evpago/internal/pkg/payments"
)

// HandleListPixConfigs lists the gateway configuration rows. Secrets are not
// serialized.
func HandleListPixConfigs(c *fiber.Ctx) error {
	configs, err := repository.GetGlobalFactory().GetRepositories().PixConfig.List()
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"configs": configs})
}

// HandleCreatePixConfig registers a gateway configuration row.
func HandleCreatePixConfig(c *fiber.Ctx) error {
	var input struct {
		Provider        string `json:"provider" validate:"required"`
		ClientID        string `json:"client_id"`
		ClientSecret    string `json:"client_secret"`
		APIKey          string `json:"api_key"`
		WebhookURL      string `json:"webhook_url"`
		CertificatePath string `json:"certificate_path"`
	}
	if err := parseAndValidate(c, &input); err != nil {
		return respondError(c, err)
	}

	config := &models.PixGatewayConfig{
		Provider:        payments.NormalizeProvider(input.Provider),
		ClientID:        input.ClientID,
		ClientSecret:    input.ClientSecret,
		APIKey:          input.APIKey,
		WebhookURL:      input.WebhookURL,
		CertificatePath: input.CertificatePath,
	}
	if err := repository.GetGlobalFactory().GetRepositories().PixConfig.Create(config); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(config)
}

// HandleActivatePixConfig makes one configuration row the active provider and
// drops the cached selection.
func HandleActivatePixConfig(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return respondError(c, apperr.Validation("invalid config id"))
	}

	if err := repository.GetGlobalFactory().GetRepositories().PixConfig.Activate(uint(id)); err != nil {
		return respondError(c, err)
	}
	gatewayResolver.InvalidateCache()
	return c.JSON(fiber.Map{"status": "activated"})
}
