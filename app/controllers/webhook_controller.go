package controllers

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/evpago/evpago/internal/pkg/env"
	"github.com/evpago/evpago/internal/pkg/webhooks"
)

// HandleWebhook ingests one inbound payment notification. Providers retry on
// non-2xx, so duplicates and already-settled orders still answer 200; only
// malformed payloads and genuine processing failures surface an error status.
func HandleWebhook(c *fiber.Ctx) error {
	if !webhookSecretValid(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "invalid webhook secret",
		})
	}

	result, err := webhookService.Ingest(c.Context(), webhooks.IngestInput{
		Provider: c.Params("provider"),
		Payload:  c.Body(),
		Headers:  headerMap(c),
		Query:    c.Queries(),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// HandleListOrderWebhookEvents returns the admitted notification history of
// one order.
func HandleListOrderWebhookEvents(c *fiber.Ctx) error {
	events, err := webhookService.ListByOrder(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"events": events})
}

// webhookSecretValid checks the optional shared secret. When
// WEBHOOK_SHARED_SECRET is unset every delivery is accepted; providers that
// cannot send custom headers pass the secret as a query parameter instead.
func webhookSecretValid(c *fiber.Ctx) bool {
	expected := strings.TrimSpace(env.GetEnv("WEBHOOK_SHARED_SECRET", ""))
	if expected == "" {
		return true
	}

	provided := strings.TrimSpace(c.Get("X-Webhook-Secret"))
	if provided == "" {
		provided = strings.TrimSpace(c.Query("secret"))
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}
