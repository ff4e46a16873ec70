package controllers

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/evpago/evpago/internal/pkg/apperr"
	"github.com/evpago/evpago/internal/pkg/finance"
	"github.com/evpago/evpago/internal/pkg/orders"
	"github.com/evpago/evpago/internal/pkg/payments"
	"github.com/evpago/evpago/internal/pkg/webhooks"
)

var (
	orderService    *orders.Service
	webhookService  *webhooks.Service
	financeService  *finance.Service
	gatewayResolver *payments.Resolver
)

var validate = validator.New()

// Setup wires the services the handlers dispatch to. Called once at startup.
func Setup(o *orders.Service, w *webhooks.Service, f *finance.Service, r *payments.Resolver) {
	orderService = o
	webhookService = w
	financeService = f
	gatewayResolver = r
}

// respondError maps a typed application error to its HTTP representation.
// Unknown errors are logged and surfaced as 500 without leaking internals.
func respondError(c *fiber.Ctx, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return c.Status(ae.HTTPStatus()).JSON(fiber.Map{
			"error":   string(ae.Kind),
			"message": ae.Message,
		})
	}

	log.Errorf("unhandled error on %s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   "internal_server_error",
		"message": "unexpected error",
	})
}

func parseAndValidate(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return apperr.Wrap(apperr.KindValidation, "malformed request body", err)
	}
	if err := validate.Struct(out); err != nil {
		return apperr.Wrap(apperr.KindValidation, "invalid request body", err)
	}
	return nil
}

// actorFromRequest reads the identity the auth middleware resolved into
// request locals.
func actorFromRequest(c *fiber.Ctx) finance.Actor {
	actor := finance.Actor{}
	if v, ok := c.Locals("actor_id").(string); ok {
		actor.ID = v
	}
	if v, ok := c.Locals("is_admin").(bool); ok {
		actor.IsAdmin = v
	}
	if v, ok := c.Locals("region_id").(string); ok {
		actor.RegionID = v
	}
	return actor
}

func headerMap(c *fiber.Ctx) map[string]string {
	headers := make(map[string]string)
	c.Request().Header.VisitAll(func(key, value []byte) {
		headers[strings.ToLower(string(key))] = string(value)
	})
	return headers
}
