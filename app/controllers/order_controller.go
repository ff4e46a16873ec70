package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/evpago/evpago/internal/pkg/apperr"
	"github.com/evpago/evpago/internal/pkg/orders"
)

// HandleCreateOrderBatch creates a purchase order for one or more
// participants and returns it together with the PIX charge instruction when
// one was issued.
func HandleCreateOrderBatch(c *fiber.Ctx) error {
	var input orders.CreateBatchInput
	if err := parseAndValidate(c, &input); err != nil {
		return respondError(c, err)
	}

	actor := actorFromRequest(c)
	input.ActorID = actor.ID
	input.ActorIsAdmin = actor.IsAdmin

	result, err := orderService.CreateBatch(c.Context(), input)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// HandleGetOrderPayment returns the current payment state of an order,
// repricing and reissuing the charge when needed.
func HandleGetOrderPayment(c *fiber.Ctx) error {
	orderID := c.Params("id")
	if orderID == "" {
		return respondError(c, apperr.Validation("order id is required"))
	}

	view, err := orderService.GetPayment(c.Context(), orderID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

// HandleListPendingOrders lists a payer's still-payable pending orders,
// optionally narrowed to one event.
func HandleListPendingOrders(c *fiber.Ctx) error {
	payerTaxID := c.Query("payer_tax_id")
	if payerTaxID == "" {
		return respondError(c, apperr.Validation("payer_tax_id is required"))
	}

	pending, err := orderService.ListPendingByPayer(payerTaxID, c.Query("event_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"orders": pending})
}

// HandleListOrders lists orders for back-office review, filtered by event
// and status.
func HandleListOrders(c *fiber.Ctx) error {
	listed, err := orderService.ListOrders(c.Query("event_id"), c.Query("status"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"orders": listed})
}

// HandleMarkManualBatchPaid confirms operator-collected manual payments.
func HandleMarkManualBatchPaid(c *fiber.Ctx) error {
	var input orders.ManualBatchInput
	if err := parseAndValidate(c, &input); err != nil {
		return respondError(c, err)
	}
	input.ActorID = actorFromRequest(c).ID

	updated, err := orderService.MarkManualBatchPaid(c.Context(), input)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"orders": updated})
}

// HandleRefundRegistration refunds one paid registration of an order.
func HandleRefundRegistration(c *fiber.Ctx) error {
	orderID := c.Params("id")
	registrationID := c.Params("registrationId")

	var input struct {
		ExternalRefundID string `json:"external_refund_id"`
		Reason           string `json:"reason"`
	}
	if err := c.BodyParser(&input); err != nil && len(c.Body()) > 0 {
		return respondError(c, apperr.Wrap(apperr.KindValidation, "malformed request body", err))
	}

	actor := actorFromRequest(c)
	if err := orderService.MarkRefunded(c.Context(), orderID, registrationID, input.ExternalRefundID, input.Reason, actor.ID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "refunded"})
}

// HandleSplitRegistration moves one registration into its own order so the
// participant can pay individually.
func HandleSplitRegistration(c *fiber.Ctx) error {
	registrationID := c.Params("id")
	if registrationID == "" {
		return respondError(c, apperr.Validation("registration id is required"))
	}

	view, err := orderService.SplitRegistration(c.Context(), registrationID, actorFromRequest(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}
