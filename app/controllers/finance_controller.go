package controllers

import (
	"github.com/gofiber/fiber/v2"
)

// HandleListFinanceSummaries returns the per-payee financial rollup.
func HandleListFinanceSummaries(c *fiber.Ctx) error {
	summaries, err := financeService.ListSummaries(actorFromRequest(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"summaries": summaries})
}

// HandleListPendingPayouts returns the payable aggregate for one payee.
func HandleListPendingPayouts(c *fiber.Ctx) error {
	payout, err := financeService.ListPendingPayouts(actorFromRequest(c), c.Params("payeeType"), c.Params("payeeId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(payout)
}

// HandleExecuteTransfer pays out everything a payee is owed in one batch.
func HandleExecuteTransfer(c *fiber.Ctx) error {
	transfer, err := financeService.ExecuteTransfer(c.Context(), actorFromRequest(c), c.Params("payeeType"), c.Params("payeeId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(transfer)
}

// HandleListTransferHistory lists all payout batches for one payee.
func HandleListTransferHistory(c *fiber.Ctx) error {
	transfers, err := financeService.ListTransferHistory(actorFromRequest(c), c.Params("payeeType"), c.Params("payeeId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"transfers": transfers})
}
