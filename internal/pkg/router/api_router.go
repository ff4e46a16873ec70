package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/evpago/evpago/app/controllers"
	"github.com/evpago/evpago/internal/pkg/middleware"
)

type ApiRouter struct {
}

func NewApiRouter() ApiRouter {
	return ApiRouter{}
}

func (r ApiRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Provider notifications carry their own shared secret, not an actor.
	app.Post("/webhooks", controllers.HandleWebhook)
	app.Post("/webhooks/:provider", controllers.HandleWebhook)

	api := app.Group("/api/v1", middleware.ActorContext())

	orders := api.Group("/orders")
	orders.Post("/", controllers.HandleCreateOrderBatch)
	orders.Get("/pending", controllers.HandleListPendingOrders)
	orders.Get("/:id/payment", controllers.HandleGetOrderPayment)
	orders.Post("/manual-confirm", middleware.RequireAdmin(), controllers.HandleMarkManualBatchPaid)
	orders.Post("/:id/registrations/:registrationId/refund", middleware.RequireAdmin(), controllers.HandleRefundRegistration)

	api.Post("/registrations/:id/split", controllers.HandleSplitRegistration)

	finance := api.Group("/finance")
	finance.Get("/summaries", controllers.HandleListFinanceSummaries)
	finance.Get("/payouts/:payeeType/:payeeId", controllers.HandleListPendingPayouts)
	finance.Post("/transfers/:payeeType/:payeeId", controllers.HandleExecuteTransfer)
	finance.Get("/transfers/:payeeType/:payeeId", controllers.HandleListTransferHistory)

	admin := api.Group("/admin", middleware.RequireAdmin())
	admin.Get("/orders", controllers.HandleListOrders)
	admin.Get("/orders/:id/webhook-events", controllers.HandleListOrderWebhookEvents)
	admin.Get("/pix-configs", controllers.HandleListPixConfigs)
	admin.Post("/pix-configs", controllers.HandleCreatePixConfig)
	admin.Post("/pix-configs/:id/activate", controllers.HandleActivatePixConfig)
}
