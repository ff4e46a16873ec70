package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/evpago/evpago/app/controllers"
	"github.com/evpago/evpago/app/repository"
	"github.com/evpago/evpago/internal/pkg/audit"
	"github.com/evpago/evpago/internal/pkg/cache"
	"github.com/evpago/evpago/internal/pkg/database"
	"github.com/evpago/evpago/internal/pkg/env"
	"github.com/evpago/evpago/internal/pkg/finance"
	"github.com/evpago/evpago/internal/pkg/metrics"
	"github.com/evpago/evpago/internal/pkg/orders"
	"github.com/evpago/evpago/internal/pkg/payments"
	"github.com/evpago/evpago/internal/pkg/receipts"
	"github.com/evpago/evpago/internal/pkg/router"
	"github.com/evpago/evpago/internal/pkg/storage"
	"github.com/evpago/evpago/internal/pkg/sweeper"
	"github.com/evpago/evpago/internal/pkg/webhooks"
)

func main() {
	app, manager := NewApplication()

	go func() {
		addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "0.0.0.0"), env.GetEnv("APP_PORT", "4000"))
		if err := app.Listen(addr); err != nil {
			log.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	manager.Stop()
	if err := app.Shutdown(); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// NewApplication wires the full service graph and returns the HTTP app plus
// the background sweeper.
func NewApplication() (*fiber.App, *sweeper.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	factory := repository.NewFactory(database.GetDB())
	repository.SetGlobalFactory(factory)
	repos := factory.GetRepositories()

	resolver := payments.NewResolver(repos.PixConfig)
	auditSink := audit.NewSink(database.GetDB())

	orderService := orders.NewService(repos, resolver, storage.SetupStorage(), receipts.LogGenerator{}, auditSink)
	webhookService := webhooks.NewService(repos.Webhook, orderService, resolver)
	financeService := finance.NewService(repos, payments.NewMercadoPagoTransferClient(), auditSink)

	controllers.Setup(orderService, webhookService, financeService, resolver)

	manager := sweeper.GetManager(orderService)
	manager.Start()

	metrics.Serve(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "0.0.0.0"), env.GetEnv("METRICS_PORT", "9091")))

	app := fiber.New(fiber.Config{
		AppName: "evpago",
	})
	app.Use(recover.New(), logger.New())

	router.InstallRouter(app)

	return app, manager
}
