package metrics

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counters covering the payment lifecycle. Result labels follow the
// ingestion outcomes: processed, recorded, ignored.
var (
	WebhooksIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evpago_webhooks_ingested_total",
		Help: "Inbound payment notifications by ingestion result.",
	}, []string{"provider", "result"})

	OrdersPaid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evpago_orders_paid_total",
		Help: "Orders transitioned to PAID.",
	})

	OrdersExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evpago_orders_expired_total",
		Help: "Orders expired by the sweeper.",
	})

	TransfersExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evpago_transfers_executed_total",
		Help: "Outbound payout attempts by terminal result.",
	}, []string{"result"})
)

// Serve exposes /metrics on its own listener so the scrape endpoint never
// shares the public API port.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infof("metrics listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics listener stopped: %v", err)
		}
	}()
}
