package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sasabothq/sasabot-backend/api/controllers"
	webhookcontrollers "github.com/sasabothq/sasabot-backend/api/controllers/webhooks"
	"github.com/sasabothq/sasabot-backend/api/middleware"
	"github.com/sasabothq/sasabot-backend/internal/bulk"
	"github.com/sasabothq/sasabot-backend/internal/inbound"
	"github.com/sasabothq/sasabot-backend/internal/notifications"
	"github.com/sasabothq/sasabot-backend/internal/orders"
	"github.com/sasabothq/sasabot-backend/internal/payments"
	"github.com/sasabothq/sasabot-backend/pkg/config"
	"github.com/sasabothq/sasabot-backend/pkg/logger"
	"github.com/sasabothq/sasabot-backend/pkg/metrics"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisP controllers.Pinger,
	dispatcher inbound.Dispatcher,
	paymentsSvc payments.Service,
	bulkSvc bulk.Service,
	ordersSvc orders.Service,
	notifier notifications.Service,
	botMetrics *metrics.BotMetrics,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(botMetrics),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if gatherer != nil {
		r.Get("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}).ServeHTTP)
	}

	r.Route("/webhooks", func(r chi.Router) {
		r.Get("/whatsapp", webhookcontrollers.VerifyWhatsApp(cfg.WhatsApp))
		r.Post("/whatsapp", webhookcontrollers.PlatformWebhook(dispatcher, logg))
		r.Post("/whatsapp/{businessID}", webhookcontrollers.BusinessWebhook(dispatcher, logg))
		r.Post("/mpesa", webhookcontrollers.MpesaCallback(paymentsSvc, logg))
	})

	r.Route("/api/v1/vendor", func(r chi.Router) {
		r.Post("/broadcasts", controllers.VendorBroadcast(bulkSvc, logg))
		r.Post("/orders/{orderID}/status", controllers.VendorOrderStatus(ordersSvc, notifier, logg))
	})

	return r
}
