package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sasabothq/sasabot-backend/api/routes"
	"github.com/sasabothq/sasabot-backend/internal/bulk"
	"github.com/sasabothq/sasabot-backend/internal/catalog"
	"github.com/sasabothq/sasabot-backend/internal/chat"
	"github.com/sasabothq/sasabot-backend/internal/commerce"
	"github.com/sasabothq/sasabot-backend/internal/conversation"
	"github.com/sasabothq/sasabot-backend/internal/customers"
	"github.com/sasabothq/sasabot-backend/internal/inbound"
	"github.com/sasabothq/sasabot-backend/internal/notifications"
	"github.com/sasabothq/sasabot-backend/internal/onboarding"
	"github.com/sasabothq/sasabot-backend/internal/orders"
	"github.com/sasabothq/sasabot-backend/internal/payments"
	"github.com/sasabothq/sasabot-backend/internal/responder"
	"github.com/sasabothq/sasabot-backend/pkg/config"
	"github.com/sasabothq/sasabot-backend/pkg/db"
	"github.com/sasabothq/sasabot-backend/pkg/logger"
	"github.com/sasabothq/sasabot-backend/pkg/metrics"
	"github.com/sasabothq/sasabot-backend/pkg/migrate"
	"github.com/sasabothq/sasabot-backend/pkg/mpesa"
	"github.com/sasabothq/sasabot-backend/pkg/openai"
	"github.com/sasabothq/sasabot-backend/pkg/redis"
	"github.com/sasabothq/sasabot-backend/pkg/whatsapp"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	botMetrics := metrics.NewBotMetrics(registry)

	waClient, err := whatsapp.NewClient(cfg.WhatsApp, logg, botMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create whatsapp client", err)
		os.Exit(1)
	}
	mpesaClient, err := mpesa.NewClient(cfg.Mpesa, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create mpesa client", err)
		os.Exit(1)
	}
	openaiClient, err := openai.NewClient(cfg.OpenAI)
	if err != nil {
		logg.Error(context.Background(), "failed to create openai client", err)
		os.Exit(1)
	}

	gdb := dbClient.DB()

	states, err := conversation.NewStore(conversation.NewRepository(gdb), redisClient, logg, cfg.Bot.ConversationLockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create conversation store", err)
		os.Exit(1)
	}
	ordersSvc, err := orders.NewService(orders.NewRepository(gdb), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}
	customersSvc, err := customers.NewService(customers.NewRepository(gdb))
	if err != nil {
		logg.Error(context.Background(), "failed to create customers service", err)
		os.Exit(1)
	}
	chatSvc, err := chat.NewService(chat.NewRepository(gdb))
	if err != nil {
		logg.Error(context.Background(), "failed to create chat service", err)
		os.Exit(1)
	}
	catalogRepo := catalog.NewRepository(gdb)
	onboardingRepo := onboarding.NewRepository(gdb)

	paymentsSvc, err := payments.NewService(payments.NewRepository(gdb), ordersSvc, mpesaClient, waClient, chatSvc, botMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}
	commerceEngine, err := commerce.NewEngine(states, catalogRepo, ordersSvc, customersSvc, chatSvc, waClient, paymentsSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create commerce engine", err)
		os.Exit(1)
	}
	onboardingEngine, err := onboarding.NewEngine(states, onboardingRepo, dbClient, waClient, customersSvc, cfg.Password, cfg.Bot.DashboardURL, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create onboarding engine", err)
		os.Exit(1)
	}
	responderSvc, err := responder.NewService(openaiClient, catalogRepo, chatSvc, waClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create responder service", err)
		os.Exit(1)
	}
	bulkSvc, err := bulk.NewService(catalogRepo, chatSvc, customers.NewRepository(gdb), waClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create bulk service", err)
		os.Exit(1)
	}
	notifier, err := notifications.NewService(notifications.NewRepository(gdb), chatSvc, waClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}
	dispatcher, err := inbound.NewDispatcher(states, onboardingEngine, onboardingRepo, commerceEngine, catalogRepo, customersSvc, responderSvc, redisClient, cfg.Bot.WebhookIdempotencyTTL, botMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook dispatcher", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg, logg, dbClient, redisClient,
			dispatcher, paymentsSvc, bulkSvc, ordersSvc, notifier,
			botMetrics, registry,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
