package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"leadcourier/internal/config"
	"leadcourier/internal/handler"
	"leadcourier/internal/middleware"
	"leadcourier/internal/models"
	"leadcourier/internal/provider"
	"leadcourier/internal/queue"
	"leadcourier/internal/repository"
	"leadcourier/internal/service"
)

func main() {
	// Load .env file (ignore error in production)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.GetDatabaseDSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("✅ Connected to database")

	conn, err := queue.NewConnection(cfg.GetRabbitMQURL())
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer conn.Close()
	log.Println("✅ Connected to RabbitMQ")

	publisher, err := queue.NewPublisher(conn, cfg.RabbitMQ.QueueName)
	if err != nil {
		log.Fatalf("Failed to create publisher: %v", err)
	}

	// Repositories
	messageRepo := repository.NewMessageRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	dossierRepo := repository.NewDossierRepository(db)
	sessionRepo := repository.NewSessionWindowRepository(db)
	rateLimitRepo := repository.NewRateLimitRepository(db)
	inboundRepo := repository.NewInboundMessageRepository(db)
	consentRepo := repository.NewConsentRepository(db)

	// Services
	sessionSvc := service.NewSessionWindowService(sessionRepo)
	rateLimitSvc := service.NewRateLimitService(rateLimitRepo, models.DefaultQuotaLimit, models.DefaultQuotaWindow)
	consentGate := service.NewRepositoryConsentGate(consentRepo)
	audit := &service.LogAuditSink{}

	registry := provider.NewRegistry()
	whatsapp := provider.NewWhatsAppProvider(provider.WhatsAppConfig{
		Enabled:       cfg.WhatsApp.Enabled,
		BaseURL:       cfg.WhatsApp.BaseURL,
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		APIKey:        cfg.WhatsApp.APIKey,
		Timeout:       cfg.WhatsApp.Timeout,
	}, sessionSvc)
	if err := registry.Register(models.ChannelWhatsApp, whatsapp); err != nil {
		log.Fatalf("Failed to register whatsapp provider: %v", err)
	}

	deliverySvc := service.NewDeliveryService(
		messageRepo, attemptRepo, dossierRepo,
		registry, rateLimitSvc, sessionSvc,
		consentGate, audit, publisher,
	)
	webhookSvc := service.NewWebhookService(messageRepo, inboundRepo, dossierRepo, sessionSvc, audit)
	healthSvc := service.NewHealthService(db, cfg.GetRabbitMQURL(), "1.0.0")

	// Handlers
	messageHandler := handler.NewMessageHandler(deliverySvc, rateLimitSvc)
	webhookHandler := handler.NewWebhookHandler(webhookSvc, cfg.Webhook.Secret, cfg.Webhook.VerifyToken)
	healthHandler := handler.NewHealthHandler(healthSvc)

	router := mux.NewRouter()
	router.Use(middleware.Recovery)

	router.HandleFunc("/health", healthHandler.HandleHealth).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/messages", messageHandler.Create).Methods("POST")
	api.HandleFunc("/messages/{id:[0-9]+}", messageHandler.Get).Methods("GET")
	api.HandleFunc("/messages/{id:[0-9]+}/attempts", messageHandler.ListAttempts).Methods("GET")
	api.HandleFunc("/tenants/{orgID}/quota", messageHandler.QuotaStatus).Methods("GET")
	api.HandleFunc("/webhooks/whatsapp", webhookHandler.Verify).Methods("GET")
	api.HandleFunc("/webhooks/whatsapp/{orgID}", webhookHandler.Receive).Methods("POST")

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("🚀 API server starting on port :%s", cfg.Server.Port)
		log.Printf("🌍 Environment: %s", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("🛑 Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("✅ API server stopped")
}
