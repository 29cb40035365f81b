package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"leadcourier/internal/config"
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
	alertSvc := service.NewAlertService(messageRepo, &service.LogNotifier{}, cfg.Alert.DeadLetterThreshold, cfg.Alert.Cooldown)

	// Messages left in sending by a previous crash go back to queued
	if recovered, err := deliverySvc.RecoverStale(context.Background(), cfg.Worker.StaleThreshold); err != nil {
		log.Printf("Failed to recover stale messages: %v", err)
	} else if recovered > 0 {
		log.Printf("Recovered %d stale messages back to queued", recovered)
	}

	consumer, err := queue.NewConsumer(conn, cfg.RabbitMQ.QueueName, func(job *queue.DeliveryJob) error {
		return deliverySvc.ProcessMessage(context.Background(), job.MessageID)
	})
	if err != nil {
		log.Fatalf("Failed to create consumer: %v", err)
	}

	if err := consumer.Start(); err != nil {
		log.Fatalf("Failed to start consumer: %v", err)
	}
	log.Printf("✅ Worker started, consuming from queue: %s", cfg.RabbitMQ.QueueName)

	// Scheduler tick re-enqueues messages whose retry backoff elapsed
	stopScheduler := make(chan struct{})
	go runScheduler(deliverySvc, alertSvc, cfg, stopScheduler)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("🛑 Shutting down gracefully...")

	close(stopScheduler)
	if err := consumer.Stop(); err != nil {
		log.Printf("Error stopping consumer: %v", err)
	}

	log.Println("✅ Worker stopped")
}

// runScheduler periodically re-enqueues due messages, sweeps for
// dead letters, and recovers stale claims until stop is closed.
func runScheduler(deliverySvc *service.DeliveryService, alertSvc *service.AlertService, cfg *config.Config, stop <-chan struct{}) {
	pollTicker := time.NewTicker(cfg.Worker.PollInterval)
	defer pollTicker.Stop()
	sweepTicker := time.NewTicker(cfg.Alert.SweepInterval)
	defer sweepTicker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-pollTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Worker.PollInterval)

			if enqueued, err := deliverySvc.EnqueueDue(ctx, cfg.Worker.BatchSize); err != nil {
				log.Printf("Scheduler failed to enqueue due messages: %v", err)
			} else if enqueued > 0 {
				log.Printf("Scheduler enqueued %d due messages", enqueued)
			}

			if recovered, err := deliverySvc.RecoverStale(ctx, cfg.Worker.StaleThreshold); err != nil {
				log.Printf("Scheduler failed to recover stale messages: %v", err)
			} else if recovered > 0 {
				log.Printf("Scheduler recovered %d stale messages", recovered)
			}

			cancel()
		case <-sweepTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := alertSvc.Sweep(ctx); err != nil {
				log.Printf("Dead letter sweep failed: %v", err)
			}
			cancel()
		}
	}
}
