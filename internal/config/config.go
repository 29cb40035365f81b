package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	RabbitMQ RabbitMQConfig
	WhatsApp WhatsAppConfig
	Webhook  WebhookConfig
	Worker   WorkerConfig
	Alert    AlertConfig
	Env      string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// RabbitMQConfig holds RabbitMQ configuration
type RabbitMQConfig struct {
	Host      string
	Port      string
	User      string
	Password  string
	QueueName string
}

// WhatsAppConfig holds the WhatsApp Business API provider settings
type WhatsAppConfig struct {
	Enabled       bool
	BaseURL       string
	PhoneNumberID string
	APIKey        string
	Timeout       time.Duration
}

// WebhookConfig holds webhook verification settings
type WebhookConfig struct {
	Secret      string
	VerifyToken string
}

// WorkerConfig holds the delivery worker's scheduling settings
type WorkerConfig struct {
	PollInterval   time.Duration
	BatchSize      int
	StaleThreshold time.Duration
}

// AlertConfig holds dead-letter alerting settings
type AlertConfig struct {
	DeadLetterThreshold int
	SweepInterval       time.Duration
	Cooldown            time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     getEnv("POSTGRES_USER", "leadcourier"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			DBName:   getEnv("POSTGRES_DB", "leadcourier_db"),
		},
		RabbitMQ: RabbitMQConfig{
			Host:      getEnv("RABBITMQ_HOST", "localhost"),
			Port:      getEnv("RABBITMQ_PORT", "5672"),
			User:      getEnv("RABBITMQ_DEFAULT_USER", "guest"),
			Password:  getEnv("RABBITMQ_DEFAULT_PASS", "guest"),
			QueueName: getEnv("RABBITMQ_QUEUE", "outbound_deliveries"),
		},
		WhatsApp: WhatsAppConfig{
			Enabled:       getEnvAsBool("WHATSAPP_ENABLED", false),
			BaseURL:       getEnv("WHATSAPP_BASE_URL", "https://graph.facebook.com/v18.0"),
			PhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
			APIKey:        getEnv("WHATSAPP_API_KEY", ""),
			Timeout:       getEnvAsDuration("WHATSAPP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Webhook: WebhookConfig{
			Secret:      getEnv("WEBHOOK_SECRET", ""),
			VerifyToken: getEnv("WEBHOOK_VERIFY_TOKEN", ""),
		},
		Worker: WorkerConfig{
			PollInterval:   getEnvAsDuration("WORKER_POLL_SECONDS", 30*time.Second),
			BatchSize:      getEnvAsInt("WORKER_BATCH_SIZE", 50),
			StaleThreshold: getEnvAsDuration("WORKER_STALE_SECONDS", 10*time.Minute),
		},
		Alert: AlertConfig{
			DeadLetterThreshold: getEnvAsInt("ALERT_DEAD_LETTER_THRESHOLD", 1),
			SweepInterval:       getEnvAsDuration("ALERT_SWEEP_SECONDS", 5*time.Minute),
			Cooldown:            getEnvAsDuration("ALERT_COOLDOWN_SECONDS", 30*time.Minute),
		},
		Env: getEnv("ENV", "development"),
	}

	// Validate required fields
	if config.Database.Password == "" {
		return nil, fmt.Errorf("POSTGRES_PASSWORD is required")
	}
	if config.WhatsApp.Enabled && config.WhatsApp.APIKey == "" {
		return nil, fmt.Errorf("WHATSAPP_API_KEY is required when the provider is enabled")
	}

	return config, nil
}

// GetDatabaseDSN returns PostgreSQL connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// GetRabbitMQURL returns RabbitMQ connection URL
func (c *Config) GetRabbitMQURL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		c.RabbitMQ.User,
		c.RabbitMQ.Password,
		c.RabbitMQ.Host,
		c.RabbitMQ.Port,
	)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// getEnv gets environment variable or returns default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets environment variable as integer or returns default
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool gets environment variable as boolean or returns default
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration reads a whole-seconds environment variable as a duration
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
