package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	ServiceName string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Gateway     GatewayConfig
	Order       OrderConfig
	Scheduler   SchedulerConfig
	Log         LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        string
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	SigningKey string
}

// RedisConfig holds the redis connection used for scheduler locks
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig holds the kafka producer settings for order event notifications
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// GatewayConfig holds outbound collaborator endpoints
type GatewayConfig struct {
	PaymentURL string
	CatalogURL string
	Timeout    time.Duration
}

// OrderConfig holds business-level order deadlines and pricing
type OrderConfig struct {
	AcceptanceTimeout  time.Duration
	PickupWindow       time.Duration
	TaxRateBasisPoints int
}

// SchedulerConfig holds expiry scheduler settings
type SchedulerConfig struct {
	Interval time.Duration
	LockTTL  time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// Load loads the application configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load environment variables from .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName: serviceName,
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Name:            getEnv("DB_NAME", serviceName),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 1*time.Hour),
			LogLevel:        getEnv("DB_LOG_LEVEL", "warn"),
		},
		JWT: JWTConfig{
			SigningKey: getEnv("JWT_SIGNING_KEY", "ordersecretkey"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getEnv("KAFKA_TOPIC", "order-events"),
		},
		Gateway: GatewayConfig{
			PaymentURL: getEnv("PAYMENT_GATEWAY_URL", "http://localhost:9090"),
			CatalogURL: getEnv("CATALOG_SERVICE_URL", "http://localhost:9091"),
			Timeout:    getEnvAsDuration("GATEWAY_TIMEOUT", 10*time.Second),
		},
		Order: OrderConfig{
			AcceptanceTimeout:  getEnvAsDuration("ORDER_ACCEPTANCE_TIMEOUT", 5*time.Minute),
			PickupWindow:       getEnvAsDuration("ORDER_PICKUP_WINDOW", 2*time.Hour),
			TaxRateBasisPoints: getEnvAsInt("ORDER_TAX_RATE_BPS", 0),
		},
		Scheduler: SchedulerConfig{
			Interval: getEnvAsDuration("SCHEDULER_INTERVAL", 30*time.Second),
			LockTTL:  getEnvAsDuration("SCHEDULER_LOCK_TTL", 25*time.Second),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must not be empty")
	}

	return cfg, nil
}

// Helper functions to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// splitCSV parses a comma separated list, dropping empty entries
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
