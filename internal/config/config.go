package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Gateways GatewaysConfig
	Frontend FrontendConfig
	Logger   LoggerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host        string
	Port        int
	MetricsPort int
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	User     string
	Password string
	Database string
	SSLMode  string
	Port     int
	MaxConns int32
	MinConns int32
}

// GatewaysConfig holds per-provider credentials. Each adapter validates its
// own block at construction and fails fast when a required value is missing.
type GatewaysConfig struct {
	Unitpay   UnitpayConfig
	FreeKassa FreeKassaConfig
	Robokassa RobokassaConfig
	Payeer    PayeerConfig
}

// UnitpayConfig holds Unitpay credentials: the public key appears in the
// checkout URL, the secret key signs both directions
type UnitpayConfig struct {
	PublicKey string
	SecretKey string
}

// FreeKassaConfig holds FreeKassa credentials. Secret1 signs the checkout
// URL, Secret2 verifies webhooks; they are distinct values on purpose.
type FreeKassaConfig struct {
	MerchantID string
	Secret1    string
	Secret2    string
}

// RobokassaConfig holds Robokassa credentials. Password1 signs the checkout
// URL, Password2 verifies Result webhooks.
type RobokassaConfig struct {
	Login     string
	Password1 string
	Password2 string
}

// PayeerConfig holds Payeer merchant credentials
type PayeerConfig struct {
	ShopID string
	Secret string
}

// FrontendConfig holds the browser-facing redirect targets
type FrontendConfig struct {
	// BaseURL of the front end; success/fail landings redirect here with a
	// coarse payment status flag
	BaseURL string
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        getEnvAsInt("SERVER_PORT", 8080),
			MetricsPort: getEnvAsInt("METRICS_PORT", 9090),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "topup_service"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvAsInt("DB_MIN_CONNS", 5)),
		},
		Gateways: GatewaysConfig{
			Unitpay: UnitpayConfig{
				PublicKey: getEnv("UNITPAY_PUBLIC_KEY", ""),
				SecretKey: getEnv("UNITPAY_SECRET_KEY", ""),
			},
			FreeKassa: FreeKassaConfig{
				MerchantID: getEnv("FREEKASSA_MERCHANT_ID", ""),
				Secret1:    getEnv("FREEKASSA_SECRET_1", ""),
				Secret2:    getEnv("FREEKASSA_SECRET_2", ""),
			},
			Robokassa: RobokassaConfig{
				Login:     getEnv("ROBOKASSA_LOGIN", ""),
				Password1: getEnv("ROBOKASSA_PASSWORD_1", ""),
				Password2: getEnv("ROBOKASSA_PASSWORD_2", ""),
			},
			Payeer: PayeerConfig{
				ShopID: getEnv("PAYEER_SHOP_ID", ""),
				Secret: getEnv("PAYEER_SECRET", ""),
			},
		},
		Frontend: FrontendConfig{
			BaseURL: getEnv("FRONTEND_BASE_URL", "http://localhost:3000"),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	return cfg, nil
}

// ConnectionString returns PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
