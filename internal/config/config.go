package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	AppHost  string
	HTTPPort string
	AppEnv   string

	// DefaultCountry is prepended to 10-digit national numbers (MX "52").
	DefaultCountry string

	// OsTicketURL is the tickets.json endpoint; OsTicketAPIKey goes into
	// the X-API-Key header.
	OsTicketURL    string
	OsTicketAPIKey string

	// NotifyWebhookURL receives per-message metadata notifications.
	// Empty disables the sink.
	NotifyWebhookURL string

	// BridgeWSURL is the WhatsApp bridge WebSocket endpoint.
	BridgeWSURL string
	BridgeToken string

	// KafkaBrokers/KafkaTopic — ticket_created events. Empty disables.
	KafkaBrokers string
	KafkaTopic   string

	DB struct {
		Host     string
		Port     string
		User     string
		Password string
		Database string
		SSLMode  string
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{
		AppHost:          getEnv("APP_HOST", "0.0.0.0"),
		HTTPPort:         firstEnv("HTTP_PORT", "PUERTO", "8083"),
		AppEnv:           getEnv("APP_ENV", "development"),
		DefaultCountry:   getEnv("DEFAULT_COUNTRY", "52"),
		OsTicketURL:      getEnv("OSTICKET_URL", ""),
		OsTicketAPIKey:   getEnv("OSTICKET_API_KEY", ""),
		NotifyWebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		BridgeWSURL:      getEnv("BRIDGE_WS_URL", "ws://127.0.0.1:8090/ws"),
		BridgeToken:      getEnv("BRIDGE_TOKEN", ""),
		KafkaBrokers:     getEnv("KAFKA_BROKERS", ""),
		KafkaTopic:       getEnv("KAFKA_TOPIC", ""),
	}
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.Database = getEnv("DB_DATABASE", "whatsapp_bot")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DB.Host == "" || c.DB.Database == "" {
		return errors.New("config: DB_HOST and DB_DATABASE are required")
	}
	if c.AppEnv == "production" && c.DB.Password == "" {
		return errors.New("config: in production DB_PASSWORD is required")
	}
	if c.OsTicketURL != "" && c.OsTicketAPIKey == "" {
		return errors.New("config: OSTICKET_API_KEY is required when OSTICKET_URL is set")
	}
	if c.NotifyWebhookURL != "" && !strings.HasPrefix(c.NotifyWebhookURL, "http") {
		return errors.New("config: NOTIFY_WEBHOOK_URL must be an http(s) URL")
	}
	if c.DefaultCountry == "" {
		return errors.New("config: DEFAULT_COUNTRY must not be empty")
	}
	return nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) DatabaseURL() string {
	pass := url.QueryEscape(c.DB.Password)
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, pass, c.DB.Host, c.DB.Port, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) Addr() string {
	return c.AppHost + ":" + c.HTTPPort
}

func firstEnv(keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	for _, k := range keysAndDef[:len(keysAndDef)-1] {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
