package app

import (
	"os"
	"strings"
	"time"
)

// Config описывает настройки запуска сервиса. Все значения читаются из
// переменных окружения с префиксом MKT_; пустое значение означает, что
// соответствующая внешняя система не настроена и заменяется dev-заглушкой
// или in-memory реализацией.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	PostgresDSN  string
	RedisAddr    string
	KafkaBrokers []string

	AddressVaultURL   string
	AddressVaultToken string

	PaymentGatewayURL    string
	PaymentGatewayAPIKey string

	CourierGuyURL    string
	CourierGuyAPIKey string
	FastwayURL       string
	FastwayAPIKey    string

	CommitTTL     time.Duration
	ReminderAfter time.Duration
	SweepInterval time.Duration
}

// DefaultConfig возвращает конфигурацию для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:      ":8080",
		MetricsAddr:   ":9090",
		CommitTTL:     24 * time.Hour,
		ReminderAfter: 12 * time.Hour,
		SweepInterval: time.Minute,
	}
}

// LoadConfig читает конфигурацию из окружения поверх значений по умолчанию.
func LoadConfig() Config {
	cfg := DefaultConfig()

	setString(&cfg.HTTPAddr, "MKT_HTTP_ADDR")
	setString(&cfg.MetricsAddr, "MKT_METRICS_ADDR")
	setString(&cfg.PostgresDSN, "MKT_POSTGRES_DSN")
	setString(&cfg.RedisAddr, "MKT_REDIS_ADDR")

	if v := strings.TrimSpace(os.Getenv("MKT_KAFKA_BROKERS")); v != "" {
		for _, broker := range strings.Split(v, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, broker)
			}
		}
	}

	setString(&cfg.AddressVaultURL, "MKT_ADDRESS_VAULT_URL")
	setString(&cfg.AddressVaultToken, "MKT_ADDRESS_VAULT_TOKEN")
	setString(&cfg.PaymentGatewayURL, "MKT_PAYMENT_GATEWAY_URL")
	setString(&cfg.PaymentGatewayAPIKey, "MKT_PAYMENT_GATEWAY_API_KEY")
	setString(&cfg.CourierGuyURL, "MKT_COURIERGUY_URL")
	setString(&cfg.CourierGuyAPIKey, "MKT_COURIERGUY_API_KEY")
	setString(&cfg.FastwayURL, "MKT_FASTWAY_URL")
	setString(&cfg.FastwayAPIKey, "MKT_FASTWAY_API_KEY")

	setDuration(&cfg.CommitTTL, "MKT_COMMIT_TTL")
	setDuration(&cfg.ReminderAfter, "MKT_REMINDER_AFTER")
	setDuration(&cfg.SweepInterval, "MKT_SWEEP_INTERVAL")

	return cfg
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		*dst = d
	}
}
