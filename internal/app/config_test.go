package app

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.HTTPAddr != ":8080" || cfg.MetricsAddr != ":9090" {
		t.Fatalf("unexpected default addrs: %+v", cfg)
	}
	if cfg.CommitTTL != 24*time.Hour {
		t.Fatalf("commit ttl = %v", cfg.CommitTTL)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Fatalf("brokers must be empty by default, got %v", cfg.KafkaBrokers)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("MKT_HTTP_ADDR", ":8081")
	t.Setenv("MKT_KAFKA_BROKERS", "broker-1:9092, broker-2:9092 ,")
	t.Setenv("MKT_COMMIT_TTL", "48h")
	t.Setenv("MKT_POSTGRES_DSN", "postgres://localhost/marketplace")

	cfg := LoadConfig()

	if cfg.HTTPAddr != ":8081" {
		t.Fatalf("http addr = %s", cfg.HTTPAddr)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "broker-2:9092" {
		t.Fatalf("brokers = %v", cfg.KafkaBrokers)
	}
	if cfg.CommitTTL != 48*time.Hour {
		t.Fatalf("commit ttl = %v", cfg.CommitTTL)
	}
	if cfg.PostgresDSN != "postgres://localhost/marketplace" {
		t.Fatalf("dsn = %s", cfg.PostgresDSN)
	}
}

func TestLoadConfigIgnoresInvalidDuration(t *testing.T) {
	t.Setenv("MKT_COMMIT_TTL", "tomorrow")

	cfg := LoadConfig()
	if cfg.CommitTTL != 24*time.Hour {
		t.Fatalf("invalid duration must keep the default, got %v", cfg.CommitTTL)
	}
}
