package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	log "github.com/sirupsen/logrus"
)

func testLogger() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("component", "test")
}

func TestNewDependenciesInMemoryMode(t *testing.T) {
	deps, err := NewDependencies(context.Background(), DefaultConfig(), "test", testLogger())
	if err != nil {
		t.Fatalf("new dependencies: %v", err)
	}
	defer deps.Close()

	if deps.Orders == nil || deps.Refunds == nil || deps.Outbox == nil {
		t.Fatal("repositories must be initialized")
	}
	if deps.Orchestrator == nil || deps.Sweeper == nil {
		t.Fatal("orchestrator and sweeper must be initialized")
	}
	if len(deps.Providers) != 1 {
		t.Fatalf("providers = %d, want one dev mock", len(deps.Providers))
	}
	if deps.KafkaProducer != nil {
		t.Fatal("kafka must stay disabled without brokers")
	}
	if deps.Lockers != nil {
		t.Fatal("locker cache must stay disabled without redis")
	}
	if deps.Store != nil {
		t.Fatal("postgres must stay disabled without dsn")
	}
}

func TestHealthEndpointInMemoryMode(t *testing.T) {
	deps, err := NewDependencies(context.Background(), DefaultConfig(), "test", testLogger())
	if err != nil {
		t.Fatalf("new dependencies: %v", err)
	}
	defer deps.Close()

	rec := httptest.NewRecorder()
	deps.Health.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, body = %s", rec.Code, rec.Body.String())
	}
}
