package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mzansimarket/fulfillment/internal/domain"
	"github.com/mzansimarket/fulfillment/internal/storage/memory"
)

func TestHandlerAggregatesCheckers(t *testing.T) {
	h := NewHandler("1.2.3")
	h.RegisterChecker("postgres", NewSimpleChecker("postgres", func() error { return nil }))
	h.RegisterChecker("redis", NewSimpleChecker("redis", func() error { return errors.New("connection refused") }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != StatusUnhealthy {
		t.Fatalf("overall = %s, want unhealthy", resp.Status)
	}
	if resp.Version != "1.2.3" {
		t.Fatalf("version = %s", resp.Version)
	}
	if resp.Checks["redis"].Message == "" {
		t.Fatal("failing check must carry a message")
	}
}

func TestHandlerHealthyWithoutCheckers(t *testing.T) {
	h := NewHandler("dev")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestReadinessHandler(t *testing.T) {
	h := NewHandler("dev")
	h.RegisterChecker("postgres", NewSimpleChecker("postgres", func() error { return nil }))

	rec := httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ready status = %d", rec.Code)
	}

	h.RegisterChecker("kafka", NewSimpleChecker("kafka", func() error { return errors.New("broker down") }))
	rec = httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("not-ready status = %d", rec.Code)
	}
}

func TestOutboxBacklogChecker(t *testing.T) {
	repo := memory.NewOutboxRepository()
	checker := NewOutboxBacklogChecker(repo, time.Minute)

	if got := checker.Check(); got.Status != StatusHealthy {
		t.Fatalf("empty backlog = %s, want healthy", got.Status)
	}

	if _, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "ord-1",
		EventType:     "order.committed",
		Payload:       []byte(`{}`),
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// Свежий backlog не деградирует статус.
	if got := checker.Check(); got.Status != StatusHealthy {
		t.Fatalf("fresh backlog = %s, want healthy", got.Status)
	}

	// Нулевой maxAge заменяется дефолтом, а не паникой.
	if c := NewOutboxBacklogChecker(repo, 0); c.maxAge <= 0 {
		t.Fatal("default max age must be positive")
	}
}
