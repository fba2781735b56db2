package outbox

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/mzansimarket/fulfillment/internal/domain"
	"github.com/mzansimarket/fulfillment/internal/storage/memory"
)

// mockPublisher — настраиваемый publisher: первые failFirst вызовов падают.
type mockPublisher struct {
	mu        sync.Mutex
	failFirst int
	calls     int
	published []domain.OutboxMessage
}

func (p *mockPublisher) Publish(event domain.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if p.calls <= p.failFirst {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, event)
	return nil
}

func (p *mockPublisher) publishedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func testLogger() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("component", "test")
}

func enqueue(t *testing.T, repo domain.OutboxRepository, eventType string) domain.OutboxMessage {
	t.Helper()

	msg, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "ord-1",
		EventType:     eventType,
		Payload:       []byte(`{"order_id":"ord-1"}`),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return msg
}

func TestWorkerPublishesPending(t *testing.T) {
	repo := memory.NewOutboxRepository()
	publisher := &mockPublisher{}
	enqueue(t, repo, "order.committed")

	worker := NewWorker(repo, publisher, WithLogger(testLogger()))
	worker.ProcessOnce(context.Background())

	if publisher.publishedCount() != 1 {
		t.Fatalf("published = %d, want 1", publisher.publishedCount())
	}

	stats, _ := repo.Stats()
	if stats.PendingCount != 0 {
		t.Fatalf("pending = %d, want 0", stats.PendingCount)
	}
}

func TestWorkerRetriesTransientFailure(t *testing.T) {
	repo := memory.NewOutboxRepository()
	publisher := &mockPublisher{failFirst: 2}
	enqueue(t, repo, "order.declined")

	worker := NewWorker(repo, publisher,
		WithLogger(testLogger()),
		WithMaxAttempts(3),
		WithRetryBaseDelay(0),
	)
	worker.ProcessOnce(context.Background())

	if publisher.publishedCount() != 1 {
		t.Fatalf("published = %d, want 1 after retries", publisher.publishedCount())
	}
}

func TestWorkerRoutesToDLQAfterExhaustedRetries(t *testing.T) {
	repo := memory.NewOutboxRepository()
	publisher := &mockPublisher{failFirst: 100}
	dlq := &mockPublisher{}
	msg := enqueue(t, repo, "order.refund_issued")

	worker := NewWorker(repo, publisher,
		WithLogger(testLogger()),
		WithMaxAttempts(2),
		WithRetryBaseDelay(0),
		WithDLQPublisher(dlq),
	)
	worker.ProcessOnce(context.Background())

	if publisher.publishedCount() != 0 {
		t.Fatal("primary publish must not succeed")
	}
	if dlq.publishedCount() != 1 {
		t.Fatalf("dlq published = %d, want 1", dlq.publishedCount())
	}
	if dlq.published[0].ID != msg.ID {
		t.Fatalf("dlq event id = %q, want %q", dlq.published[0].ID, msg.ID)
	}

	// Сообщение помечено failed и не возвращается в pending.
	stats, _ := repo.Stats()
	if stats.PendingCount != 0 {
		t.Fatalf("pending = %d, want 0", stats.PendingCount)
	}
}

func TestWorkerDisabledWithoutPublisher(t *testing.T) {
	worker := NewWorker(memory.NewOutboxRepository(), nil, WithLogger(testLogger()))

	// Run без publisher обязан вернуться сразу, а не зависнуть.
	done := make(chan struct{})
	go func() {
		worker.Run(context.Background())
		close(done)
	}()
	<-done
}

func TestRetryBackoffDoubles(t *testing.T) {
	worker := NewWorker(memory.NewOutboxRepository(), &mockPublisher{},
		WithLogger(testLogger()),
		WithRetryBaseDelay(50),
	)

	if got := worker.retryBackoff(1); got != 50 {
		t.Fatalf("attempt 1 = %v, want 50", got)
	}
	if got := worker.retryBackoff(3); got != 200 {
		t.Fatalf("attempt 3 = %v, want 200", got)
	}
}
