package notify

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/mzansimarket/fulfillment/internal/domain"
	"github.com/mzansimarket/fulfillment/internal/storage/memory"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(logger)
}

func TestDispatcherCreatesRecordAndSends(t *testing.T) {
	sink := NewMockSink()
	repo := memory.NewNotificationRepository()
	d := NewDispatcher(sink, repo, testLogger())

	err := d.Notify(domain.Notification{
		UserID:  "seller-1",
		Type:    domain.NotificationTypeCommitReminder,
		Title:   "Commit reminder",
		Message: "Order ord-1 is waiting for your commitment",
		OrderID: "ord-1",
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	d.Flush()

	sent := sink.Sent()
	if len(sent) != 1 || sent[0].RecipientID != "seller-1" {
		t.Fatalf("unexpected sink log %+v", sent)
	}

	exists, err := repo.ExistsForOrder("ord-1", domain.NotificationTypeCommitReminder)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Fatal("in-app notification must be recorded")
	}
}

func TestDispatcherSinkFailureIsSwallowed(t *testing.T) {
	sink := NewMockSink()
	sink.Err = errors.New("smtp down")
	repo := memory.NewNotificationRepository()
	d := NewDispatcher(sink, repo, testLogger())

	if err := d.Notify(domain.Notification{UserID: "buyer-1", Type: domain.NotificationTypeOrderDeclined, OrderID: "ord-2"}); err != nil {
		t.Fatalf("sink failure must not surface: %v", err)
	}
	d.Flush()

	// In-app запись создаётся даже при падении доставки письма.
	exists, err := repo.ExistsForOrder("ord-2", domain.NotificationTypeOrderDeclined)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Fatal("in-app record must exist despite sink failure")
	}
}
