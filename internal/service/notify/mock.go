package notify

import (
	"context"
	"sync"

	"github.com/mzansimarket/fulfillment/internal/domain"
)

// SentMessage фиксирует одну отправку через MockSink.
type SentMessage struct {
	RecipientID string
	Subject     string
	Body        string
}

// MockSink — конфигурируемая заглушка NotificationSink для тестов.
type MockSink struct {
	Err error

	mu   sync.Mutex
	sent []SentMessage
}

// NewMockSink возвращает mock с успешной доставкой по умолчанию.
func NewMockSink() *MockSink {
	return &MockSink{}
}

// Send записывает отправку и возвращает настроенную ошибку.
func (m *MockSink) Send(_ context.Context, recipientID, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, SentMessage{RecipientID: recipientID, Subject: subject, Body: body})
	return m.Err
}

// Sent возвращает копию журнала отправок.
func (m *MockSink) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]SentMessage(nil), m.sent...)
}

var _ domain.NotificationSink = (*MockSink)(nil)
