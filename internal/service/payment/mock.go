package payment

import (
	"context"

	"github.com/mzansimarket/fulfillment/internal/domain"
)

// MockGateway — конфигурируемая заглушка PaymentGateway для тестов.
type MockGateway struct {
	Result domain.RefundResult
	Err    error

	RefundCalls int
	// LastReference и LastAmount фиксируют аргументы последнего вызова.
	LastReference string
	LastAmount    *int64
	LastReason    string
}

// NewMockGateway возвращает mock с успешным возвратом по умолчанию.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		Result: domain.RefundResult{
			RefundReference: "rf-mock-1",
			Status:          "success",
			Raw:             []byte(`{"status":"success"}`),
		},
	}
}

// Refund возвращает настроенный результат и считает вызовы.
func (m *MockGateway) Refund(_ context.Context, paymentReference string, amountMinor *int64, reason string) (domain.RefundResult, error) {
	m.RefundCalls++
	m.LastReference = paymentReference
	m.LastAmount = amountMinor
	m.LastReason = reason
	if m.Err != nil {
		// Result возвращается и при ошибке: тест сам решает, был ли это
		// транспортный сбой (пустой Status) или отказ шлюза (Status задан).
		return m.Result, m.Err
	}
	return m.Result, nil
}

var _ domain.PaymentGateway = (*MockGateway)(nil)
