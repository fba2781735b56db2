// Package courier содержит общие для курьерских провайдеров вспомогательные
// типы; сами клиенты живут в подпакетах по провайдерам.
package courier

import (
	"context"
	"time"

	"github.com/mzansimarket/fulfillment/internal/domain"
)

// MockProvider — конфигурируемая заглушка CourierProvider для тестов.
type MockProvider struct {
	ProviderID string
	Quotes     []domain.ShippingQuote
	QuotesErr  error
	Booking    domain.Booking
	BookErr    error

	QuoteCalls int
	BookCalls  int
	// LastBooking фиксирует последний запрос бронирования для проверок.
	LastBooking domain.BookingRequest
}

// NewMockProvider возвращает mock с одной котировкой и успешным бронированием.
func NewMockProvider(id string) *MockProvider {
	return &MockProvider{
		ProviderID: id,
		Quotes: []domain.ShippingQuote{
			{ProviderID: id, ServiceCode: "ECO", ServiceName: "Economy", CostMinor: 10000, ETADays: 3},
		},
		Booking: domain.Booking{
			TrackingNumber: id + "-TRACK-1",
			BookingID:      id + "-bk-1",
			WaybillURL:     "https://waybills/" + id + "/bk-1.pdf",
			BookedAt:       time.Now().UTC(),
		},
	}
}

// ID возвращает настроенный идентификатор провайдера.
func (m *MockProvider) ID() string {
	return m.ProviderID
}

// GetQuotes возвращает настроенные котировки и считает вызовы.
func (m *MockProvider) GetQuotes(_ context.Context, _, _ domain.Address, _ []domain.Parcel) ([]domain.ShippingQuote, error) {
	m.QuoteCalls++
	if m.QuotesErr != nil {
		return nil, m.QuotesErr
	}
	return append([]domain.ShippingQuote(nil), m.Quotes...), nil
}

// BookShipment возвращает настроенное бронирование и считает вызовы.
func (m *MockProvider) BookShipment(_ context.Context, req domain.BookingRequest) (domain.Booking, error) {
	m.BookCalls++
	m.LastBooking = req
	if m.BookErr != nil {
		return domain.Booking{}, m.BookErr
	}
	return m.Booking, nil
}

var _ domain.CourierProvider = (*MockProvider)(nil)
