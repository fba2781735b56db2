package domain

import (
	"context"
	"time"
)

// AddressVault описывает хранилище адресов с расшифровкой по требованию.
// Расшифровка ограничена авторизацией вызывающего сервиса.
type AddressVault interface {
	// Decrypt возвращает расшифрованный адрес записи target в таблице table.
	// addressType различает pickup/shipping адреса одного пользователя.
	Decrypt(ctx context.Context, table, targetID, addressType string) (Address, error)
}

// CourierProvider — клиент одного курьерского провайдера. Возвращает уже
// нормализованные котировки; специфичные поля провайдера отбрасываются
// при нормализации.
type CourierProvider interface {
	// ID возвращает стабильный идентификатор провайдера.
	ID() string
	// GetQuotes возвращает котировки доставки для набора грузовых мест.
	GetQuotes(ctx context.Context, origin, destination Address, parcels []Parcel) ([]ShippingQuote, error)
	// BookShipment бронирует отправление по выбранной котировке.
	BookShipment(ctx context.Context, req BookingRequest) (Booking, error)
}

// PaymentGateway описывает клиентский контракт платёжного шлюза.
type PaymentGateway interface {
	// Refund инициирует возврат по платёжному референсу. amountMinor == nil
	// означает полный возврат (сумму определяет шлюз, не мы).
	Refund(ctx context.Context, paymentReference string, amountMinor *int64, reason string) (RefundResult, error)
}

// NotificationSink доставляет письмо получателю. Сбои доставки логируются
// и никогда не блокируют оркестрацию.
type NotificationSink interface {
	Send(ctx context.Context, recipientID, subject, body string) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
