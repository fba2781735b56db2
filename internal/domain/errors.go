package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора покупателя.
	ErrBuyerRequired = errors.New("buyer_id is required")
	// Ошибка отсутствующего идентификатора продавца.
	ErrSellerRequired = errors.New("seller_id is required")
	// Ошибка отсутствующего кода валюты.
	ErrCurrencyRequired = errors.New("currency is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("total_minor must be non-negative")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order total does not match items sum")
	// Ошибка отсутствующего платёжного референса.
	ErrPaymentReferenceRequired = errors.New("payment_reference is required")
	// Ошибка отсутствующего идентификатора заказа.
	ErrOrderIDRequired = errors.New("order_id is required")

	// ErrOrderNotFound возвращается, если заказ не найден, а также в decline-пути
	// при чужом заказе или неподходящем статусе (не раскрываем существование
	// чужих заказов).
	ErrOrderNotFound = errors.New("order not found")
	// ErrUnauthorized — вызывающий не является продавцом заказа.
	ErrUnauthorized = errors.New("caller is not the order seller")
	// ErrInvalidState — текущий статус заказа не допускает запрошенный переход.
	ErrInvalidState = errors.New("order state does not permit this action")
	// ErrStatusConflict — условная запись проиграла гонку: статус или версия
	// в хранилище уже изменились.
	ErrStatusConflict = errors.New("order status precondition failed")

	// ErrAddressResolution — не удалось расшифровать или дополнить адреса сторон.
	ErrAddressResolution = errors.New("address resolution failed")
	// ErrNoShippingQuotes — ни один курьерский провайдер не вернул котировок.
	ErrNoShippingQuotes = errors.New("no shipping quotes available")
	// ErrBookingFailed — бронирование отправления у провайдера не удалось.
	ErrBookingFailed = errors.New("shipment booking failed")
	// ErrRefundFailed — платёжный шлюз не смог провести возврат.
	ErrRefundFailed = errors.New("refund failed")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// Машинные коды ошибок для внешнего API.
const (
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInvalidState      = "INVALID_STATE"
	CodeOrderNotFound     = "ORDER_NOT_FOUND"
	CodeAddressResolution = "ADDRESS_RESOLUTION_FAILED"
	CodeNoShippingQuotes  = "NO_SHIPPING_QUOTES"
	CodeBookingFailed     = "BOOKING_FAILED"
	CodeRefundFailed      = "REFUND_FAILED"
	CodeStatusConflict    = "PERSISTENCE_CONFLICT"
	CodeInternal          = "INTERNAL"
)

// ErrorCode сопоставляет доменной ошибке машинный код из таксономии API.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrInvalidState):
		return CodeInvalidState
	case errors.Is(err, ErrOrderNotFound):
		return CodeOrderNotFound
	case errors.Is(err, ErrAddressResolution):
		return CodeAddressResolution
	case errors.Is(err, ErrNoShippingQuotes):
		return CodeNoShippingQuotes
	case errors.Is(err, ErrBookingFailed):
		return CodeBookingFailed
	case errors.Is(err, ErrRefundFailed):
		return CodeRefundFailed
	case errors.Is(err, ErrStatusConflict):
		return CodeStatusConflict
	default:
		return CodeInternal
	}
}

// IsStatusConflict проверяет, является ли ошибка проигранной гонкой условной записи.
func IsStatusConflict(err error) bool {
	return errors.Is(err, ErrStatusConflict)
}
