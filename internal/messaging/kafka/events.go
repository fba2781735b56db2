package kafka

import "time"

// EventType определяет тип события заказа.
type EventType string

const (
	EventTypeOrderCommitted EventType = "order.committed"
	EventTypeOrderDeclined  EventType = "order.declined"
	EventTypeOrderExpired   EventType = "order.expired"
	EventTypeRefundIssued   EventType = "order.refund_issued"
	EventTypeRefundFailed   EventType = "order.refund_failed"
	EventTypeReminderSent   EventType = "order.reminder_sent"
)

// Topics для Kafka.
const (
	TopicOrderEvents     = "marketplace.order.events"
	TopicDeadLetterQueue = "marketplace.dlq"
)

// OrderEvent представляет событие жизненного цикла заказа.
type OrderEvent struct {
	EventType EventType              `json:"event_type"`
	OrderID   string                 `json:"order_id"`
	BuyerID   string                 `json:"buyer_id"`
	SellerID  string                 `json:"seller_id"`
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewOrderEvent создает новое событие заказа.
func NewOrderEvent(eventType EventType, orderID, buyerID, sellerID, status string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType: eventType,
		OrderID:   orderID,
		BuyerID:   buyerID,
		SellerID:  sellerID,
		Status:    status,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}
