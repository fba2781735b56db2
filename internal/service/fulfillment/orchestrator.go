// Package fulfillment реализует оркестрацию сделки: подтверждение продавца
// с бронированием доставки и отказ с возвратом средств. Каждая операция —
// последовательность идемпотентных шагов, завершающаяся одной условной
// записью в хранилище заказов; ровно одна из конкурирующих операций по
// заказу может выиграть эту запись.
package fulfillment

import (
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mzansimarket/fulfillment/internal/domain"
	"github.com/mzansimarket/fulfillment/internal/messaging/kafka"
	"github.com/mzansimarket/fulfillment/internal/metrics"
	"github.com/mzansimarket/fulfillment/internal/service/notify"
)

// Orchestrator управляет жизненным циклом заказа после захвата оплаты.
type Orchestrator struct {
	orders   domain.OrderRepository
	refunds  domain.RefundRepository
	timeline domain.TimelineRepository
	outbox   domain.OutboxRepository

	vault     domain.AddressVault
	providers []domain.CourierProvider
	gateway   domain.PaymentGateway
	notifier  *notify.Dispatcher

	logger  *log.Entry
	metrics *metrics.FulfillmentMetrics
	// producer опционален: события и так уходят через outbox, прямой
	// продюсер даёт только более быструю доставку.
	producer *kafka.Producer

	now func() time.Time
}

// Option настраивает Orchestrator.
type Option func(*Orchestrator)

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithKafka подключает прямую публикацию событий в Kafka.
func WithKafka(producer *kafka.Producer) Option {
	return func(o *Orchestrator) {
		o.producer = producer
	}
}

// WithoutMetrics отключает метрики (для тестов).
func WithoutMetrics() Option {
	return func(o *Orchestrator) {
		o.metrics = nil
	}
}

// NewOrchestrator создаёт рабочий экземпляр оркестратора.
func NewOrchestrator(
	orders domain.OrderRepository,
	refunds domain.RefundRepository,
	timeline domain.TimelineRepository,
	outbox domain.OutboxRepository,
	vault domain.AddressVault,
	providers []domain.CourierProvider,
	gateway domain.PaymentGateway,
	notifier *notify.Dispatcher,
	logger *log.Entry,
	opts ...Option,
) *Orchestrator {
	if logger == nil {
		logger = log.New().WithField("component", "fulfillment")
	}

	o := &Orchestrator{
		orders:    orders,
		refunds:   refunds,
		timeline:  timeline,
		outbox:    outbox,
		vault:     vault,
		providers: providers,
		gateway:   gateway,
		notifier:  notifier,
		logger:    logger,
		metrics:   metrics.NewFulfillmentMetrics(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// emitEvent сохраняет событие в outbox и timeline. Ошибки побочных записей
// логируются и не влияют на исход операции.
func (o *Orchestrator) emitEvent(order *domain.Order, eventType string, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["order_id"] = order.ID

	occurred := o.now()

	data, err := json.Marshal(payload)
	if err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := o.outbox.Enqueue(msg); err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("enqueue event failed")
	} else if o.metrics != nil {
		o.metrics.RecordOutboxEvent()
	}

	if o.timeline != nil {
		var reason string
		if r, ok := payload["reason"].(string); ok {
			reason = r
		}
		event := domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     eventType,
			Reason:   reason,
			Occurred: occurred,
		}
		if err := o.timeline.Append(event); err != nil {
			o.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"event":    eventType,
			}).Warn("append timeline event failed")
		} else if o.metrics != nil {
			o.metrics.RecordTimelineEvent()
		}
	}
}

// publishEvent публикует событие напрямую в Kafka (если producer настроен).
func (o *Orchestrator) publishEvent(eventType kafka.EventType, order *domain.Order, metadata map[string]interface{}) {
	if o.producer == nil {
		return
	}

	event := kafka.NewOrderEvent(eventType, order.ID, order.BuyerID, order.SellerID, string(order.Status), metadata)
	if err := o.producer.PublishEvent(kafka.TopicOrderEvents, order.ID, event); err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"order_id":   order.ID,
		}).Warn("failed to publish order event to kafka")
	}
}

// notifyParty отправляет уведомление одной из сторон; сбой не влияет на исход.
func (o *Orchestrator) notifyParty(n domain.Notification) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(n); err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"order_id": n.OrderID,
			"type":     n.Type,
		}).Warn("notification persist failed")
	}
}
