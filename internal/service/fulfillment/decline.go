package fulfillment

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mzansimarket/fulfillment/internal/domain"
	"github.com/mzansimarket/fulfillment/internal/messaging/kafka"
)

// Причина отказа, записываемая свипером при истечении окна подтверждения.
const autoDeclineReason = "seller did not commit within the allowed window"

// DeclineResult — итог отказа от сделки.
type DeclineResult struct {
	Order domain.Order
	// RefundProcessed сообщает, прошёл ли возврат средств. false означает,
	// что заказ отклонён, но возврат будет повторён сверкой позже.
	RefundProcessed bool
	RefundReference string
}

// DeclineCommit отклоняет сделку от имени продавца и инициирует возврат
// средств покупателю. Заказ не найден, принадлежит другому продавцу или
// уже вышел из pre-commit состояния — во всех трёх случаях возвращается
// ErrOrderNotFound: существование чужих заказов не раскрывается.
//
// Переход в declined записывается до обращения к платёжному шлюзу: отказ
// продавца необратим независимо от исхода возврата.
func (o *Orchestrator) DeclineCommit(ctx context.Context, orderID, sellerID, reason string) (DeclineResult, error) {
	order, err := o.orders.Get(orderID)
	if err != nil {
		return DeclineResult{}, domain.ErrOrderNotFound
	}
	if order.SellerID != sellerID || !order.Status.IsPreCommit() {
		return DeclineResult{}, domain.ErrOrderNotFound
	}

	return o.declineOrder(ctx, order, reason, "seller", domain.PreCommitStatuses()...)
}

// declineOrder выполняет общий путь отказа: условная запись declined,
// событие, уведомление покупателя и попытка возврата. Используется и
// продавцом, и свипером (из статуса expired).
func (o *Orchestrator) declineOrder(ctx context.Context, order domain.Order, reason, actor string, expected ...domain.OrderStatus) (DeclineResult, error) {
	logger := o.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"actor":    actor,
	})

	declinedAt := o.now()
	updated := order
	updated.Status = domain.OrderStatusDeclined
	updated.DeclinedAt = &declinedAt
	updated.UpdatedAt = declinedAt
	updated.DeclineReason = reason
	updated.RefundStatus = domain.RefundStatusPending

	if err := o.orders.Transition(updated, expected...); err != nil {
		if domain.IsStatusConflict(err) && o.metrics != nil {
			o.metrics.RecordStatusConflict()
		}
		return DeclineResult{}, err
	}
	updated.Version++

	if o.metrics != nil {
		o.metrics.RecordDecline()
	}

	o.emitEvent(&updated, string(kafka.EventTypeOrderDeclined), map[string]interface{}{
		"reason": reason,
		"actor":  actor,
	})
	o.publishEvent(kafka.EventTypeOrderDeclined, &updated, map[string]interface{}{
		"reason": reason,
	})

	o.notifyParty(domain.Notification{
		UserID:  updated.BuyerID,
		Type:    domain.NotificationTypeOrderDeclined,
		Title:   "Order declined",
		Message: "The seller could not fulfil your order. Your payment will be refunded in full.",
		OrderID: updated.ID,
	})

	logger.WithField("reason", reason).Info("order declined")

	processed, refundRef := o.processRefund(ctx, &updated)

	return DeclineResult{
		Order:           updated,
		RefundProcessed: processed,
		RefundReference: refundRef,
	}, nil
}

// processRefund проводит полный возврат по платёжному референсу заказа.
// Сумму не передаём: полный возврат определяет шлюз по референсу. Возврат
// идемпотентен: существующий успешный возврат по референсу завершает шаг
// без нового обращения к шлюзу. Сбой возврата не откатывает отказ — заказ
// остаётся declined, а возврат добирает reconciliation-свип.
func (o *Orchestrator) processRefund(ctx context.Context, order *domain.Order) (bool, string) {
	logger := o.logger.WithFields(log.Fields{
		"order_id":          order.ID,
		"payment_reference": order.PaymentReference,
	})

	done, err := o.refunds.HasSuccessful(order.PaymentReference)
	if err != nil {
		logger.WithError(err).Error("refund idempotency check failed")
		return false, ""
	}
	if done {
		logger.Info("refund already issued for payment reference, skipping gateway call")
		return true, order.RefundReference
	}

	result, err := o.gateway.Refund(ctx, order.PaymentReference, nil, order.DeclineReason)
	if err != nil {
		logger.WithError(err).Error("refund request failed")
		if o.metrics != nil {
			o.metrics.RecordRefundFailed()
		}

		// Ответ шлюза со статусом отличным от success попадает в аудит;
		// транспортная ошибка без ответа — нет.
		if result.Status != "" {
			o.appendRefundAudit(order, result, domain.RefundTransactionStatusFailed, logger)
		}

		o.markRefundOutcome(order, domain.RefundStatusFailed, "", logger)
		o.emitEvent(order, string(kafka.EventTypeRefundFailed), map[string]interface{}{
			"payment_reference": order.PaymentReference,
			"gateway_status":    result.Status,
		})
		o.publishEvent(kafka.EventTypeRefundFailed, order, nil)

		o.notifyParty(domain.Notification{
			UserID:  order.BuyerID,
			Type:    domain.NotificationTypeRefundPending,
			Title:   "Refund pending",
			Message: "Your refund is taking longer than usual. We are on it and will retry automatically.",
			OrderID: order.ID,
		})
		return false, ""
	}

	amount := result.AmountMinor
	if amount == 0 {
		amount = order.TotalMinor
	}
	// Возврат не может превышать сумму заказа; расхождение со шлюзом
	// фиксируем в логе, в аудит пишем усечённую сумму.
	if amount > order.TotalMinor {
		logger.WithFields(log.Fields{
			"gateway_amount_minor": amount,
			"total_minor":          order.TotalMinor,
		}).Warn("gateway refund amount exceeds order total, clamping")
		amount = order.TotalMinor
	}
	o.appendRefundAudit(order, domain.RefundResult{
		RefundReference: result.RefundReference,
		Status:          result.Status,
		AmountMinor:     amount,
		Raw:             result.Raw,
	}, domain.RefundTransactionStatusSuccess, logger)

	o.markRefundOutcome(order, domain.RefundStatusSuccess, result.RefundReference, logger)

	if o.metrics != nil {
		o.metrics.RecordRefundIssued()
	}
	o.emitEvent(order, string(kafka.EventTypeRefundIssued), map[string]interface{}{
		"payment_reference": order.PaymentReference,
		"refund_reference":  result.RefundReference,
		"amount_minor":      amount,
	})
	o.publishEvent(kafka.EventTypeRefundIssued, order, map[string]interface{}{
		"refund_reference": result.RefundReference,
	})

	o.notifyParty(domain.Notification{
		UserID:  order.BuyerID,
		Type:    domain.NotificationTypeRefundIssued,
		Title:   "Refund issued",
		Message: "Your payment has been refunded in full.",
		OrderID: order.ID,
	})

	logger.WithField("refund_reference", result.RefundReference).Info("refund issued")
	return true, result.RefundReference
}

func (o *Orchestrator) appendRefundAudit(order *domain.Order, result domain.RefundResult, status domain.RefundTransactionStatus, logger *log.Entry) {
	tx := domain.RefundTransaction{
		OrderID:            order.ID,
		PaymentReference:   order.PaymentReference,
		RefundReference:    result.RefundReference,
		AmountMinor:        result.AmountMinor,
		Reason:             order.DeclineReason,
		Status:             status,
		RawGatewayResponse: result.Raw,
	}
	if _, err := o.refunds.Append(tx); err != nil {
		logger.WithError(err).Error("refund audit append failed")
	}
}

// markRefundOutcome фиксирует итог возврата на заказе второй условной
// записью (статус остаётся declined). Проигранная запись здесь не страшна:
// источником истины о возврате служит журнал RefundTransaction.
func (o *Orchestrator) markRefundOutcome(order *domain.Order, status domain.RefundStatus, refundRef string, logger *log.Entry) {
	updated := *order
	updated.RefundStatus = status
	updated.RefundReference = refundRef
	updated.UpdatedAt = o.now()

	if err := o.orders.Transition(updated, domain.OrderStatusDeclined); err != nil {
		logger.WithError(err).Warn("refund outcome write lost, audit log remains authoritative")
		return
	}
	updated.Version++
	*order = updated
}

// ReconcileRefunds добирает возвраты по заказам, отклонённым до before без
// успешного возврата. Возвращает количество успешно проведённых возвратов.
func (o *Orchestrator) ReconcileRefunds(ctx context.Context, before time.Time, limit int) (int, error) {
	orders, err := o.orders.ListDeclinedWithoutRefund(before, limit)
	if err != nil {
		return 0, err
	}

	var issued int
	for _, order := range orders {
		if ctx.Err() != nil {
			return issued, ctx.Err()
		}
		order := order
		if processed, _ := o.processRefund(ctx, &order); processed {
			issued++
		}
	}

	if issued > 0 || len(orders) > 0 {
		o.logger.WithFields(log.Fields{
			"candidates": len(orders),
			"issued":     issued,
		}).Info("refund reconciliation pass complete")
	}
	return issued, nil
}
