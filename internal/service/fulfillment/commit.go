package fulfillment

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mzansimarket/fulfillment/internal/domain"
	"github.com/mzansimarket/fulfillment/internal/messaging/kafka"
)

// CommitResult — итог подтверждения сделки продавцом.
type CommitResult struct {
	Order          domain.Order
	TrackingNumber string
	WaybillURL     string
	ProviderID     string
	ServiceName    string
	CostMinor      int64
}

func commitResultFromOrder(order domain.Order) CommitResult {
	return CommitResult{
		Order:          order,
		TrackingNumber: order.TrackingNumber,
		WaybillURL:     order.DeliveryData.WaybillURL,
		ProviderID:     order.DeliveryData.ProviderID,
		ServiceName:    order.DeliveryData.ServiceName,
		CostMinor:      order.DeliveryData.QuoteMinor,
	}
}

// CommitToSale подтверждает сделку от имени продавца: расшифровывает адреса,
// собирает котировки, бронирует самую дешёвую доставку и фиксирует переход
// в committed одной условной записью. Операция разрешена только из pre-commit
// статусов: повторный вызов по уже подтверждённому заказу падает на проверке
// статуса с ErrInvalidState. Безопасный повтор того же запроса обеспечивает
// Idempotency-Key на HTTP-слое.
func (o *Orchestrator) CommitToSale(ctx context.Context, orderID, sellerID string) (CommitResult, error) {
	started := o.now()
	if o.metrics != nil {
		o.metrics.RecordCommitStarted()
		defer func() {
			o.metrics.RecordCommitFinished()
			o.metrics.RecordCommitDuration(o.now().Sub(started))
		}()
	}

	logger := o.logger.WithFields(log.Fields{
		"order_id":  orderID,
		"seller_id": sellerID,
	})

	order, err := o.orders.Get(orderID)
	if err != nil {
		o.recordCommitFailed()
		return CommitResult{}, err
	}

	if order.SellerID != sellerID {
		o.recordCommitFailed()
		return CommitResult{}, domain.ErrUnauthorized
	}

	if !order.Status.IsPreCommit() {
		o.recordCommitFailed()
		return CommitResult{}, fmt.Errorf("%w: status %s", domain.ErrInvalidState, order.Status)
	}

	stepStarted := o.now()
	origin, destination, err := o.resolveAddresses(ctx, &order)
	if err != nil {
		o.recordCommitFailed()
		logger.WithError(err).Error("address resolution failed")
		return CommitResult{}, err
	}
	o.recordStep("address_resolution", stepStarted)

	parcels := buildParcels(&order)

	stepStarted = o.now()
	quotes, err := o.collectQuotes(ctx, order.ID, origin, destination, parcels)
	if err != nil {
		o.recordCommitFailed()
		logger.WithError(err).Error("shipping quote collection failed")
		return CommitResult{}, err
	}
	o.recordStep("quotes", stepStarted)

	quote, _ := domain.CheapestQuote(quotes)
	provider, ok := o.providerByID(quote.ProviderID)
	if !ok {
		o.recordCommitFailed()
		return CommitResult{}, fmt.Errorf("%w: unknown provider %q in quote", domain.ErrBookingFailed, quote.ProviderID)
	}

	stepStarted = o.now()
	booking, err := provider.BookShipment(ctx, domain.BookingRequest{
		Quote:       quote,
		Origin:      origin,
		Destination: destination,
		Parcels:     parcels,
		Reference:   order.ID,
	})
	if err != nil {
		o.recordCommitFailed()
		logger.WithError(err).WithField("provider", quote.ProviderID).Error("shipment booking failed")
		return CommitResult{}, fmt.Errorf("%w: %v", domain.ErrBookingFailed, err)
	}
	o.recordStep("booking", stepStarted)

	committedAt := o.now()
	updated := order
	updated.Status = domain.OrderStatusCommitted
	updated.CommittedAt = &committedAt
	updated.UpdatedAt = committedAt
	updated.TrackingNumber = booking.TrackingNumber
	updated.DeliveryStatus = "booked"
	updated.DeliveryData = domain.DeliveryData{
		ProviderID:  quote.ProviderID,
		ServiceCode: quote.ServiceCode,
		ServiceName: quote.ServiceName,
		QuoteMinor:  quote.CostMinor,
		BookingID:   booking.BookingID,
		WaybillURL:  booking.WaybillURL,
		BookedAt:    booking.BookedAt,
	}

	if err := o.orders.Transition(updated, domain.PreCommitStatuses()...); err != nil {
		o.recordCommitFailed()
		if domain.IsStatusConflict(err) {
			// Отправление уже забронировано, а переход проигран конкуренту.
			// Бронирование не откатываем: осиротевшие брони собирает
			// отдельная сверка по этому логу и счётчику.
			logger.WithFields(log.Fields{
				"provider":        quote.ProviderID,
				"booking_id":      booking.BookingID,
				"tracking_number": booking.TrackingNumber,
			}).Error("booking orphaned: commit lost the status race")
			if o.metrics != nil {
				o.metrics.RecordStatusConflict()
				o.metrics.RecordBookingOrphaned()
			}
		}
		return CommitResult{}, err
	}
	updated.Version++

	if o.metrics != nil {
		o.metrics.RecordCommitSucceeded()
	}

	o.emitEvent(&updated, string(kafka.EventTypeOrderCommitted), map[string]interface{}{
		"provider_id":     quote.ProviderID,
		"service_code":    quote.ServiceCode,
		"cost_minor":      quote.CostMinor,
		"tracking_number": booking.TrackingNumber,
	})
	o.publishEvent(kafka.EventTypeOrderCommitted, &updated, map[string]interface{}{
		"tracking_number": booking.TrackingNumber,
	})

	o.notifyParty(domain.Notification{
		UserID:  updated.BuyerID,
		Type:    domain.NotificationTypeOrderCommitted,
		Title:   "Your order is on its way",
		Message: fmt.Sprintf("The seller confirmed order %s. Tracking number: %s.", updated.ID, booking.TrackingNumber),
		OrderID: updated.ID,
	})
	o.notifyParty(domain.Notification{
		UserID:  updated.SellerID,
		Type:    domain.NotificationTypeOrderCommitted,
		Title:   "Shipment booked",
		Message: fmt.Sprintf("Courier booked for order %s via %s. Waybill: %s.", updated.ID, quote.ServiceName, booking.WaybillURL),
		OrderID: updated.ID,
	})

	logger.WithFields(log.Fields{
		"provider":        quote.ProviderID,
		"service":         quote.ServiceCode,
		"cost_minor":      quote.CostMinor,
		"tracking_number": booking.TrackingNumber,
	}).Info("order committed")

	return commitResultFromOrder(updated), nil
}

func (o *Orchestrator) recordCommitFailed() {
	if o.metrics != nil {
		o.metrics.RecordCommitFailed()
	}
}

func (o *Orchestrator) recordStep(step string, started time.Time) {
	if o.metrics != nil {
		o.metrics.RecordStepDuration(step, o.now().Sub(started))
	}
}
