package fulfillment

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/mzansimarket/fulfillment/internal/domain"
)

// Таблицы хранилища адресов. Pickup-адрес привязан к продавцу,
// shipping-адрес — к конкретному заказу.
const (
	vaultTableUsers  = "users"
	vaultTableOrders = "orders"

	addressTypePickup   = "pickup"
	addressTypeShipping = "shipping"
)

// resolveAddresses расшифровывает pickup-адрес продавца и shipping-адрес
// покупателя. Обе ошибки — и недоступность хранилища, и неполный адрес —
// сворачиваются в ErrAddressResolution: для вызывающего это один класс сбоя.
func (o *Orchestrator) resolveAddresses(ctx context.Context, order *domain.Order) (origin, destination domain.Address, err error) {
	origin, err = o.vault.Decrypt(ctx, vaultTableUsers, order.SellerID, addressTypePickup)
	if err != nil {
		return origin, destination, fmt.Errorf("%w: seller pickup address: %v", domain.ErrAddressResolution, err)
	}
	if !origin.Complete() {
		return origin, destination, fmt.Errorf("%w: seller pickup address is incomplete", domain.ErrAddressResolution)
	}

	destination, err = o.vault.Decrypt(ctx, vaultTableOrders, order.ID, addressTypeShipping)
	if err != nil {
		return origin, destination, fmt.Errorf("%w: buyer shipping address: %v", domain.ErrAddressResolution, err)
	}
	if !destination.Complete() {
		return origin, destination, fmt.Errorf("%w: buyer shipping address is incomplete", domain.ErrAddressResolution)
	}

	return origin, destination, nil
}

// buildParcels формирует грузовые места: одно место книжного профиля на позицию.
func buildParcels(order *domain.Order) []domain.Parcel {
	parcels := make([]domain.Parcel, 0, len(order.Items))
	for _, item := range order.Items {
		parcels = append(parcels, domain.BookParcel(item.ReferenceID))
	}
	return parcels
}

// collectQuotes опрашивает всех провайдеров и объединяет их котировки.
// Отказ или пустой ответ одного провайдера не срывает опрос: он логируется
// и пропускается. Ошибка возвращается только когда котировок нет вообще.
func (o *Orchestrator) collectQuotes(ctx context.Context, orderID string, origin, destination domain.Address, parcels []domain.Parcel) ([]domain.ShippingQuote, error) {
	var quotes []domain.ShippingQuote

	for _, provider := range o.providers {
		providerQuotes, err := provider.GetQuotes(ctx, origin, destination, parcels)
		if err != nil {
			o.logger.WithError(err).WithFields(log.Fields{
				"order_id": orderID,
				"provider": provider.ID(),
			}).Warn("courier provider quote request failed")
			continue
		}
		if len(providerQuotes) == 0 {
			o.logger.WithFields(log.Fields{
				"order_id": orderID,
				"provider": provider.ID(),
			}).Warn("courier provider returned no quotes")
			continue
		}
		quotes = append(quotes, providerQuotes...)
	}

	if len(quotes) == 0 {
		return nil, domain.ErrNoShippingQuotes
	}
	return quotes, nil
}

// providerByID находит клиента провайдера из выбранной котировки.
func (o *Orchestrator) providerByID(id string) (domain.CourierProvider, bool) {
	for _, provider := range o.providers {
		if provider.ID() == id {
			return provider, true
		}
	}
	return nil, false
}
