package fulfillment

import (
	"io"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mzansimarket/fulfillment/internal/domain"
	"github.com/mzansimarket/fulfillment/internal/service/addressvault"
	"github.com/mzansimarket/fulfillment/internal/service/courier"
	"github.com/mzansimarket/fulfillment/internal/service/notify"
	"github.com/mzansimarket/fulfillment/internal/service/payment"
	"github.com/mzansimarket/fulfillment/internal/storage/memory"
)

// fixture собирает оркестратор на in-memory хранилищах и заглушках
// внешних систем.
type fixture struct {
	orders        domain.OrderRepository
	refunds       domain.RefundRepository
	timeline      domain.TimelineRepository
	outbox        domain.OutboxRepository
	notifications domain.NotificationRepository

	vault     *addressvault.MockVault
	gateway   *payment.MockGateway
	providers []*courier.MockProvider
	sink      *notify.MockSink

	dispatcher *notify.Dispatcher
	orch       *Orchestrator
}

func testLogger() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("component", "test")
}

func newFixture(t *testing.T, providers ...*courier.MockProvider) *fixture {
	t.Helper()

	if len(providers) == 0 {
		providers = []*courier.MockProvider{courier.NewMockProvider("courierguy")}
	}

	f := &fixture{
		orders:        memory.NewOrderRepository(),
		refunds:       memory.NewRefundRepository(),
		timeline:      memory.NewTimelineRepository(),
		outbox:        memory.NewOutboxRepository(),
		notifications: memory.NewNotificationRepository(),
		vault:         addressvault.NewMockVault(),
		gateway:       payment.NewMockGateway(),
		providers:     providers,
		sink:          notify.NewMockSink(),
	}

	f.dispatcher = notify.NewDispatcher(f.sink, f.notifications, testLogger())

	domainProviders := make([]domain.CourierProvider, 0, len(providers))
	for _, p := range providers {
		domainProviders = append(domainProviders, p)
	}

	f.orch = NewOrchestrator(
		f.orders, f.refunds, f.timeline, f.outbox,
		f.vault, domainProviders, f.gateway, f.dispatcher,
		testLogger(),
		WithoutMetrics(),
	)
	return f
}

// seedOrder создаёт заказ и регистрирует адреса сторон в заглушке хранилища.
func (f *fixture) seedOrder(t *testing.T, id string, status domain.OrderStatus) domain.Order {
	t.Helper()

	now := time.Now().UTC()
	order := domain.Order{
		ID:       id,
		BuyerID:  "buyer-1",
		SellerID: "seller-1",
		Items: []domain.OrderItem{
			{ReferenceID: "listing-7", Title: "Linear Algebra Done Right", UnitPriceMinor: 38000},
		},
		Currency:         "ZAR",
		TotalMinor:       38000,
		PaymentReference: "pay-" + id,
		Status:           status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := f.orders.Create(order); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	f.vault.Put("users", order.SellerID, "pickup", domain.Address{
		Street: "12 Jorissen St", Suburb: "Braamfontein", City: "Johannesburg",
		Province: "Gauteng", PostalCode: "2001",
		ContactName: "Seller One", ContactPhone: "+27110000001",
	})
	f.vault.Put("orders", order.ID, "shipping", domain.Address{
		Street: "1 Madiba Cir", Suburb: "Rondebosch", City: "Cape Town",
		Province: "Western Cape", PostalCode: "7700",
		ContactName: "Buyer One", ContactPhone: "+27210000001",
	})
	return order
}

// outboxEventTypes возвращает типы событий, накопленных в outbox.
func (f *fixture) outboxEventTypes(t *testing.T) []string {
	t.Helper()

	pending, err := f.outbox.PullPending(100)
	if err != nil {
		t.Fatalf("pull outbox: %v", err)
	}
	types := make([]string, 0, len(pending))
	for _, msg := range pending {
		types = append(types, msg.EventType)
	}
	return types
}

func containsEvent(types []string, want string) bool {
	for _, tp := range types {
		if tp == want {
			return true
		}
	}
	return false
}

// notificationTypes возвращает типы уведомлений пользователя.
func (f *fixture) notificationTypes(t *testing.T, userID string) []string {
	t.Helper()

	list, err := f.notifications.ListByUser(userID, 100)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	types := make([]string, 0, len(list))
	for _, n := range list {
		types = append(types, n.Type)
	}
	return types
}
