package fulfillment

import (
	"context"
	"errors"
	"testing"

	"github.com/mzansimarket/fulfillment/internal/domain"
	"github.com/mzansimarket/fulfillment/internal/service/courier"
)

func TestCommitToSale_BooksCheapestQuote(t *testing.T) {
	expensive := courier.NewMockProvider("courierguy")
	expensive.Quotes[0].CostMinor = 10500

	cheap := courier.NewMockProvider("fastway")
	cheap.Quotes[0].CostMinor = 9900

	f := newFixture(t, expensive, cheap)
	order := f.seedOrder(t, "ord-1", domain.OrderStatusPendingCommit)

	result, err := f.orch.CommitToSale(context.Background(), order.ID, order.SellerID)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	if result.ProviderID != "fastway" {
		t.Fatalf("expected cheapest provider fastway, got %s", result.ProviderID)
	}
	if result.CostMinor != 9900 {
		t.Fatalf("unexpected cost %d", result.CostMinor)
	}
	if result.TrackingNumber != cheap.Booking.TrackingNumber {
		t.Fatalf("unexpected tracking %q", result.TrackingNumber)
	}
	if cheap.BookCalls != 1 || expensive.BookCalls != 0 {
		t.Fatalf("booking must go to the cheapest provider only: cheap=%d expensive=%d", cheap.BookCalls, expensive.BookCalls)
	}

	stored, _ := f.orders.Get(order.ID)
	if stored.Status != domain.OrderStatusCommitted {
		t.Fatalf("order not committed: %s", stored.Status)
	}
	if stored.Version != order.Version+1 {
		t.Fatalf("version must increment exactly once: %d", stored.Version)
	}
	if stored.CommittedAt == nil {
		t.Fatal("committed_at must be set")
	}
	if !stored.UpdatedAt.Equal(*stored.CommittedAt) {
		t.Fatalf("updated_at must reflect the commit write, got %s", stored.UpdatedAt)
	}
	if stored.DeliveryData.BookingID != cheap.Booking.BookingID {
		t.Fatalf("delivery data not persisted: %+v", stored.DeliveryData)
	}

	events := f.outboxEventTypes(t)
	if !containsEvent(events, "order.committed") {
		t.Fatalf("order.committed event missing, got %v", events)
	}

	timeline, _ := f.timeline.List(order.ID)
	if len(timeline) == 0 {
		t.Fatal("timeline event missing")
	}

	buyer := f.notificationTypes(t, order.BuyerID)
	seller := f.notificationTypes(t, order.SellerID)
	if !containsEvent(buyer, domain.NotificationTypeOrderCommitted) {
		t.Fatalf("buyer notification missing, got %v", buyer)
	}
	if !containsEvent(seller, domain.NotificationTypeOrderCommitted) {
		t.Fatalf("seller notification missing, got %v", seller)
	}
}

func TestCommitToSale_EqualPriceFirstSeenWins(t *testing.T) {
	first := courier.NewMockProvider("courierguy")
	second := courier.NewMockProvider("fastway")
	// Обе котировки стоят одинаково: выигрывает первая по порядку конфигурации.
	first.Quotes[0].CostMinor = 10000
	second.Quotes[0].CostMinor = 10000

	f := newFixture(t, first, second)
	order := f.seedOrder(t, "ord-tie", domain.OrderStatusPendingCommit)

	result, err := f.orch.CommitToSale(context.Background(), order.ID, order.SellerID)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if result.ProviderID != "courierguy" {
		t.Fatalf("first seen quote must win the tie, got %s", result.ProviderID)
	}
}

func TestCommitToSale_Unauthorized(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, "ord-2", domain.OrderStatusPendingCommit)

	_, err := f.orch.CommitToSale(context.Background(), order.ID, "someone-else")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if f.vault.DecryptCalls != 0 || f.providers[0].QuoteCalls != 0 {
		t.Fatal("no external calls allowed for unauthorized commit")
	}
}

func TestCommitToSale_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.CommitToSale(context.Background(), "missing", "seller-1")
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestCommitToSale_InvalidState(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, "ord-3", domain.OrderStatusDeclined)

	_, err := f.orch.CommitToSale(context.Background(), order.ID, order.SellerID)
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestCommitToSale_RecommitRejected(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, "ord-4", domain.OrderStatusPendingCommit)

	first, err := f.orch.CommitToSale(context.Background(), order.ID, order.SellerID)
	if err != nil {
		t.Fatalf("first commit: %v", err)
	}

	// Подтверждение разрешено только из pre-commit статусов: повторный вызов
	// падает на проверке статуса, ничего не бронирует и не пишет.
	_, err = f.orch.CommitToSale(context.Background(), order.ID, order.SellerID)
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("repeat commit must fail fast with ErrInvalidState, got %v", err)
	}
	if f.providers[0].BookCalls != 1 {
		t.Fatalf("repeat commit must not book again, calls=%d", f.providers[0].BookCalls)
	}

	stored, _ := f.orders.Get(order.ID)
	if stored.Version != order.Version+1 {
		t.Fatalf("repeat commit must not write, version=%d", stored.Version)
	}
	if stored.TrackingNumber != first.TrackingNumber {
		t.Fatalf("stored booking must stay intact, got %q", stored.TrackingNumber)
	}
}

func TestCommitToSale_NoQuotes(t *testing.T) {
	broken := courier.NewMockProvider("courierguy")
	broken.QuotesErr = errors.New("rates endpoint down")
	empty := courier.NewMockProvider("fastway")
	empty.Quotes = nil

	f := newFixture(t, broken, empty)
	order := f.seedOrder(t, "ord-5", domain.OrderStatusPendingCommit)

	_, err := f.orch.CommitToSale(context.Background(), order.ID, order.SellerID)
	if !errors.Is(err, domain.ErrNoShippingQuotes) {
		t.Fatalf("expected ErrNoShippingQuotes, got %v", err)
	}
	if broken.BookCalls != 0 || empty.BookCalls != 0 {
		t.Fatal("no booking allowed without quotes")
	}

	stored, _ := f.orders.Get(order.ID)
	if stored.Status != domain.OrderStatusPendingCommit {
		t.Fatalf("order must stay committable, got %s", stored.Status)
	}
}

func TestCommitToSale_OneProviderDownOtherServes(t *testing.T) {
	broken := courier.NewMockProvider("courierguy")
	broken.QuotesErr = errors.New("timeout")
	healthy := courier.NewMockProvider("fastway")

	f := newFixture(t, broken, healthy)
	order := f.seedOrder(t, "ord-6", domain.OrderStatusPendingCommit)

	result, err := f.orch.CommitToSale(context.Background(), order.ID, order.SellerID)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if result.ProviderID != "fastway" {
		t.Fatalf("healthy provider must serve, got %s", result.ProviderID)
	}
}

func TestCommitToSale_AddressResolutionFailure(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, "ord-7", domain.OrderStatusPendingCommit)
	f.vault.Err = errors.New("vault unavailable")

	_, err := f.orch.CommitToSale(context.Background(), order.ID, order.SellerID)
	if !errors.Is(err, domain.ErrAddressResolution) {
		t.Fatalf("expected ErrAddressResolution, got %v", err)
	}
	if f.providers[0].QuoteCalls != 0 {
		t.Fatal("providers must not be queried without addresses")
	}
}

func TestCommitToSale_IncompleteAddress(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, "ord-8", domain.OrderStatusPendingCommit)
	f.vault.Put("orders", order.ID, "shipping", domain.Address{Street: "1 Somewhere"})

	_, err := f.orch.CommitToSale(context.Background(), order.ID, order.SellerID)
	if !errors.Is(err, domain.ErrAddressResolution) {
		t.Fatalf("expected ErrAddressResolution, got %v", err)
	}
}

func TestCommitToSale_BookingFailure(t *testing.T) {
	provider := courier.NewMockProvider("courierguy")
	provider.BookErr = errors.New("shipment rejected")

	f := newFixture(t, provider)
	order := f.seedOrder(t, "ord-9", domain.OrderStatusPendingCommit)

	_, err := f.orch.CommitToSale(context.Background(), order.ID, order.SellerID)
	if !errors.Is(err, domain.ErrBookingFailed) {
		t.Fatalf("expected ErrBookingFailed, got %v", err)
	}

	stored, _ := f.orders.Get(order.ID)
	if stored.Status != domain.OrderStatusPendingCommit {
		t.Fatalf("failed booking must not transition the order, got %s", stored.Status)
	}
	if stored.TrackingNumber != "" {
		t.Fatal("tracking must not be set after failed booking")
	}
}

// racingOrderRepository воспроизводит гонку: перед первой условной записью
// коммита конкурент успевает отклонить заказ.
type racingOrderRepository struct {
	domain.OrderRepository
	raced bool
}

func (r *racingOrderRepository) Transition(order domain.Order, expected ...domain.OrderStatus) error {
	if !r.raced && order.Status == domain.OrderStatusCommitted {
		r.raced = true
		concurrent, err := r.OrderRepository.Get(order.ID)
		if err == nil {
			concurrent.Status = domain.OrderStatusDeclined
			_ = r.OrderRepository.Transition(concurrent, domain.PreCommitStatuses()...)
		}
	}
	return r.OrderRepository.Transition(order, expected...)
}

func TestCommitToSale_BookingOrphanedOnLostRace(t *testing.T) {
	provider := courier.NewMockProvider("courierguy")
	f := newFixture(t, provider)
	order := f.seedOrder(t, "ord-10", domain.OrderStatusPendingCommit)

	racing := &racingOrderRepository{OrderRepository: f.orders}
	f.orch.orders = racing

	_, err := f.orch.CommitToSale(context.Background(), order.ID, order.SellerID)
	if !domain.IsStatusConflict(err) {
		t.Fatalf("expected status conflict, got %v", err)
	}

	// Бронирование состоялось, но запись проиграна: отправление осиротело,
	// заказ остаётся у победителя гонки и не несёт трекинга.
	if provider.BookCalls != 1 {
		t.Fatalf("booking must have happened before the race, calls=%d", provider.BookCalls)
	}
	stored, _ := f.orders.Get(order.ID)
	if stored.Status != domain.OrderStatusDeclined {
		t.Fatalf("concurrent decline must stand, got %s", stored.Status)
	}
	if stored.TrackingNumber != "" {
		t.Fatal("losing commit must not leak tracking into the order")
	}
}
