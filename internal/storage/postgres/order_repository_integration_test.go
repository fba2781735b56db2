package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mzansimarket/fulfillment/internal/domain"
)

func integrationOrder(status domain.OrderStatus) domain.Order {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return domain.Order{
		ID:       uuid.NewString(),
		BuyerID:  "buyer-" + uuid.NewString(),
		SellerID: "seller-" + uuid.NewString(),
		Items: []domain.OrderItem{
			{ReferenceID: uuid.NewString(), Title: "Linear Algebra Done Right", UnitPriceMinor: 38000},
		},
		Currency:         "ZAR",
		TotalMinor:       38000,
		PaymentReference: "pay-" + uuid.NewString(),
		Status:           status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestOrderRepositoryIntegration_CreateAndGet(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	order := integrationOrder(domain.OrderStatusPendingCommit)
	if err := repo.Create(order); err != nil {
		t.Fatalf("create order: %v", err)
	}

	got, err := repo.Get(order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.Status != domain.OrderStatusPendingCommit {
		t.Fatalf("unexpected status %s", got.Status)
	}
	if got.PaymentReference != order.PaymentReference {
		t.Fatalf("payment reference mismatch: %s", got.PaymentReference)
	}
	if len(got.Items) != 1 || got.Items[0].UnitPriceMinor != 38000 {
		t.Fatalf("items not round-tripped: %+v", got.Items)
	}
}

func TestOrderRepositoryIntegration_TransitionConditionalWrite(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	order := integrationOrder(domain.OrderStatusPendingCommit)
	if err := repo.Create(order); err != nil {
		t.Fatalf("create order: %v", err)
	}

	now := time.Now().UTC()
	winner := order
	winner.Status = domain.OrderStatusCommitted
	winner.CommittedAt = &now
	winner.DeliveryData = domain.DeliveryData{
		ProviderID:  "courierguy",
		ServiceCode: "ECO",
		ServiceName: "Economy",
		QuoteMinor:  10500,
		BookingID:   "bk-1",
		BookedAt:    now,
	}
	winner.UpdatedAt = now
	if err := repo.Transition(winner, domain.PreCommitStatuses()...); err != nil {
		t.Fatalf("winning transition: %v", err)
	}

	// Проигравшая запись несёт ту же версию и ожидает pre-commit статус.
	loser := order
	loser.Status = domain.OrderStatusDeclined
	loser.UpdatedAt = now
	err := repo.Transition(loser, domain.PreCommitStatuses()...)
	if !domain.IsStatusConflict(err) {
		t.Fatalf("expected status conflict, got %v", err)
	}

	got, err := repo.Get(order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.Status != domain.OrderStatusCommitted {
		t.Fatalf("winner must persist, got %s", got.Status)
	}
	if got.DeliveryData.ProviderID != "courierguy" || got.DeliveryData.QuoteMinor != 10500 {
		t.Fatalf("delivery data not round-tripped: %+v", got.DeliveryData)
	}
	if got.Version != order.Version+1 {
		t.Fatalf("version must increment exactly once: %d", got.Version)
	}
}

func TestOrderRepositoryIntegration_TransitionMissingOrder(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	ghost := integrationOrder(domain.OrderStatusPendingCommit)
	err := repo.Transition(ghost, domain.OrderStatusPendingCommit)
	if err != domain.ErrOrderNotFound {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepositoryIntegration_ListStaleAndDeclined(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	pending := integrationOrder(domain.OrderStatusPendingCommit)
	pending.UpdatedAt = time.Now().UTC().Add(-48 * time.Hour)
	if err := repo.Create(pending); err != nil {
		t.Fatalf("create pending: %v", err)
	}

	declined := integrationOrder(domain.OrderStatusDeclined)
	declined.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	if err := repo.Create(declined); err != nil {
		t.Fatalf("create declined: %v", err)
	}

	stale, err := repo.ListStale(domain.OrderStatusPendingCommit, time.Now().UTC().Add(-24*time.Hour), 10)
	if err != nil {
		t.Fatalf("list stale: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != pending.ID {
		t.Fatalf("expected the stale pending order, got %+v", stale)
	}

	unrefunded, err := repo.ListDeclinedWithoutRefund(time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("list declined: %v", err)
	}
	if len(unrefunded) != 1 || unrefunded[0].ID != declined.ID {
		t.Fatalf("expected the declined order, got %+v", unrefunded)
	}
}
