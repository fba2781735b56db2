package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mzansimarket/fulfillment/internal/domain"
)

// refundRepositoryInMemory — append-only журнал возвратов в памяти.
type refundRepositoryInMemory struct {
	mu      sync.RWMutex
	records []domain.RefundTransaction
}

// NewRefundRepository создаёт in-memory реализацию RefundRepository.
func NewRefundRepository() domain.RefundRepository {
	return &refundRepositoryInMemory{}
}

// Append добавляет запись аудита. Записи никогда не изменяются.
func (r *refundRepositoryInMemory) Append(tx domain.RefundTransaction) (domain.RefundTransaction, error) {
	if errs := tx.Validate(); len(errs) > 0 {
		return domain.RefundTransaction{}, errs[0]
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	tx.RawGatewayResponse = append([]byte(nil), tx.RawGatewayResponse...)
	r.records = append(r.records, tx)
	return tx, nil
}

// ListByOrder возвращает попытки возврата по заказу в хронологическом порядке.
func (r *refundRepositoryInMemory) ListByOrder(orderID string) ([]domain.RefundTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.RefundTransaction, 0)
	for _, tx := range r.records {
		if tx.OrderID == orderID {
			result = append(result, tx)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

// HasSuccessful сообщает, есть ли успешный возврат по платёжному референсу.
func (r *refundRepositoryInMemory) HasSuccessful(paymentReference string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, tx := range r.records {
		if tx.PaymentReference == paymentReference && tx.Status == domain.RefundTransactionStatusSuccess {
			return true, nil
		}
	}
	return false, nil
}

var _ domain.RefundRepository = (*refundRepositoryInMemory)(nil)
