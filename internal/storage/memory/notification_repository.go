package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mzansimarket/fulfillment/internal/domain"
)

// notificationRepositoryInMemory хранит in-app уведомления в памяти.
type notificationRepositoryInMemory struct {
	mu    sync.RWMutex
	items []domain.Notification
}

// NewNotificationRepository создаёт in-memory реализацию NotificationRepository.
func NewNotificationRepository() domain.NotificationRepository {
	return &notificationRepositoryInMemory{}
}

// Create сохраняет уведомление.
func (r *notificationRepositoryInMemory) Create(n domain.Notification) (domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	r.items = append(r.items, n)
	return n, nil
}

// ListByUser возвращает уведомления пользователя, новые первыми.
func (r *notificationRepositoryInMemory) ListByUser(userID string, limit int) ([]domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Notification, 0)
	for _, n := range r.items {
		if n.UserID == userID {
			result = append(result, n)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// ExistsForOrder сообщает, создавалось ли уведомление данного типа по заказу.
func (r *notificationRepositoryInMemory) ExistsForOrder(orderID, notificationType string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, n := range r.items {
		if n.OrderID == orderID && n.Type == notificationType {
			return true, nil
		}
	}
	return false, nil
}

var _ domain.NotificationRepository = (*notificationRepositoryInMemory)(nil)
