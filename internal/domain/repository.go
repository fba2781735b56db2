package domain

import "time"

// OrderRepository описывает требования к хранилищу заказов — единственному
// источнику истины о состоянии сделки.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ошибку, если запись с таким ID уже существует.
	Create(order Order) error
	// Get возвращает полный агрегат по идентификатору или ErrOrderNotFound.
	Get(id string) (Order, error)
	// ListBySeller возвращает заказы продавца с опциональным ограничением на количество.
	ListBySeller(sellerID string, limit int) ([]Order, error)
	// ListStale возвращает заказы в статусе status, не обновлявшиеся после before.
	ListStale(status OrderStatus, before time.Time, limit int) ([]Order, error)
	// ListDeclinedWithoutRefund возвращает отклонённые заказы без успешного
	// возврата — вход reconciliation-свипа.
	ListDeclinedWithoutRefund(before time.Time, limit int) ([]Order, error)
	// Transition применяет обновление, только если сохранённый статус входит
	// в expected и версия совпадает; иначе ErrStatusConflict. Это единственный
	// путь записи переходов: две конкурирующие попытки решаются ровно одной
	// успешной условной записью.
	Transition(order Order, expected ...OrderStatus) error
}

// RefundRepository хранит append-only журнал попыток возврата.
type RefundRepository interface {
	// Append добавляет запись аудита; записи никогда не изменяются и не удаляются.
	Append(tx RefundTransaction) (RefundTransaction, error)
	// ListByOrder возвращает попытки возврата по заказу в хронологическом порядке.
	ListByOrder(orderID string) ([]RefundTransaction, error)
	// HasSuccessful сообщает, существует ли успешный возврат по платёжному референсу.
	HasSuccessful(paymentReference string) (bool, error)
}

// NotificationRepository хранит in-app уведомления.
type NotificationRepository interface {
	Create(n Notification) (Notification, error)
	ListByUser(userID string, limit int) ([]Notification, error)
	// ExistsForOrder используется свиперами для подавления повторных напоминаний.
	ExistsForOrder(orderID, notificationType string) (bool, error)
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}
