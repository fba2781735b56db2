package domain

import "time"

// Типы уведомлений, создаваемых оркестратором и свиперами.
const (
	NotificationTypeOrderCommitted = "order_committed"
	NotificationTypeOrderDeclined  = "order_declined"
	NotificationTypeRefundIssued   = "refund_issued"
	NotificationTypeRefundPending  = "refund_pending"
	NotificationTypeCommitReminder = "commit_reminder"
	NotificationTypeStalePending   = "stale_pending"
)

// Notification — in-app уведомление пользователю. Создаётся как побочный
// эффект оркестрации; живёт своим циклом и потребляется отдельной подсистемой.
type Notification struct {
	ID             string
	UserID         string
	Type           string
	Title          string
	Message        string
	OrderID        string
	ActionRequired bool
	CreatedAt      time.Time
}

// TimelineEvent описывает событие в жизненном цикле заказа (аудит переходов).
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}
