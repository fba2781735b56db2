package fulfillment

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mzansimarket/fulfillment/internal/domain"
	"github.com/mzansimarket/fulfillment/internal/messaging/kafka"
)

const (
	defaultSweepInterval = time.Minute
	defaultCommitTTL     = 24 * time.Hour
	defaultReminderAfter = 12 * time.Hour
	defaultStaleAfter    = time.Hour
	defaultSweepBatch    = 100
)

// Sweeper — фоновый обработчик жизненного цикла: истекает просроченные
// подтверждения, шлёт напоминания продавцам и помечает зависшие оплаты.
// Истечение использует тот же путь отказа, что и продавец, поэтому возврат
// средств и события идентичны ручному отказу.
type Sweeper struct {
	orch          *Orchestrator
	orders        domain.OrderRepository
	notifications domain.NotificationRepository
	logger        *log.Entry

	interval      time.Duration
	commitTTL     time.Duration
	reminderAfter time.Duration
	staleAfter    time.Duration
	batchSize     int

	now func() time.Time
}

// SweeperOption настраивает Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepInterval задаёт период между проходами свипера.
func WithSweepInterval(interval time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithCommitTTL задаёт окно подтверждения продавца.
func WithCommitTTL(ttl time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if ttl > 0 {
			s.commitTTL = ttl
		}
	}
}

// WithReminderAfter задаёт возраст заказа, после которого продавцу уходит
// напоминание о неподтверждённой сделке.
func WithReminderAfter(after time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if after > 0 {
			s.reminderAfter = after
		}
	}
}

// WithStaleAfter задаёт возраст зависшей неоплаченной корзины.
func WithStaleAfter(after time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if after > 0 {
			s.staleAfter = after
		}
	}
}

// WithSweepBatch ограничивает размер пачки заказов за один проход.
func WithSweepBatch(size int) SweeperOption {
	return func(s *Sweeper) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithSweeperClock подменяет источник времени (для тестов).
func WithSweeperClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSweeper создаёт свипер жизненного цикла заказов.
func NewSweeper(orch *Orchestrator, orders domain.OrderRepository, notifications domain.NotificationRepository, logger *log.Entry, opts ...SweeperOption) *Sweeper {
	if logger == nil {
		logger = log.New().WithField("component", "sweeper")
	}

	s := &Sweeper{
		orch:          orch,
		orders:        orders,
		notifications: notifications,
		logger:        logger,
		interval:      defaultSweepInterval,
		commitTTL:     defaultCommitTTL,
		reminderAfter: defaultReminderAfter,
		staleAfter:    defaultStaleAfter,
		batchSize:     defaultSweepBatch,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run запускает периодические проходы до отмены контекста.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.WithFields(log.Fields{
		"interval":   s.interval,
		"commit_ttl": s.commitTTL,
	}).Info("lifecycle sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("lifecycle sweeper stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	if _, err := s.SweepExpiredCommits(ctx); err != nil {
		s.logger.WithError(err).Error("expired commit sweep failed")
	}
	if _, err := s.SendCommitReminders(ctx); err != nil {
		s.logger.WithError(err).Error("commit reminder sweep failed")
	}
	if _, err := s.CheckStalePending(ctx); err != nil {
		s.logger.WithError(err).Error("stale pending sweep failed")
	}
}

// SweepExpiredCommits находит заказы, просидевшие в pending_commit дольше
// окна подтверждения, помечает их expired и проводит через общий путь
// отказа. Проигранная условная запись означает, что продавец успел
// подтвердить или отклонить сделку сам — такой заказ просто пропускается.
func (s *Sweeper) SweepExpiredCommits(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.commitTTL)

	stale, err := s.orders.ListStale(domain.OrderStatusPendingCommit, cutoff, s.batchSize)
	if err != nil {
		return 0, err
	}

	var expired int
	for _, order := range stale {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		if s.expireOne(ctx, order) {
			expired++
		}
	}

	// Заказы, застрявшие в expired после сбоя между двумя записями,
	// добираются здесь же через тот же путь отказа.
	orphans, err := s.orders.ListStale(domain.OrderStatusExpired, s.now(), s.batchSize)
	if err != nil {
		return expired, err
	}
	for _, order := range orphans {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		if _, err := s.orch.declineOrder(ctx, order, autoDeclineReason, "system", domain.OrderStatusExpired); err != nil {
			if !domain.IsStatusConflict(err) {
				s.logger.WithError(err).WithField("order_id", order.ID).Error("auto-decline of expired order failed")
			}
			continue
		}
		expired++
	}

	if expired > 0 {
		s.logger.WithField("count", expired).Info("expired commit windows swept")
	}
	return expired, nil
}

func (s *Sweeper) expireOne(ctx context.Context, order domain.Order) bool {
	updated := order
	updated.Status = domain.OrderStatusExpired
	updated.UpdatedAt = s.now()

	if err := s.orders.Transition(updated, domain.OrderStatusPendingCommit); err != nil {
		if !domain.IsStatusConflict(err) {
			s.logger.WithError(err).WithField("order_id", order.ID).Error("expire transition failed")
		}
		return false
	}
	updated.Version++

	if s.orch.metrics != nil {
		s.orch.metrics.RecordAutoExpired()
	}
	s.orch.emitEvent(&updated, string(kafka.EventTypeOrderExpired), map[string]interface{}{
		"commit_ttl": s.commitTTL.String(),
	})
	s.orch.publishEvent(kafka.EventTypeOrderExpired, &updated, nil)

	if _, err := s.orch.declineOrder(ctx, updated, autoDeclineReason, "system", domain.OrderStatusExpired); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Error("auto-decline of expired order failed")
		return false
	}
	return true
}

// SendCommitReminders шлёт продавцу одно напоминание на заказ, когда половина
// окна подтверждения прошла без решения. Повторы подавляются по наличию
// уведомления этого типа у заказа.
func (s *Sweeper) SendCommitReminders(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.reminderAfter)

	stale, err := s.orders.ListStale(domain.OrderStatusPendingCommit, cutoff, s.batchSize)
	if err != nil {
		return 0, err
	}

	var sent int
	for _, order := range stale {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}

		exists, err := s.notifications.ExistsForOrder(order.ID, domain.NotificationTypeCommitReminder)
		if err != nil {
			s.logger.WithError(err).WithField("order_id", order.ID).Error("reminder suppression check failed")
			continue
		}
		if exists {
			continue
		}

		s.orch.notifyParty(domain.Notification{
			UserID:         order.SellerID,
			Type:           domain.NotificationTypeCommitReminder,
			Title:          "Order awaiting your confirmation",
			Message:        "A paid order is waiting for you to commit or decline. It will be auto-declined when the window closes.",
			OrderID:        order.ID,
			ActionRequired: true,
		})
		s.orch.emitEvent(&order, string(kafka.EventTypeReminderSent), map[string]interface{}{
			"seller_id": order.SellerID,
		})
		if s.orch.metrics != nil {
			s.orch.metrics.RecordReminderSent()
		}
		sent++
	}

	if sent > 0 {
		s.logger.WithField("count", sent).Info("commit reminders sent")
	}
	return sent, nil
}

// CheckStalePending находит заказы, зависшие в pending_payment. Это
// наблюдательный проход: заказ не трогаем, только уведомляем покупателя
// и оставляем след в логе для операторов.
func (s *Sweeper) CheckStalePending(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.staleAfter)

	stale, err := s.orders.ListStale(domain.OrderStatusPendingPayment, cutoff, s.batchSize)
	if err != nil {
		return 0, err
	}

	var flagged int
	for _, order := range stale {
		if ctx.Err() != nil {
			return flagged, ctx.Err()
		}

		exists, err := s.notifications.ExistsForOrder(order.ID, domain.NotificationTypeStalePending)
		if err != nil {
			s.logger.WithError(err).WithField("order_id", order.ID).Error("stale pending suppression check failed")
			continue
		}
		if exists {
			continue
		}

		s.logger.WithFields(log.Fields{
			"order_id":   order.ID,
			"created_at": order.CreatedAt,
		}).Warn("order stuck in pending_payment")

		s.orch.notifyParty(domain.Notification{
			UserID:  order.BuyerID,
			Type:    domain.NotificationTypeStalePending,
			Title:   "Payment not completed",
			Message: "Your order is waiting for payment confirmation. Complete the payment to proceed.",
			OrderID: order.ID,
		})
		flagged++
	}

	return flagged, nil
}
