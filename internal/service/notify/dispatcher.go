// Package notify рассылает уведомления сторонам сделки. Доставка асинхронна
// и не влияет на исход оркестрации: упавшее письмо логируется, но никогда не
// откатывает переход заказа.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mzansimarket/fulfillment/internal/domain"
)

const sendTimeout = 10 * time.Second

// Dispatcher создаёт in-app уведомление и асинхронно отправляет письмо.
type Dispatcher struct {
	sink   domain.NotificationSink
	repo   domain.NotificationRepository
	logger *logrus.Entry

	wg sync.WaitGroup
}

// NewDispatcher создаёт рассыльщика уведомлений.
func NewDispatcher(sink domain.NotificationSink, repo domain.NotificationRepository, logger *logrus.Entry) *Dispatcher {
	return &Dispatcher{
		sink:   sink,
		repo:   repo,
		logger: logger.WithField("component", "notify"),
	}
}

// Notify сохраняет in-app уведомление и запускает отправку письма в фоне.
// Ошибка возвращается только при сбое записи in-app уведомления.
func (d *Dispatcher) Notify(n domain.Notification) error {
	created, err := d.repo.Create(n)
	if err != nil {
		return err
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		if err := d.sink.Send(ctx, created.UserID, created.Title, created.Message); err != nil {
			d.logger.WithError(err).WithFields(logrus.Fields{
				"user_id":  created.UserID,
				"order_id": created.OrderID,
				"type":     created.Type,
			}).Warn("notification delivery failed")
		}
	}()

	return nil
}

// Flush дожидается завершения всех фоновых отправок (для тестов и shutdown).
func (d *Dispatcher) Flush() {
	d.wg.Wait()
}
