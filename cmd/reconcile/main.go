// Команда reconcile повторно проводит возвраты по заказам, отклонённым без
// успешной транзакции возврата. Запускается вручную или по расписанию.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mzansimarket/fulfillment/internal/domain"
	"github.com/mzansimarket/fulfillment/internal/service/addressvault"
	"github.com/mzansimarket/fulfillment/internal/service/courier"
	"github.com/mzansimarket/fulfillment/internal/service/fulfillment"
	"github.com/mzansimarket/fulfillment/internal/service/notify"
	"github.com/mzansimarket/fulfillment/internal/service/payment"
	"github.com/mzansimarket/fulfillment/internal/storage/postgres"
)

const runTimeout = 5 * time.Minute

// silentSink глушит уведомления: повторный возврат не должен спамить стороны,
// события и так попадут в таймлайн и outbox.
type silentSink struct{}

func (silentSink) Send(context.Context, string, string, string) error { return nil }

func main() {
	var (
		dsn        string
		gatewayURL string
		gatewayKey string
		olderThan  time.Duration
		limit      int
	)

	flag.StringVar(&dsn, "dsn", "", "PostgreSQL DSN (fallback: MKT_POSTGRES_DSN)")
	flag.StringVar(&gatewayURL, "gateway-url", "", "payment gateway base URL (fallback: MKT_PAYMENT_GATEWAY_URL)")
	flag.StringVar(&gatewayKey, "gateway-key", "", "payment gateway API key (fallback: MKT_PAYMENT_GATEWAY_API_KEY)")
	flag.DurationVar(&olderThan, "older-than", time.Hour, "only reconcile orders declined earlier than now minus this duration")
	flag.IntVar(&limit, "limit", 100, "maximum number of orders to reconcile per run")
	flag.Parse()

	if strings.TrimSpace(dsn) == "" {
		dsn = strings.TrimSpace(os.Getenv("MKT_POSTGRES_DSN"))
	}
	if dsn == "" {
		fail("MKT_POSTGRES_DSN (or -dsn) is required")
	}
	if strings.TrimSpace(gatewayURL) == "" {
		gatewayURL = strings.TrimSpace(os.Getenv("MKT_PAYMENT_GATEWAY_URL"))
	}
	if gatewayURL == "" {
		fail("MKT_PAYMENT_GATEWAY_URL (or -gateway-url) is required")
	}
	if strings.TrimSpace(gatewayKey) == "" {
		gatewayKey = strings.TrimSpace(os.Getenv("MKT_PAYMENT_GATEWAY_API_KEY"))
	}

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	logger := log.WithField("component", "reconcile")

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer store.Close()

	orders := postgres.NewOrderRepository(store)
	refunds := postgres.NewRefundRepository(store)
	timeline := postgres.NewTimelineRepository(store)
	outbox := postgres.NewOutboxRepository(store)
	notifications := postgres.NewNotificationRepository(store)

	dispatcher := notify.NewDispatcher(silentSink{}, notifications, logger)
	defer dispatcher.Flush()

	// Возвраты не трогают адреса и доставку, поэтому vault и провайдеры
	// здесь заглушки.
	orch := fulfillment.NewOrchestrator(
		orders,
		refunds,
		timeline,
		outbox,
		addressvault.NewMockVault(),
		[]domain.CourierProvider{courier.NewMockProvider("courierguy")},
		payment.NewGatewayClient(gatewayURL, gatewayKey),
		dispatcher,
		logger,
	)

	processed, err := orch.ReconcileRefunds(ctx, time.Now().Add(-olderThan), limit)
	if err != nil {
		fail("reconcile refunds: %v", err)
	}
	fmt.Printf("reconcile ok: refunds issued for %d order(s)\n", processed)
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
