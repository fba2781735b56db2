package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/mzansimarket/fulfillment/internal/domain"
	"github.com/mzansimarket/fulfillment/internal/health"
	"github.com/mzansimarket/fulfillment/internal/messaging/kafka"
	"github.com/mzansimarket/fulfillment/internal/service/addressvault"
	"github.com/mzansimarket/fulfillment/internal/service/courier"
	"github.com/mzansimarket/fulfillment/internal/service/courier/courierguy"
	"github.com/mzansimarket/fulfillment/internal/service/courier/fastway"
	"github.com/mzansimarket/fulfillment/internal/service/courier/lockers"
	"github.com/mzansimarket/fulfillment/internal/service/fulfillment"
	"github.com/mzansimarket/fulfillment/internal/service/notify"
	"github.com/mzansimarket/fulfillment/internal/service/payment"
	"github.com/mzansimarket/fulfillment/internal/storage/memory"
	"github.com/mzansimarket/fulfillment/internal/storage/postgres"
)

// Dependencies содержит собранный граф зависимостей сервиса.
type Dependencies struct {
	Orders        domain.OrderRepository
	Refunds       domain.RefundRepository
	Timeline      domain.TimelineRepository
	Outbox        domain.OutboxRepository
	Notifications domain.NotificationRepository
	Idempotency   domain.IdempotencyRepository

	Vault     domain.AddressVault
	Gateway   domain.PaymentGateway
	Providers []domain.CourierProvider

	Dispatcher   *notify.Dispatcher
	Orchestrator *fulfillment.Orchestrator
	Sweeper      *fulfillment.Sweeper
	Lockers      *lockers.Cache

	KafkaProducer   *kafka.Producer
	OutboxPublisher domain.OutboxPublisher
	DLQPublisher    domain.OutboxPublisher

	Store  *postgres.Store
	Redis  *redis.Client
	Health *health.Handler

	Logger *log.Entry

	lockerSources []lockers.Source
}

// logSink пишет уведомление в лог вместо реальной почтовой системы.
// Используется, пока внешний канал доставки не подключён.
type logSink struct {
	logger *log.Entry
}

func (s *logSink) Send(_ context.Context, recipientID, subject, _ string) error {
	s.logger.WithFields(log.Fields{
		"recipient": recipientID,
		"subject":   subject,
	}).Info("notification delivered to log sink")
	return nil
}

// NewDependencies собирает зависимости по конфигурации: настроенные внешние
// системы подключаются по-настоящему, ненастроенные заменяются in-memory
// и dev-заглушками.
func NewDependencies(ctx context.Context, cfg Config, version string, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{
		Logger: logger,
		Health: health.NewHandler(version),
	}

	if err := deps.initStorage(ctx, cfg, logger); err != nil {
		return nil, err
	}
	deps.initExternalClients(cfg, logger)
	deps.initKafka(cfg, logger)
	deps.initRedis(cfg, logger)

	deps.Dispatcher = notify.NewDispatcher(&logSink{logger: logger.WithField("component", "notify-sink")}, deps.Notifications, logger)

	orchOpts := []fulfillment.Option{}
	if deps.KafkaProducer != nil {
		orchOpts = append(orchOpts, fulfillment.WithKafka(deps.KafkaProducer))
	}
	deps.Orchestrator = fulfillment.NewOrchestrator(
		deps.Orders,
		deps.Refunds,
		deps.Timeline,
		deps.Outbox,
		deps.Vault,
		deps.Providers,
		deps.Gateway,
		deps.Dispatcher,
		logger.WithField("component", "fulfillment"),
		orchOpts...,
	)

	deps.Sweeper = fulfillment.NewSweeper(
		deps.Orchestrator,
		deps.Orders,
		deps.Notifications,
		logger.WithField("component", "sweeper"),
		fulfillment.WithSweepInterval(cfg.SweepInterval),
		fulfillment.WithCommitTTL(cfg.CommitTTL),
		fulfillment.WithReminderAfter(cfg.ReminderAfter),
	)

	deps.Health.RegisterChecker("outbox", health.NewOutboxBacklogChecker(deps.Outbox, 5*time.Minute))

	return deps, nil
}

func (d *Dependencies) initStorage(ctx context.Context, cfg Config, logger *log.Entry) error {
	if cfg.PostgresDSN == "" {
		logger.Warn("MKT_POSTGRES_DSN is not set, using in-memory storage")
		d.Orders = memory.NewOrderRepository()
		d.Refunds = memory.NewRefundRepository()
		d.Timeline = memory.NewTimelineRepository()
		d.Outbox = memory.NewOutboxRepository()
		d.Notifications = memory.NewNotificationRepository()
		d.Idempotency = memory.NewIdempotencyRepository()
		return nil
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	d.Store = store
	d.Orders = postgres.NewOrderRepository(store)
	d.Refunds = postgres.NewRefundRepository(store)
	d.Timeline = postgres.NewTimelineRepository(store)
	d.Outbox = postgres.NewOutboxRepository(store)
	d.Notifications = postgres.NewNotificationRepository(store)
	d.Idempotency = postgres.NewIdempotencyRepository(store)

	d.Health.RegisterChecker("postgres", health.NewSimpleChecker("postgres", func() error {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return store.Ping(pingCtx)
	}))

	logger.Info("postgres storage initialized")
	return nil
}

func (d *Dependencies) initExternalClients(cfg Config, logger *log.Entry) {
	if cfg.AddressVaultURL != "" {
		d.Vault = addressvault.New(cfg.AddressVaultURL, cfg.AddressVaultToken)
	} else {
		logger.Warn("address vault is not configured, using dev mock")
		d.Vault = addressvault.NewMockVault()
	}

	if cfg.PaymentGatewayURL != "" {
		d.Gateway = payment.NewGatewayClient(cfg.PaymentGatewayURL, cfg.PaymentGatewayAPIKey)
	} else {
		logger.Warn("payment gateway is not configured, using dev mock")
		d.Gateway = payment.NewMockGateway()
	}

	var lockerSources []lockers.Source
	if cfg.CourierGuyURL != "" {
		client := courierguy.New(cfg.CourierGuyURL, cfg.CourierGuyAPIKey)
		d.Providers = append(d.Providers, client)
		lockerSources = append(lockerSources, client)
	}
	if cfg.FastwayURL != "" {
		client := fastway.New(cfg.FastwayURL, cfg.FastwayAPIKey)
		d.Providers = append(d.Providers, client)
		lockerSources = append(lockerSources, client)
	}
	if len(d.Providers) == 0 {
		logger.Warn("no courier providers configured, using dev mock")
		d.Providers = append(d.Providers, courier.NewMockProvider("courierguy"))
	}

	d.lockerSources = lockerSources
}

func (d *Dependencies) initKafka(cfg Config, logger *log.Entry) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("MKT_KAFKA_BROKERS is not set, outbox delivery is disabled")
		return
	}

	producer, err := kafka.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return
	}

	d.KafkaProducer = producer
	d.OutboxPublisher = kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents)
	d.DLQPublisher = kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)
	logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")
}

func (d *Dependencies) initRedis(cfg Config, logger *log.Entry) {
	if cfg.RedisAddr == "" {
		logger.Warn("MKT_REDIS_ADDR is not set, locker directory is disabled")
		return
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	d.Redis = client
	d.Lockers = lockers.New(client, logger.WithField("component", "lockers"), d.lockerSources)

	d.Health.RegisterChecker("redis", health.NewSimpleChecker("redis", func() error {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return client.Ping(pingCtx).Err()
	}))

	logger.Info("redis locker cache initialized")
}

// Close освобождает внешние ресурсы в обратном порядке инициализации.
func (d *Dependencies) Close() {
	if d.Dispatcher != nil {
		d.Dispatcher.Flush()
	}
	if d.KafkaProducer != nil {
		if err := d.KafkaProducer.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close kafka producer")
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close redis client")
		}
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}
