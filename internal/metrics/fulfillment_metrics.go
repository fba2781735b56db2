package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FulfillmentMetrics содержит метрики оркестрации заказов.
type FulfillmentMetrics struct {
	// Счётчики операций
	commitsStarted   prometheus.Counter
	commitsSucceeded prometheus.Counter
	commitsFailed    prometheus.Counter
	declines         prometheus.Counter
	autoExpired      prometheus.Counter

	// Гонки условных записей и их последствия
	statusConflicts  prometheus.Counter
	bookingsOrphaned prometheus.Counter

	// Возвраты
	refundsIssued prometheus.Counter
	refundsFailed prometheus.Counter

	// Гистограммы времени выполнения
	commitDuration prometheus.Histogram
	stepDuration   *prometheus.HistogramVec

	// События побочных подсистем
	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter
	remindersSent  prometheus.Counter

	// Gauge для активных операций
	activeCommits prometheus.Gauge
}

// NewFulfillmentMetrics создаёт новый экземпляр метрик оркестрации.
func NewFulfillmentMetrics() *FulfillmentMetrics {
	return newFulfillmentMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newFulfillmentMetricsWithRegisterer(registerer prometheus.Registerer) *FulfillmentMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &FulfillmentMetrics{
		commitsStarted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_commits_started_total",
			Help: "Total number of seller commit attempts started",
		}),
		commitsSucceeded: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_commits_succeeded_total",
			Help: "Total number of commits that booked a shipment and persisted",
		}),
		commitsFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_commits_failed_total",
			Help: "Total number of commit attempts that failed",
		}),
		declines: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_declines_total",
			Help: "Total number of declined orders (seller and automatic)",
		}),
		autoExpired: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_orders_auto_expired_total",
			Help: "Total number of orders expired by the sweeper",
		}),
		statusConflicts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_status_conflicts_total",
			Help: "Total number of conditional writes lost to a concurrent transition",
		}),
		bookingsOrphaned: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_bookings_orphaned_total",
			Help: "Total number of booked shipments whose commit lost the status race",
		}),
		refundsIssued: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_refunds_issued_total",
			Help: "Total number of successful refunds",
		}),
		refundsFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_refunds_failed_total",
			Help: "Total number of refund attempts rejected by the payment gateway",
		}),
		commitDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "marketplace_commit_duration_seconds",
			Help:    "Duration of the commit pipeline in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		stepDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "marketplace_commit_step_duration_seconds",
			Help:    "Duration of individual commit pipeline steps in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"step"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
		remindersSent: registerCounter(registerer, prometheus.CounterOpts{
			Name: "marketplace_reminders_sent_total",
			Help: "Total number of commit reminders sent by the sweeper",
		}),
		activeCommits: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "marketplace_active_commits",
			Help: "Number of commit pipelines currently in flight",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordCommitStarted увеличивает счётчик начатых commit-операций.
func (m *FulfillmentMetrics) RecordCommitStarted() {
	m.commitsStarted.Inc()
	m.activeCommits.Inc()
}

// RecordCommitFinished уменьшает количество активных commit-операций.
func (m *FulfillmentMetrics) RecordCommitFinished() {
	m.activeCommits.Dec()
}

// RecordCommitSucceeded увеличивает счётчик успешных commit-операций.
func (m *FulfillmentMetrics) RecordCommitSucceeded() {
	m.commitsSucceeded.Inc()
}

// RecordCommitFailed увеличивает счётчик неудачных commit-операций.
func (m *FulfillmentMetrics) RecordCommitFailed() {
	m.commitsFailed.Inc()
}

// RecordDecline увеличивает счётчик отказов.
func (m *FulfillmentMetrics) RecordDecline() {
	m.declines.Inc()
}

// RecordAutoExpired увеличивает счётчик авто-истёкших заказов.
func (m *FulfillmentMetrics) RecordAutoExpired() {
	m.autoExpired.Inc()
}

// RecordStatusConflict увеличивает счётчик проигранных условных записей.
func (m *FulfillmentMetrics) RecordStatusConflict() {
	m.statusConflicts.Inc()
}

// RecordBookingOrphaned увеличивает счётчик осиротевших бронирований.
func (m *FulfillmentMetrics) RecordBookingOrphaned() {
	m.bookingsOrphaned.Inc()
}

// RecordRefundIssued увеличивает счётчик успешных возвратов.
func (m *FulfillmentMetrics) RecordRefundIssued() {
	m.refundsIssued.Inc()
}

// RecordRefundFailed увеличивает счётчик неудачных возвратов.
func (m *FulfillmentMetrics) RecordRefundFailed() {
	m.refundsFailed.Inc()
}

// RecordCommitDuration записывает время выполнения commit-конвейера.
func (m *FulfillmentMetrics) RecordCommitDuration(duration time.Duration) {
	m.commitDuration.Observe(duration.Seconds())
}

// RecordStepDuration записывает время выполнения шага конвейера.
func (m *FulfillmentMetrics) RecordStepDuration(step string, duration time.Duration) {
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *FulfillmentMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *FulfillmentMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}

// RecordReminderSent увеличивает счётчик отправленных напоминаний.
func (m *FulfillmentMetrics) RecordReminderSent() {
	m.remindersSent.Inc()
}
