package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики жизненного цикла заказов.
type OrderMetrics struct {
	// Счётчики операций
	ordersCreated     prometheus.Counter
	orderCreateFailed prometheus.Counter
	paymentSessions   prometheus.Counter
	enrichFailed      prometheus.Counter
	statusChanges     *prometheus.CounterVec

	// Гистограммы времени выполнения
	createDuration      prometheus.Histogram
	catalogCallDuration prometheus.Histogram

	// Gauge для заказов в обработке
	ordersInFlight prometheus.Gauge
}

// NewOrderMetrics создаёт новый экземпляр метрик заказов.
func NewOrderMetrics() *OrderMetrics {
	return newOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of orders created",
		}),
		orderCreateFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_create_failed_total",
			Help: "Total number of failed order creation attempts",
		}),
		paymentSessions: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_payment_sessions_total",
			Help: "Total number of payment sessions created",
		}),
		enrichFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_enrichment_failures_total",
			Help: "Total number of failed catalog enrichment attempts",
		}),
		statusChanges: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orders_status_changes_total",
			Help: "Total number of order status changes by target status",
		}, []string{"to_status"}),
		createDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "orders_create_duration_seconds",
			Help:    "Duration of order creation in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		catalogCallDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "orders_catalog_call_duration_seconds",
			Help:    "Duration of product catalog validation calls in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		ordersInFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "orders_in_flight",
			Help: "Number of order creation requests currently being processed",
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

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
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

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *OrderMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
}

// RecordOrderCreateFailed увеличивает счётчик неудачных созданий заказа.
func (m *OrderMetrics) RecordOrderCreateFailed() {
	m.orderCreateFailed.Inc()
}

// RecordPaymentSession увеличивает счётчик созданных платёжных сессий.
func (m *OrderMetrics) RecordPaymentSession() {
	m.paymentSessions.Inc()
}

// RecordEnrichmentFailure увеличивает счётчик неудачных обогащений из каталога.
func (m *OrderMetrics) RecordEnrichmentFailure() {
	m.enrichFailed.Inc()
}

// RecordStatusChange увеличивает счётчик смен статуса по целевому статусу.
func (m *OrderMetrics) RecordStatusChange(toStatus string) {
	m.statusChanges.WithLabelValues(toStatus).Inc()
}

// RecordCreateDuration записывает время создания заказа.
func (m *OrderMetrics) RecordCreateDuration(duration time.Duration) {
	m.createDuration.Observe(duration.Seconds())
}

// RecordCatalogCallDuration записывает время обращения к каталогу.
func (m *OrderMetrics) RecordCatalogCallDuration(duration time.Duration) {
	m.catalogCallDuration.Observe(duration.Seconds())
}

// RecordOrderInFlightStarted увеличивает количество заказов в обработке.
func (m *OrderMetrics) RecordOrderInFlightStarted() {
	m.ordersInFlight.Inc()
}

// RecordOrderInFlightFinished уменьшает количество заказов в обработке.
func (m *OrderMetrics) RecordOrderInFlightFinished() {
	m.ordersInFlight.Dec()
}
