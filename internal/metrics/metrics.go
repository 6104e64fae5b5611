// Package metrics - метрики Prometheus для репозитория задач и HTTP.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "todoapp"

// Repository - метрики кэша и хранилища. Методы безопасны для nil.
type Repository struct {
	cacheHits     *prometheus.CounterVec
	cacheMisses   *prometheus.CounterVec
	storeErrors   *prometheus.CounterVec
	storeDuration *prometheus.HistogramVec
}

func NewRepository(reg prometheus.Registerer) *Repository {
	m := &Repository{
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Number of repository reads served from the cache",
		}, []string{"op"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Number of repository reads that went to the store",
		}, []string{"op"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Number of failed store operations",
		}, []string{"op"}),
		storeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Duration of store operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"op"}),
	}
	reg.MustRegister(m.cacheHits, m.cacheMisses, m.storeErrors, m.storeDuration)
	return m
}

func (m *Repository) CacheHit(op string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(op).Inc()
}

func (m *Repository) CacheMiss(op string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(op).Inc()
}

// ObserveStore фиксирует длительность операции хранилища и ошибку, если она есть
func (m *Repository) ObserveStore(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.storeDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		m.storeErrors.WithLabelValues(op).Inc()
	}
}

// Tasks - текущая статистика задач, обновляется фоновым воркером
type Tasks struct {
	total            prometheus.Gauge
	activePercent    prometheus.Gauge
	completedPercent prometheus.Gauge
}

func NewTasks(reg prometheus.Registerer) *Tasks {
	m := &Tasks{
		total: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Number of tasks known to the repository",
		}),
		activePercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_active_percent",
			Help:      "Percentage of active tasks",
		}),
		completedPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_completed_percent",
			Help:      "Percentage of completed tasks",
		}),
	}
	reg.MustRegister(m.total, m.activePercent, m.completedPercent)
	return m
}

func (m *Tasks) Set(total int, activePercent, completedPercent float64) {
	if m == nil {
		return
	}
	m.total.Set(float64(total))
	m.activePercent.Set(activePercent)
	m.completedPercent.Set(completedPercent)
}

// HTTP - метрики входящих запросов
type HTTP struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	InFlightRequests prometheus.Gauge
}

func NewHTTP(reg prometheus.Registerer) *HTTP {
	m := &HTTP{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.3, 1, 3},
		}, []string{"method", "route"}),
		InFlightRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "Current number of in-flight HTTP requests",
		}),
	}
	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.InFlightRequests)
	return m
}
