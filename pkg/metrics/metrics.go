// Package metrics - Prometheus метрики операций коннектора.
//
// Метрики регистрируются в переданном Registerer, глобальный реестр
// не используется. Nil *Collector допустим: все методы становятся no-op.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы операции
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Collector - набор метрик коннекторов
type Collector struct {
	// operationsTotal counts connector operations by dialect, operation and outcome.
	operationsTotal *prometheus.CounterVec

	// operationDuration observes wall time of each operation including connection setup.
	operationDuration *prometheus.HistogramVec

	// rowsReturned counts rows returned by successful queries.
	rowsReturned *prometheus.CounterVec
}

// NewCollector регистрирует метрики в reg
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tablegrab_operations_total",
				Help: "Total number of connector operations",
			},
			[]string{"dialect", "op", "outcome"},
		),
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tablegrab_operation_duration_seconds",
				Help:    "Duration of connector operations including connection setup",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"dialect", "op"},
		),
		rowsReturned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tablegrab_rows_returned_total",
				Help: "Total number of rows returned by queries",
			},
			[]string{"dialect"},
		),
	}
}

// Observe записывает исход и длительность одной операции
func (c *Collector) Observe(dialect, op string, started time.Time, err error) {
	if c == nil {
		return
	}

	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}

	c.operationsTotal.WithLabelValues(dialect, op, outcome).Inc()
	c.operationDuration.WithLabelValues(dialect, op).Observe(time.Since(started).Seconds())
}

// AddRows увеличивает счетчик возвращенных строк
func (c *Collector) AddRows(dialect string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.rowsReturned.WithLabelValues(dialect).Add(float64(n))
}
