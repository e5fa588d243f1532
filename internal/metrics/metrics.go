// Package metrics exposes prometheus collectors for carry evaluations and
// venue requests.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gregtusar/cashcarry/pkg/binance"
	"github.com/gregtusar/cashcarry/pkg/carry"
	"github.com/gregtusar/cashcarry/pkg/models"
)

type Metrics struct {
	registry         *prometheus.Registry
	evaluations      *prometheus.CounterVec
	evaluationErrors *prometheus.CounterVec
	arbitrageRate    *prometheus.GaugeVec
	requestDuration  *prometheus.HistogramVec
	requestErrors    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carry_evaluations_total",
			Help: "Completed carry evaluations by opportunity kind.",
		}, []string{"opportunity"}),
		evaluationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carry_evaluation_errors_total",
			Help: "Carry evaluations that failed, by error class.",
		}, []string{"reason"}),
		arbitrageRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "carry_arbitrage_rate",
			Help: "Last arbitrage rate per listed futures contract, zero when no opportunity.",
		}, []string{"future"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "carry_gateway_request_duration_seconds",
			Help:    "Latency of venue requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		requestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carry_gateway_request_errors_total",
			Help: "Failed venue requests.",
		}, []string{"endpoint"}),
	}

	m.registry.MustRegister(
		m.evaluations,
		m.evaluationErrors,
		m.arbitrageRate,
		m.requestDuration,
		m.requestErrors,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordEvaluation(future string, result models.ArbitrageResult) {
	m.evaluations.WithLabelValues(result.Opportunity.String()).Inc()
	m.arbitrageRate.WithLabelValues(future).Set(result.ArbitrageRate)
}

// RecordEvaluationError counts by error class. The future symbol may come from
// a caller and is not used as a label.
func (m *Metrics) RecordEvaluationError(_ string, err error) {
	m.evaluationErrors.WithLabelValues(reason(err)).Inc()
}

func reason(err error) string {
	switch {
	case errors.Is(err, carry.ErrNotFound):
		return "not_found"
	case errors.Is(err, carry.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, carry.ErrContractExpired):
		return "expired"
	case errors.Is(err, binance.ErrAuth):
		return "auth"
	case errors.Is(err, binance.ErrTimeout):
		return "timeout"
	case errors.Is(err, binance.ErrNetwork):
		return "network"
	case errors.Is(err, binance.ErrVenue):
		return "venue"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "other"
	}
}

// ObserveRequest matches binance.Observer.
func (m *Metrics) ObserveRequest(endpoint string, elapsed time.Duration, err error) {
	m.requestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
	if err != nil {
		m.requestErrors.WithLabelValues(endpoint).Inc()
	}
}
