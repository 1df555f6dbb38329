// Package rafflemetrics records raffle operations in Prometheus.
package rafflemetrics

import (
	"context"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

// RaffleMetrics is implemented by the Prometheus recorder and by Noop.
type RaffleMetrics interface {
	RecordOperationAttempt(ctx context.Context, operation, service string)
	RecordOperationSuccess(ctx context.Context, operation, service string)
	RecordOperationFailure(ctx context.Context, operation, service string)
	RecordOperationDuration(ctx context.Context, operation, service string, duration time.Duration)

	RecordHandlerAttempt(ctx context.Context, handlerName string)
	RecordHandlerSuccess(ctx context.Context, handlerName string)
	RecordHandlerFailure(ctx context.Context, handlerName string)
	RecordHandlerDuration(ctx context.Context, handlerName string, duration time.Duration)

	SetPlayers(ctx context.Context, n int)
	SetState(ctx context.Context, state uint8)
	RecordPayout(ctx context.Context, amount *uint256.Int)
}

type prometheusMetrics struct {
	operations       *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec
	handlers         *prometheus.CounterVec
	handlerLatency   *prometheus.HistogramVec
	players          prometheus.Gauge
	state            prometheus.Gauge
	payouts          prometheus.Counter
	payoutAmount     prometheus.Counter
}

// NewPrometheus registers the raffle collectors on reg.
func NewPrometheus(reg prometheus.Registerer) RaffleMetrics {
	m := &prometheusMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "raffle",
			Name:      "operations_total",
			Help:      "Raffle service operations by outcome.",
		}, []string{"operation", "service", "outcome"}),
		operationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "raffle",
			Name:      "operation_duration_seconds",
			Help:      "Raffle service operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "service"}),
		handlers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "raffle",
			Name:      "handler_messages_total",
			Help:      "Messages processed by raffle handlers by outcome.",
		}, []string{"handler", "outcome"}),
		handlerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "raffle",
			Name:      "handler_duration_seconds",
			Help:      "Raffle handler latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler"}),
		players: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "raffle",
			Name:      "players",
			Help:      "Entries in the live round.",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "raffle",
			Name:      "state",
			Help:      "Numeric state of the live round (0 open, 1 calculating).",
		}),
		payouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "raffle",
			Name:      "payouts_total",
			Help:      "Completed draws.",
		}),
		payoutAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "raffle",
			Name:      "payout_amount_total",
			Help:      "Sum of paid out balances, approximated as float.",
		}),
	}

	reg.MustRegister(
		m.operations, m.operationLatency,
		m.handlers, m.handlerLatency,
		m.players, m.state, m.payouts, m.payoutAmount,
	)
	return m
}

func (m *prometheusMetrics) RecordOperationAttempt(_ context.Context, operation, service string) {
	m.operations.WithLabelValues(operation, service, "attempt").Inc()
}

func (m *prometheusMetrics) RecordOperationSuccess(_ context.Context, operation, service string) {
	m.operations.WithLabelValues(operation, service, "success").Inc()
}

func (m *prometheusMetrics) RecordOperationFailure(_ context.Context, operation, service string) {
	m.operations.WithLabelValues(operation, service, "failure").Inc()
}

func (m *prometheusMetrics) RecordOperationDuration(_ context.Context, operation, service string, d time.Duration) {
	m.operationLatency.WithLabelValues(operation, service).Observe(d.Seconds())
}

func (m *prometheusMetrics) RecordHandlerAttempt(_ context.Context, handler string) {
	m.handlers.WithLabelValues(handler, "attempt").Inc()
}

func (m *prometheusMetrics) RecordHandlerSuccess(_ context.Context, handler string) {
	m.handlers.WithLabelValues(handler, "success").Inc()
}

func (m *prometheusMetrics) RecordHandlerFailure(_ context.Context, handler string) {
	m.handlers.WithLabelValues(handler, "failure").Inc()
}

func (m *prometheusMetrics) RecordHandlerDuration(_ context.Context, handler string, d time.Duration) {
	m.handlerLatency.WithLabelValues(handler).Observe(d.Seconds())
}

func (m *prometheusMetrics) SetPlayers(_ context.Context, n int) { m.players.Set(float64(n)) }

func (m *prometheusMetrics) SetState(_ context.Context, state uint8) { m.state.Set(float64(state)) }

func (m *prometheusMetrics) RecordPayout(_ context.Context, amount *uint256.Int) {
	m.payouts.Inc()
	if amount != nil {
		m.payoutAmount.Add(amount.Float64())
	}
}
