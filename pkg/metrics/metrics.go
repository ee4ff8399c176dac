// Package metrics exposes Prometheus metrics for the pixel battle bank.
package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

// Namespace prefixes every metric name.
const Namespace = "pixelbattle"

// Metrics holds the bank's Prometheus collectors. It implements the bank's
// Observer interface.
type Metrics struct {
	registry *prometheus.Registry

	TransactionsTotal   *prometheus.CounterVec
	TransactionDuration prometheus.Histogram
	ComputeUnits        prometheus.Histogram
	InstructionsTotal   *prometheus.CounterVec
	AirdropsTotal       prometheus.Counter
	AirdropLamports     prometheus.Counter
	RPCRequestsTotal    *prometheus.CounterVec

	CurrentSlot   prometheus.Gauge
	AccountsCount prometheus.Gauge
	Uptime        prometheus.Gauge

	startTime time.Time
}

// NewMetrics creates a Metrics instance with its own registry. The Go
// runtime and process collectors are registered alongside.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
	}

	m.TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "bank",
			Name:      "transactions_total",
			Help:      "Total number of transactions processed",
		},
		[]string{"result"},
	)

	m.TransactionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "bank",
			Name:      "transaction_duration_seconds",
			Help:      "Time taken to verify and execute a transaction",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14), // 100us to ~1.6s
		},
	)

	m.ComputeUnits = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "bank",
			Name:      "transaction_compute_units",
			Help:      "Compute units consumed per transaction",
			Buckets:   prometheus.ExponentialBuckets(500, 2, 10),
		},
	)

	m.InstructionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "program",
			Name:      "instructions_total",
			Help:      "Total number of program invocations, including cross-program invocations",
		},
		[]string{"program", "result"},
	)

	m.AirdropsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "bank",
			Name:      "airdrops_total",
			Help:      "Total number of airdrops",
		},
	)

	m.AirdropLamports = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "bank",
			Name:      "airdrop_lamports_total",
			Help:      "Total lamports minted by airdrops",
		},
	)

	m.RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Total number of JSON-RPC requests",
		},
		[]string{"method", "result"},
	)

	m.CurrentSlot = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "bank",
			Name:      "slot",
			Help:      "Current bank slot",
		},
	)

	m.AccountsCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "accounts",
			Name:      "count",
			Help:      "Number of accounts in the database",
		},
	)

	m.Uptime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the metrics were created",
		},
	)

	m.registry.MustRegister(
		m.TransactionsTotal,
		m.TransactionDuration,
		m.ComputeUnits,
		m.InstructionsTotal,
		m.AirdropsTotal,
		m.AirdropLamports,
		m.RPCRequestsTotal,
		m.CurrentSlot,
		m.AccountsCount,
		m.Uptime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveTransaction records a processed transaction.
func (m *Metrics) ObserveTransaction(result *types.TransactionResult, duration time.Duration) {
	m.TransactionsTotal.WithLabelValues(transactionResult(result)).Inc()
	m.TransactionDuration.Observe(duration.Seconds())
	if result != nil {
		m.ComputeUnits.Observe(float64(result.ComputeUnits))
		if result.Success {
			m.CurrentSlot.Set(float64(result.Slot))
		}
	}
}

// ObserveInstruction records one program invocation.
func (m *Metrics) ObserveInstruction(program string, err error) {
	m.InstructionsTotal.WithLabelValues(program, errorResult(err)).Inc()
}

// ObserveAirdrop records an airdrop.
func (m *Metrics) ObserveAirdrop(lamports types.Lamports) {
	m.AirdropsTotal.Inc()
	m.AirdropLamports.Add(float64(lamports))
}

// ObserveRPCRequest records a served JSON-RPC request.
func (m *Metrics) ObserveRPCRequest(method string, err error) {
	m.RPCRequestsTotal.WithLabelValues(method, errorResult(err)).Inc()
}

// transactionResult labels a transaction "success", "custom_error" for a
// program error, "instruction_error" for other execution failures and
// "rejected" when it never executed.
func transactionResult(result *types.TransactionResult) string {
	switch {
	case result == nil:
		return "rejected"
	case result.Success:
		return "success"
	}
	var ixErr types.InstructionError
	if !errors.As(result.Error, &ixErr) {
		return "rejected"
	}
	if ixErr.CustomError() != nil {
		return "custom_error"
	}
	return "instruction_error"
}

func errorResult(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Global default metrics instance.
var defaultMetrics *Metrics
var defaultMetricsOnce sync.Once

// DefaultMetrics returns the global default metrics instance.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}
