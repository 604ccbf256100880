package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// PacketsReceived counts datagrams read off the UDP ingestion socket.
	PacketsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "packets_received_total",
			Help:      "Total number of UDP datagrams received by the packet receiver",
		},
		[]string{},
	)

	// PacketsProcessed counts envelopes successfully parsed and dispatched.
	PacketsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "packets_processed_total",
			Help:      "Total number of envelopes successfully parsed and dispatched",
		},
		[]string{"report_kind"},
	)

	// PacketsDropped counts datagrams dropped at parse time or due to
	// pool/queue exhaustion.
	PacketsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "packets_dropped_total",
			Help:      "Total number of datagrams dropped",
		},
		[]string{"reason"},
	)

	// MemPoolUtilization reports the fraction of a memory pool currently
	// allocated, keyed by pool name (§4.B).
	MemPoolUtilization = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "sentinel",
			Name:      "mempool_utilization_ratio",
			Help:      "Fraction of a memory pool's slots currently allocated",
		},
		[]string{"pool"},
	)

	// DBPoolInUse reports in-use connections in the hand-rolled DB pool (§4.A).
	DBPoolInUse = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sentinel",
			Name:      "db_pool_in_use",
			Help:      "Number of connections currently acquired from the DB pool",
		},
	)

	// ViolationsEmitted counts notifications materialized by H5, by monitor type.
	ViolationsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "violations_emitted_total",
			Help:      "Total number of notification rows materialized",
		},
		[]string{"monitor_type"},
	)

	// SummarizerPassDuration observes the wall-clock duration of one G1-G4 pass.
	SummarizerPassDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sentinel",
			Name:      "summarizer_pass_duration_seconds",
			Help:      "Duration of one summarizer pass (G1-G4)",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// ViolationPassDuration observes the wall-clock duration of one H1-H5 pass.
	ViolationPassDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sentinel",
			Name:      "violation_pass_duration_seconds",
			Help:      "Duration of one violation-identifier pass (H1-H5)",
			Buckets:   prometheus.DefBuckets,
		},
	)

	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry.
// Idempotent: safe to call multiple times.
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.Register(PacketsReceived)
		prometheus.DefaultRegisterer.Register(PacketsProcessed)
		prometheus.DefaultRegisterer.Register(PacketsDropped)
		prometheus.DefaultRegisterer.Register(MemPoolUtilization)
		prometheus.DefaultRegisterer.Register(DBPoolInUse)
		prometheus.DefaultRegisterer.Register(ViolationsEmitted)
		prometheus.DefaultRegisterer.Register(SummarizerPassDuration)
		prometheus.DefaultRegisterer.Register(ViolationPassDuration)
	})
}
