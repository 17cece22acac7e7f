package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the ledger coordinator.
type Metrics struct {
	TierCursor *prometheus.GaugeVec
	TierHeight *prometheus.GaugeVec
	BestHeight prometheus.Gauge

	EventsApplied  *prometheus.CounterVec
	EventsRejected *prometheus.CounterVec

	Resets     *prometheus.CounterVec
	Fatal      prometheus.Gauge
	RetryCount prometheus.Gauge

	CheckpointFlushes  *prometheus.CounterVec
	CheckpointFailures *prometheus.CounterVec
	CheckpointRows     *prometheus.HistogramVec

	TickDuration prometheus.Histogram
	TickErrors   *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TierCursor: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "swapledger_tier_cursor",
			Help: "Last event cursor applied to a tier",
		}, []string{"tier"}),

		TierHeight: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "swapledger_tier_height",
			Help: "Height of the last event applied to a tier",
		}, []string{"tier"}),

		BestHeight: f.NewGauge(prometheus.GaugeOpts{
			Name: "swapledger_best_height",
			Help: "Best chain height reported by the event source",
		}),

		EventsApplied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "swapledger_events_applied_total",
			Help: "Events applied to a tier",
		}, []string{"tier", "op"}),

		EventsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "swapledger_events_rejected_total",
			Help: "Events consumed by a tier without changing state",
		}, []string{"tier", "code"}),

		Resets: f.NewCounterVec(prometheus.CounterOpts{
			Name: "swapledger_resets_total",
			Help: "Tier rebuilds by cause",
		}, []string{"kind"}),

		Fatal: f.NewGauge(prometheus.GaugeOpts{
			Name: "swapledger_fatal",
			Help: "1 while ledger advancement is halted by a fatal error",
		}),

		RetryCount: f.NewGauge(prometheus.GaugeOpts{
			Name: "swapledger_retry_count",
			Help: "Consecutive failed ticks",
		}),

		CheckpointFlushes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "swapledger_checkpoint_flushes_total",
			Help: "Committed checkpoint flushes",
		}, []string{"tier", "mode"}),

		CheckpointFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "swapledger_checkpoint_failures_total",
			Help: "Checkpoint flushes that were rolled back",
		}, []string{"tier"}),

		CheckpointRows: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "swapledger_checkpoint_rows",
			Help:    "Rows written per checkpoint flush",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"tier"}),

		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "swapledger_tick_duration_seconds",
			Help:    "Duration of one coordinator tick",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		TickErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "swapledger_tick_errors_total",
			Help: "Failed ticks by error class",
		}, []string{"class"}),
	}
}
