package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/boddenberg/dealdesk-bfa/internal/domain"
)

// Transition outcomes used as the "result" label.
const (
	ResultOK       = "ok"
	ResultNoop     = "noop"
	ResultInvalid  = "invalid"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	backendDuration      *prometheus.HistogramVec
	backendErrors        *prometheus.CounterVec
	transitions          *prometheus.CounterVec
	cacheHits            *prometheus.CounterVec
	cacheMisses          *prometheus.CounterVec
	notificationCommands *prometheus.CounterVec
	outstanding          *prometheus.GaugeVec
	unread               *prometheus.GaugeVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		backendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dealdesk_backend_request_duration_seconds",
				Help:    "Duration of backend API calls by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		backendErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealdesk_backend_errors_total",
				Help: "Total failed backend API calls by resource.",
			},
			[]string{"resource"},
		),
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealdesk_deal_transitions_total",
				Help: "Deal stage transitions by target stage and result.",
			},
			[]string{"stage", "result"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealdesk_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealdesk_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		notificationCommands: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealdesk_notification_commands_total",
				Help: "Notification commands by name and result.",
			},
			[]string{"command", "result"},
		),
		outstanding: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dealdesk_receivables_outstanding_cents",
				Help: "Outstanding balance per aging bucket at the last aging run.",
			},
			[]string{"tenant", "bucket"},
		),
		unread: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dealdesk_notifications_unread",
				Help: "Unread notifications per tenant at the last refresh.",
			},
			[]string{"tenant"},
		),
	}
}

// RecordBackendDuration records the duration of a backend call.
func (m *Metrics) RecordBackendDuration(operation string, d time.Duration) {
	m.backendDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrBackendError increments the backend error counter.
func (m *Metrics) IncrBackendError(resource string) {
	m.backendErrors.WithLabelValues(resource).Inc()
}

// IncrTransition counts a transition attempt.
func (m *Metrics) IncrTransition(stage domain.Stage, result string) {
	m.transitions.WithLabelValues(string(stage), result).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrNotificationCommand counts a notification command.
func (m *Metrics) IncrNotificationCommand(command string, ok bool) {
	result := ResultOK
	if !ok {
		result = ResultFailed
	}
	m.notificationCommands.WithLabelValues(command, result).Inc()
}

// SetOutstanding publishes the aging buckets of a report.
func (m *Metrics) SetOutstanding(tenant string, report *domain.AgingReport) {
	for _, b := range report.Buckets.All() {
		m.outstanding.WithLabelValues(tenant, string(b.Bucket)).Set(float64(b.Total))
	}
	m.outstanding.WithLabelValues(tenant, "total").Set(float64(report.TotalOutstanding))
}

// SetUnread publishes a tenant's unread notification count.
func (m *Metrics) SetUnread(tenant string, n int) {
	m.unread.WithLabelValues(tenant).Set(float64(n))
}

// ForgetTenant drops every per-tenant series once the tenant's state has
// been evicted.
func (m *Metrics) ForgetTenant(tenant string) {
	m.unread.DeleteLabelValues(tenant)
	m.outstanding.DeletePartialMatch(prometheus.Labels{"tenant": tenant})
}

// PipelineSnapshot returns the transition counters for the
// GET /v1/metrics/pipeline endpoint.
func (m *Metrics) PipelineSnapshot() *domain.PipelineMetrics {
	out := &domain.PipelineMetrics{TransitionsByStage: make(map[domain.Stage]int64, len(domain.Stages))}
	for _, s := range domain.Stages {
		stage := string(s)
		out.TransitionsByStage[s] = int64(getCounterValue(m.transitions, stage, ResultOK))
		out.Rejected += int64(getCounterValue(m.transitions, stage, ResultRejected))
		out.Failed += int64(getCounterValue(m.transitions, stage, ResultFailed))
		out.NoopDrops += int64(getCounterValue(m.transitions, stage, ResultNoop))
	}

	hits := getCounterValue(m.cacheHits, "deal")
	misses := getCounterValue(m.cacheMisses, "deal")
	if hits+misses > 0 {
		out.CacheHitRate = hits / (hits + misses)
	}
	return out
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
