package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Price transition operations used as the "op" label.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpExpire = "expire"
)

// Price sheet cache outcomes used as the "result" label.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// PricingMetrics records price history transitions and cache behaviour.
// A nil *PricingMetrics is valid and records nothing.
type PricingMetrics struct {
	transitions *prometheus.CounterVec
	conflicts   *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	cache       *prometheus.CounterVec
}

// NewPricingMetrics registers the pricing metrics on the provided registerer.
func NewPricingMetrics(reg prometheus.Registerer) *PricingMetrics {
	if reg == nil {
		return &PricingMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "price_transitions_total",
		Help: "Committed price tier transitions.",
	}, []string{"op"})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "price_conflicts_total",
		Help: "Price tier writes rejected because the tier changed underneath them.",
	}, []string{"op"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "price_transition_duration_seconds",
		Help:    "Duration of price tier transitions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	cache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "price_sheet_cache_total",
		Help: "Price sheet cache lookups by result.",
	}, []string{"result"})
	reg.MustRegister(transitions, conflicts, duration, cache)
	return &PricingMetrics{
		transitions: transitions,
		conflicts:   conflicts,
		duration:    duration,
		cache:       cache,
	}
}

// IncTransition counts a committed transition.
func (m *PricingMetrics) IncTransition(op string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncConflict counts a write rejected with a conflict.
func (m *PricingMetrics) IncConflict(op string) {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.WithLabelValues(normalizeLabel(op)).Inc()
}

// ObserveDuration records how long a transition took.
func (m *PricingMetrics) ObserveDuration(op string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(op)).Observe(d.Seconds())
}

// IncCache counts a price sheet cache lookup.
func (m *PricingMetrics) IncCache(result string) {
	if m == nil || m.cache == nil {
		return
	}
	m.cache.WithLabelValues(normalizeLabel(result)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
