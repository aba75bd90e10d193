package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "safeurl"

// Resolution outcomes.
const (
	OutcomeCacheHit    = "cache_hit"
	OutcomeResolved    = "resolved"
	OutcomeNotFound    = "not_found"
	OutcomeInvalidated = "invalidated"
	OutcomeError       = "error"
)

// Metrics groups the collectors updated by the link services.
type Metrics struct {
	LinksCreated       prometheus.Counter
	Collisions         prometheus.Counter
	CreateFailures     *prometheus.CounterVec
	Resolutions        *prometheus.CounterVec
	ValidationRejects  *prometheus.CounterVec
	CacheErrors        prometheus.Counter
	BackgroundFailures *prometheus.CounterVec
}

// NewMetrics builds the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LinksCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_created_total",
			Help:      "Short links durably created.",
		}),
		Collisions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "code_collisions_total",
			Help:      "Candidate codes rejected by the conditional write.",
		}),
		CreateFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "create_failures_total",
			Help:      "Failed create operations by kind.",
		}, []string{"kind"}),
		Resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Resolve operations by outcome.",
		}, []string{"outcome"}),
		ValidationRejects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "url_rejections_total",
			Help:      "URLs rejected by the guard, by reason.",
		}, []string{"reason"}),
		CacheErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_errors_total",
			Help:      "Cache lookups that failed and were treated as a miss.",
		}),
		BackgroundFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "background_failures_total",
			Help:      "Fire-and-forget tasks that failed, by task.",
		}, []string{"task"}),
	}
}
