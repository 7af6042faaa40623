package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector contains all metrics for the case lifecycle service. A nil
// *Collector is valid and records nothing.
type Collector struct {
	CasesSubmittedTotal   prometheus.Counter
	StageTransitionsTotal *prometheus.CounterVec
	TransitionErrorsTotal *prometheus.CounterVec
	TransitionDuration    *prometheus.HistogramVec
	NotificationsTotal    *prometheus.CounterVec
	ScammerResolutions    *prometheus.CounterVec
	EventsPublishedTotal  *prometheus.CounterVec
	CacheLookupsTotal     *prometheus.CounterVec
}

// NewCollector registers the collector's metrics with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		CasesSubmittedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "fraudcase_cases_submitted_total",
			Help: "The total number of cases submitted",
		}),
		StageTransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fraudcase_stage_transitions_total",
			Help: "The total number of completed stage transitions",
		}, []string{"stage", "actor_role"}),
		TransitionErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fraudcase_stage_transition_errors_total",
			Help: "The total number of rejected or failed stage transitions",
		}, []string{"stage", "kind"}),
		TransitionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fraudcase_stage_transition_duration_seconds",
			Help:    "Time spent performing a stage transition",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		NotificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fraudcase_notifications_total",
			Help: "The total number of authority notifications by outcome",
		}, []string{"category", "result"}),
		ScammerResolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fraudcase_scammer_resolutions_total",
			Help: "The total number of scammer resolutions by outcome",
		}, []string{"outcome"}),
		EventsPublishedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fraudcase_events_published_total",
			Help: "The total number of lifecycle events published",
		}, []string{"type", "result"}),
		CacheLookupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fraudcase_case_cache_lookups_total",
			Help: "The total number of case cache lookups by result",
		}, []string{"result"}),
	}
}

func (c *Collector) CaseSubmitted() {
	if c == nil {
		return
	}
	c.CasesSubmittedTotal.Inc()
}

func (c *Collector) StageCompleted(stage, role string) {
	if c == nil {
		return
	}
	c.StageTransitionsTotal.WithLabelValues(stage, role).Inc()
}

func (c *Collector) TransitionFailed(stage, kind string) {
	if c == nil {
		return
	}
	c.TransitionErrorsTotal.WithLabelValues(stage, kind).Inc()
}

func (c *Collector) Notification(category string, success bool) {
	if c == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	c.NotificationsTotal.WithLabelValues(category, result).Inc()
}

func (c *Collector) ScammerResolved(isNew bool) {
	if c == nil {
		return
	}
	outcome := "matched"
	if isNew {
		outcome = "new"
	}
	c.ScammerResolutions.WithLabelValues(outcome).Inc()
}

func (c *Collector) EventPublished(eventType string, err error) {
	if c == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	c.EventsPublishedTotal.WithLabelValues(eventType, result).Inc()
}

func (c *Collector) CacheLookup(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.CacheLookupsTotal.WithLabelValues(result).Inc()
}

// Timer helps measure durations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveTransition records the elapsed time for stage
func (t *Timer) ObserveTransition(c *Collector, stage string) {
	if c == nil {
		return
	}
	c.TransitionDuration.WithLabelValues(stage).Observe(time.Since(t.start).Seconds())
}
