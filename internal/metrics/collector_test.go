package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_Counts(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.CaseSubmitted()
	c.CaseSubmitted()
	c.StageCompleted("resolved", "police")
	c.TransitionFailed("closed", "invalid_transition")
	c.Notification("banking", false)
	c.Notification("telecom", true)
	c.ScammerResolved(true)
	c.ScammerResolved(false)
	c.ScammerResolved(false)
	c.EventPublished("case.submitted", errors.New("broker down"))
	c.CacheLookup(true)
	NewTimer().ObserveTransition(c, "resolved")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.CasesSubmittedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.StageTransitionsTotal.WithLabelValues("resolved", "police")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.TransitionErrorsTotal.WithLabelValues("closed", "invalid_transition")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.NotificationsTotal.WithLabelValues("banking", "failure")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.ScammerResolutions.WithLabelValues("matched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.EventsPublishedTotal.WithLabelValues("case.submitted", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CacheLookupsTotal.WithLabelValues("hit")))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.CaseSubmitted()
		c.StageCompleted("resolved", "police")
		c.TransitionFailed("closed", "forbidden")
		c.Notification("nodal", true)
		c.ScammerResolved(true)
		c.EventPublished("x", nil)
		c.CacheLookup(false)
		NewTimer().ObserveTransition(c, "closed")
	})
}
