package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMetricsRecordDecisions(t *testing.T) {
	m := NewMetrics()
	m.RecordDecision("DENY")
	m.RecordDecision("DENY")
	m.RecordDecision("FULL")
	m.RecordIntegrityFailure()
	m.RecordCacheLookup(true)
	m.RecordRequest("/reports/:tracking", "GET", 404, 3*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.decisions.WithLabelValues("DENY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues("FULL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.integrityFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.statsCacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/reports/:tracking", "GET", "404")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordDecision("FULL")
		m.RecordIntegrityFailure()
		m.RecordError("/", "GET", "X")
		m.RecordCacheLookup(false)
		m.RecordRequest("/", "GET", 200, time.Millisecond)
	})
	assert.Nil(t, m.Registry())
}

func TestSecurityEventMarksEntry(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	SecurityEvent(zap.New(core), "aggregate withheld", zap.String("tenant_id", "cpt"))

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, zap.ErrorLevel, entries[0].Level)
		ctx := entries[0].ContextMap()
		assert.Equal(t, true, ctx["security_event"])
		assert.Equal(t, "cpt", ctx["tenant_id"])
	}
}
