package telemetry

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally/v4"
)

func TestLogReporterWritesEntries(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)
	r := NewLogReporter(logger, log.InfoLevel)

	r.ReportCounter("delay_queue.added", map[string]string{"queue": "jobs"}, 3)
	r.ReportGauge("delay_queue.length", nil, 2)
	r.ReportTimer("delay_queue.pop_delay", nil, time.Millisecond)

	entries := hook.AllEntries()
	require.Len(t, entries, 3)

	assert.Equal(t, "counter", entries[0].Message)
	assert.Equal(t, log.InfoLevel, entries[0].Level)
	assert.Equal(t, "delay_queue.added", entries[0].Data["metric"])
	assert.Equal(t, "jobs", entries[0].Data["tag.queue"])
	assert.Equal(t, int64(3), entries[0].Data["value"])

	assert.Equal(t, "gauge", entries[1].Message)
	assert.Equal(t, float64(2), entries[1].Data["value"])

	assert.Equal(t, "timer", entries[2].Message)
	assert.Equal(t, time.Millisecond, entries[2].Data["value"])
}

func TestLogReporterRespectsLevel(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.InfoLevel)
	r := NewLogReporter(logger, log.DebugLevel)

	r.ReportCounter("ignored", nil, 1)
	assert.Empty(t, hook.AllEntries())
}

func TestLogReporterCapabilities(t *testing.T) {
	r := NewLogReporter(nil, log.InfoLevel)
	caps := r.Capabilities()
	assert.True(t, caps.Reporting())
	assert.True(t, caps.Tagging())
	assert.NotPanics(t, r.Flush)
}

func TestLogReporterAsRootScopeReporter(t *testing.T) {
	logger, hook := test.NewNullLogger()
	r := NewLogReporter(logger, log.InfoLevel)

	scope, closer := tally.NewRootScope(tally.ScopeOptions{
		Prefix:   "bench",
		Reporter: r,
	}, time.Hour)
	NewQueueMetrics(scope).Added(1)
	require.NoError(t, closer.Close())

	var metrics []string
	for _, e := range hook.AllEntries() {
		metrics = append(metrics, e.Data["metric"].(string))
	}
	assert.Contains(t, metrics, "bench.delay_queue.added")
}
