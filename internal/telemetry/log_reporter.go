package telemetry

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
)

// LogReporter is a tally.StatsReporter that writes every reported value to a
// logrus logger. It suits command line tools that have no metrics backend.
type LogReporter struct {
	logger log.FieldLogger
	level  log.Level
}

var _ tally.StatsReporter = (*LogReporter)(nil)

// NewLogReporter returns a reporter logging at level through logger. A nil
// logger uses the logrus standard logger.
func NewLogReporter(logger log.FieldLogger, level log.Level) *LogReporter {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &LogReporter{logger: logger, level: level}
}

func (r *LogReporter) entry(name string, tags map[string]string) *log.Entry {
	fields := log.Fields{"metric": name}
	for k, v := range tags {
		fields["tag."+k] = v
	}
	return r.logger.WithFields(fields)
}

func (r *LogReporter) ReportCounter(name string, tags map[string]string, value int64) {
	r.entry(name, tags).WithField("value", value).Log(r.level, "counter")
}

func (r *LogReporter) ReportGauge(name string, tags map[string]string, value float64) {
	r.entry(name, tags).WithField("value", value).Log(r.level, "gauge")
}

func (r *LogReporter) ReportTimer(name string, tags map[string]string, interval time.Duration) {
	r.entry(name, tags).WithField("value", interval).Log(r.level, "timer")
}

func (r *LogReporter) ReportHistogramValueSamples(
	name string,
	tags map[string]string,
	buckets tally.Buckets,
	bucketLowerBound, bucketUpperBound float64,
	samples int64,
) {
	r.entry(name, tags).WithFields(log.Fields{
		"lower":   bucketLowerBound,
		"upper":   bucketUpperBound,
		"samples": samples,
	}).Log(r.level, "histogram")
}

func (r *LogReporter) ReportHistogramDurationSamples(
	name string,
	tags map[string]string,
	buckets tally.Buckets,
	bucketLowerBound, bucketUpperBound time.Duration,
	samples int64,
) {
	r.entry(name, tags).WithFields(log.Fields{
		"lower":   bucketLowerBound,
		"upper":   bucketUpperBound,
		"samples": samples,
	}).Log(r.level, "histogram")
}

func (r *LogReporter) Capabilities() tally.Capabilities { return r }

func (r *LogReporter) Reporting() bool { return true }

func (r *LogReporter) Tagging() bool { return true }

func (r *LogReporter) Flush() {}
