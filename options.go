package delayqueue

import (
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
)

type options struct {
	scope  tally.Scope
	logger log.FieldLogger
}

// Option configures a Queue.
type Option func(*options)

// WithMetrics reports queue metrics to scope under the "delay_queue"
// sub-scope.
func WithMetrics(scope tally.Scope) Option {
	return func(opts *options) {
		if scope != nil {
			opts.scope = scope
		}
	}
}

// WithLogger sets the logger used for timeouts, cancellations and poisoning.
func WithLogger(logger log.FieldLogger) Option {
	return func(opts *options) {
		if logger != nil {
			opts.logger = logger
		}
	}
}

func defaultOptions() options {
	return options{
		scope:  tally.NoopScope,
		logger: log.StandardLogger(),
	}
}
