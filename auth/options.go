package auth

import (
	"time"

	"github.com/jrsteele09/go-spar-server/internal/instrument"
)

type options struct {
	metrics *instrument.Metrics
	nowFunc func() time.Time
}

// Option configures a SessionIssuer or a Gate.
type Option func(*options)

func WithMetrics(m *instrument.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithNowFunc replaces the clock the gate uses for its expiry check.
func WithNowFunc(now func() time.Time) Option {
	return func(o *options) {
		o.nowFunc = now
	}
}

func getOpts(opts ...Option) options {
	o := options{nowFunc: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
