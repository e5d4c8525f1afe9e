package narrate

import (
	"time"

	"go.uber.org/zap"
)

// options are the settings shared by Generator, Regenerator and Sweeper.
type options struct {
	log         *zap.SugaredLogger
	usage       UsageStore
	pauseMarker string
	now         func() time.Time
	newID       func() string
}

// Option configures a Generator, Regenerator or Sweeper.
type Option func(*options)

func newOptions(opts []Option) options {
	o := options{
		log:         zap.NewNop().Sugar(),
		pauseMarker: DefaultPauseMarker,
		now:         time.Now,
		newID:       shortID,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger. Nil keeps the no-op logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithUsageStore enables the usage refresh after each successful generation.
func WithUsageStore(u UsageStore) Option {
	return func(o *options) {
		o.usage = u
	}
}

// WithPauseMarker sets the text appended to each segment before synthesis.
func WithPauseMarker(m string) Option {
	return func(o *options) {
		o.pauseMarker = m
	}
}

// withClock sets the time source (for testing).
func withClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// withIDSource sets the blob name suffix source (for testing).
func withIDSource(fn func() string) Option {
	return func(o *options) {
		o.newID = fn
	}
}
