package bridge

import (
	"log/slog"
	"time"
)

// Option configures a Bridge via the functional options pattern.
type Option func(*options)

// options holds all configurable fields set via Option functions.
type options struct {
	logger         *slog.Logger
	requestTimeout time.Duration
	stopGrace      time.Duration
	clientName     string
	clientVersion  string
	filter         []FilterRule
}

func (o *options) applyDefaults() {
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.requestTimeout == 0 {
		o.requestTimeout = DefaultRequestTimeout
	}
	if o.stopGrace == 0 {
		o.stopGrace = DefaultStopGracePeriod
	}
	if o.clientName == "" {
		o.clientName = DefaultClientName
	}
	if o.clientVersion == "" {
		o.clientVersion = DefaultClientVersion
	}
}

func resolveOptions(opts []Option) options {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	o.applyDefaults()
	return o
}

// WithLogger sets the slog.Logger used for protocol and lifecycle logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRequestTimeout sets the per-request deadline for JSON-RPC round trips.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithStopGracePeriod sets how long Stop waits for a subprocess to exit after
// SIGTERM before force-killing it.
func WithStopGracePeriod(d time.Duration) Option {
	return func(o *options) { o.stopGrace = d }
}

// WithClientInfo sets the client identity sent in the initialize handshake.
func WithClientInfo(name, version string) Option {
	return func(o *options) {
		o.clientName = name
		o.clientVersion = version
	}
}

// WithToolFilter installs allow/deny rules applied to discovered tools before
// they enter the catalog and routing table.
func WithToolFilter(rules ...FilterRule) Option {
	return func(o *options) { o.filter = rules }
}
