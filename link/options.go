package link

import (
	"log/slog"
	"time"

	"github.com/skyward-er/segs-sub000/config"
	"github.com/skyward-er/segs-sub000/metric"
	"github.com/skyward-er/segs-sub000/transport"
)

// DefaultPollInterval is how often the connection supervisor checks
// whether a link needs to be (re)opened.
const DefaultPollInterval = 1 * time.Second

type options struct {
	logger       *slog.Logger
	metrics      *metric.Metrics
	wake         func()
	pollInterval time.Duration
	connect      func(config.ConnectionConfig) (transport.Transceiver, error)
}

// Option configures a Connection or a ConnectionHandler.
type Option func(*options)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics enables link metrics.
func WithMetrics(m *metric.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithWake sets a callback invoked after each received message, so a
// host environment can schedule a repaint or wake a consumer. The
// callback runs on the reader goroutine and must not block.
func WithWake(wake func()) Option {
	return func(o *options) { o.wake = wake }
}

// WithPollInterval overrides the supervisor poll interval.
func WithPollInterval(interval time.Duration) Option {
	return func(o *options) {
		if interval > 0 {
			o.pollInterval = interval
		}
	}
}

// WithConnectFunc overrides how a config is turned into an open
// transceiver. Used by tests to substitute the medium.
func WithConnectFunc(connect func(config.ConnectionConfig) (transport.Transceiver, error)) Option {
	return func(o *options) {
		if connect != nil {
			o.connect = connect
		}
	}
}

func buildOptions(catalogConnect func(config.ConnectionConfig) (transport.Transceiver, error), opts []Option) options {
	o := options{
		logger:       slog.Default(),
		pollInterval: DefaultPollInterval,
		connect:      catalogConnect,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
