// Package relay republishes received telemetry onto a NATS bus so
// dashboards, loggers and scripts can consume the link without touching
// the radio. Each message goes out as JSON on
// "telemetry.<dialect>.<message_name>".
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/skyward-er/segs-sub000/errors"
	"github.com/skyward-er/segs-sub000/pkg/retry"
	"github.com/skyward-er/segs-sub000/protocol"
)

const subjectPrefix = "telemetry"

// Publisher is the bus surface the relay writes to. Satisfied by
// *nats.Conn.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Relay republishes telemetry messages to a NATS subject per message
// type.
type Relay struct {
	publisher Publisher
	conn      *nats.Conn // nil when an external Publisher was injected
	dialect   string
	logger    *slog.Logger
}

// Option configures a Relay.
type Option func(*Relay)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithPublisher injects the bus surface directly, bypassing the NATS
// connection. Used by tests.
func WithPublisher(p Publisher) Option {
	return func(r *Relay) { r.publisher = p }
}

// Connect dials the NATS server and returns a relay for the dialect.
// The initial dial is retried with backoff; once up, the client's own
// reconnect machinery keeps the bus connection alive.
func Connect(ctx context.Context, url, dialect string, opts ...Option) (*Relay, error) {
	r := &Relay{
		dialect: strings.ToLower(dialect),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.publisher != nil {
		return r, nil
	}

	conn, err := retry.DoWithResult(ctx, retry.Persistent(), func() (*nats.Conn, error) {
		return nats.Connect(url,
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				r.logger.Warn("relay bus disconnected", "error", err)
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				r.logger.Info("relay bus reconnected", "url", nc.ConnectedUrl())
			}),
		)
	})
	if err != nil {
		return nil, errors.WrapTransient(
			fmt.Errorf("dialing %s: %w", url, err),
			"Relay", "Connect", "bus dialing")
	}

	r.conn = conn
	r.publisher = conn
	return r, nil
}

// PublishBundle republishes every message of one distribution cycle.
// Per-message failures are logged and the batch continues.
func (r *Relay) PublishBundle(msgs []protocol.TimedMessage) {
	for _, msg := range msgs {
		if err := r.publish(msg); err != nil {
			r.logger.Warn("relaying message failed",
				"message", msg.Message.Name(),
				"error", err)
		}
	}
}

func (r *Relay) publish(msg protocol.TimedMessage) error {
	payload, err := json.Marshal(msg.Message)
	if err != nil {
		return errors.Wrap(err, "Relay", "publish", "message encoding")
	}
	subject := r.Subject(msg.Message.Name())
	if err := r.publisher.Publish(subject, payload); err != nil {
		return errors.WrapTransient(err, "Relay", "publish", "bus publishing")
	}
	return nil
}

// Subject returns the bus subject for a message name.
func (r *Relay) Subject(messageName string) string {
	return fmt.Sprintf("%s.%s.%s", subjectPrefix, r.dialect, strings.ToLower(messageName))
}

// Close flushes and drops the bus connection.
func (r *Relay) Close() {
	if r.conn != nil {
		r.conn.Drain()
		r.conn.Close()
	}
}
