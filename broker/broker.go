// Package broker is the consumer-facing surface of the telemetry link.
// A MessageBroker drives the connection handler, distributes newly
// arrived messages into per-cycle bundles, keeps a bounded history and
// tracks the link's reception rate.
package broker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/skyward-er/segs-sub000/config"
	"github.com/skyward-er/segs-sub000/errors"
	"github.com/skyward-er/segs-sub000/link"
	"github.com/skyward-er/segs-sub000/metric"
	"github.com/skyward-er/segs-sub000/protocol"
)

// Frame identity stamped on every outgoing command.
const (
	LocalSystemID    = 1
	LocalComponentID = 96
)

// defaultHistoryLimit bounds the retained message history. On overflow
// the oldest half is discarded.
const defaultHistoryLimit = 8192

// ConnectionManager is the link surface the broker drives. Satisfied by
// link.ConnectionHandler.
type ConnectionManager interface {
	OpenConnection(config.ConnectionConfig) error
	CloseConnection()
	IsConnected() bool
	RetrieveMessages() ([]protocol.TimedMessage, error)
	SendMessage(protocol.Frame) error
	LastError() error
	Shutdown()
}

var _ ConnectionManager = (*link.ConnectionHandler)(nil)

// MessageBroker owns the connection manager, the message history and the
// reception window. Incoming and outgoing processing are meant to be
// driven from one consumer goroutine; history and window reads are safe
// from others.
type MessageBroker struct {
	manager ConnectionManager
	window  *ReceptionWindow
	logger  *slog.Logger
	metrics *metric.Metrics
	wake    func()

	historyLimit int

	mu      sync.Mutex
	history []protocol.TimedMessage
	lastErr error
}

// BrokerOption configures a MessageBroker.
type BrokerOption func(*MessageBroker)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) BrokerOption {
	return func(b *MessageBroker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics enables broker metrics.
func WithMetrics(m *metric.Metrics) BrokerOption {
	return func(b *MessageBroker) { b.metrics = m }
}

// WithWake sets a callback invoked whenever an incoming cycle produced
// new messages, so the host environment can schedule a repaint.
func WithWake(wake func()) BrokerOption {
	return func(b *MessageBroker) { b.wake = wake }
}

// WithHistoryLimit overrides the history bound.
func WithHistoryLimit(limit int) BrokerOption {
	return func(b *MessageBroker) {
		if limit > 0 {
			b.historyLimit = limit
		}
	}
}

// WithWindowThreshold overrides the reception window length.
func WithWindowThreshold(threshold time.Duration) BrokerOption {
	return func(b *MessageBroker) { b.window = NewReceptionWindow(threshold) }
}

// NewMessageBroker creates a broker over a connection manager.
func NewMessageBroker(manager ConnectionManager, opts ...BrokerOption) *MessageBroker {
	b := &MessageBroker{
		manager:      manager,
		window:       NewReceptionWindow(DefaultWindowThreshold),
		logger:       slog.Default(),
		historyLimit: defaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Open asks the connection manager to establish the configured link.
func (b *MessageBroker) Open(cfg config.ConnectionConfig) error {
	return b.manager.OpenConnection(cfg)
}

// Close tears the link down.
func (b *MessageBroker) Close() {
	b.manager.CloseConnection()
}

// Shutdown stops the connection manager for good.
func (b *MessageBroker) Shutdown() {
	b.manager.Shutdown()
}

// IsConnected reports whether the link is currently up.
func (b *MessageBroker) IsConnected() bool {
	return b.manager.IsConnected()
}

// ProcessIncomingMessages drains the link and distributes every new
// message into the bundle, the reception window and the history. The
// bundle is reset first, so it only ever holds the current cycle. A dead
// link is recorded and surfaced via LastError; the connection manager
// reopens it on its own schedule.
func (b *MessageBroker) ProcessIncomingMessages(bundle *MessageBundle) {
	bundle.Reset()
	if !b.manager.IsConnected() {
		return
	}

	msgs, err := b.manager.RetrieveMessages()
	if err != nil {
		if errors.Is(err, errors.ErrConnectionClosed) {
			b.logger.Warn("telemetry link closed", "error", err)
			b.mu.Lock()
			b.lastErr = err
			b.mu.Unlock()
		}
		return
	}

	b.mu.Lock()
	for _, msg := range msgs {
		bundle.Insert(msg)
		b.window.Push(msg.Time)
		b.appendHistory(msg)
	}
	freq := b.window.Frequency()
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.ReceptionFrequency.Set(freq)
	}
	if len(msgs) > 0 && b.wake != nil {
		b.wake()
	}
}

// ProcessOutgoingMessages frames and sends each message with the local
// identity and a default sequence. A failed send is logged and the batch
// continues.
func (b *MessageBroker) ProcessOutgoingMessages(msgs []protocol.Message) {
	if !b.manager.IsConnected() {
		return
	}

	for _, msg := range msgs {
		frame := protocol.Frame{
			Header:  protocol.Header{SystemID: LocalSystemID, ComponentID: LocalComponentID},
			Message: msg,
		}
		if err := b.manager.SendMessage(frame); err != nil {
			b.logger.Warn("sending command failed",
				"message", msg.Name(),
				"error", err)
		}
	}
}

// Get returns every message in history whose ID matches any of ids, in
// arrival order.
func (b *MessageBroker) Get(ids ...uint32) []protocol.TimedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []protocol.TimedMessage
	for _, msg := range b.history {
		for _, id := range ids {
			if msg.ID() == id {
				out = append(out, msg)
				break
			}
		}
	}
	return out
}

// HistoryLen reports how many messages are currently retained.
func (b *MessageBroker) HistoryLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.history)
}

// ReceptionFrequency reports the link's reception rate in Hz.
func (b *MessageBroker) ReceptionFrequency() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.window.Frequency()
}

// TimeSinceLastReception reports the age of the newest received message.
// The second return is false when nothing was ever received.
func (b *MessageBroker) TimeSinceLastReception() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.window.TimeSinceLastReception()
}

// LastError returns the most recent link failure, or nil.
func (b *MessageBroker) LastError() error {
	b.mu.Lock()
	if b.lastErr != nil {
		defer b.mu.Unlock()
		return b.lastErr
	}
	b.mu.Unlock()
	return b.manager.LastError()
}

// appendHistory stores a message, discarding the oldest half of the
// history when the bound is hit.
func (b *MessageBroker) appendHistory(msg protocol.TimedMessage) {
	if len(b.history) >= b.historyLimit {
		keep := len(b.history) / 2
		copy(b.history, b.history[len(b.history)-keep:])
		b.history = b.history[:keep]
	}
	b.history = append(b.history, msg)
}
