// Package link maintains the telemetry connection: a Connection pairs an
// open transceiver with a background reader that buffers incoming
// messages, and a ConnectionHandler supervises the desired link state,
// reopening the connection whenever it drops.
package link

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/skyward-er/segs-sub000/config"
	"github.com/skyward-er/segs-sub000/errors"
	"github.com/skyward-er/segs-sub000/pkg/buffer"
	"github.com/skyward-er/segs-sub000/protocol"
	"github.com/skyward-er/segs-sub000/transport"
)

const (
	// ringCapacity bounds the undrained messages held per link. When the
	// consumer falls behind, the oldest unread message is dropped; the
	// link favors recency over completeness.
	ringCapacity = 1000

	// closeJoinTimeout bounds how long Close waits for the reader to
	// notice the shutdown. A reader stuck in a medium read is detached.
	closeJoinTimeout = 2 * time.Second
)

// Connection owns one open transceiver and its background reader. The
// reader decodes frames as they arrive and buffers them in a bounded
// ring; consumers drain the ring with RetrieveMessages. Once the medium
// fails or the connection is closed, drains surface a connection-closed
// error after the remaining buffered messages are consumed.
type Connection struct {
	trx     transport.Transceiver
	ring    buffer.Ring[protocol.TimedMessage]
	catalog *protocol.Catalog
	opts    options

	closed atomic.Bool
	done   chan struct{}

	mu      sync.Mutex
	lastErr error
}

// Connect opens a transceiver for the config and starts its reader.
// Configuration errors surface immediately and no reader is started.
func Connect(cfg config.ConnectionConfig, catalog *protocol.Catalog, opts ...Option) (*Connection, error) {
	o := buildOptions(func(cfg config.ConnectionConfig) (transport.Transceiver, error) {
		return transport.Connect(cfg, catalog)
	}, opts)

	trx, err := o.connect(cfg)
	if err != nil {
		return nil, err
	}
	return newConnection(trx, catalog, o), nil
}

func newConnection(trx transport.Transceiver, catalog *protocol.Catalog, o options) *Connection {
	ring, err := buffer.NewRing(ringCapacity,
		buffer.WithOverflowPolicy[protocol.TimedMessage](buffer.DropOldest))
	if err != nil {
		// capacity is a positive constant
		panic(err)
	}

	c := &Connection{
		trx:     trx,
		ring:    ring,
		catalog: catalog,
		opts:    o,
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// readLoop pulls frames off the medium until it fails or the connection
// closes. Malformed frames are logged and skipped; a medium failure
// records the error, closes the transceiver and ends the loop.
func (c *Connection) readLoop() {
	defer close(c.done)
	defer c.ring.Close()

	for {
		frame, err := c.trx.WaitForMessage()
		if err != nil {
			if errors.IsInvalid(err) {
				c.opts.logger.Debug("skipping malformed frame", "error", err)
				if c.opts.metrics != nil {
					c.opts.metrics.DecodeErrors.Inc()
				}
				continue
			}
			if !c.closed.Swap(true) {
				c.opts.logger.Warn("telemetry link lost", "error", err)
				c.setLastError(err)
				c.trx.Close()
			}
			return
		}

		timed := protocol.JustReceived(frame.Message)
		if err := c.ring.Write(timed); err != nil {
			return
		}
		if c.opts.metrics != nil {
			c.opts.metrics.MessagesReceived.WithLabelValues(frame.Message.Name()).Inc()
		}
		if c.opts.wake != nil {
			c.opts.wake()
		}
	}
}

// RetrieveMessages drains every buffered message in arrival order. It
// never blocks. Once the reader has stopped and the buffer is empty it
// returns a fatal connection-closed error.
func (c *Connection) RetrieveMessages() ([]protocol.TimedMessage, error) {
	msgs := c.ring.Drain()
	if len(msgs) == 0 && c.ring.Closed() {
		return nil, errors.WrapFatal(errors.ErrConnectionClosed,
			"Connection", "RetrieveMessages", "channel drain")
	}
	return msgs, nil
}

// SendMessage writes one frame to the medium synchronously. Failures are
// recorded and returned, never retried here.
func (c *Connection) SendMessage(frame protocol.Frame) error {
	if c.closed.Load() {
		return errors.WrapFatal(errors.ErrConnectionClosed,
			"Connection", "SendMessage", "frame transmission")
	}

	if err := c.trx.TransmitMessage(frame); err != nil {
		c.setLastError(err)
		if c.opts.metrics != nil {
			c.opts.metrics.SendErrors.Inc()
		}
		return err
	}
	if c.opts.metrics != nil {
		c.opts.metrics.MessagesSent.WithLabelValues(frame.Message.Name()).Inc()
	}
	return nil
}

// Close stops the reader and releases the medium. Safe to call more than
// once. The reader is joined with a bounded wait; if it is stuck inside a
// medium read it is detached and cleans up when that read returns.
func (c *Connection) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	err := c.trx.Close()

	select {
	case <-c.done:
	case <-time.After(closeJoinTimeout):
		c.opts.logger.Warn("reader did not stop in time, detaching")
	}
	return err
}

// IsClosed reports whether the connection is no longer usable, either
// because Close was called or because the medium failed.
func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// LastError returns the most recent medium failure, or nil.
func (c *Connection) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Connection) setLastError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
}
