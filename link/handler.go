package link

import (
	"sync"
	"time"

	"github.com/skyward-er/segs-sub000/config"
	"github.com/skyward-er/segs-sub000/errors"
	"github.com/skyward-er/segs-sub000/protocol"
	"github.com/skyward-er/segs-sub000/transport"
)

// ConnectionHandler supervises the desired link state. OpenConnection
// records which endpoint should be connected; a background supervisor
// opens it on its next poll and reopens it whenever it drops. Open
// failures are logged and retried on the following poll, the only
// retried failure path in the link layer.
type ConnectionHandler struct {
	catalog *protocol.Catalog
	opts    options

	mu      sync.Mutex
	cfg     *config.ConnectionConfig
	conn    *Connection
	enabled bool
	lastErr error

	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewConnectionHandler creates a handler and starts its supervisor.
// No connection is attempted until OpenConnection is called.
func NewConnectionHandler(catalog *protocol.Catalog, opts ...Option) *ConnectionHandler {
	h := &ConnectionHandler{
		catalog: catalog,
		opts: buildOptions(func(cfg config.ConnectionConfig) (transport.Transceiver, error) {
			return transport.Connect(cfg, catalog)
		}, opts),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go h.supervise()
	return h
}

// OpenConnection records the endpoint to connect to and enables the
// supervisor. The connection itself is established on the next poll.
// An invalid config is rejected immediately and the handler stays idle.
func (h *ConnectionHandler) OpenConnection(cfg config.ConnectionConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cfg != nil && !h.cfg.Equal(cfg) && h.conn != nil {
		// endpoint changed, drop the old link so the supervisor reopens
		h.conn.Close()
		h.conn = nil
	}
	h.cfg = &cfg
	h.enabled = true
	h.lastErr = nil
	return nil
}

// CloseConnection disables the supervisor and tears down any current
// connection. The desired config is kept so a later OpenConnection with
// the same endpoint is cheap.
func (h *ConnectionHandler) CloseConnection() {
	h.mu.Lock()
	conn := h.conn
	h.conn = nil
	h.enabled = false
	h.mu.Unlock()

	if conn != nil {
		conn.Close()
		h.setLinkUp(false)
	}
}

// IsConnected reports whether the handler is enabled and holds a live
// connection. A connection that outlives a CloseConnection call, or
// whose reader has died, does not count.
func (h *ConnectionHandler) IsConnected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.enabled && h.conn != nil && !h.conn.IsClosed()
}

// RetrieveMessages drains the current connection. Without a live
// connection it returns a no-connection error.
func (h *ConnectionHandler) RetrieveMessages() ([]protocol.TimedMessage, error) {
	conn := h.current()
	if conn == nil {
		return nil, errors.WrapTransient(errors.ErrNoConnection,
			"ConnectionHandler", "RetrieveMessages", "connection lookup")
	}
	return conn.RetrieveMessages()
}

// SendMessage forwards a frame to the current connection.
func (h *ConnectionHandler) SendMessage(frame protocol.Frame) error {
	conn := h.current()
	if conn == nil {
		return errors.WrapTransient(errors.ErrNoConnection,
			"ConnectionHandler", "SendMessage", "connection lookup")
	}
	return conn.SendMessage(frame)
}

// LastError returns the most recent open or link failure, or nil.
func (h *ConnectionHandler) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lastErr != nil {
		return h.lastErr
	}
	if h.conn != nil {
		return h.conn.LastError()
	}
	return nil
}

// Shutdown stops the supervisor and closes any current connection.
func (h *ConnectionHandler) Shutdown() {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.stopped
	h.CloseConnection()
}

func (h *ConnectionHandler) current() *Connection {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.enabled || h.conn == nil || h.conn.IsClosed() {
		return nil
	}
	return h.conn
}

func (h *ConnectionHandler) supervise() {
	defer close(h.stopped)

	ticker := time.NewTicker(h.opts.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.tick()
		}
	}
}

// tick runs one supervision step: reap a dead connection, then open one
// if the handler is enabled, has a config and holds no connection.
func (h *ConnectionHandler) tick() {
	h.mu.Lock()
	if h.conn != nil && h.conn.IsClosed() {
		dead := h.conn
		h.conn = nil
		h.lastErr = dead.LastError()
		h.mu.Unlock()
		dead.Close()
		h.setLinkUp(false)
		h.mu.Lock()
	}
	enabled := h.enabled
	var cfg *config.ConnectionConfig
	if h.cfg != nil {
		c := *h.cfg
		cfg = &c
	}
	hasConn := h.conn != nil
	h.mu.Unlock()

	if !enabled || cfg == nil || hasConn {
		return
	}

	conn, err := h.open(*cfg)
	if err != nil {
		h.opts.logger.Warn("opening telemetry link failed",
			"endpoint", cfg.String(),
			"error", err,
			"retry_in", h.opts.pollInterval)
		h.mu.Lock()
		h.lastErr = err
		h.mu.Unlock()
		return
	}

	h.mu.Lock()
	if !h.enabled || h.conn != nil {
		// disabled (or raced with another open) while connecting
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.conn = conn
	h.lastErr = nil
	h.mu.Unlock()

	h.opts.logger.Info("telemetry link established", "endpoint", cfg.String())
	h.setLinkUp(true)
	if h.opts.metrics != nil {
		h.opts.metrics.Reconnects.Inc()
	}
}

func (h *ConnectionHandler) open(cfg config.ConnectionConfig) (*Connection, error) {
	trx, err := h.opts.connect(cfg)
	if err != nil {
		return nil, err
	}
	return newConnection(trx, h.catalog, h.opts), nil
}

func (h *ConnectionHandler) setLinkUp(up bool) {
	if h.opts.metrics == nil {
		return
	}
	if up {
		h.opts.metrics.LinkUp.Set(1)
	} else {
		h.opts.metrics.LinkUp.Set(0)
	}
}
