package link

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyward-er/segs-sub000/config"
	"github.com/skyward-er/segs-sub000/errors"
	"github.com/skyward-er/segs-sub000/protocol"
	"github.com/skyward-er/segs-sub000/transport"
)

// fakeTransceiver drives the link from a test: frames and errors pushed
// into it come out of WaitForMessage in order.
type fakeTransceiver struct {
	incoming chan incomingEvent
	closed   atomic.Bool

	mu   sync.Mutex
	sent []protocol.Frame
}

type incomingEvent struct {
	frame protocol.Frame
	err   error
}

func newFakeTransceiver() *fakeTransceiver {
	return &fakeTransceiver{incoming: make(chan incomingEvent, 2048)}
}

func (f *fakeTransceiver) feed(frames ...protocol.Frame) {
	for _, frame := range frames {
		f.incoming <- incomingEvent{frame: frame}
	}
}

func (f *fakeTransceiver) fail(err error) {
	f.incoming <- incomingEvent{err: err}
}

func (f *fakeTransceiver) WaitForMessage() (protocol.Frame, error) {
	ev, ok := <-f.incoming
	if !ok {
		return protocol.Frame{}, errors.WrapFatal(errors.ErrConnectionClosed,
			"fakeTransceiver", "WaitForMessage", "frame read")
	}
	return ev.frame, ev.err
}

func (f *fakeTransceiver) TransmitMessage(frame protocol.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, frame)
	return nil
}

func (f *fakeTransceiver) Close() error {
	if !f.closed.Swap(true) {
		close(f.incoming)
	}
	return nil
}

func (f *fakeTransceiver) sentFrames() []protocol.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Frame(nil), f.sent...)
}

func pingFrame(t *testing.T, seq uint8) protocol.Frame {
	t.Helper()
	def, err := protocol.DefaultCatalog().MessageByName("PING_TC")
	require.NoError(t, err)
	return protocol.Frame{
		Header:  protocol.Header{SystemID: 1, ComponentID: 96, Sequence: seq},
		Message: protocol.DefaultMessage(def),
	}
}

func fakeConnection(t *testing.T, opts ...Option) (*Connection, *fakeTransceiver) {
	t.Helper()
	trx := newFakeTransceiver()
	conn := newConnection(trx, protocol.DefaultCatalog(),
		buildOptions(func(config.ConnectionConfig) (transport.Transceiver, error) {
			return trx, nil
		}, opts))
	t.Cleanup(func() { conn.Close() })
	return conn, trx
}

func drainEventually(t *testing.T, conn *Connection, want int) []protocol.TimedMessage {
	t.Helper()
	var got []protocol.TimedMessage
	deadline := time.Now().Add(2 * time.Second)
	for len(got) < want && time.Now().Before(deadline) {
		msgs, err := conn.RetrieveMessages()
		require.NoError(t, err)
		got = append(got, msgs...)
		time.Sleep(time.Millisecond)
	}
	require.Len(t, got, want)
	return got
}

func TestConnectionDeliversMessagesInOrder(t *testing.T) {
	conn, trx := fakeConnection(t)

	trx.feed(pingFrame(t, 0), pingFrame(t, 1), pingFrame(t, 2))

	got := drainEventually(t, conn, 3)
	for _, timed := range got {
		assert.Equal(t, "PING_TC", timed.Message.Name())
		assert.False(t, timed.Time.IsZero())
	}
}

func TestConnectionWakesConsumer(t *testing.T) {
	var wakes atomic.Int64
	conn, trx := fakeConnection(t, WithWake(func() { wakes.Add(1) }))

	trx.feed(pingFrame(t, 0), pingFrame(t, 1))
	drainEventually(t, conn, 2)
	assert.GreaterOrEqual(t, wakes.Load(), int64(2))
}

func TestConnectionSkipsMalformedFrames(t *testing.T) {
	conn, trx := fakeConnection(t)

	trx.feed(pingFrame(t, 0))
	trx.fail(errors.WrapInvalid(errors.ErrChecksumFailed, "fakeTransceiver", "WaitForMessage", "frame read"))
	trx.feed(pingFrame(t, 1))

	drainEventually(t, conn, 2)
	assert.False(t, conn.IsClosed(), "decode errors never kill the link")
}

func TestConnectionBurstKeepsMostRecent(t *testing.T) {
	conn, trx := fakeConnection(t)

	const extra = 37
	for i := 0; i < ringCapacity+extra; i++ {
		trx.feed(pingFrame(t, uint8(i)))
	}

	// wait for the reader to push everything through the ring
	require.Eventually(t, func() bool {
		return conn.ring.Stats().Writes() == int64(ringCapacity+extra)
	}, 2*time.Second, time.Millisecond)

	msgs, err := conn.RetrieveMessages()
	require.NoError(t, err)
	require.Len(t, msgs, ringCapacity, "burst keeps exactly the ring capacity")
	assert.Equal(t, int64(extra), conn.ring.Stats().Drops(), "oldest messages were dropped")
}

func TestConnectionMediumFailure(t *testing.T) {
	conn, trx := fakeConnection(t)

	trx.feed(pingFrame(t, 0))
	trx.fail(errors.WrapTransient(errors.ErrConnectionTimeout, "fakeTransceiver", "WaitForMessage", "frame read"))

	// buffered messages drain first
	drainEventually(t, conn, 1)

	require.Eventually(t, conn.IsClosed, 2*time.Second, time.Millisecond)
	_, err := conn.RetrieveMessages()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConnectionClosed)
	assert.True(t, errors.IsFatal(err))
	assert.ErrorIs(t, conn.LastError(), errors.ErrConnectionTimeout)
}

func TestConnectionSendMessage(t *testing.T) {
	conn, trx := fakeConnection(t)

	frame := pingFrame(t, 5)
	require.NoError(t, conn.SendMessage(frame))
	require.Len(t, trx.sentFrames(), 1)
	assert.Equal(t, frame.Header, trx.sentFrames()[0].Header)

	require.NoError(t, conn.Close())
	err := conn.SendMessage(frame)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConnectionClosed)
}

func TestConnectionCloseIsIdempotent(t *testing.T) {
	conn, _ := fakeConnection(t)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.True(t, conn.IsClosed())

	_, err := conn.RetrieveMessages()
	assert.ErrorIs(t, err, errors.ErrConnectionClosed)
}

func TestConnectRejectsInvalidSerialPort(t *testing.T) {
	cfg := config.NewSerial("/dev/this-port-does-not-exist", 115200)

	conn, err := Connect(cfg, protocol.DefaultCatalog())
	require.Error(t, err)
	assert.Nil(t, conn)
	assert.ErrorIs(t, err, errors.ErrWrongConfiguration)
	assert.True(t, errors.IsInvalid(err))
}
