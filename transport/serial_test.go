package transport

import (
	"io"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/skyward-er/segs-sub000/config"
	"github.com/skyward-er/segs-sub000/errors"
	"github.com/skyward-er/segs-sub000/protocol"
)

// fakePort feeds canned bytes through the serial.Port read path,
// interleaving timed-out reads the way a quiet line does.
type fakePort struct {
	serial.Port

	mu      sync.Mutex
	rx      []byte
	written []byte
	closed  bool
}

func (p *fakePort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	if len(p.rx) == 0 {
		return 0, nil // read timeout
	}
	n := copy(buf, p.rx)
	p.rx = p.rx[n:]
	return n, nil
}

func (p *fakePort) Write(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.written = append(p.written, buf...)
	return len(buf), nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) feed(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rx = append(p.rx, b...)
}

func newFakeSerial(port *fakePort) *SerialTransceiver {
	cat := protocol.DefaultCatalog()
	t := &SerialTransceiver{
		cfg:   config.SerialConfig{PortName: "fake", BaudRate: 115200},
		port:  port,
		codec: protocol.NewCodec(cat),
	}
	t.decoder = protocol.NewDecoder(cat, &patientReader{port: port, closed: &t.closed})
	return t
}

func TestSerialWaitForMessage(t *testing.T) {
	port := &fakePort{}
	trx := newFakeSerial(port)

	codec := protocol.NewCodec(protocol.DefaultCatalog())
	wire, err := codec.Encode(testFrame(t, "GPS_TM"))
	require.NoError(t, err)

	got := make(chan protocol.Frame, 1)
	go func() {
		frame, err := trx.WaitForMessage()
		if err == nil {
			got <- frame
		}
	}()

	// let the reader spin on empty reads before data shows up
	time.Sleep(20 * time.Millisecond)
	port.feed([]byte{0x00, 0x99}) // line noise
	port.feed(wire)

	select {
	case frame := <-got:
		assert.Equal(t, "GPS_TM", frame.Message.Name())
	case <-time.After(2 * time.Second):
		t.Fatal("frame never arrived")
	}
}

func TestSerialTransmitMessage(t *testing.T) {
	port := &fakePort{}
	trx := newFakeSerial(port)

	frame := testFrame(t, "COMMAND_TC")
	require.NoError(t, trx.TransmitMessage(frame))

	codec := protocol.NewCodec(protocol.DefaultCatalog())
	wire, err := codec.Encode(frame)
	require.NoError(t, err)
	assert.Equal(t, wire, port.written)
}

func TestSerialCloseUnblocksWait(t *testing.T) {
	port := &fakePort{}
	trx := newFakeSerial(port)

	done := make(chan error, 1)
	go func() {
		_, err := trx.WaitForMessage()
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, trx.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errors.ErrConnectionClosed)
		assert.True(t, errors.IsFatal(err))
	case <-time.After(2 * time.Second):
		t.Fatal("wait never unblocked")
	}

	require.NoError(t, trx.Close(), "close is idempotent")
	assert.ErrorIs(t, trx.TransmitMessage(testFrame(t, "PING_TC")), errors.ErrConnectionClosed)
}

func TestClassifySerialError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		invalid bool
	}{
		{"raw enoent", &os.PathError{Op: "open", Path: "/dev/ttyGone", Err: syscall.ENOENT}, true},
		{"bare errno", syscall.ENOENT, true},
		{"busy line", &os.PathError{Op: "open", Path: "/dev/ttyACM0", Err: syscall.EBUSY}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifySerialError(tt.err, "/dev/ttyGone")
			require.Error(t, err)
			if tt.invalid {
				assert.ErrorIs(t, err, errors.ErrWrongConfiguration)
				assert.True(t, errors.IsInvalid(err))
			} else {
				assert.True(t, errors.IsTransient(err))
			}
		})
	}
}

func TestOpenSerialRejectsMissingPort(t *testing.T) {
	_, err := OpenSerial(config.SerialConfig{PortName: "/dev/does-not-exist", BaudRate: 115200},
		protocol.DefaultCatalog())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrWrongConfiguration)
}
