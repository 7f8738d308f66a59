package transport

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/skyward-er/segs-sub000/config"
	"github.com/skyward-er/segs-sub000/errors"
	"github.com/skyward-er/segs-sub000/protocol"
)

// maxDatagramSize is the receive buffer for one UDP datagram. Frames are
// at most 263 bytes but a datagram may carry several.
const maxDatagramSize = 65535

// EthernetTransceiver carries frames over UDP. Telemetry arrives on the
// local receive port; commands go out to the remote IP on the transmit
// port. One datagram may carry several frames.
type EthernetTransceiver struct {
	cfg     config.EthernetConfig
	conn    *net.UDPConn
	target  *net.UDPAddr
	catalog *protocol.Catalog
	codec   *protocol.Codec
	closed  atomic.Bool

	mu      sync.Mutex
	pending []protocol.Frame
}

// OpenEthernet binds the receive port and resolves the transmit target.
// A bind failure (port taken, bad address) yields an invalid
// wrong-configuration error.
func OpenEthernet(cfg config.EthernetConfig, catalog *protocol.Catalog) (*EthernetTransceiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: int(cfg.RxPort)})
	if err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("binding rx port %d: %v: %w", cfg.RxPort, err, errors.ErrWrongConfiguration),
			"EthernetTransceiver", "OpenEthernet", "socket binding")
	}

	return &EthernetTransceiver{
		cfg:     cfg,
		conn:    conn,
		target:  &net.UDPAddr{IP: cfg.IP, Port: int(cfg.TxPort)},
		catalog: catalog,
		codec:   protocol.NewCodec(catalog),
	}, nil
}

// WaitForMessage blocks until a datagram containing at least one valid
// frame arrives. A datagram with no valid frame returns an invalid
// bad-frame error the caller can count and skip.
func (t *EthernetTransceiver) WaitForMessage() (protocol.Frame, error) {
	t.mu.Lock()
	if len(t.pending) > 0 {
		frame := t.pending[0]
		t.pending = t.pending[1:]
		t.mu.Unlock()
		return frame, nil
	}
	t.mu.Unlock()

	buf := make([]byte, maxDatagramSize)
	n, _, err := t.conn.ReadFromUDP(buf)
	if err != nil {
		if t.closed.Load() {
			return protocol.Frame{}, errors.WrapFatal(errors.ErrConnectionClosed,
				"EthernetTransceiver", "WaitForMessage", "datagram read")
		}
		return protocol.Frame{}, errors.WrapTransient(err,
			"EthernetTransceiver", "WaitForMessage", "datagram read")
	}

	frames := protocol.ByteParser(t.catalog, buf[:n])
	if len(frames) == 0 {
		return protocol.Frame{}, errors.WrapInvalid(
			fmt.Errorf("datagram of %d bytes held no valid frame: %w", n, errors.ErrBadFrame),
			"EthernetTransceiver", "WaitForMessage", "datagram parsing")
	}

	t.mu.Lock()
	t.pending = append(t.pending, frames[1:]...)
	t.mu.Unlock()
	return frames[0], nil
}

// TransmitMessage sends one frame to the remote endpoint.
func (t *EthernetTransceiver) TransmitMessage(frame protocol.Frame) error {
	if t.closed.Load() {
		return errors.WrapFatal(errors.ErrConnectionClosed,
			"EthernetTransceiver", "TransmitMessage", "datagram write")
	}

	wire, err := t.codec.Encode(frame)
	if err != nil {
		return err
	}

	if _, err := t.conn.WriteToUDP(wire, t.target); err != nil {
		return errors.WrapTransient(
			fmt.Errorf("sending to %s: %w", t.target, err),
			"EthernetTransceiver", "TransmitMessage", "datagram write")
	}
	return nil
}

// Close releases the socket. Safe to call more than once; a pending
// WaitForMessage unblocks with a connection-closed error.
func (t *EthernetTransceiver) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	if err := t.conn.Close(); err != nil {
		return errors.Wrap(err, "EthernetTransceiver", "Close", "socket closing")
	}
	return nil
}
