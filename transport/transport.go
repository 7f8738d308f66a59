// Package transport carries frames over a physical medium. A Transceiver
// is the blocking read/write surface the link layer drives: WaitForMessage
// blocks until a frame arrives or the medium fails, TransmitMessage sends
// one frame. Two media are supported, UDP and serial, selected by the
// connection config.
package transport

import (
	"fmt"

	"github.com/skyward-er/segs-sub000/config"
	"github.com/skyward-er/segs-sub000/errors"
	"github.com/skyward-er/segs-sub000/protocol"
)

// Transceiver sends and receives frames over one open medium.
//
// WaitForMessage blocks until a frame arrives. Frames that fail validation
// (bad checksum, unknown message ID, short payload) are returned as
// classified invalid errors so the caller can count and skip them; medium
// failures are returned as-is and end the link. After Close,
// WaitForMessage returns a fatal connection-closed error.
type Transceiver interface {
	WaitForMessage() (protocol.Frame, error)
	TransmitMessage(protocol.Frame) error
	Close() error
}

// Connect opens a transceiver for the given connection config.
func Connect(cfg config.ConnectionConfig, catalog *protocol.Catalog) (Transceiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Kind() {
	case config.KindSerial:
		return OpenSerial(*cfg.Serial, catalog)
	case config.KindEthernet:
		return OpenEthernet(*cfg.Ethernet, catalog)
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("connection kind %q: %w", cfg.Kind(), errors.ErrWrongConfiguration),
			"transport", "Connect", "medium selection")
	}
}
