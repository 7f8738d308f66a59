package transport

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.bug.st/serial"

	"github.com/skyward-er/segs-sub000/config"
	"github.com/skyward-er/segs-sub000/errors"
	"github.com/skyward-er/segs-sub000/protocol"
)

// serialReadTimeout bounds each blocking read so a close request is
// noticed promptly even on a silent line.
const serialReadTimeout = 100 * time.Millisecond

// SerialTransceiver carries frames over a serial port.
type SerialTransceiver struct {
	cfg     config.SerialConfig
	port    serial.Port
	decoder *protocol.Decoder
	codec   *protocol.Codec
	closed  atomic.Bool

	writeMu sync.Mutex
}

// OpenSerial opens the configured serial port. A port that does not exist
// or cannot run at the requested speed yields an invalid
// wrong-configuration error; other failures are transient.
func OpenSerial(cfg config.SerialConfig, catalog *protocol.Catalog) (*SerialTransceiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	port, err := serial.Open(cfg.PortName, &serial.Mode{BaudRate: cfg.BaudRate})
	if err != nil {
		return nil, classifySerialError(err, cfg.PortName)
	}
	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		port.Close()
		return nil, errors.WrapTransient(err, "SerialTransceiver", "OpenSerial", "read timeout setup")
	}

	t := &SerialTransceiver{
		cfg:   cfg,
		port:  port,
		codec: protocol.NewCodec(catalog),
	}
	t.decoder = protocol.NewDecoder(catalog, &patientReader{port: port, closed: &t.closed})
	return t, nil
}

// classifySerialError maps open failures onto the link error taxonomy.
// Missing devices surface differently per platform: Windows reports a
// PortNotFound port error while unix returns the raw ENOENT, so both
// shapes are checked.
func classifySerialError(err error, portName string) error {
	var pe *serial.PortError
	if stderrors.As(err, &pe) {
		switch pe.Code() {
		case serial.PortNotFound, serial.InvalidSerialPort, serial.InvalidSpeed:
			return errors.WrapInvalid(
				fmt.Errorf("port %s: %v: %w", portName, err, errors.ErrWrongConfiguration),
				"SerialTransceiver", "OpenSerial", "port opening")
		}
	}
	if stderrors.Is(err, os.ErrNotExist) || stderrors.Is(err, syscall.ENOENT) {
		return errors.WrapInvalid(
			fmt.Errorf("port %s: %v: %w", portName, err, errors.ErrWrongConfiguration),
			"SerialTransceiver", "OpenSerial", "port opening")
	}
	return errors.WrapTransient(
		fmt.Errorf("port %s: %w", portName, err),
		"SerialTransceiver", "OpenSerial", "port opening")
}

// patientReader retries timed-out reads until data arrives or the
// transceiver is closed, turning the port's polling reads into the
// blocking stream the frame decoder expects.
type patientReader struct {
	port   serial.Port
	closed *atomic.Bool
}

func (r *patientReader) Read(p []byte) (int, error) {
	for {
		if r.closed.Load() {
			return 0, io.EOF
		}
		n, err := r.port.Read(p)
		if err != nil {
			return n, err
		}
		if n > 0 {
			return n, nil
		}
		// read timeout, poll again
	}
}

// WaitForMessage blocks until the next frame arrives on the line.
func (t *SerialTransceiver) WaitForMessage() (protocol.Frame, error) {
	frame, err := t.decoder.Next()
	if err == nil {
		return frame, nil
	}
	if t.closed.Load() || err == io.EOF {
		return protocol.Frame{}, errors.WrapFatal(errors.ErrConnectionClosed,
			"SerialTransceiver", "WaitForMessage", "frame read")
	}
	if errors.IsInvalid(err) {
		return protocol.Frame{}, err
	}
	return protocol.Frame{}, errors.WrapTransient(err, "SerialTransceiver", "WaitForMessage", "frame read")
}

// TransmitMessage writes one frame to the line.
func (t *SerialTransceiver) TransmitMessage(frame protocol.Frame) error {
	if t.closed.Load() {
		return errors.WrapFatal(errors.ErrConnectionClosed,
			"SerialTransceiver", "TransmitMessage", "frame write")
	}

	wire, err := t.codec.Encode(frame)
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.port.Write(wire); err != nil {
		return errors.WrapTransient(
			fmt.Errorf("port %s: %w", t.cfg.PortName, err),
			"SerialTransceiver", "TransmitMessage", "frame write")
	}
	return nil
}

// Close releases the port. Safe to call more than once; a pending
// WaitForMessage returns once its current read times out.
func (t *SerialTransceiver) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	if err := t.port.Close(); err != nil {
		return errors.Wrap(err, "SerialTransceiver", "Close", "port closing")
	}
	return nil
}
