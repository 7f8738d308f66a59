// Package config describes how to reach a telemetry endpoint. A
// ConnectionConfig is one of two kinds: an Ethernet endpoint (UDP, with
// distinct receive and transmit ports) or a serial port with a baud rate.
// Configs are compared by value so a supervisor can tell whether a
// requested link differs from the one it is already running.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/skyward-er/segs-sub000/errors"
)

// Kind discriminates the connection config variants.
type Kind string

const (
	KindEthernet Kind = "ethernet"
	KindSerial   Kind = "serial"
)

// ConnectionConfig is either an Ethernet or a serial endpoint.
// Exactly one of the two variants is set.
type ConnectionConfig struct {
	Ethernet *EthernetConfig `json:"ethernet,omitempty"`
	Serial   *SerialConfig   `json:"serial,omitempty"`
}

// EthernetConfig describes a UDP telemetry endpoint. Telemetry is
// received on RxPort and commands are sent to IP:TxPort.
type EthernetConfig struct {
	IP     net.IP `json:"ip"`
	RxPort uint16 `json:"rx_port"`
	TxPort uint16 `json:"tx_port"`
}

// SerialConfig describes a serial telemetry endpoint.
type SerialConfig struct {
	PortName string `json:"port_name"`
	BaudRate int    `json:"baud_rate"`
}

// NewEthernet builds an Ethernet connection config.
func NewEthernet(ip net.IP, rxPort, txPort uint16) ConnectionConfig {
	return ConnectionConfig{Ethernet: &EthernetConfig{IP: ip, RxPort: rxPort, TxPort: txPort}}
}

// NewSerial builds a serial connection config.
func NewSerial(portName string, baudRate int) ConnectionConfig {
	return ConnectionConfig{Serial: &SerialConfig{PortName: portName, BaudRate: baudRate}}
}

// Kind reports which variant this config holds.
func (c ConnectionConfig) Kind() Kind {
	if c.Serial != nil {
		return KindSerial
	}
	return KindEthernet
}

// Validate checks that exactly one variant is set and that it is
// internally consistent.
func (c ConnectionConfig) Validate() error {
	switch {
	case c.Ethernet != nil && c.Serial != nil:
		return errors.WrapInvalid(
			fmt.Errorf("both ethernet and serial set: %w", errors.ErrWrongConfiguration),
			"ConnectionConfig", "Validate", "variant check")
	case c.Ethernet != nil:
		return c.Ethernet.Validate()
	case c.Serial != nil:
		return c.Serial.Validate()
	default:
		return errors.WrapInvalid(
			fmt.Errorf("empty connection config: %w", errors.ErrMissingConfig),
			"ConnectionConfig", "Validate", "variant check")
	}
}

// Equal compares two configs by value.
func (c ConnectionConfig) Equal(other ConnectionConfig) bool {
	switch {
	case c.Ethernet != nil && other.Ethernet != nil:
		return c.Ethernet.IP.Equal(other.Ethernet.IP) &&
			c.Ethernet.RxPort == other.Ethernet.RxPort &&
			c.Ethernet.TxPort == other.Ethernet.TxPort
	case c.Serial != nil && other.Serial != nil:
		return *c.Serial == *other.Serial
	default:
		return c.Ethernet == nil && c.Serial == nil &&
			other.Ethernet == nil && other.Serial == nil
	}
}

// String renders the config in its command-line form.
func (c ConnectionConfig) String() string {
	switch {
	case c.Ethernet != nil:
		return c.Ethernet.String()
	case c.Serial != nil:
		return c.Serial.String()
	default:
		return "<empty>"
	}
}

// Validate checks the Ethernet endpoint.
func (e *EthernetConfig) Validate() error {
	if e.IP == nil {
		return errors.WrapInvalid(
			fmt.Errorf("missing IP address: %w", errors.ErrWrongConfiguration),
			"EthernetConfig", "Validate", "address check")
	}
	if e.RxPort == 0 || e.TxPort == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("ports must be nonzero (rx=%d tx=%d): %w",
				e.RxPort, e.TxPort, errors.ErrWrongConfiguration),
			"EthernetConfig", "Validate", "port check")
	}
	return nil
}

func (e *EthernetConfig) String() string {
	return fmt.Sprintf("%s:%d:%d", e.IP, e.RxPort, e.TxPort)
}

// Validate checks the serial endpoint.
func (s *SerialConfig) Validate() error {
	if s.PortName == "" {
		return errors.WrapInvalid(
			fmt.Errorf("missing serial port name: %w", errors.ErrWrongConfiguration),
			"SerialConfig", "Validate", "port check")
	}
	if s.BaudRate <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("baud rate %d: %w", s.BaudRate, errors.ErrWrongConfiguration),
			"SerialConfig", "Validate", "baud rate check")
	}
	return nil
}

func (s *SerialConfig) String() string {
	return fmt.Sprintf("%s:%d", s.PortName, s.BaudRate)
}

// ParseEthernet parses "IP:RX_PORT:TX_PORT".
func ParseEthernet(s string) (ConnectionConfig, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return ConnectionConfig{}, errors.WrapInvalid(
			fmt.Errorf("%q is not IP:RX_PORT:TX_PORT: %w", s, errors.ErrWrongConfiguration),
			"config", "ParseEthernet", "format check")
	}

	ip := net.ParseIP(parts[0])
	if ip == nil {
		return ConnectionConfig{}, errors.WrapInvalid(
			fmt.Errorf("invalid IP address %q: %w", parts[0], errors.ErrWrongConfiguration),
			"config", "ParseEthernet", "address parsing")
	}

	rxPort, err := parsePort(parts[1])
	if err != nil {
		return ConnectionConfig{}, errors.WrapInvalid(err, "config", "ParseEthernet", "rx port parsing")
	}
	txPort, err := parsePort(parts[2])
	if err != nil {
		return ConnectionConfig{}, errors.WrapInvalid(err, "config", "ParseEthernet", "tx port parsing")
	}

	return NewEthernet(ip, rxPort, txPort), nil
}

// ParseSerial parses "PORT_NAME:BAUD_RATE".
func ParseSerial(s string) (ConnectionConfig, error) {
	idx := strings.LastIndex(s, ":")
	if idx <= 0 || idx == len(s)-1 {
		return ConnectionConfig{}, errors.WrapInvalid(
			fmt.Errorf("%q is not PORT_NAME:BAUD_RATE: %w", s, errors.ErrWrongConfiguration),
			"config", "ParseSerial", "format check")
	}

	baud, err := strconv.Atoi(s[idx+1:])
	if err != nil || baud <= 0 {
		return ConnectionConfig{}, errors.WrapInvalid(
			fmt.Errorf("invalid baud rate %q: %w", s[idx+1:], errors.ErrWrongConfiguration),
			"config", "ParseSerial", "baud rate parsing")
	}

	cfg := NewSerial(s[:idx], baud)
	if err := cfg.Validate(); err != nil {
		return ConnectionConfig{}, err
	}
	return cfg, nil
}

func parsePort(s string) (uint16, error) {
	p, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", s, errors.ErrWrongConfiguration)
	}
	if p == 0 {
		return 0, fmt.Errorf("port must be nonzero: %w", errors.ErrWrongConfiguration)
	}
	return uint16(p), nil
}
