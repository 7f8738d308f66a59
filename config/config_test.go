package config

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyward-er/segs-sub000/errors"
)

func TestParseEthernet(t *testing.T) {
	cfg, err := ParseEthernet("192.168.1.30:42000:42001")
	require.NoError(t, err)
	require.Equal(t, KindEthernet, cfg.Kind())
	assert.True(t, cfg.Ethernet.IP.Equal(net.ParseIP("192.168.1.30")))
	assert.Equal(t, uint16(42000), cfg.Ethernet.RxPort)
	assert.Equal(t, uint16(42001), cfg.Ethernet.TxPort)
	assert.Equal(t, "192.168.1.30:42000:42001", cfg.String())
}

func TestParseEthernetErrors(t *testing.T) {
	cases := []string{
		"",
		"192.168.1.30",
		"192.168.1.30:42000",
		"not-an-ip:42000:42001",
		"192.168.1.30:0:42001",
		"192.168.1.30:42000:99999",
		"192.168.1.30:42000:42001:extra",
	}
	for _, in := range cases {
		_, err := ParseEthernet(in)
		require.Error(t, err, "input %q", in)
		assert.True(t, errors.IsInvalid(err), "input %q", in)
	}
}

func TestParseSerial(t *testing.T) {
	cfg, err := ParseSerial("/dev/ttyUSB0:115200")
	require.NoError(t, err)
	require.Equal(t, KindSerial, cfg.Kind())
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.PortName)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, "/dev/ttyUSB0:115200", cfg.String())
}

func TestParseSerialErrors(t *testing.T) {
	cases := []string{
		"",
		"/dev/ttyUSB0",
		"/dev/ttyUSB0:",
		":115200",
		"/dev/ttyUSB0:fast",
		"/dev/ttyUSB0:-9600",
	}
	for _, in := range cases {
		_, err := ParseSerial(in)
		require.Error(t, err, "input %q", in)
		assert.True(t, errors.IsInvalid(err), "input %q", in)
	}
}

func TestValidate(t *testing.T) {
	assert.Error(t, ConnectionConfig{}.Validate())

	both := ConnectionConfig{
		Ethernet: &EthernetConfig{IP: net.IPv4(127, 0, 0, 1), RxPort: 1, TxPort: 2},
		Serial:   &SerialConfig{PortName: "COM4", BaudRate: 9600},
	}
	assert.Error(t, both.Validate())

	assert.NoError(t, NewEthernet(net.IPv4(127, 0, 0, 1), 42000, 42001).Validate())
	assert.NoError(t, NewSerial("COM4", 9600).Validate())
	assert.Error(t, NewSerial("COM4", 0).Validate())
	assert.Error(t, NewEthernet(nil, 42000, 42001).Validate())
}

func TestEqual(t *testing.T) {
	eth := NewEthernet(net.ParseIP("10.0.0.1"), 42000, 42001)
	assert.True(t, eth.Equal(NewEthernet(net.ParseIP("10.0.0.1"), 42000, 42001)))
	assert.False(t, eth.Equal(NewEthernet(net.ParseIP("10.0.0.2"), 42000, 42001)))
	assert.False(t, eth.Equal(NewEthernet(net.ParseIP("10.0.0.1"), 42000, 42002)))

	ser := NewSerial("/dev/ttyACM0", 115200)
	assert.True(t, ser.Equal(NewSerial("/dev/ttyACM0", 115200)))
	assert.False(t, ser.Equal(NewSerial("/dev/ttyACM0", 57600)))
	assert.False(t, ser.Equal(eth), "different kinds never compare equal")

	assert.True(t, ConnectionConfig{}.Equal(ConnectionConfig{}))
	assert.False(t, ConnectionConfig{}.Equal(eth))
}
