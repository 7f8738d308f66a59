package transport

import (
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"

	"github.com/skyward-er/segs-sub000/errors"
)

// stm32VID is the USB vendor ID of STMicroelectronics, which the
// telemetry radio enumerates under.
const stm32VID = "0483"

// FindFirstTelemetryPort scans the attached serial ports and returns the
// name of the first one that looks like the telemetry radio: an STM32
// USB device if present, otherwise the first USB serial port.
func FindFirstTelemetryPort() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", errors.WrapTransient(err, "transport", "FindFirstTelemetryPort", "port enumeration")
	}
	return pickTelemetryPort(ports)
}

func pickTelemetryPort(ports []*enumerator.PortDetails) (string, error) {
	var firstUSB string
	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		if strings.EqualFold(p.VID, stm32VID) {
			return p.Name, nil
		}
		if firstUSB == "" {
			firstUSB = p.Name
		}
	}
	if firstUSB != "" {
		return firstUSB, nil
	}
	return "", errors.WrapTransient(
		fmt.Errorf("no usb serial port attached: %w", errors.ErrNoConnection),
		"transport", "FindFirstTelemetryPort", "port selection")
}
