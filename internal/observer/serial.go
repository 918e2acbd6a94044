package observer

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// OpenSerial opens a GPS receiver attached to a serial device, for use with NewNMEASource.
func OpenSerial(device string, baud int) (io.ReadCloser, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial device %s: %w", device, err)
	}

	return port, nil
}
