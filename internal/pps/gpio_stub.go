//go:build !linux

package pps

import (
	"fmt"
	"io"
	"time"
)

func OpenGPIO(chipPath, lineName string, pulses chan<- time.Time) (io.Closer, error) {
	return nil, fmt.Errorf("pps: gpio unsupported on this platform")
}
