//go:build !linux

package gps

import (
	"fmt"
	"os"
)

func OpenSerial(device string, baud int) (*os.File, error) {
	return nil, fmt.Errorf("serial input not supported on this platform")
}
