package gps

import (
	"fmt"
	"os"
)

// AutoDetectDevice returns the first existing USB serial node
// (/dev/ttyACM0-9, then /dev/ttyUSB0-9), or "" when none exists.
func AutoDetectDevice() string {
	for _, prefix := range []string{"/dev/ttyACM", "/dev/ttyUSB"} {
		for i := 0; i < 10; i++ {
			p := fmt.Sprintf("%s%d", prefix, i)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	return ""
}
