//go:build linux

package pps

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// OpenGPIO requests lineName (e.g. "GPIO18") as a rising-edge input and
// delivers one timestamp per edge on pulses. Sends never block; edges that
// arrive while the consumer is busy are dropped. chipPath may be empty to
// search every /dev/gpiochip*.
func OpenGPIO(chipPath, lineName string, pulses chan<- time.Time) (io.Closer, error) {
	if strings.TrimSpace(lineName) == "" {
		return nil, fmt.Errorf("pps: gpio line name is required")
	}

	candidates := []string{chipPath}
	if chipPath == "" {
		candidates = nil
		entries, _ := os.ReadDir("/dev")
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), "gpiochip") {
				candidates = append(candidates, filepath.Join("/dev", e.Name()))
			}
		}
	}

	handler := func(evt gpiocdev.LineEvent) {
		select {
		case pulses <- time.Now():
		default:
		}
	}

	for _, path := range candidates {
		chip, err := gpiocdev.NewChip(path)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			_ = chip.Close()
			continue
		}
		line, err := chip.RequestLine(offset,
			gpiocdev.AsInput,
			gpiocdev.WithRisingEdge,
			gpiocdev.WithEventHandler(handler),
			gpiocdev.WithConsumer("gnss-stamp-pps"),
		)
		if err != nil {
			_ = chip.Close()
			continue
		}
		return &gpioLine{chip: chip, line: line}, nil
	}
	return nil, fmt.Errorf("pps: gpio line %q not found (or busy)", lineName)
}

type gpioLine struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

func (g *gpioLine) Close() error {
	err := g.line.Close()
	_ = g.chip.Close()
	return err
}
