//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads the monitored line from the Linux GPIO character device.
type RealReader struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
	pin  int
}

// NewRealReader opens chip and requests pin as an input with pull-up.
// A pin that is not a line of the chip fails with ErrInvalidPin.
func NewRealReader(chip string, pin int) (*RealReader, error) {
	if err := CheckPin(pin, 0); err != nil {
		return nil, err
	}

	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chip, err)
	}

	if err := CheckPin(pin, c.Lines()); err != nil {
		c.Close()
		return nil, err
	}

	// Pull-up so a floating contact reads high.
	line, err := c.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("request pin %d: %w", pin, err)
	}

	return &RealReader{
		chip: c,
		line: line,
		pin:  pin,
	}, nil
}

// Read returns the raw level of the line.
func (r *RealReader) Read() (bool, error) {
	v, err := r.line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", r.pin, err)
	}
	return v != 0, nil
}

// Close releases the line and the chip.
func (r *RealReader) Close() error {
	var errs []error

	if r.line != nil {
		if err := r.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", r.pin, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	return errors.Join(errs...)
}
