// Package gpio provides reading of the monitored input line with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"errors"
	"fmt"
)

// Reader reads the monitored input line.
type Reader interface {
	// Read returns the raw level of the line (true = high).
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// DefaultChip is the GPIO character device used when none is configured.
const DefaultChip = "gpiochip0"

// ErrInvalidPin is returned for a pin identifier that is not a legal input line.
var ErrInvalidPin = errors.New("invalid gpio pin")

// CheckPin validates a pin identifier against the number of lines of a chip.
// A lines value <= 0 means the chip size is unknown and only the sign is checked.
func CheckPin(pin, lines int) error {
	if pin < 0 {
		return fmt.Errorf("%w %d", ErrInvalidPin, pin)
	}
	if lines > 0 && pin >= lines {
		return fmt.Errorf("%w %d (chip has %d lines)", ErrInvalidPin, pin, lines)
	}
	return nil
}
