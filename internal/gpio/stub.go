//go:build !linux

package gpio

import (
	"errors"
	"fmt"
)

// RealReader is not available on non-Linux platforms.
type RealReader struct{}

// NewRealReader validates the pin and returns an error on non-Linux platforms.
func NewRealReader(chip string, pin int) (*RealReader, error) {
	if err := CheckPin(pin, 0); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("open gpio chip %s: %w", chip, errors.New("gpio: not supported on this platform (requires Linux)"))
}

// Read is not implemented on non-Linux platforms.
func (r *RealReader) Read() (bool, error) {
	return false, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RealReader) Close() error {
	return nil
}
