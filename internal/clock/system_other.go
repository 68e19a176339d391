//go:build !linux

package clock

import (
	"errors"
	"time"
)

// Set is not supported on non-Linux platforms.
func (System) Set(time.Time) error {
	return errors.New("clock: setting the system time requires Linux")
}
