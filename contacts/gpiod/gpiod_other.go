//go:build !linux

package gpiod

import (
	"errors"
	"fmt"
)

var errUnsupported = errors.New("GPIO character device requires Linux")

// Open is only available on Linux
func Open(cfg Config) (*Contacts, error) {
	return nil, fmt.Errorf("failed to open %s: %w", cfg.Chip, errUnsupported)
}
