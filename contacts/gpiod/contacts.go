// go-iso7816
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-iso7816.
//
// go-iso7816 is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-iso7816 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-iso7816; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package gpiod drives the card's RST and VCC contacts through the Linux
// GPIO character device.
package gpiod

import (
	"errors"
	"fmt"
	"sync"

	iso7816 "github.com/ZaparooProject/go-iso7816"
	"github.com/ZaparooProject/go-iso7816/internal/debug"
)

// Consumer is the label shown for requested lines in gpioinfo
const Consumer = "go-iso7816"

// outputLine is the part of a requested gpiod line the contacts use.
type outputLine interface {
	SetValue(value int) error
	Close() error
}

type inputLine interface {
	Value() (int, error)
	Close() error
}

// Config names the chip and line offsets
type Config struct {
	// Chip is the character device name, for example "gpiochip0"
	Chip string
	// Reset and Power are output line offsets
	Reset int
	Power int
	// Detect is the card detect input offset, or negative for none
	Detect int
	// PowerActiveLow inverts the power line
	PowerActiveLow bool
	// DetectActiveLow is for switches closing to ground on insertion
	DetectActiveLow bool
}

// detectPullUp reports whether the detect line is biased high. The bias
// holds the line at the empty-slot level.
func (c Config) detectPullUp() bool {
	return c.DetectActiveLow
}

// Contacts implements iso7816.Contacts on requested GPIO lines. With a
// detect line, presence changes are published on Events.
type Contacts struct {
	reset  outputLine
	power  outputLine
	detect inputLine
	closer func() error
	events chan bool
	mu     sync.Mutex
	closed bool
}

func newContacts(reset, power outputLine, detect inputLine) *Contacts {
	c := &Contacts{reset: reset, power: power, detect: detect}
	if detect != nil {
		c.events = make(chan bool, 1)
	}
	return c
}

// SetReset implements iso7816.Contacts
func (c *Contacts) SetReset(high bool) error {
	return c.drive(c.reset, "reset", high)
}

// SetPower implements iso7816.Contacts
func (c *Contacts) SetPower(on bool) error {
	return c.drive(c.power, "power", on)
}

func (c *Contacts) drive(l outputLine, name string, high bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return iso7816.ErrLineClosed
	}
	v := 0
	if high {
		v = 1
	}
	if err := l.SetValue(v); err != nil {
		return fmt.Errorf("failed to set %s line: %w", name, err)
	}
	return nil
}

// Present reads the detect line. Without one a card is assumed.
func (c *Contacts) Present() (bool, error) {
	if c.detect == nil {
		return true, nil
	}
	v, err := c.detect.Value()
	if err != nil {
		return false, fmt.Errorf("failed to read detect line: %w", err)
	}
	return v == 1, nil
}

// Events delivers the latest presence state after each detect edge. It is
// nil without a detect line. Intermediate states are dropped when the
// reader falls behind.
func (c *Contacts) Events() <-chan bool {
	return c.events
}

// notify publishes present, replacing any unread state.
func (c *Contacts) notify(present bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.events == nil {
		return
	}
	select {
	case <-c.events:
	default:
	}
	c.events <- present
	debug.Printf("card detect: present=%v", present)
}

// Close powers the card down and releases all lines.
func (c *Contacts) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	errs = append(errs, c.reset.SetValue(0), c.power.SetValue(0))
	errs = append(errs, c.reset.Close(), c.power.Close())
	if c.detect != nil {
		errs = append(errs, c.detect.Close())
	}
	if c.closer != nil {
		errs = append(errs, c.closer())
	}
	if c.events != nil {
		close(c.events)
	}
	return errors.Join(errs...)
}
