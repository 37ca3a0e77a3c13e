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

// Package periph drives the card's RST and VCC contacts through periph.io,
// either from two GPIO pins or from an I2C port expander.
package periph

import (
	"fmt"
	"sync"

	iso7816 "github.com/ZaparooProject/go-iso7816"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Pins drives RST and VCC from GPIO outputs. An optional card detect switch
// reports slot presence.
type Pins struct {
	reset         gpio.PinOut
	power         gpio.PinOut
	detect        gpio.PinIn
	mu            sync.Mutex
	powerLow      bool
	detectLow     bool
	powered       bool
	resetReleased bool
}

// PinOption configures Pins
type PinOption func(*Pins)

// WithPowerActiveLow is for supplies switched by a P-channel FET, where a
// low level turns VCC on.
func WithPowerActiveLow() PinOption {
	return func(p *Pins) {
		p.powerLow = true
	}
}

// WithDetect adds a card detect input. activeLow is true for switches that
// close to ground when a card is inserted.
func WithDetect(pin gpio.PinIn, activeLow bool) PinOption {
	return func(p *Pins) {
		p.detect = pin
		p.detectLow = activeLow
	}
}

// NewPins wraps already resolved pins. Both outputs are driven to the
// inactive state: reset asserted, power off.
func NewPins(reset, power gpio.PinOut, opts ...PinOption) (*Pins, error) {
	if reset == nil || power == nil {
		return nil, fmt.Errorf("%w: reset and power pins are required", iso7816.ErrInvalidParameter)
	}
	p := &Pins{reset: reset, power: power}
	for _, opt := range opts {
		opt(p)
	}
	if p.detect != nil {
		// pull toward the empty-slot level
		pull := gpio.PullDown
		if p.detectLow {
			pull = gpio.PullUp
		}
		if err := p.detect.In(pull, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("failed to configure detect pin: %w", err)
		}
	}
	if err := p.SetReset(false); err != nil {
		return nil, err
	}
	if err := p.SetPower(false); err != nil {
		return nil, err
	}
	return p, nil
}

// OpenPins initialises the host drivers and looks the pins up by name, for
// example "GPIO17".
func OpenPins(resetName, powerName string, opts ...PinOption) (*Pins, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	reset := gpioreg.ByName(resetName)
	if reset == nil {
		return nil, fmt.Errorf("%w: no GPIO named %q", iso7816.ErrInvalidParameter, resetName)
	}
	power := gpioreg.ByName(powerName)
	if power == nil {
		return nil, fmt.Errorf("%w: no GPIO named %q", iso7816.ErrInvalidParameter, powerName)
	}
	return NewPins(reset, power, opts...)
}

// SetReset implements iso7816.Contacts
func (p *Pins) SetReset(high bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.reset.Out(level(high)); err != nil {
		return fmt.Errorf("failed to drive %s: %w", p.reset.Name(), err)
	}
	p.resetReleased = high
	return nil
}

// SetPower implements iso7816.Contacts
func (p *Pins) SetPower(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.power.Out(level(on != p.powerLow)); err != nil {
		return fmt.Errorf("failed to drive %s: %w", p.power.Name(), err)
	}
	p.powered = on
	return nil
}

// Present reads the card detect switch. Without one a card is assumed.
func (p *Pins) Present() (bool, error) {
	if p.detect == nil {
		return true, nil
	}
	return (p.detect.Read() == gpio.High) != p.detectLow, nil
}

// Powered reports the last requested VCC state
func (p *Pins) Powered() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.powered
}

func level(high bool) gpio.Level {
	if high {
		return gpio.High
	}
	return gpio.Low
}
