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

package periph

import (
	"fmt"
	"sync"

	iso7816 "github.com/ZaparooProject/go-iso7816"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	// DefaultExpanderAddr is a PCF8574 with A0-A2 grounded
	DefaultExpanderAddr = 0x20
	// Standard mode is plenty for two contact lines
	expanderClock = 100 * physic.KiloHertz
)

// Expander drives RST and VCC from two outputs of a PCF8574 style 8-bit
// I2C port expander. Every change writes the whole port.
type Expander struct {
	dev      *i2c.Dev
	busName  string
	mu       sync.Mutex
	state    byte
	resetBit uint8
	powerBit uint8
}

// NewExpander uses bus at addr with RST on resetBit and VCC on powerBit.
func NewExpander(bus i2c.Bus, addr uint16, resetBit, powerBit uint8) (*Expander, error) {
	if bus == nil {
		return nil, fmt.Errorf("%w: I2C bus is required", iso7816.ErrInvalidParameter)
	}
	if resetBit > 7 || powerBit > 7 || resetBit == powerBit {
		return nil, fmt.Errorf("%w: expander bits %d and %d", iso7816.ErrInvalidParameter, resetBit, powerBit)
	}
	e := &Expander{
		dev:      &i2c.Dev{Addr: addr, Bus: bus},
		resetBit: resetBit,
		powerBit: powerBit,
		// Unused quasi-bidirectional pins stay high
		state: 0xFF &^ (1<<resetBit | 1<<powerBit),
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.write(); err != nil {
		return nil, err
	}
	return e, nil
}

// OpenExpander initialises the host drivers and opens the named bus, for
// example "/dev/i2c-1" or "" for the first one.
func OpenExpander(busName string, addr uint16, resetBit, powerBit uint8) (*Expander, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %s: %w", busName, err)
	}
	_ = bus.SetSpeed(expanderClock)

	e, err := NewExpander(bus, addr, resetBit, powerBit)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}
	e.busName = busName
	return e, nil
}

// SetReset implements iso7816.Contacts
func (e *Expander) SetReset(high bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.set(e.resetBit, high)
	return e.write()
}

// SetPower implements iso7816.Contacts
func (e *Expander) SetPower(on bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.set(e.powerBit, on)
	return e.write()
}

// State returns the last port value written
func (e *Expander) State() byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Expander) set(bit uint8, high bool) {
	if high {
		e.state |= 1 << bit
	} else {
		e.state &^= 1 << bit
	}
}

func (e *Expander) write() error {
	if err := e.dev.Tx([]byte{e.state}, nil); err != nil {
		return fmt.Errorf("failed to write expander 0x%02X: %w", e.dev.Addr, err)
	}
	return nil
}
