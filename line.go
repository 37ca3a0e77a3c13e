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

package iso7816

import (
	"time"

	"github.com/ZaparooProject/go-iso7816/internal/clock"
)

// Line is one half-duplex I/O line to a card. It can be implemented by an
// interrupt-driven USART in smartcard mode or by a host serial port wired to
// a Phoenix style reader.
type Line interface {
	// Configure enables the line with the given clock and character timing
	Configure(cfg LineConfig) error

	// SetBaudRate reprograms the bit rate after a successful PTS exchange
	SetBaudRate(baud int) error

	// Disable stops the line and releases its interrupt binding
	Disable() error

	// Transmit sends data and discards its echo from the receive side
	Transmit(data []byte) error

	// TryReadByte returns the next received character, or false when none
	// arrives before timeout
	TryReadByte(timeout time.Duration) (byte, bool)

	// Type returns the line type
	Type() LineType
}

// Contacts drives the card's RST and VCC contacts.
type Contacts interface {
	// SetReset drives RST high (released) or low (asserted)
	SetReset(high bool) error

	// SetPower switches VCC
	SetPower(on bool) error
}

// LineConfig carries the electrical profile for Line.Configure.
type LineConfig struct {
	// BaudRate is the initial bit rate, f / 372 after a cold reset
	BaudRate int
	// ClockFrequency is the frequency presented on the CLK contact in Hz
	ClockFrequency int
	// GuardTimeETU is the character guard time in elementary time units
	GuardTimeETU int
}

// LineType represents the kind of line
type LineType string

const (
	// LineUSART is a microcontroller USART in smartcard mode.
	LineUSART LineType = "usart"
	// LineSerial is a host serial port with an external reader.
	LineSerial LineType = "serial"
	// LineMock is a scripted line for testing
	LineMock LineType = "mock"
)

// Clock is the monotonic elapsed-time source used for guard intervals and
// character timeouts.
type Clock = clock.Clock

// SystemClock returns the default monotonic clock.
func SystemClock() Clock {
	return clock.Monotonic{}
}
