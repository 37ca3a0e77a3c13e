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

package usart

import (
	"fmt"
	"time"

	iso7816 "github.com/ZaparooProject/go-iso7816"
)

// Option configures a Driver
type Option func(*Driver) error

// WithAPBClock sets the bus clock the USART divides from
func WithAPBClock(hz int) Option {
	return func(d *Driver) error {
		if hz <= 0 {
			return fmt.Errorf("%w: APB clock %d Hz", iso7816.ErrInvalidParameter, hz)
		}
		d.apbClock = hz
		return nil
	}
}

// WithBufferSize sets the capacity of the RX and TX rings
func WithBufferSize(size int) Option {
	return func(d *Driver) error {
		if size <= 0 {
			return fmt.Errorf("%w: buffer size %d", iso7816.ErrInvalidParameter, size)
		}
		d.bufferSize = size
		return nil
	}
}

// WithEchoTimeout bounds the wait for a transmission's echo
func WithEchoTimeout(timeout time.Duration) Option {
	return func(d *Driver) error {
		if timeout < 0 {
			return fmt.Errorf("%w: negative echo timeout", iso7816.ErrInvalidParameter)
		}
		d.echoTimeout = timeout
		return nil
	}
}

// WithClock replaces the monotonic clock, for tests
func WithClock(c iso7816.Clock) Option {
	return func(d *Driver) error {
		if c == nil {
			return fmt.Errorf("%w: nil clock", iso7816.ErrInvalidParameter)
		}
		d.clock = c
		return nil
	}
}
