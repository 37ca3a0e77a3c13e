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
	"fmt"
	"time"
)

// Option is a functional option for configuring a Card
type Option func(*Card) error

// WithClockFrequency sets the card clock frequency f in Hz
func WithClockFrequency(hz int) Option {
	return func(c *Card) error {
		if hz <= 0 {
			return fmt.Errorf("%w: clock frequency %d", ErrInvalidParameter, hz)
		}
		c.config.ClockFrequency = hz
		return nil
	}
}

// WithCharTimeout fixes the character timeout instead of deriving the work
// waiting time from the ATR
func WithCharTimeout(timeout time.Duration) Option {
	return func(c *Card) error {
		if timeout < 0 {
			return fmt.Errorf("%w: character timeout %v", ErrInvalidParameter, timeout)
		}
		c.config.CharTimeout = timeout
		return nil
	}
}

// WithGuardCycles sets t3 in card clock cycles
func WithGuardCycles(cycles int) Option {
	return func(c *Card) error {
		c.config.GuardCycles = cycles
		return nil
	}
}

// WithPTS enables or disables PTS negotiation
func WithPTS(enabled bool) Option {
	return func(c *Card) error {
		c.config.PTS = enabled
		return nil
	}
}

// WithClock replaces the monotonic clock, mainly for tests
func WithClock(clk Clock) Option {
	return func(c *Card) error {
		if clk == nil {
			return fmt.Errorf("%w: nil clock", ErrInvalidParameter)
		}
		c.clock = clk
		return nil
	}
}

// WithRetryConfig sets the retry configuration used by ActivateWithRetry
func WithRetryConfig(config *RetryConfig) Option {
	return func(c *Card) error {
		if config == nil {
			config = DefaultRetryConfig()
		}
		c.config.RetryConfig = config
		return nil
	}
}

// WithMaxRetries sets the maximum number of activation attempts
func WithMaxRetries(maxAttempts int) Option {
	return func(c *Card) error {
		if c.config.RetryConfig == nil {
			c.config.RetryConfig = DefaultRetryConfig()
		}
		c.config.RetryConfig.MaxAttempts = maxAttempts
		return nil
	}
}
