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
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ZaparooProject/go-iso7816/internal/clock"
	"github.com/ZaparooProject/go-iso7816/internal/frame"
)

// State is the position of a Card in its activation state machine.
type State int

const (
	StateDeactivated State = iota
	StateResetting
	StateAwaitingATR
	StateReadingATR
	StateNegotiatingPTS
	StateActive
	// StateError is entered on any protocol failure. Only Deactivate or a
	// new activation leaves it.
	StateError
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateDeactivated:
		return "deactivated"
	case StateResetting:
		return "resetting"
	case StateAwaitingATR:
		return "awaiting ATR"
	case StateReadingATR:
		return "reading ATR"
	case StateNegotiatingPTS:
		return "negotiating PTS"
	case StateActive:
		return "active"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// CardConfig contains configurable parameters for a Card
type CardConfig struct {
	// RetryConfig is used by ActivateWithRetry
	RetryConfig *RetryConfig
	// ClockFrequency is the card clock f in Hz
	ClockFrequency int
	// GuardCycles is t3, the reset hold time and the window in which TS must
	// arrive, in clock cycles
	GuardCycles int
	// GuardTimeETU is the character guard time requested from the line
	GuardTimeETU int
	// CharTimeout bounds every character read after TS. Zero selects the
	// work waiting time derived from the ATR.
	CharTimeout time.Duration
	// PTS enables parameter negotiation when the card offers TA1
	PTS bool
}

// DefaultCardConfig returns the ISO 7816-3 defaults: f = 3 MHz, t3 = 40000
// cycles, 16 ETU guard time, work waiting time character timeout, PTS on.
func DefaultCardConfig() *CardConfig {
	return &CardConfig{
		RetryConfig:    DefaultRetryConfig(),
		ClockFrequency: frame.DefaultClockHz,
		GuardCycles:    frame.T3Cycles,
		GuardTimeETU:   frame.DefaultGuardETU,
		PTS:            true,
	}
}

// Validate checks the configuration for values a card cannot work with
func (c *CardConfig) Validate() error {
	switch {
	case c.ClockFrequency < 1000000 || c.ClockFrequency > 20000000:
		return fmt.Errorf("%w: clock frequency %d Hz outside 1-20 MHz", ErrInvalidParameter, c.ClockFrequency)
	case c.GuardCycles <= 0:
		return fmt.Errorf("%w: guard cycles must be positive", ErrInvalidParameter)
	case c.GuardTimeETU < 0 || c.GuardTimeETU > 255:
		return fmt.Errorf("%w: guard time %d ETU", ErrInvalidParameter, c.GuardTimeETU)
	case c.CharTimeout < 0:
		return fmt.Errorf("%w: negative character timeout", ErrInvalidParameter)
	}
	return nil
}

// Card drives one ISO 7816 T=0 card over a Line. All exchanges are
// serialised; a Card may be shared between goroutines.
type Card struct {
	line        Line
	contacts    Contacts
	clock       Clock
	config      *CardConfig
	atr         *ATR
	state       State
	charTimeout time.Duration
	mu          sync.Mutex
}

// New creates a Card on line, using contacts for RST and VCC.
func New(line Line, contacts Contacts, opts ...Option) (*Card, error) {
	if line == nil || contacts == nil {
		return nil, fmt.Errorf("%w: line and contacts are required", ErrInvalidParameter)
	}

	card := &Card{
		line:     line,
		contacts: contacts,
		clock:    SystemClock(),
		config:   DefaultCardConfig(),
	}

	for _, opt := range opts {
		if err := opt(card); err != nil {
			return nil, err
		}
	}

	if err := card.config.Validate(); err != nil {
		return nil, err
	}
	return card, nil
}

// State returns the current protocol state
func (c *Card) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ATR returns the ATR of the current activation, or nil.
func (c *Card) ATR() *ATR {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.atr
}

// Line returns the underlying line
func (c *Card) Line() Line {
	return c.line
}

// Config returns the card configuration
func (c *Card) Config() *CardConfig {
	return c.config
}

// Activate performs a cold reset, reads and validates the ATR and runs PTS
// when the card offers it. On success the card is Active.
func (c *Card) Activate() (*ATR, error) {
	return c.ActivateContext(context.Background())
}

// ActivateContext is Activate with cancellation checked between phases.
// Character reads inside a phase are bounded by their own timeouts.
func (c *Card) ActivateContext(ctx context.Context) (*ATR, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateDeactivated {
		c.deactivate()
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("activation cancelled: %w", err)
	}

	f := c.config.ClockFrequency
	t3 := cyclesToDuration(c.config.GuardCycles, f)

	c.state = StateResetting
	err := c.line.Configure(LineConfig{
		BaudRate:       f / frame.DefaultFi,
		ClockFrequency: f,
		GuardTimeETU:   c.config.GuardTimeETU,
	})
	if err != nil {
		return nil, c.fail("activate", fmt.Errorf("failed to configure line: %w", err))
	}
	if err := c.coldReset(t3); err != nil {
		return nil, c.fail("activate", err)
	}

	c.state = StateAwaitingATR
	ts, ok := c.line.TryReadByte(t3)
	if !ok {
		return nil, c.fail("activate", fmt.Errorf("%w: no TS within %v", ErrCardAbsent, t3))
	}

	c.state = StateReadingATR
	timeout := c.config.CharTimeout
	if timeout == 0 {
		timeout = workWaitingTime(defaultWI, frame.DefaultFi, f)
	}
	atr, err := decodeATR(ts, func() (byte, bool) {
		return c.line.TryReadByte(timeout)
	})
	if err != nil {
		return nil, c.fail("activate", err)
	}
	logger().Debug().Hex("atr", atr.Bytes()).Msg("ATR received")
	if err := atr.Validate(); err != nil {
		return nil, c.fail("activate", err)
	}

	if err := ctx.Err(); err != nil {
		c.deactivate()
		return nil, fmt.Errorf("activation cancelled: %w", err)
	}

	fi := frame.DefaultFi
	if c.config.PTS && shouldNegotiate(atr) {
		c.state = StateNegotiatingPTS
		fi, err = c.negotiatePTS(atr, timeout)
		if err != nil {
			return nil, c.fail("activate", err)
		}
	}

	c.charTimeout = c.config.CharTimeout
	if c.charTimeout == 0 {
		c.charTimeout = atr.WorkWaitingTime(fi, f)
	}
	c.atr = atr
	c.state = StateActive
	debugf("card active, character timeout %v", c.charTimeout)
	return atr, nil
}

// coldReset holds RST low with VCC applied for t3, then releases RST.
func (c *Card) coldReset(t3 time.Duration) error {
	if err := c.contacts.SetReset(false); err != nil {
		return fmt.Errorf("failed to assert reset: %w", err)
	}
	if err := c.contacts.SetPower(true); err != nil {
		return fmt.Errorf("failed to apply power: %w", err)
	}
	clock.Wait(c.clock, t3)
	if err := c.contacts.SetReset(true); err != nil {
		return fmt.Errorf("failed to release reset: %w", err)
	}
	return nil
}

// Deactivate disables the line, asserts reset and removes power. It always
// succeeds from the protocol's point of view; hardware errors are logged.
func (c *Card) Deactivate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deactivate()
	return nil
}

func (c *Card) deactivate() {
	if err := c.line.Disable(); err != nil {
		logger().Warn().Err(err).Msg("failed to disable line")
	}
	if err := c.contacts.SetReset(false); err != nil {
		logger().Warn().Err(err).Msg("failed to assert reset")
	}
	if err := c.contacts.SetPower(false); err != nil {
		logger().Warn().Err(err).Msg("failed to remove power")
	}
	c.atr = nil
	c.charTimeout = 0
	c.state = StateDeactivated
	debugln("card deactivated")
}

// ActivateWithRetry repeats whole activations, deactivating in between,
// while the failure is retryable and the retry budget allows.
func (c *Card) ActivateWithRetry(ctx context.Context) (*ATR, error) {
	var atr *ATR
	err := RetryWithConfig(ctx, c.config.RetryConfig, func() error {
		var err error
		atr, err = c.ActivateContext(ctx)
		if err != nil {
			_ = c.Deactivate()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return atr, nil
}

// fail records a protocol failure and moves the card to StateError.
func (c *Card) fail(op string, err error) error {
	var cardErr *CardError
	if errors.As(err, &cardErr) {
		c.state = StateError
		return err
	}
	cardErr = NewCardError(op, c.state, err)
	c.state = StateError
	debugf("%v", cardErr)
	return cardErr
}

// requireActive must be called with c.mu held.
func (c *Card) requireActive(op string) error {
	if c.state != StateActive {
		return fmt.Errorf("%s: %w (state %s)", op, ErrCardNotActive, c.state)
	}
	return nil
}
