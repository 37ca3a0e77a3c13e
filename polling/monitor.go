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

// Package polling watches a card slot, activating cards as they are
// inserted and deactivating them on removal.
package polling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	iso7816 "github.com/ZaparooProject/go-iso7816"
	"github.com/ZaparooProject/go-iso7816/internal/debug"
)

// Detector reports whether a card sits in the slot. The periph and gpiod
// contacts implement it when a card detect switch is wired.
type Detector interface {
	Present() (bool, error)
}

// Config holds configuration options for the Monitor
type Config struct {
	// PollInterval is the pause between slot checks
	PollInterval time.Duration
	// RemovalDebounce is the number of consecutive empty polls before a
	// card counts as removed
	RemovalDebounce int
	// MaxFailures stops activation attempts on a card that keeps failing
	// until it is removed. Zero retries forever.
	MaxFailures int
}

// DefaultConfig returns sensible default configuration values
func DefaultConfig() *Config {
	return &Config{
		PollInterval:    250 * time.Millisecond,
		RemovalDebounce: 2,
		MaxFailures:     3,
	}
}

// Monitor handles continuous slot monitoring with a state machine. Without
// a Detector presence is probed by activating: a card that does not answer
// reset counts as absent, and a card that fails mid-session counts as
// removed.
type Monitor struct {
	card     *iso7816.Card
	detector Detector
	config   *Config
	now      func() time.Time
	// OnCardInserted runs after a successful activation. Returning an error
	// ends the session: the card is deactivated, reported removed and counted
	// as a failure.
	OnCardInserted func(card *iso7816.Card, atr *iso7816.ATR) error
	OnCardRemoved  func()
	state          CardState
	mu             sync.Mutex
}

// NewMonitor creates a new slot monitor. detector may be nil.
func NewMonitor(card *iso7816.Card, detector Detector, config *Config) *Monitor {
	if config == nil {
		config = DefaultConfig()
	}
	return &Monitor{
		card:     card,
		detector: detector,
		config:   config,
		now:      time.Now,
	}
}

// Start polls until ctx is done
func (m *Monitor) Start(ctx context.Context) error {
	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	for {
		if err := m.Poll(ctx); err != nil && !errors.Is(err, ErrNoCardInPoll) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			debug.Logger().Debug().Err(err).Msg("poll failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// GetState returns the current card state
func (m *Monitor) GetState() CardState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// GetCard returns the monitored card
func (m *Monitor) GetCard() *iso7816.Card {
	return m.card
}

// Close ends any session and powers the slot down
func (m *Monitor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Present {
		m.handleRemoval()
	}
	if err := m.card.Deactivate(); err != nil {
		return fmt.Errorf("failed to deactivate card: %w", err)
	}
	return nil
}

// Poll performs one slot check. It returns ErrNoCardInPoll when the slot
// is empty.
func (m *Monitor) Poll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	present := true
	if m.detector != nil {
		var err error
		present, err = m.detector.Present()
		if err != nil {
			return fmt.Errorf("card detect failed: %w", err)
		}
	}
	if !present {
		m.handleAbsent()
		return ErrNoCardInPoll
	}

	if m.state.Present {
		if m.card.State() == iso7816.StateActive {
			m.state.LastSeenTime = m.now()
			m.state.absentPolls = 0
			return nil
		}
		// The session broke; report it before trying a fresh one
		m.handleRemoval()
	}

	if m.config.MaxFailures > 0 && m.state.Failures >= m.config.MaxFailures {
		return fmt.Errorf("giving up after %d failures: %w", m.state.Failures, m.state.LastError)
	}

	atr, err := m.card.ActivateContext(ctx)
	if err != nil {
		_ = m.card.Deactivate()
		if errors.Is(err, iso7816.ErrCardAbsent) {
			m.state.TransitionToIdle()
			return ErrNoCardInPoll
		}
		m.state.TransitionToFailed(err)
		return fmt.Errorf("activation failed: %w", err)
	}

	m.state.TransitionToInserted(atr, m.now())
	if m.OnCardInserted != nil {
		m.state.TransitionToReading()
		if err := m.OnCardInserted(m.card, atr); err != nil {
			failures := m.state.Failures
			m.handleRemoval()
			m.state.Failures = failures
			m.state.TransitionToFailed(err)
			return fmt.Errorf("card handler failed: %w", err)
		}
		m.state.SlotState = StateInserted
	}
	m.state.Failures = 0
	return nil
}

func (m *Monitor) handleAbsent() {
	if !m.state.Present {
		m.state.TransitionToIdle()
		return
	}
	if m.state.markAbsent(m.config.RemovalDebounce) {
		m.handleRemoval()
	}
}

// handleRemoval powers the card down and notifies the removal callback.
func (m *Monitor) handleRemoval() {
	_ = m.card.Deactivate()
	if m.state.Present && m.OnCardRemoved != nil {
		m.OnCardRemoved()
	}
	m.state.TransitionToIdle()
}
