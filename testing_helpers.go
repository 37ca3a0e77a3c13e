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
	"sync"
	"time"
)

// CardModel is the card side of a MockLine. Reset returns the ATR, Receive
// consumes one character and returns the card's answer.
type CardModel interface {
	Reset() []byte
	Receive(b byte) []byte
}

// MockLine is an in-memory Line and Contacts for tests. Transmitted bytes go
// to the card model (when one is set) and its answers are queued for
// TryReadByte. Echo is absorbed implicitly. Bytes can also be scripted with
// Queue.
type MockLine struct {
	card      CardModel
	errors    map[string]error
	calls     map[string]int
	rx        []byte
	sent      []byte
	config    LineConfig
	baud      int
	mu        sync.Mutex
	enabled   bool
	powered   bool
	resetHigh bool
}

// NewMockLine creates a mock line in front of card, which may be nil.
func NewMockLine(card CardModel) *MockLine {
	return &MockLine{
		card:   card,
		errors: make(map[string]error),
		calls:  make(map[string]int),
	}
}

// Configure records the configuration and enables the line
func (m *MockLine) Configure(cfg LineConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Configure"]++
	if err := m.errors["Configure"]; err != nil {
		return err
	}
	m.config = cfg
	m.baud = cfg.BaudRate
	m.enabled = true
	return nil
}

// SetBaudRate records the new bit rate
func (m *MockLine) SetBaudRate(baud int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["SetBaudRate"]++
	if err := m.errors["SetBaudRate"]; err != nil {
		return err
	}
	m.baud = baud
	return nil
}

// Disable disables the line and drops anything queued
func (m *MockLine) Disable() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Disable"]++
	m.enabled = false
	m.rx = nil
	return m.errors["Disable"]
}

// Transmit hands data to the card model one character at a time
func (m *MockLine) Transmit(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Transmit"]++
	if err := m.errors["Transmit"]; err != nil {
		return err
	}
	if !m.enabled {
		return ErrLineClosed
	}
	m.sent = append(m.sent, data...)
	if m.card == nil || !m.powered {
		return nil
	}
	// Stale input is discarded, like the RX reset of a real line. Scripted
	// lines without a card keep their queue.
	m.rx = m.rx[:0]
	for _, b := range data {
		m.rx = append(m.rx, m.card.Receive(b)...)
	}
	return nil
}

// TryReadByte pops the next queued character. The mock never waits.
func (m *MockLine) TryReadByte(time.Duration) (byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["TryReadByte"]++
	if !m.enabled || len(m.rx) == 0 {
		return 0, false
	}
	b := m.rx[0]
	m.rx = m.rx[1:]
	return b, true
}

// Type returns LineMock
func (*MockLine) Type() LineType {
	return LineMock
}

// SetReset drives RST. A rising edge with power applied resets the card
// model and queues its ATR.
func (m *MockLine) SetReset(high bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["SetReset"]++
	if err := m.errors["SetReset"]; err != nil {
		return err
	}
	rising := high && !m.resetHigh
	m.resetHigh = high
	if rising && m.powered && m.card != nil {
		m.rx = append(m.rx[:0], m.card.Reset()...)
	}
	return nil
}

// SetPower switches VCC
func (m *MockLine) SetPower(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["SetPower"]++
	if err := m.errors["SetPower"]; err != nil {
		return err
	}
	m.powered = on
	return nil
}

// Queue appends characters to the receive side, as if the card sent them.
func (m *MockLine) Queue(data ...byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rx = append(m.rx, data...)
}

// SetError makes the named operation fail with err. A nil err clears it.
func (m *MockLine) SetError(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errors, op)
		return
	}
	m.errors[op] = err
}

// Sent returns every byte transmitted so far
func (m *MockLine) Sent() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.sent...)
}

// ClearSent forgets the transmit history
func (m *MockLine) ClearSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}

// BaudRate returns the current bit rate
func (m *MockLine) BaudRate() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baud
}

// LastConfig returns the configuration passed to the last Configure
func (m *MockLine) LastConfig() LineConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Powered reports whether VCC is on
func (m *MockLine) Powered() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.powered
}

// GetCallCount returns how many times op was called
func (m *MockLine) GetCallCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}
