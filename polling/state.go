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

package polling

import (
	"errors"
	"time"

	iso7816 "github.com/ZaparooProject/go-iso7816"
)

// SlotState represents the finite state machine of a card slot
type SlotState int

const (
	StateIdle SlotState = iota
	StateInserted
	StateReading
	StateFailed
)

// String returns the state name
func (s SlotState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInserted:
		return "inserted"
	case StateReading:
		return "reading"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CardState tracks the card in a slot
type CardState struct {
	InsertedAt   time.Time
	LastSeenTime time.Time
	ATR          *iso7816.ATR
	LastError    error
	SlotState    SlotState
	Failures     int
	absentPolls  int
	Present      bool
}

// ErrNoCardInPoll indicates the slot was empty during a poll (not an error condition)
var ErrNoCardInPoll = errors.New("no card detected in polling cycle")

// TransitionToInserted records a successful activation
func (cs *CardState) TransitionToInserted(atr *iso7816.ATR, now time.Time) {
	cs.SlotState = StateInserted
	cs.Present = true
	cs.ATR = atr
	cs.InsertedAt = now
	cs.LastSeenTime = now
	cs.LastError = nil
	cs.absentPolls = 0
}

// TransitionToReading marks the insertion callback as running
func (cs *CardState) TransitionToReading() {
	cs.SlotState = StateReading
}

// TransitionToFailed records a failed activation. A card that cannot be
// activated is not reported as present.
func (cs *CardState) TransitionToFailed(err error) {
	cs.SlotState = StateFailed
	cs.LastError = err
	cs.Failures++
}

// TransitionToIdle resets to idle state
func (cs *CardState) TransitionToIdle() {
	cs.SlotState = StateIdle
	cs.Present = false
	cs.ATR = nil
	cs.InsertedAt = time.Time{}
	cs.LastSeenTime = time.Time{}
	cs.LastError = nil
	cs.Failures = 0
	cs.absentPolls = 0
}

// markAbsent counts one empty poll and reports whether debounce has elapsed.
func (cs *CardState) markAbsent(debounce int) bool {
	cs.absentPolls++
	return cs.absentPolls >= debounce
}
