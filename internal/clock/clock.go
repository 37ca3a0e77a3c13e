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

// Package clock provides the monotonic elapsed-time source used to bound
// every wait on the card line.
package clock

import (
	"sync"
	"time"
)

// Clock reports monotonic time elapsed since an arbitrary origin.
type Clock interface {
	Elapsed() time.Duration
}

// Deadline is a point on a Clock's timeline.
type Deadline struct {
	clock Clock
	at    time.Duration
}

// After returns the deadline d from now on c.
func After(c Clock, d time.Duration) Deadline {
	return Deadline{clock: c, at: c.Elapsed() + d}
}

// Expired reports whether the deadline has passed.
func (d Deadline) Expired() bool {
	return d.clock.Elapsed() >= d.at
}

// Remaining returns the time left before expiry, never negative.
func (d Deadline) Remaining() time.Duration {
	left := d.at - d.clock.Elapsed()
	if left < 0 {
		return 0
	}
	return left
}

// Wait spins until d has elapsed on c. Guard intervals on the card line are
// a few milliseconds, so yielding between polls is enough.
func Wait(c Clock, d time.Duration) {
	deadline := After(c, d)
	for !deadline.Expired() {
		yield()
	}
}

// Fake is a deterministic Clock for tests. Every call to Elapsed advances
// it by Step, so polling loops terminate without sleeping.
type Fake struct {
	now  time.Duration
	Step time.Duration
	mu   sync.Mutex
}

// NewFake returns a fake clock advancing by step per read.
func NewFake(step time.Duration) *Fake {
	return &Fake{Step: step}
}

// Elapsed implements Clock.
func (f *Fake) Elapsed() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now += f.Step
	return f.now
}

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now += d
}
