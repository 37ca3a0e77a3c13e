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

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFake_AdvancesPerRead(t *testing.T) {
	t.Parallel()

	f := NewFake(time.Millisecond)
	assert.Equal(t, time.Millisecond, f.Elapsed())
	assert.Equal(t, 2*time.Millisecond, f.Elapsed())

	f.Advance(time.Second)
	assert.Equal(t, time.Second+3*time.Millisecond, f.Elapsed())
}

func TestDeadline(t *testing.T) {
	t.Parallel()

	f := NewFake(0)
	d := After(f, 10*time.Millisecond)
	assert.False(t, d.Expired())
	assert.Equal(t, 10*time.Millisecond, d.Remaining())

	f.Advance(4 * time.Millisecond)
	assert.Equal(t, 6*time.Millisecond, d.Remaining())

	f.Advance(6 * time.Millisecond)
	assert.True(t, d.Expired())
	assert.Zero(t, d.Remaining())
}

func TestWait_TerminatesOnFakeClock(t *testing.T) {
	t.Parallel()

	f := NewFake(time.Millisecond)
	Wait(f, 50*time.Millisecond)
	assert.GreaterOrEqual(t, f.Elapsed(), 50*time.Millisecond)
}

func TestMonotonic_NeverGoesBackwards(t *testing.T) {
	t.Parallel()

	var m Monotonic
	prev := m.Elapsed()
	for i := 0; i < 1000; i++ {
		now := m.Elapsed()
		assert.GreaterOrEqual(t, now, prev)
		prev = now
	}
}
