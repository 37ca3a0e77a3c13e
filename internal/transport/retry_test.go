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

package transport

import (
	"errors"
	"testing"
	"time"

	iso7816 "github.com/ZaparooProject/go-iso7816"
	"github.com/ZaparooProject/go-iso7816/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollUntil(t *testing.T) {
	t.Parallel()

	t.Run("returns as soon as the operation is done", func(t *testing.T) {
		t.Parallel()
		calls := 0
		got, err := PollUntil(clock.NewFake(time.Millisecond), time.Second, func() (int, bool, error) {
			calls++
			return calls, calls < 3, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, got)
	})

	t.Run("times out on the injected clock", func(t *testing.T) {
		t.Parallel()
		calls := 0
		_, err := PollUntil(clock.NewFake(10*time.Millisecond), 100*time.Millisecond, func() (int, bool, error) {
			calls++
			return 0, true, nil
		})
		require.ErrorIs(t, err, iso7816.ErrProtocolTimeout)
		assert.InDelta(t, 10, calls, 2)
	})

	t.Run("zero timeout still checks once", func(t *testing.T) {
		t.Parallel()
		calls := 0
		got, err := PollUntil(clock.NewFake(time.Millisecond), 0, func() (byte, bool, error) {
			calls++
			return 0x3B, false, nil
		})
		require.NoError(t, err)
		assert.Equal(t, byte(0x3B), got)
		assert.Equal(t, 1, calls)
	})

	t.Run("errors stop polling", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		_, err := PollUntil(clock.NewFake(time.Millisecond), time.Second, func() (int, bool, error) {
			return 0, true, boom
		})
		require.ErrorIs(t, err, boom)
	})
}

func TestWithRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		succeedAt  int
		maxRetries int
		wantCalls  int
		wantErr    bool
	}{
		{name: "first attempt", succeedAt: 1, maxRetries: 2, wantCalls: 1},
		{name: "after retries", succeedAt: 3, maxRetries: 2, wantCalls: 3},
		{name: "exhausted", succeedAt: 10, maxRetries: 2, wantCalls: 3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls, retries := 0, 0
			_, err := WithRetry(RetryConfig{
				Description: "open",
				MaxRetries:  tt.maxRetries,
				OnRetry: func() error {
					retries++
					return nil
				},
			}, func() (string, bool, error) {
				calls++
				return "ok", calls < tt.succeedAt, nil
			})

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "open")
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, tt.wantCalls-1, retries)
		})
	}
}
