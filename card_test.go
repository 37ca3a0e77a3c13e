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
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ZaparooProject/go-iso7816/internal/clock"
	testutil "github.com/ZaparooProject/go-iso7816/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCard(t *testing.T, model CardModel, opts ...Option) (*Card, *MockLine) {
	t.Helper()
	line := NewMockLine(model)
	opts = append([]Option{WithClock(clock.NewFake(time.Millisecond))}, opts...)
	card, err := New(line, line, opts...)
	require.NoError(t, err)
	return card, line
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	line := NewMockLine(nil)
	_, err := New(nil, line)
	require.ErrorIs(t, err, ErrInvalidParameter)

	_, err = New(line, line, WithClockFrequency(500000))
	require.ErrorIs(t, err, ErrInvalidParameter)

	_, err = New(line, line, WithGuardCycles(0))
	require.ErrorIs(t, err, ErrInvalidParameter)

	_, err = New(line, line, WithClock(nil))
	require.ErrorIs(t, err, ErrInvalidParameter)

	card, err := New(line, line)
	require.NoError(t, err)
	assert.Equal(t, StateDeactivated, card.State())
	assert.Equal(t, 3000000, card.Config().ClockFrequency)
}

func TestCard_ActivateWithPTS(t *testing.T) {
	t.Parallel()

	vc := testutil.NewVirtualCard(testutil.DefaultATR)
	card, line := newTestCard(t, vc)

	atr, err := card.Activate()
	require.NoError(t, err)

	assert.Equal(t, StateActive, card.State())
	assert.Equal(t, testutil.DefaultATR, atr.Bytes())
	assert.Same(t, atr, card.ATR())
	assert.True(t, vc.PTSSeen())
	assert.Equal(t, []byte{0xFF, 0x10, 0x96, 0x79}, line.Sent())

	assert.Equal(t, LineConfig{BaudRate: 3000000 / 372, ClockFrequency: 3000000, GuardTimeETU: 16}, line.LastConfig())
	assert.Equal(t, 3000000*32/512, line.BaudRate())
	assert.True(t, line.Powered())
}

func TestCard_ActivateWithoutPTS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		atr  []byte
		opts []Option
	}{
		{name: "nothing to negotiate", atr: testutil.PlainATR},
		{name: "negotiation disabled", atr: testutil.DefaultATR, opts: []Option{WithPTS(false)}},
		{name: "specific mode", atr: []byte{0x3B, 0x90, 0x96, 0x10, 0x80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			vc := testutil.NewVirtualCard(tt.atr)
			card, line := newTestCard(t, vc, tt.opts...)

			_, err := card.Activate()
			require.NoError(t, err)
			assert.False(t, vc.PTSSeen())
			assert.Empty(t, line.Sent())
			assert.Equal(t, 3000000/372, line.BaudRate())
		})
	}
}

func TestCard_ActivateScripted(t *testing.T) {
	t.Parallel()

	card, line := newTestCard(t, nil)
	line.Queue(0x3B, 0x00)

	atr, err := card.Activate()
	require.NoError(t, err)
	assert.Zero(t, atr.HistoricalLength())
	assert.Equal(t, StateActive, card.State())
}

func TestCard_ActivateFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		setup     func(*MockLine, *testutil.VirtualCard)
		wantErr   error
		name      string
		atr       []byte
		wantState State
	}{
		{
			name:      "no card",
			setup:     func(_ *MockLine, vc *testutil.VirtualCard) { vc.Present = false },
			wantErr:   ErrCardAbsent,
			wantState: StateAwaitingATR,
		},
		{
			name:      "TD1 never arrives",
			atr:       []byte{0x3B, 0x80},
			wantErr:   ErrATRTruncated,
			wantState: StateReadingATR,
		},
		{
			name:      "protocol T=1",
			atr:       []byte{0x3B, 0x80, 0x01},
			wantErr:   ErrUnsupportedProtocol,
			wantState: StateReadingATR,
		},
		{
			name:      "inverse convention",
			atr:       []byte{0x3F, 0x00},
			wantErr:   ErrUnsupportedProtocol,
			wantState: StateReadingATR,
		},
		{
			name:      "PTS rejected",
			atr:       testutil.DefaultATR,
			setup:     func(_ *MockLine, vc *testutil.VirtualCard) { vc.RejectPTS = true },
			wantErr:   ErrPTSRejected,
			wantState: StateNegotiatingPTS,
		},
		{
			name:      "PTS unanswered",
			atr:       testutil.DefaultATR,
			setup:     func(_ *MockLine, vc *testutil.VirtualCard) { vc.Mute = true },
			wantErr:   ErrPTSRejected,
			wantState: StateNegotiatingPTS,
		},
		{
			name:      "reserved Fi",
			atr:       []byte{0x3B, 0x10, 0x71},
			wantErr:   ErrInvalidFiDi,
			wantState: StateNegotiatingPTS,
		},
		{
			name: "line cannot be configured",
			setup: func(line *MockLine, _ *testutil.VirtualCard) {
				line.SetError("Configure", errors.New("peripheral busy"))
			},
			wantState: StateResetting,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			vc := testutil.NewVirtualCard(tt.atr)
			card, line := newTestCard(t, vc)
			if tt.setup != nil {
				tt.setup(line, vc)
			}

			atr, err := card.Activate()
			require.Error(t, err)
			assert.Nil(t, atr)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}

			var cardErr *CardError
			require.ErrorAs(t, err, &cardErr)
			assert.Equal(t, tt.wantState, cardErr.State)
			assert.Equal(t, StateError, card.State())
			assert.Nil(t, card.ATR())
		})
	}
}

func TestCard_Deactivate(t *testing.T) {
	t.Parallel()

	card, line := newTestCard(t, testutil.NewVirtualSIM())
	_, err := card.Activate()
	require.NoError(t, err)

	require.NoError(t, card.Deactivate())
	assert.Equal(t, StateDeactivated, card.State())
	assert.Nil(t, card.ATR())
	assert.False(t, line.Powered())

	_, err = card.SelectFile(ClassGSM, 0, 0, []byte{0x3F, 0x00})
	require.ErrorIs(t, err, ErrCardNotActive)

	// hardware failures do not surface
	line.SetError("Disable", errors.New("gone"))
	assert.NoError(t, card.Deactivate())
}

// Not parallel: the logger is process-wide.
func TestCard_DeactivateLogs(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))
	defer SetDebugEnabled(false)

	card, _ := newTestCard(t, nil)
	require.NoError(t, card.Deactivate())
	assert.Contains(t, buf.String(), `"message":"card deactivated"`)
}

func TestCard_ReactivateFromError(t *testing.T) {
	t.Parallel()

	vc := testutil.NewVirtualSIM()
	vc.Present = false
	card, _ := newTestCard(t, vc)

	_, err := card.Activate()
	require.ErrorIs(t, err, ErrCardAbsent)

	vc.Present = true
	_, err = card.Activate()
	require.NoError(t, err)
	assert.Equal(t, StateActive, card.State())
}

func TestCard_ActivateContextCancelled(t *testing.T) {
	t.Parallel()

	card, line := newTestCard(t, testutil.NewVirtualSIM())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := card.ActivateContext(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, line.GetCallCount("Configure"))
}

// flakyCard stays silent for the first failures resets
type flakyCard struct {
	*testutil.VirtualCard
	failures int
}

func (f *flakyCard) Reset() []byte {
	atr := f.VirtualCard.Reset()
	if f.failures > 0 {
		f.failures--
		return nil
	}
	return atr
}

func fastRetry(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Microsecond,
		MaxBackoff:        10 * time.Microsecond,
		BackoffMultiplier: 2.0,
		RetryTimeout:      time.Second,
	}
}

func TestCard_ActivateWithRetry(t *testing.T) {
	t.Parallel()

	t.Run("succeeds after silent resets", func(t *testing.T) {
		t.Parallel()

		model := &flakyCard{VirtualCard: testutil.NewVirtualSIM(), failures: 2}
		card, line := newTestCard(t, model, WithRetryConfig(fastRetry(3)))

		atr, err := card.ActivateWithRetry(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, atr)
		assert.Equal(t, 3, line.GetCallCount("Configure"))
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		t.Parallel()

		vc := testutil.NewVirtualSIM()
		vc.Present = false
		card, line := newTestCard(t, vc, WithRetryConfig(fastRetry(3)), WithMaxRetries(2))

		_, err := card.ActivateWithRetry(context.Background())
		require.ErrorIs(t, err, ErrCardAbsent)
		assert.Equal(t, 2, line.GetCallCount("Configure"))
		assert.Equal(t, StateDeactivated, card.State())
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		t.Parallel()

		card, line := newTestCard(t, testutil.NewVirtualCard([]byte{0x3F, 0x00}), WithRetryConfig(fastRetry(3)))

		_, err := card.ActivateWithRetry(context.Background())
		require.ErrorIs(t, err, ErrUnsupportedProtocol)
		assert.Equal(t, 1, line.GetCallCount("Configure"))
	})
}

func TestStateString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "negotiating PTS", StateNegotiatingPTS.String())
	assert.Equal(t, "State(42)", State(42).String())
}
