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
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseATR_Minimal(t *testing.T) {
	t.Parallel()

	atr, err := ParseATR([]byte{0x3B, 0x00})
	require.NoError(t, err)

	assert.Equal(t, byte(0x3B), atr.TS)
	assert.Zero(t, atr.HistoricalLength())
	for b := TA1; b <= TD2; b++ {
		assert.False(t, atr.Has(b), "%s should be absent", b)
	}
	assert.Equal(t, ProtocolT0, atr.Protocol())
	assert.True(t, atr.Negotiable())
	assert.Equal(t, "3B 00", atr.String())
}

func TestParseATR_FieldGating(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		raw        []byte
		present    []InterfaceByte
		historical []byte
	}{
		{
			name:       "TA1 and TD1 with historical bytes",
			raw:        []byte{0x3B, 0x9A, 0x96, 0x00, 0x80, 0x31, 0xE0, 0x73, 0xFE, 0x21, 0x1B, 0x66, 0xD0, 0x00},
			present:    []InterfaceByte{TA1, TD1},
			historical: []byte{0x80, 0x31, 0xE0, 0x73, 0xFE, 0x21, 0x1B, 0x66, 0xD0, 0x00},
		},
		{
			name:    "all first level bytes",
			raw:     []byte{0x3B, 0xF0, 0x11, 0x00, 0xFF, 0x00},
			present: []InterfaceByte{TA1, TB1, TC1, TD1},
		},
		{
			name:    "second level gated by TD1",
			raw:     []byte{0x3B, 0x80, 0xE0, 0x00, 0x0A, 0x00},
			present: []InterfaceByte{TD1, TB2, TC2, TD2},
		},
		{
			name:       "TB1 only",
			raw:        []byte{0x3B, 0x22, 0x00, 0x14, 0x50},
			present:    []InterfaceByte{TB1},
			historical: []byte{0x14, 0x50},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			atr, err := ParseATR(tt.raw)
			require.NoError(t, err)

			var got []InterfaceByte
			for b := TA1; b <= TD2; b++ {
				if atr.Has(b) {
					got = append(got, b)
				}
			}
			if diff := cmp.Diff(tt.present, got); diff != "" {
				t.Errorf("present bytes mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.historical, atr.HistoricalBytes(), cmp.Comparer(bytesEqual)); diff != "" {
				t.Errorf("historical bytes mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.raw, atr.Bytes()); diff != "" {
				t.Errorf("re-encoding mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func bytesEqual(a, b []byte) bool {
	return string(a) == string(b)
}

func TestParseATR_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wantErr error
		name    string
		raw     []byte
	}{
		{name: "empty", raw: nil, wantErr: ErrATRTruncated},
		{name: "TS only", raw: []byte{0x3B}, wantErr: ErrATRTruncated},
		{name: "TD1 announced but missing", raw: []byte{0x3B, 0x80}, wantErr: ErrATRTruncated},
		{name: "TA2 announced but missing", raw: []byte{0x3B, 0x80, 0x10}, wantErr: ErrATRTruncated},
		{name: "historical bytes short", raw: []byte{0x3B, 0x03, 0x14, 0x50}, wantErr: ErrATRTruncated},
		{name: "inverse convention", raw: []byte{0x3F, 0x00}, wantErr: ErrUnsupportedProtocol},
		{name: "protocol T=1", raw: []byte{0x3B, 0x80, 0x01}, wantErr: ErrUnsupportedProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseATR(tt.raw)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestATR_FiDi(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     []byte
		fi, di  int
		wantErr bool
	}{
		{name: "defaults without TA1", raw: []byte{0x3B, 0x00}, fi: 372, di: 1},
		{name: "TA1 11", raw: []byte{0x3B, 0x10, 0x11}, fi: 372, di: 1},
		{name: "TA1 96", raw: []byte{0x3B, 0x10, 0x96}, fi: 512, di: 32},
		{name: "TA1 18", raw: []byte{0x3B, 0x10, 0x18}, fi: 372, di: 12},
		{name: "reserved Fi", raw: []byte{0x3B, 0x10, 0x71}, wantErr: true},
		{name: "reserved Di", raw: []byte{0x3B, 0x10, 0x1A}, wantErr: true},
		{name: "Di zero", raw: []byte{0x3B, 0x10, 0x10}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			atr, err := ParseATR(tt.raw)
			require.NoError(t, err)

			fi, di, err := atr.FiDi()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidFiDi)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.fi, fi)
			assert.Equal(t, tt.di, di)
		})
	}
}

func TestATR_WorkWaitingTime(t *testing.T) {
	t.Parallel()

	plain, err := ParseATR([]byte{0x3B, 0x00})
	require.NoError(t, err)
	assert.Equal(t, 1190400*time.Microsecond, plain.WorkWaitingTime(372, 3000000))

	// TC2 = 20 doubles the default WI of 10
	withTC2, err := ParseATR([]byte{0x3B, 0x80, 0x40, 0x14})
	require.NoError(t, err)
	assert.Equal(t, 2*1190400*time.Microsecond, withTC2.WorkWaitingTime(372, 3000000))
}

func TestInterfaceByteString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "TA1", TA1.String())
	assert.Equal(t, "TD2", TD2.String())
	assert.Equal(t, "InterfaceByte(9)", InterfaceByte(9).String())
}
