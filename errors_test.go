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
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	t.Parallel()
	tests := getIsRetryableTestCases()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := IsRetryable(tt.err)
			if got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func getIsRetryableTestCases() []struct {
	err  error
	name string
	want bool
} {
	return []struct {
		err  error
		name string
		want bool
	}{
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name: "card absent retryable",
			err:  ErrCardAbsent,
			want: true,
		},
		{
			name: "ATR truncated retryable",
			err:  ErrATRTruncated,
			want: true,
		},
		{
			name: "PTS rejected retryable",
			err:  ErrPTSRejected,
			want: true,
		},
		{
			name: "protocol timeout retryable",
			err:  ErrProtocolTimeout,
			want: true,
		},
		{
			name: "unexpected procedure byte retryable",
			err:  ErrUnexpectedProcedureByte,
			want: true,
		},
		{
			name: "unsupported protocol not retryable",
			err:  ErrUnsupportedProtocol,
			want: false,
		},
		{
			name: "invalid Fi/Di not retryable",
			err:  ErrInvalidFiDi,
			want: false,
		},
		{
			name: "invalid parameter not retryable",
			err:  ErrInvalidParameter,
			want: false,
		},
		{
			name: "status error not retryable",
			err:  &StatusError{Op: "select file", Status: SWFileNotFound},
			want: false,
		},
		{
			name: "wrapped retryable error",
			err:  fmt.Errorf("outer: %w", ErrProtocolTimeout),
			want: true,
		},
		{
			name: "text only copy is not retryable",
			err:  errors.New("outer: " + ErrProtocolTimeout.Error()),
			want: false,
		},
	}
}

func TestGetErrorType(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		name string
		want ErrorType
	}{
		{name: "nil", err: nil, want: ErrorTypePermanent},
		{name: "card absent", err: ErrCardAbsent, want: ErrorTypeTimeout},
		{name: "ATR truncated", err: ErrATRTruncated, want: ErrorTypeTimeout},
		{name: "protocol timeout", err: ErrProtocolTimeout, want: ErrorTypeTimeout},
		{name: "PTS rejected", err: ErrPTSRejected, want: ErrorTypeTransient},
		{name: "procedure byte", err: ErrUnexpectedProcedureByte, want: ErrorTypeTransient},
		{name: "unsupported protocol", err: ErrUnsupportedProtocol, want: ErrorTypePermanent},
		{name: "card error keeps its type", err: NewCardError("activate", StateReadingATR, ErrATRTruncated), want: ErrorTypeTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := GetErrorType(tt.err); got != tt.want {
				t.Errorf("GetErrorType() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCardError(t *testing.T) {
	t.Parallel()

	err := NewCardError("activate", StateAwaitingATR, fmt.Errorf("%w: no TS", ErrCardAbsent))

	if !errors.Is(err, ErrCardAbsent) {
		t.Error("CardError should unwrap to its sentinel")
	}
	if !err.Retryable || err.Type != ErrorTypeTimeout {
		t.Errorf("unexpected classification: retryable=%v type=%v", err.Retryable, err.Type)
	}
	msg := err.Error()
	for _, part := range []string{"activate", "awaiting ATR", "card absent"} {
		if !strings.Contains(msg, part) {
			t.Errorf("Error() = %q, missing %q", msg, part)
		}
	}
}

func TestStatusError(t *testing.T) {
	t.Parallel()

	var err error = &StatusError{Op: "read binary", Status: NewStatusWord(0x6A, 0x82)}

	if !errors.Is(err, ErrCommandFailed) {
		t.Error("StatusError should match ErrCommandFailed")
	}
	if errors.Is(err, ErrProtocolTimeout) {
		t.Error("StatusError should not match protocol errors")
	}
	if got := err.Error(); !strings.Contains(got, "6A82") || !strings.Contains(got, "not found") {
		t.Errorf("Error() = %q", got)
	}
}

func TestErrorTypeString(t *testing.T) {
	t.Parallel()
	for typ, want := range map[ErrorType]string{
		ErrorTypePermanent: "permanent",
		ErrorTypeTransient: "transient",
		ErrorTypeTimeout:   "timeout",
		ErrorType(9):       "ErrorType(9)",
	} {
		if got := typ.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
