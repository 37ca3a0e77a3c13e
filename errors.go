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
)

// Protocol errors. Every failure of an activation or an exchange wraps one
// of these, so callers can classify with errors.Is.
var (
	// ErrCardAbsent means no TS character arrived within the t3 guard interval.
	ErrCardAbsent = errors.New("card absent")
	// ErrATRTruncated means the ATR stopped before a byte its own structure announced.
	ErrATRTruncated = errors.New("ATR truncated")
	// ErrUnsupportedProtocol means the card is not direct convention T=0.
	ErrUnsupportedProtocol = errors.New("unsupported convention or protocol")
	// ErrPTSRejected means the card did not echo the PTS request verbatim.
	ErrPTSRejected = errors.New("PTS rejected")
	// ErrInvalidFiDi means TA1 selects a reserved Fi or Di table entry.
	ErrInvalidFiDi = errors.New("invalid Fi/Di")
	// ErrUnexpectedProcedureByte means the card answered with something other than INS.
	ErrUnexpectedProcedureByte = errors.New("unexpected procedure byte")
	// ErrProtocolTimeout means a character read ran out of time mid-exchange.
	ErrProtocolTimeout = errors.New("protocol timeout")
)

// Usage errors.
var (
	ErrCardNotActive    = errors.New("card not active")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrDataTooLarge     = errors.New("data too large")
	ErrLineClosed       = errors.New("line closed")
	// ErrCommandFailed is matched by every *StatusError.
	ErrCommandFailed = errors.New("command failed")
)

// ErrorType classifies how a caller may react to an error
type ErrorType int

const (
	// ErrorTypePermanent errors will not go away by repeating the operation
	ErrorTypePermanent ErrorType = iota
	// ErrorTypeTransient errors may succeed on a fresh activation
	ErrorTypeTransient
	// ErrorTypeTimeout errors are transient errors caused by a silent card
	ErrorTypeTimeout
)

// String returns the name of the error type
func (t ErrorType) String() string {
	switch t {
	case ErrorTypePermanent:
		return "permanent"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(t))
	}
}

// CardError records the operation and protocol state in which a failure happened
type CardError struct {
	Err       error
	Op        string
	State     State
	Type      ErrorType
	Retryable bool
}

// Error implements the error interface
func (e *CardError) Error() string {
	return fmt.Sprintf("%s (state %s): %v", e.Op, e.State, e.Err)
}

// Unwrap returns the underlying error
func (e *CardError) Unwrap() error {
	return e.Err
}

// NewCardError wraps err with the operation and state, classifying it
func NewCardError(op string, state State, err error) *CardError {
	return &CardError{
		Err:       err,
		Op:        op,
		State:     state,
		Type:      GetErrorType(err),
		Retryable: IsRetryable(err),
	}
}

// StatusError is returned when a card answers a command with a status word
// that is not a success.
type StatusError struct {
	Op     string
	Status StatusWord
}

// Error implements the error interface
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %s (%s)", e.Op, e.Status, e.Status.Verbose())
}

// Is lets errors.Is(err, ErrCommandFailed) match any status failure
func (*StatusError) Is(target error) bool {
	return target == ErrCommandFailed
}

// IsRetryable reports whether a fresh activation or exchange may succeed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var cardErr *CardError
	if errors.As(err, &cardErr) {
		return cardErr.Retryable
	}

	switch {
	case errors.Is(err, ErrCardAbsent),
		errors.Is(err, ErrATRTruncated),
		errors.Is(err, ErrPTSRejected),
		errors.Is(err, ErrProtocolTimeout),
		errors.Is(err, ErrUnexpectedProcedureByte):
		return true
	default:
		return false
	}
}

// GetErrorType returns the classification of err
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypePermanent
	}

	var cardErr *CardError
	if errors.As(err, &cardErr) {
		return cardErr.Type
	}

	switch {
	case errors.Is(err, ErrCardAbsent),
		errors.Is(err, ErrATRTruncated),
		errors.Is(err, ErrProtocolTimeout):
		return ErrorTypeTimeout
	case errors.Is(err, ErrPTSRejected),
		errors.Is(err, ErrUnexpectedProcedureByte):
		return ErrorTypeTransient
	default:
		return ErrorTypePermanent
	}
}
