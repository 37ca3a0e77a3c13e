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

// Package serial provides a card line over a host serial port wired to a
// Phoenix style reader. TX and RX share the card's I/O contact, so every
// transmitted character comes back as echo. RTS drives RST and DTR switches
// the card supply.
package serial

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	iso7816 "github.com/ZaparooProject/go-iso7816"
	"github.com/ZaparooProject/go-iso7816/internal/clock"
	"github.com/ZaparooProject/go-iso7816/internal/debug"
	"github.com/ZaparooProject/go-iso7816/internal/transport"
	"go.bug.st/serial"
)

const (
	// DefaultEchoTimeout bounds the wait for the echo of a transmission
	DefaultEchoTimeout = time.Second
	openRetries        = 3
	openRetryDelay     = 100 * time.Millisecond
)

// ErrEchoMismatch is returned in strict echo mode when the echo differs from
// what was sent
var ErrEchoMismatch = errors.New("echo mismatch")

// Port is the part of go.bug.st/serial.Port the line needs
type Port interface {
	io.ReadWriter
	SetMode(mode *serial.Mode) error
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	SetRTS(rts bool) error
	SetDTR(dtr bool) error
	Close() error
}

// Transport implements iso7816.Line and iso7816.Contacts on a serial port.
type Transport struct {
	port        Port
	clock       clock.Clock
	portName    string
	echoTimeout time.Duration
	baud        int
	mu          sync.Mutex
	enabled     bool
	invertReset bool
	strictEcho  bool
}

// Option configures a Transport
type Option func(*Transport)

// WithEchoTimeout bounds the wait for a transmission's echo
func WithEchoTimeout(timeout time.Duration) Option {
	return func(t *Transport) {
		t.echoTimeout = timeout
	}
}

// WithInvertedReset drives RST high while RTS is asserted. Readers differ
// in how RTS is wired.
func WithInvertedReset() Option {
	return func(t *Transport) {
		t.invertReset = true
	}
}

// WithStrictEcho makes a missing or corrupted echo a Transmit error.
func WithStrictEcho() Option {
	return func(t *Transport) {
		t.strictEcho = true
	}
}

// WithClock replaces the monotonic clock, for tests
func WithClock(c iso7816.Clock) Option {
	return func(t *Transport) {
		if c != nil {
			t.clock = c
		}
	}
}

// mode returns the 8E2 frame format of T=0 at the given rate.
func mode(baud int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.EvenParity,
		StopBits: serial.TwoStopBits,
	}
}

// Open opens portName at 9600 baud 8E2. The line stays disabled until
// Configure. A busy port is retried a few times.
func Open(portName string, opts ...Option) (*Transport, error) {
	port, err := transport.WithRetry(transport.RetryConfig{
		Description: "open " + portName,
		MaxRetries:  openRetries,
		RetryDelay:  openRetryDelay,
	}, func() (serial.Port, bool, error) {
		p, err := serial.Open(portName, mode(9600))
		if err == nil {
			return p, false, nil
		}
		var portErr *serial.PortError
		if errors.As(err, &portErr) && portErr.Code() == serial.PortBusy {
			debug.Printf("%s busy, retrying", portName)
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("failed to open %s: %w", portName, err)
	})
	if err != nil {
		return nil, err
	}

	t := NewWithPort(port, opts...)
	t.portName = portName
	return t, nil
}

// NewWithPort wraps an already open port.
func NewWithPort(port Port, opts ...Option) *Transport {
	t := &Transport{
		port:        port,
		clock:       iso7816.SystemClock(),
		echoTimeout: DefaultEchoTimeout,
		baud:        9600,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Configure sets the initial bit rate and 8E2 framing. The reader supplies
// the card clock and guard time, so only BaudRate is used.
func (t *Transport) Configure(cfg iso7816.LineConfig) error {
	if cfg.BaudRate <= 0 {
		return fmt.Errorf("%w: baud %d", iso7816.ErrInvalidParameter, cfg.BaudRate)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return iso7816.ErrLineClosed
	}

	if err := t.port.SetMode(mode(cfg.BaudRate)); err != nil {
		return fmt.Errorf("failed to set serial mode: %w", err)
	}
	if err := t.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("failed to flush input: %w", err)
	}
	t.baud = cfg.BaudRate
	t.enabled = true
	debug.Printf("serial line %s enabled at %d baud", t.portName, cfg.BaudRate)
	return nil
}

// SetBaudRate changes the bit rate after PTS
func (t *Transport) SetBaudRate(baud int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled || t.port == nil {
		return iso7816.ErrLineClosed
	}
	if err := t.port.SetMode(mode(baud)); err != nil {
		return fmt.Errorf("failed to set serial mode: %w", err)
	}
	t.baud = baud
	return nil
}

// Disable stops using the line. The port stays open.
func (t *Transport) Disable() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = false
	return nil
}

// Close closes the port
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = false
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	if err != nil {
		return fmt.Errorf("failed to close %s: %w", t.portName, err)
	}
	return nil
}

// Transmit flushes pending input, writes data and reads back its echo.
func (t *Transport) Transmit(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled || t.port == nil {
		return iso7816.ErrLineClosed
	}
	if err := t.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("failed to flush input: %w", err)
	}
	if _, err := t.port.Write(data); err != nil {
		return fmt.Errorf("failed to write: %w", err)
	}

	echo := make([]byte, len(data))
	got := t.readFull(echo, t.echoTimeout)
	switch {
	case got < len(data):
		debug.Logger().Warn().Int("want", len(data)).Int("got", got).Msg("echo incomplete")
		if t.strictEcho {
			return fmt.Errorf("%w: echo %d of %d bytes", iso7816.ErrProtocolTimeout, got, len(data))
		}
	case string(echo) != string(data):
		debug.Logger().Warn().Hex("sent", data).Hex("echo", echo).Msg("echo mismatch")
		if t.strictEcho {
			return fmt.Errorf("%w: got % X, sent % X", ErrEchoMismatch, echo, data)
		}
	}
	return nil
}

// readFull reads into buf until it is full or timeout has passed.
func (t *Transport) readFull(buf []byte, timeout time.Duration) int {
	deadline := clock.After(t.clock, timeout)
	got := 0
	for got < len(buf) {
		if err := t.port.SetReadTimeout(deadline.Remaining()); err != nil {
			return got
		}
		n, err := t.port.Read(buf[got:])
		got += n
		if err != nil || (n == 0 && deadline.Expired()) {
			break
		}
	}
	return got
}

// TryReadByte reads one character, waiting at most timeout
func (t *Transport) TryReadByte(timeout time.Duration) (byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled || t.port == nil {
		return 0, false
	}
	var b [1]byte
	if t.readFull(b[:], timeout) != 1 {
		return 0, false
	}
	return b[0], true
}

// Type returns the line type
func (*Transport) Type() iso7816.LineType {
	return iso7816.LineSerial
}

// SetReset drives RST through RTS
func (t *Transport) SetReset(high bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return iso7816.ErrLineClosed
	}
	rts := !high
	if t.invertReset {
		rts = high
	}
	if err := t.port.SetRTS(rts); err != nil {
		return fmt.Errorf("failed to set RTS: %w", err)
	}
	return nil
}

// SetPower switches the card supply through DTR
func (t *Transport) SetPower(on bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return iso7816.ErrLineClosed
	}
	if err := t.port.SetDTR(on); err != nil {
		return fmt.Errorf("failed to set DTR: %w", err)
	}
	return nil
}

// BaudRate returns the current bit rate
func (t *Transport) BaudRate() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.baud
}

// PortName returns the device path
func (t *Transport) PortName() string {
	return t.portName
}
