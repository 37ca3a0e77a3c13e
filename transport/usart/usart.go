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

// Package usart provides the interrupt-driven smartcard line for a
// microcontroller USART running in ISO 7816 mode.
package usart

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	iso7816 "github.com/ZaparooProject/go-iso7816"
	"github.com/ZaparooProject/go-iso7816/internal/clock"
	"github.com/ZaparooProject/go-iso7816/internal/debug"
	"github.com/ZaparooProject/go-iso7816/internal/ring"
	"github.com/ZaparooProject/go-iso7816/internal/transport"
)

const (
	// DefaultAPBClock is the peripheral bus clock feeding the USART
	DefaultAPBClock = 36000000
	// DefaultBufferSize is the capacity of each of the RX and TX rings
	DefaultBufferSize = 512
	// DefaultEchoTimeout bounds the wait for the echo of a transmission
	DefaultEchoTimeout = time.Second
)

// Stats counts line events since the driver was created.
type Stats struct {
	// RXOverruns is the number of received characters lost to a full ring
	RXOverruns uint64
	// TXBytes counts characters written to the data register, retransmits
	// included
	TXBytes uint64
	// Retransmits counts characters repeated after a NACK
	Retransmits uint64
	// EchoTimeouts counts transmissions whose echo did not come back in time
	EchoTimeouts uint64
}

// Driver implements iso7816.Line on a Peripheral. The rings are shared
// with the interrupt handler; foreground code touches them only with the
// interrupt masked.
type Driver struct {
	per         Peripheral
	clock       clock.Clock
	rx          *ring.Buffer
	tx          *ring.Buffer
	regs        Registers
	echoTimeout time.Duration
	apbClock    int
	bufferSize  int
	txBytes     atomic.Uint64
	retransmits atomic.Uint64
	echoLost    atomic.Uint64
	mu          sync.Mutex
	lastSent    byte
	enabled     bool
}

// New creates a driver for per. The peripheral stays off until Configure.
func New(per Peripheral, opts ...Option) (*Driver, error) {
	if per == nil {
		return nil, fmt.Errorf("%w: peripheral is required", iso7816.ErrInvalidParameter)
	}
	d := &Driver{
		per:         per,
		clock:       iso7816.SystemClock(),
		apbClock:    DefaultAPBClock,
		bufferSize:  DefaultBufferSize,
		echoTimeout: DefaultEchoTimeout,
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	d.rx = ring.New(d.bufferSize)
	d.tx = ring.New(d.bufferSize)
	return d, nil
}

// Configure programs the peripheral for the initial cold reset profile and
// binds the interrupt handler. The handler is bound before the peripheral is
// switched on so that the first character of the ATR is not missed.
func (d *Driver) Configure(cfg iso7816.LineConfig) error {
	brr, err := BaudDivider(d.apbClock, cfg.BaudRate)
	if err != nil {
		return err
	}
	gtpr, err := GuardAndPrescaler(d.apbClock, cfg.ClockFrequency, cfg.GuardTimeETU)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.enabled {
		if err := d.disable(); err != nil {
			debug.Logger().Warn().Err(err).Msg("reconfigure")
		}
	}

	d.per.MaskIRQ()
	d.rx.Reset()
	d.tx.Reset()
	d.per.UnmaskIRQ()

	d.regs = Registers{BRR: brr, GTPR: gtpr, Interrupts: IntRXNE | IntPE}
	d.per.Bind(d.handleInterrupt)
	if err := d.per.Enable(d.regs); err != nil {
		d.per.Unbind()
		return fmt.Errorf("failed to enable USART: %w", err)
	}
	d.enabled = true

	debug.Logger().Debug().
		Int("baud", cfg.BaudRate).
		Int("clock_hz", cfg.ClockFrequency).
		Uint16("brr", brr).
		Uint16("gtpr", gtpr).
		Msg("USART enabled")
	return nil
}

// SetBaudRate reprograms the divider after PTS.
func (d *Driver) SetBaudRate(baud int) error {
	brr, err := BaudDivider(d.apbClock, baud)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.enabled {
		return iso7816.ErrLineClosed
	}
	if err := d.per.SetBaudDivider(brr); err != nil {
		return fmt.Errorf("failed to set baud divider: %w", err)
	}
	d.regs.BRR = brr
	debug.Printf("USART baud %d (BRR %d)", baud, brr)
	return nil
}

// Disable switches the peripheral off and unbinds the handler.
func (d *Driver) Disable() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.enabled {
		return nil
	}
	return d.disable()
}

func (d *Driver) disable() error {
	d.enabled = false
	d.per.MaskIRQ()
	d.per.SetInterrupts(0)
	d.per.UnmaskIRQ()
	err := d.per.Disable()
	d.per.Unbind()
	if err != nil {
		return fmt.Errorf("failed to disable USART: %w", err)
	}
	return nil
}

// Transmit queues data for the interrupt handler and absorbs the echo.
// Anything received before the call is discarded. A missing echo is logged
// and counted; the bytes are on the wire either way.
func (d *Driver) Transmit(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.enabled {
		return iso7816.ErrLineClosed
	}

	d.per.MaskIRQ()
	d.rx.Reset()
	if free := d.tx.Cap() - d.tx.Len(); len(data) > free {
		d.per.UnmaskIRQ()
		return fmt.Errorf("%w: %d bytes, %d free in transmit ring", iso7816.ErrDataTooLarge, len(data), free)
	}
	d.tx.Put(data)
	d.per.SetInterrupts(d.per.Interrupts() | IntTXE)
	d.per.UnmaskIRQ()

	n := len(data)
	got, err := transport.PollUntil(d.clock, d.echoTimeout, func() (int, bool, error) {
		d.per.MaskIRQ()
		have := d.rx.Len()
		d.per.UnmaskIRQ()
		return have, have < n, nil
	})
	if err != nil {
		d.echoLost.Add(1)
		debug.Logger().Warn().Err(err).Int("want", n).Int("got", got).Msg("echo incomplete")
	}

	d.per.MaskIRQ()
	d.rx.Drop(n)
	d.per.UnmaskIRQ()
	return nil
}

// TryReadByte returns the oldest received character, polling until timeout.
// A disabled line has nothing to read.
func (d *Driver) TryReadByte(timeout time.Duration) (byte, bool) {
	d.mu.Lock()
	enabled := d.enabled
	d.mu.Unlock()
	if !enabled {
		return 0, false
	}

	type result struct {
		b  byte
		ok bool
	}
	r, err := transport.PollUntil(d.clock, timeout, func() (result, bool, error) {
		d.per.MaskIRQ()
		b, ok := d.rx.GetOne()
		d.per.UnmaskIRQ()
		return result{b, ok}, !ok, nil
	})
	if err != nil {
		return 0, false
	}
	return r.b, r.ok
}

// Type returns the line type
func (*Driver) Type() iso7816.LineType {
	return iso7816.LineUSART
}

// Registers returns the register values last programmed
func (d *Driver) Registers() Registers {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs
}

// Stats returns a snapshot of the event counters
func (d *Driver) Stats() Stats {
	d.per.MaskIRQ()
	overruns := d.rx.Overruns()
	d.per.UnmaskIRQ()
	return Stats{
		RXOverruns:   overruns,
		TXBytes:      d.txBytes.Load(),
		Retransmits:  d.retransmits.Load(),
		EchoTimeouts: d.echoLost.Load(),
	}
}

// handleInterrupt runs in interrupt context. Received characters always go
// to the RX ring. On the transmit side a NACKed character (PE or FE,
// depending on the part) is repeated, the
// next queued character is written while TXE is armed, and once the queue is
// empty TXE is traded for TC, which is disarmed when the last character has
// left the shift register.
func (d *Driver) handleInterrupt() {
	st := d.per.Status()
	ie := d.per.Interrupts()

	if st&StatusRXNE != 0 {
		d.rx.PutOne(d.per.ReadData())
	}

	switch {
	case st&(StatusPE|StatusFE) != 0 && ie&IntPE != 0:
		d.per.WriteData(d.lastSent)
		d.txBytes.Add(1)
		d.retransmits.Add(1)
	case st&StatusTXE != 0 && ie&IntTXE != 0:
		if b, ok := d.tx.GetOne(); ok {
			d.lastSent = b
			d.per.WriteData(b)
			d.txBytes.Add(1)
			return
		}
		d.per.SetInterrupts(ie&^IntTXE | IntTC)
	case st&StatusTC != 0 && ie&IntTC != 0:
		d.per.SetInterrupts(ie &^ IntTC)
	}
}
