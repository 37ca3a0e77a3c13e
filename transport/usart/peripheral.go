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

package usart

import (
	"fmt"

	iso7816 "github.com/ZaparooProject/go-iso7816"
)

// Status is the set of USART status flags.
type Status uint16

const (
	// StatusPE is set when the card NACKed the last character (parity error)
	StatusPE Status = 1 << 0
	// StatusFE is a framing error. In smartcard mode some parts report a
	// NACK here instead of in PE.
	StatusFE Status = 1 << 1
	// StatusORE is a hardware receive overrun
	StatusORE Status = 1 << 3
	// StatusRXNE means a received character is waiting in the data register
	StatusRXNE Status = 1 << 5
	// StatusTC means the last character left the shift register
	StatusTC Status = 1 << 6
	// StatusTXE means the data register can take the next character
	StatusTXE Status = 1 << 7
)

// Interrupt is the set of USART interrupt enables.
type Interrupt uint16

const (
	IntRXNE Interrupt = 1 << 5
	IntTC   Interrupt = 1 << 6
	IntTXE  Interrupt = 1 << 7
	IntPE   Interrupt = 1 << 8 // error interrupt, PE and FE
)

// Registers is the smartcard mode programming for Enable. Frame format is
// fixed: 8 data bits plus even parity, 1.5 stop bits, NACK on parity error,
// clock output enabled.
type Registers struct {
	// BRR is the baud rate divider, APB clock / baud with 4 fraction bits
	BRR uint16
	// GTPR holds the guard time in ETU (high byte) and the clock output
	// prescaler (low byte, card clock = APB / (2 * PSC))
	GTPR uint16
	// Interrupts enabled right after the peripheral is switched on
	Interrupts Interrupt
}

// GuardTime returns the guard time field of GTPR
func (r Registers) GuardTime() int {
	return int(r.GTPR >> 8)
}

// Prescaler returns the clock prescaler field of GTPR
func (r Registers) Prescaler() int {
	return int(r.GTPR & 0xFF)
}

// Peripheral is the register-level view of one USART in smartcard mode.
// Implementations exist per board. MaskIRQ and UnmaskIRQ nest; while masked
// the bound handler must not run.
type Peripheral interface {
	// Enable resets the peripheral and programs it
	Enable(regs Registers) error
	// SetBaudDivider reprograms BRR on a running peripheral
	SetBaudDivider(brr uint16) error
	// Disable switches the peripheral off
	Disable() error

	Status() Status
	// ReadData reads the data register, clearing RXNE
	ReadData() byte
	// WriteData writes the data register, clearing TXE, TC and PE
	WriteData(b byte)

	Interrupts() Interrupt
	SetInterrupts(ie Interrupt)

	MaskIRQ()
	UnmaskIRQ()

	// Bind installs the interrupt handler for this peripheral
	Bind(handler func())
	// Unbind removes the interrupt handler
	Unbind()
}

// BaudDivider computes BRR for oversampling by 16. The mantissa/fraction
// split of BRR equals APB / baud, rounded.
func BaudDivider(apbClock, baud int) (uint16, error) {
	if apbClock <= 0 || baud <= 0 {
		return 0, fmt.Errorf("%w: APB %d Hz, baud %d", iso7816.ErrInvalidParameter, apbClock, baud)
	}
	div := (apbClock + baud/2) / baud
	if div < 16 || div > 0xFFFF {
		return 0, fmt.Errorf("%w: baud %d unreachable from APB %d Hz", iso7816.ErrInvalidParameter, baud, apbClock)
	}
	return uint16(div), nil
}

// GuardAndPrescaler computes GTPR for a card clock of clockHz.
func GuardAndPrescaler(apbClock, clockHz, guardETU int) (uint16, error) {
	if clockHz <= 0 {
		return 0, fmt.Errorf("%w: card clock %d Hz", iso7816.ErrInvalidParameter, clockHz)
	}
	psc := apbClock / clockHz / 2
	if psc < 1 || psc > 31 {
		return 0, fmt.Errorf("%w: card clock %d Hz unreachable from APB %d Hz", iso7816.ErrInvalidParameter, clockHz, apbClock)
	}
	if guardETU < 0 || guardETU > 0xFF {
		return 0, fmt.Errorf("%w: guard time %d ETU", iso7816.ErrInvalidParameter, guardETU)
	}
	return uint16(guardETU)<<8 | uint16(psc), nil
}
