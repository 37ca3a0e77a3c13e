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
	"sync"

	iso7816 "github.com/ZaparooProject/go-iso7816"
)

// maxHandlerRuns bounds one interrupt storm in the simulator
const maxHandlerRuns = 1 << 16

// Simulator is a Peripheral and iso7816.Contacts backed by a card model. It
// completes every transmission at once: the echo and the card's answer land
// in the receive queue before WriteData returns, and the interrupt handler
// runs as soon as the IRQ is unmasked.
type Simulator struct {
	card      iso7816.CardModel
	handler   func()
	inbox     []byte
	bauds     []uint16
	regs      Registers
	ie        Interrupt
	status    Status
	mask      int
	nack      int
	nackFlag  Status
	mu        sync.Mutex
	inHandler bool
	enabled   bool
	powered   bool
	resetHigh bool
	dropEcho  bool
}

// NewSimulator creates a simulator with card in the slot. card may be nil
// for an empty slot.
func NewSimulator(card iso7816.CardModel) *Simulator {
	return &Simulator{card: card, status: StatusTXE | StatusTC, nackFlag: StatusPE}
}

// Enable implements Peripheral
func (s *Simulator) Enable(regs Registers) error {
	s.mu.Lock()
	s.regs = regs
	s.ie = regs.Interrupts
	s.inbox = nil
	s.status = StatusTXE | StatusTC
	s.enabled = true
	s.mu.Unlock()
	s.service()
	return nil
}

// SetBaudDivider implements Peripheral
func (s *Simulator) SetBaudDivider(brr uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs.BRR = brr
	s.bauds = append(s.bauds, brr)
	return nil
}

// Disable implements Peripheral
func (s *Simulator) Disable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = false
	s.ie = 0
	s.inbox = nil
	return nil
}

// Status implements Peripheral
func (s *Simulator) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Simulator) statusLocked() Status {
	st := s.status
	if len(s.inbox) > 0 {
		st |= StatusRXNE
	}
	return st
}

// ReadData implements Peripheral
func (s *Simulator) ReadData() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.inbox) == 0 {
		return 0
	}
	b := s.inbox[0]
	s.inbox = s.inbox[1:]
	return b
}

// WriteData implements Peripheral. A character marked for NACK sets PE and
// produces neither echo nor card input.
func (s *Simulator) WriteData(b byte) {
	s.mu.Lock()
	s.status &^= StatusPE | StatusFE
	if !s.enabled {
		s.mu.Unlock()
		return
	}
	if s.nack > 0 {
		s.nack--
		s.status |= s.nackFlag
		s.mu.Unlock()
		s.service()
		return
	}
	if !s.dropEcho {
		s.inbox = append(s.inbox, b)
	}
	if s.card != nil && s.powered {
		s.inbox = append(s.inbox, s.card.Receive(b)...)
	}
	s.mu.Unlock()
	s.service()
}

// Interrupts implements Peripheral
func (s *Simulator) Interrupts() Interrupt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ie
}

// SetInterrupts implements Peripheral
func (s *Simulator) SetInterrupts(ie Interrupt) {
	s.mu.Lock()
	s.ie = ie
	s.mu.Unlock()
	s.service()
}

// MaskIRQ implements Peripheral
func (s *Simulator) MaskIRQ() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mask++
}

// UnmaskIRQ implements Peripheral. Dropping the last mask level delivers
// anything that became pending while masked.
func (s *Simulator) UnmaskIRQ() {
	s.mu.Lock()
	if s.mask > 0 {
		s.mask--
	}
	s.mu.Unlock()
	s.service()
}

// Bind implements Peripheral
func (s *Simulator) Bind(handler func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// Unbind implements Peripheral
func (s *Simulator) Unbind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = nil
}

// SetReset implements iso7816.Contacts. A rising edge with power applied
// resets the card, which answers with its ATR.
func (s *Simulator) SetReset(high bool) error {
	s.mu.Lock()
	rising := high && !s.resetHigh
	s.resetHigh = high
	if rising && s.powered && s.enabled && s.card != nil {
		s.inbox = append(s.inbox, s.card.Reset()...)
	}
	s.mu.Unlock()
	s.service()
	return nil
}

// SetPower implements iso7816.Contacts
func (s *Simulator) SetPower(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.powered = on
	return nil
}

// NACKNext makes the card reject the next n characters
func (s *Simulator) NACKNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nack = n
}

// NACKFlag selects the status flag a rejected character raises. Parts
// differ: some report the NACK as PE, others as FE.
func (s *Simulator) NACKFlag(flag Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nackFlag = flag
}

// DropEcho suppresses the echo of every transmitted character
func (s *Simulator) DropEcho(drop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropEcho = drop
}

// Inject places characters on the line as if the card sent them
func (s *Simulator) Inject(data ...byte) {
	s.mu.Lock()
	if s.enabled {
		s.inbox = append(s.inbox, data...)
	}
	s.mu.Unlock()
	s.service()
}

// Registers returns the values last programmed
func (s *Simulator) Registers() Registers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs
}

// BaudDividers returns every divider set with SetBaudDivider
func (s *Simulator) BaudDividers() []uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint16(nil), s.bauds...)
}

// Bound reports whether a handler is installed
func (s *Simulator) Bound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handler != nil
}

// Masked reports whether the IRQ is currently masked
func (s *Simulator) Masked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mask > 0
}

func (s *Simulator) irqAsserted() bool {
	st := s.statusLocked()
	return (st&StatusRXNE != 0 && s.ie&IntRXNE != 0) ||
		(st&(StatusPE|StatusFE) != 0 && s.ie&IntPE != 0) ||
		(st&StatusTXE != 0 && s.ie&IntTXE != 0) ||
		(st&StatusTC != 0 && s.ie&IntTC != 0)
}

// service runs the handler while the IRQ is asserted, unless masked or
// already inside the handler.
func (s *Simulator) service() {
	s.mu.Lock()
	if s.mask > 0 || s.inHandler {
		s.mu.Unlock()
		return
	}
	s.inHandler = true
	for i := 0; i < maxHandlerRuns && s.handler != nil && s.enabled && s.irqAsserted(); i++ {
		h := s.handler
		s.mu.Unlock()
		h()
		s.mu.Lock()
	}
	s.inHandler = false
	s.mu.Unlock()
}
