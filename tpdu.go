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
	"context"
	"fmt"
)

// Header is the CLA INS P1 P2 prefix of a T=0 command. P3 is sent
// separately.
type Header struct {
	CLA byte
	INS byte
	P1  byte
	P2  byte
}

// Bytes returns the header in wire order
func (h Header) Bytes() []byte {
	return []byte{h.CLA, h.INS, h.P1, h.P2}
}

// String implements fmt.Stringer
func (h Header) String() string {
	return fmt.Sprintf("%02X %02X %02X %02X", h.CLA, h.INS, h.P1, h.P2)
}

// Case is the ISO 7816-3 command case. It selects the shape of the exchange,
// not the header layout.
type Case int

const (
	// Case1 has no command data and no response data
	Case1 Case = iota + 1
	// Case2 has response data only
	Case2
	// Case3 has command data only
	Case3
	// Case4 has command and response data
	Case4
)

// String implements fmt.Stringer
func (c Case) String() string {
	switch c {
	case Case1, Case2, Case3, Case4:
		return fmt.Sprintf("case %d", int(c))
	default:
		return fmt.Sprintf("Case(%d)", int(c))
	}
}

// HasCommandData reports whether the case carries a command body
func (c Case) HasCommandData() bool {
	return c == Case3 || c == Case4
}

// SendTPDU runs one T=0 exchange. The header and P3 are transmitted with echo
// absorption. Without command data the status word follows immediately; with
// command data the card must first answer with INS as procedure byte.
//
// For Case1 and Case2 P3 is 0 and data must be empty; response data is
// fetched with GetResponse or ReadBinary. For Case3 and Case4 P3 is
// len(data), which must be 1..255.
func (c *Card) SendTPDU(h Header, data []byte, cs Case) (StatusWord, error) {
	return c.SendTPDUContext(context.Background(), h, data, cs)
}

// SendTPDUContext is SendTPDU with a cancellation check before the exchange
// starts. Once bytes are on the wire the exchange runs to completion.
func (c *Card) SendTPDUContext(ctx context.Context, h Header, data []byte, cs Case) (StatusWord, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("send TPDU cancelled: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendTPDU(h, data, cs)
}

func (c *Card) sendTPDU(h Header, data []byte, cs Case) (StatusWord, error) {
	const op = "send TPDU"
	if err := c.requireActive(op); err != nil {
		return 0, err
	}

	var p3 byte
	switch {
	case cs == Case1 || cs == Case2:
		if len(data) != 0 {
			return 0, fmt.Errorf("%s: %w: %s carries no command data", op, ErrInvalidParameter, cs)
		}
	case cs.HasCommandData():
		if len(data) == 0 {
			return 0, fmt.Errorf("%s: %w: %s needs command data", op, ErrInvalidParameter, cs)
		}
		if len(data) > 255 {
			return 0, fmt.Errorf("%s: %w: %d bytes", op, ErrDataTooLarge, len(data))
		}
		p3 = byte(len(data))
	default:
		return 0, fmt.Errorf("%s: %w: %s", op, ErrInvalidParameter, cs)
	}

	logger().Debug().
		Stringer("header", h).
		Uint8("p3", p3).
		Stringer("case", cs).
		Msg("TPDU")

	if err := c.sendHeader(h, p3); err != nil {
		return 0, c.fail(op, err)
	}

	if cs.HasCommandData() {
		if err := c.expectProcedure(h.INS); err != nil {
			return 0, c.fail(op, err)
		}
		if err := c.line.Transmit(data); err != nil {
			return 0, c.fail(op, fmt.Errorf("failed to send command data: %w", err))
		}
	}

	sw, err := c.readStatus()
	if err != nil {
		return 0, c.fail(op, err)
	}
	return sw, nil
}

// sendHeader transmits CLA INS P1 P2 and then P3, each with echo absorption.
func (c *Card) sendHeader(h Header, p3 byte) error {
	if err := c.line.Transmit(h.Bytes()); err != nil {
		return fmt.Errorf("failed to send header: %w", err)
	}
	if err := c.line.Transmit([]byte{p3}); err != nil {
		return fmt.Errorf("failed to send P3: %w", err)
	}
	return nil
}

// expectProcedure reads one procedure byte and requires it to equal ins.
// NULL (0x60) and early SW1 are not accepted.
func (c *Card) expectProcedure(ins byte) error {
	pb, ok := c.line.TryReadByte(c.charTimeout)
	if !ok {
		return fmt.Errorf("%w: no procedure byte", ErrProtocolTimeout)
	}
	if pb != ins {
		return fmt.Errorf("%w: got %02X, want %02X", ErrUnexpectedProcedureByte, pb, ins)
	}
	return nil
}

func (c *Card) readStatus() (StatusWord, error) {
	sw1, ok := c.line.TryReadByte(c.charTimeout)
	if !ok {
		return 0, fmt.Errorf("%w: no SW1", ErrProtocolTimeout)
	}
	sw2, ok := c.line.TryReadByte(c.charTimeout)
	if !ok {
		return 0, fmt.Errorf("%w: no SW2 after SW1=%02X", ErrProtocolTimeout, sw1)
	}
	sw := NewStatusWord(sw1, sw2)
	logger().Debug().Stringer("sw", sw).Msg("status")
	return sw, nil
}
