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
	"fmt"

	"github.com/ZaparooProject/go-iso7816/internal/frame"
)

// SelectFile issues SELECT (INS A4) as a case 3 command with name as the
// command data. The returned status word lets callers see how many response
// bytes are waiting (9Fxx, 61xx). A status whose SW1 is neither 90 nor 9F is
// reported as *StatusError and leaves the card active.
func (c *Card) SelectFile(cla, p1, p2 byte, name []byte) (StatusWord, error) {
	const op = "select file"
	c.mu.Lock()
	defer c.mu.Unlock()

	sw, err := c.sendTPDU(Header{CLA: cla, INS: frame.InsSelectFile, P1: p1, P2: p2}, name, Case3)
	if err != nil {
		return 0, err
	}
	if !sw.IsSuccess() {
		return sw, &StatusError{Op: op, Status: sw}
	}
	debugf("selected % X, status %s", name, sw)
	return sw, nil
}

// ReadBinary reads len(buf) bytes from offset 0 of the current EF.
func (c *Card) ReadBinary(cla byte, buf []byte) (int, error) {
	return c.ReadBinaryAt(cla, 0, buf)
}

// ReadBinaryAt reads len(buf) bytes from the current EF starting at offset,
// which must fit in 15 bits.
func (c *Card) ReadBinaryAt(cla byte, offset int, buf []byte) (int, error) {
	if offset < 0 || offset > 0x7FFF {
		return 0, fmt.Errorf("read binary: %w: offset %d", ErrInvalidParameter, offset)
	}
	h := Header{CLA: cla, INS: frame.InsReadBinary, P1: byte(offset >> 8), P2: byte(offset)}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readData("read binary", h, buf)
}

// GetResponse fetches len(buf) response bytes left by the previous command.
func (c *Card) GetResponse(cla byte, buf []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readData("get response", Header{CLA: cla, INS: frame.InsGetResponse}, buf)
}

// readData runs an outgoing-data exchange: header, P3 = len(buf), procedure
// byte equal to INS, exactly len(buf) data bytes, then the status word.
func (c *Card) readData(op string, h Header, buf []byte) (int, error) {
	if err := c.requireActive(op); err != nil {
		return 0, err
	}
	n := len(buf)
	if n == 0 || n > frame.MaxShortDataLength {
		return 0, fmt.Errorf("%s: %w: length %d not in 1..%d", op, ErrInvalidParameter, n, frame.MaxShortDataLength)
	}

	// P3 = 00 asks for 256 bytes
	p3 := byte(n)

	logger().Debug().Stringer("header", h).Int("le", n).Msg(op)

	if err := c.sendHeader(h, p3); err != nil {
		return 0, c.fail(op, err)
	}
	if err := c.expectProcedure(h.INS); err != nil {
		return 0, c.fail(op, err)
	}
	for i := range buf {
		b, ok := c.line.TryReadByte(c.charTimeout)
		if !ok {
			return 0, c.fail(op, fmt.Errorf("%w: got %d of %d data bytes", ErrProtocolTimeout, i, n))
		}
		buf[i] = b
	}

	sw, err := c.readStatus()
	if err != nil {
		return 0, c.fail(op, err)
	}
	if !sw.IsSuccess() {
		return 0, &StatusError{Op: op, Status: sw}
	}
	logger().Debug().Hex("data", buf).Msg(op)
	return n, nil
}
