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
	"fmt"
	"time"

	"github.com/ZaparooProject/go-iso7816/internal/frame"
)

const (
	defaultTA1 = 0x11 // Fi=372, Di=1
	defaultWI  = frame.DefaultWI
)

// fiTable maps the TA1 high nibble to the clock rate conversion integer.
// Zero entries are reserved for future use.
var fiTable = [16]int{372, 372, 558, 744, 1116, 1488, 1860, 0, 0, 512, 768, 1024, 1536, 2048, 0, 0}

// diTable maps the TA1 low nibble to the baud rate adjustment integer.
var diTable = [16]int{0, 1, 2, 4, 8, 16, 32, 64, 12, 20, 0, 0, 0, 0, 0, 0}

func lookupFiDi(ta1 byte) (fi, di int, err error) {
	fi = fiTable[ta1>>4]
	di = diTable[ta1&0x0F]
	if fi == 0 || di == 0 {
		return 0, 0, fmt.Errorf("%w: TA1=%02X", ErrInvalidFiDi, ta1)
	}
	return fi, di, nil
}

func workWaitingTime(wi, fi, clockHz int) time.Duration {
	if clockHz <= 0 {
		return 0
	}
	cycles := int64(frame.WorkWaitingCycles) * int64(wi) * int64(fi)
	return time.Duration(cycles * int64(time.Second) / int64(clockHz))
}

// cyclesToDuration converts a number of card clock cycles at clockHz.
func cyclesToDuration(cycles, clockHz int) time.Duration {
	return time.Duration(int64(cycles) * int64(time.Second) / int64(clockHz))
}

// BuildPTS returns the PTS request that proposes TA1 of atr: PTSS, PTS0 with
// PTS1 present and the protocol from TD1 (when T0 announces TD1), PTS1 = TA1,
// and PCK.
func BuildPTS(atr *ATR) [frame.PTSLength]byte {
	var proto byte
	if td1, ok := atr.Get(TD1); ok {
		proto = td1 & frame.PTSProtocol
	}
	ta1, _ := atr.Get(TA1)

	req := [frame.PTSLength]byte{frame.PTSS, frame.PTS0PTS1 | proto, ta1}
	req[3] = frame.Checksum(req[:3])
	return req
}

// shouldNegotiate reports whether the ATR offers something to negotiate and
// the card is in negotiable mode.
func shouldNegotiate(atr *ATR) bool {
	return atr.Has(TA1) && atr.Negotiable()
}

// negotiatePTS sends the PTS request and expects it echoed verbatim. On
// success the line is switched to f * Di / Fi and Fi is returned.
func (c *Card) negotiatePTS(atr *ATR, timeout time.Duration) (int, error) {
	req := BuildPTS(atr)
	logger().Debug().Hex("request", req[:]).Msg("PTS")

	if err := c.line.Transmit(req[:]); err != nil {
		return 0, fmt.Errorf("failed to send PTS request: %w", err)
	}

	var resp [frame.PTSLength]byte
	for i := range resp {
		b, ok := c.line.TryReadByte(timeout)
		if !ok {
			return 0, fmt.Errorf("%w: got %d of %d response bytes: %w",
				ErrPTSRejected, i, frame.PTSLength, ErrProtocolTimeout)
		}
		resp[i] = b
	}
	logger().Debug().Hex("response", resp[:]).Msg("PTS")

	if !bytes.Equal(resp[:], req[:]) {
		return 0, fmt.Errorf("%w: sent % X, got % X", ErrPTSRejected, req[:], resp[:])
	}

	fi, di, err := lookupFiDi(req[2])
	if err != nil {
		return 0, err
	}

	baud := c.config.ClockFrequency * di / fi
	if err := c.line.SetBaudRate(baud); err != nil {
		return 0, fmt.Errorf("failed to set baud rate %d: %w", baud, err)
	}
	debugf("PTS accepted: Fi=%d Di=%d baud=%d", fi, di, baud)
	return fi, nil
}
