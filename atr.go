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
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// ATR convention and protocol values
const (
	ConventionDirect  = 0x3B
	ConventionInverse = 0x3F
	ProtocolT0        = 0x00
)

// InterfaceByte identifies one of the optional ATR interface bytes read by
// this driver.
type InterfaceByte uint8

const (
	TA1 InterfaceByte = iota
	TB1
	TC1
	TD1
	TA2
	TB2
	TC2
	TD2
)

var interfaceByteNames = [...]string{"TA1", "TB1", "TC1", "TD1", "TA2", "TB2", "TC2", "TD2"}

func (b InterfaceByte) String() string {
	if int(b) < len(interfaceByteNames) {
		return interfaceByteNames[b]
	}
	return fmt.Sprintf("InterfaceByte(%d)", uint8(b))
}

// ATR is a decoded Answer To Reset.
type ATR struct {
	// Interface holds TA1..TD2 indexed by InterfaceByte. Only entries whose
	// presence bit is set carry data.
	Interface [8]byte
	// Historical holds the historical bytes, HistoricalLength() of them valid
	Historical [15]byte
	TS         byte
	T0         byte
	present    uint8
}

// Has reports whether the interface byte was announced and received.
func (a *ATR) Has(b InterfaceByte) bool {
	return a.present&(1<<b) != 0
}

// Get returns the interface byte and whether it is present.
func (a *ATR) Get(b InterfaceByte) (byte, bool) {
	return a.Interface[b], a.Has(b)
}

// HistoricalLength is the low nibble of T0.
func (a *ATR) HistoricalLength() int {
	return int(a.T0 & 0x0F)
}

// HistoricalBytes returns the historical bytes as a slice.
func (a *ATR) HistoricalBytes() []byte {
	return a.Historical[:a.HistoricalLength()]
}

// Protocol returns the protocol announced in TD1, T=0 when TD1 is absent.
func (a *ATR) Protocol() int {
	if td1, ok := a.Get(TD1); ok {
		return int(td1 & 0x0F)
	}
	return ProtocolT0
}

// Negotiable reports whether the card is in negotiable mode, i.e. TD1 does
// not announce a specific-mode TA2.
func (a *ATR) Negotiable() bool {
	return !a.Has(TA2)
}

// FiDi returns the clock rate conversion and baud rate adjustment integers
// selected by TA1. Without TA1 the defaults Fi=372 and Di=1 apply.
func (a *ATR) FiDi() (fi, di int, err error) {
	ta1, ok := a.Get(TA1)
	if !ok {
		ta1 = defaultTA1
	}
	return lookupFiDi(ta1)
}

// WorkWaitingTime returns 960 * WI * Fi / f, the maximum delay between two
// consecutive characters from the card. WI comes from TC2 and defaults to 10.
func (a *ATR) WorkWaitingTime(fi, clockHz int) time.Duration {
	wi := defaultWI
	if tc2, ok := a.Get(TC2); ok && tc2 != 0 {
		wi = int(tc2)
	}
	return workWaitingTime(wi, fi, clockHz)
}

// Bytes re-encodes the ATR in wire order.
func (a *ATR) Bytes() []byte {
	out := []byte{a.TS, a.T0}
	for b := TA1; b <= TD2; b++ {
		if a.Has(b) {
			out = append(out, a.Interface[b])
		}
	}
	return append(out, a.HistoricalBytes()...)
}

// String returns the ATR as upper-case hex separated by spaces.
func (a *ATR) String() string {
	raw := a.Bytes()
	parts := make([]string, len(raw))
	for i, c := range raw {
		parts[i] = strings.ToUpper(hex.EncodeToString([]byte{c}))
	}
	return strings.Join(parts, " ")
}

// Validate checks for direct convention and protocol T=0.
func (a *ATR) Validate() error {
	if a.TS != ConventionDirect {
		return fmt.Errorf("%w: TS=%02X", ErrUnsupportedProtocol, a.TS)
	}
	if p := a.Protocol(); p != ProtocolT0 {
		return fmt.Errorf("%w: T=%d", ErrUnsupportedProtocol, p)
	}
	return nil
}

// ParseATR decodes a captured ATR with the same field gating as activation
// and validates it. Bytes after the historical bytes are ignored.
func ParseATR(raw []byte) (*ATR, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrATRTruncated)
	}
	rest := raw[1:]
	atr, err := decodeATR(raw[0], func() (byte, bool) {
		if len(rest) == 0 {
			return 0, false
		}
		c := rest[0]
		rest = rest[1:]
		return c, true
	})
	if err != nil {
		return nil, err
	}
	if err := atr.Validate(); err != nil {
		return atr, err
	}
	return atr, nil
}

// decodeATR reads the ATR body after TS. Each optional byte is read only if
// its bit is set in the byte that precedes it in the chain: T0 gates
// TA1..TD1 and TD1 gates TA2..TD2.
func decodeATR(ts byte, next func() (byte, bool)) (*ATR, error) {
	atr := &ATR{TS: ts}

	t0, ok := next()
	if !ok {
		return nil, fmt.Errorf("%w: missing T0", ErrATRTruncated)
	}
	atr.T0 = t0

	if err := atr.readGroup(t0, TA1, next); err != nil {
		return nil, err
	}
	if td1, ok := atr.Get(TD1); ok {
		if err := atr.readGroup(td1, TA2, next); err != nil {
			return nil, err
		}
	}

	for i := 0; i < atr.HistoricalLength(); i++ {
		c, ok := next()
		if !ok {
			return nil, fmt.Errorf("%w: %d of %d historical bytes",
				ErrATRTruncated, i, atr.HistoricalLength())
		}
		atr.Historical[i] = c
	}
	return atr, nil
}

// readGroup reads the TAi..TDi bytes announced by bits 4..7 of indicator.
func (a *ATR) readGroup(indicator byte, first InterfaceByte, next func() (byte, bool)) error {
	for i := InterfaceByte(0); i < 4; i++ {
		if indicator&(0x10<<i) == 0 {
			continue
		}
		c, ok := next()
		if !ok {
			return fmt.Errorf("%w: missing %s", ErrATRTruncated, first+i)
		}
		a.Interface[first+i] = c
		a.present |= 1 << (first + i)
	}
	return nil
}
