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

// Package frame holds the ISO 7816-3 character-level constants and check
// characters shared by the card protocol and the card models used in tests.
package frame

// PTS frame layout
const (
	PTSS        = 0xFF // initial character of a PTS request
	PTS0PTS1    = 0x10 // PTS0 bit announcing PTS1
	PTSLength   = 4    // PTSS, PTS0, PTS1, PCK
	PTSProtocol = 0x0F // PTS0 protocol nibble
)

// Procedure bytes a T=0 card may send instead of INS.
const (
	ProcedureNull = 0x60 // card requests more time
)

// Instruction bytes used by this driver.
const (
	InsSelectFile  = 0xA4
	InsReadBinary  = 0xB0
	InsGetResponse = 0xC0
)

// Default timing from ISO 7816-3.
const (
	DefaultFi          = 372 // clock cycles per ETU after a cold reset
	DefaultClockHz     = 3000000
	T3Cycles           = 40000 // reset hold and answer window, in clock cycles
	DefaultGuardETU    = 16
	DefaultWI          = 10
	WorkWaitingCycles  = 960
	MaxShortDataLength = 256
)

// Checksum XORs every byte of data. It is the PCK check character of a PTS
// request and the TCK of an ATR.
func Checksum(data []byte) byte {
	var x byte
	for _, b := range data {
		x ^= b
	}
	return x
}

// ValidateChecksum reports whether data, check character included, XORs to
// zero. It returns true when the frame must be rejected.
func ValidateChecksum(data []byte) bool {
	return Checksum(data) != 0
}
