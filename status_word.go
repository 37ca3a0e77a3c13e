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

import "fmt"

// StatusWord is the SW1 SW2 trailer that ends every exchange.
type StatusWord uint16

// Status words this driver produces or inspects.
const (
	SWNoError           StatusWord = 0x9000
	SWFileNotFound      StatusWord = 0x6A82
	SWWrongParameters   StatusWord = 0x6B00
	SWINSNotSupported   StatusWord = 0x6D00
	SWCLANotSupported   StatusWord = 0x6E00
	SWSecurityNotMet    StatusWord = 0x6982
	SWNoEFSelected      StatusWord = 0x6986
	SWWrongLength       StatusWord = 0x6700
	SWUnknown           StatusWord = 0x6F00
	SWCommandNotAllowed StatusWord = 0x6900
)

// NewStatusWord assembles a status word big-endian from its two bytes.
func NewStatusWord(sw1, sw2 byte) StatusWord {
	return StatusWord(uint16(sw1)<<8 | uint16(sw2))
}

// SW1 returns the high byte.
func (sw StatusWord) SW1() byte {
	return byte(sw >> 8)
}

// SW2 returns the low byte.
func (sw StatusWord) SW2() byte {
	return byte(sw)
}

// IsSuccess reports whether SW1 is 0x90 (normal completion) or 0x9F (GSM
// style completion with response data waiting). SW2 is not inspected.
func (sw StatusWord) IsSuccess() bool {
	sw1 := sw.SW1()
	return sw1 == 0x90 || sw1 == 0x9F
}

// ResponseLength returns the number of bytes the card holds for GET RESPONSE,
// as announced by 61xx or 9Fxx. It returns 0 for any other status.
func (sw StatusWord) ResponseLength() int {
	switch sw.SW1() {
	case 0x61, 0x9F:
		return int(sw.SW2())
	default:
		return 0
	}
}

// String returns the status word as four hex digits.
func (sw StatusWord) String() string {
	return fmt.Sprintf("%04X", uint16(sw))
}

var statusText = map[StatusWord]string{
	SWNoError:           "normal processing",
	SWWrongLength:       "wrong length",
	SWCommandNotAllowed: "command not allowed",
	SWSecurityNotMet:    "security status not satisfied",
	SWNoEFSelected:      "command not allowed, no current EF",
	SWFileNotFound:      "file or application not found",
	SWWrongParameters:   "wrong parameters P1-P2",
	SWINSNotSupported:   "instruction not supported",
	SWCLANotSupported:   "class not supported",
	SWUnknown:           "no precise diagnosis",
}

// Verbose returns a short ISO 7816-4 description.
func (sw StatusWord) Verbose() string {
	if s, ok := statusText[sw]; ok {
		return s
	}

	sw1, sw2 := sw.SW1(), sw.SW2()
	switch sw1 {
	case 0x9F:
		return fmt.Sprintf("success, %d response bytes available", sw2)
	case 0x61:
		return fmt.Sprintf("process completed, %d bytes available", sw2)
	case 0x6C:
		return fmt.Sprintf("wrong length, exact length is %d", sw2)
	case 0x62, 0x63:
		return "warning"
	case 0x64, 0x65, 0x66:
		return "execution error"
	case 0x67, 0x68, 0x69, 0x6A, 0x6B:
		return "checking error"
	case 0x90:
		return "normal processing"
	default:
		return "unknown status"
	}
}
