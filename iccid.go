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
	"strings"
)

// GSM class byte and the files on the path to EF ICCID.
const (
	ClassGSM = 0xA0
	// ICCIDLength is the size of EF ICCID in bytes
	ICCIDLength = 10
)

var (
	fileMF    = []byte{0x3F, 0x00}
	fileICCID = []byte{0x2F, 0xE2}
)

// ReadICCID selects MF and EF ICCID with the GSM class byte, reads the file
// and returns the identification number as decimal digits.
func (c *Card) ReadICCID() (string, error) {
	if _, err := c.SelectFile(ClassGSM, 0x00, 0x00, fileMF); err != nil {
		return "", fmt.Errorf("failed to select MF: %w", err)
	}
	if _, err := c.SelectFile(ClassGSM, 0x00, 0x00, fileICCID); err != nil {
		return "", fmt.Errorf("failed to select EF ICCID: %w", err)
	}

	raw := make([]byte, ICCIDLength)
	if _, err := c.ReadBinary(ClassGSM, raw); err != nil {
		return "", fmt.Errorf("failed to read EF ICCID: %w", err)
	}
	return DecodeICCID(raw), nil
}

// DecodeICCID decodes swapped-nibble BCD, low nibble first. Decoding stops
// at the first F filler nibble. Other non-decimal nibbles are kept as hex.
func DecodeICCID(raw []byte) string {
	var sb strings.Builder
	sb.Grow(len(raw) * 2)
	for _, b := range raw {
		for _, nibble := range [2]byte{b & 0x0F, b >> 4} {
			if nibble == 0x0F {
				return sb.String()
			}
			sb.WriteByte("0123456789ABCDEF"[nibble])
		}
	}
	return sb.String()
}
