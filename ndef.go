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
	"encoding/binary"
	"fmt"

	"github.com/ZaparooProject/go-iso7816/internal/frame"
	"github.com/hsanjuan/go-ndef"
)

// NDEF Type 4 application on dual-interface cards
var (
	NDEFApplicationID = []byte{0xD2, 0x76, 0x00, 0x00, 0x85, 0x01, 0x01}
	ccFileID          = []byte{0xE1, 0x03}
)

const (
	ccLength        = 15
	ndefControlTLV  = 0x04
	ndefLengthBytes = 2
)

// CapabilityContainer is the Type 4 CC file.
type CapabilityContainer struct {
	Length      uint16
	Version     byte
	MaxRead     uint16 // MLe
	MaxWrite    uint16 // MLc
	FileID      uint16
	MaxNDEFSize uint16
	ReadAccess  byte
	WriteAccess byte
}

// ParseCapabilityContainer decodes the first NDEF file control TLV of a CC file.
func ParseCapabilityContainer(b []byte) (*CapabilityContainer, error) {
	if len(b) < ccLength {
		return nil, fmt.Errorf("%w: CC is %d bytes", ErrInvalidParameter, len(b))
	}
	if b[7] != ndefControlTLV || b[8] < 6 {
		return nil, fmt.Errorf("%w: no NDEF file control TLV in CC", ErrInvalidParameter)
	}
	bo := binary.BigEndian
	return &CapabilityContainer{
		Length:      bo.Uint16(b[0:]),
		Version:     b[2],
		MaxRead:     bo.Uint16(b[3:]),
		MaxWrite:    bo.Uint16(b[5:]),
		FileID:      bo.Uint16(b[9:]),
		MaxNDEFSize: bo.Uint16(b[11:]),
		ReadAccess:  b[13],
		WriteAccess: b[14],
	}, nil
}

// ReadNDEF selects the NDEF Type 4 application, reads its capability
// container and NDEF file, and decodes the message.
func (c *Card) ReadNDEF() (*ndef.Message, error) {
	if _, err := c.SelectFile(0x00, 0x04, 0x00, NDEFApplicationID); err != nil {
		return nil, fmt.Errorf("failed to select NDEF application: %w", err)
	}
	if _, err := c.SelectFile(0x00, 0x00, 0x0C, ccFileID); err != nil {
		return nil, fmt.Errorf("failed to select CC file: %w", err)
	}

	raw := make([]byte, ccLength)
	if _, err := c.ReadBinary(0x00, raw); err != nil {
		return nil, fmt.Errorf("failed to read CC file: %w", err)
	}
	cc, err := ParseCapabilityContainer(raw)
	if err != nil {
		return nil, err
	}
	if cc.ReadAccess != 0x00 {
		return nil, fmt.Errorf("%w: NDEF file read access %02X", ErrCommandFailed, cc.ReadAccess)
	}

	fileID := binary.BigEndian.AppendUint16(nil, cc.FileID)
	if _, err := c.SelectFile(0x00, 0x00, 0x0C, fileID); err != nil {
		return nil, fmt.Errorf("failed to select NDEF file %04X: %w", cc.FileID, err)
	}

	nlen := make([]byte, ndefLengthBytes)
	if _, err := c.ReadBinary(0x00, nlen); err != nil {
		return nil, fmt.Errorf("failed to read NDEF length: %w", err)
	}
	size := int(binary.BigEndian.Uint16(nlen))
	if size == 0 {
		return nil, fmt.Errorf("%w: NDEF file is empty", ErrInvalidParameter)
	}
	if cc.MaxNDEFSize > 0 && size > int(cc.MaxNDEFSize) {
		return nil, fmt.Errorf("%w: NLEN %d exceeds %d", ErrDataTooLarge, size, cc.MaxNDEFSize)
	}

	chunk := int(cc.MaxRead)
	if chunk <= 0 || chunk > frame.MaxShortDataLength {
		chunk = frame.MaxShortDataLength
	}
	data := make([]byte, size)
	for off := 0; off < size; off += chunk {
		end := min(off+chunk, size)
		if _, err := c.ReadBinaryAt(0x00, ndefLengthBytes+off, data[off:end]); err != nil {
			return nil, fmt.Errorf("failed to read NDEF data at %d: %w", off, err)
		}
	}

	msg := &ndef.Message{}
	if _, err := msg.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("failed to parse NDEF message: %w", err)
	}
	debugf("NDEF message with %d record(s)", len(msg.Records))
	return msg, nil
}
