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

package testing

import "encoding/binary"

// BuildStatus returns a bare SW1 SW2 answer
func BuildStatus(sw1, sw2 byte) []byte {
	return []byte{sw1, sw2}
}

// BuildPTS returns a PTS request proposing ta1 for protocol T=0
func BuildPTS(ta1 byte) []byte {
	req := []byte{0xFF, 0x10, ta1, 0}
	req[3] = req[0] ^ req[1] ^ req[2]
	return req
}

// BuildFCP returns an FCP template (62) for a transparent EF of size bytes,
// or for a DF when fid is the MF.
func BuildFCP(fid uint16, size int) []byte {
	descriptor := byte(0x01) // working EF, transparent
	if fid == mfFileID {
		descriptor = 0x38
	}

	var body []byte
	body = append(body, 0x82, 0x01, descriptor)
	body = append(body, 0x83, 0x02)
	body = binary.BigEndian.AppendUint16(body, fid)
	if fid != mfFileID {
		body = append(body, 0x80, 0x02)
		body = binary.BigEndian.AppendUint16(body, uint16(size))
	}
	body = append(body, 0x8A, 0x01, 0x05)

	return append([]byte{0x62, byte(len(body))}, body...)
}

// BuildDataResponse returns the card side of an outgoing-data exchange:
// procedure byte, data, then 90 00
func BuildDataResponse(ins byte, data []byte) []byte {
	resp := []byte{ins}
	resp = append(resp, data...)
	return append(resp, 0x90, 0x00)
}

// gsmSelectResponse builds the GSM 11.11 style answer to SELECT: file size
// in bytes 2..3, file ID in bytes 4..5, file type in byte 6.
func gsmSelectResponse(fid uint16, size int) []byte {
	n := gsmEFResponseLength
	fileType := byte(FileTypeEF)
	if fid == mfFileID {
		n = gsmMFResponseLength
		fileType = FileTypeMF
	}
	resp := make([]byte, n)
	binary.BigEndian.PutUint16(resp[2:], uint16(size))
	binary.BigEndian.PutUint16(resp[4:], fid)
	resp[6] = fileType
	return resp
}
