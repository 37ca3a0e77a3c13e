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
	"errors"
	"fmt"
	"strings"

	"github.com/moov-io/bertlv"
)

// FCP/FCI template tags
const (
	TagFCP = "62"
	TagFCI = "6F"
)

// FileControl holds the fields of an FCP or FCI template this driver knows.
type FileControl struct {
	// Template is the outer tag, 62 or 6F
	Template string
	FileID   uint16
	// Size is the number of data bytes in a transparent EF (tag 80)
	Size int
	// Descriptor is the first file descriptor byte (tag 82)
	Descriptor byte
	DFName     []byte
	LifeCycle  byte
	// Unknown holds every TLV not mapped above
	Unknown []bertlv.TLV
}

// IsDF reports whether the descriptor denotes a dedicated file.
func (f *FileControl) IsDF() bool {
	return f.Descriptor&0x38 == 0x38
}

// ParseFCP decodes a BER-TLV FCP (62) or FCI (6F) template as returned by
// GET RESPONSE after SELECT.
func ParseFCP(data []byte) (*FileControl, error) {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FCP: %w", err)
	}
	if len(packets) == 0 {
		return nil, fmt.Errorf("%w: empty FCP", ErrInvalidParameter)
	}

	outer := packets[0]
	tag := strings.ToUpper(outer.Tag)
	if tag != TagFCP && tag != TagFCI {
		return nil, fmt.Errorf("%w: unexpected template tag %s", ErrInvalidParameter, outer.Tag)
	}

	fc := &FileControl{Template: tag}
	for _, p := range outer.TLVs {
		switch strings.ToUpper(p.Tag) {
		case "80":
			fc.Size = int(beUint(p.Value))
		case "82":
			if len(p.Value) > 0 {
				fc.Descriptor = p.Value[0]
			}
		case "83":
			if len(p.Value) == 2 {
				fc.FileID = binary.BigEndian.Uint16(p.Value)
			}
		case "84":
			fc.DFName = append([]byte(nil), p.Value...)
		case "8A":
			if len(p.Value) > 0 {
				fc.LifeCycle = p.Value[0]
			}
		default:
			fc.Unknown = append(fc.Unknown, p)
		}
	}
	return fc, nil
}

func beUint(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// SelectFCP selects a file with P2 = 04 (return FCP), fetches the waiting
// response bytes with GET RESPONSE and decodes them. Both 9Fxx and 61xx
// announce the response length.
func (c *Card) SelectFCP(cla, p1 byte, name []byte) (*FileControl, error) {
	sw, err := c.SelectFile(cla, p1, 0x04, name)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Status.SW1() == 0x61 {
		// 61xx: completed, xx bytes waiting
		sw, err = statusErr.Status, nil
	}
	if err != nil {
		return nil, err
	}
	n := sw.ResponseLength()
	if n == 0 {
		return nil, fmt.Errorf("select %X: no FCP available (status %s)", name, sw)
	}

	buf := make([]byte, n)
	if _, err := c.GetResponse(cla, buf); err != nil {
		return nil, fmt.Errorf("failed to fetch FCP: %w", err)
	}
	return ParseFCP(buf)
}
