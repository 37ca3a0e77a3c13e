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

// Package testing provides a character-level model of a T=0 smartcard for
// driving the line drivers and the card protocol in tests.
package testing

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/hsanjuan/go-ndef"
)

type cardState int

const (
	stateHeader cardState = iota
	statePTS
	stateCommandData
	stateIgnore
)

// File types reported in GSM style select responses
const (
	FileTypeMF = 0x01
	FileTypeDF = 0x02
	FileTypeEF = 0x04
)

const (
	gsmMFResponseLength = 0x16
	gsmEFResponseLength = 0x0F
	ndefMaxRead         = 0x80
	ndefMaxSize         = 0x0400
	ndefFileID          = 0x0001
	ccFileID            = 0xE103
	mfFileID            = 0x3F00
)

var ndefAID = []byte{0xD2, 0x76, 0x00, 0x00, 0x85, 0x01, 0x01}

// VirtualCard models a T=0 card one character at a time. Reset returns the
// ATR, Receive consumes one character sent by the reader and returns what
// the card answers. Echo and NACK are line effects and are not modelled here.
type VirtualCard struct {
	files    map[uint16][]byte
	appFiles map[uint16][]byte
	ATR      []byte
	// Commands records every complete command: header, P3 and command data
	Commands [][]byte
	rx       []byte
	pending  []byte
	// Present is false for an empty slot; Reset then returns nothing
	Present bool
	// RejectPTS answers PTS with default parameters instead of an echo
	RejectPTS bool
	// Mute makes the card stop answering after the ATR
	Mute bool
	// ProcedureByte, when non-zero, replaces INS as procedure byte
	ProcedureByte byte
	state         cardState
	current       uint16
	need          int
	appSelected   bool
	ptsSeen       bool
	mu            sync.Mutex
}

// DefaultATR offers TA1=96 (Fi=512, Di=32) in negotiable mode with ten
// historical bytes.
var DefaultATR = []byte{0x3B, 0x9A, 0x96, 0x00, 0x80, 0x31, 0xE0, 0x73, 0xFE, 0x21, 0x1B, 0x66, 0xD0, 0x00}

// PlainATR carries two historical bytes and nothing to negotiate.
var PlainATR = []byte{0x3B, 0x02, 0x14, 0x50}

// TestICCID is the EF ICCID content of NewVirtualSIM, decoding to
// 8944501234567890123.
var TestICCID = []byte{0x98, 0x44, 0x05, 0x21, 0x43, 0x65, 0x87, 0x09, 0x21, 0xF3}

// NewVirtualCard creates a present card with the given ATR and an MF only.
func NewVirtualCard(atr []byte) *VirtualCard {
	if atr == nil {
		atr = DefaultATR
	}
	return &VirtualCard{
		ATR:     append([]byte(nil), atr...),
		files:   map[uint16][]byte{},
		Present: true,
	}
}

// NewVirtualSIM creates a GSM SIM with EF ICCID under MF.
func NewVirtualSIM() *VirtualCard {
	v := NewVirtualCard(nil)
	v.SetFile(0x2FE2, TestICCID)
	return v
}

// SetFile stores a transparent EF under MF.
func (v *VirtualCard) SetFile(fid uint16, content []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.files[fid] = append([]byte(nil), content...)
}

// SetNDEF installs the NDEF Type 4 application holding raw as its message.
func (v *VirtualCard) SetNDEF(raw []byte) {
	cc := make([]byte, 0, 15)
	cc = binary.BigEndian.AppendUint16(cc, 15)
	cc = append(cc, 0x20)
	cc = binary.BigEndian.AppendUint16(cc, ndefMaxRead)
	cc = binary.BigEndian.AppendUint16(cc, ndefMaxRead)
	cc = append(cc, 0x04, 0x06)
	cc = binary.BigEndian.AppendUint16(cc, ndefFileID)
	cc = binary.BigEndian.AppendUint16(cc, ndefMaxSize)
	cc = append(cc, 0x00, 0x00)

	file := binary.BigEndian.AppendUint16(nil, uint16(len(raw)))
	file = append(file, raw...)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.appFiles = map[uint16][]byte{ccFileID: cc, ndefFileID: file}
}

// SetNDEFText installs an NDEF application holding a single text record.
func (v *VirtualCard) SetNDEFText(text string) error {
	raw, err := ndef.NewTextMessage(text, "en").Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal NDEF text: %w", err)
	}
	v.SetNDEF(raw)
	return nil
}

// Reset models a cold reset and returns the ATR the card sends.
func (v *VirtualCard) Reset() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.state = stateHeader
	v.rx = v.rx[:0]
	v.pending = nil
	v.current = mfFileID
	v.appSelected = false
	v.ptsSeen = false
	if !v.Present {
		return nil
	}
	return append([]byte(nil), v.ATR...)
}

// Receive consumes one character from the reader.
func (v *VirtualCard) Receive(b byte) []byte {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.Present || v.Mute || v.state == stateIgnore {
		return nil
	}

	v.rx = append(v.rx, b)
	switch v.state {
	case stateHeader:
		if len(v.rx) == 1 && b == 0xFF && !v.ptsSeen && len(v.Commands) == 0 {
			v.state = statePTS
			return nil
		}
		if len(v.rx) < 5 {
			return nil
		}
		return v.dispatch()
	case statePTS:
		if len(v.rx) < 4 {
			return nil
		}
		return v.answerPTS()
	case stateCommandData:
		if len(v.rx) < 5+v.need {
			return nil
		}
		return v.completeCommand()
	default:
		return nil
	}
}

// PTSSeen reports whether the card received a PTS request since Reset.
func (v *VirtualCard) PTSSeen() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ptsSeen
}

// LastCommand returns the most recent command, or nil.
func (v *VirtualCard) LastCommand() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.Commands) == 0 {
		return nil
	}
	return v.Commands[len(v.Commands)-1]
}

func (v *VirtualCard) answerPTS() []byte {
	req := append([]byte(nil), v.rx...)
	v.rx = v.rx[:0]
	v.state = stateHeader
	v.ptsSeen = true
	if !v.RejectPTS {
		return req
	}
	// Keep the protocol, fall back to Fi=372 Di=1
	resp := []byte{req[0], req[1], 0x11, 0}
	resp[3] = resp[0] ^ resp[1] ^ resp[2]
	return resp
}

func (v *VirtualCard) procedure(ins byte) byte {
	if v.ProcedureByte != 0 {
		return v.ProcedureByte
	}
	return ins
}

// dispatch handles a complete five byte header.
func (v *VirtualCard) dispatch() []byte {
	cla, ins, p3 := v.rx[0], v.rx[1], v.rx[4]

	if cla != 0x00 && cla != 0xA0 {
		return v.finish(BuildStatus(0x6E, 0x00))
	}

	switch ins {
	case 0xA4:
		if p3 == 0 {
			return v.finish(BuildStatus(0x67, 0x00))
		}
		pb := v.procedure(ins)
		if pb != ins {
			v.Commands = append(v.Commands, append([]byte(nil), v.rx...))
			v.state = stateIgnore
			return []byte{pb}
		}
		v.need = int(p3)
		v.state = stateCommandData
		return []byte{pb}
	case 0xB0:
		return v.readBinary(ins, p3)
	case 0xC0:
		return v.getResponse(ins, p3)
	default:
		return v.finish(BuildStatus(0x6D, 0x00))
	}
}

func (v *VirtualCard) completeCommand() []byte {
	hdr, data := v.rx[:5], v.rx[5:]
	return v.finish(v.selectFile(hdr[0], hdr[2], hdr[3], data))
}

func (v *VirtualCard) finish(resp []byte) []byte {
	v.Commands = append(v.Commands, append([]byte(nil), v.rx...))
	v.rx = v.rx[:0]
	v.state = stateHeader
	return resp
}

func (v *VirtualCard) selectFile(cla, p1, p2 byte, name []byte) []byte {
	if p1 == 0x04 {
		if v.appFiles != nil && bytes.Equal(name, ndefAID) {
			v.appSelected = true
			v.current = 0
			return BuildStatus(0x90, 0x00)
		}
		return BuildStatus(0x6A, 0x82)
	}
	if len(name) != 2 {
		return BuildStatus(0x6A, 0x87)
	}

	fid := binary.BigEndian.Uint16(name)
	size, ok := v.lookup(fid)
	if !ok {
		return BuildStatus(0x6A, 0x82)
	}
	v.current = fid

	switch {
	case cla == 0xA0:
		v.pending = gsmSelectResponse(fid, size)
		return BuildStatus(0x9F, byte(len(v.pending)))
	case p2 == 0x04:
		v.pending = BuildFCP(fid, size)
		return BuildStatus(0x61, byte(len(v.pending)))
	default:
		v.pending = nil
		return BuildStatus(0x90, 0x00)
	}
}

func (v *VirtualCard) lookup(fid uint16) (int, bool) {
	if fid == mfFileID {
		v.appSelected = false
		return 0, true
	}
	if v.appSelected {
		f, ok := v.appFiles[fid]
		return len(f), ok
	}
	f, ok := v.files[fid]
	return len(f), ok
}

func (v *VirtualCard) content() ([]byte, bool) {
	if v.appSelected {
		f, ok := v.appFiles[v.current]
		return f, ok
	}
	f, ok := v.files[v.current]
	return f, ok
}

func (v *VirtualCard) readBinary(ins, p3 byte) []byte {
	file, ok := v.content()
	if !ok {
		return v.finish(BuildStatus(0x69, 0x86))
	}
	offset := int(v.rx[2]&0x7F)<<8 | int(v.rx[3])
	n := int(p3)
	if n == 0 {
		n = 256
	}
	if offset > len(file) {
		return v.finish(BuildStatus(0x6B, 0x00))
	}
	if offset+n > len(file) {
		return v.finish(BuildStatus(0x6C, byte(len(file)-offset)))
	}
	return v.finish(v.dataResponse(ins, file[offset:offset+n]))
}

func (v *VirtualCard) getResponse(ins, p3 byte) []byte {
	if len(v.pending) == 0 {
		return v.finish(BuildStatus(0x6F, 0x00))
	}
	n := int(p3)
	if n == 0 {
		n = 256
	}
	if n > len(v.pending) {
		return v.finish(BuildStatus(0x6C, byte(len(v.pending))))
	}
	data := v.pending[:n]
	v.pending = nil
	return v.finish(v.dataResponse(ins, data))
}

func (v *VirtualCard) dataResponse(ins byte, data []byte) []byte {
	resp := make([]byte, 0, len(data)+3)
	resp = append(resp, v.procedure(ins))
	resp = append(resp, data...)
	return append(resp, 0x90, 0x00)
}
