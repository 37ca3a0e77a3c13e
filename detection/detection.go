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

// Package detection finds serial ports that may have a Phoenix style
// smartcard reader attached.
package detection

import (
	"fmt"
	"sort"

	"go.bug.st/serial/enumerator"
)

// Options controls which ports are reported
type Options struct {
	// IgnorePaths are device paths never reported
	IgnorePaths []string
	// Blocklist holds VID:PID pairs never reported. Nil selects
	// DefaultBlocklist.
	Blocklist []string
	// USBOnly drops ports that are not USB serial adapters
	USBOnly bool
}

// DefaultOptions returns options reporting every non-blocked port
func DefaultOptions() Options {
	return Options{}
}

// Reader describes a candidate reader port
type Reader struct {
	Path         string
	VIDPID       string
	Product      string
	SerialNumber string
	USB          bool
}

// String implements fmt.Stringer
func (r Reader) String() string {
	if r.VIDPID == "" {
		return r.Path
	}
	return fmt.Sprintf("%s [%s %s]", r.Path, r.VIDPID, r.Product)
}

// listPorts is replaced in tests
var listPorts = enumerator.GetDetailedPortsList

// DetectReaders lists serial ports that pass opts, sorted by path.
func DetectReaders(opts Options) ([]Reader, error) {
	ports, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	blocklist := opts.Blocklist
	if blocklist == nil {
		blocklist = DefaultBlocklist()
	}

	readers := make([]Reader, 0, len(ports))
	for _, p := range ports {
		r := Reader{Path: p.Name, USB: p.IsUSB}
		if p.IsUSB {
			r.VIDPID = FormatVIDPID(p.VID, p.PID)
			r.Product = p.Product
			r.SerialNumber = p.SerialNumber
		}
		switch {
		case opts.USBOnly && !r.USB:
			continue
		case IsPathIgnored(r.Path, opts.IgnorePaths):
			continue
		case IsBlocked(r.VIDPID, blocklist):
			continue
		}
		readers = append(readers, r)
	}

	sort.Slice(readers, func(i, j int) bool { return readers[i].Path < readers[j].Path })
	return readers, nil
}
