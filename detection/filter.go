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

package detection

import (
	"path/filepath"
	"strings"
)

// DefaultBlocklist returns USB serial devices that are never smartcard
// readers and must not have RTS and DTR toggled during a probe.
// Format: VID:PID in hexadecimal (case-insensitive).
func DefaultBlocklist() []string {
	return []string{
		"2341:0043", // Arduino Uno, resets on DTR
		"2341:0042", // Arduino Mega 2560, resets on DTR
		"1546:01A7", // u-blox GPS receiver
		"1366:0105", // SEGGER J-Link VCOM
	}
}

// FormatVIDPID joins USB vendor and product IDs as upper-case VID:PID. It
// returns "" unless both are four hex digits.
func FormatVIDPID(vid, pid string) string {
	vid = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(vid), "0x"))
	pid = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(pid), "0x"))
	if !isHex4(vid) || !isHex4(pid) {
		return ""
	}
	return vid + ":" + pid
}

// IsBlocked reports whether vidpid appears in blocklist.
func IsBlocked(vidpid string, blocklist []string) bool {
	if vidpid == "" {
		return false
	}
	for _, entry := range blocklist {
		vid, pid, ok := strings.Cut(entry, ":")
		if ok && FormatVIDPID(vid, pid) == strings.ToUpper(vidpid) {
			return true
		}
	}
	return false
}

// IsPathIgnored reports whether devicePath matches an entry of ignorePaths
// after cleaning. Comparison is case-insensitive so COM ports match.
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" {
		return false
	}
	want := strings.ToLower(filepath.Clean(devicePath))
	for _, p := range ignorePaths {
		if p != "" && strings.ToLower(filepath.Clean(p)) == want {
			return true
		}
	}
	return false
}

func isHex4(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'A' || r > 'F') {
			return false
		}
	}
	return true
}
