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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
)

// Not parallel: replaces the package-level port lister.
func TestDetectReaders(t *testing.T) {
	orig := listPorts
	defer func() { listPorts = orig }()

	listPorts = func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{
			{Name: "/dev/ttyUSB1", IsUSB: true, VID: "0403", PID: "6001", Product: "FT232R"},
			{Name: "/dev/ttyS0"},
			{Name: "/dev/ttyACM0", IsUSB: true, VID: "2341", PID: "0043", Product: "Uno"},
			{Name: "/dev/ttyUSB0", IsUSB: true, VID: "067b", PID: "2303", Product: "PL2303"},
		}, nil
	}

	readers, err := DetectReaders(DefaultOptions())
	require.NoError(t, err)
	paths := make([]string, 0, len(readers))
	for _, r := range readers {
		paths = append(paths, r.Path)
	}
	assert.Equal(t, []string{"/dev/ttyS0", "/dev/ttyUSB0", "/dev/ttyUSB1"}, paths)
	assert.Equal(t, "067B:2303", readers[1].VIDPID)
	assert.Equal(t, "/dev/ttyUSB0 [067B:2303 PL2303]", readers[1].String())

	readers, err = DetectReaders(Options{USBOnly: true, IgnorePaths: []string{"/dev/ttyUSB1"}, Blocklist: []string{}})
	require.NoError(t, err)
	require.Len(t, readers, 2)
	assert.Equal(t, "/dev/ttyACM0", readers[0].Path)

	listPorts = func() ([]*enumerator.PortDetails, error) {
		return nil, errors.New("no udev")
	}
	_, err = DetectReaders(DefaultOptions())
	require.Error(t, err)
}

func TestFormatVIDPID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		vid, pid string
		want     string
	}{
		{"0403", "6001", "0403:6001"},
		{"067b", "2303", "067B:2303"},
		{"0x1a86", "0x7523", "1A86:7523"},
		{"", "6001", ""},
		{"403", "6001", ""},
		{"GGGG", "6001", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatVIDPID(tt.vid, tt.pid), "%s:%s", tt.vid, tt.pid)
	}
}

func TestIsBlocked(t *testing.T) {
	t.Parallel()

	blocklist := []string{"2341:0043", " 1a86:55d4 ", "bogus"}
	assert.True(t, IsBlocked("2341:0043", blocklist))
	assert.True(t, IsBlocked("1A86:55D4", blocklist))
	assert.True(t, IsBlocked("1a86:55d4", blocklist))
	assert.False(t, IsBlocked("0403:6001", blocklist))
	assert.False(t, IsBlocked("", blocklist))
	assert.True(t, IsBlocked("2341:0042", DefaultBlocklist()))
}
