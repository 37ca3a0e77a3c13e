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

package debug

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// Not parallel: the logger is process-wide.
func TestSetLogger_CapturesDebugOutput(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))
	defer SetEnabled(false)

	Printf("ATR %X", []byte{0x3B, 0x00})
	Println("card", "absent")

	out := buf.String()
	assert.Contains(t, out, `"message":"ATR 3B00"`)
	assert.Contains(t, out, `"message":"cardabsent"`)
}

func TestSetEnabled_FalseSilences(t *testing.T) {
	SetEnabled(false)
	assert.Equal(t, zerolog.Disabled, Logger().GetLevel())
}
