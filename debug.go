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
	"github.com/ZaparooProject/go-iso7816/internal/debug"
	"github.com/rs/zerolog"
)

// SetDebugEnabled turns debug logging to stderr on or off for the card
// protocol and every line driver.
func SetDebugEnabled(enabled bool) {
	debug.SetEnabled(enabled)
}

// SetLogger routes debug logging to l.
func SetLogger(l zerolog.Logger) {
	debug.SetLogger(l)
}

func debugf(format string, args ...any) {
	debug.Printf(format, args...)
}

func debugln(args ...any) {
	debug.Println(args...)
}

func logger() *zerolog.Logger {
	return debug.Logger()
}
