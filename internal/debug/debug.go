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

// Package debug holds the logger shared by the card protocol and the line
// drivers. Logging is off until a caller enables it.
package debug

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var current atomic.Pointer[zerolog.Logger]

func init() {
	nop := zerolog.Nop()
	current.Store(&nop)
}

// SetEnabled switches between a console logger on stderr at debug level and
// a no-op logger.
func SetEnabled(enabled bool) {
	if !enabled {
		nop := zerolog.Nop()
		current.Store(&nop)
		return
	}
	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.StampMilli}).
		Level(zerolog.DebugLevel).
		With().Timestamp().Logger()
	current.Store(&l)
}

// SetLogger installs a caller-provided logger.
func SetLogger(l zerolog.Logger) {
	current.Store(&l)
}

// Logger returns the active logger.
func Logger() *zerolog.Logger {
	return current.Load()
}

// Printf logs a formatted debug message.
func Printf(format string, args ...any) {
	Logger().Debug().Msgf(format, args...)
}

// Println logs its operands as a single debug message.
func Println(args ...any) {
	Logger().Debug().Msg(fmt.Sprint(args...))
}
