//go:build linux

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

package gpiod

import (
	"fmt"

	"github.com/warthog618/gpiod"
)

// Open requests the lines of cfg. Reset starts asserted and power off.
func Open(cfg Config) (*Contacts, error) {
	chip, err := gpiod.NewChip(cfg.Chip, gpiod.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.Chip, err)
	}

	reset, err := chip.RequestLine(cfg.Reset, gpiod.AsOutput(0))
	if err != nil {
		_ = chip.Close()
		return nil, fmt.Errorf("failed to request reset line %d: %w", cfg.Reset, err)
	}

	powerOpts := []gpiod.LineReqOption{gpiod.AsOutput(0)}
	if cfg.PowerActiveLow {
		powerOpts = append(powerOpts, gpiod.AsActiveLow)
	}
	power, err := chip.RequestLine(cfg.Power, powerOpts...)
	if err != nil {
		_ = reset.Close()
		_ = chip.Close()
		return nil, fmt.Errorf("failed to request power line %d: %w", cfg.Power, err)
	}

	c := newContacts(reset, power, nil)
	c.closer = chip.Close

	if cfg.Detect >= 0 {
		c.events = make(chan bool, 1)
		var bias gpiod.LineReqOption = gpiod.WithPullDown
		if cfg.detectPullUp() {
			bias = gpiod.WithPullUp
		}
		detectOpts := []gpiod.LineReqOption{
			bias,
			gpiod.WithBothEdges,
			gpiod.WithEventHandler(func(evt gpiod.LineEvent) {
				c.notify(evt.Type == gpiod.LineEventRisingEdge)
			}),
		}
		if cfg.DetectActiveLow {
			detectOpts = append(detectOpts, gpiod.AsActiveLow)
		}
		detect, err := chip.RequestLine(cfg.Detect, detectOpts...)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("failed to request detect line %d: %w", cfg.Detect, err)
		}
		c.mu.Lock()
		c.detect = detect
		c.mu.Unlock()
	}
	return c, nil
}
