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

/*
Package iso7816 drives contact smartcards over the character-oriented T=0
protocol of ISO/IEC 7816-3.

A Card sits on top of two small interfaces. A Line moves characters: it
absorbs the echo of everything it transmits and hands received characters to
the protocol one at a time. Contacts drive the card's RST and VCC pins. Lines
are provided for a microcontroller USART in smartcard mode (transport/usart)
and for a Phoenix reader on a host serial port (transport/serial). Contacts
can be driven by the serial port itself, by GPIO pins through periph.io
(contacts/periph) or by the Linux GPIO character device (contacts/gpiod).

Basic Usage:

	import (
	    "github.com/ZaparooProject/go-iso7816"
	    "github.com/ZaparooProject/go-iso7816/transport/serial"
	)

	line, err := serial.Open("/dev/ttyUSB0")
	if err != nil {
	    log.Fatal(err)
	}
	defer line.Close()

	card, err := iso7816.New(line, line)
	if err != nil {
	    log.Fatal(err)
	}

	atr, err := card.Activate()
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Println(atr)

	iccid, err := card.ReadICCID()
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Println(iccid)

Activation:

Activate performs a cold reset, reads the Answer-To-Reset and, when the card
offers a faster rate in TA1, negotiates it with a PTS exchange before
switching the line over. WithPTS(false) keeps the default rate.

Commands:

SendTPDU exchanges one command header with the card, following procedure
bytes until the status word arrives. SelectFile, ReadBinary, GetResponse and
ReadICCID are built on top of it, and SelectFCP and ReadNDEF parse what they
read.

Error Handling:

Protocol failures leave the card in the error state and must be followed by
a new Activate:

	if errors.Is(err, iso7816.ErrProtocolTimeout) {
	    // re-activate
	}

A status word other than 90xx or 9Fxx is returned as a *StatusError and
leaves the session usable.

Thread Safety:

A Card serializes its own operations. Lines are not meant to be shared
between cards.
*/
package iso7816
