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

// Package ring provides the fixed-capacity byte ring used to hand characters
// between a serial interrupt handler and the foreground protocol code.
//
// A Buffer is not synchronised. It is shared by exactly one producer context
// and one consumer context, and the owner is responsible for masking the
// interrupt around any foreground access that the interrupt can race with.
package ring

// Buffer is a byte FIFO over a fixed storage region.
type Buffer struct {
	buf      []byte
	head     int // read cursor
	tail     int // write cursor
	count    int
	overruns uint64
}

// New allocates a ring with the given capacity. Capacity must be positive.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		panic("ring: capacity must be positive")
	}
	return &Buffer{buf: make([]byte, capacity)}
}

// Reset drops all buffered content. Storage is left untouched.
func (b *Buffer) Reset() {
	b.head = 0
	b.tail = 0
	b.count = 0
}

// Put copies as many bytes of p as fit and returns how many were stored.
// Bytes that do not fit are dropped; Put never blocks.
func (b *Buffer) Put(p []byte) int {
	n := len(p)
	if free := len(b.buf) - b.count; n > free {
		n = free
	}
	for i := 0; i < n; i++ {
		b.buf[b.tail] = p[i]
		b.tail = (b.tail + 1) % len(b.buf)
	}
	b.count += n
	return n
}

// PutOne stores c unconditionally. When the ring is full the oldest byte is
// discarded to make room and the overrun counter is incremented.
func (b *Buffer) PutOne(c byte) {
	if b.count == len(b.buf) {
		b.head = (b.head + 1) % len(b.buf)
		b.count--
		b.overruns++
	}
	b.buf[b.tail] = c
	b.tail = (b.tail + 1) % len(b.buf)
	b.count++
}

// GetOne dequeues one byte. ok is false when the ring is empty.
func (b *Buffer) GetOne() (c byte, ok bool) {
	if b.count == 0 {
		return 0, false
	}
	c = b.buf[b.head]
	b.head = (b.head + 1) % len(b.buf)
	b.count--
	return c, true
}

// Get dequeues up to len(dst) bytes into dst and returns the number copied.
func (b *Buffer) Get(dst []byte) int {
	n := b.Peek(dst)
	b.head = (b.head + n) % len(b.buf)
	b.count -= n
	return n
}

// Peek copies up to len(dst) bytes without consuming them.
func (b *Buffer) Peek(dst []byte) int {
	n := len(dst)
	if n > b.count {
		n = b.count
	}
	pos := b.head
	for i := 0; i < n; i++ {
		dst[i] = b.buf[pos]
		pos = (pos + 1) % len(b.buf)
	}
	return n
}

// Drop discards up to n bytes from the read side and returns how many
// were actually discarded.
func (b *Buffer) Drop(n int) int {
	if n < 0 {
		n = 0
	}
	if n > b.count {
		n = b.count
	}
	b.head = (b.head + n) % len(b.buf)
	b.count -= n
	return n
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int {
	return b.count
}

// IsEmpty reports whether nothing is buffered.
func (b *Buffer) IsEmpty() bool {
	return b.count == 0
}

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int {
	return len(b.buf)
}

// Overruns returns how many bytes PutOne has discarded since construction.
func (b *Buffer) Overruns() uint64 {
	return b.overruns
}
