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

package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_FIFOOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		chunks [][]byte
		reads  []int
	}{
		{
			name:   "single put single get",
			chunks: [][]byte{{0x01, 0x02, 0x03}},
			reads:  []int{3},
		},
		{
			name:   "interleaved across wrap",
			chunks: [][]byte{{0x01, 0x02, 0x03, 0x04, 0x05}, {0x06, 0x07, 0x08}, {0x09, 0x0A, 0x0B, 0x0C}},
			reads:  []int{4, 3, 5},
		},
		{
			name:   "byte at a time",
			chunks: [][]byte{{0xAA}, {0xBB}, {0xCC}},
			reads:  []int{1, 1, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := New(8)
			var want, got []byte
			put, taken := 0, 0
			for i, chunk := range tt.chunks {
				n := b.Put(chunk)
				require.Equal(t, len(chunk), n)
				want = append(want, chunk...)
				put += n

				dst := make([]byte, tt.reads[i])
				m := b.Get(dst)
				got = append(got, dst[:m]...)
				taken += m
				assert.Equal(t, put-taken, b.Len())
			}
			rest := make([]byte, b.Len())
			got = append(got, rest[:b.Get(rest)]...)

			assert.Equal(t, want, got)
			assert.True(t, b.IsEmpty())
		})
	}
}

func TestBuffer_PutTruncates(t *testing.T) {
	t.Parallel()

	b := New(4)
	assert.Equal(t, 3, b.Put([]byte{1, 2, 3}))
	assert.Equal(t, 1, b.Put([]byte{4, 5, 6}))
	assert.Equal(t, 0, b.Put([]byte{7}))

	dst := make([]byte, 8)
	n := b.Get(dst)
	assert.Equal(t, []byte{1, 2, 3, 4}, dst[:n])
	assert.Zero(t, b.Overruns())
}

func TestBuffer_PutOneKeepsNewest(t *testing.T) {
	t.Parallel()

	const capacity = 16
	for _, extra := range []int{0, 1, 5, capacity, 3*capacity + 7} {
		b := New(capacity)
		total := capacity + extra
		for i := 0; i < total; i++ {
			b.PutOne(byte(i))
		}

		require.Equal(t, capacity, b.Len())
		assert.Equal(t, uint64(extra), b.Overruns())

		for i := total - capacity; i < total; i++ {
			c, ok := b.GetOne()
			require.True(t, ok)
			assert.Equal(t, byte(i), c, "extra=%d index=%d", extra, i)
		}
		_, ok := b.GetOne()
		assert.False(t, ok)
	}
}

func TestBuffer_DropNeverReturnsDropped(t *testing.T) {
	t.Parallel()

	b := New(5)
	b.Put([]byte{1, 2, 3})
	dst := make([]byte, 2)
	b.Get(dst)
	b.Put([]byte{4, 5, 6, 7}) // wraps

	assert.Equal(t, 3, b.Drop(3))
	rest := make([]byte, 5)
	n := b.Get(rest)
	assert.Equal(t, []byte{6, 7}, rest[:n])

	b.Put([]byte{8})
	assert.Equal(t, 1, b.Drop(10), "drop is clamped to what is buffered")
	assert.True(t, b.IsEmpty())
	assert.Zero(t, b.Drop(-1))
}

func TestBuffer_PeekDoesNotConsume(t *testing.T) {
	t.Parallel()

	b := New(4)
	b.Put([]byte{9, 8, 7})

	dst := make([]byte, 2)
	assert.Equal(t, 2, b.Peek(dst))
	assert.Equal(t, []byte{9, 8}, dst)
	assert.Equal(t, 3, b.Len())

	all := make([]byte, 4)
	assert.Equal(t, 3, b.Get(all))
	assert.Equal(t, []byte{9, 8, 7}, all[:3])
}

func TestBuffer_Reset(t *testing.T) {
	t.Parallel()

	b := New(4)
	b.Put([]byte{1, 2, 3})
	b.Reset()

	assert.Zero(t, b.Len())
	_, ok := b.GetOne()
	assert.False(t, ok)

	b.PutOne(0x42)
	c, ok := b.GetOne()
	require.True(t, ok)
	assert.Equal(t, byte(0x42), c)
	assert.Equal(t, 4, b.Cap())
}

func TestNew_PanicsOnZeroCapacity(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { New(0) })
}
