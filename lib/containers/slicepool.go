// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package containers

import (
	"git.lukeshu.com/go/typedsync"
)

// SlicePool recycles slices between users that all want roughly the
// same size, such as block buffers.  The zero value is ready to use.
type SlicePool[T any] struct {
	pool typedsync.Pool[[]T]
}

// Get returns a slice of length size.  Its contents are whatever the
// previous user left in it.
func (p *SlicePool[T]) Get(size int) []T {
	if size <= 0 {
		return nil
	}
	if buf, ok := p.pool.Get(); ok && cap(buf) >= size {
		return buf[:size]
	}
	return make([]T, size)
}

// Put hands buf back to the pool; the caller must not use it
// afterward.
func (p *SlicePool[T]) Put(buf []T) {
	if cap(buf) == 0 {
		return
	}
	p.pool.Put(buf[:0])
}
