// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package diskio

import (
	"fmt"
	"io"
)

// MemFile is a File backed by a byte slice.  Unlike other Files it
// is writable, so that tests can assemble metadata images in memory.
type MemFile[A ~int64] struct {
	name string
	dat  []byte
}

var (
	_ File[assertAddr] = (*MemFile[assertAddr])(nil)
	_ io.WriterAt      = (*MemFile[int64])(nil)
)

func NewMemFile[A ~int64](name string, size A) *MemFile[A] {
	return &MemFile[A]{
		name: name,
		dat:  make([]byte, size),
	}
}

func (f *MemFile[A]) Name() string { return f.name }
func (f *MemFile[A]) Size() A      { return A(len(f.dat)) }
func (f *MemFile[A]) Close() error { return nil }

func (f *MemFile[A]) ReadAt(dat []byte, off A) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("%s: invalid offset: %d", f.name, off)
	}
	if off >= A(len(f.dat)) {
		return 0, io.EOF
	}
	n := copy(dat, f.dat[off:])
	if n < len(dat) {
		return n, io.EOF
	}
	return n, nil
}

func (f *MemFile[A]) WriteAt(dat []byte, off A) (int, error) {
	if off < 0 || off+A(len(dat)) > A(len(f.dat)) {
		return 0, fmt.Errorf("%s: write of %d bytes at offset %d is out of range (size=%d)",
			f.name, len(dat), off, len(f.dat))
	}
	return copy(f.dat[off:], dat), nil
}
