// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package diskio

import (
	"io"
	"os"
)

type OSFile[A ~int64] struct {
	*os.File
	size A
}

var _ File[assertAddr] = (*OSFile[assertAddr])(nil)

// OpenOSFile opens a regular file or a block device read-only.
//
// The size is taken once at open; block devices report a zero size
// from stat(2), so it is found by seeking to the end instead.
func OpenOSFile[A ~int64](filename string) (*OSFile[A], error) {
	fh, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	size, err := fh.Seek(0, io.SeekEnd)
	if err != nil {
		_ = fh.Close()
		return nil, err
	}
	// Only a hint; some files (pipes, some FUSE filesystems) refuse it.
	_ = adviseRandom(fh)
	return &OSFile[A]{
		File: fh,
		size: A(size),
	}, nil
}

func (f *OSFile[A]) Size() A {
	return f.size
}

func (f *OSFile[A]) ReadAt(dat []byte, paddr A) (int, error) {
	return f.File.ReadAt(dat, int64(paddr))
}
