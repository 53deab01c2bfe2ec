// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package diskio provides a byte-addressed view of a metadata device
// (or of an image file, or of memory).
package diskio

import (
	"io"
)

// File is a read-only, randomly-addressable device.  A is the type
// used for byte offsets.
type File[A ~int64] interface {
	Name() string
	Size() A
	Close() error
	ReadAt(p []byte, off A) (n int, err error)
}

type assertAddr int64

var _ io.ReaderAt = File[int64](nil)
