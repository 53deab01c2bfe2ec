// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package diskio

import (
	"os"

	"golang.org/x/sys/unix"
)

// adviseRandom tells the kernel not to bother with readahead; tree
// walks jump all over the device.
func adviseRandom(fh *os.File) error {
	return unix.Fadvise(int(fh.Fd()), 0, 0, unix.FADV_RANDOM)
}
