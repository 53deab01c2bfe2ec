// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package thinsum

import (
	"fmt"

	"git.lukeshu.com/thinp-progs-ng/lib/thin/blockio"
)

// ChecksumError is returned by Verify when a block does not classify
// as the expected type.
type ChecksumError struct {
	Addr blockio.BlockAddr
	Want BlockType
	Got  BlockType
}

func (e *ChecksumError) Error() string {
	if e.Got == BlockTypeUnknown {
		return fmt.Sprintf("block %v: checksum mismatch: not a valid %v", e.Addr, e.Want)
	}
	return fmt.Sprintf("block %v: checksum marks it as a %v, not a %v", e.Addr, e.Got, e.Want)
}

// Verify returns a *ChecksumError if blk does not classify as want.
func Verify(blk blockio.Block, want BlockType) error {
	if got := Classify(blk.Data); got != want {
		return &ChecksumError{Addr: blk.Addr, Want: want, Got: got}
	}
	return nil
}
