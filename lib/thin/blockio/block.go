// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package blockio reads fixed-size metadata blocks from a device,
// either one at a time or in batches.
package blockio

import (
	"errors"
	"fmt"

	"git.lukeshu.com/thinp-progs-ng/lib/containers"
)

// BlockSize is the size of a metadata block.  It is fixed by the
// on-disk format, not negotiated.
const BlockSize = 4096

// BlockAddr is the index of a metadata block on the metadata device.
type BlockAddr uint64

// DevOffset is a byte offset on the metadata device.
type DevOffset int64

func (a BlockAddr) Offset(blockSize int) DevOffset {
	return DevOffset(a) * DevOffset(blockSize)
}

// Block is a block-sized buffer paired with the location it was (or
// is to be) read from.
type Block struct {
	Addr BlockAddr
	Data []byte
}

var blockPool containers.SlicePool[byte]

func NewBlock(addr BlockAddr) Block {
	return Block{Addr: addr}
}

// NewBlocks returns an unread Block for each address.
func NewBlocks(addrs []BlockAddr) []Block {
	ret := make([]Block, len(addrs))
	for i, addr := range addrs {
		ret[i] = NewBlock(addr)
	}
	return ret
}

func (blk *Block) alloc(size int) {
	if cap(blk.Data) < size {
		blk.Free()
		blk.Data = blockPool.Get(size)
	}
	blk.Data = blk.Data[:size]
}

// Free returns the block's buffer to the pool.  The Block may be
// re-used for another read afterward.
func (blk *Block) Free() {
	if blk == nil || blk.Data == nil {
		return
	}
	blockPool.Put(blk.Data)
	blk.Data = nil
}

// ErrOutOfRange is wrapped by an *IOError when a read is requested
// past the end of the device.
var ErrOutOfRange = errors.New("block is beyond the end of the device")

type IOError struct {
	Addr BlockAddr
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("i/o error: block %v: %v", e.Addr, e.Err)
}
func (e *IOError) Unwrap() error { return e.Err }
