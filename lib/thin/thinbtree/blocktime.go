// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package thinbtree

import (
	"fmt"
)

const (
	blockTimeTimeBits  = 24
	blockTimeBlockBits = 64 - blockTimeTimeBits

	// MaxBlockTimeTime is one more than the largest representable
	// time.
	MaxBlockTimeTime = uint32(1) << blockTimeTimeBits
	// MaxBlockTimeBlock is one more than the largest representable
	// data block.
	MaxBlockTimeBlock = uint64(1) << blockTimeBlockBits
)

// BlockTime is a mapping-tree leaf value: the data block that backs a
// virtual block, and the snapshot time it was written at.
type BlockTime struct {
	Block uint64 `json:"block"`
	Time  uint32 `json:"time"`
}

func (bt BlockTime) String() string {
	return fmt.Sprintf("%d@%d", bt.Block, bt.Time)
}

func UnpackBlockTime(packed uint64) BlockTime {
	return BlockTime{
		Block: packed >> blockTimeTimeBits,
		Time:  uint32(packed & uint64(MaxBlockTimeTime-1)),
	}
}

// PackBlockTime returns an error rather than truncating a field that
// does not fit.
func PackBlockTime(bt BlockTime) (uint64, error) {
	if bt.Time >= MaxBlockTimeTime {
		return 0, fmt.Errorf("block time %v: time does not fit in %d bits", bt, blockTimeTimeBits)
	}
	if bt.Block >= MaxBlockTimeBlock {
		return 0, fmt.Errorf("block time %v: block does not fit in %d bits", bt, blockTimeBlockBits)
	}
	return bt.Block<<blockTimeTimeBits | uint64(bt.Time), nil
}
