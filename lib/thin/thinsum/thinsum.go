// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package thinsum implements the checksum stamped at the front of
// every thin-provisioning metadata block.
//
// The stamp is a CRC32C of everything after the 4-byte checksum
// field, XORed with a per-block-type salt; so verifying the checksum
// and learning the block's type are the same operation.
package thinsum

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"git.lukeshu.com/thinp-progs-ng/lib/binstruct/binutil"
)

// CSumSize is the size of the checksum field at offset 0 of a block.
const CSumSize = 4

type BlockType uint32

const (
	BlockTypeUnknown    = BlockType(0)
	BlockTypeSuperblock = BlockType(160774)
	BlockTypeNode       = BlockType(121107)
	BlockTypeIndex      = BlockType(160478)
	BlockTypeBitmap     = BlockType(240779)
)

func (typ BlockType) String() string {
	names := map[BlockType]string{
		BlockTypeUnknown:    "unknown",
		BlockTypeSuperblock: "superblock",
		BlockTypeNode:       "btree-node",
		BlockTypeIndex:      "space-map-index",
		BlockTypeBitmap:     "space-map-bitmap",
	}
	if name, ok := names[typ]; ok {
		return name
	}
	return fmt.Sprintf("%d", uint32(typ))
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Sum returns the unsalted checksum of a block: the kernel's
// crc32c(~0, ...) without the final inversion.
func Sum(buf []byte) uint32 {
	return ^crc32.Checksum(buf[CSumSize:], castagnoli)
}

// Classify returns the type that a block was stamped as, or
// BlockTypeUnknown if the stored checksum does not match any block
// type (including if the block is too short to have a checksum).
func Classify(buf []byte) BlockType {
	if len(buf) < CSumSize {
		return BlockTypeUnknown
	}
	stored := binary.LittleEndian.Uint32(buf[:CSumSize])
	switch typ := BlockType(Sum(buf) ^ stored); typ {
	case BlockTypeSuperblock, BlockTypeNode, BlockTypeIndex, BlockTypeBitmap:
		return typ
	default:
		return BlockTypeUnknown
	}
}

// Stamp writes the checksum field of buf such that Classify(buf)
// returns typ.
func Stamp(buf []byte, typ BlockType) error {
	if typ == BlockTypeUnknown {
		return fmt.Errorf("thinsum.Stamp: refusing to stamp a block as %v", typ)
	}
	if err := binutil.NeedNBytes(buf, CSumSize); err != nil {
		return fmt.Errorf("thinsum.Stamp: %w", err)
	}
	binary.LittleEndian.PutUint32(buf[:CSumSize], Sum(buf)^uint32(typ))
	return nil
}
