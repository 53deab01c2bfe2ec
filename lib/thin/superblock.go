// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package thin describes the top-level structures of dm-thin pool
// metadata.
package thin

import (
	"context"
	"encoding"
	"fmt"

	"github.com/datawire/dlib/dlog"
	"github.com/google/uuid"

	"git.lukeshu.com/thinp-progs-ng/lib/binstruct"
	"git.lukeshu.com/thinp-progs-ng/lib/thin/blockio"
	"git.lukeshu.com/thinp-progs-ng/lib/thin/thinsum"
)

// SuperblockAddr is the location of the superblock on the metadata
// device.
const SuperblockAddr = blockio.BlockAddr(0)

const (
	SuperblockMagic = uint64(27022010)

	MinMetadataVersion = 1
	MaxMetadataVersion = 2

	// SectorSize is the unit that the superblock's block sizes are
	// measured in.
	SectorSize = 512
)

type UUID [16]byte

var (
	_ fmt.Stringer           = UUID{}
	_ encoding.TextMarshaler = UUID{}
)

func (u UUID) String() string { return uuid.UUID(u).String() }

func (u UUID) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// SpaceMapRoot is the root of a space map: the count of blocks it
// tracks, and where its index and reference counts live.
type SpaceMapRoot struct {
	NrBlocks      uint64            `bin:"off=0x0,  siz=0x8"`
	NrAllocated   uint64            `bin:"off=0x8,  siz=0x8"`
	BitmapRoot    blockio.BlockAddr `bin:"off=0x10, siz=0x8"`
	RefCountRoot  blockio.BlockAddr `bin:"off=0x18, siz=0x8"`
	Padding       [96]byte          `bin:"off=0x20, siz=0x60"`
	binstruct.End `bin:"off=0x80"`
}

type Superblock struct {
	Checksum     uint32            `bin:"off=0x0,  siz=0x4"`
	Flags        uint32            `bin:"off=0x4,  siz=0x4"`
	Block        blockio.BlockAddr `bin:"off=0x8,  siz=0x8"` // the block this superblock was written to
	UUID         UUID              `bin:"off=0x10, siz=0x10"`
	Magic        uint64            `bin:"off=0x20, siz=0x8"`
	Version      uint32            `bin:"off=0x28, siz=0x4"`
	Time         uint32            `bin:"off=0x2c, siz=0x4"`
	TransID      uint64            `bin:"off=0x30, siz=0x8"`
	MetadataSnap blockio.BlockAddr `bin:"off=0x38, siz=0x8"` // 0 if there is no metadata snapshot

	DataSpaceMap     SpaceMapRoot `bin:"off=0x40, siz=0x80"`
	MetadataSpaceMap SpaceMapRoot `bin:"off=0xc0, siz=0x80"`

	MappingRoot blockio.BlockAddr `bin:"off=0x140, siz=0x8"` // two-level tree: device ID -> (virtual block -> BlockTime)
	DetailsRoot blockio.BlockAddr `bin:"off=0x148, siz=0x8"` // device ID -> DeviceDetails

	DataBlockSize     uint32 `bin:"off=0x150, siz=0x4"` // in sectors
	MetadataBlockSize uint32 `bin:"off=0x154, siz=0x4"` // in sectors
	NrMetadataBlocks  uint64 `bin:"off=0x158, siz=0x8"`

	CompatFlags   uint32 `bin:"off=0x160, siz=0x4"`
	CompatROFlags uint32 `bin:"off=0x164, siz=0x4"`
	IncompatFlags uint32 `bin:"off=0x168, siz=0x4"`
	binstruct.End `bin:"off=0x16c"`
}

// NrDataBlocks is the number of blocks on the data device; every
// data block that the mapping tree refers to must be below it.
func (sb Superblock) NrDataBlocks() uint64 {
	return sb.DataSpaceMap.NrBlocks
}

// Marshal encodes the superblock in to a stamped block of blockSize
// bytes.
func (sb Superblock) Marshal(blockSize int) ([]byte, error) {
	dat, err := binstruct.Marshal(sb)
	if err != nil {
		return nil, err
	}
	if len(dat) > blockSize {
		return nil, fmt.Errorf("superblock is %v bytes, but block is %v", len(dat), blockSize)
	}
	buf := make([]byte, blockSize)
	copy(buf, dat)
	if err := thinsum.Stamp(buf, thinsum.BlockTypeSuperblock); err != nil {
		return nil, err
	}
	return buf, nil
}

func (sb Superblock) validate(engine blockio.Engine, addr blockio.BlockAddr) error {
	if sb.Magic != SuperblockMagic {
		return fmt.Errorf("bad magic: %v", sb.Magic)
	}
	if sb.Version < MinMetadataVersion || sb.Version > MaxMetadataVersion {
		return fmt.Errorf("unsupported metadata version: %v", sb.Version)
	}
	if sb.Block != addr {
		return fmt.Errorf("read from block %v but claims to be at block %v", addr, sb.Block)
	}
	if int(sb.MetadataBlockSize)*SectorSize != engine.BlockSize() {
		return fmt.Errorf("metadata_block_size=%v sectors, but the device is read in %v-byte blocks",
			sb.MetadataBlockSize, engine.BlockSize())
	}
	return nil
}

// ReadSuperblock reads and validates the superblock at addr.
func ReadSuperblock(ctx context.Context, engine blockio.Engine, addr blockio.BlockAddr) (*Superblock, error) {
	blk := blockio.NewBlock(addr)
	if err := engine.Read(ctx, &blk); err != nil {
		return nil, fmt.Errorf("superblock: %w", err)
	}
	defer blk.Free()
	if err := thinsum.Verify(blk, thinsum.BlockTypeSuperblock); err != nil {
		return nil, fmt.Errorf("superblock: %w", err)
	}
	var sb Superblock
	if _, err := binstruct.Unmarshal(blk.Data, &sb); err != nil {
		return nil, fmt.Errorf("superblock: %w", err)
	}
	if err := sb.validate(engine, addr); err != nil {
		return &sb, fmt.Errorf("superblock: block %v: %w", addr, err)
	}
	dlog.Debugf(ctx, "superblock: uuid=%v version=%v transaction=%v data_blocks=%v",
		sb.UUID, sb.Version, sb.TransID, sb.NrDataBlocks())
	return &sb, nil
}
