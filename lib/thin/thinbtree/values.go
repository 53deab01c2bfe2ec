// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package thinbtree

import (
	"fmt"

	"git.lukeshu.com/thinp-progs-ng/lib/binstruct"
	"git.lukeshu.com/thinp-progs-ng/lib/thin/blockio"
)

// ValueType says how to interpret the values of a leaf node.  Which
// one applies is decided by the caller, from where in the metadata
// the node was reached; nothing in the node itself says.
type ValueType[V any] interface {
	Name() string
	ValueSize() int
	DecodeValue([]byte) (V, int, error)
	EncodeValue(V) []byte
}

var (
	_ ValueType[blockio.BlockAddr] = ChildPointer{}
	_ ValueType[BlockTime]         = BlockTimeValue{}
	_ ValueType[DeviceDetails]     = DeviceDetailsValue{}
)

func decodeStatic[V any](dat []byte, name string) (V, int, error) {
	var val V
	n, err := binstruct.Unmarshal(dat, &val)
	if err != nil {
		return val, n, fmt.Errorf("%s: %w", name, err)
	}
	return val, n, nil
}

func encodeStatic(val any) []byte {
	dat, err := binstruct.Marshal(val)
	if err != nil {
		panic(fmt.Errorf("should not happen: %w", err))
	}
	return dat
}

// ChildPointer values are the block number of another node.  They
// are the values of internal nodes, and of the leaves of the top
// level of the mapping tree.
type ChildPointer struct{}

func (ChildPointer) Name() string   { return "child-pointer" }
func (ChildPointer) ValueSize() int { return 8 }

func (ChildPointer) DecodeValue(dat []byte) (blockio.BlockAddr, int, error) {
	return decodeStatic[blockio.BlockAddr](dat, "child pointer")
}

func (ChildPointer) EncodeValue(addr blockio.BlockAddr) []byte {
	return encodeStatic(addr)
}

// BlockTimeValue values are the leaves of the bottom level of the
// mapping tree.
type BlockTimeValue struct{}

func (BlockTimeValue) Name() string   { return "block-time" }
func (BlockTimeValue) ValueSize() int { return 8 }

func (BlockTimeValue) DecodeValue(dat []byte) (BlockTime, int, error) {
	packed, n, err := decodeStatic[uint64](dat, "block time")
	if err != nil {
		return BlockTime{}, n, err
	}
	return UnpackBlockTime(packed), n, nil
}

// EncodeValue panics if bt cannot be packed; see PackBlockTime.
func (BlockTimeValue) EncodeValue(bt BlockTime) []byte {
	packed, err := PackBlockTime(bt)
	if err != nil {
		panic(err)
	}
	return encodeStatic(packed)
}

// DeviceDetails is the per-thin-device record in the details tree.
type DeviceDetails struct {
	MappedBlocks    uint64 `bin:"off=0x0,  siz=0x8"`
	TransactionID   uint64 `bin:"off=0x8,  siz=0x8"`
	CreationTime    uint32 `bin:"off=0x10, siz=0x4"`
	SnapshottedTime uint32 `bin:"off=0x14, siz=0x4"`
	binstruct.End   `bin:"off=0x18"`
}

type DeviceDetailsValue struct{}

func (DeviceDetailsValue) Name() string   { return "device-details" }
func (DeviceDetailsValue) ValueSize() int { return binstruct.StaticSize(DeviceDetails{}) }

func (DeviceDetailsValue) DecodeValue(dat []byte) (DeviceDetails, int, error) {
	return decodeStatic[DeviceDetails](dat, "device details")
}

func (DeviceDetailsValue) EncodeValue(details DeviceDetails) []byte {
	return encodeStatic(details)
}
