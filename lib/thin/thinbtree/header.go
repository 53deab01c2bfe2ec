// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package thinbtree decodes the nodes of the persistent-data B-trees
// that make up thin-provisioning metadata.
package thinbtree

import (
	"fmt"

	"git.lukeshu.com/thinp-progs-ng/lib/binstruct"
	"git.lukeshu.com/thinp-progs-ng/lib/thin/blockio"
)

type NodeFlags uint32

const (
	InternalNode = NodeFlags(1)
	LeafNode     = NodeFlags(2)
)

func (f NodeFlags) String() string {
	switch f {
	case InternalNode:
		return "internal"
	case LeafNode:
		return "leaf"
	default:
		return fmt.Sprintf("NodeFlags(%d)", uint32(f))
	}
}

type NodeHeader struct {
	Checksum      uint32            `bin:"off=0x0,  siz=0x4"` // verified by thinsum, not here
	Flags         NodeFlags         `bin:"off=0x4,  siz=0x4"`
	Block         blockio.BlockAddr `bin:"off=0x8,  siz=0x8"` // the block this node was written to
	NrEntries     uint32            `bin:"off=0x10, siz=0x4"`
	MaxEntries    uint32            `bin:"off=0x14, siz=0x4"`
	ValueSize     uint32            `bin:"off=0x18, siz=0x4"`
	Padding       uint32            `bin:"off=0x1c, siz=0x4"`
	binstruct.End `bin:"off=0x20"`
}

var nodeHeaderSize = binstruct.StaticSize(NodeHeader{})

// IsLeaf reports whether the node holds values rather than child
// pointers.  Any flag value other than LeafNode is decoded as an
// internal node; whether the block is a node at all is decided by its
// checksum, not by its flags.
func (h NodeHeader) IsLeaf() bool     { return h.Flags == LeafNode }
func (h NodeHeader) IsInternal() bool { return !h.IsLeaf() }

// UnmarshalNodeHeader decodes the fixed-size prefix of a node.
func UnmarshalNodeHeader(buf []byte) (NodeHeader, error) {
	var head NodeHeader
	if _, err := binstruct.Unmarshal(buf, &head); err != nil {
		return NodeHeader{}, &DecodeError{Err: fmt.Errorf("header: %w", err)}
	}
	return head, nil
}

// CalcMaxEntries returns the number of key/value slots that fit in a
// node of the given size.  The count is rounded down to a multiple
// of 3 so that nodes split and merge evenly.
func CalcMaxEntries(blockSize, valueSize int) uint32 {
	perEntry := 8 + valueSize
	n := (blockSize - nodeHeaderSize) / perEntry
	return uint32(3 * (n / 3))
}
