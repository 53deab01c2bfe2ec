// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package thincheck

import (
	"fmt"
	"strings"

	"git.lukeshu.com/thinp-progs-ng/lib/thin/blockio"
	"git.lukeshu.com/thinp-progs-ng/lib/thin/thinbtree"
)

// NodeError identifies the node that a walk failed at.  The Err
// inside is usually one of *blockio.IOError, *thinsum.ChecksumError,
// *thinbtree.DecodeError, or *BoundsError.
type NodeError struct {
	Level Level
	Addr  blockio.BlockAddr
	Err   error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("%v node@%v: %v", e.Level, e.Addr, e.Err)
}
func (e *NodeError) Unwrap() error { return e.Err }

// BoundsError is returned when a mapping refers to a data block that
// is not on the data device.
type BoundsError struct {
	Key          uint64
	Value        thinbtree.BlockTime
	NrDataBlocks uint64
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("mapping for virtual block %v: data block %v is beyond the end of the data device (%v blocks)",
		e.Key, e.Value.Block, e.NrDataBlocks)
}

// DeviceMismatchError is returned when the mapping tree and the
// details tree disagree about which thin devices exist.
type DeviceMismatchError struct {
	MissingDetails  []uint64 // in the mapping tree, but not the details tree
	MissingMappings []uint64 // in the details tree, but not the mapping tree
}

func (e *DeviceMismatchError) Error() string {
	var parts []string
	if len(e.MissingDetails) > 0 {
		parts = append(parts, fmt.Sprintf("devices %v have mappings but no details", e.MissingDetails))
	}
	if len(e.MissingMappings) > 0 {
		parts = append(parts, fmt.Sprintf("devices %v have details but no mappings", e.MissingMappings))
	}
	return "device trees disagree: " + strings.Join(parts, "; ")
}
