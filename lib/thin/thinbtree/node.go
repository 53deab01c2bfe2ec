// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package thinbtree

import (
	"fmt"

	"git.lukeshu.com/thinp-progs-ng/lib/binstruct"
	"git.lukeshu.com/thinp-progs-ng/lib/binstruct/binutil"
	"git.lukeshu.com/thinp-progs-ng/lib/thin/blockio"
	"git.lukeshu.com/thinp-progs-ng/lib/thin/thinsum"
)

const keySize = 8

// Node is a decoded B-tree node.  Exactly one of Children (internal
// nodes) or Values (leaf nodes) is populated, with one entry per key.
type Node[V any] struct {
	Head     NodeHeader
	Keys     []uint64
	Children []blockio.BlockAddr
	Values   []V
}

// UnmarshalNode decodes a node, using vt for the values if it is a
// leaf.
//
// The body is laid out as NrEntries keys, then the unused key slots
// up to MaxEntries, then NrEntries values.  Key order is not
// validated.
func UnmarshalNode[V any](buf []byte, vt ValueType[V]) (*Node[V], error) {
	head, err := UnmarshalNodeHeader(buf)
	if err != nil {
		return nil, err
	}
	node := &Node[V]{Head: head}
	if head.NrEntries > head.MaxEntries {
		return node, &DecodeError{Err: fmt.Errorf("nr_entries=%v exceeds max_entries=%v",
			head.NrEntries, head.MaxEntries)}
	}
	nr := int(head.NrEntries)

	width, valName := ChildPointer{}.ValueSize(), ChildPointer{}.Name()
	if head.IsLeaf() {
		width, valName = vt.ValueSize(), vt.Name()
	}
	if int(head.ValueSize) != width {
		return node, &DecodeError{Err: fmt.Errorf("value_size=%v but %s values are %v bytes",
			head.ValueSize, valName, width)}
	}

	body := buf[nodeHeaderSize:]
	valuesOff := int(head.MaxEntries) * keySize
	if err := binutil.NeedNBytes(body, valuesOff+nr*width); err != nil {
		return node, &DecodeError{Err: fmt.Errorf("body (nr_entries=%v max_entries=%v value_size=%v) %w",
			head.NrEntries, head.MaxEntries, width, err)}
	}

	node.Keys = make([]uint64, nr)
	for i := range node.Keys {
		if _, err := binstruct.Unmarshal(body[i*keySize:], &node.Keys[i]); err != nil {
			return node, &DecodeError{Err: fmt.Errorf("key %v: %w", i, err)}
		}
	}

	vals := body[valuesOff:]
	if head.IsInternal() {
		node.Children = make([]blockio.BlockAddr, nr)
		for i := range node.Children {
			child, _, err := ChildPointer{}.DecodeValue(vals[i*width:])
			if err != nil {
				return node, &DecodeError{Err: fmt.Errorf("value %v: %w", i, err)}
			}
			node.Children[i] = child
		}
	} else {
		node.Values = make([]V, nr)
		for i := range node.Values {
			val, n, err := vt.DecodeValue(vals[i*width:])
			if err == nil && n != width {
				err = fmt.Errorf("consumed %v bytes but values are %v bytes", n, width)
			}
			if err != nil {
				return node, &DecodeError{Err: fmt.Errorf("value %v: %w", i, err)}
			}
			node.Values[i] = val
		}
	}
	return node, nil
}

// MarshalNode encodes node in to a stamped block of blockSize bytes.
//
// NrEntries and ValueSize are derived from the node's contents;
// MaxEntries is computed with CalcMaxEntries if it is zero.  The
// stored checksum is computed, not taken from node.Head.
func MarshalNode[V any](node *Node[V], vt ValueType[V], blockSize int) ([]byte, error) {
	head := node.Head
	nr := len(node.Keys)
	var vals [][]byte
	if head.IsInternal() {
		if len(node.Children) != nr {
			return nil, fmt.Errorf("internal node has %v keys but %v children", nr, len(node.Children))
		}
		for _, child := range node.Children {
			vals = append(vals, ChildPointer{}.EncodeValue(child))
		}
		head.ValueSize = uint32(ChildPointer{}.ValueSize())
	} else {
		if len(node.Values) != nr {
			return nil, fmt.Errorf("leaf node has %v keys but %v values", nr, len(node.Values))
		}
		for _, val := range node.Values {
			vals = append(vals, vt.EncodeValue(val))
		}
		head.ValueSize = uint32(vt.ValueSize())
	}
	head.NrEntries = uint32(nr)
	if head.MaxEntries == 0 {
		head.MaxEntries = CalcMaxEntries(blockSize, int(head.ValueSize))
	}
	if head.NrEntries > head.MaxEntries {
		return nil, fmt.Errorf("%v entries do not fit in a node with max_entries=%v", nr, head.MaxEntries)
	}
	need := nodeHeaderSize + int(head.MaxEntries)*keySize + nr*int(head.ValueSize)
	if need > blockSize {
		return nil, fmt.Errorf("not enough space: need at least %v bytes, but block is %v", need, blockSize)
	}

	buf := make([]byte, blockSize)
	headBytes, err := binstruct.Marshal(head)
	if err != nil {
		return nil, err
	}
	copy(buf, headBytes)
	body := buf[nodeHeaderSize:]
	for i, key := range node.Keys {
		keyBytes, err := binstruct.Marshal(key)
		if err != nil {
			return nil, fmt.Errorf("key %v: %w", i, err)
		}
		copy(body[i*keySize:], keyBytes)
	}
	valuesOff := int(head.MaxEntries) * keySize
	for i, val := range vals {
		copy(body[valuesOff+i*int(head.ValueSize):], val)
	}
	if err := thinsum.Stamp(buf, thinsum.BlockTypeNode); err != nil {
		return nil, err
	}
	return buf, nil
}
