// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package thincheck_test

import (
	"context"
	"sync"
	"testing"

	"github.com/datawire/dlib/dlog"
	"github.com/stretchr/testify/require"

	"git.lukeshu.com/thinp-progs-ng/lib/diskio"
	"git.lukeshu.com/thinp-progs-ng/lib/thin"
	"git.lukeshu.com/thinp-progs-ng/lib/thin/blockio"
	"git.lukeshu.com/thinp-progs-ng/lib/thin/thinbtree"
)

const testDataBlocks = 1000

// image assembles a metadata device in memory.  Block 0 is left for
// the superblock.
type image struct {
	t    *testing.T
	file *diskio.MemFile[blockio.DevOffset]
	next blockio.BlockAddr
}

func newImage(t *testing.T, nrBlocks int) *image {
	t.Helper()
	return &image{
		t:    t,
		file: diskio.NewMemFile[blockio.DevOffset]("meta.img", blockio.DevOffset(nrBlocks*blockio.BlockSize)),
		next: thin.SuperblockAddr + 1,
	}
}

func (img *image) alloc() blockio.BlockAddr {
	addr := img.next
	img.next++
	return addr
}

func (img *image) write(addr blockio.BlockAddr, buf []byte) {
	img.t.Helper()
	_, err := img.file.WriteAt(buf, addr.Offset(blockio.BlockSize))
	require.NoError(img.t, err)
}

// corrupt flips a bit in the body of the block, so that its checksum
// no longer matches.
func (img *image) corrupt(addr blockio.BlockAddr) {
	img.t.Helper()
	buf := make([]byte, blockio.BlockSize)
	_, err := img.file.ReadAt(buf, addr.Offset(blockio.BlockSize))
	require.NoError(img.t, err)
	buf[blockio.BlockSize/2] ^= 0x01
	img.write(addr, buf)
}

func writeNode[V any](img *image, addr blockio.BlockAddr, node *thinbtree.Node[V], vt thinbtree.ValueType[V]) blockio.BlockAddr {
	img.t.Helper()
	if node.Head.Block == 0 {
		node.Head.Block = addr
	}
	buf, err := thinbtree.MarshalNode(node, vt, blockio.BlockSize)
	require.NoError(img.t, err)
	img.write(addr, buf)
	return addr
}

func keysFor(n int) []uint64 {
	keys := make([]uint64, n)
	for i := range keys {
		keys[i] = uint64(i)
	}
	return keys
}

func (img *image) internal(children ...blockio.BlockAddr) blockio.BlockAddr {
	img.t.Helper()
	return writeNode(img, img.alloc(), &thinbtree.Node[blockio.BlockAddr]{
		Head:     thinbtree.NodeHeader{Flags: thinbtree.InternalNode},
		Keys:     keysFor(len(children)),
		Children: children,
	}, thinbtree.ChildPointer{})
}

// topLeaf maps devices 0..n-1 to the given bottom-level roots.
func (img *image) topLeaf(roots ...blockio.BlockAddr) blockio.BlockAddr {
	img.t.Helper()
	return img.topLeafKeys(keysFor(len(roots)), roots...)
}

func (img *image) topLeafKeys(devs []uint64, roots ...blockio.BlockAddr) blockio.BlockAddr {
	img.t.Helper()
	return writeNode(img, img.alloc(), &thinbtree.Node[blockio.BlockAddr]{
		Head:   thinbtree.NodeHeader{Flags: thinbtree.LeafNode},
		Keys:   devs,
		Values: roots,
	}, thinbtree.ChildPointer{})
}

func (img *image) bottomLeaf(vals ...thinbtree.BlockTime) blockio.BlockAddr {
	img.t.Helper()
	return writeNode(img, img.alloc(), &thinbtree.Node[thinbtree.BlockTime]{
		Head:   thinbtree.NodeHeader{Flags: thinbtree.LeafNode},
		Keys:   keysFor(len(vals)),
		Values: vals,
	}, thinbtree.BlockTimeValue{})
}

func (img *image) detailsLeaf(devs ...uint64) blockio.BlockAddr {
	img.t.Helper()
	vals := make([]thinbtree.DeviceDetails, len(devs))
	for i := range vals {
		vals[i] = thinbtree.DeviceDetails{MappedBlocks: 3, TransactionID: 1}
	}
	return writeNode(img, img.alloc(), &thinbtree.Node[thinbtree.DeviceDetails]{
		Head:   thinbtree.NodeHeader{Flags: thinbtree.LeafNode},
		Keys:   devs,
		Values: vals,
	}, thinbtree.DeviceDetailsValue{})
}

func (img *image) superblock(mappingRoot, detailsRoot blockio.BlockAddr) {
	img.t.Helper()
	sb := thin.Superblock{
		Block:             thin.SuperblockAddr,
		Magic:             thin.SuperblockMagic,
		Version:           2,
		DataSpaceMap:      thin.SpaceMapRoot{NrBlocks: testDataBlocks},
		MappingRoot:       mappingRoot,
		DetailsRoot:       detailsRoot,
		DataBlockSize:     128,
		MetadataBlockSize: blockio.BlockSize / thin.SectorSize,
		NrMetadataBlocks:  uint64(img.file.Size() / blockio.BlockSize),
	}
	buf, err := sb.Marshal(blockio.BlockSize)
	require.NoError(img.t, err)
	img.write(thin.SuperblockAddr, buf)
}

// countingEngine records every block that is read through it, one
// slice per read call.
type countingEngine struct {
	blockio.Engine

	mu      sync.Mutex
	batches [][]blockio.BlockAddr
}

func (e *countingEngine) record(blocks []blockio.Block) {
	addrs := make([]blockio.BlockAddr, len(blocks))
	for i := range blocks {
		addrs[i] = blocks[i].Addr
	}
	e.mu.Lock()
	e.batches = append(e.batches, addrs)
	e.mu.Unlock()
}

func (e *countingEngine) Read(ctx context.Context, blk *blockio.Block) error {
	e.record([]blockio.Block{*blk})
	return e.Engine.Read(ctx, blk)
}

func (e *countingEngine) ReadMany(ctx context.Context, blocks []blockio.Block) error {
	e.record(blocks)
	return e.Engine.ReadMany(ctx, blocks)
}

// reads returns every address read, in order.
func (e *countingEngine) reads() []blockio.BlockAddr {
	e.mu.Lock()
	defer e.mu.Unlock()
	var ret []blockio.BlockAddr
	for _, batch := range e.batches {
		ret = append(ret, batch...)
	}
	return ret
}

func (e *countingEngine) readCount(addr blockio.BlockAddr) int {
	n := 0
	for _, read := range e.reads() {
		if read == addr {
			n++
		}
	}
	return n
}

func (img *image) engine(kind blockio.EngineKind) *countingEngine {
	img.t.Helper()
	ctx := dlog.NewTestContext(img.t, false)
	inner, err := blockio.NewEngine(ctx, img.file, blockio.EngineConfig{Kind: kind})
	require.NoError(img.t, err)
	return &countingEngine{Engine: inner}
}
