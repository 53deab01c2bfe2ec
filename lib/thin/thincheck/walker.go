// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package thincheck

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/datawire/dlib/dlog"

	"git.lukeshu.com/thinp-progs-ng/lib/containers"
	"git.lukeshu.com/thinp-progs-ng/lib/textui"
	"git.lukeshu.com/thinp-progs-ng/lib/thin/blockio"
	"git.lukeshu.com/thinp-progs-ng/lib/thin/thinbtree"
	"git.lukeshu.com/thinp-progs-ng/lib/thin/thinsum"
)

var progressInterval = textui.Tunable(1 * time.Second)

// WalkStats counts what a Walker has visited so far.  Every field is
// kept up to date as the walk goes, so taking a copy is cheap.
type WalkStats struct {
	MetadataBlocks uint64 // size of the metadata device

	Reads    int
	Nodes    [nrLevels]int
	Mappings uint64
	DataUsed uint64 // distinct data blocks mapped
	Devices  int
}

func (s WalkStats) String() string {
	nodes := s.Nodes[LevelTop] + s.Nodes[LevelBottom] + s.Nodes[LevelDetails]
	return textui.Sprintf("walked %v of metadata blocks (top=%v bottom=%v details=%v) with %v block reads; %v mappings",
		textui.Portion[uint64]{N: uint64(nodes), D: s.MetadataBlocks},
		s.Nodes[LevelTop], s.Nodes[LevelBottom], s.Nodes[LevelDetails],
		s.Reads, s.Mappings)
}

// Walker walks the nodes of one tree, visiting each block at most
// once no matter how many parents refer to it.
//
// A Walker is single-use, and is not safe for concurrent use.
type Walker struct {
	engine       blockio.Engine
	nrDataBlocks uint64

	seen       *roaring64.Bitmap
	dataBlocks *roaring64.Bitmap
	devices    containers.Set[uint64]
	details    map[uint64]thinbtree.DeviceDetails

	stats    WalkStats
	progress *textui.Progress[WalkStats]
}

// NewWalker returns a Walker that reads through engine; mappings to
// data blocks at or beyond nrDataBlocks are rejected.
func NewWalker(engine blockio.Engine, nrDataBlocks uint64) *Walker {
	return &Walker{
		engine:       engine,
		nrDataBlocks: nrDataBlocks,

		seen:       roaring64.New(),
		dataBlocks: roaring64.New(),
		devices:    make(containers.Set[uint64]),
		details:    make(map[uint64]thinbtree.DeviceDetails),

		stats: WalkStats{
			MetadataBlocks: uint64(engine.NrBlocks()),
		},
	}
}

// Seen returns whether the block at addr has been visited.
func (w *Walker) Seen(addr blockio.BlockAddr) bool {
	return w.seen.Contains(uint64(addr))
}

// NrSeen returns the number of distinct blocks visited.
func (w *Walker) NrSeen() uint64 {
	return w.seen.GetCardinality()
}

func (w *Walker) Stats() WalkStats { return w.stats }

// Devices returns the thin device IDs found in the leaves of the
// top level of the mapping tree.
func (w *Walker) Devices() containers.Set[uint64] { return w.devices }

// Details returns the device details found in the leaves of the
// details tree.
func (w *Walker) Details() map[uint64]thinbtree.DeviceDetails { return w.details }

// ShowProgress periodically logs the walk's stats at Info level,
// until the returned function is called.
func (w *Walker) ShowProgress(ctx context.Context) (done func()) {
	w.progress = textui.NewProgress[WalkStats](ctx, dlog.LogLevelInfo, progressInterval)
	w.progress.Set(w.Stats())
	return func() {
		w.progress.Set(w.Stats())
		w.progress.Done()
		w.progress = nil
	}
}

func (w *Walker) nodeDone() {
	if w.progress != nil {
		w.progress.Set(w.Stats())
	}
}

// WalkRoot reads the root of a tree with a single read, and walks
// it.
func (w *Walker) WalkRoot(ctx context.Context, level Level, root blockio.BlockAddr) error {
	blk := blockio.NewBlock(root)
	w.stats.Reads++
	if err := w.engine.Read(ctx, &blk); err != nil {
		return &NodeError{Level: level, Addr: root, Err: err}
	}
	return w.WalkNode(ctx, level, &blk)
}

// WalkNode checks the already-read node in blk, and everything below
// it, as a node of the given level.  The walk takes ownership of
// blk's buffer.
//
// If blk has already been visited, WalkNode does nothing.  Any
// failure stops the walk; nothing is retried or skipped.
func (w *Walker) WalkNode(ctx context.Context, level Level, blk *blockio.Block) error {
	if !w.seen.CheckedAdd(uint64(blk.Addr)) {
		blk.Free()
		return nil
	}
	switch level {
	case LevelTop:
		return walkNode[blockio.BlockAddr](ctx, w, level, blk, thinbtree.ChildPointer{}, w.visitTopLeaf)
	case LevelBottom:
		return walkNode[thinbtree.BlockTime](ctx, w, level, blk, thinbtree.BlockTimeValue{}, w.visitBottomLeaf)
	case LevelDetails:
		return walkNode[thinbtree.DeviceDetails](ctx, w, level, blk, thinbtree.DeviceDetailsValue{}, w.visitDetailsLeaf)
	default:
		panic(fmt.Errorf("should not happen: invalid level: %v", level))
	}
}

// WalkNodes reads the not-yet-visited blocks among addrs as one
// batch, then walks each of them in order.  The first failure stops
// the walk, and no further blocks are read.
func (w *Walker) WalkNodes(ctx context.Context, level Level, addrs []blockio.BlockAddr) error {
	want := make([]blockio.BlockAddr, 0, len(addrs))
	batch := make(containers.Set[blockio.BlockAddr], len(addrs))
	for _, addr := range addrs {
		if w.Seen(addr) || batch.Has(addr) {
			continue
		}
		batch.Insert(addr)
		want = append(want, addr)
	}
	if len(want) == 0 {
		return nil
	}

	blocks := blockio.NewBlocks(want)
	dlog.Tracef(ctx, "reading %v %v nodes", len(blocks), level)
	w.stats.Reads += len(blocks)
	if err := w.engine.ReadMany(ctx, blocks); err != nil {
		return w.batchError(level, blocks, err)
	}
	for i := range blocks {
		if err := w.WalkNode(ctx, level, &blocks[i]); err != nil {
			for j := i + 1; j < len(blocks); j++ {
				blocks[j].Free()
			}
			return err
		}
	}
	return nil
}

func (w *Walker) batchError(level Level, blocks []blockio.Block, err error) error {
	for i := range blocks {
		blocks[i].Free()
	}
	var addr blockio.BlockAddr
	var ioErr *blockio.IOError
	if errors.As(err, &ioErr) {
		addr = ioErr.Addr
	} else {
		// Canceled, most likely; blame the first block.
		addr = blocks[0].Addr
	}
	return &NodeError{Level: level, Addr: addr, Err: err}
}

func walkNode[V any](ctx context.Context, w *Walker, level Level, blk *blockio.Block, vt thinbtree.ValueType[V],
	visitLeaf func(context.Context, blockio.BlockAddr, *thinbtree.Node[V]) error,
) error {
	addr := blk.Addr
	if err := thinsum.Verify(*blk, thinsum.BlockTypeNode); err != nil {
		blk.Free()
		return &NodeError{Level: level, Addr: addr, Err: err}
	}
	node, err := thinbtree.UnmarshalNode[V](blk.Data, vt)
	blk.Free()
	if err != nil {
		return &NodeError{Level: level, Addr: addr, Err: err}
	}
	if node.Head.Block != addr {
		return &NodeError{Level: level, Addr: addr, Err: fmt.Errorf("read from block %v but claims to be at block %v",
			addr, node.Head.Block)}
	}
	w.stats.Nodes[level]++
	w.nodeDone()

	if node.Head.IsInternal() {
		return w.WalkNodes(ctx, level, node.Children)
	}
	return visitLeaf(ctx, addr, node)
}

func (w *Walker) visitTopLeaf(ctx context.Context, _ blockio.BlockAddr, node *thinbtree.Node[blockio.BlockAddr]) error {
	for _, dev := range node.Keys {
		if !w.devices.Has(dev) {
			w.devices.Insert(dev)
			w.stats.Devices++
		}
	}
	return w.WalkNodes(ctx, LevelBottom, node.Values)
}

func (w *Walker) visitBottomLeaf(_ context.Context, addr blockio.BlockAddr, node *thinbtree.Node[thinbtree.BlockTime]) error {
	for i, bt := range node.Values {
		if bt.Block >= w.nrDataBlocks {
			return &NodeError{Level: LevelBottom, Addr: addr, Err: &BoundsError{
				Key:          node.Keys[i],
				Value:        bt,
				NrDataBlocks: w.nrDataBlocks,
			}}
		}
		if w.dataBlocks.CheckedAdd(bt.Block) {
			w.stats.DataUsed++
		}
	}
	w.stats.Mappings += uint64(len(node.Values))
	return nil
}

func (w *Walker) visitDetailsLeaf(_ context.Context, _ blockio.BlockAddr, node *thinbtree.Node[thinbtree.DeviceDetails]) error {
	for i, details := range node.Values {
		w.details[node.Keys[i]] = details
	}
	return nil
}
