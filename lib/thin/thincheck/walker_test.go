// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package thincheck_test

import (
	"errors"
	"testing"

	"github.com/datawire/dlib/dlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.lukeshu.com/thinp-progs-ng/lib/thin/blockio"
	"git.lukeshu.com/thinp-progs-ng/lib/thin/thinbtree"
	"git.lukeshu.com/thinp-progs-ng/lib/thin/thincheck"
	"git.lukeshu.com/thinp-progs-ng/lib/thin/thinsum"
)

var engineKinds = []blockio.EngineKind{blockio.EngineSync, blockio.EngineParallel}

func forEachEngine(t *testing.T, fn func(t *testing.T, kind blockio.EngineKind)) {
	t.Helper()
	for _, kind := range engineKinds {
		kind := kind
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()
			fn(t, kind)
		})
	}
}

func TestWalkTwoLevels(t *testing.T) {
	t.Parallel()
	forEachEngine(t, func(t *testing.T, kind blockio.EngineKind) {
		ctx := dlog.NewTestContext(t, false)
		img := newImage(t, 8)
		bottom := img.bottomLeaf(
			thinbtree.BlockTime{Block: 100, Time: 5},
			thinbtree.BlockTime{Block: 200, Time: 6},
			thinbtree.BlockTime{Block: 300, Time: 7},
		)
		top := img.topLeaf(bottom)
		engine := img.engine(kind)

		walker := thincheck.NewWalker(engine, testDataBlocks)
		require.NoError(t, walker.WalkRoot(ctx, thincheck.LevelTop, top))

		assert.Equal(t, uint64(2), walker.NrSeen())
		assert.True(t, walker.Seen(top))
		assert.True(t, walker.Seen(bottom))
		assert.Equal(t, []blockio.BlockAddr{top, bottom}, engine.reads())

		stats := walker.Stats()
		assert.Equal(t, 1, stats.Nodes[thincheck.LevelTop])
		assert.Equal(t, 1, stats.Nodes[thincheck.LevelBottom])
		assert.Equal(t, uint64(3), stats.Mappings)
		assert.Equal(t, uint64(3), stats.DataUsed)
		assert.Equal(t, 2, stats.Reads)
		assert.Equal(t, []uint64{0}, walker.Devices().Sorted())
	})
}

func TestWalkBadChecksum(t *testing.T) {
	t.Parallel()
	forEachEngine(t, func(t *testing.T, kind blockio.EngineKind) {
		ctx := dlog.NewTestContext(t, false)
		img := newImage(t, 8)
		bottom := img.bottomLeaf(
			thinbtree.BlockTime{Block: 100, Time: 5},
			thinbtree.BlockTime{Block: 200, Time: 6},
			thinbtree.BlockTime{Block: 300, Time: 7},
		)
		top := img.topLeaf(bottom)
		img.corrupt(bottom)
		engine := img.engine(kind)

		walker := thincheck.NewWalker(engine, testDataBlocks)
		err := walker.WalkRoot(ctx, thincheck.LevelTop, top)

		var csumErr *thinsum.ChecksumError
		require.True(t, errors.As(err, &csumErr), "%v", err)
		assert.Equal(t, bottom, csumErr.Addr)
		var nodeErr *thincheck.NodeError
		require.True(t, errors.As(err, &nodeErr))
		assert.Equal(t, bottom, nodeErr.Addr)
		assert.Equal(t, thincheck.LevelBottom, nodeErr.Level)

		assert.True(t, walker.Seen(top))
		assert.Equal(t, 1, walker.Stats().Nodes[thincheck.LevelTop])
	})
}

func TestWalkSharedSubtree(t *testing.T) {
	t.Parallel()
	forEachEngine(t, func(t *testing.T, kind blockio.EngineKind) {
		ctx := dlog.NewTestContext(t, false)
		img := newImage(t, 8)
		shared := img.bottomLeaf(
			thinbtree.BlockTime{Block: 1, Time: 0},
			thinbtree.BlockTime{Block: 2, Time: 0},
		)
		origin := img.topLeafKeys([]uint64{0}, shared)
		snap := img.topLeafKeys([]uint64{1}, shared)
		root := img.internal(origin, snap)
		engine := img.engine(kind)

		walker := thincheck.NewWalker(engine, testDataBlocks)
		require.NoError(t, walker.WalkRoot(ctx, thincheck.LevelTop, root))

		assert.Equal(t, 1, engine.readCount(shared))
		assert.Equal(t, uint64(4), walker.NrSeen())
		stats := walker.Stats()
		assert.Equal(t, 3, stats.Nodes[thincheck.LevelTop])
		assert.Equal(t, 1, stats.Nodes[thincheck.LevelBottom])
		assert.Equal(t, uint64(2), stats.Mappings)
		assert.Equal(t, []uint64{0, 1}, walker.Devices().Sorted())
	})
}

func TestWalkStatsCountDistinctData(t *testing.T) {
	t.Parallel()
	forEachEngine(t, func(t *testing.T, kind blockio.EngineKind) {
		ctx := dlog.NewTestContext(t, false)
		img := newImage(t, 8)
		origin := img.bottomLeaf(
			thinbtree.BlockTime{Block: 100, Time: 0},
			thinbtree.BlockTime{Block: 200, Time: 0},
		)
		snap := img.bottomLeaf(
			thinbtree.BlockTime{Block: 200, Time: 1},
			thinbtree.BlockTime{Block: 300, Time: 1},
		)
		top := img.topLeaf(origin, snap)
		engine := img.engine(kind)

		walker := thincheck.NewWalker(engine, testDataBlocks)
		done := walker.ShowProgress(ctx)
		require.NoError(t, walker.WalkRoot(ctx, thincheck.LevelTop, top))
		done()

		stats := walker.Stats()
		assert.Equal(t, uint64(4), stats.Mappings)
		assert.Equal(t, uint64(3), stats.DataUsed)
		assert.Equal(t, 2, stats.Devices)
		assert.Equal(t, uint64(8), stats.MetadataBlocks)
		assert.Equal(t, stats, walker.Stats())
		assert.Contains(t, stats.String(), "37% (3/8)")
	})
}

func TestWalkDuplicateInBatch(t *testing.T) {
	t.Parallel()
	forEachEngine(t, func(t *testing.T, kind blockio.EngineKind) {
		ctx := dlog.NewTestContext(t, false)
		img := newImage(t, 8)
		shared := img.bottomLeaf(thinbtree.BlockTime{Block: 7, Time: 1})
		top := img.topLeaf(shared, shared, shared)
		engine := img.engine(kind)

		walker := thincheck.NewWalker(engine, testDataBlocks)
		require.NoError(t, walker.WalkRoot(ctx, thincheck.LevelTop, top))
		assert.Equal(t, []blockio.BlockAddr{top, shared}, engine.reads())
		assert.Equal(t, uint64(1), walker.Stats().Mappings)
	})
}

func TestWalkFailFast(t *testing.T) {
	t.Parallel()
	forEachEngine(t, func(t *testing.T, kind blockio.EngineKind) {
		ctx := dlog.NewTestContext(t, false)
		img := newImage(t, 16)
		bad := img.bottomLeaf(thinbtree.BlockTime{Block: 1, Time: 0})
		good := img.bottomLeaf(thinbtree.BlockTime{Block: 2, Time: 0})
		leafA := img.topLeafKeys([]uint64{0}, bad)
		leafB := img.topLeafKeys([]uint64{1}, good)
		root := img.internal(leafA, leafB)
		img.corrupt(bad)
		engine := img.engine(kind)

		walker := thincheck.NewWalker(engine, testDataBlocks)
		err := walker.WalkRoot(ctx, thincheck.LevelTop, root)
		var csumErr *thinsum.ChecksumError
		require.True(t, errors.As(err, &csumErr), "%v", err)
		assert.Equal(t, bad, csumErr.Addr)

		// root, then the batch {leafA, leafB}, then leafA's batch
		// {bad}; leafB's subtree is never read.
		assert.Equal(t, []blockio.BlockAddr{root, leafA, leafB, bad}, engine.reads())
		assert.False(t, walker.Seen(good))
		assert.Equal(t, 0, engine.readCount(good))
	})
}

func TestWalkBottomInternal(t *testing.T) {
	t.Parallel()
	forEachEngine(t, func(t *testing.T, kind blockio.EngineKind) {
		ctx := dlog.NewTestContext(t, false)
		img := newImage(t, 8)
		left := img.bottomLeaf(
			thinbtree.BlockTime{Block: 10, Time: 0},
			thinbtree.BlockTime{Block: 11, Time: 0},
		)
		right := img.bottomLeaf(
			thinbtree.BlockTime{Block: 11, Time: 1},
			thinbtree.BlockTime{Block: 12, Time: 1},
		)
		top := img.topLeaf(img.internal(left, right))
		engine := img.engine(kind)

		walker := thincheck.NewWalker(engine, testDataBlocks)
		require.NoError(t, walker.WalkRoot(ctx, thincheck.LevelTop, top))
		stats := walker.Stats()
		assert.Equal(t, 1, stats.Nodes[thincheck.LevelTop])
		assert.Equal(t, 3, stats.Nodes[thincheck.LevelBottom])
		assert.Equal(t, uint64(4), stats.Mappings)
		assert.Equal(t, uint64(3), stats.DataUsed)
	})
}

func TestWalkOutOfBounds(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	img := newImage(t, 8)
	bottom := img.bottomLeaf(
		thinbtree.BlockTime{Block: testDataBlocks - 1, Time: 0},
		thinbtree.BlockTime{Block: testDataBlocks, Time: 3},
	)
	top := img.topLeaf(bottom)
	engine := img.engine(blockio.EngineSync)

	walker := thincheck.NewWalker(engine, testDataBlocks)
	err := walker.WalkRoot(ctx, thincheck.LevelTop, top)
	var boundsErr *thincheck.BoundsError
	require.True(t, errors.As(err, &boundsErr), "%v", err)
	assert.Equal(t, uint64(1), boundsErr.Key)
	assert.Equal(t, thinbtree.BlockTime{Block: testDataBlocks, Time: 3}, boundsErr.Value)
	assert.Equal(t, uint64(testDataBlocks), boundsErr.NrDataBlocks)
	var nodeErr *thincheck.NodeError
	require.True(t, errors.As(err, &nodeErr))
	assert.Equal(t, bottom, nodeErr.Addr)
}

func TestWalkMalformed(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	img := newImage(t, 8)
	// A details leaf where a mapping leaf belongs has the wrong
	// value width.
	bottom := img.detailsLeaf(0, 1)
	top := img.topLeaf(bottom)
	engine := img.engine(blockio.EngineSync)

	walker := thincheck.NewWalker(engine, testDataBlocks)
	err := walker.WalkRoot(ctx, thincheck.LevelTop, top)
	var decErr *thinbtree.DecodeError
	require.True(t, errors.As(err, &decErr), "%v", err)
	assert.Contains(t, err.Error(), "bottom node@1")
}

func TestWalkMisplacedNode(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	img := newImage(t, 8)
	bottom := writeNode(img, img.alloc(), &thinbtree.Node[thinbtree.BlockTime]{
		Head:   thinbtree.NodeHeader{Flags: thinbtree.LeafNode, Block: 6},
		Keys:   []uint64{0},
		Values: []thinbtree.BlockTime{{Block: 1}},
	}, thinbtree.BlockTimeValue{})
	top := img.topLeaf(bottom)
	engine := img.engine(blockio.EngineSync)

	walker := thincheck.NewWalker(engine, testDataBlocks)
	err := walker.WalkRoot(ctx, thincheck.LevelTop, top)
	assert.EqualError(t, err, "bottom node@1: read from block 1 but claims to be at block 6")
}

func TestWalkUnreadable(t *testing.T) {
	t.Parallel()
	forEachEngine(t, func(t *testing.T, kind blockio.EngineKind) {
		ctx := dlog.NewTestContext(t, false)
		img := newImage(t, 8)
		good := img.bottomLeaf(thinbtree.BlockTime{Block: 1})
		top := img.topLeaf(good, 5000)
		engine := img.engine(kind)

		walker := thincheck.NewWalker(engine, testDataBlocks)
		err := walker.WalkRoot(ctx, thincheck.LevelTop, top)
		var ioErr *blockio.IOError
		require.True(t, errors.As(err, &ioErr), "%v", err)
		assert.ErrorIs(t, err, blockio.ErrOutOfRange)
		var nodeErr *thincheck.NodeError
		require.True(t, errors.As(err, &nodeErr))
		assert.Equal(t, blockio.BlockAddr(5000), nodeErr.Addr)
		assert.Equal(t, thincheck.LevelBottom, nodeErr.Level)
	})
}

func TestWalkNodeSeenIsNoop(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	img := newImage(t, 8)
	bottom := img.bottomLeaf(thinbtree.BlockTime{Block: 1})
	engine := img.engine(blockio.EngineSync)

	walker := thincheck.NewWalker(engine, testDataBlocks)
	require.NoError(t, walker.WalkRoot(ctx, thincheck.LevelBottom, bottom))
	require.Equal(t, uint64(1), walker.Stats().Mappings)

	// Not even read, so not even checked.
	blk := blockio.NewBlock(bottom)
	require.NoError(t, walker.WalkNode(ctx, thincheck.LevelBottom, &blk))
	require.NoError(t, walker.WalkNodes(ctx, thincheck.LevelBottom, []blockio.BlockAddr{bottom, bottom}))
	assert.Equal(t, uint64(1), walker.Stats().Mappings)
	assert.Equal(t, []blockio.BlockAddr{bottom}, engine.reads())
}

func TestWalkEmptyTree(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	img := newImage(t, 4)
	top := img.topLeaf()
	engine := img.engine(blockio.EngineSync)

	walker := thincheck.NewWalker(engine, testDataBlocks)
	require.NoError(t, walker.WalkRoot(ctx, thincheck.LevelTop, top))
	assert.Equal(t, uint64(1), walker.NrSeen())
	assert.Empty(t, walker.Devices())
}

func TestLevelFlag(t *testing.T) {
	t.Parallel()
	var lvl thincheck.Level
	require.NoError(t, lvl.Set("details"))
	assert.Equal(t, thincheck.LevelDetails, lvl)
	assert.Equal(t, "details", lvl.String())
	assert.Error(t, lvl.Set("middle"))
	assert.Equal(t, "Level(7)", thincheck.Level(7).String())
}
