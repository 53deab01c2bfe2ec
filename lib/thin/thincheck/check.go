// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package thincheck checks the consistency of thin-provisioning pool
// metadata.
package thincheck

import (
	"context"
	"time"

	"github.com/datawire/dlib/dlog"
	"github.com/davecgh/go-spew/spew"

	"git.lukeshu.com/thinp-progs-ng/lib/containers"
	"git.lukeshu.com/thinp-progs-ng/lib/thin"
	"git.lukeshu.com/thinp-progs-ng/lib/thin/blockio"
)

type Options struct {
	// SuperblockOnly stops after the superblock has been read and
	// validated.
	SuperblockOnly bool
	SkipMappings   bool
	SkipDetails    bool
	// ShowProgress periodically logs the progress of each tree
	// walk.
	ShowProgress bool
}

type Report struct {
	UUID             thin.UUID `json:"uuid"`
	Version          uint32    `json:"version"`
	TransactionID    uint64    `json:"transaction_id"`
	NrDataBlocks     uint64    `json:"nr_data_blocks"`
	NrMetadataBlocks uint64    `json:"nr_metadata_blocks"`

	MappingTree *TreeReport `json:"mapping_tree,omitempty"`
	DetailsTree *TreeReport `json:"details_tree,omitempty"`
}

type TreeReport struct {
	Root    blockio.BlockAddr `json:"root"`
	Elapsed time.Duration     `json:"elapsed_ns"`

	Reads       int    `json:"reads"`
	Blocks      uint64 `json:"blocks"` // distinct blocks visited
	TopNodes    int    `json:"top_nodes,omitempty"`
	BottomNodes int    `json:"bottom_nodes,omitempty"`
	DetailNodes int    `json:"details_nodes,omitempty"`

	Mappings       uint64                 `json:"mappings,omitempty"`
	DataBlocksUsed uint64                 `json:"data_blocks_used,omitempty"`
	Devices        containers.Set[uint64] `json:"devices"`
}

type spewed struct {
	val any
}

func (s spewed) String() string {
	cfg := spew.NewDefaultConfig()
	cfg.DisablePointerAddresses = true
	return cfg.Sdump(s.val)
}

// Check reads the superblock, then walks the mapping tree and the
// details tree, and checks that they agree about which thin devices
// exist.
//
// The first inconsistency found ends the check.  On failure, the
// returned Report (if non-nil) describes what was checked before the
// failure.
func Check(ctx context.Context, engine blockio.Engine, opts Options) (*Report, error) {
	sb, err := thin.ReadSuperblock(ctx, engine, thin.SuperblockAddr)
	if err != nil {
		return nil, err
	}
	dlog.Debugf(ctx, "superblock: %v", spewed{sb})
	report := &Report{
		UUID:             sb.UUID,
		Version:          sb.Version,
		TransactionID:    sb.TransID,
		NrDataBlocks:     sb.NrDataBlocks(),
		NrMetadataBlocks: sb.NrMetadataBlocks,
	}
	if sb.NrMetadataBlocks != uint64(engine.NrBlocks()) {
		dlog.Warnf(ctx, "superblock says the metadata device has %v blocks, but it has %v",
			sb.NrMetadataBlocks, engine.NrBlocks())
	}
	if opts.SuperblockOnly {
		return report, nil
	}

	var mappingDevices containers.Set[uint64]
	if !opts.SkipMappings {
		ctx := dlog.WithField(ctx, "thincheck.tree", "mapping")
		walker := NewWalker(engine, sb.NrDataBlocks())
		report.MappingTree, err = walkTree(ctx, walker, LevelTop, sb.MappingRoot, opts)
		if err != nil {
			return report, err
		}
		mappingDevices = walker.Devices()
	}

	if !opts.SkipDetails {
		ctx := dlog.WithField(ctx, "thincheck.tree", "details")
		walker := NewWalker(engine, sb.NrDataBlocks())
		report.DetailsTree, err = walkTree(ctx, walker, LevelDetails, sb.DetailsRoot, opts)
		if err != nil {
			return report, err
		}
		if mappingDevices != nil {
			if err := crossCheckDevices(mappingDevices, report.DetailsTree.Devices); err != nil {
				return report, err
			}
		}
	}

	return report, nil
}

func walkTree(ctx context.Context, walker *Walker, level Level, root blockio.BlockAddr, opts Options) (*TreeReport, error) {
	if opts.ShowProgress {
		done := walker.ShowProgress(ctx)
		defer done()
	}
	dlog.Infof(ctx, "walking tree at block %v...", root)
	start := time.Now()
	err := walker.WalkRoot(ctx, level, root)
	elapsed := time.Since(start)

	stats := walker.Stats()
	tree := &TreeReport{
		Root:    root,
		Elapsed: elapsed,

		Reads:       stats.Reads,
		Blocks:      walker.NrSeen(),
		TopNodes:    stats.Nodes[LevelTop],
		BottomNodes: stats.Nodes[LevelBottom],
		DetailNodes: stats.Nodes[LevelDetails],

		Mappings:       stats.Mappings,
		DataBlocksUsed: stats.DataUsed,
	}
	switch level {
	case LevelTop:
		tree.Devices = walker.Devices()
	case LevelDetails:
		tree.Devices = containers.NewSet(containers.SortedKeys(walker.Details())...)
	}
	if err != nil {
		return tree, err
	}
	dlog.Infof(ctx, "... walked tree at block %v in %v", root, elapsed)
	return tree, nil
}

func crossCheckDevices(mappingDevices, detailsDevices containers.Set[uint64]) error {
	missingDetails := mappingDevices.Sub(detailsDevices)
	missingMappings := detailsDevices.Sub(mappingDevices)
	if len(missingDetails) > 0 || len(missingMappings) > 0 {
		return &DeviceMismatchError{
			MissingDetails:  missingDetails,
			MissingMappings: missingMappings,
		}
	}
	return nil
}
