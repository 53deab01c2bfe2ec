// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"os"

	"git.lukeshu.com/go/lowmemjson"
	"github.com/datawire/dlib/dlog"

	"git.lukeshu.com/thinp-progs-ng/lib/thin/blockio"
	"git.lukeshu.com/thinp-progs-ng/lib/thin/thincheck"
	"git.lukeshu.com/thinp-progs-ng/lib/textui"
)

func runCheck(ctx context.Context, engine blockio.Engine, opts thincheck.Options, asJSON bool) error {
	opts.ShowProgress = true
	report, err := thincheck.Check(ctx, engine, opts)
	if asJSON && report != nil {
		dlog.Info(ctx, "Writing report to stdout...")
		if _err := writeJSONFile(os.Stdout, report, lowmemjson.ReEncoderConfig{
			Indent:                "\t",
			ForceTrailingNewlines: true,
		}); _err != nil && err == nil {
			err = _err
		}
		dlog.Info(ctx, "... done writing")
	}
	if err != nil {
		return err
	}
	if !asJSON {
		printSummary(report, engine.BlockSize())
	}
	return nil
}

func printSummary(report *thincheck.Report, blockSize int) {
	textui.Fprintf(os.Stdout, "metadata %v: version %v, transaction %v, %v metadata blocks, %v data blocks\n",
		report.UUID, report.Version, report.TransactionID,
		report.NrMetadataBlocks, report.NrDataBlocks)
	if tree := report.MappingTree; tree != nil {
		textui.Fprintf(os.Stdout, "read mapping tree in %v ms\n", tree.Elapsed.Milliseconds())
		textui.Fprintf(os.Stdout, "mapping tree: %v devices, %v nodes (%v top, %v bottom) in %v reads (%v), %v mappings to %v data blocks\n",
			len(tree.Devices), tree.Blocks, tree.TopNodes, tree.BottomNodes,
			tree.Reads, textui.IEC(tree.Blocks*uint64(blockSize), "B"),
			tree.Mappings, tree.DataBlocksUsed)
	}
	if tree := report.DetailsTree; tree != nil {
		textui.Fprintf(os.Stdout, "details tree: %v devices, %v nodes in %v reads\n",
			len(tree.Devices), tree.Blocks, tree.Reads)
	}
}
