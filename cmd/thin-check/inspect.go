// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/datawire/dlib/dlog"
	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/spf13/cobra"

	"git.lukeshu.com/thinp-progs-ng/lib/thin"
	"git.lukeshu.com/thinp-progs-ng/lib/thin/blockio"
	"git.lukeshu.com/thinp-progs-ng/lib/thin/thinbtree"
	"git.lukeshu.com/thinp-progs-ng/lib/thin/thincheck"
	"git.lukeshu.com/thinp-progs-ng/lib/thin/thinsum"
)

func init() {
	inspectors = append(inspectors, subcommand{
		Command: cobra.Command{
			Use:   "superblock METADATA_DEV",
			Short: "Dump the superblock",
			Args:  cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		},
		RunE: func(engine blockio.Engine, cmd *cobra.Command, _ []string) error {
			ctx := dlog.WithField(cmd.Context(), "thin-check.inspect", "superblock")
			sb, err := thin.ReadSuperblock(ctx, engine, thin.SuperblockAddr)
			if sb != nil {
				if err := writeDump(os.Stdout, sb); err != nil {
					return err
				}
			}
			return err
		},
	})
}

func init() {
	level := thincheck.LevelTop
	cmd := subcommand{
		Command: cobra.Command{
			Use:   "node [flags] BLOCK METADATA_DEV",
			Short: "Dump a single B-tree node",
			Long: "" +
				"Dump a single B-tree node.  A node does not record which tree it\n" +
				"belongs to, so --level says how to decode the values of a leaf.",
			Args: cliutil.WrapPositionalArgs(cobra.ExactArgs(2)),
		},
		RunE: func(engine blockio.Engine, cmd *cobra.Command, args []string) error {
			addr, err := strconv.ParseUint(args[0], 0, 64)
			if err != nil {
				return fmt.Errorf("invalid block number: %w", err)
			}
			ctx := dlog.WithField(cmd.Context(), "thin-check.inspect", fmt.Sprintf("%v node@%v", level, addr))
			switch level {
			case thincheck.LevelTop:
				return dumpNode[blockio.BlockAddr](ctx, engine, blockio.BlockAddr(addr), thinbtree.ChildPointer{})
			case thincheck.LevelBottom:
				return dumpNode[thinbtree.BlockTime](ctx, engine, blockio.BlockAddr(addr), thinbtree.BlockTimeValue{})
			case thincheck.LevelDetails:
				return dumpNode[thinbtree.DeviceDetails](ctx, engine, blockio.BlockAddr(addr), thinbtree.DeviceDetailsValue{})
			default:
				panic(fmt.Errorf("should not happen: unknown level %v", level))
			}
		},
	}
	cmd.Command.Flags().Var(&level, "level", "decode leaf values as belonging to the `top`, `bottom`, or `details` tree")
	inspectors = append(inspectors, cmd)
}

// dumpNode dumps the node even if its checksum is bad; the checksum
// error is returned after the dump.
func dumpNode[V any](ctx context.Context, engine blockio.Engine, addr blockio.BlockAddr, vt thinbtree.ValueType[V]) error {
	blk := blockio.NewBlock(addr)
	if err := engine.Read(ctx, &blk); err != nil {
		return err
	}
	defer blk.Free()

	sumErr := thinsum.Verify(blk, thinsum.BlockTypeNode)
	if sumErr != nil {
		dlog.Errorf(ctx, "%v", sumErr)
	}
	node, err := thinbtree.UnmarshalNode(blk.Data, vt)
	if node != nil {
		if err := writeDump(os.Stdout, node); err != nil {
			return err
		}
	}
	if err != nil {
		return err
	}
	return sumErr
}
